package main

import (
	"fmt"
	"time"

	"github.com/actionsum/wsbridge/internal/database"
	"github.com/actionsum/wsbridge/internal/reporter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	reportJSON  bool
	errorsLimit int
	pruneDays   int
	pruneAll    bool
)

var reportCmd = &cobra.Command{
	Use:       "report [day|week|month]",
	Short:     "Summarize focus time per workspace",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"day", "today", "week", "month"},
	RunE: func(cmd *cobra.Command, args []string) error {
		period := "day"
		if len(args) > 0 {
			period = args[0]
		}

		return withRepository(func(repo *database.Repository) error {
			rep := reporter.New(repo)
			report, err := rep.GenerateReport(period)
			if err != nil {
				return err
			}

			if reportJSON {
				out, err := rep.FormatReportJSON(report)
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			}
			fmt.Print(rep.FormatReportText(report))
			return nil
		})
	},
}

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List recently recorded bridge errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepository(func(repo *database.Repository) error {
			logs, err := repo.GetRecentErrors(errorsLimit)
			if err != nil {
				return err
			}
			fmt.Print(reporter.New(repo).FormatErrorsText(logs))
			return nil
		})
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old focus spans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepository(func(repo *database.Repository) error {
			if pruneAll {
				if err := repo.Clear(); err != nil {
					return err
				}
				fmt.Println("All focus spans deleted")
				return nil
			}

			before := time.Now().AddDate(0, 0, -pruneDays)
			n, err := repo.DeleteSpansBefore(before)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d focus spans older than %s\n", n, before.Format("2006-01-02"))
			return nil
		})
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Output the report as JSON")
	errorsCmd.Flags().IntVarP(&errorsLimit, "limit", "n", 20, "Number of errors to show")
	pruneCmd.Flags().IntVar(&pruneDays, "days", 90, "Delete spans started more than this many days ago")
	pruneCmd.Flags().BoolVar(&pruneAll, "all", false, "Delete every focus span")
	rootCmd.AddCommand(reportCmd, errorsCmd, pruneCmd)
}

func withRepository(fn func(repo *database.Repository) error) error {
	if !cfg.Database.Enabled {
		return errors.New("database is disabled in the configuration")
	}

	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		return errors.Wrap(err, "failed to initialize database")
	}

	return fn(database.NewRepository(db))
}
