package reporter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/actionsum/wsbridge/internal/database"
	"github.com/actionsum/wsbridge/internal/models"
	"github.com/actionsum/wsbridge/pkg/utils"
	"github.com/pkg/errors"
)

// ErrInvalidPeriod means the period is not day, week or month
var ErrInvalidPeriod = errors.New("invalid period type")

// Reporter handles report generation
type Reporter struct {
	repo *database.Repository
	now  func() time.Time
}

// New creates a new reporter
func New(repo *database.Repository) *Reporter {
	return &Reporter{
		repo: repo,
		now:  time.Now,
	}
}

// GenerateReport sums focus time per workspace for the specified period
func (r *Reporter) GenerateReport(periodType string) (*models.Report, error) {
	period, err := r.getPeriod(periodType)
	if err != nil {
		return nil, err
	}

	summaries, err := r.repo.GetWorkspaceSummarySince(period.Start)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get workspace summary")
	}

	var totalSeconds int64
	for i := range summaries {
		summaries[i].TotalMinutes = float64(summaries[i].TotalSeconds) / 60.0
		summaries[i].TotalHours = float64(summaries[i].TotalSeconds) / 3600.0
		totalSeconds += summaries[i].TotalSeconds
	}

	if totalSeconds > 0 {
		for i := range summaries {
			summaries[i].Percentage = (float64(summaries[i].TotalSeconds) / float64(totalSeconds)) * 100.0
		}
	}

	return &models.Report{
		Period:       *period,
		Workspaces:   summaries,
		TotalSeconds: totalSeconds,
		TotalMinutes: float64(totalSeconds) / 60.0,
		TotalHours:   float64(totalSeconds) / 3600.0,
		GeneratedAt:  r.now(),
	}, nil
}

// getPeriod calculates the time range for the report
func (r *Reporter) getPeriod(periodType string) (*models.ReportPeriod, error) {
	now := r.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var start, end time.Time

	switch periodType {
	case "day", "today":
		periodType = "day"
		start = today
		end = start.AddDate(0, 0, 1)

	case "week":
		// weeks start on Monday
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start = today.AddDate(0, 0, -(weekday - 1))
		end = start.AddDate(0, 0, 7)

	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)

	default:
		return nil, fmt.Errorf("%w: %s (valid: day, week, month)", ErrInvalidPeriod, periodType)
	}

	return &models.ReportPeriod{
		Start: start,
		End:   end,
		Type:  periodType,
	}, nil
}

// FormatReportText formats the report as human-readable text
func (r *Reporter) FormatReportText(report *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Workspace Report - %s\n", report.Period.Type)
	fmt.Fprintf(&b, "Period: %s to %s\n",
		report.Period.Start.Format("2006-01-02 15:04"),
		report.Period.End.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Total Time: %s\n\n", utils.FormatRoundedUnit(report.TotalSeconds))

	if len(report.Workspaces) == 0 {
		b.WriteString("No focus recorded for this period.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%-30s %10s %8s %10s\n", "Workspace", "Time", "Spans", "Percent")
	b.WriteString(strings.Repeat("-", 61) + "\n")

	for _, ws := range report.Workspaces {
		fmt.Fprintf(&b, "%-30s %10s %8d %9.1f%%\n",
			utils.Truncate(ws.WorkspaceName, 30),
			utils.FormatRoundedUnit(ws.TotalSeconds),
			ws.SpanCount,
			ws.Percentage)
	}

	return b.String()
}

// FormatReportJSON formats the report as JSON
func (r *Reporter) FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal JSON")
	}
	return string(data), nil
}

// FormatErrorsText lists error logs one per line, newest first
func (r *Reporter) FormatErrorsText(logs []*models.ErrorLog) string {
	if len(logs) == 0 {
		return "No errors recorded.\n"
	}

	var b strings.Builder
	for _, l := range logs {
		fmt.Fprintf(&b, "%s  %-10s %s\n", l.Timestamp.Format("2006-01-02 15:04:05"), l.Kind, l.ErrorMsg)
	}
	return b.String()
}
