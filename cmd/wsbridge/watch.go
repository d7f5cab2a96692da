package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/actionsum/wsbridge/internal/bridge"
	"github.com/actionsum/wsbridge/internal/broadcast"
	"github.com/actionsum/wsbridge/internal/logging"
	"github.com/actionsum/wsbridge/pkg/compositor"
	"github.com/actionsum/wsbridge/pkg/detector"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var watchLayout bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print workspace updates as JSON lines",
	Long: `Connect to the compositor and print every normalized update as one JSON
object per line, starting with the full workspace list. Suitable for piping
into a status bar script.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVarP(&watchLayout, "layout", "l", false, "Print keyboard layout updates instead of workspaces")
	rootCmd.AddCommand(watchCmd)
}

type watchLine struct {
	Kind   string      `json:"kind"`
	Update interface{} `json:"update,omitempty"`
	Missed uint64      `json:"missed,omitempty"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	protocol, err := detector.New(cfg.Compositor)
	if err != nil {
		return errors.Wrap(err, "failed to initialize compositor")
	}
	defer protocol.Close()

	b, err := bridge.New(ctx, protocol,
		bridge.WithLogger(logging.NewLogger("bridge")),
		bridge.WithBufferSize(cfg.Bridge.BufferSize),
	)
	if err != nil {
		return err
	}
	defer b.Close()

	enc := json.NewEncoder(os.Stdout)

	if watchLayout {
		sub := b.SubscribeKeyboardLayout()
		defer sub.Close()
		return printUpdates(ctx, b, sub, enc, func(u compositor.KeyboardLayoutUpdate) string { return u.Kind() })
	}

	sub, err := b.SubscribeWorkspaces()
	if err != nil {
		return err
	}
	defer sub.Close()
	return printUpdates(ctx, b, sub, enc, func(u compositor.WorkspaceUpdate) string { return u.Kind() })
}

func printUpdates[T any](ctx context.Context, b *bridge.Bridge, sub *broadcast.Subscription[T], enc *json.Encoder, kind func(T) string) error {
	for {
		u, err := sub.Recv(ctx)
		var line watchLine
		switch {
		case err == nil:
			line = watchLine{Kind: kind(u), Update: u}
		case broadcast.IsLagged(err):
			var lagged *broadcast.LaggedError
			errors.As(err, &lagged)
			line = watchLine{Kind: "lagged", Missed: lagged.Missed}
		case errors.Is(err, broadcast.ErrClosed):
			return b.Err()
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}

		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write update: %w", err)
		}
	}
}
