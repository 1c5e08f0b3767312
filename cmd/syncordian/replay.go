package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/syncordian/syncordian/pkg/config"
	"github.com/syncordian/syncordian/pkg/trace"
)

func newReplayCmd() *cobra.Command {
	var snapshotPath string

	cmd := &cobra.Command{
		Use:   "replay <trace.yaml>",
		Short: "Replay an edit trace across a bootstrapped peer set and report convergence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args[0], snapshotPath)
		},
	}
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "base path for the post-replay content snapshot; the run ID and .yaml are appended (overrides config)")
	return cmd
}

func runReplay(cmd *cobra.Command, tracePath, snapshotPath string) error {
	cfg := config.FromContext(cmd.Context())
	if snapshotPath == "" {
		snapshotPath = cfg.SnapshotOutputFile
	}

	runID := uuid.New()
	log := zap.S().With("run_id", runID.String())

	raw, err := os.ReadFile(tracePath)
	if err != nil {
		return fmt.Errorf("replay: read trace %s: %w", tracePath, err)
	}
	t, err := trace.Parse(raw)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infow("bootstrapping peers", "authors", t.Authors(), "trace", tracePath)
	sup, err := trace.Bootstrap(ctx, t, log)
	if err != nil {
		return fmt.Errorf("replay: bootstrap: %w", err)
	}
	defer sup.Teardown(context.Background())
	sup.SetQuiescenceTimeout(cfg.QuiescenceTimeoutOrDefault())

	if err := sup.Drive(ctx, t); err != nil {
		return fmt.Errorf("replay: drive: %w", err)
	}

	snap := sup.Snapshot()
	for _, author := range sup.AuthorOrder() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", author, snap[author])
	}

	converged := true
	var want string
	for i, author := range sup.AuthorOrder() {
		if i == 0 {
			want = snap[author]
			continue
		}
		if snap[author] != want {
			converged = false
			break
		}
	}
	if converged {
		fmt.Fprintln(cmd.OutOrStdout(), "converged: true")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "converged: false")
	}

	if snapshotPath != "" {
		path := snapshotPath + "." + runID.String() + ".yaml"
		if err := sup.WriteSnapshot(path); err != nil {
			return fmt.Errorf("replay: snapshot: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot written to %s\n", path)
	}

	return nil
}
