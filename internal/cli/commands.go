package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"kyc-backend/internal/queue"
	"kyc-backend/internal/shared/telemetry"
)

func processCmd(env func() *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Ingest new KYC emails from the inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := env().Agent.ProcessNewEmails(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			return nil
		},
	}
}

func askCmd(env func() *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a free-text question or give a command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			answer, err := env().Agent.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
			return nil
		},
	}
}

func notifyCmd(env func() *Env) *cobra.Command {
	var override string
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send expiry notices and reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := env().Agent.SendNotifications(cmd.Context(), override)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&override, "override-email", "", "Send every notice to this address instead of the customer")
	return cmd
}

func revalidateCmd(env func() *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "revalidate",
		Short: "Replay compliance rules over every stored record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := env().Agent.RevalidateAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			return nil
		},
	}
}

func reportCmd(env func() *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print record counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := env().Agent.Report(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.String())
			return nil
		},
	}
}

func enqueueCmd(env func() *Env) *cobra.Command {
	var override string
	cmd := &cobra.Command{
		Use:       "enqueue <process_emails|send_notifications|revalidate_all>",
		Short:     "Queue an operation for the worker",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(queue.OpProcessEmails), string(queue.OpSendNotifications), string(queue.OpRevalidateAll)},
		RunE: func(cmd *cobra.Command, args []string) error {
			op := queue.Op(args[0])
			if !op.Valid() {
				return fmt.Errorf("unknown op %q", args[0])
			}
			q := env().Queue
			if q == nil {
				return errNoQueue
			}
			msg := queue.NewCommand(op, override, uuid.NewString(), time.Now())
			if err := q.Send(cmd.Context(), msg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s request=%s\n", op, msg.RequestID)
			return nil
		},
	}
	cmd.Flags().StringVar(&override, "override-email", "", "Recipient override for send_notifications")
	return cmd
}

func scheduleCmd(env func() *Env) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Process the inbox and print the report on a fixed interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interval := every
			if interval <= 0 {
				interval = env().ScheduleInterval
			}
			if interval <= 0 {
				interval = 30 * time.Minute
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runSchedule(ctx, cmd, env(), interval)
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "Interval between runs (default SCHEDULE_INTERVAL)")
	return cmd
}

// runSchedule runs once immediately, then on every tick until ctx ends. A
// failed run is logged and the loop keeps going.
func runSchedule(ctx context.Context, cmd *cobra.Command, env *Env, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	telemetry.Info("schedule.started", map[string]any{"interval": interval.String()})

	for {
		scheduledRun(ctx, cmd, env)
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func scheduledRun(ctx context.Context, cmd *cobra.Command, env *Env) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scheduled KYC processing %s\n", time.Now().Format("2006-01-02 15:04:05"))

	summary, err := env.Agent.ProcessNewEmails(ctx)
	if err != nil {
		telemetry.Error("schedule.process_failed", map[string]any{"error": err.Error()})
		return
	}
	fmt.Fprintln(out, summary.String())

	report, err := env.Agent.Report(ctx)
	if err != nil {
		telemetry.Error("schedule.report_failed", map[string]any{"error": err.Error()})
		return
	}
	fmt.Fprint(out, report.String())
}
