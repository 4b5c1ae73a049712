// Package cli is the operator command line over the KYC agent.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"kyc-backend/internal/agent"
	"kyc-backend/internal/bootstrap"
	"kyc-backend/internal/ingest"
	"kyc-backend/internal/queue"
	"kyc-backend/internal/shared/config"
	"kyc-backend/internal/shared/telemetry"
)

// Agent is the subset of agent.Service the commands call.
type Agent interface {
	ProcessNewEmails(ctx context.Context) (ingest.BatchSummary, error)
	Ask(ctx context.Context, text string) (agent.Answer, error)
	SendNotifications(ctx context.Context, override string) (agent.NotificationSummary, error)
	RevalidateAll(ctx context.Context) (agent.RevalidationSummary, error)
	Report(ctx context.Context) (agent.Report, error)
}

// Env is what a command runs against.
type Env struct {
	Agent Agent
	// Queue is nil when no queue is configured.
	Queue            queue.Client
	ScheduleInterval time.Duration
}

// Loader builds the Env lazily so --help never opens connections.
type Loader func(ctx context.Context) (*Env, error)

// NewRootCommand assembles the kyc command tree.
func NewRootCommand(load Loader) *cobra.Command {
	var env *Env
	root := &cobra.Command{
		Use:           "kyc",
		Short:         "KYC compliance agent",
		Long:          "Process KYC emails, answer questions about customer records and send expiry notices.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if env != nil {
				return nil
			}
			loaded, err := load(cmd.Context())
			if err != nil {
				return err
			}
			env = loaded
			return nil
		},
	}
	current := func() *Env { return env }

	root.AddCommand(
		processCmd(current),
		askCmd(current),
		notifyCmd(current),
		revalidateCmd(current),
		reportCmd(current),
		enqueueCmd(current),
		scheduleCmd(current),
	)
	return root
}

// Execute runs the CLI against the configured environment.
func Execute(version string) error {
	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	defer telemetry.Sync()

	var app *bootstrap.App
	defer func() {
		if app != nil {
			app.Close()
		}
	}()

	root := NewRootCommand(func(ctx context.Context) (*Env, error) {
		built, err := bootstrap.Build(ctx, cfg, bootstrap.Options{})
		if err != nil {
			return nil, err
		}
		app = built
		return &Env{
			Agent:            app.Agent,
			Queue:            app.Queue,
			ScheduleInterval: cfg.ScheduleInterval,
		}, nil
	})
	root.Version = version

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

var errNoQueue = errors.New("no queue configured (set KYC_SQS_QUEUE_URL)")
