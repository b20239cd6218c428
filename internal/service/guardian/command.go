package guardian

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/dverna/alarm-guardian/internal/config"
	"github.com/dverna/alarm-guardian/internal/escalation"
	"github.com/dverna/alarm-guardian/internal/history"
	"github.com/dverna/alarm-guardian/internal/integration"
	"github.com/dverna/alarm-guardian/internal/logger"
)

// Options controls the alarm-guardian process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// AuditFile overrides the audit trail path from the configuration.
	AuditFile string
}

// Run wires the guardian from configuration and serves the JSON-lines feed
// on stdin/stdout until the context is cancelled or stdin closes.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-guardian")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	sinks := history.MultiSink{history.LogSink{}, history.NewMemorySink(0)}

	auditFile := settings.AuditFile
	if opts.AuditFile != "" {
		auditFile = opts.AuditFile
	}

	if auditFile != "" {
		fileSink, sinkErr := history.NewFileSink(auditFile)
		if sinkErr != nil {
			return fmt.Errorf("open audit file: %w", sinkErr)
		}

		defer fileSink.Close() //nolint:errcheck // Best-effort close on shutdown.

		sinks = append(sinks, fileSink)
	}

	notifier := integration.LogNotifier{}

	esc := escalation.NewController(
		escalation.Config{
			CallGrace:        settings.Escalation.CallGrace,
			CallDelay:        settings.Escalation.CallDelay,
			ClipPollInterval: settings.Escalation.ClipPollInterval,
			ClipMaxWait:      settings.Escalation.ClipMaxWait,
			PrimaryNumber:    settings.Escalation.PrimaryNumber,
			SecondaryNumber:  settings.Escalation.SecondaryNumber,
		},
		notifier,
		integration.LogCaller{},
		integration.ReadyClips{},
		integration.LogSiren{},
	)

	svc := NewService(settings, integration.LogPanel{}, notifier, esc, sinks)
	feed := NewFeed(svc, os.Stdout)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := svc.Run(groupCtx)
		if err != nil && groupCtx.Err() != nil {
			// Normal shutdown.
			return nil
		}

		return err
	})

	group.Go(func() error {
		return feed.Serve(groupCtx, os.Stdin)
	})

	return group.Wait()
}
