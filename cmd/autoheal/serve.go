package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/autoheal/pkg/api"
	"github.com/cuemby/autoheal/pkg/config"
	"github.com/cuemby/autoheal/pkg/events"
	"github.com/cuemby/autoheal/pkg/log"
	"github.com/cuemby/autoheal/pkg/metrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the alarm webhook over HTTP",
	Long: `Run an HTTP server that accepts alarm notifications on POST /v1/alarms
(for an SNS HTTP(S) subscription or an EventBridge API destination) and
exposes /health, /ready, /live and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		metrics.SetVersion(Version)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		go logEvents(a.broker.Subscribe())

		return api.NewServer(cfg.ListenAddr, a.reconciler, cfg.WebhookToken).Start(ctx)
	},
}

// logEvents mirrors remediation events to the debug log
func logEvents(sub events.Subscriber) {
	logger := log.WithComponent("events")
	for e := range sub {
		fields := make(map[string]interface{}, len(e.Metadata))
		for k, v := range e.Metadata {
			fields[k] = v
		}
		logger.Debug().
			Str("event_id", e.ID).
			Str("event_type", string(e.Type)).
			Fields(fields).
			Msg(e.Message)
	}
}

func init() {
	serveCmd.Flags().String("listen", config.DefaultListenAddr, "Address to listen on")
}
