package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/clouddiag"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/config"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the diagnostics daemon",
	Long: `Run the diagnostics daemon: the HTTP trigger API, the signal triggers,
the resource monitor and live configuration reload.

Examples:
  # Start with defaults (127.0.0.1:8470)
  clouddiag serve

  # Listen on all interfaces
  clouddiag serve --host 0.0.0.0 --port 9000

  # Signals only
  clouddiag serve --no-api`,
	RunE: runServe,
}

var (
	serveHost  string
	servePort  int
	serveNoAPI bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"Host address to bind to (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"Port to listen on (default from config)")
	serveCmd.Flags().BoolVar(&serveNoAPI, "no-api", false,
		"Disable the HTTP trigger API")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, loader, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort != 0 {
		cfg.API.Port = servePort
	}
	if serveNoAPI {
		cfg.API.Enabled = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	diag, err := clouddiag.New(func(o *clouddiag.Options) {
		o.Config = cfg
		o.BaseContext = ctx
	})
	if err != nil {
		return err
	}
	logger := diag.Logger()
	defer func() {
		if closeErr := diag.Close(); closeErr != nil {
			fmt.Fprintln(os.Stderr, "closing logger:", closeErr)
		}
	}()

	logger.Info("diagnostics ready",
		slog.String("name", cfg.Name),
		slog.String("tier", diag.Tier().String()),
		slog.Bool("connected", diag.Connected()),
		slog.String("dump_dir", cfg.DumpDir),
	)

	g, gctx := errgroup.WithContext(ctx)
	diag.Start(gctx)

	if cfg.API.Enabled {
		webCfg := web.DefaultConfig()
		webCfg.Host = cfg.API.Host
		webCfg.Port = cfg.API.Port
		webCfg.CORSOrigins = cfg.API.CORSOrigins

		server := web.New(webCfg, diag.Coordinator(), logger.WithComponent("http").Logger,
			web.WithModes(cfg.Modes()),
			web.WithMonitor(diag.Monitor()),
			web.WithServiceName(cfg.Name),
			web.WithRedactor(logger.Sanitize),
		)
		g.Go(func() error {
			defer diag.Recover()
			return server.Run(gctx)
		})
	}

	watching := loader.Watch(func(next *config.Config) {
		applyReload(diag, next)
	}, func(err error) {
		logger.Warn("config reload rejected", slog.String("error", err.Error()))
	})
	if watching {
		logger.Info("watching config file", slog.String("path", loader.ConfigFile()))
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	logger.Info("shutting down, waiting for in-flight captures")
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// applyReload applies the settings that may change at runtime. Only the
// Object Storage container is re-read; the tier stays as resolved.
func applyReload(diag *clouddiag.Diagnostics, next *config.Config) {
	current := diag.Coordinator().Destination().Container()
	if next.ObjectStorage == current {
		return
	}
	diag.SetContainer(next.ObjectStorage)
	diag.Logger().Info("object storage container changed",
		slog.String("from", current),
		slog.String("to", next.ObjectStorage),
	)
}

