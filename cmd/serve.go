package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/placemap/internal/api"
	"github.com/sells-group/placemap/internal/model"
	"github.com/sells-group/placemap/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve visualization sessions over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		src, closeSrc, err := openSource(ctx, cfg.Source)
		if err != nil {
			return err
		}
		defer closeSrc()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newAPIServer(ctx, src).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("source", cfg.Source.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newAPIServer wires the HTTP adapter from config.
func newAPIServer(ctx context.Context, src session.Loader) *api.Server {
	metric, err := model.ParseMetric(cfg.Chart.Metric)
	if err != nil {
		metric = model.MetricPopulation
	}
	return api.New(ctx, src, api.Options{
		TopN:           cfg.Chart.TopN,
		Metric:         metric,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		LoadRate:       cfg.Server.LoadRate,
		LoadBurst:      cfg.Server.LoadBurst,
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
