package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"custodia/internal/logging"
	"custodia/internal/metrics"
	"custodia/internal/walletapi"
)

func main() {
	var (
		addr      string
		token     string
		logLevel  string
		logFormat string
	)
	root := &cobra.Command{
		Use:          "walletapi",
		Short:        "In-memory reference wallet API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(os.Stderr, logLevel, logFormat)
			if err != nil {
				return err
			}
			if token == "" {
				token = os.Getenv("CUSTODIA_API_TOKEN")
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			srv := walletapi.NewServer(walletapi.ServerConfig{Token: token, Gatherer: reg}, logger, metrics.New(reg))

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errc := make(chan error, 1)
			go func() { errc <- httpServer.ListenAndServe() }()
			logger.Info("wallet api listening", "addr", addr, "auth", token != "")

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("wallet api stopped")
			return nil
		},
	}
	root.Flags().StringVar(&addr, "addr", "127.0.0.1:8090", "listen address")
	root.Flags().StringVar(&token, "token", "", "required bearer token (default $CUSTODIA_API_TOKEN)")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.Flags().StringVar(&logFormat, "log-format", "text", "log format: text, json, logfmt")

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
