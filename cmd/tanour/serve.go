// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zarbchain/tanour/x/contracts/runtime"
	"github.com/zarbchain/tanour/x/contracts/server"
)

const (
	httpAddressKey     = "http-address"
	metricsAddressKey  = "metrics-address"
	providerTimeoutKey = "provider-timeout"

	shutdownTimeout = 5 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the execute endpoint over JSON-RPC",
		RunE: func(*cobra.Command, []string) error {
			log, err := newLogger(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, v, log)
		},
	}
	cmd.Flags().String(httpAddressKey, "127.0.0.1:9650", "address of the JSON-RPC endpoint")
	cmd.Flags().String(metricsAddressKey, "127.0.0.1:9651", "address of the metrics endpoint, empty to disable")
	cmd.Flags().Duration(providerTimeoutKey, 30*time.Second, "deadline for one transaction including provider round trips")
	return cmd
}

func serve(ctx context.Context, v *viper.Viper, log logging.Logger) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	r, err := newRuntime(v, log, func(cfg *runtime.Config) {
		cfg.Registerer = registry
	})
	if err != nil {
		return err
	}

	cfg := server.NewConfig()
	cfg.MeteringLimit = v.GetUint64(meteringLimitKey)
	cfg.MemoryLimitPages = v.GetUint32(memoryLimitPagesKey)
	cfg.ProviderTimeout = v.GetDuration(providerTimeoutKey)
	handler, err := server.NewHandler(server.NewExecutor(cfg, r, log))
	if err != nil {
		return err
	}

	servers := []*http.Server{{
		Addr:              v.GetString(httpAddressKey),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if addr := v.GetString(metricsAddressKey); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}
	return runServers(ctx, log, servers...)
}

// runServers serves until [ctx] is done or one server fails, then shuts all
// of them down.
func runServers(ctx context.Context, log logging.Logger, servers ...*http.Server) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			log.Info("listening", zap.String("address", srv.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("failed to shut down server",
					zap.String("address", srv.Addr),
					zap.Error(err),
				)
			}
		}
		return nil
	})
	return g.Wait()
}
