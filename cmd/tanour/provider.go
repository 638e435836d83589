// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zarbchain/tanour/x/contracts/chain"
)

const providerAddressKey = "provider-address"

func newProviderCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "serve a local backing store as the chain API of one contract",
		RunE: func(*cobra.Command, []string) error {
			log, err := newLogger(v)
			if err != nil {
				return err
			}
			local, err := openChain(v)
			if err != nil {
				return err
			}
			defer func() {
				if err := local.close(); err != nil {
					log.Warn("failed to close store", zap.Error(err))
				}
			}()

			handler, err := chain.NewHandler(local)
			if err != nil {
				return err
			}
			log.Info("serving contract",
				zap.Stringer("address", local.address),
				zap.Int("codeSize", len(local.code)),
			)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServers(ctx, log, &http.Server{
				Addr:              v.GetString(providerAddressKey),
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			})
		},
	}
	cmd.Flags().String(providerAddressKey, "127.0.0.1:9660", "address of the chain JSON-RPC endpoint")
	addStoreFlags(cmd)
	return cmd
}
