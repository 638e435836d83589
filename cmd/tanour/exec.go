// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zarbchain/tanour/x/contracts/runtime"
	"github.com/zarbchain/tanour/x/contracts/server"
)

const (
	actionKey = "action"
	argsKey   = "args"
)

func newExecCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "run one contract call against a local backing store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger(v)
			if err != nil {
				return err
			}
			args, err := hex.DecodeString(v.GetString(argsKey))
			if err != nil {
				return fmt.Errorf("invalid args: %w", err)
			}
			r, err := newRuntime(v, log)
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

			cfg := server.NewConfig()
			cfg.MeteringLimit = v.GetUint64(meteringLimitKey)
			cfg.MemoryLimitPages = v.GetUint32(memoryLimitPagesKey)
			tx := &server.Transaction{
				Address: local.address,
				Action:  runtime.CallKind(v.GetString(actionKey)),
				Code:    local.code,
				Args:    args,
			}
			res, err := server.NewExecutor(cfg, r, log).Execute(cmd.Context(), local, tx)
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "data: %x\nconsumed: %d\nremaining: %d\n",
					res.Data, res.ConsumedPoints, res.RemainingPoints)
			}
			return err
		},
	}
	cmd.Flags().String(actionKey, string(runtime.CallProcess), "entry point: instantiate, process or query")
	cmd.Flags().String(argsKey, "", "hex encoded message passed to the contract")
	addStoreFlags(cmd)
	return cmd
}
