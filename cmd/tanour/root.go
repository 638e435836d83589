// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zarbchain/tanour/x/contracts/runtime"
	"github.com/zarbchain/tanour/x/contracts/runtime/validators"
)

const (
	configFileKey       = "config"
	logLevelKey         = "log-level"
	meteringLimitKey    = "metering-limit"
	memoryLimitPagesKey = "memory-limit-pages"
	strictKey           = "strict"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:           "tanour",
		Short:         "tanour runs WebAssembly contracts in a metered sandbox",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String(configFileKey, "", "path to a config file")
	flags.String(logLevelKey, "info", "log level")
	flags.Uint64(meteringLimitKey, runtime.DefaultMeteringLimit, "metering points available to a contract")
	flags.Uint32(memoryLimitPagesKey, runtime.DefaultResourceLimits().MaxMemoryPages, "maximum linear memory of a contract in 64KiB pages")
	flags.Bool(strictKey, false, "reject contracts that do not follow the calling convention")

	root.AddCommand(
		newServeCmd(v),
		newProviderCmd(v),
		newExecCmd(v),
		newCreateFileCmd(v),
	)
	return root
}

// initConfig layers the environment and an optional config file under the
// command line flags.
func initConfig(v *viper.Viper, cmd *cobra.Command) error {
	v.SetEnvPrefix("tanour")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if path := v.GetString(configFileKey); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return nil
}

func newLogger(v *viper.Viper) (logging.Logger, error) {
	level, err := logging.ToLevel(v.GetString(logLevelKey))
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(
		"tanour",
		logging.NewWrappedCore(level, os.Stderr, logging.Plain.ConsoleEncoder()),
	), nil
}

func newRuntime(v *viper.Viper, log logging.Logger, opts ...func(*runtime.Config)) (*runtime.WasmRuntime, error) {
	cfg := runtime.NewConfig()
	cfg.MeteringLimit = v.GetUint64(meteringLimitKey)
	cfg.Limits.MaxMemoryPages = v.GetUint32(memoryLimitPagesKey)
	if v.GetBool(strictKey) {
		cfg.Validator = validators.NewDefaultValidator(
			validators.WithHostModule(cfg.HostModule),
			validators.WithDeterministicFloatingPoint(),
		)
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return runtime.NewRuntime(cfg, log)
}
