// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zarbchain/tanour/codec"
	"github.com/zarbchain/tanour/x/contracts/storage"
)

const (
	ownerKey      = "owner"
	validUntilKey = "valid-until"
	saltKey       = "salt"
)

func newCreateFileCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-file",
		Short: "create a storage file holding contract code and zeroed pages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := v.GetString(pathKey)
			if path == "" {
				return errors.New("missing --path")
			}
			code, err := os.ReadFile(v.GetString(codeKey))
			if err != nil {
				return err
			}
			var owner codec.Address
			if s := v.GetString(ownerKey); s != "" {
				owner, err = codec.ParseAddress(s)
				if err != nil {
					return err
				}
			}

			file, err := storage.CreateFile(path, storage.HeaderParams{
				Owner:      owner,
				CreatedAt:  uint32(time.Now().Unix()),
				ValidUntil: v.GetUint32(validUntilKey),
			}, code, v.GetUint32(pagesKey), storage.WithPageSize(v.GetUint32(pageSizeKey)))
			if err != nil {
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}

			address := codec.CreateAddress(owner, code, []byte(v.GetString(saltKey)))
			fmt.Fprintln(cmd.OutOrStdout(), address)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String(pathKey, "", "path of the storage file to create")
	flags.String(codeKey, "", "path of the contract code")
	flags.String(ownerKey, "", "hex address of the owner")
	flags.Uint32(validUntilKey, 0, "last block the storage is paid for")
	flags.Uint32(pagesKey, 16, "number of pages")
	flags.Uint32(pageSizeKey, storage.DefaultPageSize, "page size in bytes")
	flags.String(saltKey, "", "salt mixed into the contract address")
	return cmd
}
