package main

import "github.com/spf13/cobra"

const (
	flagHome      = "home"
	flagChainID   = "chain-id"
	flagOverwrite = "overwrite"
)

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, "url", "u", "http://127.0.0.1:26657", "fluxd rpc url")
}

func keyFlag(cmd *cobra.Command, skey *string) {
	cmd.Flags().StringVarP(skey, "skeyPath", "s", "./config/priv_validator_key.json", "private key path")
}
