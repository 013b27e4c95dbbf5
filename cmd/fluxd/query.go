package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/calehh/fluxdao/app"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	queryUrl   string
	queryFrom  uint64
	queryLimit uint64
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the committed governance state",
}

func abciQuery(path string, data []byte) error {
	cli, err := http.New(queryUrl, "/websocket")
	if err != nil {
		return errors.Wrap(err, "new client")
	}
	res, err := cli.ABCIQuery(context.Background(), path, data)
	if err != nil {
		return errors.Wrapf(err, "query %s", path)
	}
	if res.Response.Code != 0 {
		return errors.Errorf("query %s: code %d %s", path, res.Response.Code, res.Response.Log)
	}
	var out bytes.Buffer
	if err = json.Indent(&out, res.Response.Value, "", "  "); err != nil {
		return err
	}
	fmt.Printf("height: %d\n%s\n", res.Response.Height, out.String())
	return nil
}

var queryProposalCmd = &cobra.Command{
	Use:   "proposal <id>",
	Short: "Show one proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		return abciQuery("/proposal/", app.EncodeProposalID(id))
	},
}

var queryProposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "List proposals by id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.Marshal(app.ProposalsRequest{From: queryFrom, Limit: queryLimit})
		if err != nil {
			return err
		}
		return abciQuery("/proposals/", data)
	},
}

func simpleQuery(use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return abciQuery(path, nil)
		},
	}
}

func init() {
	queryCmd.PersistentFlags().StringVarP(&queryUrl, "url", "u", "http://127.0.0.1:26657", "fluxd rpc url")
	queryProposalsCmd.Flags().Uint64Var(&queryFrom, "from", 0, "first proposal id")
	queryProposalsCmd.Flags().Uint64Var(&queryLimit, "limit", app.DefaultQueryLimit, "max proposals")
	queryCmd.AddCommand(
		queryProposalCmd,
		queryProposalsCmd,
		simpleQuery("council", "List the council members", "/council/"),
		simpleQuery("params", "Show the governance parameters", "/params/"),
		simpleQuery("count", "Show the number of proposals", "/count/"),
	)
}
