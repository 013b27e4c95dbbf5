package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/calehh/fluxdao/crypto"
	"github.com/calehh/fluxdao/tx"
	"github.com/calehh/fluxdao/types"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type txArguments struct {
	Url    string
	Nonce  int64
	Skey   string
	NoSend bool
}

func txFlags(cmd *cobra.Command, args *txArguments) {
	urlFlag(cmd, &args.Url)
	keyFlag(cmd, &args.Skey)
	cmd.Flags().Int64VarP(&args.Nonce, "nonce", "n", -1, "account nonce, queried from the node when negative")
	cmd.Flags().BoolVarP(&args.NoSend, "nosend", "", false, "print the signed transaction instead of sending it")
}

// sendTx signs body with the key file and broadcasts it, filling in the
// chain id and the sender nonce from the node.
func sendTx(args *txArguments, tp tx.FluxTxType, body any) error {
	pv, err := crypto.LoadFilePV(args.Skey)
	if err != nil {
		return err
	}
	cli, err := http.New(args.Url, "/websocket")
	if err != nil {
		return errors.Wrap(err, "new client")
	}
	ctx := context.Background()
	gres, err := cli.Genesis(ctx)
	if err != nil {
		return errors.Wrap(err, "get chain genesis")
	}
	chainId := gres.Genesis.ChainID

	var nonce uint64
	if args.Nonce < 0 {
		res, err := cli.ABCIQuery(ctx, "/nonce/", []byte(pv.Address()))
		if err != nil {
			return errors.Wrap(err, "query nonce")
		}
		if err = json.Unmarshal(res.Response.Value, &nonce); err != nil {
			return errors.Wrapf(err, "decode nonce %q", res.Response.Log)
		}
	} else {
		nonce = uint64(args.Nonce)
	}

	btx := tx.NewFluxTx(tp, nonce, pv.PubKey(), body)
	if err = pv.SignTx(btx, chainId); err != nil {
		return errors.Wrap(err, "sign tx")
	}
	dat, err := tx.MarshalFluxTx(btx)
	if err != nil {
		return err
	}
	fmt.Println("address:", pv.Address())
	if args.NoSend {
		fmt.Println(string(dat))
		return nil
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return errors.Wrap(err, "broadcast tx")
	}
	out, _ := json.Marshal(res)
	fmt.Println(string(out))
	return nil
}

func parseProposalID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "proposal id %q", s)
	}
	return id, nil
}

var (
	proposeArgs     txArguments
	proposeDesc     string
	proposeKind     string
	proposeDeposit  uint64
	voteArgs        txArguments
	finalizeArgs    txArguments
	finalizeExtArgs txArguments
	exitArgs        txArguments
)

const proposeExample = `  fluxd propose --description "add carol" --deposit 10 \
    --kind '{"type":"NewCouncil","target":"CAROL"}'`

var proposeCmd = &cobra.Command{
	Use:     "propose",
	Short:   "Submit a proposal",
	Example: proposeExample,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind types.Kind
		if err := json.Unmarshal([]byte(proposeKind), &kind); err != nil {
			return errors.Wrap(err, "decode kind")
		}
		return sendTx(&proposeArgs, tx.FluxTxTypePropose, &tx.ProposeTx{
			Description: proposeDesc,
			Kind:        kind,
			Deposit:     proposeDeposit,
		})
	},
}

var voteCmd = &cobra.Command{
	Use:   "vote <proposal> <Yes|No>",
	Short: "Vote on a proposal as a council member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		vote, err := types.ParseVote(args[1])
		if err != nil {
			return err
		}
		return sendTx(&voteArgs, tx.FluxTxTypeVote, &tx.VoteTx{Proposal: id, Vote: vote})
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize <proposal>",
	Short: "Finalize a proposal whose vote period has ended",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		return sendTx(&finalizeArgs, tx.FluxTxTypeFinalize, &tx.FinalizeTx{Proposal: id})
	},
}

var finalizeExternalCmd = &cobra.Command{
	Use:   "finalize-external <proposal>",
	Short: "Submit an accepted delegated proposal to the external protocol again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		return sendTx(&finalizeExtArgs, tx.FluxTxTypeFinalizeExternal, &tx.FinalizeExternalTx{Proposal: id})
	},
}

var exitCmd = &cobra.Command{
	Use:   "exit",
	Short: "Leave the council",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendTx(&exitArgs, tx.FluxTxTypeExit, &tx.ExitTx{})
	},
}

func init() {
	txFlags(proposeCmd, &proposeArgs)
	proposeCmd.Flags().StringVar(&proposeDesc, "description", "", "proposal description")
	proposeCmd.Flags().StringVar(&proposeKind, "kind", "", "proposal kind as JSON")
	proposeCmd.Flags().Uint64Var(&proposeDeposit, "deposit", 0, "attached bond")
	_ = proposeCmd.MarkFlagRequired("kind")
	txFlags(voteCmd, &voteArgs)
	txFlags(finalizeCmd, &finalizeArgs)
	txFlags(finalizeExternalCmd, &finalizeExtArgs)
	txFlags(exitCmd, &exitArgs)
}
