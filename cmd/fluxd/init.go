package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/calehh/fluxdao/config"
	"github.com/calehh/fluxdao/types"
	cmtos "github.com/cometbft/cometbft/libs/os"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/spf13/cobra"
)

type printInfo struct {
	ChainID    string          `json:"chain_id"`
	NodeID     string          `json:"node_id"`
	Address    string          `json:"address"`
	AppMessage json.RawMessage `json:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)
	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Long: `Initialize the node's configuration files. The node key becomes the
only council member and the account that relays external actions.`,
	Args: cobra.ExactArgs(0),
	RunE: initRun,
}

func init() {
	initCmd.Flags().BoolP(flagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().String(flagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().String(flagHome, "", "node home directory")
}

func initRun(cmd *cobra.Command, args []string) error {
	home, _ := cmd.Flags().GetString(flagHome)
	chainID, _ := cmd.Flags().GetString(flagChainID)
	overwrite, _ := cmd.Flags().GetBool(flagOverwrite)
	if chainID == "" {
		chainID = fmt.Sprintf("fluxdao-%v", rand.Uint64())
	}

	cfg := config.DefaultConfig(home)
	nodeID, pk, err := config.InitializeNodeValidatorFiles(cfg, nil)
	if err != nil {
		return err
	}
	self := types.AccountID(pk.Address().String())

	genFile := cfg.GenesisFile()
	if cmtos.FileExists(genFile) && !overwrite {
		return fmt.Errorf("genesis file %s already exists, use --%s to replace it", genFile, flagOverwrite)
	}
	appState, err := json.Marshal(types.DefaultGenesisState(self))
	if err != nil {
		return err
	}
	genesis := &types.GenesisDoc{
		GenesisTime:     time.Now().UTC(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators:      []types.GenesisValidator{{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower}},
		AppState:        appState,
	}
	if err = types.ExportGenesisFile(genesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file: %w", err)
	}
	config.WriteConfigFile(cfg.ConfigFile(), cfg)
	return displayInfo(printInfo{
		ChainID:    chainID,
		NodeID:     nodeID,
		Address:    string(self),
		AppMessage: appState,
	})
}
