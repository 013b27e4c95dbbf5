package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calehh/fluxdao/app"
	"github.com/calehh/fluxdao/config"
	"github.com/calehh/fluxdao/crypto"
	"github.com/calehh/fluxdao/indexer"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/spf13/cobra"
)

var homeDir string

var rootCmd = &cobra.Command{
	Use:   "fluxd",
	Short: "fluxd runs a council governed DAO on CometBFT",
	Long: `fluxd runs the governance engine of a council governed DAO.
Proposals, votes and finalization are transactions; delegated decisions
are handed to the external protocol and confirmed back on chain.`,
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&homeDir, "homedir", "d", "", "home directory")
}

func run(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadConfig(homeDir)
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}

	pv := privval.LoadFilePV(
		cfg.PrivValidatorKeyFile(),
		cfg.PrivValidatorStateFile(),
	)
	signer, err := crypto.LoadFilePV(cfg.PrivValidatorKeyFile())
	if err != nil {
		log.Fatalf("failed to load validator key: %v", err)
	}

	nodeKey, err := p2p.LoadNodeKey(cfg.NodeKeyFile())
	if err != nil {
		log.Fatalf("failed to load node's key: %v", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(cfg.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}

	fluxApp, err := app.NewFluxApp(cfg.App, signer, logger)
	if err != nil {
		log.Fatalf("new App err:%v", err)
	}

	node, err := nm.NewNode(
		cfg.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(fluxApp),
		nm.DefaultGenesisDocProviderFunc(cfg.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(cfg.Instrumentation),
		logger,
	)
	if err != nil {
		log.Fatalf("Creating node: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err = fluxApp.Start(ctx, node.BlockStore()); err != nil {
		log.Fatalf("start app err %s", err.Error())
	}
	if err = node.Start(); err != nil {
		log.Fatalf("start comet node err %s", err.Error())
	}

	time.Sleep(time.Second * 5)
	if !node.IsRunning() {
		log.Fatal("comet node unable to run")
	}

	rpcUrl, err := url.Parse(cfg.RPC.ListenAddress)
	if err != nil {
		log.Fatalf("parse rpc url err %s", err.Error())
	}
	rpcUrl.Scheme = "http"
	chainIndexer, err := indexer.NewChainIndexer(logger, cfg.App.IndexerDBFile(), rpcUrl.String())
	if err != nil {
		log.Fatalf("new chain indexer err %s", err.Error())
	}
	go chainIndexer.Start(ctx)
	if cfg.App.IndexerListen != "" {
		service := indexer.NewService(cfg.App.IndexerListen, chainIndexer)
		go func() {
			if err := service.Start(); err != nil {
				logger.Error("indexer service stopped", "err", err)
			}
		}()
	}

	defer func() {
		log.Println("shut down...")
		cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := node.Stop(); err != nil {
				log.Printf("stop comet node err %s", err.Error())
			}
			node.Wait()
			fluxApp.Stop()
			chainIndexer.Close()
		}()
		timer := time.NewTimer(time.Second * 10)
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
			return
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
