package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "FLUXDAO_"

// AppConfig is the [app] section of config.toml. Every field can be
// overridden from a FLUXDAO_ prefixed environment variable.
type AppConfig struct {
	Home string `mapstructure:"-"`
	// ExternalURL receives delegated actions. Empty answers every action
	// with success and is meant for development only.
	ExternalURL string `mapstructure:"external_url" env:"EXTERNAL_URL"`
	// BankURL receives transfer instructions. Empty only logs them.
	BankURL          string        `mapstructure:"bank_url" env:"BANK_URL"`
	IndexerListen    string        `mapstructure:"indexer_listen" env:"INDEXER_LISTEN"`
	DispatchRetries  uint64        `mapstructure:"dispatch_retries" env:"DISPATCH_RETRIES"`
	DispatchInterval time.Duration `mapstructure:"dispatch_interval" env:"DISPATCH_INTERVAL"`
}

func DefaultAppConfig(home string) *AppConfig {
	return &AppConfig{
		Home:             home,
		IndexerListen:    "127.0.0.1:8080",
		DispatchRetries:  5,
		DispatchInterval: 2 * time.Second,
	}
}

func (c *AppConfig) DataDir() string {
	return filepath.Join(c.Home, "data")
}

func (c *AppConfig) IndexerDBFile() string {
	return filepath.Join(c.Home, "data", "indexer.db")
}

func (c *AppConfig) ValidateBasic() error {
	if c.DispatchInterval < 0 {
		return errors.New("dispatch_interval can't be negative")
	}
	return nil
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *AppConfig `mapstructure:"app"`
}

func DefaultHome() string {
	return os.ExpandEnv("$HOME/.fluxdao")
}

func DefaultConfig(home string) *Config {
	if len(home) == 0 {
		home = DefaultHome()
	}
	cfg := &Config{
		Config: DefaultCometConfig(),
		App:    DefaultAppConfig(home),
	}
	cfg.SetRoot(home)
	_ = os.MkdirAll(filepath.Join(home, "config"), DefaultDirPerm)
	return cfg
}

func (c *Config) ConfigFile() string {
	return filepath.Join(c.RootDir, "config", "config.toml")
}

func (c *Config) ValidateBasic() error {
	if err := c.Config.ValidateBasic(); err != nil {
		return err
	}
	return c.App.ValidateBasic()
}

// LoadConfig reads home/config/config.toml over the defaults and applies
// the environment overrides.
func LoadConfig(home string) (*Config, error) {
	cfg := DefaultConfig(home)
	v := viper.New()
	v.SetConfigFile(cfg.ConfigFile())
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := ParseEnv(cfg.App); err != nil {
		return nil, err
	}
	cfg.SetRoot(cfg.RootDir)
	cfg.App.Home = cfg.RootDir
	if err := cfg.ValidateBasic(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// ParseEnv overlays FLUXDAO_ environment variables on target.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.Wrap(err, "parse env")
	}
	return nil
}

func InitializeNodeValidatorFiles(cfg *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(cfg.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := cfg.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := cfg.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

func DefaultCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 10
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	return cometConfig
}
