package types

import (
	"encoding/json"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const ModuleName = "fluxdao"
const DefaultPower = 1000

const (
	DefaultVotePeriod  = 72 * time.Hour
	DefaultGracePeriod = 24 * time.Hour
)

var ErrGenesisInvalid = errors.New("genesis app state invalid")

// GenesisState is the app_state section of the genesis file.
type GenesisState struct {
	Purpose          string        `json:"purpose" mapstructure:"purpose"`
	Council          []AccountID   `json:"council" mapstructure:"council"`
	Bond             uint64        `json:"bond" mapstructure:"bond"`
	CouncilBond      uint64        `json:"council_bond" mapstructure:"council_bond"`
	VotePeriod       time.Duration `json:"vote_period" mapstructure:"vote_period"`
	GracePeriod      time.Duration `json:"grace_period" mapstructure:"grace_period"`
	Policy           Policy        `json:"policy" mapstructure:"policy"`
	ExternalAddress  string        `json:"external_address" mapstructure:"external_address"`
	SelfAddress      AccountID     `json:"self_address" mapstructure:"self_address"`
	CouncilOnly      bool          `json:"council_only" mapstructure:"council_only"`
	SimpleResolution bool          `json:"simple_resolution" mapstructure:"simple_resolution"`
}

func DefaultGenesisState(self AccountID) *GenesisState {
	return &GenesisState{
		Purpose:     "fluxdao",
		Council:     []AccountID{self},
		VotePeriod:  DefaultVotePeriod,
		GracePeriod: DefaultGracePeriod,
		Policy:      DefaultPolicy(),
		SelfAddress: self,
	}
}

func (g *GenesisState) Validate() error {
	if len(g.Council) == 0 {
		return errors.Wrap(ErrGenesisInvalid, "empty council")
	}
	seen := make(map[AccountID]struct{}, len(g.Council))
	for _, m := range g.Council {
		if m == "" {
			return errors.Wrap(ErrGenesisInvalid, "empty council member")
		}
		if _, ok := seen[m]; ok {
			return errors.Wrapf(ErrGenesisInvalid, "duplicate council member %s", m)
		}
		seen[m] = struct{}{}
	}
	if g.SelfAddress == "" {
		return errors.Wrap(ErrGenesisInvalid, "empty self address")
	}
	if g.VotePeriod <= 0 {
		return errors.Wrapf(ErrGenesisInvalid, "vote period %v", g.VotePeriod)
	}
	if g.GracePeriod < 0 {
		return errors.Wrapf(ErrGenesisInvalid, "grace period %v", g.GracePeriod)
	}
	if err := g.Policy.Validate(); err != nil {
		return errors.Wrap(ErrGenesisInvalid, err.Error())
	}
	return nil
}

// MarshalJSON writes durations in their string form so the genesis file stays
// hand-editable.
func (g *GenesisState) MarshalJSON() ([]byte, error) {
	type alias GenesisState
	return json.Marshal(&struct {
		*alias
		VotePeriod  string `json:"vote_period"`
		GracePeriod string `json:"grace_period"`
	}{
		alias:       (*alias)(g),
		VotePeriod:  g.VotePeriod.String(),
		GracePeriod: g.GracePeriod.String(),
	})
}

// DecodeGenesisState reads the app_state bytes. Durations may be given as
// strings ("72h") or as nanoseconds.
func DecodeGenesisState(appState []byte) (*GenesisState, error) {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(appState, &raw); err != nil {
		return nil, errors.Wrap(ErrGenesisInvalid, err.Error())
	}
	g := &GenesisState{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           g,
	})
	if err != nil {
		return nil, err
	}
	if err = decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(ErrGenesisInvalid, err.Error())
	}
	if len(g.Policy) == 0 {
		g.Policy = DefaultPolicy()
	}
	return g, nil
}

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (genDoc *GenesisDoc) ValidateAndComplete() error {
	if genDoc.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}
	if genDoc.InitialHeight < 0 {
		return errors.Errorf("initial_height cannot be negative (got %v)", genDoc.InitialHeight)
	}
	if genDoc.InitialHeight == 0 {
		genDoc.InitialHeight = 1
	}
	if genDoc.GenesisTime.IsZero() {
		genDoc.GenesisTime = time.Now().Round(0).UTC()
	}
	if len(genDoc.AppState) != 0 {
		st, err := DecodeGenesisState(genDoc.AppState)
		if err != nil {
			return err
		}
		return st.Validate()
	}
	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}
