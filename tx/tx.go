package tx

import (
	"encoding/json"

	"github.com/calehh/fluxdao/types"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/pkg/errors"
)

// FluxTx is the signed envelope of every governance call. The sender is the
// address of PubKey.
type FluxTx struct {
	Version uint8      `json:"version"`
	Type    FluxTxType `json:"type"`
	Nonce   uint64     `json:"nonce"`
	PubKey  []byte     `json:"pubkey"`
	Tx      any        `json:"tx"`
	Sig     []byte     `json:"sig"`
}

type ProposeTx struct {
	Description string     `json:"description"`
	Kind        types.Kind `json:"kind"`
	Deposit     uint64     `json:"deposit"`
}

func (t *ProposeTx) Input() *types.ProposalInput {
	return &types.ProposalInput{Description: t.Description, Kind: t.Kind}
}

type VoteTx struct {
	Proposal uint64     `json:"proposal"`
	Vote     types.Vote `json:"vote"`
}

type FinalizeTx struct {
	Proposal uint64 `json:"proposal"`
}

type FinalizeExternalTx struct {
	Proposal uint64 `json:"proposal"`
}

type ExitTx struct{}

type ConfirmTx struct {
	Proposal  uint64 `json:"proposal"`
	Succeeded bool   `json:"succeeded"`
}

type fluxTxTmpl[Tx any] struct {
	Version uint8      `json:"version"`
	Type    FluxTxType `json:"type"`
	Nonce   uint64     `json:"nonce"`
	PubKey  []byte     `json:"pubkey"`
	Tx      Tx         `json:"tx"`
	Sig     []byte     `json:"sig"`
}

func NewFluxTx(tp FluxTxType, nonce uint64, pubKey crypto.PubKey, body any) *FluxTx {
	return &FluxTx{
		Version: FluxTxVersion0,
		Type:    tp,
		Nonce:   nonce,
		PubKey:  pubKey.Bytes(),
		Tx:      body,
	}
}

// Caller is the upper-case hex address of the sender key.
func (tx *FluxTx) Caller() types.AccountID {
	return types.AccountID(ed25519.PubKey(tx.PubKey).Address().String())
}

// SigData is the JSON of the envelope with the chain id in place of the
// signature.
func (tx *FluxTx) SigData(chainID string) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = []byte(chainID)
	dat, err = json.Marshal(ntx)
	return
}

func (tx *FluxTx) Sign(priv crypto.PrivKey, chainID string) error {
	tx.PubKey = priv.PubKey().Bytes()
	dat, err := tx.SigData(chainID)
	if err != nil {
		return err
	}
	tx.Sig, err = priv.Sign(dat)
	return err
}

func (tx *FluxTx) Verify(chainID string) (bool, error) {
	if len(tx.PubKey) != ed25519.PubKeySize {
		return false, errors.Wrapf(ErrInvalidTx, "pubkey is %d bytes", len(tx.PubKey))
	}
	dat, err := tx.SigData(chainID)
	if err != nil {
		return false, err
	}
	return ed25519.PubKey(tx.PubKey).VerifySignature(dat, tx.Sig), nil
}

func parseFluxTxType(dat []byte) FluxTxType {
	var tx struct {
		Type FluxTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return FluxTxTypeUnknown
	}
	return tx.Type
}

func unmarshalFluxTx[Tx any](dat []byte) (btx *FluxTx, err error) {
	var txt fluxTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidTx, err.Error())
	}
	if txt.Version != FluxTxVersion0 {
		return nil, errors.Wrapf(ErrUnsupportedTxVersion, "%d", txt.Version)
	}
	btx = new(FluxTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.PubKey = txt.PubKey
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalFluxTx(dat []byte) (btx *FluxTx, err error) {
	tp := parseFluxTxType(dat)
	switch tp {
	case FluxTxTypePropose:
		return unmarshalFluxTx[ProposeTx](dat)
	case FluxTxTypeVote:
		return unmarshalFluxTx[VoteTx](dat)
	case FluxTxTypeFinalize:
		return unmarshalFluxTx[FinalizeTx](dat)
	case FluxTxTypeFinalizeExternal:
		return unmarshalFluxTx[FinalizeExternalTx](dat)
	case FluxTxTypeExit:
		return unmarshalFluxTx[ExitTx](dat)
	case FluxTxTypeConfirm:
		return unmarshalFluxTx[ConfirmTx](dat)
	default:
		err = errors.Wrapf(ErrUnsupportedTxType, "%q", tp)
	}
	return
}

func MarshalFluxTx(btx *FluxTx) (dat []byte, err error) {
	return json.Marshal(btx)
}
