package crypto

import (
	"os"

	"github.com/calehh/fluxdao/tx"
	"github.com/calehh/fluxdao/types"
	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
	"github.com/pkg/errors"
)

// PV is the key a node or a CLI user signs governance txs with. It is read
// from a CometBFT priv_validator_key.json file.
type PV struct {
	privateKey crypto.PrivKey
	publicKey  crypto.PubKey
}

func NewPV(priv crypto.PrivKey) *PV {
	return &PV{privateKey: priv, publicKey: priv.PubKey()}
}

func LoadFilePV(keyFilePath string) (*PV, error) {
	keyJSONBytes, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	pvKey := privval.FilePVKey{}
	err = cmtjson.Unmarshal(keyJSONBytes, &pvKey)
	if err != nil {
		return nil, errors.Wrapf(err, "reading PrivValidator key from %v", keyFilePath)
	}
	return &PV{
		privateKey: pvKey.PrivKey,
		publicKey:  pvKey.PubKey,
	}, nil
}

func (k *PV) PubKey() crypto.PubKey {
	return k.publicKey
}

func (k *PV) PublicKey() []byte {
	return k.publicKey.Bytes()
}

// Address is the account the key signs as.
func (k *PV) Address() types.AccountID {
	return types.AccountID(k.publicKey.Address().String())
}

func (k *PV) Sign(data []byte) ([]byte, error) {
	return k.privateKey.Sign(data)
}

func (k *PV) SignTx(btx *tx.FluxTx, chainID string) error {
	return btx.Sign(k.privateKey, chainID)
}
