package state

import (
	"fmt"

	"github.com/calehh/fluxdao/tx"
	"github.com/calehh/fluxdao/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

func (s *State) Nonce(id types.AccountID) (uint64, error) {
	if n, ok := s.nonces[id]; ok {
		return n, nil
	}
	val, err := s.get(fmt.Sprintf(KeyNonce, id))
	if err != nil || val == nil {
		return 0, err
	}
	var n uint64
	if err = rlp.DecodeBytes(val, &n); err != nil {
		return 0, errors.Wrapf(err, "decode nonce of %s", id)
	}
	return n, nil
}

// IncNonce consumes the sender nonce of an executed tx.
func (s *State) IncNonce(id types.AccountID) error {
	n, err := s.Nonce(id)
	if err != nil {
		return err
	}
	s.nonces[id] = n + 1
	s.modifiedNonces[id] = struct{}{}
	return nil
}

// Verify checks the signature and nonce of btx. With allowNonceGap a nonce
// ahead of the stored one passes, for txs still queued in the mempool.
func (s *State) Verify(btx *tx.FluxTx, allowNonceGap bool) error {
	nonce, err := s.Nonce(btx.Caller())
	if err != nil {
		return err
	}
	if !(nonce == btx.Nonce || (allowNonceGap && nonce < btx.Nonce)) {
		return errors.Wrapf(ErrNonceInvalid, "want %d, got %d", nonce, btx.Nonce)
	}
	ok, err := btx.Verify(s.header.ChainId)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSigInvalid
	}
	return nil
}
