package crypto

import (
	"path/filepath"
	"testing"

	"github.com/calehh/fluxdao/tx"
	"github.com/calehh/fluxdao/types"
	"github.com/cometbft/cometbft/privval"
)

func TestLoadFilePV(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "priv_validator_key.json")
	filePV := privval.GenFilePV(keyFile, filepath.Join(dir, "priv_validator_state.json"))
	filePV.Save()

	pv, err := LoadFilePV(keyFile)
	if err != nil {
		t.Fatal(err)
	}
	want := types.AccountID(filePV.Key.PubKey.Address().String())
	if pv.Address() != want {
		t.Fatalf("got %s, want %s", pv.Address(), want)
	}

	btx := tx.NewFluxTx(tx.FluxTxTypeExit, 0, pv.PubKey(), &tx.ExitTx{})
	if err = pv.SignTx(btx, "fluxdao-test"); err != nil {
		t.Fatal(err)
	}
	if ok, err := btx.Verify("fluxdao-test"); err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
	if btx.Caller() != want {
		t.Fatalf("got caller %s, want %s", btx.Caller(), want)
	}
}

func TestLoadFilePVMissing(t *testing.T) {
	if _, err := LoadFilePV(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Fatalf("got nil, want an error")
	}
}
