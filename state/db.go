package state

import (
	"sync"

	"github.com/calehh/fluxdao/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
)

// StateDB owns the tree and the last committed State. Readers take the
// read lock; Update and SetState take the write lock. The committed State
// reads its saved version, never the working tree.
type StateDB struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	ldb    dbm.DB
	db     *iavl.MutableTree

	state *State
}

func NewStateDB(dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	ldb, err := dbm.NewDB(types.ModuleName, "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	db, err = newStateDB(ldb, logger)
	if err != nil {
		return nil, err
	}
	db.dir = dir
	return
}

// NewMemStateDB keeps the tree in memory.
func NewMemStateDB(logger cmtlog.Logger) (*StateDB, error) {
	return newStateDB(dbm.NewMemDB(), logger)
}

func newStateDB(ldb dbm.DB, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "fluxdb")
	tdb := iavl.NewMutableTree(ldb, 128, true, Cometbft2CosmosLogger(logger))
	version, err := tdb.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	st := newState(tdb, logger)
	st.dbVer = version
	err = st.load()
	if err != nil {
		logger.Error("from fluxdb load fail", "err", err)
		return nil, err
	}
	if err = st.pin(); err != nil {
		return nil, err
	}
	db = &StateDB{
		logger: logger,
		ldb:    ldb,
		db:     tdb,
		state:  st,
	}
	return
}

// Close releases the tree and the underlying store.
func (db *StateDB) Close() (err error) {
	if err = db.db.Close(); err != nil {
		return
	}
	err = db.ldb.Close()
	return
}

func (db *StateDB) Header() (header *StateHeader) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	header = db.state.Header().Clone()
	return
}

// State returns the committed state. Callers must not mutate it; use Clone.
func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state
}

func (db *StateDB) NewState() (st *State) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	st = db.state.nextState()
	return
}

// Update writes st into the working tree and returns the app hash.
func (db *StateDB) Update(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	return st.Update()
}

func (db *StateDB) SetState(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err = st.save()
	if err != nil {
		return
	}
	db.state = st
	return
}

func (db *StateDB) GetProposal(id uint64) (p *types.Proposal, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	p, err = db.state.Proposal(id)
	height = db.state.header.Height
	return
}

func (db *StateDB) GetProposals(from, limit uint64) (ps []*types.Proposal, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	ps, err = db.state.Proposals(from, limit)
	height = db.state.header.Height
	return
}

func (db *StateDB) GetCouncil() (council []types.AccountID, height uint64) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state.Council(), db.state.header.Height
}

func (db *StateDB) GetParams() (params *Params, height uint64) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state.Params(), db.state.header.Height
}

func (db *StateDB) GetProposalCount() (count uint64, height uint64) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state.ProposalCount(), db.state.header.Height
}

func (db *StateDB) GetNonce(id types.AccountID) (nonce uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state.Nonce(id)
}

func (db *StateDB) GetPendingActions() ([]types.ExternalAction, error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state.PendingActions()
}
