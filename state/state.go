package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/calehh/fluxdao/policy"
	"github.com/calehh/fluxdao/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

var (
	KeyState         = "s"
	KeyParams        = "m"
	KeyCouncil       = "c"
	KeyProposalIndex = "pi"
	KeyProposalBody  = "p%d"
	KeyLastVote      = "lv%s"
	KeyNonce         = "n%s"
)

// Outbox holds the instructions for collaborators produced while executing a
// block. It is released only after the block is committed.
type Outbox struct {
	// Collections are proposal bonds owed to the treasury.
	Collections []types.Transfer
	Transfers   []types.Transfer
	Actions     []types.ExternalAction
}

func (o *Outbox) Empty() bool {
	return len(o.Collections) == 0 && len(o.Transfers) == 0 && len(o.Actions) == 0
}

func (o *Outbox) clone() *Outbox {
	return &Outbox{
		Collections: append([]types.Transfer(nil), o.Collections...),
		Transfers:   append([]types.Transfer(nil), o.Transfers...),
		Actions:     append([]types.ExternalAction(nil), o.Actions...),
	}
}

// BankTransfers lists bond collections ahead of payouts and refunds.
func (o *Outbox) BankTransfers() []types.Transfer {
	if len(o.Collections) == 0 {
		return o.Transfers
	}
	return append(append([]types.Transfer(nil), o.Collections...), o.Transfers...)
}

// State is the governance aggregate: council, proposals and parameters. It is
// read from the iavl tree lazily and written back by Update.
type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64
	// view pins the reads of a committed state to its saved version.
	view *iavl.ImmutableTree

	header        *StateHeader
	params        *Params
	council       map[types.AccountID]struct{}
	proposalCount uint64

	proposals map[uint64]*types.Proposal
	lastVotes map[types.AccountID]uint64
	nonces    map[types.AccountID]uint64

	modifiedProposals map[uint64]struct{}
	modifiedLastVotes map[types.AccountID]struct{}
	modifiedNonces    map[types.AccountID]struct{}
	modifiedCouncil   bool
	modifiedParams    bool
	modifiedCount     bool

	outbox *Outbox
	events []abcitypes.Event
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	return &State{
		logger:            logger,
		db:                db,
		header:            new(StateHeader),
		params:            &Params{Policy: types.DefaultPolicy()},
		council:           make(map[types.AccountID]struct{}),
		proposals:         make(map[uint64]*types.Proposal),
		lastVotes:         make(map[types.AccountID]uint64),
		nonces:            make(map[types.AccountID]uint64),
		modifiedProposals: make(map[uint64]struct{}),
		modifiedLastVotes: make(map[types.AccountID]struct{}),
		modifiedNonces:    make(map[types.AccountID]struct{}),
		outbox:            &Outbox{},
	}
}

// nextState derives the working state of the next block.
func (s *State) nextState() *State {
	n := newState(s.db, s.logger)
	n.dbVer = s.dbVer
	n.header = s.header.Clone()
	if s.header.GetHash() != nil {
		n.header.Height = s.header.Height + 1
	}
	n.params = s.params.Clone()
	for m := range s.council {
		n.council[m] = struct{}{}
	}
	n.proposalCount = s.proposalCount
	return n
}

func copyMap[K comparable, V any](source map[K]V) map[K]V {
	res := make(map[K]V, len(source))
	for k, v := range source {
		res[k] = v
	}
	return res
}

// Clone returns an independent copy sharing only the tree.
func (s *State) Clone() *State {
	n := &State{
		logger:            s.logger,
		db:                s.db,
		dbVer:             s.dbVer,
		view:              s.view,
		header:            s.header.Clone(),
		params:            s.params.Clone(),
		council:           copyMap(s.council),
		proposalCount:     s.proposalCount,
		proposals:         make(map[uint64]*types.Proposal, len(s.proposals)),
		lastVotes:         copyMap(s.lastVotes),
		nonces:            copyMap(s.nonces),
		modifiedProposals: copyMap(s.modifiedProposals),
		modifiedLastVotes: copyMap(s.modifiedLastVotes),
		modifiedNonces:    copyMap(s.modifiedNonces),
		modifiedCouncil:   s.modifiedCouncil,
		modifiedParams:    s.modifiedParams,
		modifiedCount:     s.modifiedCount,
		outbox:            s.outbox.clone(),
		events:            append([]abcitypes.Event(nil), s.events...),
	}
	for id, p := range s.proposals {
		n.proposals[id] = p.Clone()
	}
	return n
}

// atomically runs fn on a clone and keeps the result only if fn succeeds.
// Events of the previous call are dropped.
func (s *State) atomically(fn func(n *State) error) error {
	n := s.Clone()
	n.events = nil
	if err := fn(n); err != nil {
		return err
	}
	*s = *n
	return nil
}

func (s *State) get(key string) (val []byte, err error) {
	if s.view != nil {
		val, err = s.view.Get([]byte(key))
	} else {
		val, err = s.db.Get([]byte(key))
	}
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (s *State) load() (err error) {
	val, err := s.get(KeyState)
	if err != nil {
		return err
	}
	if val == nil {
		return nil
	}
	if err = s.header.Unmarshal(val); err != nil {
		return err
	}
	if val, err = s.get(KeyProposalIndex); err != nil {
		return err
	}
	if val != nil {
		if err = rlp.DecodeBytes(val, &s.proposalCount); err != nil {
			return errors.Wrap(err, "decode proposal index")
		}
	}
	if val, err = s.get(KeyCouncil); err != nil {
		return err
	}
	if val != nil {
		var members []string
		if err = rlp.DecodeBytes(val, &members); err != nil {
			return errors.Wrap(err, "decode council")
		}
		for _, m := range members {
			s.council[types.AccountID(m)] = struct{}{}
		}
	}
	if val, err = s.get(KeyParams); err != nil {
		return err
	}
	if val != nil {
		params := new(Params)
		if err = json.Unmarshal(val, params); err != nil {
			return errors.Wrap(err, "decode params")
		}
		s.params = params
	}
	if h := s.db.Hash(); h != nil {
		s.calcHash(h, true)
	}
	return
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = append(s.header.RootHash[:0], rootHash...)
		s.header.Hash = append(s.header.Hash[:0], h[:]...)
	}
	return
}

func sortedKeys[K interface{ ~uint64 | ~string }, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (s *State) setRLP(key string, v any) error {
	val, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	_, err = s.db.Set([]byte(key), val)
	return err
}

// Update writes every modification of the block into the tree and returns
// the resulting app hash. The tree version is saved by save.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	if _, err = s.db.Set([]byte(KeyState), s.header.Marshal()); err != nil {
		return
	}
	if s.modifiedCount {
		if err = s.setRLP(KeyProposalIndex, s.proposalCount); err != nil {
			return
		}
	}
	for _, id := range sortedKeys(s.modifiedProposals) {
		var val []byte
		val, err = json.Marshal(s.proposals[id])
		if err != nil {
			return
		}
		if _, err = s.db.Set([]byte(fmt.Sprintf(KeyProposalBody, id)), val); err != nil {
			return
		}
	}
	if s.modifiedCouncil {
		members := make([]string, 0, len(s.council))
		for _, m := range s.Council() {
			members = append(members, string(m))
		}
		if err = s.setRLP(KeyCouncil, members); err != nil {
			return
		}
	}
	if s.modifiedParams {
		var val []byte
		val, err = json.Marshal(s.params)
		if err != nil {
			return
		}
		if _, err = s.db.Set([]byte(KeyParams), val); err != nil {
			return
		}
	}
	for _, m := range sortedKeys(s.modifiedLastVotes) {
		if err = s.setRLP(fmt.Sprintf(KeyLastVote, m), s.lastVotes[m]); err != nil {
			return
		}
	}
	for _, m := range sortedKeys(s.modifiedNonces) {
		if err = s.setRLP(fmt.Sprintf(KeyNonce, m), s.nonces[m]); err != nil {
			return
		}
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	s.modifiedProposals = make(map[uint64]struct{})
	s.modifiedLastVotes = make(map[types.AccountID]struct{})
	s.modifiedNonces = make(map[types.AccountID]struct{})
	s.modifiedCouncil, s.modifiedParams, s.modifiedCount = false, false, false
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}
	s.dbVer = ver
	h = s.calcHash(hash, true)
	err = s.pin()
	return
}

// pin makes s read the saved version dbVer instead of the working tree, so
// writes of the next block stay invisible until they are saved.
func (s *State) pin() error {
	if s.dbVer == 0 {
		return nil
	}
	view, err := s.db.GetImmutable(s.dbVer)
	if err != nil {
		return errors.Wrapf(err, "load version %d", s.dbVer)
	}
	s.view = view
	return nil
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

func (s *State) SetBlockTime(t time.Time) {
	s.header.Time = t.UnixNano()
}

// InitGenesis seeds parameters and council.
func (s *State) InitGenesis(g *types.GenesisState) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.params = ParamsFromGenesis(g)
	s.modifiedParams = true
	for _, m := range g.Council {
		s.council[m] = struct{}{}
	}
	s.modifiedCouncil = true
	return nil
}

func (s *State) Params() *Params {
	return s.params.Clone()
}

// Events returns the events emitted by the last successful call.
func (s *State) Events() []abcitypes.Event {
	return s.events
}

func (s *State) emit(ev abcitypes.Event) {
	s.events = append(s.events, ev)
}

// Outbox returns the collaborator instructions accumulated in this block.
func (s *State) Outbox() *Outbox {
	return s.outbox
}

func (s *State) transfer(id uint64, to types.AccountID, amount uint64, reason string) {
	t := types.Transfer{ProposalID: id, To: to, Amount: amount, Reason: reason}
	s.outbox.Transfers = append(s.outbox.Transfers, t)
	s.emit(types.EncodeEventTransfer(&t))
}

// collectBond asks the bank for the bond the proposal holds. Refunds never
// exceed it.
func (s *State) collectBond(p *types.Proposal) {
	if p.Bond == 0 {
		return
	}
	t := types.Transfer{ProposalID: p.ID, From: p.Proposer, Amount: p.Bond, Reason: types.TransferReasonBond}
	s.outbox.Collections = append(s.outbox.Collections, t)
	s.emit(types.EncodeEventTransfer(&t))
}

func (s *State) refundBond(p *types.Proposal) {
	if p.Bond == 0 {
		return
	}
	s.transfer(p.ID, p.Proposer, p.Bond, types.TransferReasonRefund)
}

func (s *State) resolve(p *types.Proposal, now time.Time) types.ProposalStatus {
	resolve := policy.ResolverFor(s.params.SimpleResolution)
	return resolve(policy.TallyOf(p), s.params.Policy, uint64(len(s.council)), now)
}
