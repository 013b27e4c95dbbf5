package state

import (
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	headerFieldHeight   protowire.Number = 1
	headerFieldChainId  protowire.Number = 2
	headerFieldHash     protowire.Number = 3
	headerFieldRootHash protowire.Number = 4
	headerFieldTime     protowire.Number = 5
)

// StateHeader is stored under KeyState in protobuf wire format.
type StateHeader struct {
	Height   uint64
	ChainId  string
	Hash     []byte
	RootHash []byte
	// Time of the last executed block, unix nanoseconds.
	Time int64
}

func (h *StateHeader) GetHash() []byte {
	if h == nil {
		return nil
	}
	return h.Hash
}

func (h *StateHeader) BlockTime() time.Time {
	return time.Unix(0, h.Time).UTC()
}

func (h *StateHeader) Clone() *StateHeader {
	n := *h
	if h.Hash != nil {
		n.Hash = append([]byte(nil), h.Hash...)
	}
	if h.RootHash != nil {
		n.RootHash = append([]byte(nil), h.RootHash...)
	}
	return &n
}

func (h *StateHeader) Marshal() []byte {
	var b []byte
	if h.Height != 0 {
		b = protowire.AppendTag(b, headerFieldHeight, protowire.VarintType)
		b = protowire.AppendVarint(b, h.Height)
	}
	if h.ChainId != "" {
		b = protowire.AppendTag(b, headerFieldChainId, protowire.BytesType)
		b = protowire.AppendString(b, h.ChainId)
	}
	if len(h.Hash) != 0 {
		b = protowire.AppendTag(b, headerFieldHash, protowire.BytesType)
		b = protowire.AppendBytes(b, h.Hash)
	}
	if len(h.RootHash) != 0 {
		b = protowire.AppendTag(b, headerFieldRootHash, protowire.BytesType)
		b = protowire.AppendBytes(b, h.RootHash)
	}
	if h.Time != 0 {
		b = protowire.AppendTag(b, headerFieldTime, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.Time))
	}
	return b
}

func (h *StateHeader) Unmarshal(b []byte) error {
	*h = StateHeader{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "state header")
		}
		b = b[n:]
		switch {
		case num == headerFieldHeight && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			h.Height = v
		case num == headerFieldChainId && typ == protowire.BytesType:
			var v string
			v, n = protowire.ConsumeString(b)
			h.ChainId = v
		case num == headerFieldHash && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			h.Hash = append([]byte(nil), v...)
		case num == headerFieldRootHash && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			h.RootHash = append([]byte(nil), v...)
		case num == headerFieldTime && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			h.Time = int64(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "state header")
		}
		b = b[n:]
	}
	return nil
}
