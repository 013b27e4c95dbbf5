package tx

import (
	"github.com/pkg/errors"
)

type FluxTxType string

const (
	FluxTxTypeUnknown          FluxTxType = ""
	FluxTxTypePropose          FluxTxType = "propose"
	FluxTxTypeVote             FluxTxType = "vote"
	FluxTxTypeFinalize         FluxTxType = "finalize"
	FluxTxTypeFinalizeExternal FluxTxType = "finalize_external"
	FluxTxTypeExit             FluxTxType = "exit"
	FluxTxTypeConfirm          FluxTxType = "confirm"
)

const (
	FluxTxVersion0 uint8 = 0
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
)
