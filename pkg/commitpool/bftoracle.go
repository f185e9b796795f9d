package commitpool

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// BFTOracle is the capability interface the pool reads BFT state through.
// It is a dynamic oracle object in the source material; here it is a plain
// Go interface so the pool is polymorphic over any implementation, allowing
// test doubles (see pkg/bftoracle).
type BFTOracle interface {
	// GetBFTHeights returns the current certified/precommitted watermarks.
	GetBFTHeights(ctx context.Context) (BFTHeights, error)

	// GetBFTParameters returns the validator set and certificate threshold
	// in effect at height h.
	GetBFTParameters(ctx context.Context, h uint64) (BFTParameters, error)

	// GetNextHeightBFTParameters returns the first height > h at which
	// parameters change, or a *PoolError{Kind: ErrBFTParameterNotFound} if
	// none is known yet.
	GetNextHeightBFTParameters(ctx context.Context, h uint64) (uint64, error)

	// ExistBFTParameters reports whether parameters are known to change at
	// height h (used to admit otherwise out-of-window commits, §4.3(d)).
	ExistBFTParameters(ctx context.Context, h uint64) (bool, error)

	// GetValidator resolves one validator's entry at height h.
	GetValidator(ctx context.Context, addr common.Address, h uint64) (Validator, error)

	// GetCurrentValidators returns the validator set currently in effect.
	GetCurrentValidators(ctx context.Context) ([]Validator, error)
}
