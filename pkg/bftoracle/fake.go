// Package bftoracle provides implementations of the commitpool.BFTOracle
// capability interface: an in-memory fake for tests, and a CometBFT
// RPC-backed adapter for production use.
package bftoracle

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vellichain/commitpool/pkg/commitpool"
)

// Fake is an in-memory commitpool.BFTOracle test double. Tests populate
// its fields directly or via the setter methods; all methods are
// goroutine-safe for tests that exercise concurrency.
type Fake struct {
	mu sync.Mutex

	Heights        commitpool.BFTHeights
	ParametersByHeight map[uint64]commitpool.BFTParameters
	// ParameterChangeHeights lists every height at which a new
	// BFTParameters entry becomes effective, ascending.
	ParameterChangeHeights []uint64
}

// NewFake returns an empty Fake oracle.
func NewFake() *Fake {
	return &Fake{
		ParametersByHeight: make(map[uint64]commitpool.BFTParameters),
	}
}

// SetHeights sets the current BFT watermark heights.
func (f *Fake) SetHeights(h commitpool.BFTHeights) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Heights = h
}

// SetParameters registers the BFT parameters effective starting at height h
// and records h as a parameter-change height.
func (f *Fake) SetParameters(h uint64, params commitpool.BFTParameters) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ParametersByHeight[h] = params
	f.ParameterChangeHeights = append(f.ParameterChangeHeights, h)
	sort.Slice(f.ParameterChangeHeights, func(i, j int) bool {
		return f.ParameterChangeHeights[i] < f.ParameterChangeHeights[j]
	})
}

// GetBFTHeights implements commitpool.BFTOracle.
func (f *Fake) GetBFTHeights(ctx context.Context) (commitpool.BFTHeights, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Heights, nil
}

// GetBFTParameters implements commitpool.BFTOracle: returns the parameters
// effective at the greatest registered change height <= h.
func (f *Fake) GetBFTParameters(ctx context.Context, h uint64) (commitpool.BFTParameters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var effective uint64
	found := false
	for _, ch := range f.ParameterChangeHeights {
		if ch <= h {
			effective = ch
			found = true
		}
	}
	if !found {
		return commitpool.BFTParameters{}, fmt.Errorf("no BFT parameters registered at or before height %d", h)
	}
	return f.ParametersByHeight[effective], nil
}

// GetNextHeightBFTParameters implements commitpool.BFTOracle.
func (f *Fake) GetNextHeightBFTParameters(ctx context.Context, h uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.ParameterChangeHeights {
		if ch > h {
			return ch, nil
		}
	}
	return 0, &commitpool.PoolError{Kind: commitpool.ErrBFTParameterNotFound, Err: fmt.Errorf("no parameter change after height %d", h)}
}

// ExistBFTParameters implements commitpool.BFTOracle.
func (f *Fake) ExistBFTParameters(ctx context.Context, h uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.ParameterChangeHeights {
		if ch == h {
			return true, nil
		}
	}
	return false, nil
}

// GetValidator implements commitpool.BFTOracle.
func (f *Fake) GetValidator(ctx context.Context, addr common.Address, h uint64) (commitpool.Validator, error) {
	params, err := f.GetBFTParameters(ctx, h)
	if err != nil {
		return commitpool.Validator{}, err
	}
	for _, v := range params.Validators {
		if v.Address == addr {
			return v, nil
		}
	}
	return commitpool.Validator{}, fmt.Errorf("validator %s not found at height %d", addr, h)
}

// GetCurrentValidators implements commitpool.BFTOracle.
func (f *Fake) GetCurrentValidators(ctx context.Context) ([]commitpool.Validator, error) {
	f.mu.Lock()
	heights := f.Heights
	f.mu.Unlock()
	params, err := f.GetBFTParameters(ctx, heights.MaxHeightPrecommitted)
	if err != nil {
		return nil, err
	}
	return params.Validators, nil
}
