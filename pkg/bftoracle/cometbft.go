package bftoracle

import (
	"context"
	"fmt"

	cmthttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vellichain/commitpool/pkg/commitpool"
)

// CometBFT adapts a CometBFT RPC client to the commitpool.BFTOracle
// capability interface: maxHeightCertified/maxHeightPrecommitted are
// derived from /commit and /status, and the validator set/BLS keys come
// from the height-indexed parameters pushed through RegisterParameters.
// Grounded in the same cmthttp.New /
// coretypes.Result* RPC usage the rest of this node's BFT integration
// relies on.
type CometBFT struct {
	client *cmthttp.HTTP

	// sets is populated out-of-band (by the ABCI application
	// layer, on each parameter change) since CometBFT's own RPC does not
	// expose BLS keys or BFT-specific weights directly.
	sets *validatorSetRegistry
}

// NewCometBFT dials rpcEndpoint and returns a CometBFT oracle adapter.
func NewCometBFT(rpcEndpoint string) (*CometBFT, error) {
	client, err := cmthttp.New(rpcEndpoint, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("dial cometbft rpc at %s: %w", rpcEndpoint, err)
	}
	return &CometBFT{
		client: client,
		sets:   newValidatorSetRegistry(),
	}, nil
}

// RegisterParameters records the BFT parameters effective at height h, for
// later GetBFTParameters/GetNextHeightBFTParameters/ExistBFTParameters
// lookups. CometBFT's own RPC has no notion of "BFT parameters" (BLS
// keys, certificate threshold) beyond the ed25519 validator set it tracks
// for its own voting, so this node's ABCI application pushes them here as
// they are decided.
func (c *CometBFT) RegisterParameters(h uint64, params commitpool.BFTParameters) {
	c.sets.set(h, params)
}

// GetBFTHeights implements commitpool.BFTOracle using /commit (for the
// highest committed, certified height) and /status (for the local
// consensus height, treated as maxHeightPrecommitted).
func (c *CometBFT) GetBFTHeights(ctx context.Context) (commitpool.BFTHeights, error) {
	status, err := c.client.Status(ctx)
	if err != nil {
		return commitpool.BFTHeights{}, fmt.Errorf("cometbft status: %w", err)
	}

	var commit *coretypes.ResultCommit
	commit, err = c.client.Commit(ctx, nil)
	if err != nil {
		return commitpool.BFTHeights{}, fmt.Errorf("cometbft commit: %w", err)
	}

	certified := uint64(0)
	if commit != nil && commit.Header != nil {
		certified = uint64(commit.Header.Height)
	}

	return commitpool.BFTHeights{
		MaxHeightCertified:    certified,
		MaxHeightPrecommitted: uint64(status.SyncInfo.LatestBlockHeight),
	}, nil
}

// GetBFTParameters implements commitpool.BFTOracle.
func (c *CometBFT) GetBFTParameters(ctx context.Context, h uint64) (commitpool.BFTParameters, error) {
	return c.sets.get(h)
}

// GetNextHeightBFTParameters implements commitpool.BFTOracle.
func (c *CometBFT) GetNextHeightBFTParameters(ctx context.Context, h uint64) (uint64, error) {
	return c.sets.next(h)
}

// ExistBFTParameters implements commitpool.BFTOracle.
func (c *CometBFT) ExistBFTParameters(ctx context.Context, h uint64) (bool, error) {
	return c.sets.exists(h), nil
}

// GetValidator implements commitpool.BFTOracle.
func (c *CometBFT) GetValidator(ctx context.Context, addr common.Address, h uint64) (commitpool.Validator, error) {
	params, err := c.sets.get(h)
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
func (c *CometBFT) GetCurrentValidators(ctx context.Context) ([]commitpool.Validator, error) {
	heights, err := c.GetBFTHeights(ctx)
	if err != nil {
		return nil, err
	}
	params, err := c.sets.get(heights.MaxHeightPrecommitted)
	if err != nil {
		return nil, err
	}
	return params.Validators, nil
}

// validatorSetRegistry is a minimal height-indexed store for BFT
// parameters, pushed by the ABCI application as it commits blocks that
// change the validator set or threshold.
type validatorSetRegistry struct {
	changes map[uint64]commitpool.BFTParameters
	order   []uint64
}

func newValidatorSetRegistry() *validatorSetRegistry {
	return &validatorSetRegistry{changes: make(map[uint64]commitpool.BFTParameters)}
}

func (r *validatorSetRegistry) set(h uint64, params commitpool.BFTParameters) {
	if _, exists := r.changes[h]; !exists {
		r.order = insertSorted(r.order, h)
	}
	r.changes[h] = params
}

func (r *validatorSetRegistry) get(h uint64) (commitpool.BFTParameters, error) {
	var effective uint64
	found := false
	for _, ch := range r.order {
		if ch <= h {
			effective = ch
			found = true
		}
	}
	if !found {
		return commitpool.BFTParameters{}, fmt.Errorf("no BFT parameters registered at or before height %d", h)
	}
	return r.changes[effective], nil
}

func (r *validatorSetRegistry) next(h uint64) (uint64, error) {
	for _, ch := range r.order {
		if ch > h {
			return ch, nil
		}
	}
	return 0, &commitpool.PoolError{Kind: commitpool.ErrBFTParameterNotFound, Err: fmt.Errorf("no parameter change after height %d", h)}
}

func (r *validatorSetRegistry) exists(h uint64) bool {
	for _, ch := range r.order {
		if ch == h {
			return true
		}
	}
	return false
}

func insertSorted(order []uint64, h uint64) []uint64 {
	i := 0
	for i < len(order) && order[i] < h {
		i++
	}
	order = append(order, 0)
	copy(order[i+1:], order[i:])
	order[i] = h
	return order
}
