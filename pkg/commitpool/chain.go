package commitpool

import (
	"context"
	"errors"
)

// ErrHeaderNotFound is returned by ChainReader.GetBlockHeaderByHeight when
// no header exists yet at the requested height.
var ErrHeaderNotFound = errors.New("block header not found")

// ChainReader is the capability interface the pool reads chain state
// through: the finalized tip and block headers by height.
type ChainReader interface {
	// FinalizedHeight returns the node's finalized tip height.
	FinalizedHeight(ctx context.Context) (uint64, error)

	// GetBlockHeaderByHeight returns the header at height h, or
	// ErrHeaderNotFound if none exists yet.
	GetBlockHeaderByHeight(ctx context.Context, h uint64) (BlockHeader, error)
}

// NetworkSink is the write-only outbound channel the gossip job publishes
// through. No concrete peer-to-peer transport is implemented here; this is
// the narrow interface a transport layer adapts to.
type NetworkSink interface {
	Send(ctx context.Context, event string, packet SingleCommitsNetworkPacket) error
}

// NetworkEventCommitMessages is the event name the gossip job publishes
// selected commits under.
const NetworkEventCommitMessages = "NETWORK_EVENT_COMMIT_MESSAGES"
