// Package chainreader provides implementations of the commitpool.ChainReader
// capability interface: an in-memory fake for tests.
package chainreader

import (
	"context"
	"sync"

	"github.com/vellichain/commitpool/pkg/commitpool"
)

// Fake is an in-memory commitpool.ChainReader test double.
type Fake struct {
	mu       sync.Mutex
	finalized uint64
	headers   map[uint64]commitpool.BlockHeader
}

// NewFake returns an empty Fake chain reader.
func NewFake() *Fake {
	return &Fake{headers: make(map[uint64]commitpool.BlockHeader)}
}

// SetFinalizedHeight sets the node's finalized tip height.
func (f *Fake) SetFinalizedHeight(h uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = h
}

// SetHeader registers the header at its own height.
func (f *Fake) SetHeader(h commitpool.BlockHeader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers[h.Height] = h
}

// FinalizedHeight implements commitpool.ChainReader.
func (f *Fake) FinalizedHeight(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalized, nil
}

// GetBlockHeaderByHeight implements commitpool.ChainReader.
func (f *Fake) GetBlockHeaderByHeight(ctx context.Context, h uint64) (commitpool.BlockHeader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	header, ok := f.headers[h]
	if !ok {
		return commitpool.BlockHeader{}, commitpool.ErrHeaderNotFound
	}
	return header, nil
}

// NetworkSinkFake records every packet sent to it, for assertions in tests.
type NetworkSinkFake struct {
	mu       sync.Mutex
	Sent     []commitpool.SingleCommitsNetworkPacket
	FailNext bool
}

// Send implements commitpool.NetworkSink.
func (s *NetworkSinkFake) Send(ctx context.Context, event string, packet commitpool.SingleCommitsNetworkPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext {
		s.FailNext = false
		return errSendFailed
	}
	s.Sent = append(s.Sent, packet)
	return nil
}

// LastSent returns the most recently sent packet and whether any was sent.
func (s *NetworkSinkFake) LastSent() (commitpool.SingleCommitsNetworkPacket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Sent) == 0 {
		return commitpool.SingleCommitsNetworkPacket{}, false
	}
	return s.Sent[len(s.Sent)-1], true
}

var errSendFailed = &sendError{}

type sendError struct{}

func (*sendError) Error() string { return "fake network sink: forced send failure" }
