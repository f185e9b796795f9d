package commitpool

import (
	"context"
	"sync"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

// Config is the constructor configuration for a Pool: {bftAPI, blockTime,
// chain, network, db} per §6, plus the ambient logging/metrics handles and
// protocol constants this module carries as a real node component.
type Config struct {
	BFTOracle         BFTOracle
	BlockTime         time.Duration
	Chain             ChainReader
	Network           NetworkSink
	Store             Store
	NetworkIdentifier common.Hash
	CommitRangeStored uint64
	Logger            cmtlog.Logger
	Metrics           Metrics
}

// Store is the persistence seam the pool constructor accepts but does not
// read from; it is reserved for future persistence (§6, §9 open question).
type Store interface {
	Close() error
}

// Metrics is the observation seam the pool and gossip job report through.
// pkg/metrics provides the concrete Prometheus-backed implementation; a
// no-op implementation is used where metrics are not wired.
type Metrics interface {
	ObservePoolSize(index string, size int)
	ObserveJobDuration(d time.Duration)
	IncCommitRejected(reason string)
	IncCommitAccepted()
}

// Pool holds the three commit indices (local, nonGossiped, gossiped) and
// exposes addCommit, getCommitsByHeight, getAllCommits and validateCommit.
// Single ownership: the job takes the pool's lock for the duration of a
// tick; all other public methods take the same lock for their whole body,
// matching the "serialise via a mutex held across entire public method
// bodies" directive for threaded runtimes (§5).
type Pool struct {
	mu sync.Mutex

	local       *commitIndex
	nonGossiped *commitIndex
	gossiped    *commitIndex

	bftOracle         BFTOracle
	chain             ChainReader
	network           NetworkSink
	store             Store
	blockTime         time.Duration
	networkIdentifier common.Hash
	commitRangeStored uint64
	logger            cmtlog.Logger
	metrics           Metrics
}

// New constructs a Pool. CommitRangeStored defaults to CommitRangeStored
// (50) when unset.
func New(cfg Config) *Pool {
	rangeStored := cfg.CommitRangeStored
	if rangeStored == 0 {
		rangeStored = CommitRangeStored
	}
	logger := cfg.Logger
	if logger == nil {
		logger = cmtlog.NewNopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &Pool{
		local:             newCommitIndex(),
		nonGossiped:       newCommitIndex(),
		gossiped:          newCommitIndex(),
		bftOracle:         cfg.BFTOracle,
		chain:             cfg.Chain,
		network:           cfg.Network,
		store:             cfg.Store,
		blockTime:         cfg.BlockTime,
		networkIdentifier: cfg.NetworkIdentifier,
		commitRangeStored: rangeStored,
		logger:            logger.With("module", "commitpool"),
		metrics:           metrics,
	}
}

// AddCommit inserts c into local (when local=true) or nonGossiped,
// unless any index already contains it, in which case this is a no-op.
// It never inserts into gossiped directly; gossip promotion is the job's
// responsibility (§4.4).
func (p *Pool) AddCommit(c SingleCommit, local bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.local.exists(c) || p.nonGossiped.exists(c) || p.gossiped.exists(c) {
		return
	}
	if local {
		p.local.add(c)
	} else {
		p.nonGossiped.add(c)
	}
}

// ValidateCommit runs the C3 admission algorithm against a candidate
// commit. See validateCommit for the full rule set.
func (p *Pool) ValidateCommit(ctx context.Context, c SingleCommit) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.validateCommit(ctx, c)
}

// GetCommitsByHeight returns local.getByHeight(h) ++ nonGossiped.getByHeight(h)
// ++ gossiped.getByHeight(h), preserving that order (§4.4).
func (p *Pool) GetCommitsByHeight(h uint64) []SingleCommit {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]SingleCommit, 0)
	out = append(out, p.local.getByHeight(h)...)
	out = append(out, p.nonGossiped.getByHeight(h)...)
	out = append(out, p.gossiped.getByHeight(h)...)
	return out
}

// GetAllCommits returns the union across the three indices, in ascending
// height order (§4.4).
func (p *Pool) GetAllCommits() []SingleCommit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getAllCommitsLocked()
}

func (p *Pool) getAllCommitsLocked() []SingleCommit {
	all := make([]SingleCommit, 0, p.local.len()+p.nonGossiped.len()+p.gossiped.len())
	all = append(all, p.local.getAll(Ascending)...)
	all = append(all, p.nonGossiped.getAll(Ascending)...)
	all = append(all, p.gossiped.getAll(Ascending)...)

	// Merge the three already-ascending runs into one ascending order.
	sortCommitsByHeight(all)
	return all
}

func sortCommitsByHeight(commits []SingleCommit) {
	for i := 1; i < len(commits); i++ {
		j := i
		for j > 0 && commits[j-1].Height > commits[j].Height {
			commits[j-1], commits[j] = commits[j], commits[j-1]
			j--
		}
	}
}

// testFacade exposes index mutation for tests; production code uses only
// the documented operations above. This is the "bracket-name escape
// hatch" re-architected as a package-private accessor (§9).
type testFacade struct {
	p *Pool
}

func (p *Pool) testFacade() testFacade {
	return testFacade{p: p}
}

func (tf testFacade) addToIndex(indexName string, c SingleCommit) {
	tf.p.mu.Lock()
	defer tf.p.mu.Unlock()
	switch indexName {
	case "local":
		tf.p.local.add(c)
	case "nonGossiped":
		tf.p.nonGossiped.add(c)
	case "gossiped":
		tf.p.gossiped.add(c)
	}
}

func (tf testFacade) indexLen(indexName string) int {
	tf.p.mu.Lock()
	defer tf.p.mu.Unlock()
	switch indexName {
	case "local":
		return tf.p.local.len()
	case "nonGossiped":
		return tf.p.nonGossiped.len()
	case "gossiped":
		return tf.p.gossiped.len()
	}
	return 0
}

type noopMetrics struct{}

func (noopMetrics) ObservePoolSize(string, int)    {}
func (noopMetrics) ObserveJobDuration(time.Duration) {}
func (noopMetrics) IncCommitRejected(string)       {}
func (noopMetrics) IncCommitAccepted()             {}
