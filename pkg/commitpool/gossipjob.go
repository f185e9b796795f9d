package commitpool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RunJobTick runs one pruning-and-gossip cycle (§4.5). A raised error
// aborts the tick with indices left unchanged: mutations are staged on
// scratch clones of the three indices and only swapped in on success.
// The network send is the final action, fire-and-forget; its failure does
// not roll back the already-committed index mutations.
func (p *Pool) RunJobTick(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	tickID := uuid.New().String()
	log := p.logger.With("tick", tickID)

	removalHeight, err := p.maxRemovalHeight(ctx)
	if err != nil {
		log.Error("job tick aborted: could not resolve removal height", "err", err)
		return err
	}

	// Stage in scratch clones; commit only if every step succeeds.
	scratchLocal := p.local.clone()
	scratchNonGossiped := p.nonGossiped.clone()
	scratchGossiped := p.gossiped.clone()

	// Step 2 — Evict.
	evictedLocal := scratchLocal.evictUpTo(removalHeight)
	evictedNonGossiped := scratchNonGossiped.evictUpTo(removalHeight)
	evictedGossiped := scratchGossiped.evictUpTo(removalHeight)

	// Step 3 — Filter non-gossiped by admissibility.
	survivors := make([]SingleCommit, 0, scratchNonGossiped.len())
	for _, c := range scratchNonGossiped.getAll(Ascending) {
		admissible, err := p.isAdmissible(ctx, c.Height)
		if err != nil {
			log.Error("job tick aborted: admissibility check failed", "height", c.Height, "err", err)
			return err
		}
		if admissible {
			survivors = append(survivors, c)
		} else {
			scratchNonGossiped.deleteSingle(c)
		}
	}

	// Capture nonGossiped as it was before Step 4's promotion — the
	// post-Step-3 survivor set, descending by height, for Step 5 phase 3.
	preStep4NonGossiped := make([]SingleCommit, len(survivors))
	copy(preStep4NonGossiped, survivors)
	sortCommitsByHeight(preStep4NonGossiped)
	for i, j := 0, len(preStep4NonGossiped)-1; i < j; i, j = i+1, j-1 {
		preStep4NonGossiped[i], preStep4NonGossiped[j] = preStep4NonGossiped[j], preStep4NonGossiped[i]
	}

	// Step 4 — Promote survivors non-gossiped -> gossiped.
	for _, c := range survivors {
		scratchGossiped.add(c)
		scratchNonGossiped.deleteSingle(c)
	}

	evictedCount := len(evictedLocal) + len(evictedNonGossiped) + len(evictedGossiped)
	promotedCount := len(survivors)

	// Step 5 — Select gossip batch.
	currentValidators, err := p.bftOracle.GetCurrentValidators(ctx)
	if err != nil {
		log.Error("job tick: could not resolve current validators for batch cap", "err", err)
		return err
	}
	batchCap := 2 * len(currentValidators)

	heights, err := p.bftOracle.GetBFTHeights(ctx)
	if err != nil {
		log.Error("job tick: could not resolve BFT heights for batch selection", "err", err)
		return err
	}

	// Commit scratch state now; the remaining steps (selection, broadcast)
	// do not mutate indices.
	p.local = scratchLocal
	p.nonGossiped = scratchNonGossiped
	p.gossiped = scratchGossiped

	selected := make([]SingleCommit, 0, batchCap)
	seen := make(map[CommitKey]struct{}, batchCap)
	addIfRoom := func(c SingleCommit) bool {
		if len(selected) >= batchCap {
			return false
		}
		if _, ok := seen[c.Key()]; ok {
			return true
		}
		seen[c.Key()] = struct{}{}
		selected = append(selected, c)
		return true
	}

	threshold := int64(-1)
	if heights.MaxHeightPrecommitted >= p.commitRangeStored {
		threshold = int64(heights.MaxHeightPrecommitted - p.commitRangeStored)
	}

	// Phase 1: ascending, height < maxHeightPrecommitted - W.
	for _, c := range p.getAllCommitsLocked() {
		if threshold >= 0 && int64(c.Height) < threshold {
			if !addIfRoom(c) {
				break
			}
		}
	}

	// Phase 2: all of local, descending by height.
	for _, c := range p.local.getAll(Descending) {
		if !addIfRoom(c) {
			break
		}
	}

	// Phase 3: all of nonGossiped as it was before Step 4, descending.
	for _, c := range preStep4NonGossiped {
		if !addIfRoom(c) {
			break
		}
	}

	// Step 6 — Broadcast.
	packet := SingleCommitsNetworkPacket{Commits: make([][]byte, 0, len(selected))}
	for _, c := range selected {
		packet.Commits = append(packet.Commits, encodeSingleCommit(c))
	}

	if p.network != nil {
		if err := p.network.Send(ctx, NetworkEventCommitMessages, packet); err != nil {
			log.Error("gossip send failed, batch dropped, next tick rebuilds", "err", err)
		}
	}

	duration := time.Since(start)
	p.metrics.ObserveJobDuration(duration)
	p.metrics.ObservePoolSize("local", p.local.len())
	p.metrics.ObservePoolSize("nonGossiped", p.nonGossiped.len())
	p.metrics.ObservePoolSize("gossiped", p.gossiped.len())

	log.Info("job tick complete",
		"removal_height", removalHeight,
		"evicted", evictedCount,
		"promoted", promotedCount,
		"broadcast", len(selected),
		"duration", duration,
	)

	return nil
}

// RunPeriodically schedules RunJobTick every p.blockTime until ctx is
// cancelled. A tick still running when the next one would fire is skipped
// and logged at Info level rather than queued, matching the teacher's liveness
// self-check idiom: the job reports whether it is keeping up rather than
// accumulating backlog.
func (p *Pool) RunPeriodically(ctx context.Context) {
	ticker := time.NewTicker(p.blockTime)
	defer ticker.Stop()

	var running atomic.Bool
	var runningMu time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if running.Load() {
				p.logger.Info("job tick skipped: previous tick still running", "since", runningMu)
				continue
			}
			running.Store(true)
			runningMu = time.Now()
			go func() {
				defer running.Store(false)
				if err := p.RunJobTick(ctx); err != nil {
					p.logger.Error("job tick failed", "err", err)
				}
			}()
		}
	}
}
