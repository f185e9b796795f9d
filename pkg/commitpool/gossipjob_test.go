package commitpool

import (
	"context"
	"testing"
)

// S1: empty pool; job runs; network.send is called exactly once with an
// empty commit list; indices remain empty.
func TestRunJobTickEmptyPool(t *testing.T) {
	f := newTestFixture(t)
	f.Chain.SetHeader(blockHeader(0, 0))
	f.Chain.SetFinalizedHeight(0)
	f.Oracle.SetHeights(BFTHeights{MaxHeightCertified: 0, MaxHeightPrecommitted: 0})
	f.Oracle.SetParameters(0, BFTParameters{})

	if err := f.Pool.RunJobTick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Network.Sent) != 1 {
		t.Fatalf("expected exactly one send, got %d", len(f.Network.Sent))
	}
	if len(f.Network.Sent[0].Commits) != 0 {
		t.Fatalf("expected empty commit list, got %d", len(f.Network.Sent[0].Commits))
	}

	tf := f.Pool.testFacade()
	for _, idx := range []string{"local", "nonGossiped", "gossiped"} {
		if tf.indexLen(idx) != 0 {
			t.Fatalf("expected %s empty, got %d", idx, tf.indexLen(idx))
		}
	}
}

// P3: after one job tick, nonGossiped is empty.
func TestRunJobTickAlwaysDrainsNonGossiped(t *testing.T) {
	f := newTestFixture(t)
	validators := newTestValidators(t, 3, 1)
	f.Oracle.SetParameters(0, BFTParameters{Validators: validatorEntries(validators)})
	f.Oracle.SetHeights(BFTHeights{MaxHeightCertified: 0, MaxHeightPrecommitted: 1000})
	f.Chain.SetHeader(blockHeader(0, 0))
	f.Chain.SetFinalizedHeight(0)

	tf := f.Pool.testFacade()
	tf.addToIndex("nonGossiped", commitAt(500, 1))
	tf.addToIndex("nonGossiped", commitAt(500, 2))

	if err := f.Pool.RunJobTick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tf.indexLen("nonGossiped") != 0 {
		t.Fatalf("expected nonGossiped empty after tick, got %d", tf.indexLen("nonGossiped"))
	}
}

// P2 / S2: after one job tick, no commit with height <= removal height
// remains in any index.
func TestRunJobTickEvictsStaleCommits(t *testing.T) {
	f := newTestFixture(t)
	validators := newTestValidators(t, 3, 1)
	f.Oracle.SetParameters(0, BFTParameters{Validators: validatorEntries(validators)})
	f.Oracle.SetHeights(BFTHeights{MaxHeightCertified: 0, MaxHeightPrecommitted: 2000})

	// finalizedHeight = 950, header at 950 has aggregateCommit.height = 950.
	f.Chain.SetHeader(blockHeader(950, 950))
	f.Chain.SetFinalizedHeight(950)

	tf := f.Pool.testFacade()
	for i := 0; i < 5; i++ {
		tf.addToIndex("nonGossiped", commitAt(1020, byte(i+1)))
	}
	tf.addToIndex("nonGossiped", commitAt(949, 10)) // stale

	for i := 0; i < 5; i++ {
		tf.addToIndex("gossiped", commitAt(1020, byte(i+20)))
	}
	tf.addToIndex("gossiped", commitAt(949, 30)) // stale

	if err := f.Pool.RunJobTick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tf.indexLen("nonGossiped") != 0 {
		t.Fatalf("expected nonGossiped empty, got %d", tf.indexLen("nonGossiped"))
	}

	all := f.Pool.GetAllCommits()
	for _, c := range all {
		if c.Height <= 950 {
			t.Fatalf("found commit at or below removal height 950: height %d", c.Height)
		}
	}
}

// S3 / P4: broadcast packet is capped at 2 * |currentValidators|.
func TestRunJobTickCapsBroadcastBatch(t *testing.T) {
	f := newTestFixture(t)
	numValidators := 103
	validators := newTestValidators(t, numValidators, 1)
	f.Oracle.SetParameters(0, BFTParameters{Validators: validatorEntries(validators)})
	f.Oracle.SetHeights(BFTHeights{MaxHeightCertified: 0, MaxHeightPrecommitted: 1090})
	f.Chain.SetHeader(blockHeader(0, 0))
	f.Chain.SetFinalizedHeight(0)

	tf := f.Pool.testFacade()
	for i := 0; i < 105; i++ {
		tf.addToIndex("nonGossiped", commitAt(980, byte(i%256)))
	}
	for i := 0; i < 105; i++ {
		tf.addToIndex("gossiped", commitAt(980, byte(i+105)))
	}

	if err := f.Pool.RunJobTick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 2 * numValidators
	if len(f.Network.Sent) != 1 {
		t.Fatalf("expected exactly one send, got %d", len(f.Network.Sent))
	}
	if got := len(f.Network.Sent[0].Commits); got > want {
		t.Fatalf("expected at most %d commits broadcast, got %d", want, got)
	}
}

func TestRunJobTickAbortsOnMissingFinalizedHeader(t *testing.T) {
	f := newTestFixture(t)
	f.Chain.SetFinalizedHeight(500) // no header registered at 500

	err := f.Pool.RunJobTick(context.Background())
	if kind, ok := KindOf(err); !ok || kind != ErrFinalizedHeaderNotFound {
		t.Fatalf("expected ErrFinalizedHeaderNotFound, got %v", err)
	}

	tf := f.Pool.testFacade()
	if tf.indexLen("local") != 0 || tf.indexLen("nonGossiped") != 0 || tf.indexLen("gossiped") != 0 {
		t.Fatal("expected indices unchanged after aborted tick")
	}
}

func TestRunJobTickSwallowsNetworkSendFailure(t *testing.T) {
	f := newTestFixture(t)
	f.Chain.SetHeader(blockHeader(0, 0))
	f.Chain.SetFinalizedHeight(0)
	f.Oracle.SetHeights(BFTHeights{MaxHeightCertified: 0, MaxHeightPrecommitted: 0})
	f.Oracle.SetParameters(0, BFTParameters{})
	f.Network.FailNext = true

	if err := f.Pool.RunJobTick(context.Background()); err != nil {
		t.Fatalf("expected network send failure to be swallowed, got %v", err)
	}
}
