package commitpool

import (
	"testing"
)

// P1: the three indices are pairwise disjoint by (height, validatorAddress).
func TestAddCommitKeepsIndicesDisjoint(t *testing.T) {
	f := newTestFixture(t)
	c := commitAt(10, 1)

	f.Pool.AddCommit(c, true)
	f.Pool.AddCommit(c, false) // already in local; must stay a no-op

	tf := f.Pool.testFacade()
	if tf.indexLen("local") != 1 {
		t.Fatalf("expected 1 commit in local, got %d", tf.indexLen("local"))
	}
	if tf.indexLen("nonGossiped") != 0 {
		t.Fatalf("expected 0 commits in nonGossiped, got %d", tf.indexLen("nonGossiped"))
	}
}

func TestAddCommitLocalTrue(t *testing.T) {
	f := newTestFixture(t)
	c := commitAt(10, 1)
	f.Pool.AddCommit(c, true)

	tf := f.Pool.testFacade()
	if tf.indexLen("local") != 1 {
		t.Fatalf("expected commit in local index")
	}
}

func TestGetCommitsByHeightOrdering(t *testing.T) {
	f := newTestFixture(t)
	tf := f.Pool.testFacade()

	local := commitAt(10, 1)
	nonGossiped := commitAt(10, 2)
	gossiped := commitAt(10, 3)

	tf.addToIndex("gossiped", gossiped)
	tf.addToIndex("local", local)
	tf.addToIndex("nonGossiped", nonGossiped)

	got := f.Pool.GetCommitsByHeight(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 commits, got %d", len(got))
	}
	if got[0].ValidatorAddress != local.ValidatorAddress {
		t.Errorf("expected local commit first, got validator byte %d", got[0].ValidatorAddress[19])
	}
	if got[1].ValidatorAddress != nonGossiped.ValidatorAddress {
		t.Errorf("expected nonGossiped commit second, got validator byte %d", got[1].ValidatorAddress[19])
	}
	if got[2].ValidatorAddress != gossiped.ValidatorAddress {
		t.Errorf("expected gossiped commit third, got validator byte %d", got[2].ValidatorAddress[19])
	}
}

func TestGetAllCommitsAscendingAcrossIndices(t *testing.T) {
	f := newTestFixture(t)
	tf := f.Pool.testFacade()

	tf.addToIndex("local", commitAt(30, 1))
	tf.addToIndex("nonGossiped", commitAt(10, 1))
	tf.addToIndex("gossiped", commitAt(20, 1))

	all := f.Pool.GetAllCommits()
	if len(all) != 3 {
		t.Fatalf("expected 3 commits, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Height > all[i].Height {
			t.Fatalf("expected ascending height order, got %v", heightsOf(all))
		}
	}
}

func heightsOf(commits []SingleCommit) []uint64 {
	out := make([]uint64, len(commits))
	for i, c := range commits {
		out[i] = c.Height
	}
	return out
}
