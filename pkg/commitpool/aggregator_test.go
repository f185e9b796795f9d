package commitpool

import (
	"context"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestAggregateSingleCommitsEmptyFails(t *testing.T) {
	f := newTestFixture(t)
	_, err := f.Pool.aggregateSingleCommits(context.Background(), nil)
	if kind, ok := KindOf(err); !ok || kind != ErrNoSingleCommit {
		t.Fatalf("expected ErrNoSingleCommit, got %v", err)
	}
}

func TestAggregateSingleCommitsMissingBLSKeyFails(t *testing.T) {
	f := newTestFixture(t)
	validators := newTestValidators(t, 3, 1)
	f.Oracle.SetParameters(0, BFTParameters{Validators: validatorEntries(validators)})

	var wrongAddr = validators[0].Entry.Address
	wrongAddr[0] = 0xFF
	stray := SingleCommit{Height: 5, ValidatorAddress: wrongAddr}

	_, err := f.Pool.aggregateSingleCommits(context.Background(), []SingleCommit{stray})
	if kind, ok := KindOf(err); !ok || kind != ErrNoBLSKeyForValidator {
		t.Fatalf("expected ErrNoBLSKeyForValidator, got %v", err)
	}
}

// S5 + P6: aggregateSingleCommits is order-insensitive in its input list,
// and its bitmap marks exactly the signers at their lex-sorted BLS key
// positions.
func TestAggregateSingleCommitsOrderInsensitive(t *testing.T) {
	f := newTestFixture(t)
	validators := newTestValidators(t, 3, 1)
	f.Oracle.SetParameters(0, BFTParameters{Validators: validatorEntries(validators)})

	cert := Certificate{Height: 5, BlockID: common.HexToHash("0x05")}
	commits := make([]SingleCommit, len(validators))
	for i, v := range validators {
		commits[i] = signCommit(t, v, f.NetworkID, cert)
	}

	orderA := []SingleCommit{commits[0], commits[1], commits[2]}
	orderB := []SingleCommit{commits[2], commits[0], commits[1]}

	aggA, err := f.Pool.aggregateSingleCommits(context.Background(), orderA)
	if err != nil {
		t.Fatalf("aggregate orderA: %v", err)
	}
	aggB, err := f.Pool.aggregateSingleCommits(context.Background(), orderB)
	if err != nil {
		t.Fatalf("aggregate orderB: %v", err)
	}

	if string(aggA.CertificateSignature) != string(aggB.CertificateSignature) {
		t.Fatal("expected order-insensitive aggregate signature")
	}
	if string(aggA.AggregationBits) != string(aggB.AggregationBits) {
		t.Fatal("expected order-insensitive aggregation bitmap")
	}

	// Every validator signed: every bit set.
	for i := range validators {
		if !bitSet(aggA.AggregationBits, i) {
			t.Fatalf("expected bit %d set", i)
		}
	}

	// Dropping one validator from the supplied singles excludes its bit.
	subset := []SingleCommit{commits[0], commits[2]}
	aggSubset, err := f.Pool.aggregateSingleCommits(context.Background(), subset)
	if err != nil {
		t.Fatalf("aggregate subset: %v", err)
	}
	sortedValidators := sortValidatorsByBLSKey(validators2Entries(validators))
	for i, v := range sortedValidators {
		signed := v.Address == commits[0].ValidatorAddress || v.Address == commits[2].ValidatorAddress
		if bitSet(aggSubset.AggregationBits, i) != signed {
			t.Fatalf("bit %d: expected signed=%v", i, signed)
		}
	}
}

func validators2Entries(vs []testValidator) []Validator {
	return validatorEntries(vs)
}

func TestLessBytesRandomizedConsistentWithStdlibOrdering(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		a := randomBytes(48)
		b := randomBytes(48)
		want := compareBytes(a, b) < 0
		got := lessBytes(a, b)
		if want != got {
			t.Fatalf("lessBytes mismatch for %x vs %x: want %v got %v", a, b, want, got)
		}
	}
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rand.Intn(256))
	}
	return b
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}
