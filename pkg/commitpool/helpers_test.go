package commitpool

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vellichain/commitpool/pkg/bftoracle"
	"github.com/vellichain/commitpool/pkg/chainreader"
	"github.com/vellichain/commitpool/pkg/crypto/bls"
)

// testValidator bundles a generated BLS key pair with its commitpool
// Validator entry, for building fixtures in tests.
type testValidator struct {
	Address common.Address
	SK      *bls.PrivateKey
	PK      *bls.PublicKey
	Entry   Validator
}

func newTestValidators(t *testing.T, n int, weight int64) []testValidator {
	t.Helper()
	if err := bls.Initialize(); err != nil {
		t.Fatalf("bls.Initialize: %v", err)
	}

	out := make([]testValidator, n)
	for i := 0; i < n; i++ {
		sk, pk, err := bls.GenerateKeyPair()
		if err != nil {
			t.Fatalf("generate key pair %d: %v", i, err)
		}
		var addr common.Address
		addr[19] = byte(i + 1)

		var key [48]byte
		copy(key[:], pk.Bytes())

		out[i] = testValidator{
			Address: addr,
			SK:      sk,
			PK:      pk,
			Entry: Validator{
				Address:   addr,
				BFTWeight: big.NewInt(weight),
				BLSKey:    key,
			},
		}
	}
	return out
}

func validatorEntries(vs []testValidator) []Validator {
	out := make([]Validator, len(vs))
	for i, v := range vs {
		out[i] = v.Entry
	}
	return out
}

func signCommit(t *testing.T, tv testValidator, networkID common.Hash, cert Certificate) SingleCommit {
	t.Helper()
	sig := signCertificate(tv.SK, networkID, cert)
	return SingleCommit{
		BlockID:              cert.BlockID,
		Height:               cert.Height,
		ValidatorAddress:     tv.Address,
		CertificateSignature: sig,
	}
}

// testFixture bundles a Pool with its fakes, ready for scenario tests.
type testFixture struct {
	Pool      *Pool
	Oracle    *bftoracle.Fake
	Chain     *chainreader.Fake
	Network   *chainreader.NetworkSinkFake
	NetworkID common.Hash
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	oracle := bftoracle.NewFake()
	chain := chainreader.NewFake()
	network := &chainreader.NetworkSinkFake{}
	networkID := common.HexToHash("0xfeed")

	p := New(Config{
		BFTOracle:         oracle,
		Chain:             chain,
		Network:           network,
		NetworkIdentifier: networkID,
		CommitRangeStored: CommitRangeStored,
	})

	return &testFixture{Pool: p, Oracle: oracle, Chain: chain, Network: network, NetworkID: networkID}
}

func blockHeader(height uint64, aggregateCommitHeight uint64) BlockHeader {
	return BlockHeader{
		ID:             common.BigToHash(big.NewInt(int64(height) + 1)),
		Height:         height,
		Timestamp:      height * 10,
		StateRoot:      common.BigToHash(big.NewInt(int64(height) + 1000)),
		ValidatorsHash: common.BigToHash(big.NewInt(int64(height) + 2000)),
		AggregateCommit: AggregateCommit{
			Height: aggregateCommitHeight,
		},
	}
}
