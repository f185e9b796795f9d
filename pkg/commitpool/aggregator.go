package commitpool

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vellichain/commitpool/pkg/crypto/bls"
)

// aggregateSingleCommits combines a set of single commits at one height
// into an aggregate commit: BLS aggregation plus a bitmap over the full
// validator set, sorted by validator BLS key (§4.6).
func (p *Pool) aggregateSingleCommits(ctx context.Context, singles []SingleCommit) (AggregateCommit, error) {
	if len(singles) == 0 {
		return AggregateCommit{}, newPoolError(ErrNoSingleCommit, "aggregateSingleCommits called with no input")
	}
	height := singles[0].Height

	// 1. Fetch BFTParameters(height) -> ordered validators.
	params, err := p.bftOracle.GetBFTParameters(ctx, height)
	if err != nil {
		return AggregateCommit{}, err
	}

	// 2. Build addr -> blsKey mapping for that set.
	keyByAddr := make(map[common.Address][48]byte, len(params.Validators))
	for _, v := range params.Validators {
		keyByAddr[v.Address] = v.BLSKey
	}

	type pair struct {
		blsKey    [48]byte
		signature [96]byte
	}
	pairs := make([]pair, 0, len(singles))
	for _, c := range singles {
		key, ok := keyByAddr[c.ValidatorAddress]
		if !ok {
			return AggregateCommit{}, newPoolError(ErrNoBLSKeyForValidator,
				"no BLS key for validator %s at height %d", c.ValidatorAddress, height)
		}
		pairs = append(pairs, pair{blsKey: key, signature: c.CertificateSignature})
	}

	// 3. Sort the pair list by blsKey lexicographically ascending; the
	// aggregation routine requires this order.
	sort.Slice(pairs, func(i, j int) bool {
		return lessBytes(pairs[i].blsKey[:], pairs[j].blsKey[:])
	})

	// 4. Call the BLS aggregation primitive with the lex-sorted pairs.
	signatures := make([]*bls.Signature, 0, len(pairs))
	for _, pr := range pairs {
		sig, err := bls.SignatureFromBytes(pr.signature[:])
		if err != nil {
			return AggregateCommit{}, err
		}
		signatures = append(signatures, sig)
	}
	aggSig, err := bls.AggregateSignatures(signatures)
	if err != nil {
		return AggregateCommit{}, err
	}

	// aggregationBits is a bitmap over the FULL validator set at that
	// height, not just the signing subset; sort validators by BLS key to
	// match the signing pair order, then build the bitmap positionally.
	sortedValidators := make([]Validator, len(params.Validators))
	copy(sortedValidators, params.Validators)
	sort.Slice(sortedValidators, func(i, j int) bool {
		return lessBytes(sortedValidators[i].BLSKey[:], sortedValidators[j].BLSKey[:])
	})

	signerSet := make(map[common.Address]struct{}, len(singles))
	for _, c := range singles {
		signerSet[c.ValidatorAddress] = struct{}{}
	}

	bits := make([]byte, (len(sortedValidators)+7)/8)
	for i, v := range sortedValidators {
		if _, signed := signerSet[v.Address]; signed {
			bits[i/8] |= 1 << uint(i%8)
		}
	}

	return AggregateCommit{
		Height:               height,
		AggregationBits:      bits,
		CertificateSignature: aggSig.Bytes(),
	}, nil
}

func lessBytes(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
