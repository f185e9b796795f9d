package commitpool

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SelectAggregateCommit chooses the highest aggregate commit that reaches
// threshold weight, walking heights from heightBound down to
// maxHeightCertified+1. Returns the sentinel {maxHeightCertified, empty,
// empty} if no height reaches threshold (§4.7).
func (p *Pool) SelectAggregateCommit(ctx context.Context) (AggregateCommit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selectAggregateCommit(ctx)
}

func (p *Pool) selectAggregateCommit(ctx context.Context) (AggregateCommit, error) {
	heights, err := p.bftOracle.GetBFTHeights(ctx)
	if err != nil {
		return AggregateCommit{}, err
	}

	heightNextBFTParameters, hasNext, err := p.nextBFTParametersHeight(ctx, heights.MaxHeightCertified)
	if err != nil {
		return AggregateCommit{}, err
	}

	heightBound := heights.MaxHeightPrecommitted
	if hasNext && heightNextBFTParameters-1 < heightBound {
		heightBound = heightNextBFTParameters - 1
	}

	for h := heightBound; h > heights.MaxHeightCertified; h-- {
		commits := p.getCommitsByHeightLocked(h)
		if len(commits) == 0 {
			continue
		}

		params, err := p.bftOracle.GetBFTParameters(ctx, heightBound)
		if err != nil {
			return AggregateCommit{}, err
		}

		signers := make(map[common.Address]struct{}, len(commits))
		for _, c := range commits {
			signers[c.ValidatorAddress] = struct{}{}
		}

		weight := weightOfSigners(params.Validators, signers)
		if weight.Cmp(params.CertificateThreshold) >= 0 {
			return p.aggregateSingleCommits(ctx, commits)
		}
	}

	return AggregateCommit{
		Height:               heights.MaxHeightCertified,
		AggregationBits:      nil,
		CertificateSignature: nil,
	}, nil
}

// VerifyAggregateCommit returns false (without raising) for any malformed
// or out-of-range aggregate, otherwise verifies its BLS signature against
// the contributing validators' weight and the threshold at ag.Height.
func (p *Pool) VerifyAggregateCommit(ctx context.Context, ag AggregateCommit) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verifyAggregateCommit(ctx, ag)
}

func (p *Pool) verifyAggregateCommit(ctx context.Context, ag AggregateCommit) (bool, error) {
	if len(ag.CertificateSignature) == 0 || len(ag.AggregationBits) == 0 {
		return false, nil
	}

	heights, err := p.bftOracle.GetBFTHeights(ctx)
	if err != nil {
		return false, err
	}
	if ag.Height <= heights.MaxHeightCertified {
		return false, nil
	}
	if ag.Height > heights.MaxHeightPrecommitted {
		return false, nil
	}

	heightNextBFTParameters, hasNext, err := p.nextBFTParametersHeight(ctx, heights.MaxHeightCertified)
	if err != nil {
		return false, err
	}
	if hasNext && ag.Height > heightNextBFTParameters-1 {
		return false, nil
	}

	header, err := p.chain.GetBlockHeaderByHeight(ctx, ag.Height)
	if err != nil {
		return false, err
	}
	cert := computeCertificateFromBlockHeader(header)

	params, err := p.bftOracle.GetBFTParameters(ctx, ag.Height)
	if err != nil {
		return false, err
	}

	// Sort validators by BLS key to match the bit positions aggregation
	// assigned (§4.6): bit i corresponds to sortedValidators[i].
	sortedValidators := sortValidatorsByBLSKey(params.Validators)

	var selectedKeys [][48]byte
	weight := newZeroWeight()
	for i, v := range sortedValidators {
		if bitSet(ag.AggregationBits, i) {
			selectedKeys = append(selectedKeys, v.BLSKey)
			weight.Add(weight, v.BFTWeight)
		}
	}

	if weight.Cmp(params.CertificateThreshold) < 0 {
		return false, nil
	}

	ok, err := verifyAggregateCertificateSignature(selectedKeys, p.networkIdentifier, cert, ag.CertificateSignature)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

func (p *Pool) getCommitsByHeightLocked(h uint64) []SingleCommit {
	out := make([]SingleCommit, 0)
	out = append(out, p.local.getByHeight(h)...)
	out = append(out, p.nonGossiped.getByHeight(h)...)
	out = append(out, p.gossiped.getByHeight(h)...)
	return out
}

// nextBFTParametersHeight resolves GetNextHeightBFTParameters, treating
// ErrBFTParameterNotFound as "no next change" (recovered, per §7).
func (p *Pool) nextBFTParametersHeight(ctx context.Context, h uint64) (height uint64, found bool, err error) {
	next, err := p.bftOracle.GetNextHeightBFTParameters(ctx, h)
	if err != nil {
		if kind, ok := KindOf(err); ok && kind == ErrBFTParameterNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return next, true, nil
}

func sortValidatorsByBLSKey(validators []Validator) []Validator {
	out := make([]Validator, len(validators))
	copy(out, validators)
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && lessBytes(out[j].BLSKey[:], out[j-1].BLSKey[:]) {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

func weightOfSigners(validators []Validator, signers map[common.Address]struct{}) *big.Int {
	total := newZeroWeight()
	for _, v := range validators {
		if _, ok := signers[v.Address]; ok {
			total.Add(total, v.BFTWeight)
		}
	}
	return total
}

func newZeroWeight() *big.Int {
	return new(big.Int)
}

func bitSet(bits []byte, i int) bool {
	byteIdx := i / 8
	if byteIdx >= len(bits) {
		return false
	}
	return bits[byteIdx]&(1<<uint(i%8)) != 0
}
