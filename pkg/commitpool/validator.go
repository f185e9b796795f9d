package commitpool

import (
	"context"
	"errors"
)

// validateCommit verifies a candidate single commit against chain and BFT
// oracle state. It returns (true, nil) on acceptance, (false, nil) for an
// in-protocol rejection, and (false, err) when the commit is attributable
// peer misbehaviour the caller should use for peer scoring.
//
// The seven checks (a)-(g) of §4.3 run in order. (b) rejects an
// already-known commit with (false, nil), so re-delivery is not penalised.
// Only (e) and (g) return a peer-attributable error
// (ErrCommitValidatorNotActive, ErrCommitSignatureInvalid); any other error
// comes from a failed chain or oracle read.
func (p *Pool) validateCommit(ctx context.Context, c SingleCommit) (bool, error) {
	// (a) Block binding.
	header, err := p.chain.GetBlockHeaderByHeight(ctx, c.Height)
	if err != nil {
		if errors.Is(err, ErrHeaderNotFound) {
			p.metrics.IncCommitRejected("header_not_found")
			return false, nil
		}
		p.metrics.IncCommitRejected("chain_error")
		return false, err
	}
	if header.ID != c.BlockID {
		p.metrics.IncCommitRejected("block_id_mismatch")
		return false, nil
	}

	// (b) Not already known.
	if p.gossiped.exists(c) || p.nonGossiped.exists(c) || p.local.exists(c) {
		p.metrics.IncCommitRejected("already_known")
		return false, nil
	}

	// (c) Not below removal height.
	removalHeight, err := p.maxRemovalHeight(ctx)
	if err != nil {
		p.metrics.IncCommitRejected("removal_height_error")
		return false, err
	}
	if c.Height <= removalHeight {
		p.metrics.IncCommitRejected("below_removal_height")
		return false, nil
	}

	// (d) Within attention window, or an upcoming parameter change makes it
	// structurally important.
	admissible, err := p.isAdmissible(ctx, c.Height)
	if err != nil {
		p.metrics.IncCommitRejected("admissibility_error")
		return false, err
	}
	if !admissible {
		p.metrics.IncCommitRejected("inadmissible")
		return false, nil
	}

	// (e) Validator membership.
	params, err := p.bftOracle.GetBFTParameters(ctx, c.Height)
	if err != nil {
		p.metrics.IncCommitRejected("bft_parameters_error")
		return false, err
	}
	var validator *Validator
	for i := range params.Validators {
		if params.Validators[i].Address == c.ValidatorAddress {
			validator = &params.Validators[i]
			break
		}
	}
	if validator == nil {
		p.metrics.IncCommitRejected("validator_not_active")
		return false, newPoolError(ErrCommitValidatorNotActive,
			"validator %s not active at height %d", c.ValidatorAddress, c.Height)
	}

	// (f) Key lookup is folded into (e) above: params already carries blsKey.

	// (g) Signature.
	cert := computeCertificateFromBlockHeader(header)
	ok, err := verifyCertificateSignature(validator.BLSKey, p.networkIdentifier, cert, c.CertificateSignature)
	if err != nil {
		p.metrics.IncCommitRejected("signature_invalid")
		return false, newPoolError(ErrCommitSignatureInvalid, "verify signature: %w", err)
	}
	if !ok {
		p.metrics.IncCommitRejected("signature_invalid")
		return false, newPoolError(ErrCommitSignatureInvalid,
			"invalid signature for validator %s at height %d", c.ValidatorAddress, c.Height)
	}

	p.metrics.IncCommitAccepted()
	return true, nil
}

// isAdmissible implements §4.3(d): a height is admissible if it falls in
// the current commit range window, or if BFT parameters are known to
// change right after it.
func (p *Pool) isAdmissible(ctx context.Context, height uint64) (bool, error) {
	heights, err := p.bftOracle.GetBFTHeights(ctx)
	if err != nil {
		return false, err
	}

	inRange := height <= heights.MaxHeightPrecommitted &&
		(heights.MaxHeightCertified < p.commitRangeStored ||
			height >= heights.MaxHeightCertified-p.commitRangeStored)

	if inRange {
		return true, nil
	}

	exists, err := p.bftOracle.ExistBFTParameters(ctx, height+1)
	if err != nil {
		var kind ErrorKind
		if k, ok := KindOf(err); ok {
			kind = k
		}
		if kind == ErrBFTParameterNotFound {
			return false, nil
		}
		return false, err
	}
	return exists, nil
}

// maxRemovalHeight computes the removal height (§4.5 step 1): the
// aggregateCommit.height of the block header at chain.finalizedHeight.
func (p *Pool) maxRemovalHeight(ctx context.Context) (uint64, error) {
	finalized, err := p.chain.FinalizedHeight(ctx)
	if err != nil {
		return 0, err
	}
	header, err := p.chain.GetBlockHeaderByHeight(ctx, finalized)
	if err != nil {
		return 0, newPoolError(ErrFinalizedHeaderNotFound, "finalized header at height %d: %w", finalized, err)
	}
	return header.AggregateCommit.Height, nil
}
