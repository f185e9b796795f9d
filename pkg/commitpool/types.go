// Package commitpool manages single commits and aggregate commits used to
// finalise blocks in a BFT chain: BLS signature validation and aggregation,
// admission/eviction/selection policy bounded by protocol height windows,
// and a periodic gossip job.
package commitpool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MessageTagCertificate is the domain separation tag mixed into every
// signed certificate payload.
const MessageTagCertificate = "LSK_CE_"

// CommitRangeStored is the default width of the commit range window behind
// maxHeightCertified within which commits are always admissible.
const CommitRangeStored = 50

// SingleCommit is one validator's BLS signature over a block's certificate.
type SingleCommit struct {
	BlockID              common.Hash
	Height               uint64
	ValidatorAddress     common.Address
	CertificateSignature [96]byte
}

// Equal reports whether two commits are identical in every field.
func (c SingleCommit) Equal(o SingleCommit) bool {
	return c.BlockID == o.BlockID &&
		c.Height == o.Height &&
		c.ValidatorAddress == o.ValidatorAddress &&
		c.CertificateSignature == o.CertificateSignature
}

// Key returns the uniqueness key (height, validatorAddress) for this commit.
func (c SingleCommit) Key() CommitKey {
	return CommitKey{Height: c.Height, ValidatorAddress: c.ValidatorAddress}
}

// CommitKey is the uniqueness key for a single commit.
type CommitKey struct {
	Height           uint64
	ValidatorAddress common.Address
}

// Certificate is the canonical byte encoding of five header-derived fields,
// used as the signing payload for a single commit.
type Certificate struct {
	BlockID        common.Hash
	Height         uint64
	Timestamp      uint64
	StateRoot      common.Hash
	ValidatorsHash common.Hash
}

// AggregateCommit is a BLS aggregation of single commits at one height, plus
// a bitmap of which validators in the full validator set contributed.
type AggregateCommit struct {
	Height               uint64
	AggregationBits      []byte
	CertificateSignature []byte
}

// IsSentinel reports whether this is the "no aggregate reached threshold"
// sentinel value: empty bitmap and empty signature.
func (a AggregateCommit) IsSentinel() bool {
	return len(a.AggregationBits) == 0 && len(a.CertificateSignature) == 0
}

// Validator is one entry of the BFT parameters at a given height.
type Validator struct {
	Address   common.Address
	BFTWeight *big.Int
	BLSKey    [48]byte
}

// BFTParameters is the ordered validator set and certificate threshold in
// effect at a given height.
type BFTParameters struct {
	Validators           []Validator
	CertificateThreshold *big.Int
}

// BlockHeader is the subset of a block header the commit pool reads.
type BlockHeader struct {
	ID                common.Hash
	Height            uint64
	Timestamp         uint64
	StateRoot         common.Hash
	ValidatorsHash    common.Hash
	GeneratorAddress  common.Address
	AggregateCommit   AggregateCommit
}

// SingleCommitsNetworkPacket carries the canonical encoding of a batch of
// single commits for the NETWORK_EVENT_COMMIT_MESSAGES event.
type SingleCommitsNetworkPacket struct {
	Commits [][]byte
}

// BFTHeights are the two watermark heights the BFT engine exposes.
type BFTHeights struct {
	MaxHeightCertified    uint64
	MaxHeightPrecommitted uint64
}
