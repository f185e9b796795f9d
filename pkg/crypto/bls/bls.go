// BLS12-381 signature primitives (pure Go) for commit-pool certificate
// signing and aggregation.
//
// Provides:
// - key generation (private/public key pairs)
// - signing and verification
// - signature aggregation (multiple signatures -> single aggregate signature)
// - public key aggregation
//
// Uses gnark-crypto for the curve arithmetic. The wire sizes here follow
// the "minimal-pubkey-size" BLS variant: public keys live on G1 (48 bytes
// compressed), signatures live on G2 (96 bytes compressed). This is the
// opposite curve assignment from a "minimal-signature-size" scheme, so the
// pairing check below is transposed accordingly.
package bls

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

var (
	initOnce sync.Once
	initErr  error

	g1Gen bls12381.G1Affine
	g2Gen bls12381.G2Affine
)

// Size constants, matching the protocol's wire layout.
const (
	PrivateKeySize = 32 // scalar in Fr
	PublicKeySize  = 48 // G1 point, compressed
	SignatureSize  = 96 // G2 point, compressed
)

// Initialize sets up the curve generator points. Safe to call repeatedly.
func Initialize() error {
	initOnce.Do(func() {
		_, _, g1GenPoint, g2GenPoint := bls12381.Generators()
		g1Gen = g1GenPoint
		g2Gen = g2GenPoint
	})
	return initErr
}

// PrivateKey is a BLS private key - a scalar in Fr.
type PrivateKey struct {
	scalar fr.Element
}

// PublicKey is a BLS public key - a point on G1.
type PublicKey struct {
	point bls12381.G1Affine
}

// Signature is a BLS signature - a point on G2.
type Signature struct {
	point bls12381.G2Affine
}

// GenerateKeyPair generates a new BLS key pair from a secure random source.
func GenerateKeyPair() (*PrivateKey, *PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, nil, fmt.Errorf("initialize BLS: %w", err)
	}

	var sk fr.Element
	if _, err := sk.SetRandom(); err != nil {
		return nil, nil, fmt.Errorf("generate random scalar: %w", err)
	}

	privateKey := &PrivateKey{scalar: sk}
	return privateKey, privateKey.PublicKey(), nil
}

// GenerateKeyPairFromSeed derives a deterministic key pair from a seed.
// Useful for tests and key recovery.
func GenerateKeyPairFromSeed(seed []byte) (*PrivateKey, *PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, nil, fmt.Errorf("initialize BLS: %w", err)
	}
	if len(seed) < 32 {
		return nil, nil, errors.New("seed must be at least 32 bytes")
	}

	hash := sha256.Sum256(seed)
	var sk fr.Element
	sk.SetBytes(hash[:])

	privateKey := &PrivateKey{scalar: sk}
	return privateKey, privateKey.PublicKey(), nil
}

// PrivateKeyFromBytes deserializes a private key.
func PrivateKeyFromBytes(data []byte) (*PrivateKey, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize BLS: %w", err)
	}
	if len(data) != PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: got %d, want %d", len(data), PrivateKeySize)
	}
	var sk fr.Element
	sk.SetBytes(data)
	return &PrivateKey{scalar: sk}, nil
}

// PrivateKeyFromHex deserializes a private key from a hex string.
func PrivateKeyFromHex(hexStr string) (*PrivateKey, error) {
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return PrivateKeyFromBytes(data)
}

// PublicKeyFromBytes deserializes a public key (compressed G1 point).
func PublicKeyFromBytes(data []byte) (*PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize BLS: %w", err)
	}
	var pk bls12381.G1Affine
	if _, err := pk.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize public key: %w", err)
	}
	return &PublicKey{point: pk}, nil
}

// PublicKeyFromHex deserializes a public key from a hex string.
func PublicKeyFromHex(hexStr string) (*PublicKey, error) {
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return PublicKeyFromBytes(data)
}

// SignatureFromBytes deserializes a signature (compressed G2 point).
func SignatureFromBytes(data []byte) (*Signature, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize BLS: %w", err)
	}
	var sig bls12381.G2Affine
	if _, err := sig.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize signature: %w", err)
	}
	return &Signature{point: sig}, nil
}

// SignatureFromHex deserializes a signature from a hex string.
func SignatureFromHex(hexStr string) (*Signature, error) {
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return SignatureFromBytes(data)
}

// Bytes returns the serialized private key (scalar bytes).
func (sk *PrivateKey) Bytes() []byte {
	b := sk.scalar.Bytes()
	return b[:]
}

// Hex returns the private key as a hex string.
func (sk *PrivateKey) Hex() string {
	return hex.EncodeToString(sk.Bytes())
}

// PublicKey derives the public key from this private key: pk = sk * G1.
func (sk *PrivateKey) PublicKey() *PublicKey {
	var pk bls12381.G1Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	pk.ScalarMultiplication(&g1Gen, &skBig)
	return &PublicKey{point: pk}
}

// Sign signs a message hash and returns the signature: sig = sk * H(msg).
// H(msg) is hashed onto G2 since the signature lives on G2 in this scheme.
func (sk *PrivateKey) Sign(message []byte) *Signature {
	h := hashToG2(message)

	var sig bls12381.G2Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	sig.ScalarMultiplication(&h, &skBig)

	return &Signature{point: sig}
}

// SignWithDomain signs a message with an additional domain-separation tag.
func (sk *PrivateKey) SignWithDomain(message []byte, domain string) *Signature {
	return sk.Sign(computeDomainMessage(domain, message))
}

// computeDomainMessage hashes domain||message, used by callers that want a
// BLS signature scoped to a single message type.
func computeDomainMessage(domain string, message []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write(message)
	return h.Sum(nil)
}

// Bytes returns the compressed public key (G1 point, 48 bytes).
func (pk *PublicKey) Bytes() []byte {
	b := pk.point.Bytes()
	return b[:]
}

// Hex returns the public key as a hex string.
func (pk *PublicKey) Hex() string {
	return hex.EncodeToString(pk.Bytes())
}

// Equal reports whether two public keys are the same curve point.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	return pk.point.Equal(&other.point)
}

// VerifyWithDomain verifies a signature produced by SignWithDomain.
func (pk *PublicKey) VerifyWithDomain(sig *Signature, message []byte, domain string) bool {
	return pk.Verify(sig, computeDomainMessage(domain, message))
}

// Verify checks a signature against a message using a pairing equation
// transposed for the pubkey-on-G1 / signature-on-G2 assignment:
//
//	e(g1Gen, sig) == e(pk, H(msg))
func (pk *PublicKey) Verify(sig *Signature, message []byte) bool {
	h := hashToG2(message)

	var negG1 bls12381.G1Affine
	negG1.Neg(&g1Gen)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{negG1, pk.point},
		[]bls12381.G2Affine{sig.point, h},
	)
	if err != nil {
		return false
	}
	return ok
}

// Bytes returns the compressed signature (G2 point, 96 bytes).
func (sig *Signature) Bytes() []byte {
	b := sig.point.Bytes()
	return b[:]
}

// Hex returns the signature as a hex string.
func (sig *Signature) Hex() string {
	return hex.EncodeToString(sig.Bytes())
}

// AggregateSignatures sums a set of signatures into a single aggregate
// signature (point addition on G2). The caller is responsible for ordering
// (the protocol requires lexicographic order by public key before calling
// into this primitive; see aggregateSingleCommits in pkg/commitpool).
func AggregateSignatures(signatures []*Signature) (*Signature, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize BLS: %w", err)
	}
	if len(signatures) == 0 {
		return nil, errors.New("no signatures to aggregate")
	}

	var agg bls12381.G2Jac
	agg.FromAffine(&signatures[0].point)
	for i := 1; i < len(signatures); i++ {
		var jac bls12381.G2Jac
		jac.FromAffine(&signatures[i].point)
		agg.AddAssign(&jac)
	}

	var result bls12381.G2Affine
	result.FromJacobian(&agg)
	return &Signature{point: result}, nil
}

// AggregatePublicKeys sums a set of public keys into a single aggregate
// public key (point addition on G1).
func AggregatePublicKeys(publicKeys []*PublicKey) (*PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize BLS: %w", err)
	}
	if len(publicKeys) == 0 {
		return nil, errors.New("no public keys to aggregate")
	}

	var agg bls12381.G1Jac
	agg.FromAffine(&publicKeys[0].point)
	for i := 1; i < len(publicKeys); i++ {
		var jac bls12381.G1Jac
		jac.FromAffine(&publicKeys[i].point)
		agg.AddAssign(&jac)
	}

	var result bls12381.G1Affine
	result.FromJacobian(&agg)
	return &PublicKey{point: result}, nil
}

// VerifyAggregateSignature verifies an aggregate signature against the
// public keys of every signer, all of whom must have signed the same
// message (the certificate hash, in the commit pool's case).
func VerifyAggregateSignature(aggSig *Signature, publicKeys []*PublicKey, message []byte) bool {
	if err := Initialize(); err != nil {
		return false
	}
	if len(publicKeys) == 0 {
		return false
	}
	aggPk, err := AggregatePublicKeys(publicKeys)
	if err != nil {
		return false
	}
	return aggPk.Verify(aggSig, message)
}

// hashToG2 hashes a message to a point on G2 using a try-and-increment
// construction. Production BLS stacks use a standard hash-to-curve (RFC
// 9380); this keeps the same shape as the teacher's G1 variant, swapped
// to the curve this scheme needs.
func hashToG2(message []byte) bls12381.G2Affine {
	h := sha256.New()
	h.Write([]byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_"))
	h.Write(message)

	var counter uint64
	for {
		h2 := sha256.New()
		h2.Write(h.Sum(nil))
		binary.Write(h2, binary.BigEndian, counter)
		hash := h2.Sum(nil)

		var scalar fr.Element
		scalar.SetBytes(hash)
		var scalarBig big.Int
		scalar.BigInt(&scalarBig)

		var result bls12381.G2Affine
		result.ScalarMultiplication(&g2Gen, &scalarBig)
		if !result.IsInfinity() {
			return result
		}

		counter++
		if counter > 1000 {
			return g2Gen
		}
	}
}

// GenerateRandomBytes returns n cryptographically secure random bytes.
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// IsValidPublicKey reports whether pk is a well-formed, non-identity point
// in the correct G1 subgroup.
func (pk *PublicKey) IsValidPublicKey() bool {
	if pk == nil {
		return false
	}
	return pk.point.IsOnCurve() && !pk.point.IsInfinity() && pk.point.IsInSubGroup()
}

// IsValidSignature reports whether sig is a well-formed, non-identity point
// in the correct G2 subgroup.
func (sig *Signature) IsValidSignature() bool {
	if sig == nil {
		return false
	}
	return sig.point.IsOnCurve() && !sig.point.IsInfinity() && sig.point.IsInSubGroup()
}

// IsValidPublicKeySize reports whether data is the right length for a public key.
func IsValidPublicKeySize(data []byte) bool { return len(data) == PublicKeySize }

// IsValidSignatureSize reports whether data is the right length for a signature.
func IsValidSignatureSize(data []byte) bool { return len(data) == SignatureSize }

// IsValidPrivateKeySize reports whether data is the right length for a private key.
func IsValidPrivateKeySize(data []byte) bool { return len(data) == PrivateKeySize }

// ValidatePublicKeySubgroup checks that pubKeyBytes decodes to a valid,
// non-identity G1 point in the correct subgroup (defends against rogue-key
// attacks on aggregate verification).
func ValidatePublicKeySubgroup(pubKeyBytes []byte) error {
	if err := Initialize(); err != nil {
		return fmt.Errorf("initialize BLS: %w", err)
	}
	if len(pubKeyBytes) != PublicKeySize {
		return fmt.Errorf("invalid public key size: got %d, expected %d", len(pubKeyBytes), PublicKeySize)
	}

	var pk bls12381.G1Affine
	if _, err := pk.SetBytes(pubKeyBytes); err != nil {
		return fmt.Errorf("invalid public key encoding: %w", err)
	}
	if !pk.IsOnCurve() {
		return errors.New("public key not on BLS12-381 G1 curve")
	}
	if pk.IsInfinity() {
		return errors.New("public key is identity point")
	}
	if !pk.IsInSubGroup() {
		return errors.New("public key not in correct G1 subgroup")
	}
	return nil
}

// ValidateSignatureSubgroup checks that sigBytes decodes to a valid,
// non-identity G2 point in the correct subgroup.
func ValidateSignatureSubgroup(sigBytes []byte) error {
	if err := Initialize(); err != nil {
		return fmt.Errorf("initialize BLS: %w", err)
	}
	if len(sigBytes) != SignatureSize {
		return fmt.Errorf("invalid signature size: got %d, expected %d", len(sigBytes), SignatureSize)
	}

	var sig bls12381.G2Affine
	if _, err := sig.SetBytes(sigBytes); err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if !sig.IsOnCurve() {
		return errors.New("signature not on BLS12-381 G2 curve")
	}
	if sig.IsInfinity() {
		return errors.New("signature is identity point")
	}
	if !sig.IsInSubGroup() {
		return errors.New("signature not in correct G2 subgroup")
	}
	return nil
}
