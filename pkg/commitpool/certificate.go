package commitpool

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vellichain/commitpool/pkg/crypto/bls"
)

// certificateTagSize is the fixed width of the domain separation tag in the
// encoded certificate: MessageTagCertificate, zero-padded.
const certificateTagSize = 8

// computeCertificateFromBlockHeader projects the five certificate fields
// out of a block header.
func computeCertificateFromBlockHeader(h BlockHeader) Certificate {
	return Certificate{
		BlockID:        h.ID,
		Height:         h.Height,
		Timestamp:      h.Timestamp,
		StateRoot:      h.StateRoot,
		ValidatorsHash: h.ValidatorsHash,
	}
}

// encodeCertificate produces the fixed-layout, big-endian TLV buffer that is
// the signing payload for a certificate:
//
//	tag (8 bytes, "LSK_CE_" zero-padded)
//	networkIdentifier (32 bytes)
//	blockID (32 bytes)
//	height (8 bytes, big-endian uint64)
//	timestamp (8 bytes, big-endian uint64)
//	stateRoot (32 bytes)
//	validatorsHash (32 bytes)
//
// Every field is fixed-width, so no length prefixes are needed.
func encodeCertificate(networkIdentifier common.Hash, cert Certificate) []byte {
	buf := make([]byte, 0, certificateTagSize+32+32+8+8+32+32)

	var tag [certificateTagSize]byte
	copy(tag[:], MessageTagCertificate)
	buf = append(buf, tag[:]...)

	buf = append(buf, networkIdentifier.Bytes()...)
	buf = append(buf, cert.BlockID.Bytes()...)

	var heightBuf, tsBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], cert.Height)
	binary.BigEndian.PutUint64(tsBuf[:], cert.Timestamp)
	buf = append(buf, heightBuf[:]...)
	buf = append(buf, tsBuf[:]...)

	buf = append(buf, cert.StateRoot.Bytes()...)
	buf = append(buf, cert.ValidatorsHash.Bytes()...)

	return buf
}

// certificateMessageHash returns the fixed-size message actually passed to
// the BLS signing/verification primitives: the SHA-256 of the encoded
// certificate. gnark-crypto's hash-to-curve accepts arbitrary-length
// messages, but hashing first keeps the signed payload at a constant 32
// bytes regardless of future field growth.
func certificateMessageHash(networkIdentifier common.Hash, cert Certificate) [32]byte {
	return sha256.Sum256(encodeCertificate(networkIdentifier, cert))
}

// signCertificate signs cert under the fixed tag and networkIdentifier,
// producing the 96-byte certificateSignature carried on a SingleCommit.
func signCertificate(sk *bls.PrivateKey, networkIdentifier common.Hash, cert Certificate) [96]byte {
	msg := certificateMessageHash(networkIdentifier, cert)
	sig := sk.Sign(msg[:])

	var out [96]byte
	copy(out[:], sig.Bytes())
	return out
}

// verifyCertificateSignature verifies a single commit's signature against
// one validator's BLS key.
func verifyCertificateSignature(blsKey [48]byte, networkIdentifier common.Hash, cert Certificate, signature [96]byte) (bool, error) {
	pk, err := bls.PublicKeyFromBytes(blsKey[:])
	if err != nil {
		return false, err
	}
	sig, err := bls.SignatureFromBytes(signature[:])
	if err != nil {
		return false, err
	}
	msg := certificateMessageHash(networkIdentifier, cert)
	return pk.Verify(sig, msg[:]), nil
}

// verifyAggregateCertificateSignature verifies an aggregated BLS signature
// over a single certificate against the public keys that contributed it.
func verifyAggregateCertificateSignature(blsKeys [][48]byte, networkIdentifier common.Hash, cert Certificate, aggregateSignature []byte) (bool, error) {
	pks := make([]*bls.PublicKey, 0, len(blsKeys))
	for _, k := range blsKeys {
		pk, err := bls.PublicKeyFromBytes(k[:])
		if err != nil {
			return false, err
		}
		pks = append(pks, pk)
	}
	sig, err := bls.SignatureFromBytes(aggregateSignature)
	if err != nil {
		return false, err
	}
	msg := certificateMessageHash(networkIdentifier, cert)
	return bls.VerifyAggregateSignature(sig, pks, msg[:]), nil
}

// encodeSingleCommit produces the canonical wire encoding of one
// SingleCommit for a SingleCommitsNetworkPacket element.
func encodeSingleCommit(c SingleCommit) []byte {
	buf := make([]byte, 0, 32+8+20+96)
	buf = append(buf, c.BlockID.Bytes()...)

	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], c.Height)
	buf = append(buf, heightBuf[:]...)

	buf = append(buf, c.ValidatorAddress.Bytes()...)
	buf = append(buf, c.CertificateSignature[:]...)
	return buf
}
