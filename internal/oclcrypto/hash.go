package oclcrypto

import "crypto/sha256"

// DigestSize is the byte length of a commitment digest.
const DigestSize = sha256.Size

var commitmentPrefixV1 = []byte("OCLv1|commitment|")

// CommitmentDigest binds an opening (secret, value) to a 32-byte digest.
//
// Layout: prefix || u64le(secret) || u64le(value). Both fields are fixed
// width, so the encoding is unambiguous without length framing. Off-chain
// digest producers and the on-chain reveal check must use this exact layout;
// any change is a wire-format break.
func CommitmentDigest(secret, value uint64) []byte {
	h := sha256.New()
	h.Write(commitmentPrefixV1)
	h.Write(u64le(secret))
	h.Write(u64le(value))
	return h.Sum(nil)
}
