package oclcrypto

import (
	"encoding/hex"
	"fmt"
	"strings"
)

func HexToBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("hex: empty string")
	}
	ss := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(ss)%2 != 0 {
		return nil, fmt.Errorf("hex: odd length")
	}
	b, err := hex.DecodeString(ss)
	if err != nil {
		return nil, fmt.Errorf("hex: %w", err)
	}
	return b, nil
}

// HexToDigest parses a hex string and requires the digest width.
func HexToDigest(s string) ([]byte, error) {
	b, err := HexToBytes(s)
	if err != nil {
		return nil, err
	}
	if len(b) != DigestSize {
		return nil, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	return b, nil
}

func BytesToHex(b []byte) string {
	return "0x" + strings.ToLower(hex.EncodeToString(b))
}
