package radio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// DefaultKey is the well-known primary channel PSK, short form "AQ==".
var DefaultKey = []byte{
	0xd4, 0xf1, 0xbb, 0x3a, 0x20, 0x29, 0x07, 0x59,
	0xf0, 0xbc, 0xff, 0xab, 0xcf, 0x4e, 0x69, 0x01,
}

// ErrInvalidKey is returned when a channel key cannot be decoded into a
// usable AES key.
var ErrInvalidKey = errors.New("invalid channel key")

// ParseKey decodes a channel PSK from its base64 form. URL-safe encodings and
// stripped padding are tolerated. A one-byte key selects a variant of the
// default PSK, with index zero meaning encryption is off. An empty string is
// legal and yields a nil key (cleartext).
func ParseKey(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}

	// Pad the key with '=' characters to ensure it's a valid base64 string
	padding := (4 - len(key)%4) % 4
	paddedKey := key + strings.Repeat("=", padding)

	replacedKey := strings.ReplaceAll(paddedKey, "-", "+")
	replacedKey = strings.ReplaceAll(replacedKey, "_", "/")

	raw, err := base64.StdEncoding.DecodeString(replacedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) == 1 {
		raw = expandShortPSK(raw)
	}
	switch len(raw) {
	case 0, 16, 24, 32:
		return raw, nil
	}
	return nil, fmt.Errorf("%w: %d bytes is not a valid AES key size", ErrInvalidKey, len(raw))
}

// expandShortPSK converts a short-form PSK into a full-length PSK derived
// from the default key.
func expandShortPSK(input []byte) []byte {
	if len(input) != 1 {
		return nil
	}

	pskIndex := input[0]
	if pskIndex == 0 {
		return nil // encryption off
	}

	psk := make([]byte, len(DefaultKey))
	copy(psk, DefaultKey)

	// Bump the last byte of the PSK if needed
	psk[len(psk)-1] += pskIndex - 1

	return psk
}
