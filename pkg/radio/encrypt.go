package radio

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

// EncryptPacket encrypts a marshaled Data payload with AES-CTR under the
// channel PSK. The nonce is the packet ID (little-endian, 64 bits) followed
// by the sending node address (little-endian, 32 bits) and zero padding, so
// an identical (id, from, key) triple always yields identical ciphertext and
// a retry can resend a byte-identical packet.
//
// Both the packet ID and the source address must therefore be fixed before
// encryption happens.
func EncryptPacket(key []byte, packetID, fromNode uint32, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	nonce := make([]byte, aes.BlockSize)
	binary.LittleEndian.PutUint64(nonce[0:8], uint64(packetID))
	binary.LittleEndian.PutUint32(nonce[8:12], fromNode)

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCTR(block, nonce).XORKeyStream(ciphertext, plaintext)
	return ciphertext, nil
}
