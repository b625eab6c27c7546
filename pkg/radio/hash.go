package radio

// xorHash folds a byte slice into a single byte.
func xorHash(b []byte) byte {
	var h byte
	for _, v := range b {
		h ^= v
	}
	return h
}

// ChannelHash derives the one-byte channel number carried in a MeshPacket
// from the channel name and its PSK. Receivers use it to select a candidate
// decryption key without the name or key ever appearing on the wire. It is a
// quick filter, not a cryptographic identifier.
func ChannelHash(name string, key []byte) uint32 {
	return uint32(xorHash([]byte(name)) ^ xorHash(key))
}
