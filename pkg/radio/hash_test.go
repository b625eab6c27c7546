package radio

import "testing"

func TestChannelHashDeterministic(t *testing.T) {
	a := ChannelHash("LongFast", DefaultKey)
	b := ChannelHash("LongFast", DefaultKey)
	if a != b {
		t.Errorf("ChannelHash not deterministic: %d != %d", a, b)
	}
}

func TestChannelHashKnownValue(t *testing.T) {
	// The primary channel with the default PSK is well known to hash to 8.
	if h := ChannelHash("LongFast", DefaultKey); h != 8 {
		t.Errorf("ChannelHash(LongFast, default) = %d, want 8", h)
	}
}

func TestChannelHashEmptyKey(t *testing.T) {
	// An empty key is legal and hashes as zero key material.
	if h := ChannelHash("LongFast", nil); h != 0x0a {
		t.Errorf("ChannelHash(LongFast, nil) = %#x, want 0x0a", h)
	}
}

func TestChannelHashKeySensitivity(t *testing.T) {
	base := ChannelHash("LongFast", DefaultKey)
	perturbed := make([]byte, len(DefaultKey))
	copy(perturbed, DefaultKey)
	perturbed[0] ^= 0x01
	if ChannelHash("LongFast", perturbed) == base {
		t.Error("perturbing the key did not change the hash")
	}
}

func TestChannelHashNameSensitivity(t *testing.T) {
	if ChannelHash("LongFast", DefaultKey) == ChannelHash("LongSlow", DefaultKey) {
		t.Error("changing the channel name did not change the hash")
	}
}

func TestChannelHashRange(t *testing.T) {
	if h := ChannelHash("LongFast", DefaultKey); h > 0xff {
		t.Errorf("hash %d exceeds one byte", h)
	}
}
