package radio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestParseKeyEmpty(t *testing.T) {
	key, err := ParseKey("")
	if err != nil {
		t.Fatalf("ParseKey(\"\") error = %v", err)
	}
	if len(key) != 0 {
		t.Errorf("key length = %d, want 0", len(key))
	}
}

func TestParseKeyShortForm(t *testing.T) {
	key, err := ParseKey("AQ==")
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if !bytes.Equal(key, DefaultKey) {
		t.Errorf("key = %x, want default PSK", key)
	}
}

func TestParseKeyShortFormIndexTwo(t *testing.T) {
	key, err := ParseKey("Ag==")
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	want := make([]byte, len(DefaultKey))
	copy(want, DefaultKey)
	want[len(want)-1]++
	if !bytes.Equal(key, want) {
		t.Errorf("key = %x, want default PSK with bumped last byte", key)
	}
}

func TestParseKeyShortFormIndexZero(t *testing.T) {
	key, err := ParseKey("AA==")
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if len(key) != 0 {
		t.Errorf("key length = %d, want 0 (encryption off)", len(key))
	}
}

func TestParseKeyFullLength(t *testing.T) {
	key, err := ParseKey("1PG7OiApB1nwvP+rz05pAQ==")
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if !bytes.Equal(key, DefaultKey) {
		t.Errorf("key = %x, want default PSK", key)
	}
}

func TestParseKeyURLSafeUnpadded(t *testing.T) {
	key, err := ParseKey("1PG7OiApB1nwvP-rz05pAQ")
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if !bytes.Equal(key, DefaultKey) {
		t.Errorf("key = %x, want default PSK", key)
	}
}

func TestParseKeyBadBase64(t *testing.T) {
	_, err := ParseKey("!!!not-base64!!!")
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("error = %v, want ErrInvalidKey", err)
	}
}

func TestParseKeyBadLength(t *testing.T) {
	fiveBytes := base64.StdEncoding.EncodeToString(make([]byte, 5))
	_, err := ParseKey(fiveBytes)
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("error = %v, want ErrInvalidKey", err)
	}
}

func TestParseKey256Bit(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	key, err := ParseKey(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if !bytes.Equal(key, raw) {
		t.Errorf("key = %x, want %x", key, raw)
	}
}
