package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestNewCipherRejectsBadKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33} {
		if _, err := NewCipher(make([]byte, n)); err == nil {
			t.Errorf("NewCipher accepted %d-byte key", n)
		}
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey())
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	plaintext := []byte(`{"refresh_token":"secret"}`)
	sealed, err := c.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("secret")) {
		t.Fatal("sealed blob leaks plaintext")
	}

	opened, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: got %q", opened)
	}
}

func TestSealProducesFreshNonces(t *testing.T) {
	c, _ := NewCipher(testKey())

	a, _ := c.Seal([]byte("same"))
	b, _ := c.Seal([]byte("same"))
	if bytes.Equal(a, b) {
		t.Fatal("two seals of the same plaintext are identical")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	c, _ := NewCipher(testKey())
	sealed, _ := c.Seal([]byte("payload"))

	cases := map[string][]byte{
		"empty":     {},
		"too short": sealed[:4],
		"tampered": func() []byte {
			bad := append([]byte(nil), sealed...)
			bad[len(bad)-1] ^= 0xff
			return bad
		}(),
	}
	for name, blob := range cases {
		if _, err := c.Open(blob); !errors.Is(err, ErrDecrypt) {
			t.Errorf("%s: want ErrDecrypt, got %v", name, err)
		}
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	c1, _ := NewCipher(testKey())
	otherKey := testKey()
	otherKey[0] ^= 0xff
	c2, _ := NewCipher(otherKey)

	sealed, _ := c1.Seal([]byte("payload"))
	if _, err := c2.Open(sealed); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("want ErrDecrypt, got %v", err)
	}
}
