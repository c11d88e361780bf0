package sign

import (
	"strings"
	"testing"
)

func TestOrderedTag(t *testing.T) {
	// Register endpoint vector: sector=1, amount=100, currency=643,
	// password=test. The base64 covers the lowercase hex text of the digest,
	// not the raw digest bytes.
	t.Run("register endpoint vector", func(t *testing.T) {
		got := OrderedTag([]string{"1", "100", "643"}, "test")
		want := "ZjY2NWJmMjZhM2QyNGUwMGI1NjQ2YzgyOWVhMDdjZWY2N2VkN2EyYWY1ZWIxZmJjMjU4NzIwYzY1MTEzNmZlZQ=="
		if got != want {
			t.Errorf("OrderedTag = %q, want %q", got, want)
		}
	})

	t.Run("field order is significant", func(t *testing.T) {
		a := OrderedTag([]string{"1", "100", "643"}, "test")
		b := OrderedTag([]string{"100", "1", "643"}, "test")
		if a == b {
			t.Error("reordering fields must change the tag")
		}
	})

	t.Run("one byte mutation changes the tag", func(t *testing.T) {
		a := OrderedTag([]string{"1", "100", "643"}, "test")
		b := OrderedTag([]string{"1", "100", "644"}, "test")
		if a == b {
			t.Error("mutating the canonicalized string must change the tag")
		}
	})
}

func TestHMACSHA512Hex(t *testing.T) {
	// RFC 4231 test case 2.
	got := HMACSHA512Hex("Jefe", []byte("what do ya want for nothing?"))
	want := "164b7a7bfcf819e2e395fbe73b56e0a387bd64222e831fd610270cd7ea250554" +
		"9758bf75c05a994a6d034f65f8f0e6fdcaeab1a34d4a6b4b636e070a38bce737"
	if got != want {
		t.Errorf("HMACSHA512Hex = %q, want %q", got, want)
	}
}

func TestIPNTag(t *testing.T) {
	t.Run("key order does not affect the tag", func(t *testing.T) {
		a, err := IPNTag("secret", []byte(`{"b":1,"a":{"y":2,"x":3}}`))
		if err != nil {
			t.Fatalf("IPNTag: %v", err)
		}
		b, err := IPNTag("secret", []byte(`{"a":{"x":3,"y":2},"b":1}`))
		if err != nil {
			t.Fatalf("IPNTag: %v", err)
		}
		if a != b {
			t.Errorf("tags differ for equivalent payloads: %q vs %q", a, b)
		}
	})

	t.Run("value mutation changes the tag", func(t *testing.T) {
		a, _ := IPNTag("secret", []byte(`{"payment_id":1}`))
		b, _ := IPNTag("secret", []byte(`{"payment_id":2}`))
		if a == b {
			t.Error("different payloads must not collide")
		}
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		if _, err := IPNTag("secret", []byte(`{"a":`)); err == nil {
			t.Error("expected error for truncated JSON")
		}
	})
}

func TestEqual(t *testing.T) {
	tag := HMACSHA512Hex("k", []byte("body"))
	if !EqualHex(strings.ToUpper(tag), tag) {
		t.Error("hex comparison must be case-insensitive")
	}
	if EqualHex(tag[:len(tag)-1]+"0", tag) && tag[len(tag)-1] != '0' {
		t.Error("mutated tag must not compare equal")
	}
	if Equal("", tag) {
		t.Error("empty tag must not compare equal")
	}
	b64 := OrderedTag([]string{"1"}, "p")
	if !Equal(b64, b64) {
		t.Error("identical base64 tags must compare equal")
	}
	if Equal(strings.ToLower(b64), b64) && b64 != strings.ToLower(b64) {
		t.Error("base64 comparison is case-sensitive")
	}
}
