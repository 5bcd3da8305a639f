package identity

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse" {
		t.Fatalf("hash must not equal plain password")
	}

	ok, err := VerifyPassword("correct horse", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}

	ok, err = VerifyPassword("wrong horse", hash)
	if err != nil {
		t.Fatalf("VerifyPassword mismatch: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestCheckPasswordPolicy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "empty", in: "", wantErr: true},
		{name: "too short", in: "12345", wantErr: true},
		{name: "minimum", in: "123456", wantErr: false},
		{name: "normal", in: "a sensible passphrase", wantErr: false},
		{name: "over bcrypt limit", in: strings.Repeat("x", 73), wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := CheckPasswordPolicy(tc.in)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr && !IsInvalidInput(err) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	t.Parallel()

	if _, err := VerifyPassword("whatever", "not-a-bcrypt-hash"); err == nil {
		t.Fatalf("expected error for malformed hash")
	}
}
