package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}

	if !VerifyPassword("correct horse battery staple", hash) {
		t.Fatal("correct password should verify")
	}

	if VerifyPassword("wrong password", hash) {
		t.Fatal("wrong password should not verify")
	}

	if VerifyPassword("", hash) {
		t.Fatal("empty password should not verify")
	}
}

func TestEmptyPasswordRejected(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("empty password should not hash")
	}
}

func TestLongPasswordTruncation(t *testing.T) {
	long := strings.Repeat("a", 100)

	hash, err := HashPassword(long)
	if err != nil {
		t.Fatal(err)
	}

	if !VerifyPassword(long, hash) {
		t.Fatal("long password should verify against its own hash")
	}

	// bcrypt only considers the first 72 bytes, the truncation must be
	// consistent between hashing and verification.
	if !VerifyPassword(long[:72], hash) {
		t.Fatal("first 72 bytes should verify")
	}

	if VerifyPassword(long[:71], hash) {
		t.Fatal("shorter prefix should not verify")
	}
}

func TestHashesAreSalted(t *testing.T) {
	first, err := HashPassword("same password")
	if err != nil {
		t.Fatal(err)
	}
	second, err := HashPassword("same password")
	if err != nil {
		t.Fatal(err)
	}

	if string(first) == string(second) {
		t.Fatal("two hashes of the same password should differ")
	}
}
