// Package identity implements Chirp's user accounts.
//
// It contains the account store interfaces (in-memory and PostgreSQL),
// password hashing, and normalization rules used by the HTTP auth layer.
//
// This package is intentionally dependency-light and security-first.
package identity
