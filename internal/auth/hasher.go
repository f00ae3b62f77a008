// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Supported key derivation algorithms.
const (
	AlgorithmArgon2id     = "argon2id"
	AlgorithmPBKDF2SHA512 = "pbkdf2-sha512"
)

// Salt and key length constraints.
const (
	MinSaltLength     = 16
	DefaultSaltLength = 32
	minKeyLength      = 16
	maxKeyLength      = 1024
)

// MinPBKDF2Iterations is the lowest iteration count accepted for newly derived
// pbkdf2 hashes. Stored hashes with fewer iterations still verify and are
// upgraded on the next successful login.
const MinPBKDF2Iterations = 100_000

// DefaultPBKDF2Iterations is the pbkdf2-sha512 work factor used when none is
// configured.
const DefaultPBKDF2Iterations = 210_000

// ErrEmptyPassword is returned when attempting to derive a hash from an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// KDFParams are the parameters a password hash was derived with. They are
// stored next to every hash so the configured parameters can be raised without
// invalidating existing credentials.
type KDFParams struct {
	Algorithm  string `koanf:"algorithm"`
	Iterations uint32 `koanf:"iterations"`
	MemoryKiB  uint32 `koanf:"memory_kib"` // argon2id only
	Threads    uint8  `koanf:"threads"`    // argon2id only
	KeyLength  uint32 `koanf:"key_length"`
}

// DefaultKDFParams returns OWASP-recommended argon2id parameters.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Algorithm:  AlgorithmArgon2id,
		Iterations: 1,
		MemoryKiB:  64 * 1024,
		Threads:    4,
		KeyLength:  32,
	}
}

// Validate checks the parameters are usable for derivation.
func (p KDFParams) Validate() error {
	if p.KeyLength < minKeyLength || p.KeyLength > maxKeyLength {
		return oops.Code("AUTH_INVALID_KDF").
			With("key_length", p.KeyLength).
			Errorf("key length must be between %d and %d bytes", minKeyLength, maxKeyLength)
	}
	if p.Iterations == 0 {
		return oops.Code("AUTH_INVALID_KDF").Errorf("iterations must be positive")
	}

	switch p.Algorithm {
	case AlgorithmArgon2id:
		if p.Threads == 0 {
			return oops.Code("AUTH_INVALID_KDF").Errorf("argon2id threads must be positive")
		}
		if p.MemoryKiB < 8*uint32(p.Threads) {
			return oops.Code("AUTH_INVALID_KDF").
				With("memory_kib", p.MemoryKiB).
				With("threads", p.Threads).
				Errorf("argon2id memory must be at least 8 KiB per thread")
		}
	case AlgorithmPBKDF2SHA512:
		if p.MemoryKiB != 0 || p.Threads != 0 {
			return oops.Code("AUTH_INVALID_KDF").Errorf("pbkdf2 takes no memory or thread parameters")
		}
	default:
		return oops.Code("AUTH_INVALID_KDF").
			With("algorithm", p.Algorithm).
			Errorf("unsupported key derivation algorithm: %q", p.Algorithm)
	}
	return nil
}

// String encodes the parameters for storage, for example
// "argon2id$v=19$m=65536,t=1,p=4,l=32" or "pbkdf2-sha512$i=210000,l=32".
func (p KDFParams) String() string {
	switch p.Algorithm {
	case AlgorithmArgon2id:
		return fmt.Sprintf("%s$v=%d$m=%d,t=%d,p=%d,l=%d",
			p.Algorithm, argon2.Version, p.MemoryKiB, p.Iterations, p.Threads, p.KeyLength)
	case AlgorithmPBKDF2SHA512:
		return fmt.Sprintf("%s$i=%d,l=%d", p.Algorithm, p.Iterations, p.KeyLength)
	default:
		return p.Algorithm
	}
}

// ParseKDFParams decodes parameters produced by KDFParams.String.
func ParseKDFParams(s string) (KDFParams, error) {
	parts := strings.Split(s, "$")

	switch parts[0] {
	case AlgorithmArgon2id:
		if len(parts) != 3 {
			return KDFParams{}, oops.Code("AUTH_INVALID_KDF").Errorf("invalid argon2id parameter format")
		}
		var version int
		if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil {
			return KDFParams{}, oops.Code("AUTH_INVALID_KDF").Wrap(err)
		}
		if version != argon2.Version {
			return KDFParams{}, oops.Code("AUTH_INVALID_KDF").
				With("version", version).
				Errorf("unsupported argon2 version %d", version)
		}
		var memory, iterations, threads, keyLen uint32
		if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d,l=%d", &memory, &iterations, &threads, &keyLen); err != nil {
			return KDFParams{}, oops.Code("AUTH_INVALID_KDF").Wrap(err)
		}
		// Validate threads fits in uint8 to prevent silent truncation
		if threads > 255 {
			return KDFParams{}, oops.Code("AUTH_INVALID_KDF").Errorf("threads value %d exceeds uint8 max", threads)
		}
		p := KDFParams{
			Algorithm:  AlgorithmArgon2id,
			Iterations: iterations,
			MemoryKiB:  memory,
			Threads:    uint8(threads),
			KeyLength:  keyLen,
		}
		return p, p.Validate()

	case AlgorithmPBKDF2SHA512:
		if len(parts) != 2 {
			return KDFParams{}, oops.Code("AUTH_INVALID_KDF").Errorf("invalid pbkdf2 parameter format")
		}
		var iterations, keyLen uint32
		if _, err := fmt.Sscanf(parts[1], "i=%d,l=%d", &iterations, &keyLen); err != nil {
			return KDFParams{}, oops.Code("AUTH_INVALID_KDF").Wrap(err)
		}
		p := KDFParams{Algorithm: AlgorithmPBKDF2SHA512, Iterations: iterations, KeyLength: keyLen}
		return p, p.Validate()

	default:
		return KDFParams{}, oops.Code("AUTH_INVALID_KDF").
			Errorf("unsupported key derivation algorithm: %q", parts[0])
	}
}

// Credential is a derived password hash together with its salt and parameters.
type Credential struct {
	Hash   []byte
	Salt   []byte
	Params KDFParams
}

// PasswordHasher derives and verifies salted password hashes.
type PasswordHasher interface {
	// Derive computes the hash of password under salt with the configured parameters.
	Derive(password string, salt []byte) ([]byte, error)

	// DeriveWith computes the hash of password under salt with explicit parameters.
	DeriveWith(params KDFParams, password string, salt []byte) ([]byte, error)

	// Verify recomputes the hash with the stored parameters and compares it in
	// constant time. Returns (true, nil) on match, (false, nil) on mismatch, or
	// an error when the stored parameters or salt are unusable.
	Verify(password string, salt, expected []byte, params KDFParams) (bool, error)

	// GenerateSalt returns fresh random bytes from crypto/rand.
	GenerateSalt() ([]byte, error)

	// NewCredential generates a fresh salt and derives a hash for password.
	NewCredential(password string) (Credential, error)

	// NeedsUpgrade reports whether a hash derived with params should be rederived
	// with the configured parameters.
	NeedsUpgrade(params KDFParams) bool

	// Params returns the configured parameters.
	Params() KDFParams
}

// KeyDeriver implements PasswordHasher using argon2id or pbkdf2-sha512.
type KeyDeriver struct {
	params     KDFParams
	saltLength int
}

// NewKeyDeriver creates a KeyDeriver. Invalid parameters or an unavailable
// randomness source return an error wrapping ErrConfiguration.
func NewKeyDeriver(params KDFParams, saltLength int) (*KeyDeriver, error) {
	if err := params.Validate(); err != nil {
		return nil, errConfiguration("kdf parameters: %v", err)
	}
	if params.Algorithm == AlgorithmPBKDF2SHA512 && params.Iterations < MinPBKDF2Iterations {
		return nil, errConfiguration("pbkdf2 iterations %d below minimum %d", params.Iterations, MinPBKDF2Iterations)
	}
	if saltLength < MinSaltLength {
		return nil, errConfiguration("salt length %d below minimum %d", saltLength, MinSaltLength)
	}

	k := &KeyDeriver{params: params, saltLength: saltLength}

	// Fail at startup rather than on the first registration.
	if _, err := k.GenerateSalt(); err != nil {
		return nil, errConfiguration("secure random source unavailable: %v", err)
	}
	return k, nil
}

// Params returns the configured parameters.
func (k *KeyDeriver) Params() KDFParams {
	return k.params
}

// Derive computes the hash of password under salt with the configured parameters.
func (k *KeyDeriver) Derive(password string, salt []byte) ([]byte, error) {
	return k.DeriveWith(k.params, password, salt)
}

// DeriveWith computes the hash of password under salt with explicit parameters.
func (k *KeyDeriver) DeriveWith(params KDFParams, password string, salt []byte) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if len(salt) < MinSaltLength {
		return nil, oops.Code("AUTH_INVALID_SALT").
			With("salt_length", len(salt)).
			Errorf("salt must be at least %d bytes", MinSaltLength)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return derive(params, password, salt), nil
}

// Verify recomputes the hash and compares it in constant time.
func (k *KeyDeriver) Verify(password string, salt, expected []byte, params KDFParams) (bool, error) {
	if len(salt) < MinSaltLength {
		return false, oops.Code("AUTH_INVALID_SALT").Errorf("stored salt is too short")
	}
	if err := params.Validate(); err != nil {
		return false, err
	}
	if len(expected) != int(params.KeyLength) {
		return false, oops.Code("AUTH_INVALID_HASH").
			With("expected_length", params.KeyLength).
			With("actual_length", len(expected)).
			Errorf("stored hash length does not match parameters")
	}

	// An empty password still costs one derivation.
	computed := derive(params, password, salt)

	// Constant-time comparison
	if subtle.ConstantTimeCompare(computed, expected) == 1 && password != "" {
		return true, nil
	}
	return false, nil
}

// GenerateSalt returns saltLength bytes from crypto/rand.
func (k *KeyDeriver) GenerateSalt() ([]byte, error) {
	salt := make([]byte, k.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, oops.Code("AUTH_SALT_FAILED").
			With("requested_bytes", k.saltLength).
			Wrap(err)
	}
	return salt, nil
}

// NewCredential generates a fresh salt and derives a hash for password.
func (k *KeyDeriver) NewCredential(password string) (Credential, error) {
	if password == "" {
		return Credential{}, ErrEmptyPassword
	}
	salt, err := k.GenerateSalt()
	if err != nil {
		return Credential{}, err
	}
	hash, err := k.Derive(password, salt)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Hash: hash, Salt: salt, Params: k.params}, nil
}

// NeedsUpgrade returns true if params differ from the configured parameters.
func (k *KeyDeriver) NeedsUpgrade(params KDFParams) bool {
	return params != k.params
}

func derive(p KDFParams, password string, salt []byte) []byte {
	switch p.Algorithm {
	case AlgorithmPBKDF2SHA512:
		return pbkdf2.Key([]byte(password), salt, int(p.Iterations), int(p.KeyLength), sha512.New)
	default:
		return argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Threads, p.KeyLength)
	}
}

// Compile-time interface check.
var _ PasswordHasher = (*KeyDeriver)(nil)
