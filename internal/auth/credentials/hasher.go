package credentials

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/debapps/WebAuthSecurity/internal/auth"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMinLength only rejects empty passwords.
	DefaultMinLength = 1

	saltLength = 16
	keyLength  = 32
)

// Hasher hashes and verifies passwords. At most maxConcurrent derivations
// run at once; callers beyond that wait on ctx. New passwords shorter than
// minLength bytes are refused.
type Hasher struct {
	params    Params
	minLength int
	sem       *semaphore.Weighted
}

func NewHasher(params Params, maxConcurrent int64, minLength int) *Hasher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if minLength < DefaultMinLength {
		minLength = DefaultMinLength
	}
	return &Hasher{
		params:    params,
		minLength: minLength,
		sem:       semaphore.NewWeighted(maxConcurrent),
	}
}

// Hash derives a new argon2id hash with a fresh random salt.
func (h *Hasher) Hash(ctx context.Context, password string) (Hash, error) {
	if len(password) < h.minLength {
		return Hash{}, auth.ErrPasswordTooShort
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return Hash{}, fmt.Errorf("credentials: read salt: %w", err)
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return Hash{}, err
	}
	digest := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Parallelism, keyLength)
	h.sem.Release(1)

	return Hash{
		Value: fmt.Sprintf("m=%d,t=%d,p=%d$%s",
			h.params.MemoryKiB,
			h.params.Time,
			h.params.Parallelism,
			base64.RawStdEncoding.EncodeToString(digest),
		),
		Salt:    base64.RawStdEncoding.EncodeToString(salt),
		Version: HashVersionArgon2id,
	}, nil
}

// Verify reports whether password matches stored. Malformed hashes never
// match. The only error is ctx expiring while waiting for a hashing slot.
func (h *Hasher) Verify(ctx context.Context, password string, stored Hash) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	switch stored.Version {
	case HashVersionArgon2id:
		return verifyArgon2id(password, stored), nil
	case HashVersionBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(stored.Value), []byte(password)) == nil, nil
	default:
		return false, nil
	}
}

// NeedsRehash reports whether stored should be replaced by a fresh hash
// with the current version and parameters.
func (h *Hasher) NeedsRehash(stored Hash) bool {
	if stored.Version != HashVersionArgon2id {
		return true
	}
	p, _, ok := parseArgon2id(stored.Value)
	if !ok {
		return true
	}
	return p != h.params
}

func verifyArgon2id(password string, stored Hash) bool {
	p, digest, ok := parseArgon2id(stored.Value)
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(stored.Salt)
	if err != nil || len(salt) == 0 {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Parallelism, uint32(len(digest)))
	return subtle.ConstantTimeCompare(computed, digest) == 1
}

// parseArgon2id splits "m=<kib>,t=<time>,p=<par>$<digest>".
func parseArgon2id(value string) (Params, []byte, bool) {
	params, encoded, found := strings.Cut(value, "$")
	if !found {
		return Params{}, nil, false
	}

	var p Params
	if _, err := fmt.Sscanf(params, "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Parallelism); err != nil {
		return Params{}, nil, false
	}
	if p.MemoryKiB == 0 || p.Time == 0 || p.Parallelism == 0 {
		return Params{}, nil, false
	}

	digest, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil || len(digest) == 0 {
		return Params{}, nil, false
	}

	return p, digest, true
}
