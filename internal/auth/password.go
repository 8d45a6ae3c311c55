// PASSWORD HASHING
//
// WHY BCRYPT?
// bcrypt is deliberately slow, generates a random salt per hash, and embeds
// the salt and cost in its output, so one TEXT column holds everything needed
// to verify a password later:
//
//	$2a$10$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^10 rounds)
//	 version

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor used in production.
//
// Cost 10 keeps a login round trip well under 100ms on ordinary hardware.
// The catalog has no high-value secrets behind its accounts, so interactive
// latency wins over maximum brute-force resistance.
const defaultCost = 10

// MaxPasswordBytes is bcrypt's input limit. Longer inputs are rejected rather
// than silently truncated.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash for inputs over MaxPasswordBytes.
var ErrPasswordTooLong = errors.New("auth: password must be 72 bytes or fewer")

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so that the cost can be injected
// in tests; cost 4 keeps test suites fast.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with the given cost.
// Use bcrypt.MinCost (4) in tests in other packages. Never in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
//
// Returns nil if they match. A mismatch, or a stored value that isn't a
// bcrypt hash at all, returns a non-nil error; callers treat any error as
// "wrong password". bcrypt compares in constant time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
