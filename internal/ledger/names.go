package ledger

import "github.com/google/uuid"

// NameGenerator produces pseudonyms for users registered without a name.
type NameGenerator interface {
	Generate() string
}

// UUIDNames generates random UUID pseudonyms.
//
// Thread-safety: UUIDNames is stateless and safe for concurrent use.
type UUIDNames struct{}

// Generate returns a random (version 4) UUID string.
func (UUIDNames) Generate() string {
	return uuid.NewString()
}

// maxPseudonymAttempts bounds the retries when a generated pseudonym is
// already registered.
const maxPseudonymAttempts = 16
