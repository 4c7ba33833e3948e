package syncbox

import "github.com/google/uuid"

// IdempotencyGenerator creates idempotency keys. Unlike IDGenerator, an
// idempotency key carries no ordering requirement, so a plain random (v4)
// UUID generator is sufficient.
type IdempotencyGenerator interface {
	// New returns a new idempotency key.
	New() (string, error)
}

// UUIDv4IdempotencyGenerator produces random UUID v4 idempotency keys using
// crypto/rand under the hood (via github.com/google/uuid).
type UUIDv4IdempotencyGenerator struct{}

// New returns a new random idempotency key.
func (UUIDv4IdempotencyGenerator) New() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}
