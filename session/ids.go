package session

import "github.com/google/uuid"

// IDGenerator produces opaque, collision-resistant credential identifiers.
type IDGenerator interface {
	Generate() (string, error)
}

// UUIDGenerator issues random (v4) UUIDs: 122 bits of entropy from crypto/rand.
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() (string, error)

func (f IDGeneratorFunc) Generate() (string, error) { return f() }
