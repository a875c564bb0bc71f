package game

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// SeedSource produces one unpredictable 32-bit seed per round.
//
//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=SeedSource
type SeedSource interface {
	NextSeed() (uint32, error)
}

// CryptoSeedSource draws seeds from the operating system CSPRNG. A failure
// here is fatal to round creation.
type CryptoSeedSource struct{}

func (CryptoSeedSource) NextSeed() (uint32, error) {
	const op = "game.CryptoSeedSource.NextSeed"

	var buf [4]byte

	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return binary.BigEndian.Uint32(buf[:]), nil
}
