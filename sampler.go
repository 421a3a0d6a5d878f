package securedraw

import (
	"crypto/sha512"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/sha3"
)

const (
	// MaxWinners is the largest number of winners a single draw may request.
	MaxWinners = 255
	// SeedLength is the length of seeds produced by ExpandSeed.
	SeedLength = 1024
)

// Seed is the byte sequence that drives Select. It is consumed one byte at a time
// from the front and rotated left after every candidate index.
type Seed []byte

func (s Seed) clone() Seed {
	c := make(Seed, len(s))
	copy(c, s)
	return c
}

func (s Seed) rotate() {
	if len(s) < 2 {
		return
	}
	first := s[0]
	copy(s, s[1:])
	s[len(s)-1] = first
}

// Select picks k distinct members, in selection order, using seed[0] mod len(members)
// as the candidate index and rotating the seed after every candidate. The seed passed
// in is never modified.
//
// A pick that sees len(seed) consecutive collisions has walked the whole rotation
// cycle, so every later candidate would collide too; Select then fails with
// ErrSelectionStalled.
func Select(members []peer.ID, k int, seed Seed) ([]peer.ID, error) {
	if k < 1 || k > MaxWinners {
		return nil, errors.Wrapf(ErrInvalidDrawSize, "must be between 1 and %d, got %d", MaxWinners, k)
	}
	n := len(members)
	if k > n {
		return nil, errors.Wrapf(ErrInsufficientPool, "%d winners requested from %d participants", k, n)
	}
	if len(seed) == 0 {
		return nil, ErrEmptySeed
	}

	s := seed.clone()
	chosen := make([]bool, n)
	winners := make([]peer.ID, 0, k)
	for len(winners) < k {
		picked := false
		for range len(s) {
			i := int(s[0]) % n
			s.rotate()
			if !chosen[i] {
				chosen[i] = true
				winners = append(winners, members[i])
				picked = true
				break
			}
		}
		if !picked {
			return nil, errors.Wrapf(ErrSelectionStalled,
				"no free index within %d rotations after %d of %d winners", len(s), len(winners), k)
		}
	}
	return winners, nil
}

// ClockSeed derives a seed from a clock tick the way the first prototype did.
//
// Anyone who can predict or influence the tick can predict the draw, so this seed must
// never be the only randomness source of a draw with something at stake. It exists for
// replaying legacy draws and for tests.
func ClockSeed(slot uint64) (Seed, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], slot)
	mh, err := multihash.Sum(buf[:], multihash.SHA2_256, -1)
	if err != nil {
		return nil, errors.Wrap(err, "hashing clock")
	}
	decoded, err := multihash.Decode(mh)
	if err != nil {
		return nil, errors.Wrap(err, "decoding clock hash")
	}
	return decoded.Digest, nil
}

// ExpandSeed stretches a revealed randomness value into a SeedLength seed.
//
// Rotation visits each seed byte once per cycle, so a seed can only ever yield as many
// distinct indices as it has distinct residues; a bare 32 byte value could never draw
// more than 32 winners.
func ExpandSeed(value []byte) Seed {
	seed := make(Seed, SeedLength)
	sha3.ShakeSum256(seed, value)
	return seed
}

// BeaconValue derives the 32 byte randomness carried by a beacon signature.
func BeaconValue(signature []byte) []byte {
	sum := sha512.Sum512(signature)
	return sum[:32]
}
