package securedraw_test

import (
	"math/rand"
	"testing"

	"github.com/ipni/securedraw"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
)

func letters(names ...string) []peer.ID {
	ids := make([]peer.ID, len(names))
	for i, n := range names {
		ids[i] = peer.ID(n)
	}
	return ids
}

func TestSelectFollowsRotatingSeed(t *testing.T) {
	members := letters("A", "B", "C", "D", "E")
	seed := make(securedraw.Seed, 32)
	copy(seed, []byte{7, 2, 9, 4, 6})
	original := append(securedraw.Seed(nil), seed...)

	for range 3 {
		winners, err := securedraw.Select(members, 3, seed)
		require.NoError(t, err)
		require.Equal(t, letters("C", "E", "B"), winners)
	}
	require.Equal(t, original, seed, "seed must not be consumed in place")
}

func TestSelectReturnsUniqueMembers(t *testing.T) {
	rng := rand.New(rand.NewSource(1413))
	for n := 1; n <= securedraw.MaxPoolCapacity; n++ {
		members := make([]peer.ID, n)
		for i := range members {
			members[i] = peer.ID([]byte{byte(i), 'p'})
		}
		for k := 1; k <= n; k++ {
			// Every byte value appears once, so every residue mod n is reachable.
			seed := make(securedraw.Seed, 256)
			for i, v := range rng.Perm(256) {
				seed[i] = byte(v)
			}

			winners, err := securedraw.Select(members, k, seed)
			require.NoError(t, err, "n=%d k=%d", n, k)
			require.Len(t, winners, k)
			seen := make(map[peer.ID]struct{}, k)
			for _, w := range winners {
				require.Contains(t, members, w)
				require.NotContains(t, seen, w, "duplicate winner n=%d k=%d", n, k)
				seen[w] = struct{}{}
			}
		}
	}
}

func TestSelectWithExpandedSeedFillsLargestPool(t *testing.T) {
	members := make([]peer.ID, securedraw.MaxPoolCapacity)
	for i := range members {
		members[i] = peer.ID([]byte{byte(i), 'x'})
	}
	seed := securedraw.ExpandSeed([]byte("resolved oracle value"))
	require.Len(t, seed, securedraw.SeedLength)

	winners, err := securedraw.Select(members, securedraw.MaxPoolCapacity, seed)
	require.NoError(t, err)
	require.ElementsMatch(t, members, winners)

	again, err := securedraw.Select(members, securedraw.MaxPoolCapacity, securedraw.ExpandSeed([]byte("resolved oracle value")))
	require.NoError(t, err)
	require.Equal(t, winners, again)
}

func TestSelectErrors(t *testing.T) {
	members := letters("A", "B", "C", "D", "E")
	for _, test := range []struct {
		name    string
		members []peer.ID
		k       int
		seed    securedraw.Seed
		wantErr error
	}{
		{
			name:    "more winners than members",
			members: members,
			k:       6,
			seed:    securedraw.Seed{1, 2, 3},
			wantErr: securedraw.ErrInsufficientPool,
		},
		{
			name:    "empty pool",
			k:       1,
			seed:    securedraw.Seed{1},
			wantErr: securedraw.ErrInsufficientPool,
		},
		{
			name:    "zero winners",
			members: members,
			k:       0,
			seed:    securedraw.Seed{1},
			wantErr: securedraw.ErrInvalidDrawSize,
		},
		{
			name:    "too many winners",
			members: members,
			k:       256,
			seed:    securedraw.Seed{1},
			wantErr: securedraw.ErrInvalidDrawSize,
		},
		{
			name:    "empty seed",
			members: members,
			k:       1,
			wantErr: securedraw.ErrEmptySeed,
		},
		{
			name:    "constant seed",
			members: members,
			k:       2,
			seed:    securedraw.Seed{0, 0, 0, 0},
			wantErr: securedraw.ErrSelectionStalled,
		},
		{
			name:    "seed with fewer residues than winners",
			members: members,
			k:       3,
			seed:    securedraw.Seed{1, 6, 11, 2, 7},
			wantErr: securedraw.ErrSelectionStalled,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			winners, err := securedraw.Select(test.members, test.k, test.seed)
			require.ErrorIs(t, err, test.wantErr)
			require.Nil(t, winners)
		})
	}
}

func TestClockSeedIsDeterministic(t *testing.T) {
	a, err := securedraw.ClockSeed(42)
	require.NoError(t, err)
	b, err := securedraw.ClockSeed(42)
	require.NoError(t, err)
	c, err := securedraw.ClockSeed(43)
	require.NoError(t, err)

	require.Len(t, a, 32)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
