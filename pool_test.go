package securedraw_test

import (
	"testing"

	"github.com/ipni/securedraw"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	pool, err := securedraw.NewPool(0)
	require.NoError(t, err)
	require.Equal(t, securedraw.MaxPoolCapacity, pool.Capacity)
	require.Empty(t, pool.Members)

	pool, err = securedraw.NewPool(10)
	require.NoError(t, err)
	require.Equal(t, 10, pool.Capacity)

	_, err = securedraw.NewPool(securedraw.MaxPoolCapacity + 1)
	require.ErrorIs(t, err, securedraw.ErrPoolCapacity)
	_, err = securedraw.NewPool(-1)
	require.ErrorIs(t, err, securedraw.ErrPoolCapacity)
}

func TestPoolWithParticipantsReplacesMembership(t *testing.T) {
	pool, err := securedraw.NewPool(5)
	require.NoError(t, err)

	ids := newIdentities(t, 5)
	first := ids[:3]
	pool, err = pool.WithParticipants(first)
	require.NoError(t, err)
	require.Equal(t, first, pool.Members)

	second := append([]peer.ID(nil), ids[3:]...)
	pool, err = pool.WithParticipants(second)
	require.NoError(t, err)
	require.Equal(t, second, pool.Members, "membership is replaced, not extended")

	second[0] = ids[0]
	require.Equal(t, ids[3], pool.Members[0], "pool must not alias the caller's slice")
}

func TestPoolWithParticipantsRejectsInvalidMembership(t *testing.T) {
	ids := newIdentities(t, 4)
	pool, err := securedraw.NewPool(3)
	require.NoError(t, err)
	pool, err = pool.WithParticipants(ids[:1])
	require.NoError(t, err)

	_, err = pool.WithParticipants(ids)
	require.ErrorIs(t, err, securedraw.ErrPoolCapacity)

	_, err = pool.WithParticipants([]peer.ID{ids[0], ids[1], ids[0]})
	require.ErrorIs(t, err, securedraw.ErrDuplicateParticipant)

	_, err = pool.WithParticipants([]peer.ID{ids[0], ""})
	require.ErrorIs(t, err, securedraw.ErrInvalidParticipant)

	_, err = pool.WithParticipants([]peer.ID{ids[0], "B"})
	require.ErrorIs(t, err, securedraw.ErrInvalidParticipant, "IDs that do not decode from their string form are refused")

	require.Equal(t, ids[:1], pool.Members)
}

func TestPoolDraw(t *testing.T) {
	pool, err := securedraw.NewPool(0)
	require.NoError(t, err)
	ids := newIdentities(t, 5)
	pool, err = pool.WithParticipants(ids)
	require.NoError(t, err)
	seed := securedraw.Seed{7, 2, 9, 4, 6, 0, 0, 0}

	t.Run("insufficient pool leaves pool unchanged", func(t *testing.T) {
		unchanged, winners, err := pool.Draw(6, seed)
		require.ErrorIs(t, err, securedraw.ErrInsufficientPool)
		require.Nil(t, winners)
		require.Equal(t, pool, unchanged)
	})

	t.Run("draw narrows pool to winners", func(t *testing.T) {
		narrowed, winners, err := pool.Draw(3, seed)
		require.NoError(t, err)
		want := []peer.ID{ids[2], ids[4], ids[1]}
		require.Equal(t, want, winners)
		require.Equal(t, want, narrowed.Members)
		require.Equal(t, pool.Capacity, narrowed.Capacity)
		require.Len(t, pool.Members, 5, "original pool value is not modified")
	})
}
