package party_test

import (
	"testing"

	"github.com/rpggio/handshake/internal/domain/party"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	role, ok := party.Resolve("c1", "c1", "f1")
	require.True(t, ok)
	require.Equal(t, party.RoleClient, role)

	role, ok = party.Resolve("f1", "c1", "f1")
	require.True(t, ok)
	require.Equal(t, party.RoleFreelancer, role)

	_, ok = party.Resolve("x", "c1", "f1")
	require.False(t, ok)

	_, ok = party.Resolve("", "", "f1")
	require.False(t, ok)
}

func TestCounterpart(t *testing.T) {
	require.Equal(t, "f1", party.Counterpart(party.RoleClient, "c1", "f1"))
	require.Equal(t, "c1", party.Counterpart(party.RoleFreelancer, "c1", "f1"))
}
