package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rpggio/handshake/internal/transport"
	"github.com/stretchr/testify/require"
)

func TestTokenCommand(t *testing.T) {
	t.Setenv("HANDSHAKE_JWT_SECRET", "cli-secret")

	root := newRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"token", "freelancer-7", "--ttl", "1h"})
	require.NoError(t, root.Execute())

	actor, err := transport.NewJWTResolver("cli-secret").ResolveActor(context.Background(), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, "freelancer-7", actor)
}

func TestTokenCommand_RequiresActor(t *testing.T) {
	root := newRootCmd("test")
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"token"})
	require.Error(t, root.Execute())
}
