package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u1", Scopes: []string{ScopeAdmin}})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", p.UserID)
	assert.True(t, p.HasScope(ScopeAdmin))
	assert.False(t, p.HasScope("orders:write"))
}

func TestHashKey(t *testing.T) {
	a := HashKey([]byte("pepper"), "key-1")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashKey([]byte("pepper"), "key-1"))
	assert.NotEqual(t, a, HashKey([]byte("other"), "key-1"))
	assert.NotEqual(t, a, HashKey([]byte("pepper"), "key-2"))
}
