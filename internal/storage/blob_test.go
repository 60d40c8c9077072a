package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "requests/r1/a.pdf", strings.NewReader("%PDF-1.7"), 8, "application/pdf"))
	assert.Equal(t, 1, store.Len())

	rc, err := store.Get(ctx, "requests/r1/a.pdf")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(body))

	require.NoError(t, store.Delete(ctx, "requests/r1/a.pdf"))
	require.NoError(t, store.Delete(ctx, "requests/r1/a.pdf"))
	_, err = store.Get(ctx, "requests/r1/a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
