package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put("k1", []byte("v1")))

	v, err := s.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
}

func TestMemoryStoreValuesAreCopied(t *testing.T) {
	s := NewMemoryStore()
	original := []byte("v1")
	require.NoError(t, s.Put("k1", original))
	original[0] = 'X'

	v, err := s.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Delete("never-existed"))
	require.NoError(t, s.Put("k1", []byte("v1")))
	require.NoError(t, s.Delete("k1"))

	_, err := s.Get("k1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStoreList(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put("a", []byte("1")))
	require.NoError(t, s.Put("b", []byte("2")))
	assert.ElementsMatch(t, []string{"a", "b"}, s.List())
}
