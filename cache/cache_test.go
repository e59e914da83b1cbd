package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testEntry struct {
	CallbackURL string
}

func TestStoreAndRetrieve(t *testing.T) {
	c := New[testEntry]()
	c.Store("some-key", testEntry{CallbackURL: "http://some-callback-url.com"})
	v, ok := c.Get("some-key")
	require.True(t, ok)
	require.Equal(t, "http://some-callback-url.com", v.CallbackURL)
}

func TestStoreAndRemove(t *testing.T) {
	c := New[testEntry]()
	c.Store("some-key", testEntry{CallbackURL: "http://some-callback-url.com"})
	c.Remove("request-id", "some-key")
	_, ok := c.Get("some-key")
	require.False(t, ok)
}

func TestRangeVisitsAllEntries(t *testing.T) {
	c := New[testEntry]()
	c.Store("a", testEntry{CallbackURL: "1"})
	c.Store("b", testEntry{CallbackURL: "2"})

	seen := map[string]string{}
	c.Range(func(key string, v testEntry) { seen[key] = v.CallbackURL })
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)
}

func TestLenReflectsStoreAndRemove(t *testing.T) {
	c := New[testEntry]()
	require.Equal(t, 0, c.Len())
	c.Store("a", testEntry{})
	require.Equal(t, 1, c.Len())
	c.Remove("request-id", "a")
	require.Equal(t, 0, c.Len())
}
