package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyspace(t *testing.T) *Keyspace {
	t.Helper()
	k := New()
	t.Cleanup(k.Close)
	return k
}

func TestKeyspace_SetGet(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("foo", []byte("bar"), 0)

	got, ok := k.Get("foo")
	require.True(t, ok)
	assert.Equal(t, []byte("bar"), got)
}

func TestKeyspace_GetMissing(t *testing.T) {
	k := newTestKeyspace(t)
	_, ok := k.Get("absent")
	assert.False(t, ok)
}

func TestKeyspace_SetClearsExpiryWhenTTLAbsent(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("foo", []byte("bar"), 50)
	k.Set("foo", []byte("baz"), 0)

	time.Sleep(80 * time.Millisecond)
	got, ok := k.Get("foo")
	require.True(t, ok, "re-set with no ttl must clear the prior expiry")
	assert.Equal(t, []byte("baz"), got)
}

func TestKeyspace_GetExpiredIsLazilyEvicted(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("foo", []byte("bar"), 10)
	time.Sleep(30 * time.Millisecond)

	_, ok := k.Get("foo")
	assert.False(t, ok)
	assert.False(t, k.Exists("foo"), "lazy eviction on Get must remove the key entirely")
}

func TestKeyspace_DeleteExpiredSample(t *testing.T) {
	k := newTestKeyspace(t)
	for i := 0; i < 5; i++ {
		k.Set(string(rune('a'+i)), []byte("v"), 10)
	}
	time.Sleep(30 * time.Millisecond)

	evicted := k.DeleteExpiredSample()
	assert.Equal(t, 5, evicted)
	assert.Equal(t, 0, k.Len())
}

func TestKeyspace_DeleteExpiredSampleEmptyIsNonBlocking(t *testing.T) {
	k := newTestKeyspace(t)
	assert.Equal(t, 0, k.DeleteExpiredSample())
}

func TestKeyspace_KeysGlob(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("user:1", []byte("a"), 0)
	k.Set("user:2", []byte("b"), 0)
	k.Set("order:1", []byte("c"), 0)

	got := k.Keys("user:*")
	assert.ElementsMatch(t, []string{"user:1", "user:2"}, got)
}

func TestKeyspace_KeysExcludesExpired(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("gone", []byte("v"), 10)
	k.Set("stays", []byte("v"), 0)
	time.Sleep(30 * time.Millisecond)

	got := k.Keys("*")
	assert.Equal(t, []string{"stays"}, got)
}

func TestKeyspace_DeleteAndExists(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("foo", []byte("bar"), 0)
	require.True(t, k.Exists("foo"))

	k.Delete("foo")
	assert.False(t, k.Exists("foo"))
	_, ok := k.Get("foo")
	assert.False(t, ok)
}

func TestKeyspace_GetOnNonStringValueIsAbsent(t *testing.T) {
	k := newTestKeyspace(t)
	k.Restore("mylist", &Value{Kind: KindList, List: [][]byte{[]byte("a"), []byte("b")}}, 0, false)

	_, ok := k.Get("mylist")
	assert.False(t, ok, "GET against a non-string value behaves as absent")
	assert.True(t, k.Exists("mylist"), "but the key itself is present")
}

func TestKeyspace_RestoreDropsPastExpiry(t *testing.T) {
	k := newTestKeyspace(t)
	past := time.Now().Add(-time.Hour).UnixMilli()
	k.Restore("stale", &Value{Kind: KindString, Str: []byte("v")}, past, true)

	// Value kept, but no expiry entry installed: Get must still see it,
	// and it must not be treated as scheduled for eviction.
	got, ok := k.Get("stale")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestKeyspace_Snapshot(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("a", []byte("1"), 0)
	k.Set("b", []byte("2"), 60_000)

	entries := k.Snapshot()
	require.Len(t, entries, 2)

	byKey := map[string]SnapshotEntry{}
	for _, e := range entries {
		byKey[e.Key] = e
	}
	assert.False(t, byKey["a"].HasExpire)
	assert.True(t, byKey["b"].HasExpire)
	assert.Equal(t, []byte("2"), byKey["b"].Value.Str)
}

func TestKeyspace_ConcurrentAccess(t *testing.T) {
	k := newTestKeyspace(t)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			key := string(rune('a' + n))
			for j := 0; j < 200; j++ {
				k.Set(key, []byte("v"), 0)
				k.Get(key)
				k.Keys("*")
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"h?llo", "hello", true},
		{"h?llo", "hllo", false},
		{"h[ae]llo", "hello", true},
		{"h[ae]llo", "hillo", false},
		{"h[^e]llo", "hallo", true},
		{"h[^e]llo", "hello", false},
		{"h[a-c]llo", "hbllo", true},
		{"user:*", "user:123", true},
		{"user:*", "order:123", false},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, matchGlob(c.pattern, c.s), "pattern %q against %q", c.pattern, c.s)
	}
}
