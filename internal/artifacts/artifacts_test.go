package artifacts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutGetDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := store.Put(ctx, "task-1", KindScript, "script.json", strings.NewReader(`{"title":"x"}`), "application/json")
	require.NoError(t, err)
	assert.NotEmpty(t, ref.Key)

	text, err := store.GetText(ctx, ref.Key)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"x"}`, text)

	// Second read should be served from cache; content still matches.
	text2, err := store.GetText(ctx, ref.Key)
	require.NoError(t, err)
	assert.Equal(t, text, text2)

	require.NoError(t, store.Delete(ctx, "task-1"))
	_, err = store.GetText(ctx, ref.Key)
	assert.Error(t, err)
}

func TestTextCacheEviction(t *testing.T) {
	c := newTextCache()
	for i := 0; i < textCacheCapacity+10; i++ {
		c.put(stringKey(i), "v")
	}
	assert.LessOrEqual(t, len(c.entries), textCacheCapacity)
}

func stringKey(i int) string {
	return "key-" + string(rune('a'+i%26)) + string(rune(i))
}
