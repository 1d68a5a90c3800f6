package config

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	boot := DefaultBootstrapConfig()
	boot.SeedThreadCount = 4
	store, err := NewStore(t.Context(), db, boot, nil)
	require.NoError(t, err)
	return store
}

func TestStore_SeedsDefaultsOnEmptyDB(t *testing.T) {
	store := newTestStore(t)
	app := store.GetAppConfig()

	assert.Equal(t, "openai", app.Provider)
	assert.EqualValues(t, 100, app.BatchSize)
	assert.True(t, app.CircuitBreakerEnabled)

	prompts := store.GetAllPrompts()
	require.Len(t, prompts, 2)
}

func TestStore_UpdateAppConfig_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateAppConfig(t.Context(), map[string]string{"batch_size": "250", "provider": "anthropic"})
	require.NoError(t, err)

	app := store.GetAppConfig()
	assert.Equal(t, 250, app.BatchSize)
	assert.Equal(t, "anthropic", app.Provider)
}

func TestStore_UpdateAppConfig_UnknownKeyIgnored(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateAppConfig(t.Context(), map[string]string{"nonsense_key": "x"})
	require.NoError(t, err)
}

func TestStore_UpdateAppConfig_InvalidNumericKeptOld(t *testing.T) {
	store := newTestStore(t)
	before := store.GetAppConfig().BatchSize

	err := store.UpdateAppConfig(t.Context(), map[string]string{"batch_size": "not-a-number"})
	require.NoError(t, err)

	assert.Equal(t, before, store.GetAppConfig().BatchSize)
}

func TestStore_UpdateAppConfig_ReduceOffsetSubtracted(t *testing.T) {
	store := newTestStore(t)
	prompts := store.GetAllPrompts()

	var reduceFlatID int64
	for _, p := range prompts {
		if p.Type == PromptTypeReduce {
			reduceFlatID = p.FlatID()
		}
	}
	require.NotZero(t, reduceFlatID)

	err := store.UpdateAppConfig(t.Context(), map[string]string{"active_reduce_prompt_id": itoa(reduceFlatID)})
	require.NoError(t, err)

	snapshot := store.GetSnapshot()
	assert.Equal(t, reduceFlatID-ReduceIDOffset, snapshot.App.ActiveReducePromptID)
}

func TestStore_UpdatePrompts_UpsertAndPrune(t *testing.T) {
	store := newTestStore(t)
	existing := store.GetSnapshot().MapPrompts
	require.Len(t, existing, 1)

	newItems := []PromptConfig{
		{ID: existing[0].ID, Name: "renamed", Content: "new-content", IsActive: true, Type: PromptTypeMap},
		{ID: 0, Name: "second", Content: "second-content", IsActive: false, Type: PromptTypeMap},
	}
	require.NoError(t, store.UpdatePrompts(t.Context(), append(newItems, store.GetSnapshot().ReducePrompts...)))

	mapPrompts := store.GetSnapshot().MapPrompts
	require.Len(t, mapPrompts, 2)

	names := map[string]bool{}
	for _, p := range mapPrompts {
		names[p.Name] = true
	}
	assert.True(t, names["renamed"])
	assert.True(t, names["second"])
}

func TestStore_UpdateChannels_UpsertAndPrune(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateChannels(t.Context(), []AlertChannel{
		{Name: "ops", Provider: "slack", WebhookURL: "https://example.com/hook", AlertThreshold: "critical", IsActive: true},
	})
	require.NoError(t, err)

	channels := store.GetAllChannels()
	require.Len(t, channels, 1)
	assert.Equal(t, "ops", channels[0].Name)

	err = store.UpdateChannels(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, store.GetAllChannels())
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
