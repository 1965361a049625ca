package history

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/joeycumines/canine/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedManager(t *testing.T, store kvstore.Store) *Manager {
	t.Helper()
	m := NewManager(store)
	_, err := m.Load()
	require.NoError(t, err)
	return m
}

func TestManager_MutatorsRequireLoad(t *testing.T) {
	m := NewManager(kvstore.NewMemoryStore())

	_, err := m.AddQuickSave(json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = m.AddHistory(json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, m.Delete(0), ErrNotLoaded)
	_, err = m.Replace(0, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, m.Clear(KindHistory), ErrNotLoaded)
	_, err = m.Orphans()
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestManager_AddAssignsSequentialIDs(t *testing.T) {
	store := kvstore.NewMemoryStore()
	m := loadedManager(t, store)

	q, err := m.AddQuickSave(json.RawMessage(`{"title":"a"}`))
	require.NoError(t, err)
	h, err := m.AddHistory(json.RawMessage(`{"title":"b","id":99}`))
	require.NoError(t, err)
	q2, err := m.AddQuickSave(nil)
	require.NoError(t, err)

	assert.Equal(t, 0, q.ID)
	assert.Equal(t, 1, h.ID)
	assert.Equal(t, 2, q2.ID)
	assert.JSONEq(t, `{"title":"b"}`, string(h.Payload))
	assert.JSONEq(t, `{}`, string(q2.Payload))

	assert.Equal(t, "[0,2]", mustGet(t, store, QuickSavesKey))
	assert.Equal(t, "[1]", mustGet(t, store, HistoriesKey))
	assert.Equal(t, "3", mustGet(t, store, KeyCounterKey))
	assert.JSONEq(t, `{"id":1,"title":"b"}`, mustGet(t, store, "wd.1"))

	got, kind, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, KindHistory, kind)
	assert.Equal(t, h, got)
}

func TestManager_RejectsNonObjectPayload(t *testing.T) {
	m := loadedManager(t, kvstore.NewMemoryStore())
	_, err := m.AddHistory(json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Zero(t, m.Data().KeyCounter)
}

func TestManager_DeleteReplaceClear(t *testing.T) {
	store := kvstore.NewMemoryStore()
	m := loadedManager(t, store)
	for range 3 {
		_, err := m.AddHistory(json.RawMessage(`{"title":"h"}`))
		require.NoError(t, err)
	}
	_, err := m.AddQuickSave(json.RawMessage(`{"title":"q"}`))
	require.NoError(t, err)

	require.NoError(t, m.Delete(0))
	_, ok, err := store.Get("wd.0")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "[1,2]", mustGet(t, store, HistoriesKey))

	assert.ErrorIs(t, m.Delete(0), ErrUnknownID)

	renamed, err := m.Replace(1, json.RawMessage(`{"title":"renamed"}`))
	require.NoError(t, err)
	assert.Equal(t, 4, renamed.ID)
	assert.Equal(t, "[4,2]", mustGet(t, store, HistoriesKey))
	_, ok, err = store.Get("wd.1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.Replace(1, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownID)

	require.NoError(t, m.Clear(KindHistory))
	assert.Equal(t, "[]", mustGet(t, store, HistoriesKey))
	assert.Equal(t, "[3]", mustGet(t, store, QuickSavesKey))
	assert.Equal(t, "5", mustGet(t, store, KeyCounterKey))
	assert.Equal(t, []int{3}, m.Index().IDs())
}

func TestManager_ReloadSeesPersistedState(t *testing.T) {
	store := kvstore.NewMemoryStore()
	m := loadedManager(t, store)
	_, err := m.AddQuickSave(json.RawMessage(`{"title":"q"}`))
	require.NoError(t, err)
	_, err = m.AddHistory(json.RawMessage(`{"title":"h"}`))
	require.NoError(t, err)

	other := NewManager(store)
	data, err := other.Load()
	require.NoError(t, err)
	assert.Equal(t, m.Data(), data)
}

func TestManager_FailedSaveKeepsMemoryAndCatchesUp(t *testing.T) {
	failing := true
	store := &failingStore{Store: kvstore.NewMemoryStore(), failOn: func(op, key string) bool {
		return failing && op == "set"
	}}
	m := loadedManager(t, store)

	rec, err := m.AddHistory(json.RawMessage(`{"title":"kept"}`))
	require.Error(t, err)
	assert.True(t, IsStoreFailure(err))
	_, _, ok := m.Get(rec.ID)
	assert.True(t, ok, "record stays in memory after a failed save")
	assert.Zero(t, m.Index().Len())

	failing = false
	_, err = m.AddHistory(json.RawMessage(`{"title":"next"}`))
	require.NoError(t, err)

	data, _, err := NewLoader(store).Load()
	require.NoError(t, err)
	assert.Equal(t, m.Data(), data)
	assert.Len(t, data.Histories, 2)
}

func TestManager_Save(t *testing.T) {
	t.Run("rejects invalid data", func(t *testing.T) {
		store := newCountingStore()
		m := loadedManager(t, store)
		tests := map[string]Data{
			"duplicate":        {KeyCounter: 2, QuickSaves: []Record{rec(1)}, Histories: []Record{rec(1)}},
			"id at counter":    {KeyCounter: 1, Histories: []Record{rec(1)}},
			"negative":         {KeyCounter: 1, Histories: []Record{{ID: -1}}},
			"bad payload":      {KeyCounter: 1, Histories: []Record{{ID: 0, Payload: json.RawMessage(`"x"`)}}},
			"negative counter": {KeyCounter: -1},
		}
		for name, data := range tests {
			t.Run(name, func(t *testing.T) {
				store.reset()
				assert.Error(t, m.Save(data))
				assert.Empty(t, store.sets)
			})
		}
		assert.ErrorIs(t, m.Save(tests["duplicate"]), ErrDuplicateID)
	})

	t.Run("counter never decreases", func(t *testing.T) {
		store := kvstore.NewMemoryStore()
		m := loadedManager(t, store)
		require.NoError(t, m.Save(Data{KeyCounter: 10}))
		require.NoError(t, m.Save(Data{KeyCounter: 3, Histories: []Record{rec(2)}}))
		assert.Equal(t, 10, m.Data().KeyCounter)
		assert.Equal(t, "10", mustGet(t, store, KeyCounterKey))
	})

	t.Run("caller data is not retained", func(t *testing.T) {
		m := loadedManager(t, kvstore.NewMemoryStore())
		data := Data{KeyCounter: 2, Histories: []Record{rec(0), rec(1)}}
		require.NoError(t, m.Save(data))
		data.Histories[0] = rec(1)
		assert.Equal(t, []Record{rec(0), rec(1)}, m.Data().Histories)
	})
}

func TestManager_Orphans(t *testing.T) {
	store := kvstore.NewMemoryStore()
	m := loadedManager(t, store)
	_, err := m.AddHistory(json.RawMessage(`{"title":"live"}`))
	require.NoError(t, err)
	seed(t, store, map[string]string{
		"wd.5":  `{"id":5}`,
		"wd.12": `{"id":12}`,
		"wd.x":  `{}`,
		"other": `1`,
	})

	orphans, err := m.Orphans()
	require.NoError(t, err)
	assert.Equal(t, []int{5, 12}, orphans)

	removed, err := m.RemoveOrphans()
	require.NoError(t, err)
	assert.Equal(t, []int{5, 12}, removed)

	orphans, err = m.Orphans()
	require.NoError(t, err)
	assert.Empty(t, orphans)
	mustGet(t, store, "wd.0")
	mustGet(t, store, "wd.x")
}

func TestManager_OrphansNeedsLister(t *testing.T) {
	m := loadedManager(t, newCountingStore())
	_, err := m.Orphans()
	assert.ErrorIs(t, err, ErrNotListable)
}

func TestManager_ConcurrentAdds(t *testing.T) {
	store := kvstore.NewMemoryStore()
	m := loadedManager(t, store)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = m.AddQuickSave(json.RawMessage(`{}`))
			} else {
				_, _ = m.AddHistory(json.RawMessage(`{}`))
			}
		}()
	}
	wg.Wait()

	data := m.Data()
	assert.Equal(t, 20, data.KeyCounter)
	assert.Equal(t, 20, data.IDs().Len())
	require.NoError(t, data.Validate())

	loaded, _, err := NewLoader(store).Load()
	require.NoError(t, err)
	assert.Equal(t, data, loaded)
}
