package revalidate

import (
	"context"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/require"

	"github.com/icao-pkd/pkd-core/core"
)

type fakeStore struct {
	results       []core.ValidationResult
	updated       map[string]core.ValidationResult
	rollupCalls   map[string]int
	historySaved  *core.RevalidationHistory
	core.Store
}

func newFakeStore(results []core.ValidationResult) *fakeStore {
	return &fakeStore{
		results:     results,
		updated:     make(map[string]core.ValidationResult),
		rollupCalls: make(map[string]int),
	}
}

func (f *fakeStore) ValidationResultsWithExpiry(ctx context.Context) ([]core.ValidationResult, error) {
	return f.results, nil
}

func (f *fakeStore) UpdateValidationResult(ctx context.Context, v *core.ValidationResult) error {
	f.updated[v.ID] = *v
	return nil
}

func (f *fakeStore) RecomputeUploadRollup(ctx context.Context, uploadID string) error {
	f.rollupCalls[uploadID]++
	return nil
}

func (f *fakeStore) SaveRevalidationHistory(ctx context.Context, h *core.RevalidationHistory) error {
	f.historySaved = h
	return nil
}

func TestRun_TransitionsNewlyExpired(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	store := newFakeStore([]core.ValidationResult{
		{ID: "v1", UploadedFileID: "u1", NotAfter: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), IsExpired: false},
		{ID: "v2", UploadedFileID: "u1", NotAfter: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), IsExpired: false},
	})

	e := NewEngine(store, fc, nil)
	h, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, h.TotalProcessed)
	require.Equal(t, 1, h.NewlyExpired)
	require.Equal(t, 0, h.NewlyValid)
	require.Equal(t, 1, h.Unchanged)

	v1 := store.updated["v1"]
	require.True(t, v1.IsExpired)
	require.Equal(t, core.ValidationInvalid, v1.ValidationStatus)
	require.Equal(t, 1, store.rollupCalls["u1"])
	require.NotNil(t, store.historySaved)
}

func TestRun_TransitionsBackToValid(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	store := newFakeStore([]core.ValidationResult{
		{ID: "v1", UploadedFileID: "u1", NotAfter: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), IsExpired: true},
	})

	e := NewEngine(store, fc, nil)
	h, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, h.NewlyValid)
	v1 := store.updated["v1"]
	require.False(t, v1.IsExpired)
}
