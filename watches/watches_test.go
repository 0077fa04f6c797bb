package watches

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a test watch store
func createTestWatchStore(t *testing.T) *WatchStore {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewWatchStore(dbPath)
	require.NoError(t, err, "should create watch store")
	t.Cleanup(func() { store.Close() })
	return store
}

// Test helper: a feed-based release watch
func sampleWatch(url string) NewWatch {
	now := time.Now()
	return NewWatch{
		URL:         url,
		Description: "new releases",
		Intent:      intent.Release,
		Strategy: strategy.Strategy{
			Engine:     strategy.Feed{},
			Extraction: strategy.FeedItems{},
			Confidence: 0.95,
		},
		EnabledAt: &now,
	}
}

// TestNewWatchStore_ExistingDatabase verifies data survives reopening
func TestNewWatchStore_ExistingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store1, err := NewWatchStore(dbPath)
	require.NoError(t, err)
	_, err = store1.CreateWatch(sampleWatch("https://github.com/a/b"))
	require.NoError(t, err)
	store1.Close()

	store2, err := NewWatchStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	watches, err := store2.ListWatches(WatchFilter{})
	require.NoError(t, err)
	assert.Len(t, watches, 1)
}

// TestCreateWatch_RoundTrip verifies a created watch reads back intact
func TestCreateWatch_RoundTrip(t *testing.T) {
	store := createTestWatchStore(t)

	platform := "github"
	interval := "6h"
	nw := sampleWatch("https://github.com/a/b")
	nw.Platform = &platform
	nw.Interval = &interval

	created, err := store.CreateWatch(nw)
	require.NoError(t, err)
	assert.Equal(t, "feed", created.Engine)
	assert.Equal(t, "feed", created.Extraction)

	got, err := store.GetWatch(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.URL, got.URL)
	assert.Equal(t, intent.Release, got.Intent)
	require.NotNil(t, got.Platform)
	assert.Equal(t, "github", *got.Platform)
	require.NotNil(t, got.Interval)
	assert.Equal(t, "6h", *got.Interval)
	assert.True(t, got.IsEnabled())
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)

	st, err := got.Strategy()
	require.NoError(t, err)
	assert.Equal(t, strategy.Feed{}, st.Engine)
	assert.Equal(t, strategy.FeedItems{}, st.Extraction)
}

// TestCreateWatch_StoresSelectorStrategy verifies parameterised strategies
// survive storage
func TestCreateWatch_StoresSelectorStrategy(t *testing.T) {
	store := createTestWatchStore(t)

	nw := sampleWatch("https://shop.example.com/p/1")
	nw.Intent = intent.Price
	nw.Strategy = strategy.Strategy{
		Engine:     strategy.Browser{},
		Extraction: strategy.Selector{CSS: ".price"},
		Confidence: 0.7,
	}

	created, err := store.CreateWatch(nw)
	require.NoError(t, err)

	got, err := store.GetWatch(created.ID)
	require.NoError(t, err)
	st, err := got.Strategy()
	require.NoError(t, err)
	assert.Equal(t, strategy.Browser{}, st.Engine)
	assert.Equal(t, strategy.Selector{CSS: ".price"}, st.Extraction)
}

// TestCreateWatch_DefaultsStrategy verifies an empty strategy becomes the
// fallback
func TestCreateWatch_DefaultsStrategy(t *testing.T) {
	store := createTestWatchStore(t)

	created, err := store.CreateWatch(NewWatch{
		URL:    "https://example.com",
		Intent: intent.Generic,
	})
	require.NoError(t, err)
	assert.Equal(t, "http", created.Engine)
	assert.Equal(t, "auto", created.Extraction)
	assert.False(t, created.IsEnabled())
}

// TestCreateWatch_NormalizesIntent verifies intent names are canonicalised
func TestCreateWatch_NormalizesIntent(t *testing.T) {
	store := createTestWatchStore(t)

	created, err := store.CreateWatch(NewWatch{
		URL:    "https://example.com",
		Intent: intent.Intent("  NEWS "),
	})
	require.NoError(t, err)
	assert.Equal(t, intent.News, created.Intent)
}

// TestCreateWatch_Duplicate verifies URL and intent are unique together
func TestCreateWatch_Duplicate(t *testing.T) {
	store := createTestWatchStore(t)

	_, err := store.CreateWatch(sampleWatch("https://github.com/a/b"))
	require.NoError(t, err)

	_, err = store.CreateWatch(sampleWatch("https://github.com/a/b"))
	assert.ErrorIs(t, err, ErrDuplicateWatch)

	other := sampleWatch("https://github.com/a/b")
	other.Intent = intent.Generic
	_, err = store.CreateWatch(other)
	assert.NoError(t, err, "same URL with another intent is allowed")
}

// TestCreateWatch_Invalid verifies bad intents and intervals are rejected
func TestCreateWatch_Invalid(t *testing.T) {
	store := createTestWatchStore(t)

	nw := sampleWatch("https://example.com")
	nw.Intent = intent.Intent("weather")
	_, err := store.CreateWatch(nw)
	assert.ErrorIs(t, err, ErrInvalidIntent)

	short := "1m"
	nw = sampleWatch("https://example.com")
	nw.Interval = &short
	_, err = store.CreateWatch(nw)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

// TestGetWatch_NotFound verifies missing watches report ErrWatchNotFound
func TestGetWatch_NotFound(t *testing.T) {
	store := createTestWatchStore(t)

	_, err := store.GetWatch(uuid.New())
	assert.ErrorIs(t, err, ErrWatchNotFound)
}

// TestListWatches_Filters verifies intent and enabled filters
func TestListWatches_Filters(t *testing.T) {
	store := createTestWatchStore(t)

	_, err := store.CreateWatch(sampleWatch("https://github.com/a/b"))
	require.NoError(t, err)

	disabled := sampleWatch("https://github.com/c/d")
	disabled.EnabledAt = nil
	_, err = store.CreateWatch(disabled)
	require.NoError(t, err)

	price := sampleWatch("https://shop.example.com")
	price.Intent = intent.Price
	_, err = store.CreateWatch(price)
	require.NoError(t, err)

	all, err := store.ListWatches(WatchFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	release := intent.Release
	releases, err := store.ListWatches(WatchFilter{Intent: &release})
	require.NoError(t, err)
	assert.Len(t, releases, 2)

	enabled := true
	active, err := store.ListWatches(WatchFilter{Enabled: &enabled})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	notEnabled := false
	inactive, err := store.ListWatches(WatchFilter{Enabled: &notEnabled})
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "https://github.com/c/d", inactive[0].URL)

	page, err := store.ListWatches(WatchFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := store.ListWatches(WatchFilter{Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

// TestUpdateWatch verifies partial updates
func TestUpdateWatch(t *testing.T) {
	store := createTestWatchStore(t)

	created, err := store.CreateWatch(sampleWatch("https://github.com/a/b"))
	require.NoError(t, err)

	desc := "tagged releases"
	interval := "2d"
	checked := time.Now()
	lastErr := "timeout"
	st := strategy.Strategy{Engine: strategy.HTTP{}, Extraction: strategy.Full{}, Confidence: 0.4}

	err = store.UpdateWatch(created.ID, WatchUpdate{
		Description:    &desc,
		Strategy:       &st,
		Interval:       &interval,
		ClearEnabledAt: true,
		LastCheckedAt:  &checked,
		LastError:      &lastErr,
	})
	require.NoError(t, err)

	got, err := store.GetWatch(created.ID)
	require.NoError(t, err)
	assert.Equal(t, desc, got.Description)
	assert.Equal(t, "http", got.Engine)
	assert.Equal(t, "full", got.Extraction)
	assert.False(t, got.IsEnabled())
	require.NotNil(t, got.LastCheckedAt)
	assert.True(t, checked.Truncate(0).Equal(*got.LastCheckedAt))
	require.NotNil(t, got.LastError)
	assert.Equal(t, "timeout", *got.LastError)
	assert.Equal(t, 48*time.Hour, got.EffectiveInterval())
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	cleared := ""
	require.NoError(t, store.UpdateWatch(created.ID, WatchUpdate{LastError: &cleared}))
	got, err = store.GetWatch(created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastError)
}

// TestUpdateWatch_Errors verifies missing watches and bad intervals
func TestUpdateWatch_Errors(t *testing.T) {
	store := createTestWatchStore(t)

	desc := "x"
	err := store.UpdateWatch(uuid.New(), WatchUpdate{Description: &desc})
	assert.ErrorIs(t, err, ErrWatchNotFound)

	created, err := store.CreateWatch(sampleWatch("https://github.com/a/b"))
	require.NoError(t, err)

	bad := "90d"
	err = store.UpdateWatch(created.ID, WatchUpdate{Interval: &bad})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

// TestDeleteWatch verifies deletion and repeated deletion
func TestDeleteWatch(t *testing.T) {
	store := createTestWatchStore(t)

	created, err := store.CreateWatch(sampleWatch("https://github.com/a/b"))
	require.NoError(t, err)

	require.NoError(t, store.DeleteWatch(created.ID))

	_, err = store.GetWatch(created.ID)
	assert.ErrorIs(t, err, ErrWatchNotFound)

	assert.ErrorIs(t, store.DeleteWatch(created.ID), ErrWatchNotFound)
}

// TestParseInterval verifies duration parsing and bounds
func TestParseInterval(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30m", 30 * time.Minute, false},
		{"6h", 6 * time.Hour, false},
		{"3d", 72 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{" 1H ", time.Hour, false},
		{"5m", 5 * time.Minute, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"4m", 0, true},
		{"31d", 0, true},
		{"1.5d", 0, true},
		{"soon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInterval)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestEffectiveInterval_Default verifies the intent default applies when no
// interval is stored
func TestEffectiveInterval_Default(t *testing.T) {
	w := &Watch{Intent: intent.Stock}
	assert.Equal(t, intent.DefaultInterval(intent.Stock), w.EffectiveInterval())

	broken := "never"
	w.Interval = &broken
	assert.Equal(t, intent.DefaultInterval(intent.Stock), w.EffectiveInterval())
}

// TestFormatTime_SortsAsText verifies stored timestamps within one second
// order the same as text and as time, and survive a round trip.
func TestFormatTime_SortsAsText(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	earlier := base.Add(100 * time.Millisecond)
	later := base.Add(120 * time.Millisecond)

	a := formatTime(&earlier).(string)
	b := formatTime(&later).(string)
	assert.Less(t, a, b)
	assert.Len(t, a, len(b))

	local := later.In(time.FixedZone("EST", -5*60*60))
	assert.Equal(t, b, formatTime(&local))
	assert.True(t, later.Equal(parseTime(b)))
}

// TestListWatches_NewestFirstWithinSecond verifies list order for watches
// created in the same second.
func TestListWatches_NewestFirstWithinSecond(t *testing.T) {
	store := createTestWatchStore(t)

	older, err := store.CreateWatch(sampleWatch("https://github.com/a/older"))
	require.NoError(t, err)
	newer, err := store.CreateWatch(sampleWatch("https://github.com/a/newer"))
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	for id, at := range map[uuid.UUID]time.Time{
		older.ID: base.Add(100 * time.Millisecond),
		newer.ID: base.Add(120 * time.Millisecond),
	} {
		_, err := store.db.Exec(`UPDATE watches SET created_at = ? WHERE watch_id = ?`, formatTime(&at), id.String())
		require.NoError(t, err)
	}

	list, err := store.ListWatches(WatchFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}
