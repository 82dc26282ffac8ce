package quota

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mfields/digestbot/internal/database"
)

type fakeGuildStore struct {
	mu     sync.Mutex
	guilds map[string]*database.Guild
	getErr error
	incErr error
}

func newFakeGuildStore(guilds ...*database.Guild) *fakeGuildStore {
	s := &fakeGuildStore{guilds: make(map[string]*database.Guild)}
	for _, g := range guilds {
		s.guilds[g.ID] = g
	}
	return s
}

func (s *fakeGuildStore) GetGuild(_ context.Context, guildID string) (*database.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	g, ok := s.guilds[guildID]
	if !ok {
		return nil, database.ErrGuildNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *fakeGuildStore) IncrementMessagesProcessed(_ context.Context, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incErr != nil {
		return s.incErr
	}
	if g, ok := s.guilds[guildID]; ok {
		g.MessagesProcessed++
	}
	return nil
}

func newGuard(store GuildStore, limit int64) *Guard {
	return New(store, limit, slog.New(slog.DiscardHandler))
}

func TestCanProcessTrialBoundary(t *testing.T) {
	t.Parallel()

	store := newFakeGuildStore(&database.Guild{ID: "g1", MessagesProcessed: 19})
	guard := newGuard(store, 20)

	ok, err := guard.CanProcess(context.Background(), "g1")
	require.NoError(t, err)
	require.True(t, ok, "the 20th message is still within the trial")

	require.NoError(t, guard.RecordProcessed(context.Background(), "g1"))

	ok, err = guard.CanProcess(context.Background(), "g1")
	require.NoError(t, err)
	require.False(t, ok, "the 21st message exceeds the trial")
}

func TestCanProcessDeniesUnknownGuild(t *testing.T) {
	t.Parallel()

	guard := newGuard(newFakeGuildStore(), 20)

	ok, err := guard.CanProcess(context.Background(), "unknown")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanProcessSubscriptionOverridesLimit(t *testing.T) {
	t.Parallel()

	store := newFakeGuildStore(&database.Guild{
		ID:                    "g1",
		MessagesProcessed:     9999,
		HasActiveSubscription: true,
	})
	guard := newGuard(store, 20)

	ok, err := guard.CanProcess(context.Background(), "g1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCanProcessPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	store := newFakeGuildStore()
	store.getErr = errors.New("db locked")
	guard := newGuard(store, 20)

	ok, err := guard.CanProcess(context.Background(), "g1")
	require.Error(t, err)
	require.False(t, ok)
}

func TestStatusMessage(t *testing.T) {
	t.Parallel()

	store := newFakeGuildStore(
		&database.Guild{ID: "under", MessagesProcessed: 5},
		&database.Guild{ID: "exhausted", MessagesProcessed: 20},
		&database.Guild{ID: "paid", MessagesProcessed: 20, HasActiveSubscription: true},
	)
	guard := newGuard(store, 20)

	msg, err := guard.StatusMessage(context.Background(), "under")
	require.NoError(t, err)
	require.Empty(t, msg)

	msg, err = guard.StatusMessage(context.Background(), "exhausted")
	require.NoError(t, err)
	require.Equal(t, TrialLimitMessage, msg)

	msg, err = guard.StatusMessage(context.Background(), "paid")
	require.NoError(t, err)
	require.Empty(t, msg)

	msg, err = guard.StatusMessage(context.Background(), "unknown")
	require.NoError(t, err)
	require.Empty(t, msg)
}

func TestRecordProcessedIncrementsExactlyOnce(t *testing.T) {
	t.Parallel()

	store := newFakeGuildStore(&database.Guild{ID: "g1"})
	guard := newGuard(store, 20)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = guard.RecordProcessed(context.Background(), "g1")
		}()
	}
	wg.Wait()

	require.EqualValues(t, n, store.guilds["g1"].MessagesProcessed)
}

func TestRecordProcessedWrapsStoreErrors(t *testing.T) {
	t.Parallel()

	store := newFakeGuildStore(&database.Guild{ID: "g1"})
	store.incErr = errors.New("disk full")
	guard := newGuard(store, 20)

	err := guard.RecordProcessed(context.Background(), "g1")
	require.ErrorIs(t, err, store.incErr)
}
