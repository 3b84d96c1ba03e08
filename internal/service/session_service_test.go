package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-discovery-search-service/internal/history"
	"movie-discovery-search-service/internal/models"
	"movie-discovery-search-service/internal/search"
)

type stubCatalog struct{}

func (stubCatalog) SearchMovies(_ context.Context, query string, _ int) (*models.ResultPage, error) {
	return &models.ResultPage{Page: 1, Results: []models.MovieSummary{{ID: 1, Title: query}}}, nil
}

type mockSessionRecorder struct {
	opened, closed int
}

func (m *mockSessionRecorder) ObserveLookup(string, time.Duration) {}
func (m *mockSessionRecorder) HistoryFailure(string)               {}
func (m *mockSessionRecorder) SessionOpened()                      { m.opened++ }
func (m *mockSessionRecorder) SessionClosed()                      { m.closed++ }

func newTestSessionService(t *testing.T, stores *history.MemoryStores, rec SessionRecorder) *SessionService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := func(userID string) search.HistoryStore { return stores.For(userID) }
	svc := NewSessionService(logger, stubCatalog{}, factory, rec, search.Options{Debounce: time.Millisecond}, time.Minute)
	t.Cleanup(svc.Shutdown)
	return svc
}

func TestSessionService_CreateLoadsHistory(t *testing.T) {
	stores := history.NewMemoryStores(10)
	require.NoError(t, stores.For("user-1").Save(context.Background(), "dune"))
	svc := newTestSessionService(t, stores, nil)

	sess := svc.Create(context.Background(), "user-1")

	require.NotEmpty(t, sess.ID)
	state := sess.Controller.State()
	assert.True(t, state.IsInitial)
	assert.Equal(t, []string{"dune"}, state.History)
}

func TestSessionService_GetChecksOwner(t *testing.T) {
	svc := newTestSessionService(t, history.NewMemoryStores(10), nil)
	sess := svc.Create(context.Background(), "user-1")

	got, err := svc.Get(sess.ID, "user-1")
	require.NoError(t, err)
	assert.Same(t, sess, got)

	_, err = svc.Get(sess.ID, "user-2")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Get("missing", "user-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_Close(t *testing.T) {
	rec := &mockSessionRecorder{}
	svc := newTestSessionService(t, history.NewMemoryStores(10), rec)
	sess := svc.Create(context.Background(), "user-1")

	assert.ErrorIs(t, svc.Close(sess.ID, "user-2"), ErrSessionNotFound)
	require.NoError(t, svc.Close(sess.ID, "user-1"))
	assert.ErrorIs(t, svc.Close(sess.ID, "user-1"), ErrSessionNotFound)

	_, err := svc.Get(sess.ID, "user-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 1, rec.opened)
	assert.Equal(t, 1, rec.closed)

	// The controller is closed: further submits are ignored.
	sess.Controller.Submit("dune")
	assert.True(t, sess.Controller.State().IsInitial)
}

func TestSessionService_SweepIdle(t *testing.T) {
	svc := newTestSessionService(t, history.NewMemoryStores(10), nil)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	stale := svc.Create(context.Background(), "user-1")
	fresh := svc.Create(context.Background(), "user-1")

	svc.now = func() time.Time { return start.Add(50 * time.Second) }
	_, err := svc.Get(fresh.ID, "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.Sweep(start.Add(90*time.Second)))
	assert.Equal(t, 1, svc.Len())

	_, err = svc.Get(stale.ID, "user-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_SharedHistoryAcrossSessions(t *testing.T) {
	svc := newTestSessionService(t, history.NewMemoryStores(10), nil)
	first := svc.Create(context.Background(), "user-1")

	first.Controller.Submit("dune")
	require.Eventually(t, func() bool {
		return len(first.Controller.State().History) == 1
	}, time.Second, 5*time.Millisecond)

	second := svc.Create(context.Background(), "user-1")
	assert.Equal(t, []string{"dune"}, second.Controller.State().History)
}

func TestSessionService_Shutdown(t *testing.T) {
	rec := &mockSessionRecorder{}
	svc := newTestSessionService(t, history.NewMemoryStores(10), rec)
	svc.Create(context.Background(), "user-1")
	svc.Create(context.Background(), "user-2")

	svc.Shutdown()

	assert.Zero(t, svc.Len())
	assert.Equal(t, 2, rec.closed)
}
