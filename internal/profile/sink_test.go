package profile

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPSinkSubmitsJSON(t *testing.T) {
	t.Parallel()

	var got Submission
	var gotPath, gotContentType string
	var decodeErr error
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		decodeErr = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, 5*time.Second, slog.New(slog.DiscardHandler))

	err := sink.Submit(context.Background(), Submission{Name: "alice", Bio: "hi, I'm alice"})
	require.NoError(t, err)
	require.NoError(t, decodeErr)
	require.Equal(t, "/api/profile", gotPath)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, Submission{Name: "alice", Bio: "hi, I'm alice"}, got)
}

func TestHTTPSinkRejectsNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, 5*time.Second, slog.New(slog.DiscardHandler))

	err := sink.Submit(context.Background(), Submission{Name: "alice"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestHTTPSinkHonorsContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server watches for the client
		// disconnect; otherwise r.Context() is never cancelled and
		// srv.Close hangs on this handler.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, time.Minute, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sink.Submit(ctx, Submission{Name: "alice"})
	require.Error(t, err)
}

func TestNopSinkDiscards(t *testing.T) {
	t.Parallel()
	require.NoError(t, NopSink{}.Submit(context.Background(), Submission{Name: "x"}))
}
