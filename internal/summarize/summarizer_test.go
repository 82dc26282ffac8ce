package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mfields/digestbot/internal/database"
	"github.com/mfields/digestbot/internal/pacer"
)

type mockSummaryStore struct {
	messages  []*database.Message
	window    [2]time.Time
	prior     *database.Summary
	priorErr  error
	saved     []*database.Summary
	saveErr   error
	selectErr error
}

func (s *mockSummaryStore) GetMessagesInWindow(_ context.Context, _ string, after, until time.Time) ([]*database.Message, error) {
	s.window = [2]time.Time{after, until}
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	return s.messages, nil
}

func (s *mockSummaryStore) GetLatestSummary(context.Context, string) (*database.Summary, error) {
	return s.prior, s.priorErr
}

func (s *mockSummaryStore) SaveSummary(_ context.Context, summary *database.Summary) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, summary)
	return nil
}

// scriptedGenerator returns canned responses in order and records every
// prompt it saw.
type scriptedGenerator struct {
	responses []string
	err       error
	prompts   []string
}

func (g *scriptedGenerator) GenerateResponse(_ context.Context, prompt, _ string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "", errors.New("scriptedGenerator: no responses left")
	}
	resp := g.responses[0]
	g.responses = g.responses[1:]
	return resp, nil
}

func makeMessages(n int, start time.Time) []*database.Message {
	msgs := make([]*database.Message, n)
	for i := range msgs {
		msgs[i] = &database.Message{
			ID:        fmt.Sprintf("m%d", i),
			GuildID:   "guild-1",
			Username:  "alice",
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: start.Add(time.Duration(i) * time.Minute),
		}
	}
	return msgs
}

func newSummarizer(store *mockSummaryStore, gen *scriptedGenerator, batchSize int) *Summarizer {
	return New(store, gen, pacer.Nop(), Config{
		BatchSize: batchSize,
		Window:    7 * 24 * time.Hour,
	}, slog.New(slog.DiscardHandler))
}

func TestRunProducesSummaryFromBatches(t *testing.T) {
	t.Parallel()

	store := &mockSummaryStore{messages: makeMessages(4, time.Now().UTC().Add(-time.Hour))}
	gen := &scriptedGenerator{responses: []string{"topic A discussion", "topic B discussion", "- A\n- B"}}
	s := newSummarizer(store, gen, 2)

	summary, err := s.Run(context.Background(), "guild-1")
	require.NoError(t, err)
	require.NotNil(t, summary)
	require.Equal(t, "- A\n- B", summary.Summary)
	require.Len(t, store.saved, 1)

	// Two map prompts plus one reduce prompt.
	require.Len(t, gen.prompts, 3)
	require.Contains(t, gen.prompts[0], "alice: message 0")
	require.Contains(t, gen.prompts[2], "topic A discussion")
	require.Contains(t, gen.prompts[2], "topic B discussion")
}

func TestRunFiltersEmptyBatchSentinel(t *testing.T) {
	t.Parallel()

	store := &mockSummaryStore{messages: makeMessages(6, time.Now().UTC().Add(-time.Hour))}
	gen := &scriptedGenerator{responses: []string{
		"topic A discussion",
		"  No Meaningful Content Found \n",
		"topic B discussion",
		"- merged",
	}}
	s := newSummarizer(store, gen, 2)

	summary, err := s.Run(context.Background(), "guild-1")
	require.NoError(t, err)
	require.NotNil(t, summary)

	reducePrompt := gen.prompts[len(gen.prompts)-1]
	require.Contains(t, reducePrompt, "topic A discussion")
	require.Contains(t, reducePrompt, "topic B discussion")
	require.NotContains(t, strings.ToLower(reducePrompt), "no meaningful content found")
}

func TestRunSkipsWhenAllBatchesAreEmpty(t *testing.T) {
	t.Parallel()

	store := &mockSummaryStore{messages: makeMessages(2, time.Now().UTC().Add(-time.Hour))}
	gen := &scriptedGenerator{responses: []string{"no meaningful content found"}}
	s := newSummarizer(store, gen, 50)

	summary, err := s.Run(context.Background(), "guild-1")
	require.NoError(t, err)
	require.Nil(t, summary)
	require.Empty(t, store.saved)
}

func TestRunContinuesFromPriorWindowEnd(t *testing.T) {
	t.Parallel()

	t0 := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)
	store := &mockSummaryStore{
		prior: &database.Summary{
			GuildID: "guild-1",
			EndDate: t0,
			Summary: "earlier: the group planned a meetup",
		},
		messages: makeMessages(2, t0.Add(time.Hour)),
	}
	gen := &scriptedGenerator{responses: []string{"new topic", "- updated"}}
	s := newSummarizer(store, gen, 50)

	summary, err := s.Run(context.Background(), "guild-1")
	require.NoError(t, err)
	require.NotNil(t, summary)

	require.Equal(t, t0, store.window[0], "window must start at the prior summary's end, not 7 days ago")
	require.Equal(t, t0, summary.StartDate)

	reducePrompt := gen.prompts[len(gen.prompts)-1]
	require.Contains(t, reducePrompt, "earlier: the group planned a meetup", "continuation must cite the prior narrative")
}

func TestRunUsesDefaultWindowWithoutPriorSummary(t *testing.T) {
	t.Parallel()

	store := &mockSummaryStore{messages: makeMessages(1, time.Now().UTC().Add(-time.Hour))}
	gen := &scriptedGenerator{responses: []string{"topic", "- summary"}}
	s := newSummarizer(store, gen, 50)

	_, err := s.Run(context.Background(), "guild-1")
	require.NoError(t, err)

	windowSpan := store.window[1].Sub(store.window[0])
	require.InDelta(t, (7 * 24 * time.Hour).Seconds(), windowSpan.Seconds(), 5)
}

func TestRunEmptyWindowIsNoop(t *testing.T) {
	t.Parallel()

	store := &mockSummaryStore{}
	gen := &scriptedGenerator{}
	s := newSummarizer(store, gen, 50)

	summary, err := s.Run(context.Background(), "guild-1")
	require.NoError(t, err)
	require.Nil(t, summary)
	require.Empty(t, gen.prompts)
	require.Empty(t, store.saved)
}

func TestRunBatchFailureCommitsNothing(t *testing.T) {
	t.Parallel()

	store := &mockSummaryStore{messages: makeMessages(3, time.Now().UTC().Add(-time.Hour))}
	gen := &scriptedGenerator{err: errors.New("backend down")}
	s := newSummarizer(store, gen, 2)

	summary, err := s.Run(context.Background(), "guild-1")
	require.Error(t, err)
	require.Nil(t, summary)
	require.Empty(t, store.saved, "a failed run must not leave a partial summary")
}

func TestRunReduceFailureCommitsNothing(t *testing.T) {
	t.Parallel()

	store := &mockSummaryStore{messages: makeMessages(2, time.Now().UTC().Add(-time.Hour))}
	gen := &scriptedGenerator{responses: []string{"topic"}} // reduce call has no response left
	s := newSummarizer(store, gen, 50)

	summary, err := s.Run(context.Background(), "guild-1")
	require.Error(t, err)
	require.Nil(t, summary)
	require.Empty(t, store.saved)
}

func TestRunPacesBetweenBatchesOnly(t *testing.T) {
	t.Parallel()

	store := &mockSummaryStore{messages: makeMessages(5, time.Now().UTC().Add(-time.Hour))}
	gen := &scriptedGenerator{responses: []string{"a", "b", "c", "- final"}}
	counting := &countingPacer{}
	s := New(store, gen, counting, Config{BatchSize: 2, Window: 7 * 24 * time.Hour}, slog.New(slog.DiscardHandler))

	_, err := s.Run(context.Background(), "guild-1")
	require.NoError(t, err)
	require.Equal(t, 2, counting.waits, "no delay after the final batch")
}

type countingPacer struct {
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}
