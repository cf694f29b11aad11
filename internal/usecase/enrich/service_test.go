package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindred-places/kindred/internal/domain/place"
	"github.com/kindred-places/kindred/internal/transport/openai"
)

type mockAnalyzer struct {
	vibe  string
	err   error
	delay time.Duration
}

func (m *mockAnalyzer) DescribeImage(ctx context.Context, _ string) (string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.vibe, m.err
}

type mockReasoner struct {
	sentences []string
	err       error
	got       []openai.CandidateSummary
}

func (m *mockReasoner) ReasonBatch(
	_ context.Context, _ place.Candidate, candidates []openai.CandidateSummary, _ string,
) ([]string, error) {
	m.got = candidates
	if m.err != nil {
		return nil, m.err
	}
	if m.sentences != nil {
		return m.sentences, nil
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = "Because " + c.Name + " matches."
	}
	return out, nil
}

func matchesWithPhotos(ids ...string) []place.Match {
	out := make([]place.Match, len(ids))
	for i, id := range ids {
		out[i] = place.Match{Candidate: place.Candidate{
			ID:        id,
			Name:      "Place " + id,
			PhotoRefs: []string{"https://img.example/" + id},
		}}
	}
	return out
}

func newService(t *testing.T, analyzer ImageAnalyzer, reasoner BatchReasoner, timeout time.Duration) *Service {
	t.Helper()
	svc, err := New(analyzer, reasoner, 2, timeout, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Release)
	return svc
}

func TestEnrich_AttachesVibeAndReasoning(t *testing.T) {
	analyzer := &mockAnalyzer{vibe: "warm light, plants everywhere"}
	reasoner := &mockReasoner{}
	svc := newService(t, analyzer, reasoner, time.Second)

	got := svc.Enrich(context.Background(), place.Candidate{ID: "src"}, "Lisbon", matchesWithPhotos("a", "b"))

	require.Len(t, got, 2)
	for _, m := range got {
		assert.Equal(t, "warm light, plants everywhere", m.ImageVibe)
		assert.Equal(t, "Because "+m.Candidate.Name+" matches.", m.Reasoning)
	}
	assert.Len(t, reasoner.got, 2)
}

func TestEnrich_ImageTimeoutLeavesVibeAbsent(t *testing.T) {
	analyzer := &mockAnalyzer{vibe: "never seen", delay: 500 * time.Millisecond}
	reasoner := &mockReasoner{}
	svc := newService(t, analyzer, reasoner, 20*time.Millisecond)

	got := svc.Enrich(context.Background(), place.Candidate{ID: "src"}, "Lisbon", matchesWithPhotos("a"))

	require.Len(t, got, 1)
	assert.Empty(t, got[0].ImageVibe, "timed-out analysis must leave the vibe absent")
	assert.NotEmpty(t, got[0].Reasoning, "reasoning leg is independent of the image leg")
}

func TestEnrich_AnalyzerErrorIsNonFatal(t *testing.T) {
	analyzer := &mockAnalyzer{err: errors.New("vision unavailable")}
	reasoner := &mockReasoner{}
	svc := newService(t, analyzer, reasoner, time.Second)

	got := svc.Enrich(context.Background(), place.Candidate{ID: "src"}, "Lisbon", matchesWithPhotos("a"))

	require.Len(t, got, 1)
	assert.Empty(t, got[0].ImageVibe)
	assert.NotEmpty(t, got[0].Reasoning)
}

func TestEnrich_ReasoningFailureYieldsGenericForAll(t *testing.T) {
	reasoner := &mockReasoner{err: errors.New("model overloaded")}
	svc := newService(t, nil, reasoner, time.Second)

	got := svc.Enrich(context.Background(), place.Candidate{ID: "src"}, "Lisbon", matchesWithPhotos("a", "b", "c"))

	require.Len(t, got, 3)
	for _, m := range got {
		assert.Equal(t, GenericReasoning, m.Reasoning)
	}
}

func TestEnrich_ReasoningCountMismatchYieldsGeneric(t *testing.T) {
	reasoner := &mockReasoner{sentences: []string{"only one"}}
	svc := newService(t, nil, reasoner, time.Second)

	got := svc.Enrich(context.Background(), place.Candidate{ID: "src"}, "Lisbon", matchesWithPhotos("a", "b"))

	require.Len(t, got, 2)
	for _, m := range got {
		assert.Equal(t, GenericReasoning, m.Reasoning)
	}
}

func TestEnrich_NoPhotosSkipsImageLeg(t *testing.T) {
	analyzer := &mockAnalyzer{vibe: "should not appear"}
	reasoner := &mockReasoner{}
	svc := newService(t, analyzer, reasoner, time.Second)

	matches := []place.Match{{Candidate: place.Candidate{ID: "a", Name: "Bare"}}}
	got := svc.Enrich(context.Background(), place.Candidate{ID: "src"}, "Lisbon", matches)

	require.Len(t, got, 1)
	assert.Empty(t, got[0].ImageVibe)
}

func TestEnrich_ConcurrentLegsUseStableSummaries(t *testing.T) {
	// Both legs run at once: the image workers write vibes while the
	// reasoning call is in flight. The summaries handed to the reasoner
	// must come from the unchanging input, whatever the interleaving.
	analyzer := &mockAnalyzer{vibe: "bright"}
	in := matchesWithPhotos("a", "b", "c", "d", "e", "f", "g", "h")

	for iter := 0; iter < 50; iter++ {
		reasoner := &mockReasoner{}
		svc, err := New(analyzer, reasoner, 8, time.Second, nil)
		require.NoError(t, err)

		got := svc.Enrich(context.Background(), place.Candidate{ID: "src"}, "Lisbon", in)
		svc.Release()

		require.Len(t, reasoner.got, len(in))
		for i, summary := range reasoner.got {
			assert.Equal(t, in[i].Candidate.Name, summary.Name)
		}
		require.Len(t, got, len(in))
		for i, m := range got {
			assert.Equal(t, "bright", m.ImageVibe)
			assert.Equal(t, "Because "+in[i].Candidate.Name+" matches.", m.Reasoning)
		}
	}
}

func TestEnrich_DoesNotMutateInput(t *testing.T) {
	reasoner := &mockReasoner{}
	svc := newService(t, nil, reasoner, time.Second)
	in := matchesWithPhotos("a")

	_ = svc.Enrich(context.Background(), place.Candidate{ID: "src"}, "Lisbon", in)

	assert.Empty(t, in[0].Reasoning, "input slice must stay untouched")
}
