package discovery

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/crawler"
	"github.com/openhire/jobradar/internal/domain"
)

type fakeFetcher struct {
	pages map[string]crawler.Result
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (crawler.Result, error) {
	if res, ok := f.pages[rawURL]; ok {
		return res, nil
	}
	return crawler.Result{StatusCode: 0}, fmt.Errorf("no route to %s", rawURL)
}

func TestProcessorPromotesReachableCandidates(t *testing.T) {
	home := `<html><body><a href="/careers">Careers</a></body></html>`
	careers := `<html><head><script src="https://boards.greenhouse.io/embed/job_board/js?for=acme"></script></head><body></body></html>`
	fetcher := &fakeFetcher{pages: map[string]crawler.Result{
		"https://acme.com":         {URL: "https://acme.com", Body: []byte(home), StatusCode: 200},
		"https://acme.com/careers": {URL: "https://acme.com/careers", Body: []byte(careers), StatusCode: 200},
	}}
	companies := &fakeCompanyRepo{}
	queue := &fakeDiscoveryRepo{}
	require.NoError(t, queue.Enqueue(context.Background(), domain.DiscoveryQueueEntry{
		Name: "Acme", Domain: "acme.com", Source: "accelerator", Confidence: 0.8,
	}))

	p := NewProcessor(fetcher, companies, queue, &fakeClock{}, zap.NewNop())
	outcome, err := p.Process(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Promoted)
	assert.Zero(t, outcome.Dropped)

	require.Len(t, companies.upserted, 1)
	c := companies.upserted[0]
	assert.Equal(t, "acme.com", c.Domain)
	assert.Equal(t, "https://acme.com/careers", c.CareersURL)
	assert.Equal(t, domain.ATSGreenhouse, c.ATSType)
	assert.True(t, c.Verified)
	assert.True(t, c.Active)
	assert.Empty(t, queue.queued, "processed entries must leave the queue")
}

func TestProcessorDropsUnreachableCandidates(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]crawler.Result{}}
	companies := &fakeCompanyRepo{}
	queue := &fakeDiscoveryRepo{}
	require.NoError(t, queue.Enqueue(context.Background(), domain.DiscoveryQueueEntry{
		Name: "Ghost", Domain: "ghost.example", Source: "funding-feed", Confidence: 0.4,
	}))

	p := NewProcessor(fetcher, companies, queue, &fakeClock{}, zap.NewNop())
	outcome, err := p.Process(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Dropped)
	assert.Empty(t, companies.upserted)
	assert.Empty(t, queue.queued, "dropped entries must leave the queue too")
}

func TestProcessorBoardCandidateSkipsCareersHunt(t *testing.T) {
	board := `<html><body><div class="opening"><a href="/acme/jobs/1">Engineer</a></div></body></html>`
	fetcher := &fakeFetcher{pages: map[string]crawler.Result{
		"https://boards.greenhouse.io/acme": {URL: "https://boards.greenhouse.io/acme", Body: []byte(board), StatusCode: 200},
	}}
	companies := &fakeCompanyRepo{}
	queue := &fakeDiscoveryRepo{}
	require.NoError(t, queue.Enqueue(context.Background(), domain.DiscoveryQueueEntry{
		Name: "Acme", Domain: "boards.greenhouse.io/acme", Source: "ats-probe", Confidence: 0.9,
	}))

	p := NewProcessor(fetcher, companies, queue, &fakeClock{}, zap.NewNop())
	outcome, err := p.Process(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, outcome.Promoted)
	c := companies.upserted[0]
	assert.Equal(t, "https://boards.greenhouse.io/acme", c.CareersURL)
	assert.Equal(t, domain.ATSGreenhouse, c.ATSType)
}
