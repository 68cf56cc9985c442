package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
)

func TestOrchestratorDedupesAcrossSources(t *testing.T) {
	companies := &fakeCompanyRepo{known: map[string]bool{"persisted.com": true}}
	queue := &fakeDiscoveryRepo{}
	sources := []Source{
		&staticSource{name: "accelerator", candidates: []domain.DiscoveredCompany{
			{Name: "Acme", Domain: "Acme.com", Source: "accelerator", Confidence: 0.8},
			{Name: "Acme again", Domain: "https://www.acme.com/careers", Source: "accelerator", Confidence: 0.8},
			{Name: "Persisted", Domain: "persisted.com", Source: "accelerator", Confidence: 0.8},
		}},
		&staticSource{name: "github-org", candidates: []domain.DiscoveredCompany{
			{Name: "Globex", Domain: "globex.io", Source: "github-org", Confidence: 0.9},
		}},
	}

	o := NewOrchestrator(sources, companies, queue, &fakeClock{}, zap.NewNop())
	run, err := o.Run(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, queue.queued, 2)
	domains := []string{queue.queued[0].Domain, queue.queued[1].Domain}
	assert.ElementsMatch(t, []string{"acme.com", "globex.io"}, domains)
	require.Len(t, queue.runs, 1)
	assert.NotNil(t, run.CompletedAt)
	require.Len(t, run.Stats, 2)
}

func TestOrchestratorSourceFailureIsIsolated(t *testing.T) {
	companies := &fakeCompanyRepo{}
	queue := &fakeDiscoveryRepo{}
	sources := []Source{
		&staticSource{name: "funding-feed", err: errors.New("feed down")},
		&staticSource{name: "accelerator", candidates: []domain.DiscoveredCompany{
			{Name: "Acme", Domain: "acme.com", Source: "accelerator", Confidence: 0.8},
		}},
	}

	o := NewOrchestrator(sources, companies, queue, &fakeClock{}, zap.NewNop())
	run, err := o.Run(context.Background(), nil)
	require.NoError(t, err, "one failing source must not fail the run")
	assert.Len(t, queue.queued, 1)

	var failed domain.SourceStats
	for _, s := range run.Stats {
		if s.Source == "funding-feed" {
			failed = s
		}
	}
	assert.Equal(t, 1, failed.Errored)
}

func TestOrchestratorSourceFilter(t *testing.T) {
	companies := &fakeCompanyRepo{}
	queue := &fakeDiscoveryRepo{}
	sources := []Source{
		&staticSource{name: "accelerator", candidates: []domain.DiscoveredCompany{
			{Name: "Acme", Domain: "acme.com", Source: "accelerator"},
		}},
		&staticSource{name: "search", candidates: []domain.DiscoveredCompany{
			{Name: "Globex", Domain: "globex.io", Source: "search"},
		}},
	}

	o := NewOrchestrator(sources, companies, queue, &fakeClock{}, zap.NewNop())
	run, err := o.Run(context.Background(), []string{"search"})
	require.NoError(t, err)
	require.Len(t, run.Stats, 1)
	assert.Equal(t, "search", run.Stats[0].Source)
	require.Len(t, queue.queued, 1)
	assert.Equal(t, "globex.io", queue.queued[0].Domain)

	_, err = o.Run(context.Background(), []string{"nope"})
	assert.Error(t, err)
}
