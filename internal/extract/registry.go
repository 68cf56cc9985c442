package extract

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/metrics"
)

// Registry maps ATS types to their extractors and owns the fallback chain:
// the concrete extractor first, the generic HTML heuristics when it finds
// nothing, and the LLM extractor as the last resort when one is configured.
type Registry struct {
	extractors map[domain.ATSType]Extractor
	generic    *Generic
	llm        *LLM
	logger     *zap.Logger
}

// NewRegistry wires every supported extractor over a shared HTTP client.
// llm may be nil, in which case the chain stops at the generic extractor.
func NewRegistry(client *http.Client, llm *LLM, logger *zap.Logger) *Registry {
	if client == nil {
		client = newHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	extractors := map[domain.ATSType]Extractor{
		domain.ATSGreenhouse:      NewGreenhouse(client, logger),
		domain.ATSLever:           NewLever(client, logger),
		domain.ATSWorkday:         NewWorkday(client, logger),
		domain.ATSSmartRecruiters: NewSmartRecruiters(client, logger),
		domain.ATSAshby:           NewAshby(client, logger),
		domain.ATSRecruitee:       NewRecruitee(client, logger),
		domain.ATSBambooHR:        NewBambooHR(client, logger),
	}
	return &Registry{
		extractors: extractors,
		generic:    NewGeneric(logger),
		llm:        llm,
		logger:     logger,
	}
}

// Lookup returns the concrete extractor for an ATS type.
func (r *Registry) Lookup(ats domain.ATSType) (Extractor, bool) {
	e, ok := r.extractors[ats]
	return e, ok
}

// Extract runs the fallback chain for the given ATS type and reports which
// extractor produced the result.
func (r *Registry) Extract(ctx context.Context, ats domain.ATSType, req Request) ([]domain.ExtractedJob, string, error) {
	if e, ok := r.extractors[ats]; ok {
		jobs, err := e.Extract(ctx, req)
		if err != nil {
			r.logger.Warn("ats extractor failed, falling back",
				zap.String("ats", string(ats)),
				zap.String("source_url", req.SourceURL),
				zap.Error(err))
		}
		if len(jobs) > 0 {
			metrics.ObserveExtraction(string(ats), "ok", len(jobs))
			return jobs, string(ats), nil
		}
	}

	jobs, err := r.generic.Extract(ctx, req)
	if err == nil && len(jobs) > 0 {
		metrics.ObserveExtraction("generic", "ok", len(jobs))
		return jobs, "generic", nil
	}
	if err != nil {
		r.logger.Warn("generic extraction failed",
			zap.String("source_url", req.SourceURL),
			zap.Error(err))
	}

	if r.llm != nil {
		jobs, err := r.llm.Extract(ctx, req)
		if err != nil {
			metrics.ObserveExtraction("llm", "error", 0)
			return nil, "", fmt.Errorf("llm fallback for %s: %w", req.SourceURL, err)
		}
		metrics.ObserveExtraction("llm", "ok", len(jobs))
		return jobs, "llm", nil
	}

	metrics.ObserveExtraction(string(ats), "empty", 0)
	return nil, "", nil
}
