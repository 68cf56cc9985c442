package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/blob"
	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/extract"
	"github.com/openhire/jobradar/internal/metrics"
	"github.com/openhire/jobradar/internal/store"
)

// defaultBatchLimit bounds all-companies stages when no limit is given.
const defaultBatchLimit = 500

func (o *Orchestrator) runDiscover(ctx context.Context, id uuid.UUID, tok token, params domain.StageParams) (stageCounts, error) {
	var c stageCounts
	if err := tok.check(ctx); err != nil {
		return c, err
	}
	o.progress(ctx, id, "running discovery sources", c)

	run, err := o.discovery.Run(ctx, params.Sources)
	if err != nil {
		return c, err
	}
	for _, s := range run.Stats {
		c.processed += s.Discovered
		c.failed += s.Errored
		o.log(ctx, id, "info", "source finished", map[string]any{
			"source": s.Source, "discovered": s.Discovered, "deduped": s.Deduped, "errored": s.Errored,
		})
	}
	o.progress(ctx, id, "discovery complete", c)
	return c, nil
}

func (o *Orchestrator) runProcessQueue(ctx context.Context, id uuid.UUID, tok token, params domain.StageParams) (stageCounts, error) {
	var c stageCounts
	if err := tok.check(ctx); err != nil {
		return c, err
	}
	o.progress(ctx, id, "validating queued candidates", c)

	outcome, err := o.processor.Process(ctx, params.Limit)
	if err != nil {
		return c, err
	}
	c.processed = outcome.Promoted
	c.failed = outcome.Dropped
	o.log(ctx, id, "info", "queue processed", map[string]any{
		"promoted": outcome.Promoted, "dropped": outcome.Dropped,
	})
	o.progress(ctx, id, "queue processing complete", c)
	return c, nil
}

func (o *Orchestrator) runCrawl(ctx context.Context, id uuid.UUID, tok token, params domain.StageParams) (stageCounts, error) {
	var c stageCounts
	companies, err := o.selectCompanies(ctx, params)
	if err != nil {
		return c, err
	}
	for _, company := range companies {
		if err := tok.check(ctx); err != nil {
			return c, err
		}
		// Explicit company IDs bypass the supported-ATS gate; the bulk
		// path crawls only boards the extractors can handle.
		if len(params.CompanyIDs) == 0 && !domain.SupportedATS[company.ATSType] {
			continue
		}
		o.progress(ctx, id, "crawling "+company.Domain, c)

		if err := o.snapshotCompany(ctx, company); err != nil {
			c.failed++
			o.log(ctx, id, "warn", "crawl failed", map[string]any{
				"company": company.Domain, "error": err.Error(),
			})
			continue
		}
		c.processed++
	}
	o.progress(ctx, id, "crawl complete", c)
	return c, nil
}

func (o *Orchestrator) snapshotCompany(ctx context.Context, company domain.Company) error {
	result, err := o.fetcher.Fetch(ctx, company.CareersURL)
	if err != nil {
		return err
	}
	now := o.clock.Now()
	contentHash, err := o.hasher.Hash(result.Body)
	if err != nil {
		return fmt.Errorf("hash snapshot: %w", err)
	}
	path := blob.SnapshotPath(company.ID, now, false)
	uri, err := o.blobs.PutObject(ctx, path, "text/html", bytes.NewReader(result.Body))
	if err != nil {
		return fmt.Errorf("archive snapshot: %w", err)
	}
	snap := domain.CrawlSnapshot{
		ID:          uuid.New(),
		CompanyID:   company.ID,
		URL:         result.URL,
		ContentHash: contentHash,
		BlobURI:     uri,
		StatusCode:  result.StatusCode,
		FetchedAt:   now,
	}
	if err := o.snapshots.Insert(ctx, snap); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

func (o *Orchestrator) runRender(ctx context.Context, id uuid.UUID, tok token, params domain.StageParams) (stageCounts, error) {
	var c stageCounts
	if o.renderer == nil {
		return c, fmt.Errorf("renderer disabled")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	pending, err := o.snapshots.LatestUnrendered(ctx, limit)
	if err != nil {
		return c, err
	}
	for _, snap := range pending {
		if err := tok.check(ctx); err != nil {
			return c, err
		}
		o.progress(ctx, id, "rendering "+snap.URL, c)

		content, err := o.blobs.GetObject(ctx, blob.SnapshotPath(snap.CompanyID, snap.FetchedAt, false))
		if err != nil {
			c.failed++
			o.log(ctx, id, "warn", "snapshot content unavailable", map[string]any{
				"snapshot_id": snap.ID.String(), "error": err.Error(),
			})
			continue
		}
		if !o.detector.NeedsRender(content) {
			// Server-rendered already; close out the render pass with the
			// raw capture so the snapshot stops queueing here.
			if err := o.snapshots.MarkRendered(ctx, snap.ID, snap.BlobURI, snap.ContentHash); err != nil {
				c.failed++
				continue
			}
			metrics.ObserveRender("skipped")
			c.processed++
			continue
		}

		result, err := o.renderer.Render(ctx, snap.URL)
		if err != nil || !result.Success {
			c.failed++
			metrics.ObserveRender("error")
			reason := result.Error
			if err != nil {
				reason = err.Error()
			}
			o.log(ctx, id, "warn", "render failed", map[string]any{
				"url": snap.URL, "error": reason,
			})
			continue
		}
		html := []byte(result.HTML)
		contentHash, err := o.hasher.Hash(html)
		if err != nil {
			c.failed++
			continue
		}
		path := blob.SnapshotPath(snap.CompanyID, snap.FetchedAt, true)
		uri, err := o.blobs.PutObject(ctx, path, "text/html", bytes.NewReader(html))
		if err != nil {
			c.failed++
			o.log(ctx, id, "warn", "archive rendered capture", map[string]any{"error": err.Error()})
			continue
		}
		if err := o.snapshots.MarkRendered(ctx, snap.ID, uri, contentHash); err != nil {
			c.failed++
			continue
		}
		metrics.ObserveRender("ok")
		c.processed++
	}
	o.progress(ctx, id, "render complete", c)
	return c, nil
}

func (o *Orchestrator) runExtract(ctx context.Context, id uuid.UUID, tok token, params domain.StageParams) (stageCounts, error) {
	var c stageCounts
	companies, err := o.selectCompanies(ctx, params)
	if err != nil {
		return c, err
	}
	for _, company := range companies {
		if err := tok.check(ctx); err != nil {
			return c, err
		}
		o.progress(ctx, id, "extracting "+company.Domain, c)

		jobs, via, err := o.extractCompany(ctx, company)
		if err != nil {
			c.failed++
			o.log(ctx, id, "warn", "extraction failed", map[string]any{
				"company": company.Domain, "error": err.Error(),
			})
			continue
		}
		c.processed++
		o.log(ctx, id, "info", "extracted", map[string]any{
			"company": company.Domain, "jobs": len(jobs), "via": via,
		})
	}
	o.progress(ctx, id, "extract complete", c)
	return c, nil
}

func (o *Orchestrator) runNormalize(ctx context.Context, id uuid.UUID, tok token, params domain.StageParams) (stageCounts, error) {
	var c stageCounts
	companies, err := o.selectCompanies(ctx, params)
	if err != nil {
		return c, err
	}
	for _, company := range companies {
		if err := tok.check(ctx); err != nil {
			return c, err
		}
		o.progress(ctx, id, "normalizing "+company.Domain, c)

		extracted, via, err := o.extractCompany(ctx, company)
		if err != nil {
			c.failed++
			o.log(ctx, id, "warn", "extraction failed", map[string]any{
				"company": company.Domain, "error": err.Error(),
			})
			continue
		}
		if len(extracted) == 0 {
			// An empty result is indistinguishable from an extractor
			// regression, so leave the company's jobs untouched.
			o.log(ctx, id, "warn", "no jobs extracted, skipping inactive sweep", map[string]any{
				"company": company.Domain,
			})
			continue
		}

		now := o.clock.Now()
		seen := make([]string, 0, len(extracted))
		for _, e := range extracted {
			job := o.normalizer.Job(company.ID, e, now)
			if _, err := o.jobs.Upsert(ctx, job); err != nil {
				c.failed++
				o.log(ctx, id, "warn", "job upsert failed", map[string]any{
					"url": e.SourceURL, "error": err.Error(),
				})
				continue
			}
			seen = append(seen, job.Fingerprint)
			c.processed++
		}
		deactivated, err := o.jobs.DeactivateMissing(ctx, company.ID, seen)
		if err != nil {
			o.log(ctx, id, "warn", "inactive sweep failed", map[string]any{
				"company": company.Domain, "error": err.Error(),
			})
			continue
		}
		o.log(ctx, id, "info", "company persisted", map[string]any{
			"company": company.Domain, "jobs": len(seen), "deactivated": deactivated, "via": via,
		})
	}
	o.progress(ctx, id, "normalize complete", c)
	return c, nil
}

// extractCompany reads the company's latest snapshot back from the archive
// and runs the fallback chain over it.
func (o *Orchestrator) extractCompany(ctx context.Context, company domain.Company) ([]domain.ExtractedJob, string, error) {
	snap, err := o.snapshots.Latest(ctx, company.ID)
	if err != nil {
		return nil, "", fmt.Errorf("load latest snapshot: %w", err)
	}
	content, err := o.blobs.GetObject(ctx, blob.SnapshotPath(snap.CompanyID, snap.FetchedAt, snap.Rendered))
	if err != nil {
		return nil, "", fmt.Errorf("load snapshot content: %w", err)
	}
	req := extract.Request{
		Content:     content,
		SourceURL:   snap.URL,
		CompanySlug: companySlug(company),
	}
	return o.extractor.Extract(ctx, company.ATSType, req)
}

// companySlug guesses the company's board token for the direct-API step.
// Hosted-board domains keep the token as their path segment; plain domains
// fall back to the first label.
func companySlug(c domain.Company) string {
	if i := strings.Index(c.Domain, "/"); i >= 0 {
		return c.Domain[i+1:]
	}
	if i := strings.Index(c.Domain, "."); i > 0 {
		return c.Domain[:i]
	}
	return c.Domain
}

func (o *Orchestrator) selectCompanies(ctx context.Context, params domain.StageParams) ([]domain.Company, error) {
	if len(params.CompanyIDs) > 0 {
		companies := make([]domain.Company, 0, len(params.CompanyIDs))
		for _, cid := range params.CompanyIDs {
			company, err := o.companies.Get(ctx, cid)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					o.logger.Warn("skipping unknown company", zap.String("company_id", cid.String()))
					continue
				}
				return nil, err
			}
			companies = append(companies, company)
		}
		return companies, nil
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	return o.companies.List(ctx, store.CompanyFilter{ActiveOnly: true, Limit: limit})
}
