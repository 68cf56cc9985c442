package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	blobmem "github.com/openhire/jobradar/internal/blob/memory"
	"github.com/openhire/jobradar/internal/crawler"
	"github.com/openhire/jobradar/internal/discovery"
	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/extract"
	"github.com/openhire/jobradar/internal/render"
	"github.com/openhire/jobradar/internal/store"
	storemem "github.com/openhire/jobradar/internal/store/memory"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

type fakeCompanies struct {
	companies []domain.Company
}

func (f *fakeCompanies) Upsert(_ context.Context, c domain.Company) (domain.Company, error) {
	f.companies = append(f.companies, c)
	return c, nil
}

func (f *fakeCompanies) Get(_ context.Context, id uuid.UUID) (domain.Company, error) {
	for _, c := range f.companies {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Company{}, store.ErrNotFound
}

func (f *fakeCompanies) GetByDomain(_ context.Context, dom string) (domain.Company, error) {
	for _, c := range f.companies {
		if c.Domain == dom {
			return c, nil
		}
	}
	return domain.Company{}, store.ErrNotFound
}

func (f *fakeCompanies) List(_ context.Context, filter store.CompanyFilter) ([]domain.Company, error) {
	var out []domain.Company
	for _, c := range f.companies {
		if filter.ActiveOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCompanies) KnownDomains(context.Context) (map[string]bool, error) {
	out := map[string]bool{}
	for _, c := range f.companies {
		out[c.Domain] = true
	}
	return out, nil
}

func (f *fakeCompanies) Deactivate(context.Context, uuid.UUID) error { return nil }

type fakeJobs struct {
	upserted    []domain.Job
	deactivated map[uuid.UUID][]string
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{deactivated: map[uuid.UUID][]string{}}
}

func (f *fakeJobs) Upsert(_ context.Context, j domain.Job) (domain.Job, error) {
	f.upserted = append(f.upserted, j)
	return j, nil
}

func (f *fakeJobs) Get(context.Context, uuid.UUID) (domain.Job, error) {
	return domain.Job{}, store.ErrNotFound
}

func (f *fakeJobs) List(context.Context, store.JobFilter) ([]domain.Job, error) {
	return f.upserted, nil
}

func (f *fakeJobs) DeactivateMissing(_ context.Context, companyID uuid.UUID, seen []string) (int64, error) {
	f.deactivated[companyID] = seen
	return 0, nil
}

type fakeSnapshots struct {
	inserted   []domain.CrawlSnapshot
	latest     map[uuid.UUID]domain.CrawlSnapshot
	unrendered []domain.CrawlSnapshot
	rendered   map[uuid.UUID]string
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{
		latest:   map[uuid.UUID]domain.CrawlSnapshot{},
		rendered: map[uuid.UUID]string{},
	}
}

func (f *fakeSnapshots) Insert(_ context.Context, s domain.CrawlSnapshot) error {
	f.inserted = append(f.inserted, s)
	f.latest[s.CompanyID] = s
	return nil
}

func (f *fakeSnapshots) Latest(_ context.Context, companyID uuid.UUID) (domain.CrawlSnapshot, error) {
	s, ok := f.latest[companyID]
	if !ok {
		return domain.CrawlSnapshot{}, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeSnapshots) LatestUnrendered(_ context.Context, limit int) ([]domain.CrawlSnapshot, error) {
	if limit < len(f.unrendered) {
		return f.unrendered[:limit], nil
	}
	return f.unrendered, nil
}

func (f *fakeSnapshots) MarkRendered(_ context.Context, id uuid.UUID, blobURI, _ string) error {
	f.rendered[id] = blobURI
	return nil
}

type fakeFetcher struct {
	pages map[string]string
	calls []string
	// onFetch, when set, runs before each fetch completes.
	onFetch func()
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (crawler.Result, error) {
	f.calls = append(f.calls, rawURL)
	if f.onFetch != nil {
		f.onFetch()
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return crawler.Result{}, fmt.Errorf("fetch %s: connection refused", rawURL)
	}
	return crawler.Result{URL: rawURL, Body: []byte(body), StatusCode: 200}, nil
}

type fakeDiscoverer struct {
	run domain.DiscoveryRun
	err error
}

func (f *fakeDiscoverer) Run(context.Context, []string) (domain.DiscoveryRun, error) {
	return f.run, f.err
}

type fakeProcessor struct{ outcome discovery.Outcome }

func (f *fakeProcessor) Process(context.Context, int) (discovery.Outcome, error) {
	return f.outcome, nil
}

type fakeExtractor struct {
	jobs []domain.ExtractedJob
	err  error
	reqs []extract.Request
}

func (f *fakeExtractor) Extract(_ context.Context, _ domain.ATSType, req extract.Request) ([]domain.ExtractedJob, string, error) {
	f.reqs = append(f.reqs, req)
	return f.jobs, "concrete", f.err
}

type fakeRenderer struct {
	html  string
	calls int
}

func (f *fakeRenderer) Render(context.Context, string) (render.Result, error) {
	f.calls++
	return render.Result{HTML: f.html, Success: true, RenderTimeMS: 42}, nil
}

func (f *fakeRenderer) Close(context.Context) error { return nil }

type env struct {
	orch      *Orchestrator
	runs      *storemem.RunStore
	companies *fakeCompanies
	jobs      *fakeJobs
	snapshots *fakeSnapshots
	fetcher   *fakeFetcher
	extractor *fakeExtractor
	renderer  *fakeRenderer
	blobs     *blobmem.Store
	clock     *fakeClock
}

func newEnv() *env {
	e := &env{
		runs:      storemem.NewRunStore(),
		companies: &fakeCompanies{},
		jobs:      newFakeJobs(),
		snapshots: newFakeSnapshots(),
		fetcher:   &fakeFetcher{pages: map[string]string{}},
		extractor: &fakeExtractor{},
		renderer:  &fakeRenderer{html: "<html>rendered</html>"},
		blobs:     blobmem.New(),
		clock:     newFakeClock(),
	}
	e.orch = New(Deps{
		Runs:      e.runs,
		Companies: e.companies,
		Jobs:      e.jobs,
		Snapshots: e.snapshots,
		Discovery: &fakeDiscoverer{},
		Queue:     &fakeProcessor{outcome: discovery.Outcome{Promoted: 2, Dropped: 1}},
		Fetcher:   e.fetcher,
		Renderer:  e.renderer,
		Detector:  render.NewDetector(50, nil, []string{"loading..."}),
		Extractor: e.extractor,
		Blobs:     e.blobs,
		Clock:     e.clock,
		Logger:    zap.NewNop(),
	})
	return e
}

func activeCompany(dom string, ats domain.ATSType) domain.Company {
	return domain.Company{
		ID:         uuid.New(),
		Name:       dom,
		Domain:     dom,
		CareersURL: "https://" + dom + "/careers",
		ATSType:    ats,
		Verified:   domain.SupportedATS[ats],
		Active:     true,
	}
}

func TestCrawlStageSnapshotsSupportedCompanies(t *testing.T) {
	e := newEnv()
	supported := activeCompany("acme.com", domain.ATSGreenhouse)
	unsupported := activeCompany("mom-and-pop.com", domain.ATSUnknown)
	e.companies.companies = []domain.Company{supported, unsupported}
	e.fetcher.pages[supported.CareersURL] = "<html>jobs here</html>"

	run, err := e.orch.Run(context.Background(), domain.StageCrawl, domain.StageParams{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 0, run.Failed)
	require.Len(t, e.snapshots.inserted, 1)

	snap := e.snapshots.inserted[0]
	assert.Equal(t, supported.ID, snap.CompanyID)
	assert.Equal(t, 200, snap.StatusCode)
	assert.NotEmpty(t, snap.ContentHash)
	assert.False(t, snap.Rendered)

	// Unsupported ATS never gets fetched on the bulk path.
	assert.Equal(t, []string{supported.CareersURL}, e.fetcher.calls)

	content, err := e.blobs.GetObject(context.Background(),
		"snapshots/"+supported.ID.String()+"/"+e.clock.now.Format("20060102T150405Z")+"-raw.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>jobs here</html>", string(content))
}

func TestCrawlStageRecordsFailures(t *testing.T) {
	e := newEnv()
	company := activeCompany("down.com", domain.ATSLever)
	e.companies.companies = []domain.Company{company}

	run, err := e.orch.Run(context.Background(), domain.StageCrawl, domain.StageParams{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 0, run.Processed)
	assert.Equal(t, 1, run.Failed)
	assert.Empty(t, e.snapshots.inserted)
}

func TestDiscoverStageFailureMarksRunFailed(t *testing.T) {
	e := newEnv()
	e.orch.discovery = &fakeDiscoverer{err: fmt.Errorf("postgres unavailable")}

	run, err := e.orch.Run(context.Background(), domain.StageDiscover, domain.StageParams{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Contains(t, run.Error, "postgres unavailable")
	require.NotNil(t, run.CompletedAt)
}

func TestProcessQueueStageCounts(t *testing.T) {
	e := newEnv()

	run, err := e.orch.Run(context.Background(), domain.StageProcessQueue, domain.StageParams{Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 2, run.Processed)
	assert.Equal(t, 1, run.Failed)
}

func TestCancellationStopsAtNextCheckpoint(t *testing.T) {
	e := newEnv()
	var companies []domain.Company
	for i := 0; i < 3; i++ {
		c := activeCompany(fmt.Sprintf("c%d.example.com", i), domain.ATSGreenhouse)
		e.fetcher.pages[c.CareersURL] = "<html>ok</html>"
		companies = append(companies, c)
	}
	e.companies.companies = companies

	// Cancel mid-run: after the first fetch, flag the single running run.
	e.fetcher.onFetch = func() {
		runs, err := e.runs.List(context.Background(), nil, 0, 0)
		require.NoError(t, err)
		for _, r := range runs {
			if r.Status == domain.RunRunning {
				require.NoError(t, e.orch.Cancel(context.Background(), r.ID))
			}
		}
	}

	run, err := e.orch.Run(context.Background(), domain.StageCrawl, domain.StageParams{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCancelled, run.Status)
	assert.Len(t, e.fetcher.calls, 1)
	assert.Len(t, e.snapshots.inserted, 1)
}

func TestRenderStageMarksAndArchives(t *testing.T) {
	e := newEnv()
	companyID := uuid.New()
	fetchedAt := e.clock.now.Add(-time.Hour)

	rawPath := "snapshots/" + companyID.String() + "/" + fetchedAt.Format("20060102T150405Z") + "-raw.html"
	_, err := e.blobs.PutObject(context.Background(), rawPath, "text/html", strings.NewReader("<div>loading...</div>"))
	require.NoError(t, err)

	snap := domain.CrawlSnapshot{
		ID:        uuid.New(),
		CompanyID: companyID,
		URL:       "https://acme.com/careers",
		BlobURI:   "memory://" + rawPath,
		FetchedAt: fetchedAt,
	}
	e.snapshots.unrendered = []domain.CrawlSnapshot{snap}

	run, err := e.orch.Run(context.Background(), domain.StageRender, domain.StageParams{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 1, e.renderer.calls)

	uri, ok := e.snapshots.rendered[snap.ID]
	require.True(t, ok)
	assert.Contains(t, uri, "-rendered.html")

	content, err := e.blobs.GetObject(context.Background(),
		"snapshots/"+companyID.String()+"/"+fetchedAt.Format("20060102T150405Z")+"-rendered.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>rendered</html>", string(content))
}

func TestRenderStageSkipsServerRenderedPages(t *testing.T) {
	e := newEnv()
	companyID := uuid.New()
	fetchedAt := e.clock.now.Add(-time.Hour)

	big := `<html><div class="jobs">` + strings.Repeat("<a>Engineer</a>", 30) + "</div></html>"

	rawPath := "snapshots/" + companyID.String() + "/" + fetchedAt.Format("20060102T150405Z") + "-raw.html"
	_, err := e.blobs.PutObject(context.Background(), rawPath, "text/html", strings.NewReader(big))
	require.NoError(t, err)

	snap := domain.CrawlSnapshot{
		ID:        uuid.New(),
		CompanyID: companyID,
		URL:       "https://acme.com/careers",
		BlobURI:   "memory://" + rawPath,
		FetchedAt: fetchedAt,
	}
	e.snapshots.unrendered = []domain.CrawlSnapshot{snap}

	run, err := e.orch.Run(context.Background(), domain.StageRender, domain.StageParams{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 0, e.renderer.calls)
	// Closed out with the raw capture so it stops queueing.
	assert.Equal(t, snap.BlobURI, e.snapshots.rendered[snap.ID])
}

func TestRenderStageFailsWhenRendererDisabled(t *testing.T) {
	e := newEnv()
	e.orch.renderer = nil

	run, err := e.orch.Run(context.Background(), domain.StageRender, domain.StageParams{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Contains(t, run.Error, "renderer disabled")
}

func TestNormalizeStagePersistsJobs(t *testing.T) {
	e := newEnv()
	company := activeCompany("acme.com", domain.ATSGreenhouse)
	e.companies.companies = []domain.Company{company}
	e.fetcher.pages[company.CareersURL] = "<html>board</html>"
	e.extractor.jobs = []domain.ExtractedJob{
		{Title: "Senior Go Engineer", SourceURL: "https://boards.greenhouse.io/acme/jobs/1"},
		{Title: "Data Scientist", SourceURL: "https://boards.greenhouse.io/acme/jobs/2"},
	}

	_, err := e.orch.Run(context.Background(), domain.StageCrawl, domain.StageParams{})
	require.NoError(t, err)

	run, err := e.orch.Run(context.Background(), domain.StageNormalize, domain.StageParams{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 2, run.Processed)
	require.Len(t, e.jobs.upserted, 2)
	assert.Equal(t, "engineering", e.jobs.upserted[0].RoleFamily)
	assert.Equal(t, "senior", e.jobs.upserted[0].Seniority)

	// The inactive sweep saw exactly the fingerprints just upserted.
	seen := e.jobs.deactivated[company.ID]
	require.Len(t, seen, 2)
	assert.Equal(t, e.jobs.upserted[0].Fingerprint, seen[0])
}

func TestNormalizeStageSkipsSweepOnEmptyExtraction(t *testing.T) {
	e := newEnv()
	company := activeCompany("acme.com", domain.ATSGreenhouse)
	e.companies.companies = []domain.Company{company}
	e.fetcher.pages[company.CareersURL] = "<html>board</html>"
	e.extractor.jobs = nil

	_, err := e.orch.Run(context.Background(), domain.StageCrawl, domain.StageParams{})
	require.NoError(t, err)

	run, err := e.orch.Run(context.Background(), domain.StageNormalize, domain.StageParams{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Empty(t, e.jobs.upserted)
	_, swept := e.jobs.deactivated[company.ID]
	assert.False(t, swept)
}

func TestCascadeStartsNextStage(t *testing.T) {
	e := newEnv()
	company := activeCompany("acme.com", domain.ATSGreenhouse)
	e.companies.companies = []domain.Company{company}
	e.fetcher.pages[company.CareersURL] = "<html>board</html>"
	e.extractor.jobs = []domain.ExtractedJob{
		{Title: "Engineer", SourceURL: "https://boards.greenhouse.io/acme/jobs/1"},
	}

	_, err := e.orch.Run(context.Background(), domain.StageCrawl, domain.StageParams{})
	require.NoError(t, err)

	run, err := e.orch.Run(context.Background(), domain.StageExtract, domain.StageParams{Cascade: true})
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)

	stage := domain.StageNormalize
	cascaded, err := e.runs.List(context.Background(), &stage, 0, 0)
	require.NoError(t, err)
	require.Len(t, cascaded, 1)
	assert.Equal(t, domain.RunCompleted, cascaded[0].Status)
	assert.True(t, cascaded[0].Cascade)
	require.Len(t, e.jobs.upserted, 1)
}

func TestNoCascadeWithoutFlag(t *testing.T) {
	e := newEnv()
	company := activeCompany("acme.com", domain.ATSGreenhouse)
	e.companies.companies = []domain.Company{company}
	e.fetcher.pages[company.CareersURL] = "<html>board</html>"

	_, err := e.orch.Run(context.Background(), domain.StageCrawl, domain.StageParams{})
	require.NoError(t, err)

	_, err = e.orch.Run(context.Background(), domain.StageExtract, domain.StageParams{})
	require.NoError(t, err)

	stage := domain.StageNormalize
	cascaded, err := e.runs.List(context.Background(), &stage, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, cascaded)
}

func TestRecoverOrphansSweepsRunningRuns(t *testing.T) {
	e := newEnv()
	orphan := domain.PipelineRun{
		ID:        uuid.New(),
		Stage:     domain.StageCrawl,
		Status:    domain.RunRunning,
		StartedAt: e.clock.now.Add(-time.Hour),
	}
	require.NoError(t, e.runs.Create(context.Background(), orphan))

	n, err := e.orch.RecoverOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	swept, err := e.runs.Get(context.Background(), orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, swept.Status)
	assert.Equal(t, "interrupted by restart", swept.Error)

	// Terminal states are final: a late finish cannot resurrect the run.
	landed, err := e.runs.Finish(context.Background(), orphan.ID, domain.RunCompleted, "", e.clock.now)
	require.NoError(t, err)
	assert.False(t, landed)
	again, err := e.runs.Get(context.Background(), orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, again.Status)
}

func TestRunRejectsUnknownStage(t *testing.T) {
	e := newEnv()
	_, err := e.orch.Run(context.Background(), domain.Stage("defragment"), domain.StageParams{})
	require.Error(t, err)
}
