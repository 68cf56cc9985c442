// Package main hosts the jobradar service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, run inspection,
//     and stage invocation endpoints. Starting a stage creates a pipeline run
//     that executes in the background and is pollable by ID.
//   - Pipeline: internal/pipeline.Orchestrator drives the stage chain
//     discover -> process-queue -> crawl -> render -> extract ->
//     normalize-persist. Each stage is an independently observable and
//     cancelable run; the cascade flag chains completed stages into their
//     successors.
//   - Discovery: eight pluggable sources (ATS directories, accelerator
//     portfolios, job aggregators, GitHub orgs, seeded link crawling, funding
//     news feeds, ATS endpoint probing, web search) produce candidates that
//     are normalized, deduplicated, queued, and validated before promotion
//     to tracked companies.
//   - Crawling: a robots-aware fetcher with per-domain adaptive rate
//     limiting snapshots careers pages to the configured blob store
//     (memory/local/GCS) and records hash-addressed snapshots in Postgres.
//     A heuristic detector routes JavaScript shells through headless Chrome.
//   - Extraction: per-ATS extractors (Greenhouse, Lever, Workday,
//     SmartRecruiters, Ashby, Recruitee, BambooHR) fall back to generic HTML
//     heuristics and, when configured, a Gemini model as last resort.
//     Normalization classifies role family, seniority, and skills, parses
//     salary text, scores freshness, and upserts jobs by fingerprint.
//   - Configuration & plumbing: Viper populates config from env/files; zap
//     provides structured logging; Prometheus metrics are exported on
//     /metrics; stage invocations arrive over HTTP, cron schedules, or a
//     Pub/Sub subscription.
//
// Operational notes:
//   - Shutdown is coordinated via context cancellation from main: the HTTP
//     server drains, the scheduler stops, the renderer and clients close.
//   - On restart any run left in running state is swept to failed with an
//     interruption reason; runs are never silently resumed.
//
// Run locally: go run ./cmd/jobradar -config config.yaml (or rely solely on
// JOBRADAR_* env overrides).
package main
