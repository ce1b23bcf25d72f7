// Package core wires every matchcore component into one injected object and
// exposes the public entry points: the synchronous match path and the
// asynchronous enqueue/fetch path. The transport layer holds one Core and
// adapts it to its protocol.
package core

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	commonctx "github.com/benidevo/matchcore/internal/common/context"
	"github.com/benidevo/matchcore/internal/common/logger"
	"github.com/benidevo/matchcore/internal/matchcore/cache"
	"github.com/benidevo/matchcore/internal/matchcore/config"
	"github.com/benidevo/matchcore/internal/matchcore/features"
	"github.com/benidevo/matchcore/internal/matchcore/geo"
	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
	"github.com/benidevo/matchcore/internal/matchcore/matchers"
	"github.com/benidevo/matchcore/internal/matchcore/metrics"
	"github.com/benidevo/matchcore/internal/matchcore/model"
	"github.com/benidevo/matchcore/internal/matchcore/queue"
	"github.com/benidevo/matchcore/internal/matchcore/resilience"
	"github.com/benidevo/matchcore/internal/matchcore/scoring"
	"github.com/benidevo/matchcore/internal/matchcore/taxonomy"
	"github.com/benidevo/matchcore/internal/matchcore/webhook"
	"github.com/benidevo/matchcore/internal/matchcore/worker"
)

// matchDeadline bounds one synchronous match request end to end.
const matchDeadline = 30 * time.Second

// ProfileStore is the external owner of candidate and job records.
type ProfileStore interface {
	GetCandidate(ctx context.Context, id string) (model.CandidateProfile, error)
	GetJob(ctx context.Context, id string) (model.JobPosting, error)
	ListActiveJobs(ctx context.Context) ([]model.JobPosting, error)
	ListActiveCandidates(ctx context.Context) ([]model.CandidateProfile, error)
}

// DocumentExtractor turns an uploaded document into a structured profile.
// Implementations handle PDF, DOCX and TXT.
type DocumentExtractor interface {
	Extract(ctx context.Context, data []byte, filename string) (model.CandidateProfile, error)
}

// Options carries the external capabilities injected into New. Store is
// required for the asynchronous path; every other capability is optional
// and its absence disables the features depending on it.
type Options struct {
	Store       ProfileStore
	Extractor   DocumentExtractor
	Embedder    features.Embedder
	GeoUpstream geo.Upstream
	SharedCache cache.Cache
}

// Core is the single object holding all matchcore components.
type Core struct {
	cfg config.Config

	taxonomy   *taxonomy.Taxonomy
	cacheTier  *cache.Tier
	geoClient  *geo.Client
	selector   *matchers.Selector
	queue      *queue.Queue
	pool       *worker.Pool
	dispatcher *webhook.Dispatcher
	metrics    *metrics.Registry

	store     ProfileStore
	extractor DocumentExtractor

	// sem bounds feature-generator fan-out across all matchers. Worker task
	// execution does not acquire it; the worker pool is bounded only by its
	// own PoolSize.
	sem chan struct{}

	log zerolog.Logger
}

// New wires a Core from configuration and injected capabilities.
func New(cfg config.Config, opts Options) (*Core, error) {
	tax, err := taxonomy.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("core: load taxonomy: %w", err)
	}

	tier, err := cache.NewTier(cfg.Cache.LocalSize, opts.SharedCache)
	if err != nil {
		return nil, fmt.Errorf("core: build cache tier: %w", err)
	}

	metricsRegistry, err := metrics.NewRegistry("matchcore", "1.0.0")
	if err != nil {
		return nil, fmt.Errorf("core: build metrics: %w", err)
	}

	retryDefault := resilience.RetryPolicy(cfg.Retry["default"])

	geoMode := geo.Mode(cfg.Geo.Mode)
	if opts.GeoUpstream == nil {
		// No upstream capability: only the deterministic simulator can
		// answer.
		geoMode = geo.ModeSimulation
	}
	geoBreaker := newBreaker("geo", cfg.Circuit["geo"])
	geoClient := geo.New(geo.Config{Mode: geoMode, DailyQuota: cfg.Geo.DailyQuota}, tier, opts.GeoUpstream, geoBreaker, retryDefault)

	sem := make(chan struct{}, 2*runtime.NumCPU())

	gens := []features.Generator{
		features.NewSkillsGenerator(tax, opts.Embedder),
		features.NewTextualGenerator(),
		features.NewPreferenceGenerator(geoClient),
		features.NewCulturalGenerator(opts.Embedder),
		features.NewExperienceGenerator(),
	}

	aggregator := scoring.NewAggregator(cfg.Weights)
	explainer := scoring.NewExplainer(nil)

	registered := []matchers.Matcher{
		matchers.NewRuleMatcher(gens, aggregator, explainer, tax, sem),
	}

	if cfg.Algorithms.Enabled["ml"] && cfg.Algorithms.MLModelPath != "" {
		ranker, err := matchers.NewMLRanker(cfg.Algorithms.MLModelPath, gens, aggregator, tax, sem)
		if err != nil {
			return nil, fmt.Errorf("core: %w", err)
		}
		registered = append(registered, ranker)
	}

	if cfg.Algorithms.Enabled["semantic"] && opts.Embedder != nil {
		semantic, err := matchers.NewSemanticMatcher(opts.Embedder, gens, cfg.Weights, explainer, tax, sem)
		if err != nil {
			return nil, fmt.Errorf("core: %w", err)
		}
		registered = append(registered, semantic)
	}

	selector, err := matchers.NewSelector(registered, matchers.NewHealthTracker())
	if err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}

	queuePolicies := make(map[model.Priority]config.QueuePolicy, len(cfg.Queue))
	for priority, policy := range cfg.Queue {
		queuePolicies[model.Priority(priority)] = policy
	}
	jobQueue := queue.New(queuePolicies, retryDefault, cfg.QueueHighWaterMark)

	webhookCircuit := cfg.Circuit["webhook"]
	dispatcher := webhook.NewDispatcher(retryDefault, webhookCircuit.Threshold, webhookCircuit.Timeout, webhookCircuit.SuccessesNeeded)

	pool := worker.NewPool(jobQueue, tier, dispatcher, metricsRegistry, cfg.Worker)

	c := &Core{
		cfg:        cfg,
		taxonomy:   tax,
		cacheTier:  tier,
		geoClient:  geoClient,
		selector:   selector,
		queue:      jobQueue,
		pool:       pool,
		dispatcher: dispatcher,
		metrics:    metricsRegistry,
		store:      opts.Store,
		extractor:  opts.Extractor,
		sem:        sem,
		log:        logger.GetLogger("matchcore.core"),
	}

	pool.Register(model.JobKindMatch, c.matchTask)
	pool.Register(model.JobKindParse, c.parseTask)
	pool.Register(model.JobKindParseAndMatch, c.parseAndMatchTask)

	return c, nil
}

func newBreaker(name string, policy config.CircuitPolicy) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(name, policy.Threshold, policy.Timeout, policy.SuccessesNeeded)
}

// DefaultMatchOptions returns the documented per-request defaults.
func (c *Core) DefaultMatchOptions() model.MatchOptions {
	return model.MatchOptions{
		EnableFallback: true,
		CacheTTL:       c.cfg.Cache.DefaultTTL,
	}
}

// Start launches the background worker pool.
func (c *Core) Start(ctx context.Context) {
	c.pool.Start(ctx)
	go c.publishQueueDepth(ctx)
}

// Stop drains the worker pool and flushes metrics.
func (c *Core) Stop(ctx context.Context) {
	c.pool.Stop()
	if err := c.metrics.Shutdown(ctx); err != nil {
		c.log.Warn().Err(err).Msg("metrics shutdown failed")
	}
	if err := c.cacheTier.Close(); err != nil {
		c.log.Warn().Err(err).Msg("cache close failed")
	}
}

func (c *Core) publishQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, priority := range []model.Priority{model.PriorityPremium, model.PriorityStandard, model.PriorityBatch} {
				stats := c.queue.Stats(priority)
				c.metrics.RecordQueueDepth(ctx, string(priority), float64(stats.Pending))
			}
		}
	}
}

// Metrics exposes the registry snapshot for the transport layer.
func (c *Core) Metrics() *metrics.Registry { return c.metrics }

// ReloadTaxonomy swaps in a new skills taxonomy document without pausing
// in-flight requests.
func (c *Core) ReloadTaxonomy(raw []byte) error {
	return c.taxonomy.Reload(raw)
}

// QueueStats exposes queue statistics for the transport layer.
func (c *Core) QueueStats(priority model.Priority) queue.Stats {
	return c.queue.Stats(priority)
}

// fingerprint builds the stable cache key for a match request.
func (c *Core) fingerprint(candidateID, jobID, hint string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{candidateID, jobID, hint, c.cfg.FeatureVersion}, "|")))
	return fmt.Sprintf("%x", sum[:16])
}

// Match is the public synchronous entry point.
func (c *Core) Match(ctx context.Context, req model.MatchRequest) (model.MatchResult, error) {
	if req.Candidate.ID == "" {
		return model.MatchResult{}, matcherr.Validation("candidate ID is required")
	}
	if req.Job.ID == "" {
		return model.MatchResult{}, matcherr.Validation("job ID is required")
	}
	if req.Options.CacheTTL <= 0 {
		req.Options.CacheTTL = c.cfg.Cache.DefaultTTL
	}

	ctx, cancel := context.WithTimeout(ctx, matchDeadline)
	defer cancel()

	requestID, ok := commonctx.GetRequestID(ctx)
	if !ok {
		requestID = uuid.New().String()
		ctx = commonctx.WithRequestID(ctx, requestID)
	}

	start := time.Now()
	key := "result:" + c.fingerprint(req.Candidate.ID, req.Job.ID, req.Options.AlgorithmHint)

	var cached model.MatchResult
	if err := c.cacheTier.Get(ctx, key, &cached); err == nil {
		cached.AlgorithmUsed += "+cache"
		c.metrics.RecordMatchRequest(ctx, cached.AlgorithmUsed, "ok", time.Since(start))
		return cached, nil
	}

	result, err := c.selector.Execute(ctx, req)
	if err != nil {
		c.metrics.RecordMatchRequest(ctx, "none", "error", time.Since(start))
		return model.MatchResult{}, err
	}

	if req.Options.WithCommuteTime {
		c.enrichCommute(ctx, req, &result)
	}

	result.Latency = time.Since(start)

	if err := c.cacheTier.Set(ctx, key, result, req.Options.CacheTTL); err != nil {
		c.log.Warn().Err(err).
			Str("candidate", logger.HashIdentifier(req.Candidate.ID)).
			Str("job", logger.HashIdentifier(req.Job.ID)).
			Msg("result cache write failed")
	}

	outcome := "ok"
	if strings.Contains(result.AlgorithmUsed, "/") {
		outcome = "fallback"
	}
	c.metrics.RecordMatchRequest(ctx, result.AlgorithmUsed, outcome, result.Latency)

	c.log.Debug().
		Str("request_id", requestID).
		Str("candidate", logger.HashIdentifier(req.Candidate.ID)).
		Str("job", logger.HashIdentifier(req.Job.ID)).
		Str("algorithm", result.AlgorithmUsed).
		Float64("score", result.OverallScore).
		Dur("latency", result.Latency).
		Msg("match scored")

	return result, nil
}

// enrichCommute attaches travel minutes when requested; it is best-effort
// and never fails the match.
func (c *Core) enrichCommute(ctx context.Context, req model.MatchRequest, result *model.MatchResult) {
	if req.Candidate.Location == "" || req.Job.Location == "" || req.Job.WorkMode == model.WorkModeRemote {
		return
	}

	callStart := time.Now()
	minutes, err := c.geoClient.TravelTime(ctx, req.Candidate.Location, req.Job.Location, geo.TravelDriving)
	if err != nil {
		c.metrics.RecordExternalCall(ctx, "geo", "error", time.Since(callStart))
		c.log.Debug().Err(err).Msg("commute enrichment skipped")
		return
	}
	c.metrics.RecordExternalCall(ctx, "geo", "ok", time.Since(callStart))
	result.CommuteMinutes = &minutes
}

// RankJobsForCandidate scores one candidate against every active job and
// returns the best results sorted by the documented tie-break order,
// filtered by MinScore and truncated to MaxResults.
func (c *Core) RankJobsForCandidate(ctx context.Context, candidateID string, opts model.MatchOptions) ([]model.MatchResult, error) {
	if c.store == nil {
		return nil, matcherr.Validation("profile store is not configured")
	}

	candidate, err := c.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	jobs, err := c.store.ListActiveJobs(ctx)
	if err != nil {
		return nil, err
	}

	ranked := make([]scoring.Ranked, 0, len(jobs))
	for _, job := range jobs {
		result, err := c.Match(ctx, model.MatchRequest{Candidate: candidate, Job: job, Options: opts})
		if err != nil {
			c.log.Warn().Err(err).Str("job", logger.HashIdentifier(job.ID)).Msg("skipping job in ranking")
			continue
		}
		if result.OverallScore < opts.MinScore {
			continue
		}
		ranked = append(ranked, scoring.Ranked{JobID: job.ID, Result: result, Features: result.Features})
	}

	scoring.SortRanked(ranked)

	limit := opts.MaxResults
	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}

	out := make([]model.MatchResult, 0, limit)
	for _, r := range ranked[:limit] {
		out = append(out, r.Result)
	}
	return out, nil
}

// EnqueueMatch submits an asynchronous job. The payload's kind selects the
// task body; the returned ID is the handle for FetchJob/JobResult.
func (c *Core) EnqueueMatch(ctx context.Context, payload model.JobPayload, priority model.Priority, webhookURL, webhookSecret string) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", matcherr.Internal(fmt.Errorf("marshal payload: %w", err))
	}

	return c.queue.Enqueue(ctx, model.Job{
		Kind:          payload.Kind,
		Priority:      priority,
		Payload:       raw,
		WebhookURL:    webhookURL,
		WebhookSecret: webhookSecret,
	})
}

// FetchJob returns a queued job's current state.
func (c *Core) FetchJob(id string) (model.Job, error) {
	return c.queue.Fetch(id)
}

// JobResult returns the cached result (or failure record) for a completed
// job.
func (c *Core) JobResult(ctx context.Context, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.cacheTier.Get(ctx, "result:"+id, &raw); err != nil {
		return nil, matcherr.NotFound("no result for job %s", id)
	}
	return raw, nil
}

// matchTask is the queued `match` body: load profiles, run the synchronous
// path, return the encoded result.
func (c *Core) matchTask(ctx context.Context, job model.Job) (json.RawMessage, error) {
	var payload model.JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, matcherr.Validation("undecodable payload: %v", err)
	}
	if c.store == nil {
		return nil, matcherr.Validation("profile store is not configured")
	}

	candidate, err := c.store.GetCandidate(ctx, payload.CandidateID)
	if err != nil {
		return nil, err
	}
	jobPosting, err := c.store.GetJob(ctx, payload.JobID)
	if err != nil {
		return nil, err
	}

	result, err := c.Match(ctx, model.MatchRequest{Candidate: candidate, Job: jobPosting, Options: payload.Options})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// parseTask extracts a structured profile from an uploaded document.
func (c *Core) parseTask(ctx context.Context, job model.Job) (json.RawMessage, error) {
	var payload model.JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, matcherr.Validation("undecodable payload: %v", err)
	}
	if c.extractor == nil {
		return nil, matcherr.Validation("document extractor is not configured")
	}

	profile, err := c.extractor.Extract(ctx, payload.Document, payload.Filename)
	if err != nil {
		return nil, err
	}
	return json.Marshal(profile)
}

// parseAndMatchTask extracts a profile, then proceeds as matchTask with it.
func (c *Core) parseAndMatchTask(ctx context.Context, job model.Job) (json.RawMessage, error) {
	var payload model.JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, matcherr.Validation("undecodable payload: %v", err)
	}
	if c.extractor == nil {
		return nil, matcherr.Validation("document extractor is not configured")
	}
	if c.store == nil {
		return nil, matcherr.Validation("profile store is not configured")
	}

	candidate, err := c.extractor.Extract(ctx, payload.Document, payload.Filename)
	if err != nil {
		return nil, err
	}
	if candidate.ID == "" {
		// Extracted profiles have no store identity; key them by the job
		// that produced them so repeated runs stay idempotent.
		candidate.ID = "parsed:" + job.ID
	}
	jobPosting, err := c.store.GetJob(ctx, payload.JobID)
	if err != nil {
		return nil, err
	}

	result, err := c.Match(ctx, model.MatchRequest{Candidate: candidate, Job: jobPosting, Options: payload.Options})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}
