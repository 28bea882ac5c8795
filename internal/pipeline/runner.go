package pipeline

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/migrate-cli/internal/locale"
	"github.com/sells-group/migrate-cli/internal/model"
	"github.com/sells-group/migrate-cli/internal/resilience"
)

// Batch holds the source records of one content type keyed by raw locale code.
type Batch map[string][]model.SourceRecord

// Sink persists the results of a batch.
type Sink interface {
	CreateRun(ctx context.Context, contentType string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats) error
	SaveEntries(ctx context.Context, runID, contentType, locale string, entries []model.DestinationEntry) error
	RecordSkip(ctx context.Context, runID string, skip model.Skip) error
}

// BatchResult is the outcome of one batch.
type BatchResult struct {
	RunID string
	Plan  locale.Plan
	// Groups holds the assembled entries per destination locale, sorted by uid.
	Groups map[string][]model.DestinationEntry
	Skips  []model.Skip
	Stats  model.RunStats
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Concurrency int
	// RecordsPerSecond paces record dispatch; zero disables pacing.
	RecordsPerSecond float64
	Sentinels        locale.Sentinels
	Mapper           *locale.Mapper
	Retry            resilience.RetryConfig
}

// Runner assembles whole batches concurrently.
type Runner struct {
	assembler *Assembler
	sink      Sink
	cfg       RunnerConfig
	limiter   *rate.Limiter
}

// NewRunner creates a Runner. sink may be nil, in which case results are only
// returned.
func NewRunner(assembler *Assembler, sink Sink, cfg RunnerConfig) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Sentinels == (locale.Sentinels{}) {
		cfg.Sentinels = locale.DefaultSentinels()
	}
	if cfg.Mapper == nil {
		cfg.Mapper = locale.NewMapper(nil, cfg.Sentinels.EnglishRegional, cfg.Sentinels)
	}
	r := &Runner{assembler: assembler, sink: sink, cfg: cfg}
	if cfg.RecordsPerSecond > 0 {
		burst := int(cfg.RecordsPerSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RecordsPerSecond), burst)
	}
	return r
}

// Run reconciles the batch's locale codes once, assembles every record and
// persists the result. Records already dispatched finish when ctx is
// cancelled; records not yet dispatched are dropped and the run is marked
// failed.
func (r *Runner) Run(ctx context.Context, contentType string, batch Batch) (*BatchResult, error) {
	log := zap.L().With(zap.String("component", "runner"), zap.String("content_type", contentType))

	raws := make([]string, 0, len(batch))
	for raw := range batch {
		raws = append(raws, raw)
	}
	sort.Strings(raws)

	plan := locale.NewPlan(raws, r.cfg.Sentinels, r.cfg.Mapper)
	res := &BatchResult{
		Plan:   plan,
		Groups: make(map[string][]model.DestinationEntry),
		Stats:  model.RunStats{Locales: make(map[string]int)},
	}
	for _, dest := range plan.Locales() {
		log.Info("locale plan", zap.String("destination", dest), zap.Strings("sources", plan.Groups[dest]))
	}
	if _, ok := r.assembler.schemas.ContentType(contentType); !ok && contentType != "" {
		log.Warn("pipeline: no destination schema, fields keep their source types",
			zap.String("kind", "missing_schema"))
	}

	if r.sink != nil {
		run, err := r.sink.CreateRun(ctx, contentType)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		res.RunID = run.ID
	}

	var (
		mu          sync.Mutex
		records     atomic.Int64
		dispatchErr error
		seq         int
	)
	pending := make(map[string][]assembled)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

dispatch:
	for _, raw := range raws {
		rc := RecordContext{
			ContentType:    contentType,
			RawLocale:      raw,
			Locale:         plan.Destination[locale.Normalize(raw)],
			FallbackLocale: r.cfg.Mapper.Master,
		}
		for _, rec := range batch[raw] {
			order := seq
			seq++
			if err := gctx.Err(); err != nil {
				dispatchErr = err
				break dispatch
			}
			if r.limiter != nil {
				if err := r.limiter.Wait(gctx); err != nil {
					dispatchErr = err
					break dispatch
				}
			}
			g.Go(func() error {
				out := r.assembler.Assemble(rec, rc)
				records.Add(1)
				mu.Lock()
				defer mu.Unlock()
				if out.Skip != nil {
					out.Skip.CreatedAt = time.Now().UTC()
					res.Skips = append(res.Skips, *out.Skip)
					return nil
				}
				pending[out.Entry.Locale] = append(pending[out.Entry.Locale], assembled{
					entry: *out.Entry,
					raw:   locale.Normalize(raw),
					seq:   order,
				})
				return nil
			})
		}
	}
	_ = g.Wait()

	for loc, group := range pending {
		entries := dedupeUIDs(log, loc, group)
		res.Groups[loc] = entries
		res.Stats.Locales[loc] = len(entries)
		res.Stats.Assembled += len(entries)
	}
	sort.Slice(res.Skips, func(i, j int) bool {
		if res.Skips[i].Locale != res.Skips[j].Locale {
			return res.Skips[i].Locale < res.Skips[j].Locale
		}
		return res.Skips[i].LegacyID < res.Skips[j].LegacyID
	})
	res.Stats.Records = int(records.Load())
	res.Stats.Skipped = len(res.Skips)

	if dispatchErr == nil {
		dispatchErr = ctx.Err()
	}
	if dispatchErr != nil {
		res.Stats.Error = dispatchErr.Error()
		log.Warn("batch interrupted",
			zap.Int("records", res.Stats.Records),
			zap.Error(dispatchErr),
		)
		if r.sink != nil {
			// Persist what finished under a context that outlives the cancel.
			if err := r.persist(context.WithoutCancel(ctx), contentType, res, model.RunStatusFailed); err != nil {
				log.Error("persist interrupted batch", zap.Error(err))
			}
		}
		return res, eris.Wrap(dispatchErr, "pipeline: batch interrupted")
	}

	if r.sink != nil {
		if err := r.persist(ctx, contentType, res, model.RunStatusComplete); err != nil {
			return res, err
		}
	}
	log.Info("batch complete",
		zap.String("run_id", res.RunID),
		zap.Int("records", res.Stats.Records),
		zap.Int("assembled", res.Stats.Assembled),
		zap.Int("skipped", res.Stats.Skipped),
	)
	return res, nil
}

func (r *Runner) persist(ctx context.Context, contentType string, res *BatchResult, status model.RunStatus) error {
	retry := r.cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("save entries")
	}
	for _, loc := range sortedKeys(res.Groups) {
		entries := res.Groups[loc]
		err := resilience.Do(ctx, retry, func(ctx context.Context) error {
			return r.sink.SaveEntries(ctx, res.RunID, contentType, loc, entries)
		})
		if err != nil {
			r.failRun(ctx, res, err)
			return eris.Wrapf(err, "pipeline: save entries for locale %s", loc)
		}
	}
	for _, skip := range res.Skips {
		err := resilience.Do(ctx, retry, func(ctx context.Context) error {
			return r.sink.RecordSkip(ctx, res.RunID, skip)
		})
		if err != nil {
			r.failRun(ctx, res, err)
			return eris.Wrap(err, "pipeline: record skip")
		}
	}
	stats := res.Stats
	if err := r.sink.CompleteRun(ctx, res.RunID, status, &stats); err != nil {
		return eris.Wrap(err, "pipeline: complete run")
	}
	return nil
}

func (r *Runner) failRun(ctx context.Context, res *BatchResult, cause error) {
	stats := res.Stats
	stats.Error = cause.Error()
	if err := r.sink.CompleteRun(ctx, res.RunID, model.RunStatusFailed, &stats); err != nil {
		zap.L().Error("mark run failed", zap.String("run_id", res.RunID), zap.Error(err))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// assembled is an entry waiting for its locale group to be finalized.
type assembled struct {
	entry model.DestinationEntry
	// raw is the normalized source locale the entry came from.
	raw string
	// seq is the dispatch order, which follows sorted raw codes and input order.
	seq int
}

// dedupeUIDs sorts a locale group by uid and keeps one entry per uid.
// Distinct legacy ids that normalize to the same uid keep the lowest legacy
// id. The same legacy id arriving from several merged source locales keeps
// the entry whose source locale is the destination itself, then the first
// dispatched.
func dedupeUIDs(log *zap.Logger, loc string, group []assembled) []model.DestinationEntry {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if a.entry.UID != b.entry.UID {
			return a.entry.UID < b.entry.UID
		}
		if a.entry.LegacyID != b.entry.LegacyID {
			return a.entry.LegacyID < b.entry.LegacyID
		}
		if aNative, bNative := a.raw == loc, b.raw == loc; aNative != bNative {
			return aNative
		}
		return a.seq < b.seq
	})
	out := make([]model.DestinationEntry, 0, len(group))
	var kept assembled
	for i, g := range group {
		if i > 0 && g.entry.UID == kept.entry.UID {
			reason := "distinct legacy ids"
			if g.entry.LegacyID == kept.entry.LegacyID {
				reason = "merged source locales"
			}
			log.Warn("pipeline: duplicate destination uid",
				zap.String("kind", "duplicate_uid"),
				zap.String("reason", reason),
				zap.String("uid", g.entry.UID),
				zap.String("locale", loc),
				zap.String("legacy_id", g.entry.LegacyID),
				zap.String("source_locale", g.raw),
				zap.String("kept_legacy_id", kept.entry.LegacyID),
				zap.String("kept_source_locale", kept.raw),
			)
			continue
		}
		kept = g
		out = append(out, g.entry)
	}
	return out
}
