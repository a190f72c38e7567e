// Package digest assembles personalized digests: it fetches articles for a
// user's topics, summarizes them, writes an introduction, stores the result
// and hands it to delivery.
//
// Only two failures are absorbed silently. A failed summary becomes a
// placeholder and a failed introduction becomes a templated sentence. Every
// other failure ends the run as StatusFailed with the stage that broke.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"news-digest/internal/domain/entity"
	"news-digest/internal/observability/logging"
	"news-digest/internal/observability/metrics"
	"news-digest/internal/observability/tracing"
	"news-digest/internal/repository"
	"news-digest/internal/usecase/delivery"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Status is the outcome of a run.
type Status string

const (
	StatusSent       Status = "sent"
	StatusNoArticles Status = "no_articles"
	StatusFailed     Status = "failed"
	// StatusDuplicate means a digest of the same mode was already created for
	// the user inside the dedup window. Nothing was sent.
	StatusDuplicate Status = "duplicate"
)

// Stage names a pipeline step. A failed Result carries the step that failed.
type Stage string

const (
	StageInput     Stage = "input"
	StageFetch     Stage = "fetch"
	StageSummarize Stage = "summarize"
	StageCompose   Stage = "compose"
	StagePersist   Stage = "persist"
	StageDeliver   Stage = "deliver"
	StageDone      Stage = "done"
)

// ErrNoArticles is returned by Preview when nothing matched.
var ErrNoArticles = errors.New("no articles matched the preferences")

const noArticlesReason = "no articles matched your preferences"

// Fetcher returns recent, deduplicated articles for a set of topics.
type Fetcher interface {
	FetchArticles(ctx context.Context, topics []string, perTopicLimit int, preferredSources []string) ([]*entity.Article, error)
}

// Deliverer sends a stored digest.
type Deliverer interface {
	Deliver(ctx context.Context, user *entity.User, d *entity.Digest, mode entity.DigestMode) delivery.Result
	// Resend delivers again even if the provider already accepted the digest.
	Resend(ctx context.Context, user *entity.User, d *entity.Digest, mode entity.DigestMode) delivery.Result
}

// Result describes one run. Digest is set for StatusSent, StatusDuplicate and
// for a StatusFailed at StageDeliver, where the digest was stored but not sent.
type Result struct {
	Status   Status
	Stage    Stage
	Digest   *entity.Digest
	Reason   string
	Err      error
	Delivery delivery.Result
}

// Config tunes the pipeline.
type Config struct {
	// DedupWindow suppresses a second digest of the same mode for the same
	// user created within the window. Zero disables the guard.
	DedupWindow time.Duration
}

// Pipeline runs digests for single users.
type Pipeline struct {
	fetcher    Fetcher
	summarizer *Summarizer
	composer   *Composer
	digests    repository.DigestRepository
	deliverer  Deliverer
	cfg        Config
	tracer     trace.Tracer
	now        func() time.Time
}

// NewPipeline wires a Pipeline.
func NewPipeline(
	fetcher Fetcher,
	summarizer *Summarizer,
	composer *Composer,
	digests repository.DigestRepository,
	deliverer Deliverer,
	cfg Config,
) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		summarizer: summarizer,
		composer:   composer,
		digests:    digests,
		deliverer:  deliverer,
		cfg:        cfg,
		tracer:     tracing.GetTracer(),
		now:        time.Now,
	}
}

// RunDigest fetches, summarizes, composes, stores and delivers one digest.
// It never panics and never returns an error; the outcome is in Result.
func (p *Pipeline) RunDigest(ctx context.Context, user *entity.User, mode entity.DigestMode, articlesPerTopic int) (res Result) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "digest.run")
	defer span.End()

	logger := logging.FromContext(ctx).With(slog.String("mode", string(mode)))
	defer func() {
		p.finish(span, logger, mode, res, time.Since(start))
	}()

	if user == nil || !mode.Valid() {
		return failed(StageInput, fmt.Errorf("run digest: %w: user and a known mode are required", entity.ErrInvalidInput))
	}
	logger = logger.With(slog.String("user_id", user.ID))
	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("digest.mode", string(mode)),
		attribute.Int("digest.articles_per_topic", articlesPerTopic),
	)

	if d := p.recentDigest(ctx, logger, user.ID, mode); d != nil {
		return Result{Status: StatusDuplicate, Stage: StageDone, Digest: d, Reason: "digest already created recently"}
	}

	articles, err := p.fetch(ctx, user, articlesPerTopic)
	if err != nil {
		return failed(StageFetch, err)
	}
	if len(articles) == 0 {
		return Result{Status: StatusNoArticles, Stage: StageDone, Reason: noArticlesReason}
	}

	summarized := p.summarize(ctx, articles)
	intro := p.compose(ctx, summarized, user, mode)

	stored, created, err := p.persist(ctx, user.ID, mode, intro, summarized)
	if err != nil {
		return failed(StagePersist, err)
	}
	if !created {
		return Result{Status: StatusDuplicate, Stage: StageDone, Digest: stored, Reason: "digest already created recently"}
	}

	return p.deliver(ctx, user, stored, mode)
}

// Redeliver sends an already stored digest again without recomputing it.
// An empty mode reuses the digest's own mode. It is the retry path for a
// failed delivery: a message the provider already accepted is not sent twice.
func (p *Pipeline) Redeliver(ctx context.Context, user *entity.User, digestID int64, mode entity.DigestMode) Result {
	return p.redeliver(ctx, user, digestID, mode, false)
}

// Resend is Redeliver for operators: the digest goes out again even when an
// earlier delivery succeeded.
func (p *Pipeline) Resend(ctx context.Context, user *entity.User, digestID int64, mode entity.DigestMode) Result {
	return p.redeliver(ctx, user, digestID, mode, true)
}

func (p *Pipeline) redeliver(ctx context.Context, user *entity.User, digestID int64, mode entity.DigestMode, fresh bool) (res Result) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "digest.redeliver")
	defer span.End()

	logger := logging.FromContext(ctx).With(slog.Int64("digest_id", digestID))
	metricMode := mode
	defer func() {
		p.finish(span, logger, metricMode, res, time.Since(start))
	}()

	if user == nil {
		return failed(StageInput, fmt.Errorf("redeliver: %w: user is required", entity.ErrInvalidInput))
	}
	d, err := p.digests.Get(ctx, digestID)
	if err != nil {
		return failed(StagePersist, fmt.Errorf("load digest %d: %w", digestID, err))
	}
	if d.UserID != user.ID {
		return failed(StageInput, fmt.Errorf("redeliver: %w: digest %d belongs to another user", entity.ErrInvalidInput, digestID))
	}
	if mode == "" {
		mode = d.Mode
		metricMode = mode
	}
	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("digest.mode", string(mode)),
		attribute.Bool("digest.resend", fresh))

	if fresh {
		return p.send(ctx, user, d, mode, p.deliverer.Resend)
	}
	return p.deliver(ctx, user, d, mode)
}

// Preview assembles a digest without storing or sending it.
func (p *Pipeline) Preview(ctx context.Context, user *entity.User, mode entity.DigestMode, articlesPerTopic int) (*entity.Digest, error) {
	ctx, span := p.tracer.Start(ctx, "digest.preview")
	defer span.End()

	if user == nil || !mode.Valid() {
		return nil, fmt.Errorf("preview: %w: user and a known mode are required", entity.ErrInvalidInput)
	}
	articles, err := p.fetch(ctx, user, articlesPerTopic)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}
	summarized := p.summarize(ctx, articles)
	intro := p.compose(ctx, summarized, user, mode)
	return entity.NewDigest(user.ID, mode, intro, summarized, p.now()), nil
}

func (p *Pipeline) recentDigest(ctx context.Context, logger *slog.Logger, userID string, mode entity.DigestMode) *entity.Digest {
	if p.cfg.DedupWindow <= 0 {
		return nil
	}
	d, err := p.digests.FindRecent(ctx, userID, mode, p.now().Add(-p.cfg.DedupWindow))
	switch {
	case err == nil:
		logger.Info("recent digest found, skipping run", slog.Int64("digest_id", d.ID))
		return d
	case errors.Is(err, entity.ErrNotFound):
	default:
		// the conditional insert still guards against duplicates
		logger.Warn("dedup pre-check failed", slog.Any("error", err))
	}
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, user *entity.User, perTopic int) ([]*entity.Article, error) {
	ctx, span := p.tracer.Start(ctx, "digest.fetch")
	defer span.End()

	prefs := user.Preferences
	articles, err := p.fetcher.FetchArticles(ctx, prefs.Topics, perTopic, prefs.Sources)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, fmt.Errorf("fetch articles: %w", err)
	}
	span.SetAttributes(attribute.Int("digest.articles", len(articles)))
	return articles, nil
}

func (p *Pipeline) summarize(ctx context.Context, articles []*entity.Article) []*entity.Article {
	ctx, span := p.tracer.Start(ctx, "digest.summarize")
	defer span.End()
	return p.summarizer.SummarizeAll(ctx, articles)
}

func (p *Pipeline) compose(ctx context.Context, articles []*entity.Article, user *entity.User, mode entity.DigestMode) string {
	ctx, span := p.tracer.Start(ctx, "digest.compose")
	defer span.End()
	return p.composer.Compose(ctx, articles, user.Preferences, mode, user.Name)
}

func (p *Pipeline) persist(
	ctx context.Context,
	userID string,
	mode entity.DigestMode,
	intro string,
	articles []*entity.Article,
) (*entity.Digest, bool, error) {
	ctx, span := p.tracer.Start(ctx, "digest.persist")
	defer span.End()

	now := p.now()
	var since time.Time
	if p.cfg.DedupWindow > 0 {
		since = now.Add(-p.cfg.DedupWindow)
	}

	stored, created, err := p.digests.CreateIfAbsent(ctx, entity.NewDigest(userID, mode, intro, articles, now), since)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, false, fmt.Errorf("store digest: %w", err)
	}
	span.SetAttributes(attribute.Int64("digest.id", stored.ID), attribute.Bool("digest.created", created))
	return stored, created, nil
}

func (p *Pipeline) deliver(ctx context.Context, user *entity.User, d *entity.Digest, mode entity.DigestMode) Result {
	return p.send(ctx, user, d, mode, p.deliverer.Deliver)
}

type deliverFunc func(ctx context.Context, user *entity.User, d *entity.Digest, mode entity.DigestMode) delivery.Result

func (p *Pipeline) send(ctx context.Context, user *entity.User, d *entity.Digest, mode entity.DigestMode, fn deliverFunc) Result {
	ctx, span := p.tracer.Start(ctx, "digest.deliver")
	defer span.End()

	dr := fn(ctx, user, d, mode)
	span.SetAttributes(attribute.String("email.message_id", dr.MessageID))
	if !dr.Success {
		err := dr.Err
		if err == nil {
			err = errors.New("delivery was not successful")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		res := failed(StageDeliver, fmt.Errorf("deliver digest %d: %w", d.ID, err))
		res.Digest = d
		res.Delivery = dr
		return res
	}
	return Result{Status: StatusSent, Stage: StageDone, Digest: d, Delivery: dr}
}

func (p *Pipeline) finish(span trace.Span, logger *slog.Logger, mode entity.DigestMode, res Result, dur time.Duration) {
	span.SetAttributes(attribute.String("digest.status", string(res.Status)))
	metrics.RecordDigestRun(string(mode), string(res.Status), dur)

	switch res.Status {
	case StatusFailed:
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(res.Stage))
		metrics.RecordStageFailure(string(res.Stage))
		logger.Error("digest run failed",
			slog.String("stage", string(res.Stage)),
			slog.Duration("duration", dur),
			slog.Any("error", res.Err))
	case StatusNoArticles:
		logger.Info("digest run found no articles", slog.Duration("duration", dur))
	default:
		attrs := []any{slog.String("status", string(res.Status)), slog.Duration("duration", dur)}
		if res.Digest != nil {
			attrs = append(attrs, slog.Int64("digest_id", res.Digest.ID), slog.Int("articles", len(res.Digest.Articles)))
		}
		if res.Delivery.MessageID != "" {
			attrs = append(attrs, slog.String("message_id", res.Delivery.MessageID))
		}
		logger.Info("digest run completed", attrs...)
	}
}

func failed(stage Stage, err error) Result {
	return Result{Status: StatusFailed, Stage: stage, Reason: err.Error(), Err: err}
}
