package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/liquidity-engine/business/liquidity/domain"
	"github.com/fd1az/liquidity-engine/internal/apm"
	"github.com/fd1az/liquidity-engine/internal/apperror"
	"github.com/fd1az/liquidity-engine/internal/logger"
)

const (
	tracerName = "liquidity"
	meterName  = "liquidity"

	defaultBookLimit = 50
)

// ServiceConfig holds EstimatorService settings.
type ServiceConfig struct {
	BookLimit int // offers fetched per book side
}

// serviceMetrics holds OTEL metric instruments.
type serviceMetrics struct {
	estimates metric.Int64Counter
	fillRatio metric.Float64Histogram
	slippage  metric.Float64Histogram
	ammShare  metric.Float64Histogram
	latency   metric.Float64Histogram
}

// EstimatorService fetches book and pool snapshots and estimates fills
// against them.
type EstimatorService struct {
	books  BookSource
	pools  PoolSource // optional
	config ServiceConfig
	logger logger.LoggerInterface

	tracer  apm.Tracer
	metrics *serviceMetrics
}

var _ Estimator = (*EstimatorService)(nil)

// NewEstimatorService creates an EstimatorService. pools may be nil, in
// which case every estimate is book-only.
func NewEstimatorService(books BookSource, pools PoolSource, cfg ServiceConfig, log logger.LoggerInterface) (*EstimatorService, error) {
	if books == nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("estimator requires a book source"))
	}
	if cfg.BookLimit <= 0 {
		cfg.BookLimit = defaultBookLimit
	}

	s := &EstimatorService{
		books:  books,
		pools:  pools,
		config: cfg,
		logger: log,
		tracer: apm.NewTracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *EstimatorService) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &serviceMetrics{}

	s.metrics.estimates, err = meter.Int64Counter(
		"liquidity_estimates_total",
		metric.WithDescription("Fill estimates by side and outcome"),
	)
	if err != nil {
		return err
	}

	s.metrics.fillRatio, err = meter.Float64Histogram(
		"liquidity_fill_ratio",
		metric.WithDescription("Filled share of the requested amount"),
	)
	if err != nil {
		return err
	}

	s.metrics.slippage, err = meter.Float64Histogram(
		"liquidity_slippage_percent",
		metric.WithDescription("Average price deviation from mid"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return err
	}

	s.metrics.ammShare, err = meter.Float64Histogram(
		"liquidity_amm_share",
		metric.WithDescription("Share of the fill taken from the pool"),
	)
	if err != nil {
		return err
	}

	s.metrics.latency, err = meter.Float64Histogram(
		"liquidity_estimate_latency_ms",
		metric.WithDescription("Estimate latency including snapshot fetches"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Estimate snapshots both books and the pool concurrently and estimates the
// combined fill. An estimate that fills nothing is returned with a nil Fill,
// not as an error. Pool failures degrade the estimate to book-only.
func (s *EstimatorService) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	if !req.Side.Valid() {
		return nil, apperror.Validation(apperror.CodeInvalidSide, string(req.Side))
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidTradeSize, req.Amount.String())
	}
	if req.Pair.Base.Equal(req.Pair.Quote) {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "base and quote are the same asset")
	}

	est := &Estimate{
		ID:        uuid.NewString(),
		Request:   req,
		CreatedAt: time.Now(),
	}

	ctx, span := s.tracer.StartSpanFromContext(ctx, "liquidity.estimate",
		trace.WithAttributes(
			attribute.String("estimate_id", est.ID),
			attribute.String("pair", req.Pair.String()),
			attribute.String("side", string(req.Side)),
			attribute.String("amount", req.Amount.String()),
		),
	)
	defer span.End()

	base, quote := req.Pair.Base, req.Pair.Quote

	var (
		askOffers, bidOffers []domain.BookEntry
		pool                 *domain.AmmPool
		poolErr              error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		askOffers, err = s.books.BookOffers(gctx, base, quote, s.config.BookLimit)
		return err
	})
	g.Go(func() error {
		var err error
		bidOffers, err = s.books.BookOffers(gctx, quote, base, s.config.BookLimit)
		return err
	})
	if s.pools != nil {
		g.Go(func() error {
			pool, poolErr = s.pools.PoolSnapshot(gctx, base, quote)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.NoticeError(err)
		s.metrics.estimates.Add(ctx, 1, metric.WithAttributes(
			attribute.String("side", string(req.Side)),
			attribute.String("outcome", "error"),
		))
		return nil, apperror.Wrap(err, apperror.CodeXRPLRequestFailed, "book_offers")
	}

	switch {
	case poolErr != nil:
		est.PoolSkipped = poolErr.Error()
		s.logger.Warn(ctx, "pool snapshot failed, estimating book only",
			"estimate_id", est.ID, "error", poolErr)
	case pool != nil:
		if err := pool.Validate(); err != nil {
			est.PoolSkipped = err.Error()
			s.logger.Warn(ctx, "pool snapshot rejected, estimating book only",
				"estimate_id", est.ID, "error", err)
		} else {
			est.Pool = pool
		}
	}
	if est.PoolSkipped != "" {
		span.AddEvent("pool_skipped", attribute.String("reason", est.PoolSkipped))
	}

	est.Asks = domain.BuildAsks(askOffers, base)
	est.Bids = domain.BuildBids(bidOffers, base)
	est.Depth = domain.AggregateDepth(est.Bids, est.Asks)

	est.MidPrice = req.MidPrice
	if !est.MidPrice.Valid {
		est.MidPrice = domain.MidPrice(est.Bids, est.Asks)
	}

	levels := domain.LevelsFor(req.Side, est.Asks, est.Bids)
	est.Fill = domain.EstimateFillCombined(levels, req.Amount, est.MidPrice, est.Pool, req.Side)
	est.Duration = time.Since(est.CreatedAt)

	s.record(ctx, est)

	span.SetAttributes(
		attribute.String("outcome", est.Outcome()),
		attribute.Int("ask_levels", est.Depth.AskLevels),
		attribute.Int("bid_levels", est.Depth.BidLevels),
		attribute.Bool("pool", est.Pool != nil),
	)
	if est.Fill != nil {
		span.SetAttributes(
			attribute.String("avg_price", est.Fill.AvgPrice.String()),
			attribute.String("filled", est.Fill.FilledAmount.String()),
		)
	}
	span.SetStatus(codes.Ok, est.Outcome())

	s.logger.Debug(ctx, "estimate computed",
		"estimate_id", est.ID,
		"pair", req.Pair.String(),
		"side", req.Side,
		"amount", req.Amount.String(),
		"outcome", est.Outcome(),
		"ask_levels", est.Depth.AskLevels,
		"bid_levels", est.Depth.BidLevels,
		"duration", est.Duration,
	)

	return est, nil
}

func (s *EstimatorService) record(ctx context.Context, est *Estimate) {
	side := attribute.String("side", string(est.Request.Side))

	s.metrics.estimates.Add(ctx, 1, metric.WithAttributes(side, attribute.String("outcome", est.Outcome())))
	s.metrics.latency.Record(ctx, float64(est.Duration.Milliseconds()), metric.WithAttributes(side))

	ratio, _ := est.FillRatio().Float64()
	s.metrics.fillRatio.Record(ctx, ratio, metric.WithAttributes(side))

	if est.Fill == nil {
		return
	}
	if est.Fill.SlippagePercent.Valid {
		slip, _ := est.Fill.SlippagePercent.Decimal.Float64()
		s.metrics.slippage.Record(ctx, slip, metric.WithAttributes(side))
	}
	share, _ := est.Fill.AmmShare().Float64()
	s.metrics.ammShare.Record(ctx, share, metric.WithAttributes(side))
}
