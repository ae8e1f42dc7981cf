package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Source provides the raw aggregates the reports are built from.
type Source interface {
	// MonthlySamples returns one sample per month in [from, to], oldest
	// first, including zero-valued months.
	MonthlySamples(ctx context.Context, from, to Month) ([]MonthlySample, error)
	StageFailures(ctx context.Context, from, to Month) ([]StageFailureStat, error)
	ReasonFailures(ctx context.Context, from, to Month) ([]ReasonStat, error)
}

var (
	ErrInvalidArgument = errors.New("reporting: invalid argument")
	ErrNoData          = errors.New("reporting: no data in window")
)

// defaultWindowMonths is the standard correlation window.
const defaultWindowMonths = 12

// Service builds failure and revenue analytics.
type Service struct {
	source Source
	log    *slog.Logger
	clock  func() time.Time
}

func NewService(source Source, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{source: source, log: log, clock: time.Now}
}

// Correlation builds the failure/loss correlation report over the trailing
// window ending at the current month. months <= 0 selects the default
// twelve-month window.
func (s *Service) Correlation(ctx context.Context, months int) (CorrelationReport, error) {
	if months <= 0 {
		months = defaultWindowMonths
	}
	if months < 2 {
		return CorrelationReport{}, fmt.Errorf("%w: need at least two months", ErrInvalidArgument)
	}

	to := MonthOf(s.clock())
	from := to
	for i := 1; i < months; i++ {
		from = from.Prev()
	}

	samples, err := s.source.MonthlySamples(ctx, from, to)
	if err != nil {
		return CorrelationReport{}, err
	}
	if len(samples) == 0 {
		return CorrelationReport{}, ErrNoData
	}

	report := CorrelationReport{
		From:       from,
		To:         to,
		Samples:    samples,
		SampleSize: len(samples),
	}
	for _, sm := range samples {
		report.TotalLoss += sm.LossAmount
		report.TotalRecovered += sm.RecoveredAmount
	}
	if report.TotalLoss > 0 {
		report.RecoveryRatePct = float64(report.TotalRecovered) / float64(report.TotalLoss) * 100
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, sm := range samples {
		xs[i] = float64(sm.FailedCalls)
		ys[i] = float64(sm.LossAmount)
	}
	report.Coefficient = pearson(xs, ys)
	report.Strength = classifyStrength(report.Coefficient)
	report.FailureTrend = failureTrend(samples)
	report.Recommendations = recommend(report)
	return report, nil
}

// Breakdown groups the window's failures by stage and reason.
func (s *Service) Breakdown(ctx context.Context, months int) (FailureBreakdown, error) {
	if months <= 0 {
		months = defaultWindowMonths
	}
	to := MonthOf(s.clock())
	from := to
	for i := 1; i < months; i++ {
		from = from.Prev()
	}

	stages, err := s.source.StageFailures(ctx, from, to)
	if err != nil {
		return FailureBreakdown{}, err
	}
	reasons, err := s.source.ReasonFailures(ctx, from, to)
	if err != nil {
		return FailureBreakdown{}, err
	}
	return FailureBreakdown{From: from, To: to, Stages: stages, Reasons: reasons}, nil
}

// pearson computes the sample correlation coefficient. Zero variance on
// either axis yields zero.
func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

func classifyStrength(r float64) CorrelationStrength {
	abs := math.Abs(r)
	switch {
	case abs >= 0.7:
		return StrengthStrong
	case abs >= 0.4:
		return StrengthModerate
	case abs >= 0.2:
		return StrengthWeak
	}
	return StrengthNegligible
}

// failureTrend compares the latest three months of failures against the
// three before them. Fewer than six samples reads as stable.
func failureTrend(samples []MonthlySample) Trend {
	if len(samples) < 6 {
		return TrendStable
	}
	recent, prior := 0, 0
	n := len(samples)
	for _, sm := range samples[n-3:] {
		recent += sm.FailedCalls
	}
	for _, sm := range samples[n-6 : n-3] {
		prior += sm.FailedCalls
	}
	switch {
	case recent < prior:
		return TrendImproving
	case recent > prior:
		return TrendWorsening
	}
	return TrendStable
}

func recommend(r CorrelationReport) []string {
	var out []string
	if r.Strength == StrengthStrong && r.Coefficient > 0 {
		out = append(out, "call failures track revenue loss closely; prioritize callback completion on failed stages")
	}
	if r.FailureTrend == TrendWorsening {
		out = append(out, "failed calls are rising over the last quarter; review call scheduling and staffing")
	}
	if r.TotalLoss > 0 && r.RecoveryRatePct < 30 {
		out = append(out, "recovery rate is below 30%; follow up on open callback chains before they expire")
	}
	if r.SampleSize < 6 {
		out = append(out, "fewer than six months of data; treat the correlation as indicative only")
	}
	if len(out) == 0 {
		out = append(out, "no anomalies in the window; keep current follow-up cadence")
	}
	return out
}
