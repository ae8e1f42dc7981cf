package reporting

import "time"

// Month is a calendar month bucket (first day, UTC).
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

func MonthOf(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) String() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Before reports calendar order.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Prev returns the preceding calendar month.
func (m Month) Prev() Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

// MonthlySample is one month's failure and revenue aggregates.
type MonthlySample struct {
	Month           Month `json:"month"`
	FailedCalls     int   `json:"failed_calls"`
	LossAmount      int64 `json:"loss_amount"`
	RecoveredAmount int64 `json:"recovered_amount"`
	RevenueAmount   int64 `json:"revenue_amount"`
}

// CorrelationStrength classifies the absolute Pearson coefficient.
type CorrelationStrength string

const (
	StrengthStrong     CorrelationStrength = "strong"
	StrengthModerate   CorrelationStrength = "moderate"
	StrengthWeak       CorrelationStrength = "weak"
	StrengthNegligible CorrelationStrength = "negligible"
)

// Trend compares the recent three months against the three before them.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendWorsening Trend = "worsening"
)

// CorrelationReport relates monthly call failures to revenue loss.
// Coefficient is informational; SampleSize tells the reader how much weight
// it carries.
type CorrelationReport struct {
	From    Month           `json:"from"`
	To      Month           `json:"to"`
	Samples []MonthlySample `json:"samples"`

	Coefficient float64             `json:"coefficient"`
	Strength    CorrelationStrength `json:"strength"`
	SampleSize  int                 `json:"sample_size"`

	FailureTrend    Trend   `json:"failure_trend"`
	TotalLoss       int64   `json:"total_loss"`
	TotalRecovered  int64   `json:"total_recovered"`
	RecoveryRatePct float64 `json:"recovery_rate_pct"`

	Recommendations []string `json:"recommendations"`
}

// StageFailureStat is the failure breakdown for one call stage, including
// how the retry chain performed for failures originating there.
type StageFailureStat struct {
	StageOrdinal int   `json:"stage_ordinal"`
	FailedCalls  int   `json:"failed_calls"`
	LossAmount   int64 `json:"loss_amount"`

	CallbacksCreated   int     `json:"callbacks_created"`
	CallbackSuccessPct float64 `json:"callback_success_pct"`
}

// ReasonStat is the failure breakdown for one failure reason.
type ReasonStat struct {
	Reason       string  `json:"reason"`
	FailedCalls  int     `json:"failed_calls"`
	LossAmount   int64   `json:"loss_amount"`
	RecoveredPct float64 `json:"recovered_pct"`
	SMSSentCount int     `json:"sms_sent_count"`
}

// FailureBreakdown groups failures by stage and reason over a window.
type FailureBreakdown struct {
	From    Month              `json:"from"`
	To      Month              `json:"to"`
	Stages  []StageFailureStat `json:"stages"`
	Reasons []ReasonStat       `json:"reasons"`
}
