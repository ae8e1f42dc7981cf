package reporting

import (
	"context"
	"database/sql"
	"time"
)

// PostgresSource serves the report aggregates straight from the loss and
// proposal tables.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func monthStart(m Month) time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (s *PostgresSource) MonthlySamples(ctx context.Context, from, to Month) ([]MonthlySample, error) {
	start := monthStart(from)
	end := monthStart(to).AddDate(0, 1, 0)

	rows, err := s.db.QueryContext(ctx, `
		WITH months AS (
			SELECT generate_series($1::timestamptz, $2::timestamptz - interval '1 month', interval '1 month') AS m
		),
		losses AS (
			SELECT date_trunc('month', created_at) AS m,
			       count(*) AS failed,
			       coalesce(sum(estimated_amount), 0) AS loss,
			       coalesce(sum(recovered_amount), 0) AS recovered
			FROM revenue_losses
			WHERE created_at >= $1 AND created_at < $2
			GROUP BY 1
		),
		completed AS (
			SELECT date_trunc('month', completed_at) AS m,
			       coalesce(sum(actual_amount), 0) AS revenue
			FROM revenue_proposals
			WHERE status = 'completed' AND completed_at >= $1 AND completed_at < $2
			GROUP BY 1
		)
		SELECT months.m,
		       coalesce(losses.failed, 0),
		       coalesce(losses.loss, 0),
		       coalesce(losses.recovered, 0),
		       coalesce(completed.revenue, 0)
		FROM months
		LEFT JOIN losses ON losses.m = months.m
		LEFT JOIN completed ON completed.m = months.m
		ORDER BY months.m`,
		start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthlySample
	for rows.Next() {
		var (
			m  time.Time
			sm MonthlySample
		)
		if err := rows.Scan(&m, &sm.FailedCalls, &sm.LossAmount, &sm.RecoveredAmount, &sm.RevenueAmount); err != nil {
			return nil, err
		}
		sm.Month = MonthOf(m)
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *PostgresSource) StageFailures(ctx context.Context, from, to Month) ([]StageFailureStat, error) {
	start := monthStart(from)
	end := monthStart(to).AddDate(0, 1, 0)

	rows, err := s.db.QueryContext(ctx, `
		WITH losses AS (
			SELECT stage_ordinal,
			       count(*) AS failed,
			       coalesce(sum(estimated_amount), 0) AS loss
			FROM revenue_losses
			WHERE created_at >= $1 AND created_at < $2
			GROUP BY stage_ordinal
		),
		callbacks AS (
			SELECT origin_ordinal,
			       count(*) AS created,
			       count(*) FILTER (WHERE status = 'completed') AS completed
			FROM callback_requests
			WHERE created_at >= $1 AND created_at < $2
			GROUP BY origin_ordinal
		)
		SELECT losses.stage_ordinal, losses.failed, losses.loss,
		       coalesce(callbacks.created, 0),
		       coalesce(callbacks.completed, 0)
		FROM losses
		LEFT JOIN callbacks ON callbacks.origin_ordinal = losses.stage_ordinal
		ORDER BY losses.stage_ordinal`,
		start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StageFailureStat
	for rows.Next() {
		var (
			st        StageFailureStat
			completed int
		)
		if err := rows.Scan(&st.StageOrdinal, &st.FailedCalls, &st.LossAmount, &st.CallbacksCreated, &completed); err != nil {
			return nil, err
		}
		if st.CallbacksCreated > 0 {
			st.CallbackSuccessPct = float64(completed) / float64(st.CallbacksCreated) * 100
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresSource) ReasonFailures(ctx context.Context, from, to Month) ([]ReasonStat, error) {
	start := monthStart(from)
	end := monthStart(to).AddDate(0, 1, 0)

	rows, err := s.db.QueryContext(ctx, `
		SELECT reason,
		       count(*),
		       coalesce(sum(estimated_amount), 0) AS loss,
		       coalesce(sum(recovered_amount), 0) AS recovered,
		       count(*) FILTER (WHERE sms_sent)
		FROM revenue_losses
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY reason
		ORDER BY reason`,
		start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReasonStat
	for rows.Next() {
		var (
			st        ReasonStat
			recovered int64
		)
		if err := rows.Scan(&st.Reason, &st.FailedCalls, &st.LossAmount, &recovered, &st.SMSSentCount); err != nil {
			return nil, err
		}
		if st.LossAmount > 0 {
			st.RecoveredPct = float64(recovered) / float64(st.LossAmount) * 100
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
