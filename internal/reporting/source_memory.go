package reporting

import (
	"context"
	"sort"
	"sync"
	"time"
)

// failureEvent is one recorded failed call with its loss outcome.
type failureEvent struct {
	at        time.Time
	stage     int
	reason    string
	loss      int64
	recovered int64
	smsSent   bool
}

// callbackEvent is one retry callback created from a stage failure.
type callbackEvent struct {
	at        time.Time
	stage     int
	completed bool
}

// MemorySource accumulates failure and revenue events in memory and serves
// the report aggregates from them. Used by tests and local runs; the
// Postgres source serves production.
type MemorySource struct {
	mu        sync.RWMutex
	failures  []failureEvent
	callbacks []callbackEvent
	revenue   map[Month]int64
}

func NewMemorySource() *MemorySource {
	return &MemorySource{revenue: map[Month]int64{}}
}

// RecordFailure ingests one failed call.
func (s *MemorySource) RecordFailure(at time.Time, stage int, reason string, loss int64, smsSent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failureEvent{at: at.UTC(), stage: stage, reason: reason, loss: loss, smsSent: smsSent})
}

// RecordRecovery adds a recovered amount to the month it happened in.
func (s *MemorySource) RecordRecovery(at time.Time, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Attach to the most recent failure in the same month without recovery;
	// falls back to a bare entry so totals still add up.
	m := MonthOf(at)
	for i := len(s.failures) - 1; i >= 0; i-- {
		if MonthOf(s.failures[i].at) == m && s.failures[i].recovered == 0 {
			s.failures[i].recovered = amount
			return
		}
	}
	s.failures = append(s.failures, failureEvent{at: at.UTC(), recovered: amount})
}

// RecordCallback ingests one retry callback and its eventual outcome.
func (s *MemorySource) RecordCallback(at time.Time, stage int, completed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callbackEvent{at: at.UTC(), stage: stage, completed: completed})
}

// RecordRevenue adds completed revenue to a month.
func (s *MemorySource) RecordRevenue(at time.Time, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revenue[MonthOf(at)] += amount
}

func inWindow(m, from, to Month) bool {
	return !m.Before(from) && !to.Before(m)
}

func (s *MemorySource) MonthlySamples(_ context.Context, from, to Month) ([]MonthlySample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byMonth := map[Month]*MonthlySample{}
	var months []Month
	for m := from; ; m = nextMonth(m) {
		byMonth[m] = &MonthlySample{Month: m}
		months = append(months, m)
		if m == to {
			break
		}
	}
	for _, f := range s.failures {
		m := MonthOf(f.at)
		sample, ok := byMonth[m]
		if !ok {
			continue
		}
		if f.loss > 0 || f.reason != "" {
			sample.FailedCalls++
		}
		sample.LossAmount += f.loss
		sample.RecoveredAmount += f.recovered
	}
	for m, amount := range s.revenue {
		if sample, ok := byMonth[m]; ok {
			sample.RevenueAmount += amount
		}
	}

	out := make([]MonthlySample, 0, len(months))
	for _, m := range months {
		out = append(out, *byMonth[m])
	}
	return out, nil
}

func (s *MemorySource) StageFailures(_ context.Context, from, to Month) ([]StageFailureStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStage := map[int]*StageFailureStat{}
	for _, f := range s.failures {
		if f.stage < 1 || !inWindow(MonthOf(f.at), from, to) {
			continue
		}
		st, ok := byStage[f.stage]
		if !ok {
			st = &StageFailureStat{StageOrdinal: f.stage}
			byStage[f.stage] = st
		}
		st.FailedCalls++
		st.LossAmount += f.loss
	}
	completedByStage := map[int]int{}
	for _, cb := range s.callbacks {
		if cb.stage < 1 || !inWindow(MonthOf(cb.at), from, to) {
			continue
		}
		st, ok := byStage[cb.stage]
		if !ok {
			st = &StageFailureStat{StageOrdinal: cb.stage}
			byStage[cb.stage] = st
		}
		st.CallbacksCreated++
		if cb.completed {
			completedByStage[cb.stage]++
		}
	}
	var out []StageFailureStat
	for _, st := range byStage {
		if st.CallbacksCreated > 0 {
			st.CallbackSuccessPct = float64(completedByStage[st.StageOrdinal]) / float64(st.CallbacksCreated) * 100
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageOrdinal < out[j].StageOrdinal })
	return out, nil
}

func (s *MemorySource) ReasonFailures(_ context.Context, from, to Month) ([]ReasonStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		stat      ReasonStat
		loss      int64
		recovered int64
	}
	byReason := map[string]*acc{}
	for _, f := range s.failures {
		if f.reason == "" || !inWindow(MonthOf(f.at), from, to) {
			continue
		}
		a, ok := byReason[f.reason]
		if !ok {
			a = &acc{stat: ReasonStat{Reason: f.reason}}
			byReason[f.reason] = a
		}
		a.stat.FailedCalls++
		a.stat.LossAmount += f.loss
		a.loss += f.loss
		a.recovered += f.recovered
		if f.smsSent {
			a.stat.SMSSentCount++
		}
	}
	var out []ReasonStat
	for _, a := range byReason {
		if a.loss > 0 {
			a.stat.RecoveredPct = float64(a.recovered) / float64(a.loss) * 100
		}
		out = append(out, a.stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reason < out[j].Reason })
	return out, nil
}

func nextMonth(m Month) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}
