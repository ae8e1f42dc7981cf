package followup

import (
	"fmt"
	"strings"
)

// Phase is the within-stage lifecycle position of a follow-up case.
type Phase string

const (
	PhasePendingApproval Phase = "pending_approval"
	PhasePending         Phase = "pending"
	PhaseInProgress      Phase = "in_progress"
	PhaseCompleted       Phase = "completed"
	PhaseFailed          Phase = "failed"
	PhaseRejected        Phase = "rejected"

	// Case-level terminals. Ordinal is zero for these.
	PhaseRejectedAll Phase = "rejected_all"
	PhaseSkip        Phase = "skip"
)

// Stage identifies where a case sits in the four-call sequence.
// Ordinal is 1..4 for call stages and 0 for case-level terminals.
type Stage struct {
	Ordinal int   `json:"ordinal"`
	Phase   Phase `json:"phase"`
}

// NumStages is the number of ordinal call attempts in a full lifecycle.
const NumStages = 4

var ordinalPrefix = [NumStages + 1]string{"", "1st", "2nd", "3rd", "4th"}

func StageRejectedAll() Stage { return Stage{Phase: PhaseRejectedAll} }
func StageSkipped() Stage     { return Stage{Phase: PhaseSkip} }

// Code renders the external stage code ("2nd_in_progress", "rejected_all").
// These codes are stable identifiers shared with reporting consumers.
func (s Stage) Code() string {
	if s.Ordinal == 0 {
		return string(s.Phase)
	}
	return ordinalPrefix[s.Ordinal] + "_" + string(s.Phase)
}

func (s Stage) String() string { return s.Code() }

// ParseStage parses an external stage code.
func ParseStage(code string) (Stage, error) {
	switch code {
	case string(PhaseRejectedAll):
		return StageRejectedAll(), nil
	case string(PhaseSkip):
		return StageSkipped(), nil
	}
	i := strings.IndexByte(code, '_')
	if i < 0 {
		return Stage{}, fmt.Errorf("followup: bad stage code %q", code)
	}
	var ord int
	for n := 1; n <= NumStages; n++ {
		if code[:i] == ordinalPrefix[n] {
			ord = n
			break
		}
	}
	if ord == 0 {
		return Stage{}, fmt.Errorf("followup: bad stage ordinal in %q", code)
	}
	phase := Phase(code[i+1:])
	switch phase {
	case PhasePendingApproval, PhasePending, PhaseInProgress, PhaseCompleted, PhaseFailed, PhaseRejected:
		return Stage{Ordinal: ord, Phase: phase}, nil
	}
	return Stage{}, fmt.Errorf("followup: bad stage phase in %q", code)
}

// Terminal reports whether no further call activity is possible on the case.
// A completed or failed 4th stage still allows bookkeeping (revenue, losses)
// but no further stage transitions except opt-out terminals.
func (s Stage) Terminal() bool {
	return s.Phase == PhaseRejectedAll || s.Phase == PhaseSkip
}

// CanApprove reports whether stage-creation approval applies.
func (s Stage) CanApprove() bool {
	return s.Ordinal >= 1 && s.Phase == PhasePendingApproval
}

// CanExecute reports whether an agent may record a call outcome.
func (s Stage) CanExecute() bool {
	if s.Ordinal < 1 {
		return false
	}
	return s.Phase == PhasePending || s.Phase == PhaseInProgress
}

// Settled reports whether the stage has a final per-stage outcome and the
// case is eligible for Advance.
func (s Stage) Settled() bool {
	if s.Ordinal < 1 {
		return false
	}
	return s.Phase == PhaseCompleted || s.Phase == PhaseFailed || s.Phase == PhaseRejected
}

// phaseSuccessors is the within-ordinal transition table. Cross-ordinal
// moves (Advance) and case-level terminals are handled separately.
var phaseSuccessors = map[Phase][]Phase{
	PhasePendingApproval: {PhasePending, PhaseRejected},
	PhasePending:         {PhaseInProgress, PhaseCompleted, PhaseFailed, PhaseRejected},
	PhaseInProgress:      {PhaseCompleted, PhaseFailed, PhaseRejected},
	PhaseCompleted:       {},
	PhaseFailed:          {},
	PhaseRejected:        {},
}

// canEnter validates a single transition. Every mutation goes through this;
// disallowed transitions are rejected instead of silently overwriting state.
func (s Stage) canEnter(next Stage) bool {
	if s.Terminal() {
		return false
	}
	// Opt-out terminals are reachable from any live state.
	if next.Phase == PhaseRejectedAll || next.Phase == PhaseSkip {
		return true
	}
	if next.Ordinal == s.Ordinal {
		for _, p := range phaseSuccessors[s.Phase] {
			if p == next.Phase {
				return true
			}
		}
		return false
	}
	// Cross-ordinal: only a settled stage may open the next stage's approval
	// gate, and never backwards or past the sequence.
	if !s.Settled() {
		return false
	}
	return next.Ordinal > s.Ordinal && next.Ordinal <= NumStages && next.Phase == PhasePendingApproval
}

// nextStage computes the successor stage for a settled stage.
//
// Stage 3 (the insurance consultation call) only happens when the 2nd call
// recorded interest in either insurance line; otherwise the case goes
// straight to the 4th (inspection reminder) call. A failed 2nd call cannot
// have recorded interest, so it also skips to the 4th.
func nextStage(s Stage, insuranceInterested bool) (Stage, bool) {
	if !s.Settled() {
		return Stage{}, false
	}
	switch s.Ordinal {
	case 1:
		return Stage{Ordinal: 2, Phase: PhasePendingApproval}, true
	case 2:
		if s.Phase == PhaseCompleted && insuranceInterested {
			return Stage{Ordinal: 3, Phase: PhasePendingApproval}, true
		}
		return Stage{Ordinal: 4, Phase: PhasePendingApproval}, true
	case 3:
		return Stage{Ordinal: 4, Phase: PhasePendingApproval}, true
	}
	return Stage{}, false
}
