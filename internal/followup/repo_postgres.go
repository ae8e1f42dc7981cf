package followup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"autocare-crm/pkg/utils"
)

// PostgresRepository stores cases and callbacks in Postgres. The survey and
// per-call payloads live in jsonb columns; the columns the scheduler and
// reporting queries filter on are first-class.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// caseDetail is the jsonb blob holding the fields no query filters on.
type caseDetail struct {
	Calls [NumStages + 1]CallRecord `json:"calls"`

	OverallSatisfaction int `json:"overall_satisfaction,omitempty"`
	ServiceQuality      int `json:"service_quality,omitempty"`
	StaffKindness       int `json:"staff_kindness,omitempty"`
	PriceSatisfaction   int `json:"price_satisfaction,omitempty"`

	CustomerFeedback       string `json:"customer_feedback,omitempty"`
	ImprovementSuggestions string `json:"improvement_suggestions,omitempty"`
	AdditionalNeeds        string `json:"additional_needs,omitempty"`

	WillRevisit       *bool `json:"will_revisit,omitempty"`
	RecommendToOthers *bool `json:"recommend_to_others,omitempty"`

	EngineOilInterest *bool  `json:"engine_oil_interest,omitempty"`
	EngineOilNotes    string `json:"engine_oil_notes,omitempty"`

	CarInsuranceInterest      InterestLevel `json:"car_insurance_interest,omitempty"`
	DriverInsuranceInterest   InterestLevel `json:"driver_insurance_interest,omitempty"`
	InsuranceConsultRequested *bool         `json:"insurance_consult_requested,omitempty"`
	CurrentInsurer            string        `json:"current_insurer,omitempty"`

	InsuranceConsultCompleted *bool  `json:"insurance_consult_completed,omitempty"`
	InsuranceConsultResult    string `json:"insurance_consult_result,omitempty"`
	InsurancePolicyApplied    *bool  `json:"insurance_policy_applied,omitempty"`

	NextInspectionBooked *bool      `json:"next_inspection_booked,omitempty"`
	NextInspectionDate   *time.Time `json:"next_inspection_date,omitempty"`
	LongTermNotes        string     `json:"long_term_notes,omitempty"`

	ExcludedCategories []string `json:"excluded_categories,omitempty"`
	RejectionReason    string   `json:"rejection_reason,omitempty"`
}

func packDetail(c Case) ([]byte, error) {
	d := caseDetail{
		Calls:                     c.Calls,
		OverallSatisfaction:       c.OverallSatisfaction,
		ServiceQuality:            c.ServiceQuality,
		StaffKindness:             c.StaffKindness,
		PriceSatisfaction:         c.PriceSatisfaction,
		CustomerFeedback:          c.CustomerFeedback,
		ImprovementSuggestions:    c.ImprovementSuggestions,
		AdditionalNeeds:           c.AdditionalNeeds,
		WillRevisit:               c.WillRevisit,
		RecommendToOthers:         c.RecommendToOthers,
		EngineOilInterest:         c.EngineOilInterest,
		EngineOilNotes:            c.EngineOilNotes,
		CarInsuranceInterest:      c.CarInsuranceInterest,
		DriverInsuranceInterest:   c.DriverInsuranceInterest,
		InsuranceConsultRequested: c.InsuranceConsultRequested,
		CurrentInsurer:            c.CurrentInsurer,
		InsuranceConsultCompleted: c.InsuranceConsultCompleted,
		InsuranceConsultResult:    c.InsuranceConsultResult,
		InsurancePolicyApplied:    c.InsurancePolicyApplied,
		NextInspectionBooked:      c.NextInspectionBooked,
		NextInspectionDate:        c.NextInspectionDate,
		LongTermNotes:             c.LongTermNotes,
		ExcludedCategories:        c.ExcludedCategories,
		RejectionReason:           c.RejectionReason,
	}
	return json.Marshal(d)
}

func unpackDetail(c *Case, raw []byte) error {
	var d caseDetail
	if err := json.Unmarshal(raw, &d); err != nil {
		return fmt.Errorf("decode case detail: %w", err)
	}
	c.Calls = d.Calls
	c.OverallSatisfaction = d.OverallSatisfaction
	c.ServiceQuality = d.ServiceQuality
	c.StaffKindness = d.StaffKindness
	c.PriceSatisfaction = d.PriceSatisfaction
	c.CustomerFeedback = d.CustomerFeedback
	c.ImprovementSuggestions = d.ImprovementSuggestions
	c.AdditionalNeeds = d.AdditionalNeeds
	c.WillRevisit = d.WillRevisit
	c.RecommendToOthers = d.RecommendToOthers
	c.EngineOilInterest = d.EngineOilInterest
	c.EngineOilNotes = d.EngineOilNotes
	c.CarInsuranceInterest = d.CarInsuranceInterest
	c.DriverInsuranceInterest = d.DriverInsuranceInterest
	c.InsuranceConsultRequested = d.InsuranceConsultRequested
	c.CurrentInsurer = d.CurrentInsurer
	c.InsuranceConsultCompleted = d.InsuranceConsultCompleted
	c.InsuranceConsultResult = d.InsuranceConsultResult
	c.InsurancePolicyApplied = d.InsurancePolicyApplied
	c.NextInspectionBooked = d.NextInspectionBooked
	c.NextInspectionDate = d.NextInspectionDate
	c.LongTermNotes = d.LongTermNotes
	c.ExcludedCategories = d.ExcludedCategories
	c.RejectionReason = d.RejectionReason
	return nil
}

const caseColumns = `id, service_event_id, customer_name, customer_phone,
	service_completed_at, stage_ordinal, stage_phase, requires_admin_approval,
	total_call_attempts, next_call_at,
	total_revenue, revenue_count, deferred_revenue,
	manager_approved_by, manager_approved_at, admin_approved_by, admin_approved_at,
	no_call_request, remaining_stages_rejected, rejected_at,
	detail, created_at, updated_at`

func (r *PostgresRepository) CreateCase(ctx context.Context, c Case) error {
	detail, err := packDetail(c)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO followup_cases (`+caseColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		c.ID, c.ServiceEventID, c.CustomerName, c.CustomerPhone,
		c.ServiceCompletedAt, c.Stage.Ordinal, string(c.Stage.Phase), c.RequiresAdminApproval,
		c.TotalCallAttempts, c.NextCallAt,
		c.TotalRevenue, c.RevenueCount, c.DeferredRevenue,
		nullStr(c.ManagerApprovedBy), c.ManagerApprovedAt, nullStr(c.AdminApprovedBy), c.AdminApprovedAt,
		c.NoCallRequest, c.RemainingStagesRejected, c.RejectedAt,
		detail, c.CreatedAt, c.UpdatedAt,
	)
	if utils.IsUniqueViolation(err) {
		return ErrDuplicateCase
	}
	return err
}

func (r *PostgresRepository) GetCase(ctx context.Context, id string) (Case, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+caseColumns+` FROM followup_cases WHERE id = $1`, id)
	return scanCase(row)
}

func (r *PostgresRepository) GetCaseByServiceEvent(ctx context.Context, serviceEventID string) (Case, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+caseColumns+` FROM followup_cases WHERE service_event_id = $1`, serviceEventID)
	c, err := scanCase(row)
	if errors.Is(err, ErrNotFound) {
		return Case{}, false, nil
	}
	if err != nil {
		return Case{}, false, err
	}
	return c, true, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *PostgresRepository) UpdateCase(ctx context.Context, c Case) error {
	return updateCase(ctx, r.db, c)
}

func updateCase(ctx context.Context, db execer, c Case) error {
	detail, err := packDetail(c)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE followup_cases SET
			stage_ordinal = $2, stage_phase = $3, requires_admin_approval = $4,
			total_call_attempts = $5, next_call_at = $6,
			total_revenue = $7, revenue_count = $8, deferred_revenue = $9,
			manager_approved_by = $10, manager_approved_at = $11,
			admin_approved_by = $12, admin_approved_at = $13,
			no_call_request = $14, remaining_stages_rejected = $15, rejected_at = $16,
			detail = $17, updated_at = $18
		WHERE id = $1`,
		c.ID,
		c.Stage.Ordinal, string(c.Stage.Phase), c.RequiresAdminApproval,
		c.TotalCallAttempts, c.NextCallAt,
		c.TotalRevenue, c.RevenueCount, c.DeferredRevenue,
		nullStr(c.ManagerApprovedBy), c.ManagerApprovedAt,
		nullStr(c.AdminApprovedBy), c.AdminApprovedAt,
		c.NoCallRequest, c.RemainingStagesRejected, c.RejectedAt,
		detail, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (Case, error) {
	var (
		c      Case
		phase  string
		mgrBy  sql.NullString
		admBy  sql.NullString
		detail []byte
	)
	err := row.Scan(
		&c.ID, &c.ServiceEventID, &c.CustomerName, &c.CustomerPhone,
		&c.ServiceCompletedAt, &c.Stage.Ordinal, &phase, &c.RequiresAdminApproval,
		&c.TotalCallAttempts, &c.NextCallAt,
		&c.TotalRevenue, &c.RevenueCount, &c.DeferredRevenue,
		&mgrBy, &c.ManagerApprovedAt, &admBy, &c.AdminApprovedAt,
		&c.NoCallRequest, &c.RemainingStagesRejected, &c.RejectedAt,
		&detail, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Case{}, ErrNotFound
	}
	if err != nil {
		return Case{}, err
	}
	c.Stage.Phase = Phase(phase)
	c.ManagerApprovedBy = mgrBy.String
	c.AdminApprovedBy = admBy.String
	if err := unpackDetail(&c, detail); err != nil {
		return Case{}, err
	}
	return c, nil
}

const callbackColumns = `id, case_id, origin_ordinal, type, reason,
	potential_revenue, opportunity_maintained, scheduled_at, priority,
	attempt, max_attempts, assigned_to, status, attempted_at, completed_at,
	result_notes, moved_to_next_cycle, next_cycle_at, deferred_revenue, created_at`

func (r *PostgresRepository) CreateCallback(ctx context.Context, cb CallbackRequest) error {
	return insertCallback(ctx, r.db, cb)
}

func insertCallback(ctx context.Context, db execer, cb CallbackRequest) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO callback_requests (`+callbackColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		cb.ID, cb.CaseID, cb.OriginOrdinal, string(cb.Type), cb.Reason,
		cb.PotentialRevenue, cb.OpportunityMaintained, cb.ScheduledAt, string(cb.Priority),
		cb.Attempt, cb.MaxAttempts, nullStr(cb.AssignedTo), string(cb.Status), cb.AttemptedAt, cb.CompletedAt,
		cb.ResultNotes, cb.MovedToNextCycle, cb.NextCycleAt, cb.DeferredRevenue, cb.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) SaveFailureTransition(ctx context.Context, c Case, cb CallbackRequest) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertCallback(ctx, tx, cb); err != nil {
			return err
		}
		return updateCase(ctx, tx, c)
	})
}

func (r *PostgresRepository) GetCallback(ctx context.Context, id string) (CallbackRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+callbackColumns+` FROM callback_requests WHERE id = $1`, id)
	return scanCallback(row)
}

func (r *PostgresRepository) UpdateCallback(ctx context.Context, cb CallbackRequest) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE callback_requests SET
			status = $2, attempted_at = $3, completed_at = $4, result_notes = $5,
			opportunity_maintained = $6, moved_to_next_cycle = $7, next_cycle_at = $8,
			deferred_revenue = $9, priority = $10, assigned_to = $11
		WHERE id = $1`,
		cb.ID,
		string(cb.Status), cb.AttemptedAt, cb.CompletedAt, cb.ResultNotes,
		cb.OpportunityMaintained, cb.MovedToNextCycle, cb.NextCycleAt,
		cb.DeferredRevenue, string(cb.Priority), nullStr(cb.AssignedTo),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListCallbacks(ctx context.Context, caseID string) ([]CallbackRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+callbackColumns+` FROM callback_requests
		WHERE case_id = $1 ORDER BY created_at, attempt`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallbackRequest
	for rows.Next() {
		cb, err := scanCallback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cb)
	}
	return out, rows.Err()
}

func scanCallback(row rowScanner) (CallbackRequest, error) {
	var (
		cb       CallbackRequest
		typ      string
		priority string
		status   string
		assigned sql.NullString
	)
	err := row.Scan(
		&cb.ID, &cb.CaseID, &cb.OriginOrdinal, &typ, &cb.Reason,
		&cb.PotentialRevenue, &cb.OpportunityMaintained, &cb.ScheduledAt, &priority,
		&cb.Attempt, &cb.MaxAttempts, &assigned, &status, &cb.AttemptedAt, &cb.CompletedAt,
		&cb.ResultNotes, &cb.MovedToNextCycle, &cb.NextCycleAt, &cb.DeferredRevenue, &cb.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return CallbackRequest{}, ErrNotFound
	}
	if err != nil {
		return CallbackRequest{}, err
	}
	cb.Type = CallbackType(typ)
	cb.Priority = CallbackPriority(priority)
	cb.Status = CallbackStatus(status)
	cb.AssignedTo = assigned.String
	return cb, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
