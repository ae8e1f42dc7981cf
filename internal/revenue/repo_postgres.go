package revenue

import (
	"context"
	"database/sql"
	"errors"

	"autocare-crm/pkg/utils"
)

// PostgresRepository stores proposals, vouchers and losses in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const proposalColumns = `id, case_id, stage_ordinal, category, description,
	estimated_amount, actual_amount, commission_rate, commission,
	status, proposed_by, voucher_id,
	accepted_at, completed_at, cancelled_at, created_at, updated_at`

func (r *PostgresRepository) CreateProposal(ctx context.Context, p Proposal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO revenue_proposals (`+proposalColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		p.ID, p.CaseID, p.StageOrdinal, p.Category, p.Description,
		p.EstimatedAmount, p.ActualAmount, p.CommissionRate, p.Commission,
		string(p.Status), p.ProposedBy, nullableStr(p.VoucherID),
		p.AcceptedAt, p.CompletedAt, p.CancelledAt, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *PostgresRepository) GetProposal(ctx context.Context, id string) (Proposal, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+proposalColumns+` FROM revenue_proposals WHERE id = $1`, id)
	return scanProposal(row)
}

func (r *PostgresRepository) UpdateProposal(ctx context.Context, p Proposal) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE revenue_proposals SET
			description = $2, actual_amount = $3, commission = $4,
			status = $5, voucher_id = $6,
			accepted_at = $7, completed_at = $8, cancelled_at = $9, updated_at = $10
		WHERE id = $1`,
		p.ID,
		p.Description, p.ActualAmount, p.Commission,
		string(p.Status), nullableStr(p.VoucherID),
		p.AcceptedAt, p.CompletedAt, p.CancelledAt, p.UpdatedAt,
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

func (r *PostgresRepository) ListProposals(ctx context.Context, caseID string) ([]Proposal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+proposalColumns+` FROM revenue_proposals
		WHERE case_id = $1 ORDER BY created_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const voucherColumns = `id, proposal_id, case_id, amount,
	issued_to, issued_phone, description, source, issued_at, expires_at`

func (r *PostgresRepository) SaveVoucherConversion(ctx context.Context, p Proposal, v Voucher) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO revenue_vouchers (`+voucherColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			v.ID, v.ProposalID, v.CaseID, v.Amount,
			v.IssuedTo, v.IssuedPhone, v.Description, v.Source,
			v.IssuedAt, v.ExpiresAt,
		)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE revenue_proposals SET
				actual_amount = $2, status = $3, voucher_id = $4, updated_at = $5
			WHERE id = $1`,
			p.ID, p.ActualAmount, string(p.Status), nullableStr(p.VoucherID), p.UpdatedAt,
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
	})
}

func (r *PostgresRepository) GetVoucher(ctx context.Context, id string) (Voucher, error) {
	var v Voucher
	err := r.db.QueryRowContext(ctx, `
		SELECT `+voucherColumns+`
		FROM revenue_vouchers WHERE id = $1`, id).
		Scan(&v.ID, &v.ProposalID, &v.CaseID, &v.Amount,
			&v.IssuedTo, &v.IssuedPhone, &v.Description, &v.Source,
			&v.IssuedAt, &v.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Voucher{}, ErrNotFound
	}
	if err != nil {
		return Voucher{}, err
	}
	return v, nil
}

const lossColumns = `id, case_id, stage_ordinal, reason, estimated_amount, sms_sent,
	recovered, recovered_amount, recovered_at, recovery_notes, created_at`

func (r *PostgresRepository) CreateLoss(ctx context.Context, l Loss) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO revenue_losses (`+lossColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		l.ID, l.CaseID, l.StageOrdinal, l.Reason, l.EstimatedAmount, l.SMSSent,
		l.Recovered, l.RecoveredAmount, l.RecoveredAt, l.RecoveryNotes, l.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) GetLoss(ctx context.Context, id string) (Loss, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+lossColumns+` FROM revenue_losses WHERE id = $1`, id)
	return scanLoss(row)
}

func (r *PostgresRepository) UpdateLoss(ctx context.Context, l Loss) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE revenue_losses SET
			recovered = $2, recovered_amount = $3, recovered_at = $4, recovery_notes = $5
		WHERE id = $1`,
		l.ID, l.Recovered, l.RecoveredAmount, l.RecoveredAt, l.RecoveryNotes,
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

func (r *PostgresRepository) ListLosses(ctx context.Context, caseID string) ([]Loss, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+lossColumns+` FROM revenue_losses
		WHERE case_id = $1 ORDER BY created_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Loss
	for rows.Next() {
		l, err := scanLoss(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (Proposal, error) {
	var (
		p       Proposal
		status  string
		voucher sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.CaseID, &p.StageOrdinal, &p.Category, &p.Description,
		&p.EstimatedAmount, &p.ActualAmount, &p.CommissionRate, &p.Commission,
		&status, &p.ProposedBy, &voucher,
		&p.AcceptedAt, &p.CompletedAt, &p.CancelledAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Proposal{}, ErrNotFound
	}
	if err != nil {
		return Proposal{}, err
	}
	p.Status = ProposalStatus(status)
	p.VoucherID = voucher.String
	return p, nil
}

func scanLoss(row rowScanner) (Loss, error) {
	var l Loss
	err := row.Scan(
		&l.ID, &l.CaseID, &l.StageOrdinal, &l.Reason, &l.EstimatedAmount, &l.SMSSent,
		&l.Recovered, &l.RecoveredAmount, &l.RecoveredAt, &l.RecoveryNotes, &l.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Loss{}, ErrNotFound
	}
	if err != nil {
		return Loss{}, err
	}
	return l, nil
}

func nullableStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
