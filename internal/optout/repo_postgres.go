package optout

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// PostgresRepository stores opt-out requests in Postgres. Categories are a
// comma-joined text column; they are short machine identifiers, never
// containing commas.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const requestColumns = `id, case_id, scope, categories, reason, detail, attitude, future_contact,
	requested_by, status, manager_decided_by, manager_decided_at,
	admin_decided_by, admin_decided_at, rejection_comment, applied_at,
	created_at, updated_at`

func (r *PostgresRepository) CreateRequest(ctx context.Context, req Request) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO optout_requests (`+requestColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		req.ID, req.CaseID, string(req.Scope), strings.Join(req.Categories, ","),
		string(req.Reason), req.Detail, string(req.Attitude), string(req.FutureContact),
		req.RequestedBy, string(req.Status),
		nullableStr(req.ManagerDecidedBy), req.ManagerDecidedAt,
		nullableStr(req.AdminDecidedBy), req.AdminDecidedAt,
		req.RejectionComment, req.AppliedAt,
		req.CreatedAt, req.UpdatedAt,
	)
	return err
}

func (r *PostgresRepository) GetRequest(ctx context.Context, id string) (Request, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM optout_requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (r *PostgresRepository) UpdateRequest(ctx context.Context, req Request) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE optout_requests SET
			status = $2,
			manager_decided_by = $3, manager_decided_at = $4,
			admin_decided_by = $5, admin_decided_at = $6,
			rejection_comment = $7, applied_at = $8, updated_at = $9
		WHERE id = $1`,
		req.ID,
		string(req.Status),
		nullableStr(req.ManagerDecidedBy), req.ManagerDecidedAt,
		nullableStr(req.AdminDecidedBy), req.AdminDecidedAt,
		req.RejectionComment, req.AppliedAt, req.UpdatedAt,
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

func (r *PostgresRepository) ListRequests(ctx context.Context, caseID string) ([]Request, error) {
	return r.list(ctx, `
		SELECT `+requestColumns+` FROM optout_requests
		WHERE case_id = $1 ORDER BY created_at`, caseID)
}

func (r *PostgresRepository) ListOpenForScope(ctx context.Context, caseID string, scope Scope) ([]Request, error) {
	return r.list(ctx, `
		SELECT `+requestColumns+` FROM optout_requests
		WHERE case_id = $1 AND scope = $2 AND status IN ('pending', 'manager_approved')
		ORDER BY created_at`, caseID, string(scope))
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Request, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var (
		req        Request
		scope      string
		categories string
		reason     string
		attitude   string
		future     string
		status     string
		mgrBy      sql.NullString
		admBy      sql.NullString
	)
	err := row.Scan(
		&req.ID, &req.CaseID, &scope, &categories, &reason, &req.Detail, &attitude, &future,
		&req.RequestedBy, &status, &mgrBy, &req.ManagerDecidedAt,
		&admBy, &req.AdminDecidedAt, &req.RejectionComment, &req.AppliedAt,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, err
	}
	req.Scope = Scope(scope)
	if categories != "" {
		req.Categories = strings.Split(categories, ",")
	}
	req.Reason = Reason(reason)
	req.Attitude = Attitude(attitude)
	req.FutureContact = FutureContact(future)
	req.Status = Status(status)
	req.ManagerDecidedBy = mgrBy.String
	req.AdminDecidedBy = admBy.String
	return req, nil
}

func nullableStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
