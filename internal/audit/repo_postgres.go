package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo stores audit events in the audit_events table.
// The table is insert-only; no update or delete statements exist here.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const eventColumns = `id, type, actor_user_id, actor_role, ip_address,
	case_id, proposal_id, request_id, callback_id, message, metadata, created_at`

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress,
		e.CaseID, e.ProposalID, e.RequestID, e.CallbackID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListForCase(ctx context.Context, caseID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM audit_events
		WHERE case_id = $1 ORDER BY created_at LIMIT $2`, caseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(
			&e.ID, &typ, &e.ActorUserID, &e.ActorRole, &e.IPAddress,
			&e.CaseID, &e.ProposalID, &e.RequestID, &e.CallbackID, &e.Message, &e.Metadata, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
