package notify

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepository stores the outbound message log in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const messageColumns = `id, case_id, kind, phone, body, stage_ordinal, reason,
	status, provider_ref, error, sent_at, delivered_at, read_at`

func (r *PostgresRepository) CreateMessage(ctx context.Context, m Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notify_messages (`+messageColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		m.ID, m.CaseID, string(m.Kind), m.Phone, m.Body, m.StageOrdinal, m.Reason,
		string(m.Status), m.ProviderRef, m.Error, m.SentAt, m.DeliveredAt, m.ReadAt,
	)
	return err
}

func (r *PostgresRepository) GetMessage(ctx context.Context, id string) (Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM notify_messages WHERE id = $1`, id)
	return scanMessage(row)
}

func (r *PostgresRepository) UpdateMessage(ctx context.Context, m Message) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notify_messages SET
			status = $2, delivered_at = $3, read_at = $4
		WHERE id = $1`,
		m.ID, string(m.Status), m.DeliveredAt, m.ReadAt,
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

func (r *PostgresRepository) ListMessages(ctx context.Context, caseID string) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM notify_messages
		WHERE case_id = $1 ORDER BY sent_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (Message, error) {
	var (
		m      Message
		kind   string
		status string
	)
	err := row.Scan(
		&m.ID, &m.CaseID, &kind, &m.Phone, &m.Body, &m.StageOrdinal, &m.Reason,
		&status, &m.ProviderRef, &m.Error, &m.SentAt, &m.DeliveredAt, &m.ReadAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, err
	}
	m.Kind = MessageKind(kind)
	m.Status = MessageStatus(status)
	return m, nil
}
