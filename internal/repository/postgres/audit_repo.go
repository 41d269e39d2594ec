package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xela07ax/reflections-auth/internal/audit"
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Количество колонок в таблице auth_audit_logs
const auditFields = 10

func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	var placeholders strings.Builder
	vals := make([]any, 0, len(events)*auditFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * auditFields
		if i > 0 {
			placeholders.WriteString(",")
		}
		fmt.Fprintf(&placeholders, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10)

		vals = append(vals,
			e.ID, e.RequestID, e.Action, e.Email, e.UserID,
			e.ActorID, e.Outcome, e.Error, e.RemoteAddr, e.Timestamp,
		)
	}

	query := "INSERT INTO auth_audit_logs (id, request_id, action, email, user_id, actor_id, outcome, error, remote_addr, timestamp) VALUES " +
		placeholders.String()

	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: write audit batch: %w", err)
	}
	return nil
}

// FetchLogs читает последние события; пустой email — без фильтра.
func (r *AuditRepo) FetchLogs(ctx context.Context, email string, limit int) ([]audit.Event, error) {
	query := `
		SELECT id, request_id, action, email, user_id, actor_id, outcome, error, remote_addr, timestamp
		FROM auth_audit_logs
		WHERE ($1 = '' OR email = $1)
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, email, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch audit logs: %w", err)
	}
	defer rows.Close()

	events := make([]audit.Event, 0)
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Action, &e.Email, &e.UserID, &e.ActorID,
			&e.Outcome, &e.Error, &e.RemoteAddr, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
