package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/serverinv/internal/model"
)

// PostgresAuditRepo はPostgreSQLを使用した監査ログリポジトリ。
// audit_logテーブルはトリガーによりUPDATE/DELETEが禁止されている。
type PostgresAuditRepo struct {
	q Querier
}

// NewPostgresAuditRepo はPostgresAuditRepoを生成する。
func NewPostgresAuditRepo(q Querier) *PostgresAuditRepo {
	return &PostgresAuditRepo{q: q}
}

var _ AuditRepository = (*PostgresAuditRepo)(nil)

// Append は監査レコードを1件追記する。
func (r *PostgresAuditRepo) Append(ctx context.Context, record *model.AuditRecord) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor, action, resource, detail, occurred_at, source_addr)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.Actor, string(record.Action), record.Resource, record.Detail,
		record.OccurredAt, record.SourceAddr,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// Recent は新しい順にlimit件までの監査レコードを返す。
func (r *PostgresAuditRepo) Recent(ctx context.Context, limit int) ([]*model.AuditRecord, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, actor, action, resource, detail, occurred_at, source_addr
		 FROM audit_log
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	records := []*model.AuditRecord{}
	for rows.Next() {
		rec := &model.AuditRecord{}
		var action string
		if err := rows.Scan(&rec.ID, &rec.Actor, &action, &rec.Resource, &rec.Detail, &rec.OccurredAt, &rec.SourceAddr); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.Action = model.Action(action)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit records: %w", err)
	}

	return records, nil
}

// Count は監査レコードの総数を返す。
func (r *PostgresAuditRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT count(*) FROM audit_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return n, nil
}
