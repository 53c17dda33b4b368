package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/serverinv/internal/model"
)

const serverColumns = `id, hostname, os_type, os_version, server_type, private_ip, public_ip,
	primary_owner, secondary_owner, datacenter, environment, created_by, created_at, updated_at`

// PostgresServerRepo はPostgreSQLを使用したサーバーリポジトリ。
type PostgresServerRepo struct {
	q Querier
}

// NewPostgresServerRepo はPostgresServerRepoを生成する。
func NewPostgresServerRepo(q Querier) *PostgresServerRepo {
	return &PostgresServerRepo{q: q}
}

var _ ServerRepository = (*PostgresServerRepo)(nil)

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (*model.Server, error) {
	s := &model.Server{}
	var serverType string
	err := row.Scan(
		&s.ID, &s.Hostname, &s.OSType, &s.OSVersion, &serverType, &s.PrivateIP, &s.PublicIP,
		&s.PrimaryOwner, &s.SecondaryOwner, &s.Datacenter, &s.Environment, &s.CreatedBy,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.ServerType = model.ServerType(serverType)
	return s, nil
}

// List は登録済みサーバーをID昇順で返す。
func (r *PostgresServerRepo) List(ctx context.Context) ([]*model.Server, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+serverColumns+` FROM servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	servers := []*model.Server{}
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate servers: %w", err)
	}

	return servers, nil
}

// Create はサーバーを作成し、採番されたIDと作成・更新日時をserverに設定する。
func (r *PostgresServerRepo) Create(ctx context.Context, server *model.Server) error {
	err := r.q.QueryRowContext(ctx,
		`INSERT INTO servers (hostname, os_type, os_version, server_type, private_ip, public_ip,
			primary_owner, secondary_owner, datacenter, environment, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at, updated_at`,
		server.Hostname, server.OSType, server.OSVersion, string(server.ServerType),
		server.PrivateIP, server.PublicIP, server.PrimaryOwner, server.SecondaryOwner,
		server.Datacenter, server.Environment, server.CreatedBy,
	).Scan(&server.ID, &server.CreatedAt, &server.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert server: %w", err)
	}

	return nil
}

// Delete は指定IDのサーバーを削除し、削除したレコードを返す。
// 見つからない場合はnilを返す。
func (r *PostgresServerRepo) Delete(ctx context.Context, id int64) (*model.Server, error) {
	row := r.q.QueryRowContext(ctx,
		`DELETE FROM servers WHERE id = $1 RETURNING `+serverColumns,
		id,
	)
	s, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete server: %w", err)
	}

	return s, nil
}

// CountByType はサーバー種別ごとの件数を返す。
func (r *PostgresServerRepo) CountByType(ctx context.Context) (map[model.ServerType]int, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT server_type, count(*) FROM servers GROUP BY server_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count servers by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ServerType]int)
	for rows.Next() {
		var serverType string
		var n int
		if err := rows.Scan(&serverType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan server count: %w", err)
		}
		counts[model.ServerType(serverType)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate server counts: %w", err)
	}

	return counts, nil
}
