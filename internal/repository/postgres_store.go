package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresStore はPostgreSQLを使用したStore実装。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// Users はトランザクション外のユーザーリポジトリを返す。
func (s *PostgresStore) Users() UserRepository { return NewPostgresUserRepo(s.db) }

// Servers はトランザクション外のサーバーリポジトリを返す。
func (s *PostgresStore) Servers() ServerRepository { return NewPostgresServerRepo(s.db) }

// Audit はトランザクション外の監査ログリポジトリを返す。
func (s *PostgresStore) Audit() AuditRepository { return NewPostgresAuditRepo(s.db) }

// Ping はデータベースへの疎通を確認する。
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTx はfnを1つのトランザクション内で実行する。
// fnがエラーを返した場合、またはコミットに失敗した場合はロールバックされる。
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(txUnitOfWork{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txUnitOfWork は1つの*sql.Txを共有するリポジトリ群。
type txUnitOfWork struct {
	tx *sql.Tx
}

func (u txUnitOfWork) Users() UserRepository     { return NewPostgresUserRepo(u.tx) }
func (u txUnitOfWork) Servers() ServerRepository { return NewPostgresServerRepo(u.tx) }
func (u txUnitOfWork) Audit() AuditRepository    { return NewPostgresAuditRepo(u.tx) }

// isUniqueViolation はerrがPostgreSQLの一意制約違反かどうかを返す。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
