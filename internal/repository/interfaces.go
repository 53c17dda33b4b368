// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hitoshi/serverinv/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
var ErrDuplicate = errors.New("repository: duplicate key")

// UserRepository はユーザー（Identity）の永続化インターフェース。
// ユーザーの削除は提供しない。
type UserRepository interface {
	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	// ユーザー名は大文字小文字を区別する。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDと作成日時をuserに設定する。
	// ユーザー名が既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// Count は登録ユーザー数を返す。
	Count(ctx context.Context) (int, error)
}

// ServerRepository はインベントリの永続化インターフェース。
type ServerRepository interface {
	// List は登録済みサーバーをID昇順で返す。
	List(ctx context.Context) ([]*model.Server, error)

	// Create はサーバーを作成し、採番されたIDと作成・更新日時をserverに設定する。
	Create(ctx context.Context, server *model.Server) error

	// Delete は指定IDのサーバーを削除し、削除したレコードを返す。
	// 見つからない場合はnilを返す。
	Delete(ctx context.Context, id int64) (*model.Server, error)

	// CountByType はサーバー種別ごとの件数を返す。
	CountByType(ctx context.Context) (map[model.ServerType]int, error)
}

// AuditRepository は監査ログの永続化インターフェース。
// 追記のみを提供し、更新・削除の手段は持たない。
type AuditRepository interface {
	// Append は監査レコードを1件追記する。
	Append(ctx context.Context, record *model.AuditRecord) error

	// Recent は新しい順にlimit件までの監査レコードを返す。
	// 並び順は occurred_at 降順、同時刻の場合は id 降順。
	Recent(ctx context.Context, limit int) ([]*model.AuditRecord, error)

	// Count は監査レコードの総数を返す。
	Count(ctx context.Context) (int, error)
}

// UnitOfWork は1つの作業単位の中で使うリポジトリ群。
type UnitOfWork interface {
	Users() UserRepository
	Servers() ServerRepository
	Audit() AuditRepository
}

// Store はリポジトリ群とトランザクション境界を提供する。
// Storeから直接取得したリポジトリは操作ごとに独立して確定する。
type Store interface {
	UnitOfWork

	// WithinTx はfnを1つのトランザクション内で実行する。
	// fnがエラーを返した場合、fn内の変更はすべて破棄される。
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error

	// Ping はストアへの疎通を確認する。
	Ping(ctx context.Context) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Querier は*sql.DBと*sql.Txの共通部分。
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
