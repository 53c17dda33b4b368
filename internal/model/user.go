// Package model はドメインモデルを定義する。
package model

import "time"

// Role は認可判定に使うロール。admin と user の2段階のみ。
type Role string

const (
	// RoleAdmin はインベントリの変更と監査ログの閲覧ができる管理者ロール。
	RoleAdmin Role = "admin"
	// RoleUser は一覧の閲覧のみができる一般ユーザーロール。
	RoleUser Role = "user"
	// RoleAny は有効なセッションがあればロールを問わないことを示す。
	// 認可ゲートへの要求値としてのみ使い、ユーザーに割り当てることはない。
	RoleAny Role = ""
)

// Valid はロールが割り当て可能な値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User は登録済みアカウント（Identity）を表す。
// Username は大文字小文字を区別し、作成後は変更しない。
// PasswordHash はbcryptダイジェストのみを保持し、平文は保持しない。
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// IsAdmin はユーザーが管理者ロールかどうかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
