package model

import "time"

// Action は監査ログのアクション種別。閉じた語彙として扱う。
type Action string

const (
	ActionUserCreated   Action = "USER_CREATED"
	ActionLogin         Action = "LOGIN"
	ActionLoginFailed   Action = "LOGIN_FAILED"
	ActionViewServers   Action = "VIEW_SERVERS"
	ActionServerCreated Action = "SERVER_CREATED"
	ActionServerDeleted Action = "SERVER_DELETED"
	// ActionAccessDenied はロール不足で拒否された操作を表す。
	ActionAccessDenied Action = "ACCESS_DENIED"
)

// SystemActor は未認証の操作（登録、ログイン失敗、初期管理者作成）の実行者として記録する値。
const SystemActor = "system"

// AuditRecord は監査ログの1レコードを表す。
// 作成後に更新・削除されることはない。
// 並び順は OccurredAt、同時刻の場合は ID（単調増加のULID）で決まる。
type AuditRecord struct {
	ID         string
	Actor      string
	Action     Action
	Resource   string
	Detail     string // 任意。空文字は詳細なしを意味する
	OccurredAt time.Time
	SourceAddr string
}
