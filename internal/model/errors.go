package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, auth, permission, not_found, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ。HTTPステータスへの対応はhandler層で行う。
const (
	CategoryValidation = "validation"
	CategoryAuth       = "auth"
	CategoryPermission = "permission"
	CategoryNotFound   = "not_found"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeMissingField       = "MISSING_FIELD"
	ErrCodeInvalidIP          = "INVALID_IP"
	ErrCodeInvalidEnum        = "INVALID_ENUM"
	ErrCodeMarkupNotAllowed   = "MARKUP_NOT_ALLOWED"
	ErrCodeFieldTooLong       = "FIELD_TOO_LONG"
	ErrCodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	ErrCodePasswordTooLong    = "PASSWORD_TOO_LONG"
	ErrCodeDuplicateUsername  = "DUPLICATE_USERNAME"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeServerNotFound     = "SERVER_NOT_FOUND"
	ErrCodeRouteNotFound      = "ROUTE_NOT_FOUND"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: CategoryValidation,
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewMissingFieldError は必須項目の欠落エラーを生成する。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("%s は必須です。", field),
		Category: CategoryValidation,
		Action:   "必須項目をすべて入力してください。",
	}
}

// NewInvalidIPError はIPv4アドレス形式の不正エラーを生成する。
func NewInvalidIPError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIP,
		Message:  fmt.Sprintf("%s が正しいIPv4アドレスではありません。", field),
		Category: CategoryValidation,
		Action:   "192.168.1.10 のようなドット区切りの形式で入力してください。",
	}
}

// NewInvalidEnumError は列挙値以外が指定された場合のエラーを生成する。
func NewInvalidEnumError(field string, allowed []string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEnum,
		Message:  fmt.Sprintf("%s の値が不正です。", field),
		Category: CategoryValidation,
		Action:   fmt.Sprintf("%v のいずれかを指定してください。", allowed),
	}
}

// NewMarkupNotAllowedError はテキスト項目にHTMLが含まれる場合のエラーを生成する。
func NewMarkupNotAllowedError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeMarkupNotAllowed,
		Message:  fmt.Sprintf("%s にHTMLタグを含めることはできません。", field),
		Category: CategoryValidation,
		Action:   "プレーンテキストで入力してください。",
	}
}

// NewFieldTooLongError は項目の最大長超過エラーを生成する。
func NewFieldTooLongError(field string, max int) *APIError {
	return &APIError{
		Code:     ErrCodeFieldTooLong,
		Message:  fmt.Sprintf("%s は%d文字以下で指定してください。", field, max),
		Category: CategoryValidation,
		Action:   "入力内容を短くしてください。",
	}
}

// NewPasswordTooShortError はパスワード長不足エラーを生成する。
func NewPasswordTooShortError(min int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  fmt.Sprintf("パスワードは%d文字以上で指定してください。", min),
		Category: CategoryValidation,
		Action:   "より長いパスワードを指定してください。",
	}
}

// NewPasswordTooLongError はパスワードがダイジェスト化できる長さを超えた場合のエラーを生成する。
func NewPasswordTooLongError(maxBytes int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooLong,
		Message:  fmt.Sprintf("パスワードは%dバイト以下で指定してください。", maxBytes),
		Category: CategoryValidation,
		Action:   "より短いパスワードを指定してください。",
	}
}

// NewDuplicateUsernameError はユーザー名の重複エラーを生成する。
func NewDuplicateUsernameError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  "このユーザー名は既に使用されています。",
		Category: CategoryValidation,
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー名とパスワードのどちらが誤っていたかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: CategoryAuth,
		Action:   "入力内容を確認してください。",
	}
}

// NewUnauthenticatedError はトークン欠落・不正・期限切れのエラーを生成する。
// いずれの原因かは呼び出し側に区別させない。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError はロール不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "管理者権限が必要です。",
		Category: CategoryPermission,
		Action:   "管理者に操作を依頼してください。",
	}
}

// NewServerNotFoundError はサーバー未検出エラーを生成する。
func NewServerNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeServerNotFound,
		Message:  fmt.Sprintf("指定されたサーバーが見つかりません: %d", id),
		Category: CategoryNotFound,
		Action:   "サーバーIDを確認してください。",
	}
}

// NewRouteNotFoundError は存在しないエンドポイントへのリクエストに返すエラーを生成する。
func NewRouteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRouteNotFound,
		Message:  "指定されたエンドポイントは存在しません。",
		Category: CategoryNotFound,
		Action:   "URLを確認してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: CategorySystem,
		Action:   "Retry-After ヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}
