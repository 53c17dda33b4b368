// Package auth はパスワード認証、セッショントークン、ロールによる認可判定を提供する。
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/serverinv/internal/audit"
	"github.com/hitoshi/serverinv/internal/metrics"
	"github.com/hitoshi/serverinv/internal/model"
	"github.com/hitoshi/serverinv/internal/repository"
	"github.com/hitoshi/serverinv/internal/validate"
)

// MaxUsernameLen はユーザー名の最大文字数。
const MaxUsernameLen = 80

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Username   string
	Password   string
	Role       string // 空の場合は user
	SourceAddr string
}

// LoginInput はログインの入力。
type LoginInput struct {
	Username   string
	Password   string
	SourceAddr string
}

// LoginResult はログイン成功時に返すトークンとユーザー情報。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Username  string
	Role      model.Role
}

// Service はユーザー登録とログインのビジネスロジックを提供する。
type Service struct {
	store   repository.Store
	creds   *Credentials
	tokens  *TokenIssuer
	audit   *audit.Logger
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	store repository.Store,
	creds *Credentials,
	tokens *TokenIssuer,
	auditLogger *audit.Logger,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		store:   store,
		creds:   creds,
		tokens:  tokens,
		audit:   auditLogger,
		metrics: collector,
	}
}

// Register はユーザーを作成し、USER_CREATED を同一トランザクションで記録する。
// requesterは有効なトークンで認証済みの呼び出し元。匿名の場合はnil。
// admin ロールの指定は requester が管理者の場合のみ受け付ける。
func (s *Service) Register(ctx context.Context, in RegisterInput, requester *model.User) (*model.User, error) {
	role, err := s.validateRegistration(in, requester)
	if err != nil {
		slog.Warn("registration rejected",
			slog.String("username", in.Username),
			slog.String("source_addr", in.SourceAddr),
			slog.String("reason", err.Error()),
		)
		return nil, err
	}

	digest, err := s.creds.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	actor := model.SystemActor
	if requester != nil {
		actor = requester.Username
	}

	user := &model.User{
		Username:     in.Username,
		PasswordHash: digest,
		Role:         role,
	}
	detail, _ := json.Marshal(map[string]string{"role": string(role)})

	err = s.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		if err := uow.Users().Create(ctx, user); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, uow, audit.Entry{
			Actor:      actor,
			Action:     model.ActionUserCreated,
			Resource:   "user:" + user.Username,
			Detail:     string(detail),
			SourceAddr: in.SourceAddr,
		})
		return err
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, model.NewDuplicateUsernameError()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	slog.Info("user registered",
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
		slog.String("actor", actor),
	)
	return user, nil
}

// validateRegistration は登録入力を検証し、割り当てるロールを返す。
func (s *Service) validateRegistration(in RegisterInput, requester *model.User) (model.Role, error) {
	if strings.TrimSpace(in.Username) == "" {
		return "", model.NewMissingFieldError("username")
	}
	if in.Password == "" {
		return "", model.NewMissingFieldError("password")
	}
	if utf8.RuneCountInString(in.Username) > MaxUsernameLen {
		return "", model.NewFieldTooLongError("username", MaxUsernameLen)
	}
	if !validate.HasNoMarkup(in.Username) {
		return "", model.NewMarkupNotAllowedError("username")
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLen {
		return "", model.NewPasswordTooShortError(MinPasswordLen)
	}
	if len(in.Password) > MaxPasswordBytes {
		return "", model.NewPasswordTooLongError(MaxPasswordBytes)
	}

	role := model.RoleUser
	if in.Role != "" {
		role = model.Role(in.Role)
		if !role.Valid() {
			return "", model.NewInvalidEnumError("role", []string{string(model.RoleAdmin), string(model.RoleUser)})
		}
	}
	if role == model.RoleAdmin && !requester.IsAdmin() {
		return "", model.NewForbiddenError()
	}
	return role, nil
}

// Login は資格情報を検証してトークンを発行し、LOGIN を記録する。
// 失敗時は LOGIN_FAILED を記録し、ユーザーの有無を区別しないエラーを返す。
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if in.Username == "" {
		return nil, model.NewMissingFieldError("username")
	}
	if in.Password == "" {
		return nil, model.NewMissingFieldError("password")
	}

	// 登録時の上限を超えるユーザー名は存在し得ないため検索しない
	var user *model.User
	if utf8.RuneCountInString(in.Username) <= MaxUsernameLen {
		found, err := s.store.Users().FindByUsername(ctx, in.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		user = found
	}

	var ok bool
	if user == nil {
		s.creds.BurnCompare(in.Password)
	} else {
		ok = s.creds.Verify(in.Password, user.PasswordHash)
	}

	if !ok {
		s.metrics.RecordLogin(false)
		s.recordLoginFailure(ctx, in)
		return nil, model.NewInvalidCredentialsError()
	}

	token, expiresAt, err := s.tokens.Issue(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	err = s.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		_, err := s.audit.Record(ctx, uow, audit.Entry{
			Actor:      user.Username,
			Action:     model.ActionLogin,
			Resource:   "system",
			SourceAddr: in.SourceAddr,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	s.metrics.RecordLogin(true)
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Username:  user.Username,
		Role:      user.Role,
	}, nil
}

// recordLoginFailure はLOGIN_FAILEDを記録する。
// 記録に失敗してもログイン失敗の応答は変えない。
func (s *Service) recordLoginFailure(ctx context.Context, in LoginInput) {
	err := s.audit.RecordNow(ctx, audit.Entry{
		Actor:      model.SystemActor,
		Action:     model.ActionLoginFailed,
		Resource:   "user:" + audit.Truncate(in.Username, MaxUsernameLen),
		SourceAddr: in.SourceAddr,
	})
	if err != nil {
		slog.Error("failed to record login failure",
			slog.String("username", audit.Truncate(in.Username, MaxUsernameLen)),
			slog.String("error", err.Error()),
		)
	}
}

// EnsureAdmin はusernameのユーザーが存在しなければ管理者として作成する。
// 作成した場合は USER_CREATED を system の操作として同一トランザクションで記録する。
// 既に存在する場合はロールを変更せずfalseを返す。管理者でなければ警告を出す。
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, errors.New("admin username and password are required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return false, fmt.Errorf("admin password must be at least %d characters", MinPasswordLen)
	}

	existing, err := s.store.Users().FindByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("failed to look up admin: %w", err)
	}
	if existing != nil {
		if existing.Role != model.RoleAdmin {
			slog.Warn("bootstrap admin username exists without admin role",
				slog.String("username", username),
				slog.String("role", string(existing.Role)),
			)
		}
		return false, nil
	}

	digest, err := s.creds.Hash(password)
	if err != nil {
		return false, err
	}

	admin := &model.User{Username: username, PasswordHash: digest, Role: model.RoleAdmin}
	err = s.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		if err := uow.Users().Create(ctx, admin); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, uow, audit.Entry{
			Actor:    model.SystemActor,
			Action:   model.ActionUserCreated,
			Resource: "user:" + username,
			Detail:   `{"role":"admin","bootstrap":"true"}`,
		})
		return err
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// 別プロセスが先に作成した
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create admin: %w", err)
	}

	return true, nil
}
