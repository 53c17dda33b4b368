package auth

import (
	"context"
	"fmt"

	"github.com/hitoshi/serverinv/internal/model"
)

// UserLookup はユーザー名からユーザーを引くためのインターフェース。
// repository.UserRepository が満たす。
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// Gate はユーザーのロールに基づいて操作の可否を判定する。
// 判定は admin / user の2段階のみ。
type Gate struct {
	users UserLookup
}

// NewGate はGateを生成する。
func NewGate(users UserLookup) *Gate {
	return &Gate{users: users}
}

// Check はusernameのユーザーがrequiredロールを要求する操作を行えるか判定し、
// 許可された場合は解決したユーザーを返す。
//
//   - ユーザーが存在しない場合は UNAUTHENTICATED
//   - requiredがRoleAnyの場合はロールを問わず許可
//   - それ以外はロールが一致しない場合に FORBIDDEN
func (g *Gate) Check(ctx context.Context, username string, required model.Role) (*model.User, error) {
	user, err := g.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}

	if required == model.RoleAny {
		return user, nil
	}
	if user.Role != required {
		return user, model.NewForbiddenError()
	}
	return user, nil
}
