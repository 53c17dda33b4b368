package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/serverinv/internal/auth"
	"github.com/hitoshi/serverinv/internal/inventory"
	"github.com/hitoshi/serverinv/internal/middleware"
	"github.com/hitoshi/serverinv/internal/model"
)

// --- モック定義 ---

// mockAccountService はAccountServiceInterfaceのモック実装。
type mockAccountService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput, requester *model.User) (*model.User, error)
	loginFn    func(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
}

func (m *mockAccountService) Register(ctx context.Context, in auth.RegisterInput, requester *model.User) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in, requester)
	}
	return &model.User{Username: in.Username, Role: model.RoleUser}, nil
}

func (m *mockAccountService) Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, in)
	}
	return nil, model.NewInvalidCredentialsError()
}

// mockInventoryService はInventoryServiceInterfaceのモック実装。
type mockInventoryService struct {
	listFn   func(ctx context.Context, actor, sourceAddr string) ([]*model.Server, error)
	createFn func(ctx context.Context, actor string, in inventory.CreateInput, sourceAddr string) (*model.Server, error)
	deleteFn func(ctx context.Context, actor string, id int64, sourceAddr string) (*model.Server, error)
}

func (m *mockInventoryService) List(ctx context.Context, actor, sourceAddr string) ([]*model.Server, error) {
	if m.listFn != nil {
		return m.listFn(ctx, actor, sourceAddr)
	}
	return nil, nil
}

func (m *mockInventoryService) Create(ctx context.Context, actor string, in inventory.CreateInput, sourceAddr string) (*model.Server, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, in, sourceAddr)
	}
	return &model.Server{ID: 1}, nil
}

func (m *mockInventoryService) Delete(ctx context.Context, actor string, id int64, sourceAddr string) (*model.Server, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id, sourceAddr)
	}
	return &model.Server{ID: id}, nil
}

// mockAuditReader はAuditReaderのモック実装。
type mockAuditReader struct {
	recentFn func(ctx context.Context, limit int) ([]*model.AuditRecord, error)
}

func (m *mockAuditReader) Recent(ctx context.Context, limit int) ([]*model.AuditRecord, error) {
	return m.recentFn(ctx, limit)
}

// mockChecker はRoleCheckerのモック実装。
type mockChecker struct {
	users map[string]*model.User
}

func (m *mockChecker) Check(ctx context.Context, username string, required model.Role) (*model.User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, model.NewUnauthenticatedError()
	}
	if required != model.RoleAny && u.Role != required {
		return u, model.NewForbiddenError()
	}
	return u, nil
}

// mockPinger はPingerのモック実装。
type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

// --- テストヘルパー ---

// withUsername はテスト用にリクエストコンテキストにユーザー名を注入するヘルパー。
func withUsername(r *http.Request, username string) *http.Request {
	return r.WithContext(middleware.ContextWithUsername(r.Context(), username))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}
