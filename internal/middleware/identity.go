// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/hitoshi/serverinv/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	usernameContextKey   = contextKey("username")
	userContextKey       = contextKey("user")
	clientAddrContextKey = contextKey("client_addr")
	requestInfoKey       = contextKey("request_info")
)

// requestInfo はロギングミドルウェアが用意し、内側のミドルウェアが書き込む。
// 内側で作られたコンテキストは外側から参照できないため、ポインタで共有する。
type requestInfo struct {
	username string
}

// UsernameFromContext は認証済みユーザー名を取得する。
// 認証ミドルウェアを通過していない場合は空文字とfalseを返す。
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameContextKey).(string)
	if !ok || username == "" {
		return "", false
	}
	return username, true
}

// ContextWithUsername はコンテキストに認証済みユーザー名を注入する。
func ContextWithUsername(ctx context.Context, username string) context.Context {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.username = username
	}
	return context.WithValue(ctx, usernameContextKey, username)
}

// UserFromContext はロールミドルウェアが解決したユーザーを取得する。
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// ContextWithUser はコンテキストに解決済みユーザーを注入する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// ClientAddrFromContext はクライアントアドレスを取得する。
// NewClientAddrMiddleware を通過していない場合は空文字を返す。
func ClientAddrFromContext(ctx context.Context) string {
	addr, _ := ctx.Value(clientAddrContextKey).(string)
	return addr
}

// NewClientAddrMiddleware はクライアントアドレスを解決してコンテキストに注入するミドルウェアを返す。
// trustProxyがtrueの場合のみ X-Forwarded-For の先頭、次に X-Real-IP を採用する。
// ヘッダーの値がIPアドレスとして解釈できない場合は RemoteAddr を使う。
func NewClientAddrMiddleware(trustProxy bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddr(r, trustProxy)
			ctx := context.WithValue(r.Context(), clientAddrContextKey, addr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientAddr(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := parseIP(first); ip != "" {
				return ip
			}
		}
		if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseIP はsをIPアドレスとして解釈し、正規化した文字列を返す。解釈できなければ空文字。
func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
