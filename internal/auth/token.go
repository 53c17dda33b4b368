package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTTL はセッショントークンの有効期間。変更できない。
const TokenTTL = time.Hour

const tokenIssuer = "serverinv"

// ErrInvalidToken はトークンが不正であることを表す。
// 署名不一致、形式不正、期限切れを区別しない。
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims はトークンに含めるクレーム。Subjectにユーザー名を格納する。
type Claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer はHS256署名のセッショントークンを発行・検証する。
// サーバー側にトークンを保存しないため、期限前の失効はできない。
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。nowがnilの場合はtime.Nowを使う。
func NewTokenIssuer(secret []byte, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: secret, now: now}
}

// Issue はusernameを主体とするトークンを発行し、トークンと有効期限を返す。
func (t *TokenIssuer) Issue(username string) (string, time.Time, error) {
	if username == "" {
		return "", time.Time{}, errors.New("auth: username is required")
	}

	issuedAt := t.now()
	expiresAt := issuedAt.Add(TokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify はトークンの署名と有効期限を検証し、埋め込まれたユーザー名を返す。
// どの理由で失敗してもErrInvalidTokenを返す。
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return t.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
