package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// パスワード長の制約。MaxPasswordBytes はbcryptが扱える上限。
const (
	MinPasswordLen   = 8
	MaxPasswordBytes = 72
)

// ErrPasswordTooLong はbcryptで扱えない長さの平文が渡されたことを表す。
var ErrPasswordTooLong = errors.New("auth: password exceeds 72 bytes")

// Credentials はパスワードのダイジェスト化と照合を行う。
// 平文パスワードはログ出力も保存もしない。
type Credentials struct {
	cost int

	dummyOnce   sync.Once
	dummyDigest []byte
}

// NewCredentials は指定コストのCredentialsを生成する。
// costがbcryptの範囲外の場合はbcrypt.DefaultCostを使う。
func NewCredentials(cost int) *Credentials {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Credentials{cost: cost}
}

// Hash は平文からソルト付きダイジェストを生成する。
// 同じ平文でも呼び出しごとに異なるダイジェストになる。
// 長さの下限チェックは呼び出し側で行う。
func (c *Credentials) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), c.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify は平文がダイジェストから生成されたものであればtrueを返す。
// 破損したダイジェストに対してはエラーではなくfalseを返す。
func (c *Credentials) Verify(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// BurnCompare は存在しないユーザーへのログイン試行でも
// 既存ユーザーと同程度の時間がかかるよう、固定ダイジェストとの照合を1回行う。
func (c *Credentials) BurnCompare(plaintext string) {
	c.dummyOnce.Do(func() {
		c.dummyDigest, _ = bcrypt.GenerateFromPassword([]byte("serverinv-unknown-user"), c.cost)
	})
	_ = bcrypt.CompareHashAndPassword(c.dummyDigest, []byte(plaintext))
}
