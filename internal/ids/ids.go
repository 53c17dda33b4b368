// Package ids は監査レコード用の単調増加IDを生成する。
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator は辞書順ソート可能なULIDを生成する。
// 同一ミリ秒内でも生成順に大きい値を返すため、タイムスタンプが等しいレコードの順序付けに使える。
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator はGeneratorを生成する。
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewAt は指定時刻のULIDを文字列で返す。
func (g *Generator) NewAt(t time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
