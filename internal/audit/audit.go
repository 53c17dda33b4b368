// Package audit はセキュリティ上重要な操作の監査ログを記録する。
//
// 記録は呼び出し元の作業単位（トランザクション）の中で同期的に行う。
// 監査レコードの書き込みに失敗した場合、呼び出し元は操作全体を失敗として扱う。
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/serverinv/internal/ids"
	"github.com/hitoshi/serverinv/internal/metrics"
	"github.com/hitoshi/serverinv/internal/model"
	"github.com/hitoshi/serverinv/internal/repository"
)

// MaxRecent は1回の読み出しで返す監査レコードの上限。
const MaxRecent = 100

// audit_log の列幅（文字数）。Recordはこれを超える値を切り詰めてから追記する。
const (
	MaxActorLen      = 80
	MaxResourceLen   = 255
	MaxSourceAddrLen = 45
)

// Entry は記録する監査イベント。IDと時刻はLoggerが付与する。
type Entry struct {
	Actor      string
	Action     model.Action
	Resource   string
	Detail     string
	SourceAddr string
}

// Logger は監査レコードの追記と読み出しを行う。
type Logger struct {
	store   repository.Store
	ids     *ids.Generator
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// Option はLoggerの設定を変更する。
type Option func(*Logger)

// WithClock は時刻の取得元を差し替える。
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(l *Logger) { l.metrics = m }
}

// NewLogger はLoggerを生成する。
func NewLogger(store repository.Store, gen *ids.Generator, opts ...Option) *Logger {
	l := &Logger{
		store:   store,
		ids:     gen,
		metrics: metrics.NopCollector{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record はuowの中で監査レコードを1件追記する。
// エラーを返した場合、呼び出し元はuowをロールバックしなければならない。
func (l *Logger) Record(ctx context.Context, uow repository.UnitOfWork, e Entry) (*model.AuditRecord, error) {
	now := l.now().UTC()
	id, err := l.ids.NewAt(now)
	if err != nil {
		l.metrics.RecordAuditFailure(string(e.Action))
		return nil, fmt.Errorf("failed to generate audit id: %w", err)
	}

	rec := &model.AuditRecord{
		ID:         id,
		Actor:      Truncate(e.Actor, MaxActorLen),
		Action:     e.Action,
		Resource:   Truncate(e.Resource, MaxResourceLen),
		Detail:     e.Detail,
		OccurredAt: now,
		SourceAddr: Truncate(e.SourceAddr, MaxSourceAddrLen),
	}

	if err := uow.Audit().Append(ctx, rec); err != nil {
		l.metrics.RecordAuditFailure(string(e.Action))
		slog.Error("audit append failed",
			slog.String("actor", e.Actor),
			slog.String("action", string(e.Action)),
			slog.String("resource", e.Resource),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to record %s: %w", e.Action, err)
	}

	l.metrics.RecordAuditWrite(string(e.Action))
	slog.Info("audit recorded",
		slog.String("actor", e.Actor),
		slog.String("action", string(e.Action)),
		slog.String("resource", e.Resource),
		slog.String("source_addr", e.SourceAddr),
	)
	return rec, nil
}

// Truncate はsを先頭からmax文字までに切り詰める。
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// RecordNow は独立した作業単位で監査レコードを1件追記する。
// 変更を伴わない操作（ログイン失敗、アクセス拒否）の記録に使う。
func (l *Logger) RecordNow(ctx context.Context, e Entry) error {
	return l.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		_, err := l.Record(ctx, uow, e)
		return err
	})
}

// Recent は新しい順に最大limit件の監査レコードを返す。
// limitが1未満またはMaxRecentを超える場合はMaxRecentとして扱う。
func (l *Logger) Recent(ctx context.Context, limit int) ([]*model.AuditRecord, error) {
	if limit < 1 || limit > MaxRecent {
		limit = MaxRecent
	}

	records, err := l.store.Audit().Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return records, nil
}
