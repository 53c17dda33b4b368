package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/serverinv/internal/model"
)

// MemoryStore はプロセス内メモリに状態を保持するStore実装。
// DATABASE_URL=memory での起動とテストに使う。プロセス終了で内容は失われる。
//
// WithinTx は状態の複製に対してfnを実行し、成功した場合のみ複製を現在の状態に差し替える。
// 書き込みはミューテックスで直列化される。
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

// memState はMemoryStoreが保持する全データ。
// 格納済みのエンティティは書き換えないため、複製はマップとスライスの浅いコピーで足りる。
type memState struct {
	users      map[string]*model.User
	userSeq    int64
	servers    map[int64]*model.Server
	serverSeq  int64
	auditLog   []*model.AuditRecord
	auditIndex map[string]struct{}
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			users:      make(map[string]*model.User),
			servers:    make(map[int64]*model.Server),
			auditIndex: make(map[string]struct{}),
		},
		now: time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (st *memState) clone() *memState {
	return &memState{
		users:      maps.Clone(st.users),
		userSeq:    st.userSeq,
		servers:    maps.Clone(st.servers),
		serverSeq:  st.serverSeq,
		auditLog:   slices.Clone(st.auditLog),
		auditIndex: maps.Clone(st.auditIndex),
	}
}

// Ping は常に成功する。
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// WithinTx はfnを状態の複製に対して実行し、エラーがなければ確定する。
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	draft := s.state.clone()
	if err := fn(memUnitOfWork{st: draft, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = draft
	return nil
}

// read は読み取りロックを取得して現在の状態に対してfnを実行する。
func (s *MemoryStore) read(fn func(uow UnitOfWork) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(memUnitOfWork{st: s.state, now: s.now})
}

// Users は操作ごとに確定するユーザーリポジトリを返す。
func (s *MemoryStore) Users() UserRepository { return autoCommitUsers{s} }

// Servers は操作ごとに確定するサーバーリポジトリを返す。
func (s *MemoryStore) Servers() ServerRepository { return autoCommitServers{s} }

// Audit は操作ごとに確定する監査ログリポジトリを返す。
func (s *MemoryStore) Audit() AuditRepository { return autoCommitAudit{s} }

// memUnitOfWork はロック取得済みの状態を直接操作するリポジトリ群。
type memUnitOfWork struct {
	st  *memState
	now func() time.Time
}

func (u memUnitOfWork) Users() UserRepository     { return memUserRepo(u) }
func (u memUnitOfWork) Servers() ServerRepository { return memServerRepo(u) }
func (u memUnitOfWork) Audit() AuditRepository    { return memAuditRepo(u) }

type memUserRepo memUnitOfWork

func (r memUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	u, ok := r.st.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r memUserRepo) Create(ctx context.Context, user *model.User) error {
	if _, exists := r.st.users[user.Username]; exists {
		return ErrDuplicate
	}
	r.st.userSeq++
	user.ID = r.st.userSeq
	user.CreatedAt = r.now().UTC()

	cp := *user
	r.st.users[user.Username] = &cp
	return nil
}

func (r memUserRepo) Count(ctx context.Context) (int, error) {
	return len(r.st.users), nil
}

type memServerRepo memUnitOfWork

func (r memServerRepo) List(ctx context.Context) ([]*model.Server, error) {
	ids := slices.Sorted(maps.Keys(r.st.servers))
	servers := make([]*model.Server, 0, len(ids))
	for _, id := range ids {
		cp := *r.st.servers[id]
		servers = append(servers, &cp)
	}
	return servers, nil
}

func (r memServerRepo) Create(ctx context.Context, server *model.Server) error {
	r.st.serverSeq++
	now := r.now().UTC()
	server.ID = r.st.serverSeq
	server.CreatedAt = now
	server.UpdatedAt = now

	cp := *server
	r.st.servers[server.ID] = &cp
	return nil
}

func (r memServerRepo) Delete(ctx context.Context, id int64) (*model.Server, error) {
	s, ok := r.st.servers[id]
	if !ok {
		return nil, nil
	}
	delete(r.st.servers, id)
	cp := *s
	return &cp, nil
}

func (r memServerRepo) CountByType(ctx context.Context) (map[model.ServerType]int, error) {
	counts := make(map[model.ServerType]int)
	for _, s := range r.st.servers {
		counts[s.ServerType]++
	}
	return counts, nil
}

type memAuditRepo memUnitOfWork

func (r memAuditRepo) Append(ctx context.Context, record *model.AuditRecord) error {
	if _, exists := r.st.auditIndex[record.ID]; exists {
		return ErrDuplicate
	}
	cp := *record
	r.st.auditLog = append(r.st.auditLog, &cp)
	r.st.auditIndex[record.ID] = struct{}{}
	return nil
}

func (r memAuditRepo) Recent(ctx context.Context, limit int) ([]*model.AuditRecord, error) {
	sorted := slices.Clone(r.st.auditLog)
	slices.SortFunc(sorted, func(a, b *model.AuditRecord) int {
		if c := b.OccurredAt.Compare(a.OccurredAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	records := make([]*model.AuditRecord, 0, len(sorted))
	for _, rec := range sorted {
		cp := *rec
		records = append(records, &cp)
	}
	return records, nil
}

func (r memAuditRepo) Count(ctx context.Context) (int, error) {
	return len(r.st.auditLog), nil
}

// autoCommitUsers はStoreから直接使うユーザーリポジトリ。
type autoCommitUsers struct{ s *MemoryStore }

func (a autoCommitUsers) FindByUsername(ctx context.Context, username string) (user *model.User, err error) {
	err = a.s.read(func(uow UnitOfWork) error {
		user, err = uow.Users().FindByUsername(ctx, username)
		return err
	})
	return user, err
}

func (a autoCommitUsers) Create(ctx context.Context, user *model.User) error {
	return a.s.WithinTx(ctx, func(uow UnitOfWork) error {
		return uow.Users().Create(ctx, user)
	})
}

func (a autoCommitUsers) Count(ctx context.Context) (n int, err error) {
	err = a.s.read(func(uow UnitOfWork) error {
		n, err = uow.Users().Count(ctx)
		return err
	})
	return n, err
}

// autoCommitServers はStoreから直接使うサーバーリポジトリ。
type autoCommitServers struct{ s *MemoryStore }

func (a autoCommitServers) List(ctx context.Context) (servers []*model.Server, err error) {
	err = a.s.read(func(uow UnitOfWork) error {
		servers, err = uow.Servers().List(ctx)
		return err
	})
	return servers, err
}

func (a autoCommitServers) Create(ctx context.Context, server *model.Server) error {
	return a.s.WithinTx(ctx, func(uow UnitOfWork) error {
		return uow.Servers().Create(ctx, server)
	})
}

func (a autoCommitServers) Delete(ctx context.Context, id int64) (deleted *model.Server, err error) {
	err = a.s.WithinTx(ctx, func(uow UnitOfWork) error {
		deleted, err = uow.Servers().Delete(ctx, id)
		return err
	})
	return deleted, err
}

func (a autoCommitServers) CountByType(ctx context.Context) (counts map[model.ServerType]int, err error) {
	err = a.s.read(func(uow UnitOfWork) error {
		counts, err = uow.Servers().CountByType(ctx)
		return err
	})
	return counts, err
}

// autoCommitAudit はStoreから直接使う監査ログリポジトリ。
type autoCommitAudit struct{ s *MemoryStore }

func (a autoCommitAudit) Append(ctx context.Context, record *model.AuditRecord) error {
	return a.s.WithinTx(ctx, func(uow UnitOfWork) error {
		return uow.Audit().Append(ctx, record)
	})
}

func (a autoCommitAudit) Recent(ctx context.Context, limit int) (records []*model.AuditRecord, err error) {
	err = a.s.read(func(uow UnitOfWork) error {
		records, err = uow.Audit().Recent(ctx, limit)
		return err
	})
	return records, err
}

func (a autoCommitAudit) Count(ctx context.Context) (n int, err error) {
	err = a.s.read(func(uow UnitOfWork) error {
		n, err = uow.Audit().Count(ctx)
		return err
	})
	return n, err
}
