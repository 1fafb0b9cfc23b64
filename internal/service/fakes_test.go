package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/and161185/campus-vote/internal/abac"
	pkgcrypto "github.com/and161185/campus-vote/internal/crypto"
	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/keyprovider"
	"github.com/and161185/campus-vote/internal/limiter"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/and161185/campus-vote/internal/qrsign"
	"github.com/and161185/campus-vote/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type ueKey struct {
	user     uuid.UUID
	election int64
}

// memStore implements every repository with the same atomicity as the SQL.
type memStore struct {
	mu sync.Mutex

	profiles   map[uuid.UUID]model.Profile
	tokens     map[uuid.UUID]*model.VoteToken
	tokenByUE  map[ueKey]uuid.UUID
	votes      []model.EncryptedVote
	elections  map[int64]bool
	positions  map[int64]model.Position
	candidates map[int64]model.Candidate
	usage      map[string]model.QRUsage
	links      map[string]*model.QRLink
	audits     []model.AuditEvent
	auditErr   error
}

var (
	_ repository.ProfileRepository = (*memStore)(nil)
	_ repository.TokenRepository   = (*memStore)(nil)
	_ repository.VoteRepository    = (*memStore)(nil)
	_ repository.CatalogRepository = (*memStore)(nil)
	_ repository.QRRepository      = (*memStore)(nil)
	_ repository.AuditRepository   = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		profiles:   map[uuid.UUID]model.Profile{},
		tokens:     map[uuid.UUID]*model.VoteToken{},
		tokenByUE:  map[ueKey]uuid.UUID{},
		elections:  map[int64]bool{},
		positions:  map[int64]model.Position{},
		candidates: map[int64]model.Candidate{},
		usage:      map[string]model.QRUsage{},
		links:      map[string]*model.QRLink{},
	}
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) Upsert(_ context.Context, p *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UpdatedAt = time.Now()
	m.profiles[p.UserID] = *p
	return nil
}

func (m *memStore) GetOrCreate(_ context.Context, t model.VoteToken) (*model.VoteToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := ueKey{t.UserID, t.ElectionID}
	if id, ok := m.tokenByUE[k]; ok {
		c := *m.tokens[id]
		return &c, nil
	}
	t.CreatedAt = time.Now()
	m.tokens[t.Token] = &t
	m.tokenByUE[k] = t.Token
	c := t
	return &c, nil
}

func (m *memStore) GetForUser(_ context.Context, token, userID uuid.UUID) (*model.VoteToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok || t.UserID != userID {
		return nil, errs.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (m *memStore) RecordCast(_ context.Context, v *model.EncryptedVote, c model.Consumption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[c.Token]
	if !ok || t.UserID != c.UserID || t.Used {
		return errs.ErrConflict
	}
	if c.QRHash != "" {
		if _, dup := m.usage[c.QRHash]; dup {
			return errs.ErrConflict
		}
	}

	t.Used = true
	if c.QRHash != "" {
		uid, cid := c.UserID, c.CandidateID
		m.usage[c.QRHash] = model.QRUsage{TokenHash: c.QRHash, UserID: &uid, CandidateID: &cid, UsedAt: time.Now()}
		if l, ok := m.links[c.QRHash]; ok {
			l.Used = true
		}
	}
	v.ID = int64(len(m.votes) + 1)
	v.CreatedAt = time.Now()
	m.votes = append(m.votes, *v)
	return nil
}

func (m *memStore) ListByElection(_ context.Context, electionID int64) ([]model.EncryptedVote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.EncryptedVote
	for _, v := range m.votes {
		if v.ElectionID == electionID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memStore) ElectionExists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elections[id], nil
}

func (m *memStore) GetPosition(_ context.Context, positionID, electionID int64) (*model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[positionID]
	if !ok || p.ElectionID != electionID {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) GetCandidate(_ context.Context, candidateID, positionID int64) (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[candidateID]
	if !ok || c.PositionID != positionID {
		return nil, errs.ErrNotFound
	}
	return &c, nil
}

func (m *memStore) GetCandidateByID(_ context.Context, candidateID int64) (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[candidateID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &c, nil
}

func (m *memStore) GetCandidateBySlug(_ context.Context, slug uuid.UUID) (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.candidates {
		if c.QRSlug == slug {
			c := c
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *memStore) CreateLink(_ context.Context, l *model.QRLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[l.TokenHash]; ok {
		return errs.ErrAlreadyExists
	}
	l.ID = int64(len(m.links) + 1)
	l.CreatedAt = time.Now()
	c := *l
	m.links[l.TokenHash] = &c
	return nil
}

func (m *memStore) GetLinkByHash(_ context.Context, hash string) (*model.QRLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[hash]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *l
	return &c, nil
}

func (m *memStore) IsUsed(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.usage[hash]
	return ok, nil
}

func (m *memStore) RecordUsage(_ context.Context, u model.QRUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usage[u.TokenHash]; ok {
		return errs.ErrConflict
	}
	u.UsedAt = time.Now()
	m.usage[u.TokenHash] = u
	if l, ok := m.links[u.TokenHash]; ok {
		l.Used = true
	}
	return nil
}

func (m *memStore) Append(_ context.Context, e model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auditErr != nil {
		return m.auditErr
	}
	m.audits = append(m.audits, e)
	return nil
}

func (m *memStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.audits))
	for _, e := range m.audits {
		out = append(out, e.Action)
	}
	return out
}

func (m *memStore) token(id uuid.UUID) model.VoteToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.tokens[id]
}

type fakeLimiter struct {
	allowOK      bool
	failBlocked  bool
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	return l.allowOK, 0, nil
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return nil
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, nil
}

type countingSink struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *countingSink) Inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = map[string]int{}
	}
	c.n[name]++
}

func (c *countingSink) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[name]
}

// fixture is a fully wired set of services over memStore.
type fixture struct {
	store   *memStore
	engine  *abac.Engine
	crypto  *pkgcrypto.Service
	signer  *qrsign.Signer
	sink    *countingSink
	lim     *fakeLimiter
	tokens  *TokenServiceImpl
	cast    *CastServiceImpl
	qr      *QRServiceImpl
	profile *ProfileServiceImpl

	electionID int64
	positionID int64
	candidate  model.Candidate
	voter      uuid.UUID
	admin      uuid.UUID
}

func newFixture(t *testing.T, purposes ...keyprovider.Purpose) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := newMemStore()

	keys := keyprovider.NewLocal(keyprovider.LocalConfig{Dir: t.TempDir()})
	for _, p := range purposes {
		_, err := keys.GenerateKeypair(context.Background(), p, 2048)
		require.NoError(t, err)
	}
	cs := pkgcrypto.NewService(keys)
	signer, err := qrsign.NewSigner([]byte("qr-secret"), 0)
	require.NoError(t, err)

	sink := &countingSink{}
	engine := abac.NewEngine(abac.NewLRUCache(128, time.Minute), log, abac.WithStats(nopStats{}))
	lim := &fakeLimiter{allowOK: true}

	f := &fixture{
		store: store, engine: engine, crypto: cs, signer: signer, sink: sink, lim: lim,
		electionID: 1, positionID: 10,
		voter: uuid.Must(uuid.NewV4()),
		admin: uuid.Must(uuid.NewV4()),
	}
	f.candidate = model.Candidate{ID: 100, PositionID: 10, ElectionID: 1, Name: "Alice", QRSlug: uuid.Must(uuid.NewV4())}

	store.elections[1] = true
	store.positions[10] = model.Position{ID: 10, ElectionID: 1, Name: "President"}
	store.candidates[100] = f.candidate
	store.candidates[101] = model.Candidate{ID: 101, PositionID: 10, ElectionID: 1, Name: "Bob", QRSlug: uuid.Must(uuid.NewV4())}
	store.profiles[f.voter] = model.Profile{UserID: f.voter, Role: model.RoleStudent, Status: model.StatusActive,
		Attributes: map[string]any{"allowed_to_vote": true}}
	store.profiles[f.admin] = model.Profile{UserID: f.admin, Role: model.RoleAdmin, Status: model.StatusActive}

	f.tokens = NewTokenService(store, store, store, engine, store, sink, log)
	f.cast = NewCastService(CastDeps{
		Profiles: store, Tokens: store, Votes: store, Catalog: store, QR: store, Audit: store,
		Policy: engine, Crypto: cs, QRTokens: signer, Metrics: sink, Log: log,
	})
	f.qr = NewQRService(store, store, store, engine, signer, lim, store, sink, log)
	f.profile = NewProfileService(store, engine, store, log)
	return f
}

type nopStats struct{}

func (nopStats) CacheHit()  {}
func (nopStats) CacheMiss() {}
