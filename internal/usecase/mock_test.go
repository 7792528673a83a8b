//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/adapter"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
)

// =============================
// Adapters
// =============================

// ---- Mock PlatformClient ----

type MockPlatform struct {
	mu       sync.Mutex
	nextID   int
	Sent     []adapter.OutboundMessage
	Deleted  []int
	Approved [][2]int64

	SendFunc          func(ctx context.Context, msg adapter.OutboundMessage) (int, error)
	DeleteFunc        func(ctx context.Context, chatID int64, messageID int) error
	ApproveFunc       func(ctx context.Context, chatID, userID int64) error
	MemberCountFunc   func(ctx context.Context, chatID int64) (int, error)
	MemberStatusFunc  func(ctx context.Context, chatID, userID int64) (string, error)
	Self              adapter.BotIdentity
}

var _ adapter.PlatformClient = (*MockPlatform)(nil)

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{nextID: 100, Self: adapter.BotIdentity{ID: 999, Username: "tgms_bot"}}
}

func (m *MockPlatform) Send(ctx context.Context, msg adapter.OutboundMessage) (int, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.Sent = append(m.Sent, msg)
	return m.nextID, nil
}

func (m *MockPlatform) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, chatID, messageID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, messageID)
	return nil
}

func (m *MockPlatform) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	if m.ApproveFunc != nil {
		return m.ApproveFunc(ctx, chatID, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Approved = append(m.Approved, [2]int64{chatID, userID})
	return nil
}

func (m *MockPlatform) GetChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	if m.MemberCountFunc != nil {
		return m.MemberCountFunc(ctx, chatID)
	}
	return 42, nil
}

func (m *MockPlatform) GetChatMemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	if m.MemberStatusFunc != nil {
		return m.MemberStatusFunc(ctx, chatID, userID)
	}
	return model.MemberStatusAdministrator, nil
}

func (m *MockPlatform) GetSelf(ctx context.Context) (adapter.BotIdentity, error) {
	return m.Self, nil
}

func (m *MockPlatform) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

func (m *MockPlatform) LastSent() adapter.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Sent[len(m.Sent)-1]
}

// =============================
// Repositories
// =============================

// ---- In-memory ManagedGroupRepository ----

type MockManagedGroupRepo struct {
	mu     sync.Mutex
	groups map[int64]*model.ManagedGroup

	ListActiveFunc        func(ctx context.Context, tx repository.Tx) ([]*model.ManagedGroup, error)
	IncrementFailuresFunc func(ctx context.Context, tx repository.Tx, groupID int64) (int, error)
	UpsertFunc            func(ctx context.Context, tx repository.Tx, g *model.ManagedGroup) error
}

var _ repository.ManagedGroupRepository = (*MockManagedGroupRepo)(nil)

func NewMockManagedGroupRepo(groups ...*model.ManagedGroup) *MockManagedGroupRepo {
	r := &MockManagedGroupRepo{groups: map[int64]*model.ManagedGroup{}}
	for _, g := range groups {
		r.groups[g.GroupID] = g
	}
	return r
}

func activeGroup(id int64) *model.ManagedGroup {
	return &model.ManagedGroup{GroupID: id, Title: "group", Phase: model.GroupPhaseGrowth, IsActive: true, FinalMessageAllowed: true}
}

func (r *MockManagedGroupRepo) Get(id int64) *model.ManagedGroup {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil
	}
	cp := *g
	return &cp
}

func (r *MockManagedGroupRepo) FindByID(ctx context.Context, tx repository.Tx, groupID int64) (*model.ManagedGroup, error) {
	if g := r.Get(groupID); g != nil {
		return g, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockManagedGroupRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.ManagedGroup, error) {
	if r.ListActiveFunc != nil {
		return r.ListActiveFunc(ctx, tx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ManagedGroup
	for _, g := range r.groups {
		if g.IsActive {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

func (r *MockManagedGroupRepo) Upsert(ctx context.Context, tx repository.Tx, g *model.ManagedGroup) error {
	if r.UpsertFunc != nil {
		return r.UpsertFunc(ctx, tx, g)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *g
	cp.IsActive = true
	cp.FailureCount = 0
	cp.DeactivationReason = ""
	if old, ok := r.groups[g.GroupID]; ok {
		cp.MemberCount = old.MemberCount
		if cp.Title == "" {
			cp.Title = old.Title
		}
	}
	r.groups[g.GroupID] = &cp
	return nil
}

func (r *MockManagedGroupRepo) update(groupID int64, fn func(g *model.ManagedGroup)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok {
		return domain.ErrNotFound
	}
	fn(g)
	return nil
}

func (r *MockManagedGroupRepo) UpdateMemberCount(ctx context.Context, tx repository.Tx, groupID int64, count int) error {
	return r.update(groupID, func(g *model.ManagedGroup) { g.MemberCount = count })
}

func (r *MockManagedGroupRepo) ResetFailures(ctx context.Context, tx repository.Tx, groupID int64) error {
	return r.update(groupID, func(g *model.ManagedGroup) { g.FailureCount = 0 })
}

func (r *MockManagedGroupRepo) IncrementFailures(ctx context.Context, tx repository.Tx, groupID int64) (int, error) {
	if r.IncrementFailuresFunc != nil {
		return r.IncrementFailuresFunc(ctx, tx, groupID)
	}
	var n int
	err := r.update(groupID, func(g *model.ManagedGroup) {
		g.FailureCount++
		n = g.FailureCount
	})
	return n, err
}

func (r *MockManagedGroupRepo) Deactivate(ctx context.Context, tx repository.Tx, groupID int64, reason string) error {
	return r.update(groupID, func(g *model.ManagedGroup) {
		g.IsActive = false
		g.DeactivationReason = reason
	})
}

// ---- In-memory NotificationSlotRepository ----

type slotKey struct {
	group     int64
	recipient string
}

type MockSlotRepo struct {
	mu    sync.Mutex
	slots map[slotKey]*model.NotificationSlot
	Now   func() time.Time

	ClaimFunc func(ctx context.Context, tx repository.Tx, groupID int64, recipient string, window time.Duration) (model.SlotClaim, error)
}

var _ repository.NotificationSlotRepository = (*MockSlotRepo)(nil)

func NewMockSlotRepo() *MockSlotRepo {
	return &MockSlotRepo{slots: map[slotKey]*model.NotificationSlot{}, Now: time.Now}
}

func (r *MockSlotRepo) Claim(ctx context.Context, tx repository.Tx, groupID int64, recipient string, window time.Duration) (model.SlotClaim, error) {
	if r.ClaimFunc != nil {
		return r.ClaimFunc(ctx, tx, groupID, recipient, window)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.Now()
	k := slotKey{groupID, recipient}
	s, ok := r.slots[k]
	if !ok {
		r.slots[k] = &model.NotificationSlot{GroupID: groupID, Recipient: recipient, ClaimedAt: now}
		return model.SlotClaim{Claimed: true}, nil
	}
	if now.Sub(s.ClaimedAt) < window {
		return model.SlotClaim{}, nil
	}
	s.ClaimedAt = now
	return model.SlotClaim{Claimed: true, PreviousMessageID: s.MessageID}, nil
}

func (r *MockSlotRepo) Save(ctx context.Context, tx repository.Tx, groupID int64, recipient string, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[slotKey{groupID, recipient}] = &model.NotificationSlot{
		GroupID: groupID, Recipient: recipient, MessageID: messageID, ClaimedAt: r.Now(),
	}
	return nil
}

func (r *MockSlotRepo) Find(ctx context.Context, tx repository.Tx, groupID int64, recipient string) (*model.NotificationSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[slotKey{groupID, recipient}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// ---- In-memory JoinRequestRepository ----

type joinKey struct {
	user, chat int64
	status     model.JoinRequestStatus
}

type MockJoinRequestRepo struct {
	mu   sync.Mutex
	rows map[joinKey]bool

	InsertFunc func(ctx context.Context, tx repository.Tx, userID, chatID int64) error
}

var _ repository.JoinRequestRepository = (*MockJoinRequestRepo)(nil)

func NewMockJoinRequestRepo() *MockJoinRequestRepo {
	return &MockJoinRequestRepo{rows: map[joinKey]bool{}}
}

func (r *MockJoinRequestRepo) Insert(ctx context.Context, tx repository.Tx, userID, chatID int64) error {
	if r.InsertFunc != nil {
		return r.InsertFunc(ctx, tx, userID, chatID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[joinKey{userID, chatID, model.JoinRequestPending}] = true
	return nil
}

func (r *MockJoinRequestRepo) UpdateStatus(ctx context.Context, tx repository.Tx, userID, chatID int64, status model.JoinRequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := joinKey{userID, chatID, model.JoinRequestPending}
	if !r.rows[pending] {
		return domain.ErrNotFound
	}
	target := joinKey{userID, chatID, status}
	if r.rows[target] {
		return domain.ErrAlreadyExists
	}
	delete(r.rows, pending)
	r.rows[target] = true
	return nil
}

func (r *MockJoinRequestRepo) Has(userID, chatID int64, status model.JoinRequestStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[joinKey{userID, chatID, status}]
}

// ---- In-memory TeleUserRepository ----

type MockTeleUserRepo struct {
	mu    sync.Mutex
	users map[int64]*model.TeleUser

	SetGroupFunc func(ctx context.Context, tx repository.Tx, u *model.TeleUser, groupID int64) error
}

var _ repository.TeleUserRepository = (*MockTeleUserRepo)(nil)

func NewMockTeleUserRepo() *MockTeleUserRepo {
	return &MockTeleUserRepo{users: map[int64]*model.TeleUser{}}
}

func (r *MockTeleUserRepo) EnsureExists(ctx context.Context, tx repository.Tx, u *model.TeleUser) error {
	if u == nil || u.ID == 0 {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		cp := *u
		r.users[u.ID] = &cp
	}
	return nil
}

func (r *MockTeleUserRepo) IsInManagedGroup(ctx context.Context, tx repository.Tx, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	return ok && u.GroupID != nil, nil
}

func (r *MockTeleUserRepo) SetGroup(ctx context.Context, tx repository.Tx, u *model.TeleUser, groupID int64) error {
	if r.SetGroupFunc != nil {
		return r.SetGroupFunc(ctx, tx, u, groupID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	gid := groupID
	cp.GroupID = &gid
	r.users[u.ID] = &cp
	return nil
}

func (r *MockTeleUserRepo) Get(id int64) *model.TeleUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

// ---- In-memory RecipientLinkRepository ----

type MockRecipientLinkRepo struct {
	mu    sync.Mutex
	links map[string]*model.RecipientLink

	AdvanceLinkIndexFunc  func(id int64, n int) (int, error)
	AdvanceImageIndexFunc func(id int64, n int) (int, error)
}

var _ repository.RecipientLinkRepository = (*MockRecipientLinkRepo)(nil)

func NewMockRecipientLinkRepo(links ...*model.RecipientLink) *MockRecipientLinkRepo {
	r := &MockRecipientLinkRepo{links: map[string]*model.RecipientLink{}}
	for _, l := range links {
		r.links[l.Username] = l
	}
	return r
}

func (r *MockRecipientLinkRepo) FindLatestByUsername(ctx context.Context, tx repository.Tx, username string) (*model.RecipientLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *MockRecipientLinkRepo) advance(id int64, n int, field func(l *model.RecipientLink) **int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.ID != id {
			continue
		}
		p := field(l)
		prev := -1
		if *p != nil {
			prev = **p
		}
		next := model.RotationIndex(prev+1, n)
		*p = &next
		return next, nil
	}
	return 0, domain.ErrNotFound
}

func (r *MockRecipientLinkRepo) AdvanceLinkIndex(ctx context.Context, tx repository.Tx, id int64, n int) (int, error) {
	if r.AdvanceLinkIndexFunc != nil {
		return r.AdvanceLinkIndexFunc(id, n)
	}
	return r.advance(id, n, func(l *model.RecipientLink) **int { return &l.LastUsedLinkIndex })
}

func (r *MockRecipientLinkRepo) AdvanceImageIndex(ctx context.Context, tx repository.Tx, id int64, n int) (int, error) {
	if r.AdvanceImageIndexFunc != nil {
		return r.AdvanceImageIndexFunc(id, n)
	}
	return r.advance(id, n, func(l *model.RecipientLink) **int { return &l.LastUsedImageIndex })
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func noSleep(context.Context, time.Duration) error { return nil }
