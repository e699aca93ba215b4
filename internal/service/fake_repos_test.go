package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
)

// memSubscriptionRepo is an in-memory domain.SubscriptionRepository with
// the same predicate and write semantics as the Mongo implementation.
type memSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscription
	seq  int

	queryErr    error
	writeErrs   map[string]error
	beforeWrite func(id string)
	blockWrites bool
	onQuery     func(ctx context.Context) error
	writeCalls  int
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{subs: map[string]*domain.Subscription{}, writeErrs: map[string]error{}}
}

func (m *memSubscriptionRepo) add(id string, status domain.SubscriptionStatus, end time.Time) *domain.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &domain.Subscription{
		ID:         id,
		CustomerID: "cust-" + id,
		PackageID:  "pkg_home_20",
		BranchID:   "branch-1",
		StartDate:  end.AddDate(0, -1, 0),
		EndDate:    end,
		Status:     status,
	}
	m.subs[id] = sub
	cp := *sub
	return &cp
}

func (m *memSubscriptionRepo) status(id string) domain.SubscriptionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		return s.Status
	}
	return ""
}

func (m *memSubscriptionRepo) snapshot() map[string]domain.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.Subscription, len(m.subs))
	for id, s := range m.subs {
		out[id] = *s
	}
	return out
}

func (m *memSubscriptionRepo) setStatusDirect(id string, status domain.SubscriptionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		s.Status = status
	}
}

func (m *memSubscriptionRepo) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

func (m *memSubscriptionRepo) Create(_ context.Context, sub *domain.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if sub.ID == "" {
		sub.ID = "sub-" + strconv.Itoa(m.seq)
	}
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) GetByID(_ context.Context, id string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) GetByCustomerID(_ context.Context, customerID string) ([]*domain.Subscription, error) {
	return m.filter(func(s *domain.Subscription) bool { return s.CustomerID == customerID }), nil
}

func (m *memSubscriptionRepo) GetCurrentByCustomerID(ctx context.Context, customerID string) (*domain.Subscription, error) {
	subs := m.filter(func(s *domain.Subscription) bool {
		return s.CustomerID == customerID && s.Status != domain.StatusExpired
	})
	if len(subs) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].StartDate.After(subs[j].StartDate) })
	return subs[0], nil
}

func (m *memSubscriptionRepo) query(ctx context.Context, keep func(s *domain.Subscription) bool) ([]*domain.Subscription, error) {
	if m.onQuery != nil {
		if err := m.onQuery(ctx); err != nil {
			return nil, err
		}
	}
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.filter(keep), nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func (m *memSubscriptionRepo) FindExpiringSoon(ctx context.Context, start, end time.Time) ([]*domain.Subscription, error) {
	return m.query(ctx, func(s *domain.Subscription) bool {
		return s.Status == domain.StatusActive && inRange(s.EndDate, start, end)
	})
}

func (m *memSubscriptionRepo) FindExpiringToday(ctx context.Context, start, end time.Time) ([]*domain.Subscription, error) {
	return m.query(ctx, func(s *domain.Subscription) bool {
		return (s.Status == domain.StatusActive || s.Status == domain.StatusPending) && inRange(s.EndDate, start, end)
	})
}

func (m *memSubscriptionRepo) FindOverdue(ctx context.Context, before time.Time) ([]*domain.Subscription, error) {
	return m.query(ctx, func(s *domain.Subscription) bool {
		return (s.Status == domain.StatusActive || s.Status == domain.StatusPending) && s.EndDate.Before(before)
	})
}

func (m *memSubscriptionRepo) MarkExpired(ctx context.Context, id string, guarded bool) (domain.WriteResult, error) {
	if !guarded {
		return m.write(ctx, id, func(s domain.SubscriptionStatus) bool { return s != domain.StatusExpired }, domain.StatusExpired)
	}
	return m.SetStatus(ctx, id, domain.ExpirableStatuses, domain.StatusExpired)
}

func (m *memSubscriptionRepo) SetStatus(ctx context.Context, id string, from []domain.SubscriptionStatus, to domain.SubscriptionStatus) (domain.WriteResult, error) {
	return m.write(ctx, id, func(s domain.SubscriptionStatus) bool {
		for _, f := range from {
			if f == s {
				return true
			}
		}
		return false
	}, to)
}

func (m *memSubscriptionRepo) write(ctx context.Context, id string, match func(domain.SubscriptionStatus) bool, to domain.SubscriptionStatus) (domain.WriteResult, error) {
	if m.beforeWrite != nil {
		m.beforeWrite(id)
	}
	if m.blockWrites {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++

	if err, ok := m.writeErrs[id]; ok {
		return 0, err
	}
	s, ok := m.subs[id]
	if !ok {
		return domain.WriteNotFound, nil
	}
	if match(s.Status) {
		s.Status = to
		return domain.WriteApplied, nil
	}
	if s.Status == to {
		return domain.WriteNoop, nil
	}
	return domain.WriteConflict, nil
}

func (m *memSubscriptionRepo) Renew(_ context.Context, id string, record domain.RenewalRecord) (domain.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return domain.WriteNotFound, nil
	}
	if !s.EndDate.Equal(record.PreviousEndDate) {
		return domain.WriteConflict, nil
	}
	s.EndDate = record.NewEndDate
	s.Status = domain.StatusActive
	s.RenewalHistory = append(s.RenewalHistory, record)
	return domain.WriteApplied, nil
}

func (m *memSubscriptionRepo) CountByStatus(_ context.Context, scope domain.Scope) (map[domain.SubscriptionStatus]int64, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	counts := map[domain.SubscriptionStatus]int64{}
	for _, st := range domain.AllSubscriptionStatuses {
		counts[st] = 0
	}
	for _, s := range m.filter(func(s *domain.Subscription) bool { return scope.Allows(s.BranchID) }) {
		counts[s.Status]++
	}
	return counts, nil
}

func (m *memSubscriptionRepo) filter(keep func(s *domain.Subscription) bool) []*domain.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range m.subs {
		if keep(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

type captureNotifier struct {
	mu      sync.Mutex
	notices []domain.ExpiringSoonNotice
	err     error
}

func (n *captureNotifier) NotifyExpiringSoon(_ context.Context, notices []domain.ExpiringSoonNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notices...)
	return n.err
}

type stubLock struct {
	held     bool
	released []string
}

func (l *stubLock) TryAcquire(_ context.Context, _ string, _ time.Duration) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *stubLock) Release(_ context.Context, owner string) error {
	l.held = false
	l.released = append(l.released, owner)
	return nil
}

type memReportStore struct {
	last *domain.ReconciliationReport
}

func (s *memReportStore) SaveLastReport(_ context.Context, r *domain.ReconciliationReport) error {
	cp := *r
	s.last = &cp
	return nil
}

func (s *memReportStore) GetLastReport(_ context.Context) (*domain.ReconciliationReport, error) {
	if s.last == nil {
		return nil, domain.ErrNotFound
	}
	return s.last, nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateSubscriptionStats(context.Context) error {
	c.calls++
	return nil
}

var errBoom = errors.New("boom")
