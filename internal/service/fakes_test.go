package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/rentnest/internal/domain"
)

// fakeStore backs the in-memory repository and transactor fakes. mu guards
// the maps; txMu serializes whole transactions the way row locks do in
// Postgres, so the concurrency tests exercise the same winner/loser
// ordering. Repositories may be called from inside a transaction, which is
// why the two locks are separate.
type fakeStore struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	users map[string]*domain.User
	props map[string]*domain.Property
	apps  map[string]*domain.Application
	seq   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*domain.User),
		props: make(map[string]*domain.Property),
		apps:  make(map[string]*domain.Application),
	}
}

func (s *fakeStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *fakeStore) addUser(id, name string, role domain.Role) *domain.User {
	u := &domain.User{ID: id, Name: name, Email: id + "@example.com", Role: role}
	s.users[id] = u
	return u
}

func (s *fakeStore) addProperty(id, ownerID string) *domain.Property {
	p := &domain.Property{
		ID:          id,
		OwnerID:     ownerID,
		Title:       "Property " + id,
		IsAvailable: true,
		IsActive:    true,
	}
	s.props[id] = p
	return p
}

func (s *fakeStore) addApplication(id, tenantID, propertyID string, appliedAt time.Time) *domain.Application {
	p := s.props[propertyID]
	a := &domain.Application{
		ID:              id,
		TenantID:        tenantID,
		PropertyID:      propertyID,
		OwnerID:         p.OwnerID,
		Status:          domain.StatusPending,
		ApplicationDate: appliedAt,
		IsActive:        true,
	}
	s.apps[id] = a
	return a
}

func copyApp(a *domain.Application) *domain.Application {
	cp := *a
	return &cp
}

func copyProp(p *domain.Property) *domain.Property {
	cp := *p
	return &cp
}

// --- user repository ---

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return domain.Duplicatef("email already registered")
		}
	}
	if u.ID == "" {
		u.ID = r.s.nextID("user")
	}
	r.s.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.NotFoundf("user %s not found", id)
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.NotFoundf("user with email %s not found", email)
}

func (r *fakeUserRepo) Update(ctx context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return domain.NotFoundf("user %s not found", u.ID)
	}
	r.s.users[u.ID] = u
	return nil
}

// --- property repository ---

type fakePropertyRepo struct{ s *fakeStore }

func (r *fakePropertyRepo) Create(ctx context.Context, p *domain.Property) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == "" {
		p.ID = r.s.nextID("prop")
	}
	r.s.props[p.ID] = copyProp(p)
	return nil
}

func (r *fakePropertyRepo) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.props[id]
	if !ok {
		return nil, domain.NotFoundf("property %s not found", id)
	}
	return copyProp(p), nil
}

func (r *fakePropertyRepo) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Property, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Property
	for _, p := range r.s.props {
		if p.OwnerID == ownerID && p.IsActive {
			out = append(out, copyProp(p))
		}
	}
	return out, nil
}

func (r *fakePropertyRepo) List(ctx context.Context, f domain.PropertyFilter) ([]*domain.Property, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Property
	for _, p := range r.s.props {
		if !p.IsActive {
			continue
		}
		if f.City != "" && p.City != f.City {
			continue
		}
		if f.MaxRent > 0 && p.MonthlyRent > f.MaxRent {
			continue
		}
		if f.AvailableOnly && !p.IsAvailable {
			continue
		}
		out = append(out, copyProp(p))
	}
	return out, nil
}

func (r *fakePropertyRepo) Update(ctx context.Context, p *domain.Property) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.props[p.ID]; !ok {
		return domain.NotFoundf("property %s not found", p.ID)
	}
	r.s.props[p.ID] = copyProp(p)
	return nil
}

func (r *fakePropertyRepo) Archive(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.props[id]
	if !ok {
		return domain.NotFoundf("property %s not found", id)
	}
	p.IsActive = false
	return nil
}

// --- application repository ---

type fakeAppRepo struct{ s *fakeStore }

func (r *fakeAppRepo) Create(ctx context.Context, a *domain.Application) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.apps {
		if existing.TenantID == a.TenantID && existing.PropertyID == a.PropertyID && existing.IsActive {
			return domain.Duplicatef("you have already applied for this property")
		}
	}
	if a.ID == "" {
		a.ID = r.s.nextID("app")
	}
	r.s.apps[a.ID] = copyApp(a)
	return nil
}

func (r *fakeAppRepo) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.apps[id]
	if !ok {
		return nil, domain.NotFoundf("application %s not found", id)
	}
	return copyApp(a), nil
}

func (r *fakeAppRepo) Update(ctx context.Context, a *domain.Application) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.apps[a.ID]; !ok {
		return domain.NotFoundf("application %s not found", a.ID)
	}
	r.s.apps[a.ID] = copyApp(a)
	return nil
}

func (r *fakeAppRepo) matching(keep func(*domain.Application) bool, f domain.ApplicationFilter) []*domain.Application {
	var out []*domain.Application
	for _, a := range r.s.apps {
		if !a.IsActive || !keep(a) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, copyApp(a))
	}
	return out
}

func (r *fakeAppRepo) ListByTenant(ctx context.Context, tenantID string, f domain.ApplicationFilter) ([]*domain.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.matching(func(a *domain.Application) bool { return a.TenantID == tenantID }, f), nil
}

func (r *fakeAppRepo) ListByOwner(ctx context.Context, ownerID string, f domain.ApplicationFilter) ([]*domain.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.matching(func(a *domain.Application) bool { return a.OwnerID == ownerID }, f), nil
}

func (r *fakeAppRepo) ListByProperty(ctx context.Context, propertyID string, f domain.ApplicationFilter) ([]*domain.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.matching(func(a *domain.Application) bool { return a.PropertyID == propertyID }, f), nil
}

func (r *fakeAppRepo) FindActive(ctx context.Context, tenantID, propertyID string) (*domain.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.apps {
		if a.TenantID == tenantID && a.PropertyID == propertyID && a.IsActive {
			return copyApp(a), nil
		}
	}
	return nil, domain.NotFoundf("no active application for tenant %s on property %s", tenantID, propertyID)
}

func (r *fakeAppRepo) ListApprovedActive(ctx context.Context) ([]*domain.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.matching(func(a *domain.Application) bool { return a.Status == domain.StatusApproved }, domain.ApplicationFilter{}), nil
}

func (r *fakeAppRepo) CountPendingSiblings(ctx context.Context, propertyID, excludeID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, a := range r.s.apps {
		if a.PropertyID == propertyID && a.ID != excludeID && a.IsActive && a.Status == domain.StatusPending {
			count++
		}
	}
	return count, nil
}

func (r *fakeAppRepo) ExpireStale(ctx context.Context, cutoff time.Time, response string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var expired int64
	for _, a := range r.s.apps {
		if a.Status == domain.StatusPending && a.IsActive && a.ApplicationDate.Before(cutoff) {
			a.Status = domain.StatusExpired
			resp := response
			a.OwnerResponse = &resp
			decided := at
			a.DecisionDate = &decided
			expired++
		}
	}
	return expired, nil
}

func (r *fakeAppRepo) CountByStatusForTenant(ctx context.Context, tenantID string) (domain.StatusCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := domain.StatusCounts{}
	for _, a := range r.s.apps {
		if a.TenantID == tenantID && a.IsActive {
			counts[a.Status]++
		}
	}
	return counts, nil
}

func (r *fakeAppRepo) CountByStatusForOwner(ctx context.Context, ownerID string) (domain.StatusCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := domain.StatusCounts{}
	for _, a := range r.s.apps {
		if a.OwnerID == ownerID && a.IsActive {
			counts[a.Status]++
		}
	}
	return counts, nil
}

// --- transactor ---

// fakeTransactor serializes transactions on txMu. Writes apply immediately;
// tests only drive transactions that fail before their first write, matching
// what rollback would produce.
type fakeTransactor struct{ s *fakeStore }

func (t *fakeTransactor) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.AllocationTx) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()
	return fn(ctx, &fakeTx{s: t.s})
}

type fakeTx struct{ s *fakeStore }

func (t *fakeTx) ApplicationForUpdate(ctx context.Context, id string) (*domain.Application, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	a, ok := t.s.apps[id]
	if !ok {
		return nil, domain.NotFoundf("application %s not found", id)
	}
	return copyApp(a), nil
}

func (t *fakeTx) SaveApplication(ctx context.Context, a *domain.Application) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.apps[a.ID] = copyApp(a)
	return nil
}

func (t *fakeTx) MarkPropertyRented(ctx context.Context, propertyID, tenantID string, at time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.s.props[propertyID]
	if !ok {
		return domain.NotFoundf("property %s not found", propertyID)
	}
	p.IsAvailable = false
	tenant := tenantID
	p.CurrentTenantID = &tenant
	rented := at
	p.RentedDate = &rented
	return nil
}

func (t *fakeTx) PendingSiblings(ctx context.Context, propertyID, excludeID string) ([]*domain.Application, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []*domain.Application
	for _, a := range t.s.apps {
		if a.PropertyID == propertyID && a.ID != excludeID && a.IsActive && a.Status == domain.StatusPending {
			out = append(out, copyApp(a))
		}
	}
	return out, nil
}

func (t *fakeTx) RejectPendingSiblings(ctx context.Context, propertyID, excludeID, response string, at time.Time) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var rejected int64
	for _, a := range t.s.apps {
		if a.PropertyID == propertyID && a.ID != excludeID && a.IsActive && a.Status == domain.StatusPending {
			a.Status = domain.StatusRejected
			resp := response
			a.OwnerResponse = &resp
			decided := at
			a.DecisionDate = &decided
			a.AutoRejected = true
			rejected++
		}
	}
	return rejected, nil
}

// --- notifier ---

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *fakeNotifier) Notify(ctx context.Context, ev domain.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *fakeNotifier) byType(t domain.EventType) []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Event
	for _, ev := range n.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
