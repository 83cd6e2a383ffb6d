package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deliverydesk/deliverydesk/internal/cache"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func date(s string) time.Time {
	t, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func fixedClock(day string) Clock {
	t := date(day).Add(15 * time.Hour)
	return Clock{Now: func() time.Time { return t }, Location: time.UTC}
}

// memStore is an in-memory stand-in for the PostgreSQL repository.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	customers map[int64]*model.Customer
	orders    map[int64]*model.Order
	expenses  map[string]*model.DriverExpense
	users     map[string]*model.User
	audit     []model.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{
		customers: make(map[int64]*model.Customer),
		orders:    make(map[int64]*model.Order),
		expenses:  make(map[string]*model.DriverExpense),
		users:     make(map[string]*model.User),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) ListCustomers(ctx context.Context, f repository.CustomerFilter) ([]model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Customer{}
	for _, c := range m.customers {
		if len(f.Territories) > 0 && c.Territory != f.Territories[0] {
			continue
		}
		if f.DeliveryDay != "" && c.DeliveryDay != f.DeliveryDay {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, repository.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	c.Balance = decimal.Zero
	cp := *c
	m.customers[c.ID] = &cp
	return nil
}

func (m *memStore) CreateCustomers(ctx context.Context, cs []model.Customer) ([]int64, error) {
	ids := make([]int64, 0, len(cs))
	for i := range cs {
		c := cs[i]
		if err := m.CreateCustomer(ctx, &c); err != nil {
			return nil, err
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (m *memStore) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.customers[c.ID]
	if !ok {
		return repository.ErrCustomerNotFound
	}
	c.Balance = existing.Balance
	cp := *c
	m.customers[c.ID] = &cp
	return nil
}

func (m *memStore) DeleteCustomer(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[id]; !ok {
		return repository.ErrCustomerNotFound
	}
	for _, o := range m.orders {
		if o.CustomerID == id {
			return repository.ErrCustomerHasOrders
		}
	}
	delete(m.customers, id)
	return nil
}

func (m *memStore) ListTerritories(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, c := range m.customers {
		if !seen[c.Territory] {
			seen[c.Territory] = true
			out = append(out, c.Territory)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) ListOrders(ctx context.Context, f repository.OrderFilter) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Order{}
	for _, o := range m.orders {
		if f.StartDate != nil && o.DeliveryDate.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && o.DeliveryDate.After(*f.EndDate) {
			continue
		}
		if f.CustomerID != 0 && o.CustomerID != f.CustomerID {
			continue
		}
		if len(f.Statuses) > 0 && !contains(f.Statuses, string(o.Status)) {
			continue
		}
		if f.Territory != "" && m.customers[o.CustomerID].Territory != f.Territory {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (m *memStore) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) adjust(customerID int64, delta decimal.Decimal) error {
	c, ok := m.customers[customerID]
	if !ok {
		return repository.ErrCustomerNotFound
	}
	c.Balance = c.Balance.Add(delta)
	return nil
}

func (m *memStore) CreateOrder(ctx context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[o.CustomerID]
	if !ok {
		return repository.ErrCustomerNotFound
	}
	o.ID = m.id()
	o.CustomerName = c.Name
	_ = m.adjust(o.CustomerID, o.BalanceContribution())
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memStore) UpdateOrder(ctx context.Context, id int64, mutate func(*model.Order) error) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	after := *before
	if err := mutate(&after); err != nil {
		return nil, err
	}
	if _, ok := m.customers[after.CustomerID]; !ok {
		return nil, repository.ErrCustomerNotFound
	}
	_ = m.adjust(before.CustomerID, before.BalanceContribution().Neg())
	_ = m.adjust(after.CustomerID, after.BalanceContribution())
	after.CustomerName = m.customers[after.CustomerID].Name
	m.orders[id] = &after
	cp := after
	return &cp, nil
}

func (m *memStore) DeleteOrder(ctx context.Context, id int64) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	_ = m.adjust(o.CustomerID, o.BalanceContribution().Neg())
	delete(m.orders, id)
	return o, nil
}

func (m *memStore) GetDriverExpense(ctx context.Context, d time.Time) (*model.DriverExpense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[model.FormatDate(d)]
	if !ok {
		return nil, repository.ErrExpenseNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) UpsertDriverExpense(ctx context.Context, e *model.DriverExpense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.expenses[model.FormatDate(e.Date)] = &cp
	return nil
}

func (m *memStore) ListDriverExpenses(ctx context.Context, start, end time.Time) ([]model.DriverExpense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.DriverExpense{}
	for _, e := range m.expenses {
		if e.Date.Before(start) || e.Date.After(end) {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *memStore) CreateUser(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return repository.ErrUserExists
	}
	u.ID = m.id()
	cp := *u
	m.users[u.Username] = &cp
	return nil
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) ListAudit(ctx context.Context, f repository.AuditFilter) ([]model.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.AuditEntry{}
	for i := len(m.audit) - 1; i >= 0 && len(out) < f.Limit; i-- {
		if f.Entity != "" && m.audit[i].Entity != f.Entity {
			continue
		}
		out = append(out, m.audit[i])
	}
	return out, nil
}

// memCache stands in for Redis sessions and the report cache.
type memCache struct {
	mu         sync.Mutex
	generation int64
	reports    map[string][]byte
	sessions   map[string]model.Session
}

func newMemCache() *memCache {
	return &memCache{reports: map[string][]byte{}, sessions: map[string]model.Session{}}
}

func (c *memCache) ReportGeneration(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *memCache) BumpReportGeneration(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return nil
}

func (c *memCache) GetReport(ctx context.Context, gen int64, params string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.reports[reportCacheKey(gen, params)]
	return data, ok, nil
}

func (c *memCache) SetReport(ctx context.Context, gen int64, params string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[reportCacheKey(gen, params)] = data
	return nil
}

func reportCacheKey(gen int64, params string) string {
	return params + "#" + decimal.NewFromInt(gen).String()
}

func (c *memCache) SaveSession(ctx context.Context, s *model.Session, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ID] = *s
	return nil
}

func (c *memCache) GetSession(ctx context.Context, id string, ttl time.Duration) (*model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, cache.ErrSessionNotFound
	}
	return &s, nil
}

func (c *memCache) DeleteSession(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
	return nil
}

type fakeLimiter struct {
	allowed bool
}

func (l fakeLimiter) CheckLoginRateLimit(ctx context.Context, ip string, perMinute, burst int) (*cache.RateLimitResult, error) {
	if l.allowed {
		return &cache.RateLimitResult{Allowed: true}, nil
	}
	return &cache.RateLimitResult{Allowed: false, RetryAfter: 30 * time.Second}, nil
}

type emitted struct {
	entity, entityID, action, actor string
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) Emit(ctx context.Context, entity, entityID, action string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{entity: entity, entityID: entityID, action: action})
}

func (e *recordingEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.entity + "." + ev.action
	}
	return out
}
