package api

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/trogers1052/stock-run-tracker/internal/database"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

// MockStore implements Store in memory
type MockStore struct {
	mu      sync.Mutex
	users   map[int64]*models.User
	tokens  map[string]int64
	stocks  map[int64]*models.Stock
	bases   map[int64]*models.StockBase
	links   map[int64][]int64 // stock id -> base ids
	nextID  int64
	pingErr error

	TokenLookups int
}

func NewMockStore() *MockStore {
	return &MockStore{
		users:  make(map[int64]*models.User),
		tokens: make(map[string]int64),
		stocks: make(map[int64]*models.Stock),
		bases:  make(map[int64]*models.StockBase),
		links:  make(map[int64][]int64),
		nextID: 1,
	}
}

func (m *MockStore) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *MockStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("failed to create user: %w", database.ErrDuplicateEmail)
		}
	}
	u.ID = m.id()
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *MockStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, database.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, database.ErrNotFound)
}

func (m *MockStore) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.users {
		if id != u.ID && existing.Email == u.Email {
			return fmt.Errorf("failed to update user: %w", database.ErrDuplicateEmail)
		}
	}
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *MockStore) GetOrCreateToken(ctx context.Context, userID int64) (*models.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, id := range m.tokens {
		if id == userID {
			return &models.AuthToken{Key: key, UserID: userID}, nil
		}
	}
	key, err := models.GenerateTokenKey()
	if err != nil {
		return nil, err
	}
	m.tokens[key] = userID
	return &models.AuthToken{Key: key, UserID: userID}, nil
}

func (m *MockStore) GetUserByToken(ctx context.Context, key string) (*models.User, error) {
	m.mu.Lock()
	m.TokenLookups++
	userID, ok := m.tokens[key]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("token: %w", database.ErrNotFound)
	}
	return m.GetUserByID(ctx, userID)
}

func (m *MockStore) loadBases(stockID int64) []*models.StockBase {
	ids := append([]int64(nil), m.links[stockID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	bases := []*models.StockBase{}
	for _, id := range ids {
		copied := *m.bases[id]
		bases = append(bases, &copied)
	}
	return bases
}

func (m *MockStore) ListStocks(ctx context.Context, userID int64) ([]*models.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stocks := []*models.Stock{}
	for _, s := range m.stocks {
		if s.UserID == userID {
			copied := *s
			copied.Bases = m.loadBases(s.ID)
			stocks = append(stocks, &copied)
		}
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].ID > stocks[j].ID })
	return stocks, nil
}

func (m *MockStore) GetStock(ctx context.Context, userID, id int64) (*models.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stocks[id]
	if !ok || s.UserID != userID {
		return nil, fmt.Errorf("stock %d: %w", id, database.ErrNotFound)
	}
	copied := *s
	copied.Bases = m.loadBases(id)
	return &copied, nil
}

func sameBase(a, b *models.StockBase) bool {
	return a.UserID == b.UserID &&
		a.Ticker == b.Ticker &&
		a.BaseCount == b.BaseCount &&
		equalPtr(a.BaseFailure, b.BaseFailure) &&
		a.BoDate.Equal(b.BoDate) &&
		equalPtr(a.VolBo, b.VolBo) &&
		equalPtr(a.Vol20, b.Vol20) &&
		a.BoVolRatio.Valid == b.BoVolRatio.Valid && a.BoVolRatio.Decimal.Equal(b.BoVolRatio.Decimal) &&
		a.PricePercentRange.Valid == b.PricePercentRange.Valid && a.PricePercentRange.Decimal.Equal(b.PricePercentRange.Decimal) &&
		equalPtr(a.BaseLength, b.BaseLength) &&
		a.Sales0Qtr.Valid == b.Sales0Qtr.Valid && a.Sales0Qtr.Decimal.Equal(b.Sales0Qtr.Decimal)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *MockStore) link(stockID, userID int64, bases []*models.StockBase) {
	for _, b := range bases {
		b.UserID = userID
		var match *models.StockBase
		for _, existing := range m.bases {
			if sameBase(existing, b) && (match == nil || existing.ID < match.ID) {
				match = existing
			}
		}
		if match == nil {
			b.ID = m.id()
			stored := *b
			m.bases[b.ID] = &stored
			match = &stored
		}
		linked := false
		for _, id := range m.links[stockID] {
			linked = linked || id == match.ID
		}
		if !linked {
			m.links[stockID] = append(m.links[stockID], match.ID)
		}
	}
}

func (m *MockStore) CreateStock(ctx context.Context, s *models.Stock, bases []*models.StockBase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[s.UserID]; !ok {
		return fmt.Errorf("owner %d: %w", s.UserID, database.ErrNotFound)
	}
	s.ID = m.id()
	stored := *s
	stored.Bases = nil
	m.stocks[s.ID] = &stored
	m.link(s.ID, s.UserID, bases)
	s.Bases = m.loadBases(s.ID)
	return nil
}

func (m *MockStore) ModifyStock(ctx context.Context, userID, id int64, change database.StockChange) (*models.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.stocks[id]
	if !ok || existing.UserID != userID {
		return nil, fmt.Errorf("stock %d: %w", id, database.ErrNotFound)
	}
	s := *existing
	s.Bases = m.loadBases(id)

	bases, replace, err := change(&s)
	if err != nil {
		return nil, err
	}
	s.ID, s.UserID = id, userID
	stored := s
	stored.Bases = nil
	m.stocks[id] = &stored
	if replace {
		delete(m.links, id)
		m.link(id, userID, bases)
	}
	s.Bases = m.loadBases(id)
	return &s, nil
}

func (m *MockStore) DeleteStock(ctx context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stocks[id]
	if !ok || s.UserID != userID {
		return fmt.Errorf("stock %d: %w", id, database.ErrNotFound)
	}
	for _, b := range m.bases {
		if b.StockReferenceID != nil && *b.StockReferenceID == id {
			return fmt.Errorf("failed to delete stock %d: %w", id, database.ErrProtected)
		}
	}
	delete(m.stocks, id)
	delete(m.links, id)
	return nil
}

func (m *MockStore) ListStockBases(ctx context.Context, userID int64) ([]*models.StockBase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bases := []*models.StockBase{}
	for _, b := range m.bases {
		if b.UserID == userID {
			copied := *b
			bases = append(bases, &copied)
		}
	}
	sort.Slice(bases, func(i, j int) bool {
		if bases[i].Ticker != bases[j].Ticker {
			return bases[i].Ticker > bases[j].Ticker
		}
		return bases[i].ID > bases[j].ID
	})
	return bases, nil
}

func (m *MockStore) GetStockBase(ctx context.Context, userID, id int64) (*models.StockBase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bases[id]
	if !ok || b.UserID != userID {
		return nil, fmt.Errorf("stock base %d: %w", id, database.ErrNotFound)
	}
	copied := *b
	return &copied, nil
}

func (m *MockStore) ModifyStockBase(ctx context.Context, userID, id int64, change func(b *models.StockBase) error) (*models.StockBase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.bases[id]
	if !ok || existing.UserID != userID {
		return nil, fmt.Errorf("stock base %d: %w", id, database.ErrNotFound)
	}
	b := *existing
	if err := change(&b); err != nil {
		return nil, err
	}
	b.ID, b.UserID = id, userID
	b.StockReferenceID = existing.StockReferenceID
	stored := b
	m.bases[id] = &stored
	return &b, nil
}

func (m *MockStore) DeleteStockBase(ctx context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bases[id]
	if !ok || b.UserID != userID {
		return fmt.Errorf("stock base %d: %w", id, database.ErrNotFound)
	}
	delete(m.bases, id)
	for stockID, ids := range m.links {
		kept := ids[:0]
		for _, linked := range ids {
			if linked != id {
				kept = append(kept, linked)
			}
		}
		m.links[stockID] = kept
	}
	return nil
}

// addBase stores a base directly, as the loader would
func (m *MockStore) addBase(b *models.StockBase) *models.StockBase {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.id()
	stored := *b
	m.bases[b.ID] = &stored
	return b
}

// removeUser drops a user and its tokens the way deleteuser does
func (m *MockStore) removeUser(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	for key, userID := range m.tokens {
		if userID == id {
			delete(m.tokens, key)
		}
	}
}

// MockEvents records published events
type MockEvents struct {
	mu     sync.Mutex
	Events []string
}

func (e *MockEvents) record(event string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Events = append(e.Events, event)
	return nil
}

func (e *MockEvents) PublishStockRunCreated(ctx context.Context, stock *models.Stock) error {
	return e.record(models.EventStockRunCreated)
}

func (e *MockEvents) PublishStockRunUpdated(ctx context.Context, stock *models.Stock) error {
	return e.record(models.EventStockRunUpdated)
}

func (e *MockEvents) PublishStockRunDeleted(ctx context.Context, userID, stockID int64) error {
	return e.record(models.EventStockRunDeleted)
}

// MockTokenCache is a map backed token cache
type MockTokenCache struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMockTokenCache() *MockTokenCache {
	return &MockTokenCache{users: make(map[string]*models.User)}
}

func (c *MockTokenCache) Get(ctx context.Context, key string) (*models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[key]
	if !ok {
		return nil, fmt.Errorf("miss")
	}
	copied := *u
	return &copied, nil
}

func (c *MockTokenCache) Set(ctx context.Context, key string, u *models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *u
	copied.Password = ""
	c.users[key] = &copied
	return nil
}

func (c *MockTokenCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, key)
	return nil
}

func (c *MockTokenCache) DeleteUser(ctx context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, u := range c.users {
		if u.ID == userID {
			delete(c.users, key)
		}
	}
	return nil
}
