// Package memstore is an in-process implementation of store.Store. It backs
// local development (DATABASE_URL=memory) and the test suites.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/store"
	"github.com/google/uuid"
)

type Store struct {
	mu            sync.RWMutex
	requests      map[string]model.Request
	guides        map[string]model.Guide
	users         map[string]model.User
	refreshTokens map[string]model.RefreshToken
	nextTokenID   int64
	now           func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		requests:      make(map[string]model.Request),
		guides:        make(map[string]model.Guide),
		users:         make(map[string]model.User),
		refreshTokens: make(map[string]model.RefreshToken),
		now:           time.Now,
	}
}

func cloneRequest(r model.Request) model.Request {
	r.Comments = append(model.Comments{}, r.Comments...)
	return r
}

func cloneGuide(g model.Guide) model.Guide {
	g.Tags = append(model.Tags{}, g.Tags...)
	if g.Document != nil {
		g.Document = append([]byte(nil), g.Document...)
	}
	return g
}

func (s *Store) CreateRequest(ctx context.Context, r *model.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ApplyDefaults(s.now())
	if _, exists := s.requests[r.ID]; exists {
		return store.ErrDuplicate
	}
	s.requests[r.ID] = cloneRequest(*r)
	return nil
}

// PutRequest stores a whole record, replacing any existing one. It is the
// last-writer-wins write the comment append exists to avoid.
func (s *Store) PutRequest(r model.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = cloneRequest(r)
}

func (s *Store) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneRequest(r)
	return &out, nil
}

func (s *Store) ListRequests(ctx context.Context, filter store.RequestFilter) ([]model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Request
	for _, r := range s.requests {
		if filter.Kind != "" && r.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		out = append(out, cloneRequest(r))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) UpdateRequest(ctx context.Context, id string, update model.RequestUpdate) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.Priority != nil {
		r.Priority = *update.Priority
	}
	if update.Status != nil {
		r.Status = *update.Status
	}
	r.UpdatedAt = s.now()
	s.requests[id] = r

	out := cloneRequest(r)
	return &out, nil
}

func (s *Store) AppendComment(ctx context.Context, id string, comment model.Comment) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.Comments = r.Comments.Append(comment)
	r.UpdatedAt = s.now()
	s.requests[id] = r

	out := cloneRequest(r)
	return &out, nil
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.requests, id)
	return nil
}

func (s *Store) CreateGuide(ctx context.Context, g *model.Guide) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if _, exists := s.guides[g.ID]; exists {
		return store.ErrDuplicate
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	if g.Tags == nil {
		g.Tags = model.Tags{}
	}
	s.guides[g.ID] = cloneGuide(*g)
	return nil
}

func (s *Store) GetGuide(ctx context.Context, id string) (*model.Guide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.guides[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneGuide(g)
	return &out, nil
}

func (s *Store) ListGuides(ctx context.Context, q model.GuideQuery) ([]model.GuideSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))
	var out []model.GuideSummary
	for _, g := range s.guides {
		if q.Tag != "" && !g.Tags.Contains(q.Tag) {
			continue
		}
		if search != "" && !guideMatches(g, search) {
			continue
		}
		out = append(out, cloneGuide(g).Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func guideMatches(g model.Guide, search string) bool {
	if strings.Contains(strings.ToLower(g.Title), search) ||
		strings.Contains(strings.ToLower(g.Body), search) ||
		strings.Contains(strings.ToLower(string(g.Document)), search) {
		return true
	}
	for _, t := range g.Tags {
		if strings.Contains(strings.ToLower(t), search) {
			return true
		}
	}
	return false
}

func (s *Store) AllGuides(ctx context.Context) ([]model.Guide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Guide, 0, len(s.guides))
	for _, g := range s.guides {
		out = append(out, cloneGuide(g))
	}
	return out, nil
}

func (s *Store) UpdateGuide(ctx context.Context, g *model.Guide) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.guides[g.ID]
	if !ok {
		return store.ErrNotFound
	}
	updated := cloneGuide(*g)
	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	s.guides[g.ID] = updated
	return nil
}

func (s *Store) DeleteGuide(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.guides[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.guides, id)
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
		if u.ProviderID != "" && existing.Provider == u.Provider && existing.ProviderID == u.ProviderID {
			return store.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByProvider(ctx context.Context, provider, providerID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Provider == provider && u.ProviderID == providerID {
			out := u
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	u.UpdatedAt = s.now()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsAdmin != out[j].IsAdmin {
			return out[i].IsAdmin
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func (s *Store) CreateRefreshToken(ctx context.Context, t *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.refreshTokens[t.TokenHash]; exists {
		return store.ErrDuplicate
	}
	s.nextTokenID++
	t.ID = s.nextTokenID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	s.refreshTokens[t.TokenHash] = *t
	return nil
}

func (s *Store) FindRefreshToken(ctx context.Context, token string, now time.Time) (*model.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.refreshTokens[model.HashToken(token)]
	if !ok || !t.Live(now) {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.HashToken(token)
	if t, ok := s.refreshTokens[key]; ok {
		t.Revoked = true
		s.refreshTokens[key] = t
	}
	return nil
}
