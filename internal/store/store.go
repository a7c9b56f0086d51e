// Package store defines the record store used by the request, guide and
// identity services. Backends: gorm (postgres) and memstore (in-process).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/falconsupport/api/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// RequestFilter narrows a request listing. Zero values match everything.
type RequestFilter struct {
	Kind   model.Kind
	Status model.Status
	UserID string
}

type RequestStore interface {
	CreateRequest(ctx context.Context, r *model.Request) error
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]model.Request, error)
	UpdateRequest(ctx context.Context, id string, update model.RequestUpdate) (*model.Request, error)
	// AppendComment adds one comment atomically; concurrent appends are all kept.
	AppendComment(ctx context.Context, id string, comment model.Comment) (*model.Request, error)
	DeleteRequest(ctx context.Context, id string) error
}

type GuideStore interface {
	CreateGuide(ctx context.Context, g *model.Guide) error
	GetGuide(ctx context.Context, id string) (*model.Guide, error)
	ListGuides(ctx context.Context, query model.GuideQuery) ([]model.GuideSummary, error)
	// AllGuides returns full records; used for reconciliation, not for listing.
	AllGuides(ctx context.Context) ([]model.Guide, error)
	UpdateGuide(ctx context.Context, g *model.Guide) error
	DeleteGuide(ctx context.Context, id string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByProvider(ctx context.Context, provider, providerID string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	ListUsers(ctx context.Context) ([]model.User, error)

	CreateRefreshToken(ctx context.Context, t *model.RefreshToken) error
	// FindRefreshToken returns a live token: not revoked and not expired at now.
	FindRefreshToken(ctx context.Context, token string, now time.Time) (*model.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

// Store bundles every collection.
type Store interface {
	RequestStore
	GuideStore
	UserStore
}
