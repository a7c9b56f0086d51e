package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/falconsupport/api/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres error codes the store translates.
const (
	pgUniqueViolation = "23505"
	pgInvalidText     = "22P02"
)

// GormStore implements Store on top of gorm and postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicate
		case pgInvalidText:
			// malformed uuid in a lookup
			return ErrNotFound
		}
	}
	return err
}

func (s *GormStore) CreateRequest(ctx context.Context, r *model.Request) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

func (s *GormStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	var r model.Request
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *GormStore) ListRequests(ctx context.Context, filter RequestFilter) ([]model.Request, error) {
	query := s.db.WithContext(ctx).Model(&model.Request{})

	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}

	var requests []model.Request
	if err := query.Order("timestamp DESC").Find(&requests).Error; err != nil {
		return nil, translate(err)
	}
	return requests, nil
}

func (s *GormStore) UpdateRequest(ctx context.Context, id string, update model.RequestUpdate) (*model.Request, error) {
	fields := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if update.Priority != nil {
		fields["priority"] = *update.Priority
	}
	if update.Status != nil {
		fields["status"] = *update.Status
	}

	result := s.db.WithContext(ctx).Model(&model.Request{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetRequest(ctx, id)
}

func (s *GormStore) AppendComment(ctx context.Context, id string, comment model.Comment) (*model.Request, error) {
	payload, err := json.Marshal([]model.Comment{comment})
	if err != nil {
		return nil, err
	}

	// Server-side jsonb concatenation; no read-modify-write.
	result := s.db.WithContext(ctx).Model(&model.Request{}).Where("id = ?", id).Updates(map[string]interface{}{
		"comments":   gorm.Expr("COALESCE(comments, '[]'::jsonb) || ?::jsonb", string(payload)),
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetRequest(ctx, id)
}

func (s *GormStore) DeleteRequest(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Request{})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateGuide(ctx context.Context, g *model.Guide) error {
	return translate(s.db.WithContext(ctx).Create(g).Error)
}

func (s *GormStore) GetGuide(ctx context.Context, id string) (*model.Guide, error) {
	var g model.Guide
	if err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (s *GormStore) ListGuides(ctx context.Context, q model.GuideQuery) ([]model.GuideSummary, error) {
	// Body and document stay in the database until a guide is fetched by id.
	query := s.db.WithContext(ctx).Model(&model.Guide{}).
		Select("id", "title", "tags", "format", "created_by", "last_updated")

	if search := strings.TrimSpace(q.Search); search != "" {
		like := "%" + escapeLike(search) + "%"
		query = query.Where("title ILIKE ? OR body ILIKE ? OR document::text ILIKE ? OR tags::text ILIKE ?", like, like, like, like)
	}
	// Tags match case-insensitively, same as Tags.Contains.
	if q.Tag != "" {
		query = query.Where("EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags) AS t(tag) WHERE lower(t.tag) = lower(?))", q.Tag)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var guides []model.Guide
	if err := query.Order("last_updated DESC").Find(&guides).Error; err != nil {
		return nil, translate(err)
	}

	summaries := make([]model.GuideSummary, len(guides))
	for i := range guides {
		summaries[i] = guides[i].Summary()
	}
	return summaries, nil
}

func (s *GormStore) AllGuides(ctx context.Context) ([]model.Guide, error) {
	var guides []model.Guide
	if err := s.db.WithContext(ctx).Find(&guides).Error; err != nil {
		return nil, translate(err)
	}
	return guides, nil
}

func (s *GormStore) UpdateGuide(ctx context.Context, g *model.Guide) error {
	result := s.db.WithContext(ctx).Model(&model.Guide{}).
		Where("id = ?", g.ID).
		Select("title", "format", "body", "document", "tags", "file_url", "last_updated").
		Updates(g)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteGuide(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Guide{})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateUser(ctx context.Context, u *model.User) error {
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *GormStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("lower(email) = lower(?)", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByProvider(ctx context.Context, provider, providerID string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("provider = ? AND provider_id = ?", provider, providerID).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) UpdateUser(ctx context.Context, u *model.User) error {
	u.UpdatedAt = time.Now()
	return translate(s.db.WithContext(ctx).Save(u).Error)
}

func (s *GormStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Order("is_admin DESC, email ASC").Find(&users).Error; err != nil {
		return nil, translate(err)
	}
	return users, nil
}

func (s *GormStore) CreateRefreshToken(ctx context.Context, t *model.RefreshToken) error {
	return translate(s.db.WithContext(ctx).Create(t).Error)
}

func (s *GormStore) FindRefreshToken(ctx context.Context, token string, now time.Time) (*model.RefreshToken, error) {
	var t model.RefreshToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND revoked = false AND expires_at > ?", model.HashToken(token), now).
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormStore) RevokeRefreshToken(ctx context.Context, token string) error {
	return translate(s.db.WithContext(ctx).Model(&model.RefreshToken{}).Where("token_hash = ?", model.HashToken(token)).Update("revoked", true).Error)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
