// Package ticket is the request lifecycle: users submit feature requests and
// bug reports, administrators move them between statuses, set priority,
// comment and delete.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/store"
	"github.com/falconsupport/api/internal/validator"
)

var (
	ErrAttachmentMissing = errors.New("attachment not found")
	ErrKindImmutable     = errors.New("request kind cannot be changed")
	ErrEmptyComment      = errors.New("comment text is required")
)

// Submitter is the authenticated principal behind a submission.
type Submitter struct {
	UserID string
	Email  string
}

// Submission is the form a user fills in.
type Submission struct {
	Kind        string     `json:"kind" validate:"required,kind"`
	UserName    string     `json:"userName" validate:"max=255"`
	UserRank    string     `json:"userRank" validate:"max=100"`
	JobTitle    string     `json:"jobTitle" validate:"max=255"`
	Title       string     `json:"title" validate:"notblank,max=255"`
	Description string     `json:"description" validate:"notblank"`
	Attachment  string     `json:"attachment" validate:"max=512"`
	Timestamp   *time.Time `json:"timestamp"`
}

// Patch is an admin edit. Nil fields are left alone.
type Patch struct {
	Kind     *string `json:"kind"`
	Priority *string `json:"priority" validate:"omitempty,priority"`
	Status   *string `json:"status" validate:"omitempty,status"`
	Comment  *string `json:"comment"`
}

type Service struct {
	requests store.RequestStore
	blobs    blob.Store
	validate *validator.Validator
	now      func() time.Time
}

func NewService(requests store.RequestStore, blobs blob.Store, v *validator.Validator) *Service {
	return &Service{requests: requests, blobs: blobs, validate: v, now: time.Now}
}

// Submit validates and stores one new request. Nothing is written when
// validation fails.
func (s *Service) Submit(ctx context.Context, who Submitter, sub Submission) (*model.Request, error) {
	sub.Title = strings.TrimSpace(sub.Title)
	sub.Description = strings.TrimSpace(sub.Description)
	sub.Attachment = strings.TrimSpace(sub.Attachment)
	if err := s.validate.Struct(sub); err != nil {
		return nil, err
	}
	kind, _ := model.ParseKind(sub.Kind)

	if sub.Attachment != "" {
		if err := s.checkAttachment(ctx, sub.Attachment); err != nil {
			return nil, err
		}
	}

	r := &model.Request{
		Kind:        kind,
		Title:       sub.Title,
		Description: sub.Description,
		UserID:      who.UserID,
		UserName:    strings.TrimSpace(sub.UserName),
		UserRank:    strings.TrimSpace(sub.UserRank),
		UserEmail:   who.Email,
		JobTitle:    strings.TrimSpace(sub.JobTitle),
		Attachment:  sub.Attachment,
	}
	if sub.Timestamp != nil {
		r.Timestamp = *sub.Timestamp
	}
	r.ApplyDefaults(s.now())

	if err := s.requests.CreateRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return r, nil
}

func (s *Service) checkAttachment(ctx context.Context, key string) error {
	if err := blob.ValidateKey(key); err != nil {
		return fmt.Errorf("%w: %s", ErrAttachmentMissing, key)
	}
	if _, err := s.blobs.Stat(ctx, key); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrAttachmentMissing, key)
		}
		return err
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Request, error) {
	return s.requests.GetRequest(ctx, id)
}

func (s *Service) List(ctx context.Context, filter store.RequestFilter) ([]model.Request, error) {
	return s.requests.ListRequests(ctx, filter)
}

// Mine lists the caller's own submissions across both kinds.
func (s *Service) Mine(ctx context.Context, userID string) ([]model.Request, error) {
	return s.requests.ListRequests(ctx, store.RequestFilter{UserID: userID})
}

// Update applies an admin patch. Status may move between any two values and
// priority is independent of it. The comment, if any, is appended before the
// field change, so a failed append leaves status and priority untouched. If
// the field change then fails the comment stays.
func (s *Service) Update(ctx context.Context, id string, p Patch, author string) (*model.Request, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, err
	}

	current, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Kind != nil {
		kind, ok := model.ParseKind(*p.Kind)
		if !ok || kind != current.Kind {
			return nil, ErrKindImmutable
		}
	}

	var update model.RequestUpdate
	if p.Priority != nil {
		pr := model.Priority(*p.Priority)
		update.Priority = &pr
	}
	if p.Status != nil {
		st := model.Status(*p.Status)
		update.Status = &st
	}

	if p.Comment != nil && strings.TrimSpace(*p.Comment) != "" {
		if current, err = s.AddComment(ctx, id, *p.Comment, author); err != nil {
			return nil, err
		}
	}
	if update.Priority != nil || update.Status != nil {
		if current, err = s.requests.UpdateRequest(ctx, id, update); err != nil {
			return nil, err
		}
	}
	return current, nil
}

// AddComment appends one comment stamped with the author and server time.
func (s *Service) AddComment(ctx context.Context, id, text, author string) (*model.Request, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	return s.requests.AppendComment(ctx, id, model.Comment{
		Text:        text,
		AuthorEmail: author,
		Timestamp:   s.now(),
	})
}

// Delete removes a request permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.requests.DeleteRequest(ctx, id)
}

// Board is one collection split by status.
type Board struct {
	Pending    []model.Request `json:"pending"`
	InProgress []model.Request `json:"in-progress"`
	Complete   []model.Request `json:"complete"`
}

func (b *Board) add(r model.Request) {
	switch r.Status {
	case model.StatusInProgress:
		b.InProgress = append(b.InProgress, r)
	case model.StatusComplete:
		b.Complete = append(b.Complete, r)
	default:
		b.Pending = append(b.Pending, r)
	}
}

func newBoard() Board {
	return Board{Pending: []model.Request{}, InProgress: []model.Request{}, Complete: []model.Request{}}
}

type Dashboard struct {
	FeatureRequests Board `json:"featureRequests"`
	SupportRequests Board `json:"supportRequests"`
}

// Dashboard reads both collections and partitions each by status.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	all, err := s.requests.ListRequests(ctx, store.RequestFilter{})
	if err != nil {
		return nil, err
	}
	d := &Dashboard{FeatureRequests: newBoard(), SupportRequests: newBoard()}
	for _, r := range all {
		switch r.Kind {
		case model.KindFeature:
			d.FeatureRequests.add(r)
		case model.KindBug:
			d.SupportRequests.add(r)
		}
	}
	return d, nil
}

type Stats struct {
	Total      int64                    `json:"total"`
	ByKind     map[model.Kind]int64     `json:"byKind"`
	ByStatus   map[model.Status]int64   `json:"byStatus"`
	ByPriority map[model.Priority]int64 `json:"byPriority"`
	Open       int64                    `json:"open"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	all, err := s.requests.ListRequests(ctx, store.RequestFilter{})
	if err != nil {
		return nil, err
	}
	st := &Stats{
		ByKind:     map[model.Kind]int64{model.KindFeature: 0, model.KindBug: 0},
		ByStatus:   make(map[model.Status]int64, len(model.Statuses)),
		ByPriority: make(map[model.Priority]int64, len(model.Priorities)),
	}
	for _, v := range model.Statuses {
		st.ByStatus[v] = 0
	}
	for _, v := range model.Priorities {
		st.ByPriority[v] = 0
	}
	for _, r := range all {
		st.Total++
		st.ByKind[r.Kind]++
		st.ByStatus[r.Status]++
		st.ByPriority[r.Priority]++
		if r.Status != model.StatusComplete {
			st.Open++
		}
	}
	return st, nil
}
