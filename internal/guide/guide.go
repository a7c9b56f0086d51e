// Package guide manages the help-article library: a cheap metadata list for
// browsing, full fetch by id for reading, and admin-only edits.
package guide

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/render"
	"github.com/falconsupport/api/internal/store"
	"github.com/falconsupport/api/internal/validator"
	"gorm.io/datatypes"
)

const (
	DefaultListLimit = 100
	MaxImportSize    = 5 << 20
)

var (
	ErrInvalidDocument = errors.New("document is not valid rich text JSON")
	ErrNotMarkdown     = errors.New("only .md files can be imported")
	ErrTooLarge        = errors.New("file too large")
)

// Input is the full editable record sent on create and replace.
type Input struct {
	Title    string          `json:"title" validate:"notblank,max=255"`
	Format   string          `json:"format" validate:"omitempty,bodyformat"`
	Body     string          `json:"body"`
	Document json.RawMessage `json:"document"`
	Tags     []string        `json:"tags" validate:"max=50,dive,max=64"`
	FileURL  string          `json:"fileUrl" validate:"max=1024"`
}

// TagEdit either rewrites the tag set from comma-separated text or applies
// a union with Add and a difference with Remove.
type TagEdit struct {
	Text   *string  `json:"text"`
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

// Detail is a full guide plus its resolved HTML.
type Detail struct {
	model.Guide
	HTML string `json:"html"`
}

type Service struct {
	guides   store.GuideStore
	blobs    blob.Store
	validate *validator.Validator
	baseURL  string
	now      func() time.Time
}

func NewService(guides store.GuideStore, blobs blob.Store, v *validator.Validator, publicBaseURL string) *Service {
	return &Service{guides: guides, blobs: blobs, validate: v, baseURL: publicBaseURL, now: time.Now}
}

// List returns metadata only, newest first.
func (s *Service) List(ctx context.Context, q model.GuideQuery) ([]model.GuideSummary, error) {
	if q.Limit <= 0 || q.Limit > DefaultListLimit {
		q.Limit = DefaultListLimit
	}
	list, err := s.guides.ListGuides(ctx, q)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.GuideSummary{}
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	g, err := s.guides.GetGuide(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := render.Resolve(g)
	if err != nil {
		return nil, err
	}
	return &Detail{Guide: *g, HTML: out}, nil
}

func (s *Service) apply(g *model.Guide, in Input) error {
	if err := s.validate.Struct(in); err != nil {
		return err
	}
	format := model.BodyFormat(in.Format)
	if format == "" {
		format = model.FormatHTML
	}

	var doc datatypes.JSON
	if trimmed := bytes.TrimSpace(in.Document); len(trimmed) > 0 && string(trimmed) != "null" {
		var n render.Node
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return ErrInvalidDocument
		}
		doc = datatypes.JSON(trimmed)
	}
	if format == model.FormatRichText && doc == nil && strings.TrimSpace(in.Body) == "" {
		return ErrInvalidDocument
	}

	g.Title = strings.TrimSpace(in.Title)
	g.Format = format
	g.Body = in.Body
	g.Document = doc
	g.Tags = model.NewTags(in.Tags...)
	g.FileURL = strings.TrimSpace(in.FileURL)
	g.LastUpdated = s.now()
	return nil
}

func (s *Service) Create(ctx context.Context, in Input, author string) (*model.Guide, error) {
	g := &model.Guide{CreatedBy: author}
	if err := s.apply(g, in); err != nil {
		return nil, err
	}
	g.CreatedAt = g.LastUpdated
	if err := s.guides.CreateGuide(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create guide: %w", err)
	}
	return g, nil
}

// Update replaces the editable fields and stamps lastUpdated.
func (s *Service) Update(ctx context.Context, id string, in Input) (*model.Guide, error) {
	g, err := s.guides.GetGuide(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(g, in); err != nil {
		return nil, err
	}
	if err := s.guides.UpdateGuide(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) EditTags(ctx context.Context, id string, edit TagEdit) (*model.Guide, error) {
	g, err := s.guides.GetGuide(ctx, id)
	if err != nil {
		return nil, err
	}
	if edit.Text != nil {
		g.Tags = model.ParseTags(*edit.Text)
	} else {
		g.Tags = g.Tags.Union(model.NewTags(edit.Add...)).Difference(model.NewTags(edit.Remove...))
	}
	g.LastUpdated = s.now()
	if err := s.guides.UpdateGuide(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.guides.DeleteGuide(ctx, id)
}

// Import stores an uploaded markdown file under guideAttachments/ and
// creates a markdown guide from it. The title is the first level-one
// heading, else the file name.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader, author string) (*model.Guide, error) {
	if !strings.EqualFold(path.Ext(filename), ".md") {
		return nil, ErrNotMarkdown
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxImportSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImportSize {
		return nil, ErrTooLarge
	}

	key := blob.AttachmentKey(s.now(), filename)
	if _, err := s.blobs.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", key, err)
	}

	return s.Create(ctx, Input{
		Title:   markdownTitle(data, filename),
		Format:  string(model.FormatMarkdown),
		Body:    string(data),
		FileURL: blob.URL(s.baseURL, key),
	}, author)
}

func markdownTitle(data []byte, filename string) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "# ") {
			if title := strings.TrimSpace(strings.TrimPrefix(line, "# ")); title != "" {
				return title
			}
		}
	}
	name := blob.CleanName(filename)
	return strings.TrimSuffix(name, path.Ext(name))
}
