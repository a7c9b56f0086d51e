package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BodyFormat says how a guide body is stored.
type BodyFormat string

const (
	FormatHTML     BodyFormat = "html"
	FormatMarkdown BodyFormat = "markdown"
	FormatRichText BodyFormat = "richtext"
)

func (f BodyFormat) Valid() bool {
	return f == FormatHTML || f == FormatMarkdown || f == FormatRichText
}

// Tags is a set of guide tags, stored sorted and deduplicated as a JSONB array.
type Tags []string

// NewTags normalizes raw tags: trims, drops empties and duplicates, sorts.
func NewTags(raw ...string) Tags {
	seen := make(map[string]bool, len(raw))
	out := Tags{}
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseTags splits a comma-separated tag field.
func ParseTags(text string) Tags {
	return NewTags(strings.Split(text, ",")...)
}

func (t Tags) Union(other Tags) Tags {
	return NewTags(append(append([]string{}, t...), other...)...)
}

func (t Tags) Difference(other Tags) Tags {
	drop := make(map[string]bool, len(other))
	for _, o := range other {
		drop[strings.TrimSpace(o)] = true
	}
	var keep []string
	for _, v := range t {
		if !drop[v] {
			keep = append(keep, v)
		}
	}
	return NewTags(keep...)
}

func (t Tags) Contains(tag string) bool {
	for _, v := range t {
		if strings.EqualFold(v, tag) {
			return true
		}
	}
	return false
}

// String renders the tags back into the comma-separated edit field.
func (t Tags) String() string {
	return strings.Join(t, ", ")
}

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(t)
}

func (t *Tags) Scan(value interface{}) error {
	if value == nil {
		*t = Tags{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal Tags: unsupported type")
	}

	return json.Unmarshal(bytes, t)
}

// Guide is a help article. Body holds html or markdown; Document holds rich-text JSON.
type Guide struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string         `gorm:"not null;size:255" json:"title"`
	Format      BodyFormat     `gorm:"not null;size:16;default:'html'" json:"format"`
	Body        string         `gorm:"type:text" json:"body"`
	Document    datatypes.JSON `json:"document,omitempty"`
	Tags        Tags           `gorm:"type:jsonb;not null;default:'[]'" json:"tags"`
	FileURL     string         `gorm:"size:1024" json:"fileUrl,omitempty"`
	CreatedBy   string         `gorm:"size:255" json:"createdBy"`
	CreatedAt   time.Time      `json:"createdAt"`
	LastUpdated time.Time      `gorm:"index" json:"lastUpdated"`
}

func (Guide) TableName() string {
	return "user_guides"
}

func (g *Guide) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// Summary projects the guide onto its metadata.
func (g Guide) Summary() GuideSummary {
	return GuideSummary{
		ID:          g.ID,
		Title:       g.Title,
		Tags:        g.Tags,
		Format:      g.Format,
		CreatedBy:   g.CreatedBy,
		LastUpdated: g.LastUpdated,
	}
}

// GuideSummary is the list projection of a guide. It has no body by construction.
type GuideSummary struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Tags        Tags       `json:"tags"`
	Format      BodyFormat `json:"format"`
	CreatedBy   string     `json:"createdBy"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

// GuideQuery filters the metadata list.
type GuideQuery struct {
	Search string
	Tag    string
	Limit  int
}
