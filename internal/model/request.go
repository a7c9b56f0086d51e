package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Kind tags a request as a feature request or a bug report. It is fixed at creation.
type Kind string

const (
	KindFeature Kind = "feature"
	KindBug     Kind = "bug"
)

// Collection names the logical collection a kind lives in.
func (k Kind) Collection() string {
	switch k {
	case KindFeature:
		return "featureRequests"
	case KindBug:
		return "supportRequests"
	default:
		return ""
	}
}

func (k Kind) Valid() bool {
	return k == KindFeature || k == KindBug
}

// ParseKind accepts the kind itself or its collection name.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "feature", "featureRequests":
		return KindFeature, true
	case "bug", "supportRequests":
		return KindBug, true
	}
	return "", false
}

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusComplete   Status = "complete"
)

var Statuses = []Status{StatusPending, StatusInProgress, StatusComplete}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Comment is a single dashboard note on a request
type Comment struct {
	Text        string    `json:"text"`
	AuthorEmail string    `json:"authorEmail"`
	Timestamp   time.Time `json:"timestamp"`
}

// Comments is an append-only list stored as a JSONB array
type Comments []Comment

// Value implements driver.Valuer for JSONB serialization
func (c Comments) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal([]Comment{})
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB deserialization
func (c *Comments) Scan(value interface{}) error {
	if value == nil {
		*c = Comments{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal Comments: unsupported type")
	}

	return json.Unmarshal(bytes, c)
}

// Append returns a new list with comment added at the end. The receiver is not modified.
func (c Comments) Append(comment Comment) Comments {
	out := make(Comments, len(c), len(c)+1)
	copy(out, c)
	return append(out, comment)
}

// Request is a feature request or bug report. Both kinds share one shape.
type Request struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Kind        Kind      `gorm:"not null;size:16;index" json:"kind"`
	Title       string    `gorm:"not null;size:255" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	UserID      string    `gorm:"size:64;index" json:"userId"`
	UserName    string    `gorm:"size:255" json:"userName"`
	UserRank    string    `gorm:"size:100" json:"userRank"`
	UserEmail   string    `gorm:"size:255" json:"userEmail"`
	JobTitle    string    `gorm:"size:255" json:"jobTitle"`
	Priority    Priority  `gorm:"not null;size:16;default:'Low'" json:"priority"`
	Status      Status    `gorm:"not null;size:16;default:'pending';index" json:"status"`
	Attachment  string    `gorm:"size:512" json:"attachment,omitempty"`
	Comments    Comments  `gorm:"type:jsonb;not null;default:'[]'" json:"comments"`
	Timestamp   time.Time `gorm:"index" json:"timestamp"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Request) TableName() string {
	return "requests"
}

// BeforeCreate assigns the store key and lifecycle defaults.
func (r *Request) BeforeCreate(tx *gorm.DB) error {
	r.ApplyDefaults(time.Now())
	return nil
}

// ApplyDefaults fills id, priority, status, comments and timestamp when unset.
func (r *Request) ApplyDefaults(now time.Time) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Priority == "" {
		r.Priority = PriorityLow
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.Comments == nil {
		r.Comments = Comments{}
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
}

// RequestUpdate carries the mutable lifecycle fields. Nil fields are left unchanged.
type RequestUpdate struct {
	Priority *Priority
	Status   *Status
}
