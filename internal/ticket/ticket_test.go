package ticket

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/store"
	"github.com/falconsupport/api/internal/store/memstore"
	"github.com/falconsupport/api/internal/validator"
)

// countingRequests records writes that reach the store.
type countingRequests struct {
	store.RequestStore
	creates int
}

func (c *countingRequests) CreateRequest(ctx context.Context, r *model.Request) error {
	c.creates++
	return c.RequestStore.CreateRequest(ctx, r)
}

// failingComments loses every comment append.
type failingComments struct {
	store.RequestStore
	updates int
}

func (f *failingComments) AppendComment(ctx context.Context, id string, c model.Comment) (*model.Request, error) {
	return nil, errors.New("append lost")
}

func (f *failingComments) UpdateRequest(ctx context.Context, id string, u model.RequestUpdate) (*model.Request, error) {
	f.updates++
	return f.RequestStore.UpdateRequest(ctx, id, u)
}

var cadet = Submitter{UserID: "user-1", Email: "cadet@afacademy.af.edu"}

func newService(t *testing.T) (*Service, *countingRequests, blob.Store) {
	t.Helper()
	blobs, err := blob.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	requests := &countingRequests{RequestStore: memstore.New()}
	return NewService(requests, blobs, validator.New()), requests, blobs
}

func TestSubmitRequiredFieldsNoWrite(t *testing.T) {
	ctx := context.Background()
	svc, requests, _ := newService(t)

	cases := []Submission{
		{Kind: "feature", Title: "", Description: "something"},
		{Kind: "feature", Title: "Add dark mode", Description: "   "},
		{Kind: "", Title: "x", Description: "y"},
		{Kind: "enhancement", Title: "x", Description: "y"},
	}
	for _, sub := range cases {
		if _, err := svc.Submit(ctx, cadet, sub); !errors.Is(err, validator.ErrInvalid) {
			t.Errorf("Submit(%+v) err = %v, want ErrInvalid", sub, err)
		}
	}
	if requests.creates != 0 {
		t.Errorf("store received %d writes for invalid submissions", requests.creates)
	}
}

func TestSubmitDefaultsAndSnapshot(t *testing.T) {
	svc, _, _ := newService(t)
	r, err := svc.Submit(context.Background(), cadet, Submission{
		Kind:        "supportRequests",
		UserName:    "C/4C Jones",
		UserRank:    "Cadet",
		JobTitle:    "Student",
		Title:       "Printer offline",
		Description: "Fairchild 3rd floor",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.ID == "" || r.Kind != model.KindBug {
		t.Errorf("id=%q kind=%s", r.ID, r.Kind)
	}
	if r.Priority != model.PriorityLow || r.Status != model.StatusPending {
		t.Errorf("defaults priority=%s status=%s", r.Priority, r.Status)
	}
	if r.UserID != cadet.UserID || r.UserEmail != cadet.Email {
		t.Errorf("submitter snapshot = %s %s", r.UserID, r.UserEmail)
	}
}

func TestSubmitAttachmentMustExist(t *testing.T) {
	ctx := context.Background()
	svc, requests, blobs := newService(t)

	sub := Submission{Kind: "bug", Title: "Crash", Description: "on save", Attachment: "requestAttachments/1-log.txt"}
	if _, err := svc.Submit(ctx, cadet, sub); !errors.Is(err, ErrAttachmentMissing) {
		t.Fatalf("missing attachment err = %v", err)
	}
	if requests.creates != 0 {
		t.Fatal("request written with a dangling attachment")
	}

	if _, err := blobs.Put(ctx, "requestAttachments/1-log.txt", strings.NewReader("trace")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	r, err := svc.Submit(ctx, cadet, sub)
	if err != nil {
		t.Fatalf("Submit with attachment: %v", err)
	}
	if r.Attachment != "requestAttachments/1-log.txt" {
		t.Errorf("attachment = %q", r.Attachment)
	}
}

func TestDarkModeLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	r, err := svc.Submit(ctx, cadet, Submission{Kind: "feature", Title: "Add dark mode", Description: "Easier on the eyes at night"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	d, _ := svc.Dashboard(ctx)
	if !containsID(d.FeatureRequests.Pending, r.ID) {
		t.Fatal("new request missing from pending")
	}
	if len(d.SupportRequests.Pending) != 0 {
		t.Error("feature request leaked into support requests")
	}

	inProgress := string(model.StatusInProgress)
	if _, err := svc.Update(ctx, r.ID, Patch{Status: &inProgress}, "admin@afacademy.af.edu"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	d, _ = svc.Dashboard(ctx)
	if containsID(d.FeatureRequests.Pending, r.ID) {
		t.Error("request still under pending")
	}
	if !containsID(d.FeatureRequests.InProgress, r.ID) {
		t.Error("request missing from in-progress")
	}
}

func TestUpdateRejectsKindChange(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	r, _ := svc.Submit(ctx, cadet, Submission{Kind: "feature", Title: "t", Description: "d"})

	bug := "bug"
	if _, err := svc.Update(ctx, r.ID, Patch{Kind: &bug}, "a"); !errors.Is(err, ErrKindImmutable) {
		t.Errorf("kind change err = %v", err)
	}
	same := "featureRequests"
	high := "High"
	got, err := svc.Update(ctx, r.ID, Patch{Kind: &same, Priority: &high}, "a")
	if err != nil {
		t.Fatalf("same kind update: %v", err)
	}
	if got.Priority != model.PriorityHigh || got.Kind != model.KindFeature {
		t.Errorf("got %+v", got)
	}

	bad := "Urgent"
	if _, err := svc.Update(ctx, r.ID, Patch{Priority: &bad}, "a"); !errors.Is(err, validator.ErrInvalid) {
		t.Errorf("invalid priority err = %v", err)
	}
}

func TestUpdateWithCommentAppends(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	r, _ := svc.Submit(ctx, cadet, Submission{Kind: "bug", Title: "t", Description: "d"})

	complete := "complete"
	note := "fixed in 2.1"
	got, err := svc.Update(ctx, r.ID, Patch{Status: &complete, Comment: &note}, "admin@afacademy.af.edu")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != model.StatusComplete || len(got.Comments) != 1 {
		t.Fatalf("got status=%s comments=%d", got.Status, len(got.Comments))
	}
	c := got.Comments[0]
	if c.Text != note || c.AuthorEmail != "admin@afacademy.af.edu" || c.Timestamp.IsZero() {
		t.Errorf("comment = %+v", c)
	}

	if _, err := svc.AddComment(ctx, r.ID, "  ", "a"); !errors.Is(err, ErrEmptyComment) {
		t.Errorf("blank comment err = %v", err)
	}
	if _, err := svc.AddComment(ctx, "missing", "x", "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("comment on missing request err = %v", err)
	}
}

func TestDeleteThenRefetch(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	r, _ := svc.Submit(ctx, cadet, Submission{Kind: "bug", Title: "t", Description: "d"})

	if err := svc.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, _ := svc.List(ctx, store.RequestFilter{Kind: model.KindBug})
	if containsID(list, r.ID) {
		t.Error("deleted request still listed")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	svc.Submit(ctx, cadet, Submission{Kind: "feature", Title: "a", Description: "d"})
	b, _ := svc.Submit(ctx, cadet, Submission{Kind: "bug", Title: "b", Description: "d"})
	complete := "complete"
	svc.Update(ctx, b.ID, Patch{Status: &complete}, "a")

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 2 || st.Open != 1 {
		t.Errorf("total=%d open=%d", st.Total, st.Open)
	}
	if st.ByKind[model.KindBug] != 1 || st.ByStatus[model.StatusComplete] != 1 || st.ByPriority[model.PriorityLow] != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func containsID(list []model.Request, id string) bool {
	for _, r := range list {
		if r.ID == id {
			return true
		}
	}
	return false
}

func TestUpdateFailedCommentKeepsStatus(t *testing.T) {
	ctx := context.Background()
	blobs, err := blob.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	requests := &failingComments{RequestStore: memstore.New()}
	svc := NewService(requests, blobs, validator.New())
	r, err := svc.Submit(ctx, cadet, Submission{Kind: "feature", Title: "Add dark mode", Description: "d"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	complete := "complete"
	note := "shipped"
	if _, err := svc.Update(ctx, r.ID, Patch{Status: &complete, Comment: &note}, "a"); err == nil {
		t.Fatal("Update should report the failed append")
	}
	if requests.updates != 0 {
		t.Errorf("status written %d times despite the failed comment", requests.updates)
	}
	got, _ := svc.Get(ctx, r.ID)
	if got.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}
