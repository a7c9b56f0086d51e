package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/falconsupport/api/internal/auth"
	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/cache"
	"github.com/falconsupport/api/internal/guide"
	"github.com/falconsupport/api/internal/identity"
	"github.com/falconsupport/api/internal/mail"
	"github.com/falconsupport/api/internal/ratelimit"
	"github.com/falconsupport/api/internal/store/memstore"
	"github.com/falconsupport/api/internal/ticket"
	"github.com/falconsupport/api/internal/validator"
	"github.com/gin-gonic/gin"
)

const (
	testSecret = "router-test-secret"
	testDomain = "afacademy.af.edu"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	router   *gin.Engine
	identity *identity.Service
	mailer   *mail.LogMailer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	records := memstore.New()
	kv := cache.NewMemoryStore()
	mailer := &mail.LogMailer{}
	blobs, err := blob.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	v := validator.New()

	ids := identity.NewService(records, kv, mailer, identity.Options{
		AllowedDomain: testDomain,
		JWTSecret:     testSecret,
		LinkBaseURL:   "http://app.test",
	})
	r := NewRouter(Deps{
		Identity:      ids,
		Tickets:       ticket.NewService(records, blobs, v),
		Guides:        guide.NewService(records, blobs, v, "http://api.test"),
		Blobs:         blobs,
		Limiter:       ratelimit.NewLimiter(kv, nil),
		Sessions:      auth.NewSessionCodec("0123456789abcdef0123456789abcdef", "", false),
		JWTSecret:     testSecret,
		FrontendURL:   "http://app.test",
		PublicBaseURL: "http://api.test",
	})
	return &testApp{router: r, identity: ids, mailer: mailer}
}

func (a *testApp) call(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

var mailToken = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)

// signIn signs up, verifies through the mailed link and logs in.
func (a *testApp) signIn(t *testing.T, email string) string {
	t.Helper()
	if w := a.call(t, http.MethodPost, "/api/auth/signup", "", gin.H{"email": email, "password": "correct-horse"}); w.Code != http.StatusCreated {
		t.Fatalf("signup %s: %d %s", email, w.Code, w.Body)
	}

	sent := a.mailer.Sent()
	m := mailToken.FindStringSubmatch(sent[len(sent)-1].Text)
	if m == nil {
		t.Fatalf("no token in verification mail: %q", sent[len(sent)-1].Text)
	}
	if w := a.call(t, http.MethodPost, "/api/auth/verify", "", gin.H{"token": m[1]}); w.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", w.Code, w.Body)
	}

	return a.login(t, email)
}

func (a *testApp) login(t *testing.T, email string) string {
	t.Helper()
	w := a.call(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body)
	}
	var tokens identity.Tokens
	if err := json.Unmarshal(w.Body.Bytes(), &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	return tokens.AccessToken
}

func (a *testApp) admin(t *testing.T, email string) string {
	t.Helper()
	a.signIn(t, email)
	if _, err := a.identity.SetAdmin(context.Background(), email, true); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}
	return a.login(t, email)
}

func TestSignupRejectsOffDomain(t *testing.T) {
	app := newTestApp(t)
	w := app.call(t, http.MethodPost, "/api/auth/signup", "", gin.H{"email": "someone@gmail.com", "password": "correct-horse"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "@"+testDomain) {
		t.Errorf("message should name the domain: %s", w.Body)
	}
	if len(app.mailer.Sent()) != 0 {
		t.Error("no mail should be sent for an off-domain sign-up")
	}
}

func TestLoginBeforeVerification(t *testing.T) {
	app := newTestApp(t)
	app.call(t, http.MethodPost, "/api/auth/signup", "", gin.H{"email": "new@" + testDomain, "password": "correct-horse"})

	w := app.call(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "new@" + testDomain, "password": "correct-horse"})
	if w.Code != http.StatusForbidden {
		t.Errorf("unverified login = %d, want 403", w.Code)
	}
	w = app.call(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "new@" + testDomain, "password": "wrong-password"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password = %d, want 401", w.Code)
	}
}

func TestDarkModeLifecycle(t *testing.T) {
	app := newTestApp(t)
	user := app.signIn(t, "cadet@"+testDomain)
	adminToken := app.admin(t, "staff@"+testDomain)

	w := app.call(t, http.MethodPost, "/api/requests", user, gin.H{
		"kind":        "feature",
		"title":       "Add dark mode",
		"description": "Please add a dark theme.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", w.Code, w.Body)
	}
	var created struct {
		ID        string `json:"id"`
		UserEmail string `json:"userEmail"`
		Status    string `json:"status"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)
	if created.UserEmail != "cadet@"+testDomain || created.Status != "pending" {
		t.Fatalf("created = %+v", created)
	}

	// Regular users cannot see the dashboard.
	if w := app.call(t, http.MethodGet, "/api/admin/dashboard", user, nil); w.Code != http.StatusForbidden {
		t.Errorf("non-admin dashboard = %d, want 403", w.Code)
	}

	board := func() ticket.Dashboard {
		w := app.call(t, http.MethodGet, "/api/admin/dashboard", adminToken, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("dashboard: %d %s", w.Code, w.Body)
		}
		var d ticket.Dashboard
		json.Unmarshal(w.Body.Bytes(), &d)
		return d
	}

	d := board()
	if len(d.FeatureRequests.Pending) != 1 || d.FeatureRequests.Pending[0].Title != "Add dark mode" {
		t.Fatalf("pending = %+v", d.FeatureRequests.Pending)
	}

	w = app.call(t, http.MethodPatch, "/api/admin/requests/"+created.ID, adminToken, gin.H{
		"status":  "in-progress",
		"comment": "Picked up this sprint",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body)
	}

	d = board()
	if len(d.FeatureRequests.Pending) != 0 || len(d.FeatureRequests.InProgress) != 1 {
		t.Fatalf("after update: pending=%d in-progress=%d", len(d.FeatureRequests.Pending), len(d.FeatureRequests.InProgress))
	}
	moved := d.FeatureRequests.InProgress[0]
	if len(moved.Comments) != 1 || moved.Comments[0].AuthorEmail != "staff@"+testDomain {
		t.Errorf("comments = %+v", moved.Comments)
	}

	// kind is immutable
	w = app.call(t, http.MethodPatch, "/api/admin/requests/"+created.ID, adminToken, gin.H{"kind": "bug"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("kind change = %d, want 400", w.Code)
	}

	if w := app.call(t, http.MethodDelete, "/api/admin/requests/"+created.ID, adminToken, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := app.call(t, http.MethodGet, "/api/admin/requests/"+created.ID, adminToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("deleted request fetch = %d, want 404", w.Code)
	}
	d = board()
	if len(d.FeatureRequests.InProgress) != 0 {
		t.Error("deleted request still on the dashboard")
	}
}

func TestSubmitRequiresTitle(t *testing.T) {
	app := newTestApp(t)
	user := app.signIn(t, "cadet@"+testDomain)

	w := app.call(t, http.MethodPost, "/api/requests", user, gin.H{"kind": "bug", "title": "  ", "description": "broken"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank title = %d, want 400", w.Code)
	}
	w = app.call(t, http.MethodGet, "/api/requests/mine", user, nil)
	if !strings.Contains(w.Body.String(), `"totalCount":0`) {
		t.Errorf("nothing should have been stored: %s", w.Body)
	}
}

func TestGuideListOmitsBody(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.admin(t, "staff@"+testDomain)

	w := app.call(t, http.MethodPost, "/api/admin/guides", adminToken, gin.H{
		"title":  "Resetting your CAC PIN",
		"format": "markdown",
		"body":   "# Steps\n\nVisit the **ID card office**.<script>alert(1)</script>",
		"tags":   []string{"cac", "accounts"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create guide: %d %s", w.Code, w.Body)
	}
	var g struct {
		ID string `json:"id"`
	}
	json.Unmarshal(w.Body.Bytes(), &g)

	w = app.call(t, http.MethodGet, "/api/guides?q=cac", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Resetting your CAC PIN") {
		t.Errorf("list missing guide: %s", w.Body)
	}
	if strings.Contains(w.Body.String(), "ID card office") || strings.Contains(w.Body.String(), `"body"`) {
		t.Errorf("list leaked body: %s", w.Body)
	}

	w = app.call(t, http.MethodGet, "/api/guides/"+g.ID, adminToken, nil)
	var detail struct {
		HTML string `json:"html"`
	}
	json.Unmarshal(w.Body.Bytes(), &detail)
	if !strings.Contains(detail.HTML, "<strong>ID card office</strong>") {
		t.Errorf("html = %q", detail.HTML)
	}
	if strings.Contains(detail.HTML, "<script>") {
		t.Errorf("script survived rendering: %q", detail.HTML)
	}
}

func TestImageUploadEmbedsAndServes(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.admin(t, "staff@"+testDomain)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "diagram.png")
	fw.Write([]byte("\x89PNG fake image bytes"))
	mw.WriteField("format", "markdown")
	mw.WriteField("body", "Intro paragraph.")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/uploads/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", w.Code, w.Body)
	}

	var resp struct {
		Key  string `json:"key"`
		URL  string `json:"url"`
		Body string `json:"body"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Key != "images/diagram.png" {
		t.Errorf("key = %q", resp.Key)
	}
	if !strings.HasPrefix(resp.Body, "Intro paragraph.") || !strings.Contains(resp.Body, resp.URL) {
		t.Errorf("body = %q", resp.Body)
	}

	w = app.call(t, http.MethodGet, "/files/"+resp.Key, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("serve: %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req = httptest.NewRequest(http.MethodGet, "/files/"+resp.Key, nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Errorf("revalidation = %d, want 304", w.Code)
	}
}

func TestPages(t *testing.T) {
	app := newTestApp(t)
	user := app.signIn(t, "cadet@"+testDomain)

	if w := app.call(t, http.MethodGet, "/auth", "", nil); w.Code != http.StatusOK {
		t.Errorf("/auth = %d", w.Code)
	}
	w := app.call(t, http.MethodGet, "/user-guides", "", nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/auth" {
		t.Errorf("/user-guides without session = %d %s", w.Code, w.Header().Get("Location"))
	}
	if w := app.call(t, http.MethodGet, "/user-guides", user, nil); w.Code != http.StatusOK {
		t.Errorf("/user-guides with session = %d", w.Code)
	}
	w = app.call(t, http.MethodGet, "/admins", user, nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
		t.Errorf("/admins as non-admin = %d %s", w.Code, w.Header().Get("Location"))
	}
}

func TestRevokeSelfRefused(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.admin(t, "staff@"+testDomain)

	w := app.call(t, http.MethodPost, "/api/admin/users/revoke", adminToken, gin.H{"email": "staff@" + testDomain})
	if w.Code != http.StatusBadRequest {
		t.Errorf("self revoke = %d, want 400", w.Code)
	}
	w = app.call(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	if !strings.Contains(w.Body.String(), "staff@"+testDomain) {
		t.Errorf("users = %s", w.Body)
	}
}

func TestSignupRejectsOverlongPassword(t *testing.T) {
	app := newTestApp(t)
	w := app.call(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":    "long@" + testDomain,
		"password": strings.Repeat("a", auth.MaxPasswordLength+1),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("overlong password = %d, want 400: %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), "at most 72") {
		t.Errorf("message = %s", w.Body)
	}
	if len(app.mailer.Sent()) != 0 {
		t.Error("no account should have been created")
	}
}

func TestExportCSV(t *testing.T) {
	app := newTestApp(t)
	user := app.signIn(t, "cadet@"+testDomain)
	adminToken := app.admin(t, "staff@"+testDomain)

	for _, title := range []string{"Add dark mode", "Offline reading list"} {
		w := app.call(t, http.MethodPost, "/api/requests", user, gin.H{
			"kind":        "feature",
			"title":       title,
			"description": "Please.",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("submit %q: %d %s", title, w.Code, w.Body)
		}
	}

	w := app.call(t, http.MethodGet, "/api/admin/export?format=csv", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: %d %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, ".csv") {
		t.Errorf("content disposition = %q", cd)
	}

	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][2] != "Title" || rows[0][4] != "Status" {
		t.Errorf("header = %v", rows[0])
	}
	for _, row := range rows[1:] {
		if row[1] != "featureRequests" || row[4] != "pending" || row[5] != "cadet@"+testDomain {
			t.Errorf("row = %v", row)
		}
	}

	if w := app.call(t, http.MethodGet, "/api/admin/export?format=xml", adminToken, nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown format = %d, want 400", w.Code)
	}
	if w := app.call(t, http.MethodGet, "/api/admin/export", user, nil); w.Code != http.StatusForbidden {
		t.Errorf("non-admin export = %d, want 403", w.Code)
	}
}
