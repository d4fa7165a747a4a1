package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwalsh/linkhub/internal/database"
	"github.com/mwalsh/linkhub/internal/middleware"
	"github.com/mwalsh/linkhub/internal/model"
)

func setupTestServer(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "linkhub_test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv, err := New(db, Config{UploadDir: t.TempDir()}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path, sessionToken string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionToken})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// registerUser registers a user and returns their session token.
func registerUser(t *testing.T, router http.Handler, username, password string) string {
	t.Helper()
	rec := doJSON(t, router, "POST", "/api/register", "", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body = %s", username, rec.Code, rec.Body)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.Value != "" {
			return c.Value
		}
	}
	t.Fatal("register did not set a session cookie")
	return ""
}

func TestRegisterReturnsPublicUser(t *testing.T) {
	router := setupTestServer(t)

	rec := doJSON(t, router, "POST", "/api/register", "", map[string]string{
		"username": "alice",
		"password": "secret1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["username"] != "alice" {
		t.Errorf("username = %v", raw["username"])
	}
	for _, field := range []string{"password", "passwordHash", "password_hash"} {
		if _, ok := raw[field]; ok {
			t.Errorf("response leaks %q", field)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	router := setupTestServer(t)

	cases := []map[string]string{
		{"username": "al", "password": "secret1"},
		{"username": "alice", "password": "short"},
	}
	for _, body := range cases {
		rec := doJSON(t, router, "POST", "/api/register", "", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("register %v: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	router := setupTestServer(t)
	registerUser(t, router, "alice", "secret1")

	rec := doJSON(t, router, "POST", "/api/register", "", map[string]string{
		"username": "alice",
		"password": "another1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	router := setupTestServer(t)
	registerUser(t, router, "alice", "secret1")

	unknown := doJSON(t, router, "POST", "/api/login", "", map[string]string{
		"username": "nobody",
		"password": "secret1",
	})
	wrongPass := doJSON(t, router, "POST", "/api/login", "", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})

	if unknown.Code != http.StatusUnauthorized || wrongPass.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d, want 401, 401", unknown.Code, wrongPass.Code)
	}
	if unknown.Body.String() != wrongPass.Body.String() {
		t.Errorf("error bodies differ: %q vs %q", unknown.Body, wrongPass.Body)
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	router := setupTestServer(t)
	registerUser(t, router, "alice", "secret1")

	rec := doJSON(t, router, "POST", "/api/login", "", map[string]string{
		"username": "alice",
		"password": "secret1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body)
	}
	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			token = c.Value
			if !c.HttpOnly {
				t.Error("session cookie should be httpOnly")
			}
			if c.SameSite != http.SameSiteLaxMode {
				t.Error("session cookie should be SameSite=Lax")
			}
		}
	}
	if token == "" {
		t.Fatal("login did not set a session cookie")
	}

	if rec := doJSON(t, router, "GET", "/api/user", token, nil); rec.Code != http.StatusOK {
		t.Errorf("GET /api/user status = %d, want 200", rec.Code)
	}

	logout := doJSON(t, router, "POST", "/api/logout", token, nil)
	if logout.Code != http.StatusOK {
		t.Fatalf("logout status = %d", logout.Code)
	}
	var cleared bool
	for _, c := range logout.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("logout should clear the session cookie")
	}

	if rec := doJSON(t, router, "GET", "/api/user", token, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/user after logout = %d, want 401", rec.Code)
	}
}

func TestCurrentUserRequiresSession(t *testing.T) {
	router := setupTestServer(t)

	if rec := doJSON(t, router, "GET", "/api/user", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if rec := doJSON(t, router, "GET", "/api/profile", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// The end-to-end scenario: fresh profile, two links, delete the first,
// the survivor keeps its order value.
func TestLinkLifecycle(t *testing.T) {
	router := setupTestServer(t)
	token := registerUser(t, router, "alice", "secret1")

	profile := decodeBody[model.Profile](t, doJSON(t, router, "GET", "/api/profile", token, nil))
	if len(profile.Links) != 0 {
		t.Fatalf("fresh profile has %d links, want 0", len(profile.Links))
	}

	first := decodeBody[model.Link](t, doJSON(t, router, "POST", "/api/links", token, map[string]any{
		"platform": "github",
		"url":      "https://github.com/alice",
	}))
	if first.SortOrder != 0 {
		t.Errorf("first link order = %d, want 0", first.SortOrder)
	}
	if !first.Active {
		t.Error("link should default to active")
	}
	if first.URL != "https://github.com/alice" {
		t.Errorf("url = %q", first.URL)
	}

	second := decodeBody[model.Link](t, doJSON(t, router, "POST", "/api/links", token, map[string]any{
		"platform": "twitter",
		"url":      "https://twitter.com/alice",
	}))
	if second.SortOrder != 1 {
		t.Errorf("second link order = %d, want 1", second.SortOrder)
	}

	del := doJSON(t, router, "DELETE", fmt.Sprintf("/api/links/%d", first.ID), token, nil)
	if del.Code != http.StatusOK {
		t.Fatalf("delete status = %d", del.Code)
	}

	profile = decodeBody[model.Profile](t, doJSON(t, router, "GET", "/api/profile", token, nil))
	if len(profile.Links) != 1 {
		t.Fatalf("got %d links, want 1", len(profile.Links))
	}
	if profile.Links[0].SortOrder != 1 {
		t.Errorf("surviving order = %d, want 1 (gap preserved)", profile.Links[0].SortOrder)
	}
}

func TestCreateLinkValidation(t *testing.T) {
	router := setupTestServer(t)
	token := registerUser(t, router, "alice", "secret1")

	cases := []map[string]any{
		{"platform": "", "url": "https://example.com"},
		{"platform": "myspace", "url": "https://example.com"},
		{"platform": "github", "url": "github.com/alice"}, // no scheme: rejected, not corrected
		{"platform": "github", "url": "ftp://example.com"},
		{"platform": "github", "url": ""},
	}
	for _, body := range cases {
		rec := doJSON(t, router, "POST", "/api/links", token, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("create %v: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestLinkOwnership(t *testing.T) {
	router := setupTestServer(t)
	aliceToken := registerUser(t, router, "alice", "secret1")
	bobToken := registerUser(t, router, "bob", "secret2")

	link := decodeBody[model.Link](t, doJSON(t, router, "POST", "/api/links", aliceToken, map[string]any{
		"platform": "github",
		"url":      "https://github.com/alice",
	}))

	path := fmt.Sprintf("/api/links/%d", link.ID)

	if rec := doJSON(t, router, "PATCH", path, bobToken, map[string]any{"active": false}); rec.Code != http.StatusForbidden {
		t.Errorf("bob patch status = %d, want 403", rec.Code)
	}
	if rec := doJSON(t, router, "DELETE", path, bobToken, nil); rec.Code != http.StatusForbidden {
		t.Errorf("bob delete status = %d, want 403", rec.Code)
	}

	rec := doJSON(t, router, "PATCH", path, aliceToken, map[string]any{"active": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("alice patch status = %d", rec.Code)
	}
	updated := decodeBody[model.Link](t, rec)
	if updated.Active {
		t.Error("expected link to be inactive")
	}

	if rec := doJSON(t, router, "DELETE", path, aliceToken, nil); rec.Code != http.StatusOK {
		t.Errorf("alice delete status = %d, want 200", rec.Code)
	}
}

func TestLinkNotFound(t *testing.T) {
	router := setupTestServer(t)
	token := registerUser(t, router, "alice", "secret1")

	if rec := doJSON(t, router, "PATCH", "/api/links/999", token, map[string]any{"active": false}); rec.Code != http.StatusNotFound {
		t.Errorf("patch status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, router, "DELETE", "/api/links/999", token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, router, "DELETE", "/api/links/abc", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestLinkReorderEndpoint(t *testing.T) {
	router := setupTestServer(t)
	token := registerUser(t, router, "alice", "secret1")

	var ids []int64
	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		l := decodeBody[model.Link](t, doJSON(t, router, "POST", "/api/links", token, map[string]any{
			"platform": "custom",
			"url":      u,
		}))
		ids = append(ids, l.ID)
	}

	rec := doJSON(t, router, "PUT", "/api/links/reorder", token, map[string]any{
		"ids": []int64{ids[2], ids[0], ids[1]},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reorder status = %d, body = %s", rec.Code, rec.Body)
	}
	links := decodeBody[[]model.Link](t, rec)
	want := []int64{ids[2], ids[0], ids[1]}
	for i, l := range links {
		if l.ID != want[i] {
			t.Errorf("links[%d].ID = %d, want %d", i, l.ID, want[i])
		}
	}
}

func TestPublicProfile(t *testing.T) {
	router := setupTestServer(t)
	token := registerUser(t, router, "alice", "secret1")

	doJSON(t, router, "POST", "/api/links", token, map[string]any{
		"platform": "github",
		"url":      "https://github.com/alice",
	})

	// No session needed.
	rec := doJSON(t, router, "GET", "/api/profile/alice", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	profile := decodeBody[model.Profile](t, rec)
	if profile.Username != "alice" {
		t.Errorf("username = %q", profile.Username)
	}
	if len(profile.Links) != 1 {
		t.Errorf("got %d links, want 1", len(profile.Links))
	}

	if rec := doJSON(t, router, "GET", "/api/profile/nobody", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown profile status = %d, want 404", rec.Code)
	}
}

// multipartBody builds a multipart form with text fields plus an optional
// file part, returning body and content type.
func multipartBody(t *testing.T, fields map[string]string, fileField, filename, contentType string, fileBody []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fileField, filename))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(fileBody); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func doMultipart(t *testing.T, router http.Handler, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("PATCH", "/api/profile", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestProfileUpdateFields(t *testing.T) {
	router := setupTestServer(t)
	token := registerUser(t, router, "alice", "secret1")

	body, ct := multipartBody(t, map[string]string{
		"displayName": "Alice A.",
		"bio":         "hello there",
	}, "", "", "", nil)
	rec := doMultipart(t, router, token, body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	user := decodeBody[model.PublicUser](t, rec)
	if user.DisplayName == nil || *user.DisplayName != "Alice A." {
		t.Errorf("display name = %v", user.DisplayName)
	}
	if user.Bio == nil || *user.Bio != "hello there" {
		t.Errorf("bio = %v", user.Bio)
	}

	// Over-long bio is a field-level validation error.
	body, ct = multipartBody(t, map[string]string{"bio": strings.Repeat("x", 501)}, "", "", "", nil)
	if rec := doMultipart(t, router, token, body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("long bio status = %d, want 400", rec.Code)
	}
}

func TestProfileUpdateUsernameTaken(t *testing.T) {
	router := setupTestServer(t)
	registerUser(t, router, "alice", "secret1")
	bobToken := registerUser(t, router, "bob", "secret2")

	body, ct := multipartBody(t, map[string]string{"username": "alice"}, "", "", "", nil)
	if rec := doMultipart(t, router, bobToken, body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	// Keeping your own username is fine.
	body, ct = multipartBody(t, map[string]string{"username": "bob"}, "", "", "", nil)
	if rec := doMultipart(t, router, bobToken, body, ct); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestProfileImageUploadAndDelete(t *testing.T) {
	router := setupTestServer(t)
	token := registerUser(t, router, "alice", "secret1")

	// Deleting before any upload is a 404, not a silent success.
	if rec := doJSON(t, router, "DELETE", "/api/profile/image", token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete without image status = %d, want 404", rec.Code)
	}

	body, ct := multipartBody(t, nil, "profileImage", "avatar.png", "image/png", []byte("png-bytes"))
	rec := doMultipart(t, router, token, body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body)
	}
	user := decodeBody[model.PublicUser](t, rec)
	if user.ProfilePicture == nil || !strings.HasPrefix(*user.ProfilePicture, "/uploads/") {
		t.Fatalf("profile picture = %v", user.ProfilePicture)
	}

	rec = doJSON(t, router, "DELETE", "/api/profile/image", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	user = decodeBody[model.PublicUser](t, rec)
	if user.ProfilePicture != nil {
		t.Errorf("profile picture = %v, want nil", *user.ProfilePicture)
	}
}

func TestProfileImageTooLarge(t *testing.T) {
	router := setupTestServer(t)
	token := registerUser(t, router, "alice", "secret1")

	body, ct := multipartBody(t, nil, "profileImage", "big.png", "image/png", make([]byte, 1<<20+1))
	if rec := doMultipart(t, router, token, body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	// The stored picture reference is untouched.
	profile := decodeBody[model.Profile](t, doJSON(t, router, "GET", "/api/profile", token, nil))
	if profile.ProfilePicture != nil {
		t.Errorf("profile picture = %v, want nil", *profile.ProfilePicture)
	}
}

func TestProfileImageWrongType(t *testing.T) {
	router := setupTestServer(t)
	token := registerUser(t, router, "alice", "secret1")

	body, ct := multipartBody(t, nil, "profileImage", "notes.txt", "text/plain", []byte("hello"))
	if rec := doMultipart(t, router, token, body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPlatformCatalog(t *testing.T) {
	router := setupTestServer(t)

	rec := doJSON(t, router, "GET", "/api/platforms", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var platforms []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &platforms); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(platforms) == 0 {
		t.Error("expected a non-empty catalog")
	}
}

func TestHealth(t *testing.T) {
	router := setupTestServer(t)

	rec := doJSON(t, router, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
