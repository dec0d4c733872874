package routes

import (
	"bytes"
	"cloudnest/media"
	"cloudnest/middleware"
	"cloudnest/ratelimit"
	"cloudnest/repository/memory"
	"cloudnest/services"
	"cloudnest/storage"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type testAPI struct {
	t       *testing.T
	router  *gin.Engine
	objects *storage.Memory
}

func newAPI(t *testing.T, storageLimit int64) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	limiter, err := ratelimit.NewMemory(ratelimit.Config{Requests: 1000, Window: time.Minute})
	require.NoError(t, err)

	objects := storage.NewMemory()
	container := NewServiceContainer(Dependencies{
		Store:     memory.NewStore(),
		Objects:   objects,
		Inspector: media.Noop{},
		Limiter:   limiter,
		Auth: services.AuthConfig{
			JWTSecret:           "routes-test-secret",
			TokenTTL:            time.Hour,
			DefaultStorageLimit: storageLimit,
			BcryptCost:          bcrypt.MinCost,
			AdminEmails:         []string{"admin@example.com"},
		},
		MaxFileSize: 1 << 20,
	})

	return &testAPI{t: t, router: NewRouter(container, nil, 8<<20), objects: objects}
}

func (a *testAPI) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	a.t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) call(method, path, token string, payload any, out any) (int, envelope) {
	a.t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(a.t, err)
		body = bytes.NewReader(raw)
	}

	w := a.do(method, path, token, body, "application/json")
	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil && len(env.Data) > 0 {
		require.NoError(a.t, json.Unmarshal(env.Data, out))
	}
	return w.Code, env
}

func (a *testAPI) login(email string) string {
	a.t.Helper()

	code, _ := a.call(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "name": "Tester", "password": "password123",
	}, nil)
	require.Equal(a.t, http.StatusCreated, code)

	var session struct {
		Token string `json:"token"`
	}
	code, _ = a.call(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	}, &session)
	require.Equal(a.t, http.StatusOK, code)
	require.NotEmpty(a.t, session.Token)
	return session.Token
}

func (a *testAPI) upload(token, folderID string, files map[string]string) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files[]", name)
		require.NoError(a.t, err)
		_, err = part.Write([]byte(content))
		require.NoError(a.t, err)
	}
	if folderID != "" {
		require.NoError(a.t, mw.WriteField("folder_id", folderID))
	}
	require.NoError(a.t, mw.Close())

	return a.do(http.MethodPost, "/api/files/upload", token, &buf, mw.FormDataContentType())
}

type fileView struct {
	ID         string `json:"id"`
	Name       string `json:"original_name"`
	FileSize   int64  `json:"file_size"`
	MimeType   string `json:"mime_type"`
	ShareToken string `json:"share_token"`
}

type folderView struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ChildFileCount   int64  `json:"child_file_count"`
	ChildFolderCount int64  `json:"child_folder_count"`
}

func TestHealth(t *testing.T) {
	a := newAPI(t, 1000)
	w := a.do(http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t, 1000)

	code, env := a.call(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "alice@example.com", "name": "Alice", "password": "short",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	token := a.login("alice@example.com")

	code, _ = a.call(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "alice@example.com", "name": "Alice", "password": "password123",
	}, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = a.call(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	code, _ = a.call(http.MethodGet, "/api/auth/me", token, nil, &me)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Equal(t, "user", me.Role)

	code, _ = a.call(http.MethodGet, "/api/auth/me", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	a := newAPI(t, 1000)
	a.login("bob@example.com")

	raw, _ := json.Marshal(map[string]string{"email": "bob@example.com", "password": "password123"})
	w := a.do(http.MethodPost, "/api/auth/login", "", bytes.NewReader(raw), "application/json")
	require.Equal(t, http.StatusOK, w.Code)

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFolderAndFileLifecycle(t *testing.T) {
	a := newAPI(t, 1000)
	token := a.login("alice@example.com")

	var docs folderView
	code, _ := a.call(http.MethodPost, "/api/folders", token, map[string]string{"name": "Docs"}, &docs)
	require.Equal(t, http.StatusCreated, code)

	code, _ = a.call(http.MethodPost, "/api/folders", token, map[string]string{"name": "Docs"}, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = a.call(http.MethodPost, "/api/folders", token, map[string]string{"name": "this name is far too long"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	w := a.upload(token, docs.ID, map[string]string{"a.txt": strings.Repeat("x", 100)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var folder struct {
		Folder      folderView `json:"folder"`
		Breadcrumbs []struct {
			Name string `json:"name"`
		} `json:"breadcrumbs"`
		Files []fileView `json:"files"`
	}
	code, _ = a.call(http.MethodGet, "/api/folders/"+docs.ID, token, nil, &folder)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, folder.Folder.ChildFileCount)
	require.Len(t, folder.Breadcrumbs, 1)
	assert.Equal(t, "Docs", folder.Breadcrumbs[0].Name)
	require.Len(t, folder.Files, 1)
	file := folder.Files[0]
	assert.Equal(t, "a.txt", file.Name)
	assert.EqualValues(t, 100, file.FileSize)

	var quota struct {
		Used  int64 `json:"used"`
		Limit int64 `json:"limit"`
	}
	code, _ = a.call(http.MethodGet, "/api/auth/quota", token, nil, &quota)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 100, quota.Used)

	w = a.do(http.MethodGet, "/api/files/"+file.ID+"/download", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, strings.Repeat("x", 100), w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	code, env := a.call(http.MethodDelete, "/api/folders/"+docs.ID, token, nil, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, string(env.Error), "not_empty")

	var renamed fileView
	code, _ = a.call(http.MethodPatch, "/api/files/"+file.ID, token, map[string]any{"name": "b.txt", "folder_id": ""}, &renamed)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "b.txt", renamed.Name)

	var root struct {
		Folders []folderView `json:"folders"`
		Files   []fileView   `json:"files"`
	}
	code, _ = a.call(http.MethodGet, "/api/folders?sort=size&order=desc", token, nil, &root)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, root.Files, 1)
	require.Len(t, root.Folders, 1)
	assert.Zero(t, root.Folders[0].ChildFileCount)

	code, _ = a.call(http.MethodDelete, "/api/folders/"+docs.ID, token, nil, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = a.call(http.MethodDelete, "/api/files/"+file.ID, token, nil, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.call(http.MethodGet, "/api/auth/quota", token, nil, &quota)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, quota.Used)
	assert.Zero(t, a.objects.Len())
}

func TestOwnershipIsolation(t *testing.T) {
	a := newAPI(t, 1000)
	alice := a.login("alice@example.com")
	bob := a.login("bob@example.com")

	var docs folderView
	code, _ := a.call(http.MethodPost, "/api/folders", alice, map[string]string{"name": "Docs"}, &docs)
	require.Equal(t, http.StatusCreated, code)

	code, _ = a.call(http.MethodGet, "/api/folders/"+docs.ID, bob, nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.call(http.MethodDelete, "/api/folders/"+docs.ID, bob, nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.call(http.MethodPost, "/api/folders", bob, map[string]string{"name": "X", "parent_id": docs.ID}, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUploadOverQuota(t *testing.T) {
	a := newAPI(t, 150)
	token := a.login("alice@example.com")

	w := a.upload(token, "", map[string]string{"a.txt": strings.Repeat("a", 100)})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.upload(token, "", map[string]string{"b.txt": strings.Repeat("b", 100)})
	require.Equal(t, http.StatusInsufficientStorage, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.JSONEq(t, `{"remaining":50}`, string(env.Error))
	assert.Equal(t, 1, a.objects.Len())
}

func TestPublicShare(t *testing.T) {
	a := newAPI(t, 1000)
	token := a.login("alice@example.com")

	w := a.upload(token, "", map[string]string{"a.txt": "shared content"})
	require.Equal(t, http.StatusCreated, w.Code)
	var uploaded struct {
		Files []fileView `json:"files"`
	}
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, &uploaded))
	fileID := uploaded.Files[0].ID

	var link struct {
		Token string `json:"token"`
	}
	code, _ := a.call(http.MethodPost, "/api/files/"+fileID+"/share", token, map[string]any{"max_access": 2}, &link)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, link.Token, 64)

	var resolved struct {
		Owner struct {
			Name string `json:"name"`
		} `json:"owner"`
		File fileView `json:"file"`
	}
	code, _ = a.call(http.MethodGet, "/api/public/shares/"+link.Token, "", nil, &resolved)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Tester", resolved.Owner.Name)
	assert.Equal(t, fileID, resolved.File.ID)

	w = a.do(http.MethodGet, "/api/public/shares/"+link.Token+"/download", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "shared content", w.Body.String())

	code, _ = a.call(http.MethodGet, "/api/public/shares/"+link.Token, "", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, _ = a.call(http.MethodGet, "/api/public/shares/"+strings.Repeat("0", 64), "", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.call(http.MethodDelete, "/api/files/"+fileID+"/share", token, nil, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.call(http.MethodGet, "/api/public/shares/"+link.Token, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPublicFolderShareHidesChildTokens(t *testing.T) {
	a := newAPI(t, 1000)
	token := a.login("alice@example.com")

	var docs folderView
	code, _ := a.call(http.MethodPost, "/api/folders", token, map[string]string{"name": "Docs"}, &docs)
	require.Equal(t, http.StatusCreated, code)
	w := a.upload(token, docs.ID, map[string]string{"a.txt": "a"})
	require.Equal(t, http.StatusCreated, w.Code)

	var listing struct {
		Files []fileView `json:"files"`
	}
	code, _ = a.call(http.MethodGet, "/api/folders/"+docs.ID, token, nil, &listing)
	require.Equal(t, http.StatusOK, code)
	fileID := listing.Files[0].ID

	code, _ = a.call(http.MethodPost, "/api/files/"+fileID+"/share", token, nil, nil)
	require.Equal(t, http.StatusOK, code)

	var link struct {
		Token string `json:"token"`
	}
	code, _ = a.call(http.MethodPost, "/api/folders/"+docs.ID+"/share", token, map[string]string{"expires_in": "1h"}, &link)
	require.Equal(t, http.StatusOK, code)

	var resolved struct {
		Folder folderView `json:"folder"`
		Files  []fileView `json:"files"`
	}
	code, _ = a.call(http.MethodGet, "/api/public/shares/"+link.Token, "", nil, &resolved)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Docs", resolved.Folder.Name)
	require.Len(t, resolved.Files, 1)
	assert.Empty(t, resolved.Files[0].ShareToken)

	w = a.do(http.MethodGet, "/api/public/shares/"+link.Token+"/download", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	code, _ = a.call(http.MethodPost, "/api/folders/"+docs.ID+"/share", token, map[string]string{"expires_in": "soon"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func uploadedFileID(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var uploaded struct {
		Files []fileView `json:"files"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &uploaded))
	require.Len(t, uploaded.Files, 1)
	return uploaded.Files[0].ID
}

func TestPreviewNeverRendersMarkup(t *testing.T) {
	a := newAPI(t, 1000)
	token := a.login("alice@example.com")

	page := "<html><body><script>fetch('/api/auth/me')</script></body></html>"
	htmlID := uploadedFileID(t, a.upload(token, "", map[string]string{"evil.html": page}))

	w := a.do(http.MethodGet, "/api/files/"+htmlID+"/preview", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment;"))
	assert.Equal(t, "sandbox", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, page, w.Body.String())

	svg := `<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`
	svgID := uploadedFileID(t, a.upload(token, "", map[string]string{"logo.svg": svg}))
	w = a.do(http.MethodGet, "/api/files/"+svgID+"/preview", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment;"))

	textID := uploadedFileID(t, a.upload(token, "", map[string]string{"notes.txt": "plain words"}))
	w = a.do(http.MethodGet, "/api/files/"+textID+"/preview", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "inline;"))
	assert.Equal(t, "sandbox", w.Header().Get("Content-Security-Policy"))

	// public downloads get the same treatment
	var link struct {
		Token string `json:"token"`
	}
	code, _ := a.call(http.MethodPost, "/api/files/"+htmlID+"/share", token, nil, &link)
	require.Equal(t, http.StatusOK, code)
	w = a.do(http.MethodGet, "/api/public/shares/"+link.Token+"/download", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "sandbox", w.Header().Get("Content-Security-Policy"))
}

func TestUploadOverFileSizeLimit(t *testing.T) {
	a := newAPI(t, 4<<20)
	token := a.login("alice@example.com")

	w := a.upload(token, "", map[string]string{"big.bin": strings.Repeat("b", 1<<20+1)})
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "big.bin")
	assert.Zero(t, a.objects.Len())
}

func TestListShares(t *testing.T) {
	a := newAPI(t, 1000)
	alice := a.login("alice@example.com")
	bob := a.login("bob@example.com")

	var docs folderView
	code, _ := a.call(http.MethodPost, "/api/folders", alice, map[string]string{"name": "Docs"}, &docs)
	require.Equal(t, http.StatusCreated, code)
	fileID := uploadedFileID(t, a.upload(alice, "", map[string]string{"a.txt": "a"}))

	code, _ = a.call(http.MethodPost, "/api/folders/"+docs.ID+"/share", alice, nil, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = a.call(http.MethodPost, "/api/files/"+fileID+"/share", alice, nil, nil)
	require.Equal(t, http.StatusOK, code)

	type sharedItem struct {
		Token      string `json:"token"`
		TargetType string `json:"target_type"`
		TargetID   string `json:"target_id"`
		TargetName string `json:"target_name"`
		Usable     bool   `json:"usable"`
	}
	var listed struct {
		Shares []sharedItem `json:"shares"`
		Count  int          `json:"count"`
	}
	code, _ = a.call(http.MethodGet, "/api/shares", alice, nil, &listed)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, listed.Count)
	names := []string{}
	for _, item := range listed.Shares {
		names = append(names, item.TargetName)
		assert.Len(t, item.Token, 64)
		assert.True(t, item.Usable)
	}
	assert.ElementsMatch(t, []string{"Docs", "a.txt"}, names)

	code, _ = a.call(http.MethodGet, "/api/shares?type=folder", alice, nil, &listed)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, listed.Shares, 1)
	assert.Equal(t, docs.ID, listed.Shares[0].TargetID)

	listed.Shares = nil
	code, _ = a.call(http.MethodGet, "/api/shares", bob, nil, &listed)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, listed.Shares)

	code, _ = a.call(http.MethodGet, "/api/shares?type=disk", alice, nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = a.call(http.MethodGet, "/api/shares", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSearch(t *testing.T) {
	a := newAPI(t, 1000)
	token := a.login("alice@example.com")

	code, _ := a.call(http.MethodPost, "/api/folders", token, map[string]string{"name": "Reports"}, nil)
	require.Equal(t, http.StatusCreated, code)
	w := a.upload(token, "", map[string]string{"report.txt": "r"})
	require.Equal(t, http.StatusCreated, w.Code)

	var result struct {
		Folders []folderView `json:"folders"`
		Files   []fileView   `json:"files"`
	}
	code, _ = a.call(http.MethodGet, "/api/search?q=REPORT", token, nil, &result)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, result.Folders, 1)
	assert.Len(t, result.Files, 1)
}

func TestAdminRoutes(t *testing.T) {
	a := newAPI(t, 1000)
	user := a.login("alice@example.com")
	admin := a.login("admin@example.com")

	code, _ := a.call(http.MethodPost, "/api/admin/quota/reconcile", user, nil, nil)
	assert.Equal(t, http.StatusForbidden, code)

	var result struct {
		UsersUpdated int `json:"users_updated"`
	}
	code, _ = a.call(http.MethodPost, "/api/admin/quota/reconcile", admin, nil, &result)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, result.UsersUpdated)

	code, _ = a.call(http.MethodPost, "/api/admin/shares/sweep", admin, nil, nil)
	assert.Equal(t, http.StatusOK, code)
}
