package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/inkdex/inkdex/internal/archive"
	"github.com/inkdex/inkdex/internal/auth"
	"github.com/inkdex/inkdex/internal/common"
	"github.com/inkdex/inkdex/internal/images"
	"github.com/inkdex/inkdex/internal/library"
	"github.com/inkdex/inkdex/internal/storage"
	"github.com/inkdex/inkdex/internal/tasks"
	"github.com/inkdex/inkdex/internal/upload"
	"github.com/inkdex/inkdex/pkg/config"
	"github.com/inkdex/inkdex/pkg/types"
	"github.com/inkdex/inkdex/pkg/utils"
)

type apiFixture struct {
	server *httptest.Server
	db     *common.Database
	token  string
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	db := common.FromGorm(gdb)
	require.NoError(t, db.Migrate())

	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	media := storage.NewMediaStore(blobs, t.TempDir())

	runner := tasks.NewRunner(1, 1)
	runner.Close()

	cfg := config.LoadFromEnv()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.JWTExpiration = time.Hour
	cfg.Auth.BCryptCost = bcrypt.MinCost

	normalizer := images.NewNormalizer(media)
	services := &Services{
		Auth:    auth.NewService(db, nil, media, normalizer, &cfg.Auth),
		Library: library.NewService(db, media, normalizer, runner, cfg.Media.MaxPageLimit),
		Upload:  upload.NewService(db, media, normalizer, archive.NewExtractor(), runner),
	}

	hashed, err := utils.HashPassword("password123", bcrypt.MinCost)
	require.NoError(t, err)
	admin := &types.User{Username: "admin", Email: "admin@example.com", Password: hashed, Role: types.RoleAdmin}
	require.NoError(t, gdb.Create(admin).Error)

	token, err := utils.GenerateJWT(admin.ID, cfg.Auth.JWTSecret, cfg.Auth.JWTExpiration)
	require.NoError(t, err)

	server := httptest.NewServer(SetupRouter(cfg, services))
	t.Cleanup(server.Close)

	return &apiFixture{server: server, db: db, token: token}
}

func (f *apiFixture) request(t *testing.T, method, path string, body io.Reader, contentType string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]interface{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &payload))
	}
	return resp, payload
}

func (f *apiFixture) jsonRequest(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return f.request(t, method, path, bytes.NewReader(data), "application/json")
}

func multipartImages(t *testing.T, names ...string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for i, name := range names {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="payload"; filename="%s"`, name)}
		header["Content-Type"] = []string{"image/png"}
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		require.NoError(t, imaging.Encode(part, imaging.New(20, 30, color.NRGBA{R: uint8(50 * (i + 1)), A: 255}), imaging.PNG))
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func dataField(payload map[string]interface{}) map[string]interface{} {
	data, _ := payload["data"].(map[string]interface{})
	return data
}

func TestHealthEndpoint(t *testing.T) {
	f := setupAPI(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadEndpointsRequireAuth(t *testing.T) {
	f := setupAPI(t)

	resp, err := http.Post(f.server.URL+"/api/v1/upload/begin", "application/json", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// TestUploadLifecycle drives a full create flow over HTTP: manga, begin,
// add pages, commit, then reads the chapter back.
func TestUploadLifecycle(t *testing.T) {
	f := setupAPI(t)

	// Create a manga
	resp, payload := f.jsonRequest(t, http.MethodPost, "/api/v1/manga", map[string]interface{}{
		"title": "HTTP Manga", "description": "d", "author": "a", "artist": "a", "status": "ongoing",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	mangaID := dataField(payload)["id"].(string)

	// Begin a session
	resp, payload = f.jsonRequest(t, http.MethodPost, "/api/v1/upload/begin", map[string]interface{}{
		"manga_id": mangaID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionID := dataField(payload)["id"].(string)

	// Stage two pages
	body, contentType := multipartImages(t, "001.png", "002.png")
	resp, payload = f.request(t, http.MethodPost, "/api/v1/upload/"+sessionID, body, contentType)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created, ok := payload["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, created, 2)

	first := created[0].(map[string]interface{})["id"].(string)
	second := created[1].(map[string]interface{})["id"].(string)

	// GET returns the session with its blobs
	resp, payload = f.request(t, http.MethodGet, "/api/v1/upload/"+sessionID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	blobs := dataField(payload)["blobs"].([]interface{})
	assert.Len(t, blobs, 2)

	// Commit in reverse order creates the chapter with 201
	resp, payload = f.jsonRequest(t, http.MethodPost, "/api/v1/upload/"+sessionID+"/commit", map[string]interface{}{
		"page_order": []string{second, first},
		"chapter_draft": map[string]interface{}{
			"name": "Chapter 1", "scan_group": "group", "number": 1,
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	chapter := dataField(payload)
	assert.Equal(t, float64(2), chapter["length"])

	// The session is gone afterwards
	resp, payload = f.request(t, http.MethodGet, "/api/v1/upload/"+sessionID, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Session not found", payload["error"])

	// The chapter shows up in the catalogue
	resp, payload = f.request(t, http.MethodGet, "/api/v1/manga/"+mangaID+"/chapters", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chapters := payload["data"].([]interface{})
	assert.Len(t, chapters, 1)
}

func TestUploadErrorContracts(t *testing.T) {
	f := setupAPI(t)

	resp, payload := f.jsonRequest(t, http.MethodPost, "/api/v1/manga", map[string]interface{}{
		"title": "M", "description": "d", "author": "a", "artist": "a", "status": "ongoing",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	mangaID := dataField(payload)["id"].(string)

	resp, payload = f.jsonRequest(t, http.MethodPost, "/api/v1/upload/begin", map[string]interface{}{
		"manga_id": mangaID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionID := dataField(payload)["id"].(string)

	t.Run("unknown manga 404", func(t *testing.T) {
		resp, payload := f.jsonRequest(t, http.MethodPost, "/api/v1/upload/begin", map[string]interface{}{
			"manga_id": "00000000-0000-0000-0000-000000000001",
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Manga not found", payload["error"])
	})

	t.Run("empty commit 400", func(t *testing.T) {
		resp, payload := f.jsonRequest(t, http.MethodPost, "/api/v1/upload/"+sessionID+"/commit", map[string]interface{}{
			"page_order": []string{},
			"chapter_draft": map[string]interface{}{
				"name": "c", "scan_group": "g", "number": 1,
			},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "At least one page needs to be provided", payload["error"])
	})

	t.Run("foreign blob in slice 400", func(t *testing.T) {
		resp, payload := f.jsonRequest(t, http.MethodPost, "/api/v1/upload/"+sessionID+"/slice",
			[]string{"00000000-0000-0000-0000-000000000002"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Some pages don't belong to this session", payload["error"])
	})

	t.Run("remove missing blob 400", func(t *testing.T) {
		resp, payload := f.request(t, http.MethodDelete,
			"/api/v1/upload/"+sessionID+"/00000000-0000-0000-0000-000000000003", nil, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "The blob doesn't exist in the session", payload["error"])
	})

	t.Run("delete session returns OK then 404", func(t *testing.T) {
		resp, payload := f.request(t, http.MethodDelete, "/api/v1/upload/"+sessionID, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK", payload["message"])

		resp, _ = f.request(t, http.MethodDelete, "/api/v1/upload/"+sessionID, nil, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestPublicCatalogueEndpoints(t *testing.T) {
	f := setupAPI(t)

	resp, _ := f.jsonRequest(t, http.MethodPost, "/api/v1/manga", map[string]interface{}{
		"title": "Public", "description": "d", "author": "a", "artist": "a", "status": "ongoing",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// No auth header on reads
	plain, err := http.Get(f.server.URL + "/api/v1/manga?title=pub")
	require.NoError(t, err)
	defer plain.Body.Close()
	assert.Equal(t, http.StatusOK, plain.StatusCode)

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(plain.Body).Decode(&payload))
	results := payload["data"].([]interface{})
	assert.Len(t, results, 1)
	require.NotNil(t, payload["pagination"])

	settings, err := http.Get(f.server.URL + "/api/v1/settings")
	require.NoError(t, err)
	defer settings.Body.Close()
	assert.Equal(t, http.StatusOK, settings.StatusCode)
}

func TestAuthEndpoints(t *testing.T) {
	f := setupAPI(t)

	resp, payload := f.jsonRequest(t, http.MethodPost, "/api/v1/auth/login", map[string]interface{}{
		"username": "admin", "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := dataField(payload)
	assert.Equal(t, "bearer", token["token_type"])
	assert.NotEmpty(t, token["token"])

	resp, payload = f.request(t, http.MethodGet, "/api/v1/auth/me", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "admin", dataField(payload)["username"])

	resp, _ = f.jsonRequest(t, http.MethodPost, "/api/v1/auth/login", map[string]interface{}{
		"username": "admin", "password": "wrong",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
