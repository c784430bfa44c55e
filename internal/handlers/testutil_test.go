package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/wildatlas/backend/internal/config"
	"github.com/wildatlas/backend/internal/database"
	"github.com/wildatlas/backend/internal/middleware"
	"github.com/wildatlas/backend/internal/models"
	"github.com/wildatlas/backend/internal/services"
	"github.com/wildatlas/backend/pkg/logger"
	"github.com/wildatlas/backend/pkg/utils"
	"gorm.io/gorm"
)

const (
	testAdminKey     = "machine-admin-key"
	testLegacyToken  = "legacy-static-admin-token"
	testMediaBaseURL = "http://cdn.test/media"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

// fakeMediaStore keeps uploaded objects in memory and records deletions.
type fakeMediaStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{objects: map[string][]byte{}}
}

func (f *fakeMediaStore) Upload(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectName] = data
	return nil
}

func (f *fakeMediaStore) Delete(_ context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectName)
	f.deleted = append(f.deleted, objectName)
	return nil
}

func (f *fakeMediaStore) objectNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.objects))
	for name := range f.objects {
		names = append(names, name)
	}
	return names
}

func (f *fakeMediaStore) deletedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupTestEnvWithStore(t, nil)
}

func setupTestEnvWithStore(t *testing.T, store MediaStore) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 168)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	adminCfg := config.AdminConfig{
		APIKey:      testAdminKey,
		LegacyToken: testLegacyToken,
	}

	auditService := services.NewAuditService(db)
	authHandler := NewAuthHandler(db, auditService)
	animalsHandler := NewAnimalsHandler(db, store, auditService, testMediaBaseURL)
	authMiddleware := middleware.NewAuthMiddleware(db, adminCfg)

	app := fiber.New(fiber.Config{BodyLimit: 50 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/version", GetVersion)

	userRoutes := api.Group("/users")
	userRoutes.Post("/register", authHandler.Register)
	userRoutes.Post("/login", authHandler.Login)
	userRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	animalRoutes := api.Group("/animals")
	animalRoutes.Get("/", animalsHandler.List)
	animalRoutes.Get("/:id", animalsHandler.Get)
	animalRoutes.Post("/", authMiddleware.RequireAdmin, animalsHandler.Create)
	animalRoutes.Put("/:id", authMiddleware.RequireAdmin, animalsHandler.Update)
	animalRoutes.Delete("/:id", authMiddleware.RequireAdmin, animalsHandler.Delete)

	return &testEnv{app: app, db: db}
}

func createTestUser(t *testing.T, db *gorm.DB, name, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func createTestAnimal(t *testing.T, db *gorm.DB, name string, habitat models.Habitat) *models.Animal {
	t.Helper()

	featured := true
	animal := &models.Animal{
		Name:      name,
		Habitat:   habitat,
		Type:      habitat.DisplayLabel(),
		Prey:      models.StringList{},
		Predators: models.StringList{},
		Featured:  &featured,
	}
	if err := db.Create(animal).Error; err != nil {
		t.Fatalf("failed creating test animal: %v", err)
	}
	return animal
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func adminKeyHeaders(key string) map[string]string {
	return map[string]string{"x-admin-key": key}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

type formFile struct {
	field    string
	filename string
	content  string
}

func performFormRequest(t *testing.T, app *fiber.App, method, path string, fields map[string]string, headers map[string]string) *http.Response {
	t.Helper()
	return performUploadRequest(t, app, method, path, fields, nil, headers)
}

func performUploadRequest(t *testing.T, app *fiber.App, method, path string, fields map[string]string, files []formFile, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed writing form field %q: %v", key, err)
		}
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.field, file.filename)
		if err != nil {
			t.Fatalf("failed writing form file %q: %v", file.field, err)
		}
		if _, err := part.Write([]byte(file.content)); err != nil {
			t.Fatalf("failed writing form file content %q: %v", file.field, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	requestHeaders["Content-Type"] = writer.FormDataContentType()

	return performRequest(t, app, method, path, &buf, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertErrorResponse(t *testing.T, statusCode int, body map[string]any, expectedStatus int, expectedMessage string) {
	t.Helper()

	if statusCode != expectedStatus {
		t.Fatalf("expected status code %d, got %d", expectedStatus, statusCode)
	}

	success, ok := body["success"].(bool)
	if !ok {
		t.Fatalf("expected success field to be boolean, got %T", body["success"])
	}
	if success {
		t.Fatalf("expected success=false, got %v", body["success"])
	}

	errMessage, ok := body["error"].(string)
	if !ok {
		t.Fatalf("expected error field to be string, got %T", body["error"])
	}
	if errMessage != expectedMessage {
		t.Fatalf("expected error message %q, got %q", expectedMessage, errMessage)
	}
}

func dataObject(t *testing.T, body map[string]any) map[string]any {
	t.Helper()

	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T", body["data"])
	}
	return data
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()

	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("failed counting rows: %v", err)
	}
	return count
}
