package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/RefurbishedContent/mysounds-sub002/internal/auth"
	"github.com/RefurbishedContent/mysounds-sub002/internal/client"
	"github.com/RefurbishedContent/mysounds-sub002/internal/handler"
	"github.com/RefurbishedContent/mysounds-sub002/internal/middleware"
	"github.com/RefurbishedContent/mysounds-sub002/internal/mixer"
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/internal/render"
	"github.com/RefurbishedContent/mysounds-sub002/internal/service"
	"github.com/RefurbishedContent/mysounds-sub002/internal/store"
	ws "github.com/RefurbishedContent/mysounds-sub002/internal/websocket"
	"github.com/RefurbishedContent/mysounds-sub002/internal/worker"
)

const (
	testJWTSecret = "test-secret-for-e2e"
	testUserID    = "test-user-123"
	redisAddr     = "localhost:6379"
	redisTestDB   = 15 // use DB 15 for tests to avoid collision
)

// testApp holds all components needed for testing
type testApp struct {
	app       *fiber.App
	redis     *redis.Client
	inspector *asynq.Inspector
	projects  *memProjects
	credits   *memCredits
	worker    *worker.RenderWorker
	verifier  *auth.HMACVerifier

	// dir is both the artifact storage root and the base for relative track URLs
	dir string
}

// setupApp creates a Fiber app wired like cmd/server, with in-memory projects
// and credits, local artifact storage, and sources read from disk.
// Tests are skipped when Redis is not running.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisTestDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { redisClient.Close() })

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr, DB: redisTestDB}
	asynqClient := asynq.NewClient(redisOpt)
	t.Cleanup(func() { asynqClient.Close() })
	inspector := asynq.NewInspector(redisOpt)
	t.Cleanup(func() {
		inspector.DeleteAllPendingTasks(service.QueueRender)
		inspector.Close()
	})

	validate := validator.New()

	dir := t.TempDir()
	storage, err := client.NewLocalStorage(dir, "http://localhost/files")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	projects := &memProjects{projects: make(map[string]*model.Project)}
	credits := &memCredits{balance: make(map[string]int)}

	renderService := service.NewRenderService(redisClient, asynqClient, time.Minute)

	hub := ws.NewHub()
	go hub.Run()

	controller := render.NewController(render.Dependencies{
		Projects:  projects,
		Credits:   credits,
		Jobs:      renderService,
		Artifacts: storage,
		Mixer:     mixer.New(client.SourceFetcher{Files: client.FileFetcher{BaseDir: dir}}, 2),
	})
	renderWorker := worker.NewRenderWorker(renderService, controller, hub, time.Minute)

	verifier := auth.NewHMACVerifier(testJWTSecret)
	authMiddleware := middleware.NewAuthMiddleware(verifier)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	renderHandler := handler.NewRenderHandler(renderService, validate)
	projectHandler := handler.NewProjectHandler(projects, validate)
	uploadHandler := handler.NewUploadHandler(storage)

	app := fiber.New(fiber.Config{
		BodyLimit: 110 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":      true,
				"database":   false,
				"r2":         false,
				"transcoder": false,
				"auth":       true,
			},
		})
	})
	app.Static("/files", storage.Dir())

	api := app.Group("/api", authMiddleware.Authenticate())

	// Use very high rate limits so tests don't get blocked
	renderRoutes := api.Group("/render")
	renderRoutes.Post("/start", rateLimiter.RenderLimit(10000), renderHandler.Start)
	renderRoutes.Get("/status/:jobId", renderHandler.Status)
	renderRoutes.Get("/log/:jobId", renderHandler.Log)
	renderRoutes.Get("/result/:jobId", renderHandler.Result)
	renderRoutes.Get("/presets", renderHandler.Presets)

	projectRoutes := api.Group("/projects")
	projectRoutes.Get("/:projectId", projectHandler.Get)
	projectRoutes.Put("/:projectId", projectHandler.Put)

	upload := api.Group("/upload", rateLimiter.UploadLimit(10000))
	upload.Post("/track", uploadHandler.Track)

	return &testApp{
		app:       app,
		redis:     redisClient,
		inspector: inspector,
		projects:  projects,
		credits:   credits,
		worker:    renderWorker,
		verifier:  verifier,
		dir:       dir,
	}
}

// memProjects is an in-memory project store keyed by project id
type memProjects struct {
	mu       sync.Mutex
	projects map[string]*model.Project
}

func (m *memProjects) ReadProject(_ context.Context, projectID, userID string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok || p.UserID != userID {
		return nil, store.ErrProjectNotFound
	}
	return p, nil
}

func (m *memProjects) SaveProject(_ context.Context, project *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project.ID] = project
	return nil
}

// memCredits is an in-memory ledger with one reservation per job
type memCredits struct {
	mu       sync.Mutex
	balance  map[string]int
	reserved map[string]int
}

func (m *memCredits) ReserveCredits(_ context.Context, userID, jobID string, amount int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reserved == nil {
		m.reserved = make(map[string]int)
	}
	if _, ok := m.reserved[jobID]; ok {
		return true, nil
	}
	if m.balance[userID] < amount {
		return false, nil
	}
	m.balance[userID] -= amount
	m.reserved[jobID] = amount
	return true, nil
}

func (m *memCredits) RefundCredits(_ context.Context, userID, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount, ok := m.reserved[jobID]; ok {
		m.balance[userID] += amount
		delete(m.reserved, jobID)
	}
	return nil
}

func (m *memCredits) Balance(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance[userID]
}

func (m *memCredits) Grant(userID string, amount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance[userID] += amount
}

// pendingTask finds the queued render task of jobID
func (ta *testApp) pendingTask(t *testing.T, jobID string) *asynq.Task {
	t.Helper()
	tasks, err := ta.inspector.ListPendingTasks(service.QueueRender, asynq.PageSize(1000))
	if err != nil {
		t.Fatalf("failed to list pending tasks: %v", err)
	}
	for _, info := range tasks {
		var payload service.RenderTaskPayload
		if err := json.Unmarshal(info.Payload, &payload); err != nil {
			continue
		}
		if payload.JobID == jobID {
			return asynq.NewTask(info.Type, info.Payload)
		}
	}
	t.Fatalf("no pending task for job %s", jobID)
	return nil
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T, ta *testApp) string {
	t.Helper()
	return tokenFor(t, ta, testUserID)
}

func tokenFor(t *testing.T, ta *testApp, userID string) string {
	t.Helper()
	token, err := ta.verifier.Issue(userID, userID+"@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, ta *testApp, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequest(ta.app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t, ta),
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
