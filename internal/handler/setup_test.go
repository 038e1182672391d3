package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/notesync/internal/handler"
	"github.com/xxxsen/notesync/internal/kvstore"
	"github.com/xxxsen/notesync/internal/middleware"
	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/notify"
	"github.com/xxxsen/notesync/internal/pkg/jwt"
	"github.com/xxxsen/notesync/internal/schedule"
	"github.com/xxxsen/notesync/internal/service"
	"github.com/xxxsen/notesync/internal/toolbox"
	"github.com/xxxsen/notesync/internal/wiki"
)

const (
	testCommunity = "testsub"
	testSecret    = "test-secret"
)

type stubAPI struct {
	mu      sync.Mutex
	created []model.NewNativeNote
}

func (s *stubAPI) CreateNote(ctx context.Context, note model.NewNativeNote) (*model.NativeNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, note)
	return &model.NativeNote{User: note.Username, Note: note.Note, Label: note.Label}, nil
}

func (s *stubAPI) RecentNotes(ctx context.Context, community, username, filter string, limit int) ([]model.NativeNote, error) {
	return nil, nil
}

func (s *stubAPI) GetUser(ctx context.Context, username string) (*model.NativeUser, error) {
	return &model.NativeUser{ID: "t2_" + username, Username: username}, nil
}

func (s *stubAPI) GetPermalink(ctx context.Context, contentID string) (string, error) {
	return "", nil
}

type testEnv struct {
	router  http.Handler
	legacy  *toolbox.Client
	queue   *service.WorkQueue
	api     *stubAPI
	cleanup func()
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kv := kvstore.NewMemory()
	pages := wiki.NewMemory()
	legacy := toolbox.NewClient(pages, 4, time.Minute)
	api := &stubAPI{}
	scheduler := schedule.NewCronScheduler()

	queue := service.NewWorkQueue(kv)
	tracker := service.NewProgressTracker(kv, pages, testCommunity)
	mapping := service.NewMappingStore(kv)
	phases := service.NewPhaseStore(kv)
	settings := service.NewSettingsService(kv, tracker)
	reconciler := service.NewReconciler(api, tracker, time.UTC)
	coordinator := service.NewCoordinator(service.CoordinatorConfig{Community: testCommunity}, queue, tracker, mapping, phases,
		legacy, reconciler, scheduler, notify.NewLog(), settings)
	transfer := service.NewTransferService(testCommunity, queue, tracker, mapping, phases, legacy, coordinator, settings)
	syncer := service.NewSyncService(service.SyncConfig{Community: testCommunity, AppUsername: "notesync-bot"}, kv, api, legacy,
		tracker, mapping, settings, reconciler)
	install := service.NewInstallService(testCommunity, "", queue, tracker, mapping, legacy, scheduler, coordinator)

	scheduler.Register(noopJob{name: service.JobTransferUsers})
	scheduler.Register(noopJob{name: service.JobUpdateWikiPage})

	deps := handler.RouterDeps{
		Transfer:  handler.NewTransferHandler(transfer),
		Settings:  handler.NewSettingsHandler(settings),
		Events:    handler.NewEventHandler(install, syncer),
		Community: testCommunity,
		JWTSecret: []byte(testSecret),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return &testEnv{router: engine, legacy: legacy, queue: queue, api: api, cleanup: scheduler.Stop}
}

type noopJob struct {
	name string
}

func (j noopJob) Name() string                  { return j.name }
func (j noopJob) Run(ctx context.Context) error { return nil }

type apiResult struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func token(t *testing.T, username, community string) string {
	t.Helper()
	tok, err := jwt.GenerateToken(username, community, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) call(t *testing.T, method, path, tok string, body interface{}) apiResult {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var result apiResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	return result
}
