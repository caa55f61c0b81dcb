package router

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/validation"
	"visa-portal/internal/exporter"
	"visa-portal/internal/http/handler"
	"visa-portal/internal/importer"
	"visa-portal/internal/letter"
	"visa-portal/internal/models"
	"visa-portal/internal/service"
	"visa-portal/internal/store/storetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// tokenResolver maps fixed bearer tokens to actors.
type tokenResolver map[string]models.Actor

func (r tokenResolver) ResolveActor(_ context.Context, token string) (models.Actor, error) {
	if a, ok := r[token]; ok {
		return a, nil
	}
	return models.Actor{}, apperrors.NewAuthenticationError("unknown token")
}

type countingRenderer struct{ calls int }

func (r *countingRenderer) Render(context.Context, *models.Application, *models.Meeting) (*letter.Result, error) {
	r.calls++
	return nil, letter.ErrGenerationFailed
}

type testServer struct {
	engine   *gin.Engine
	mem      *storetest.Memory
	renderer *countingRenderer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewTestLogger(t)
	v, err := validation.NewValidator()
	require.NoError(t, err)

	mem := storetest.NewMemory()
	mem.AddMeeting(models.Meeting{
		ID: "m-1", Name: "Annual Assembly 2025", Active: true,
		StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC),
	})
	renderer := &countingRenderer{}

	apps := service.NewApplicationService(service.ApplicationDeps{
		Store: mem, Validator: v, Renderer: renderer, Logger: log,
	})
	rec := importer.NewReconciler(mem, importer.NewStoreMeetingResolver(mem.Meetings()), nil, log)
	transfer := service.NewTransferService(rec, exporter.New(mem.Applications(), mem.Meetings(), log), mem.Audit(), log)

	engine := New(Handlers{
		Applications: handler.NewApplicationHandler(apps, log),
		Admin:        handler.NewAdminHandler(transfer, apps, 5),
		Meetings:     handler.NewMeetingHandler(service.NewMeetingService(mem.Meetings(), log)),
		Health:       handler.NewHealthHandler(),
	}, RouterConfig{
		Auth: tokenResolver{
			"user-token":  {ID: "user-1", Role: models.RoleUser},
			"admin-token": {ID: "admin-1", Role: models.RoleAdmin},
		},
		Logger: log,
	})
	return &testServer{engine: engine, mem: mem, renderer: renderer}
}

func (s *testServer) do(method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/metrics", "", nil).Code)
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/api/v1/applications/mine", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestApplicationLifecycle(t *testing.T) {
	s := newTestServer(t)

	submit := `{"meetingId":"m-1","firstName":"Lena","lastName":"Marsh","email":"lena@example.org","passportNumber":"0012345"}`
	w := s.do(http.MethodPost, "/api/v1/applications", "user-token", bytes.NewBufferString(submit))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var app models.Application
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &app))

	w = s.do(http.MethodGet, "/api/v1/applications/mine", "user-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), app.ID)

	// Pending letters are refused before anything is rendered.
	w = s.do(http.MethodGet, "/api/v1/applications/"+app.ID+"/letter", "user-token", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, s.renderer.calls)

	w = s.do(http.MethodPut, "/api/v1/applications/"+app.ID+"/status", "user-token", bytes.NewBufferString(`{"status":"Approved"}`))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, "/api/v1/applications/"+app.ID+"/status", "admin-token", bytes.NewBufferString(`{"status":"Approved"}`))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPatch, "/api/v1/applications/"+app.ID, "user-token", bytes.NewBufferString(`{"hotelName":"Late Change"}`))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/applications/"+app.ID+"/letter", "user-token", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, s.renderer.calls)

	w = s.do(http.MethodDelete, "/api/v1/applications/"+app.ID, "admin-token", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAdminRoutesRejectUsers(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/v1/admin/search", "/api/v1/admin/meetings/m-1/export"} {
		w := s.do(http.MethodGet, path, "user-token", nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
}

func TestExportIsGzippedWhenAccepted(t *testing.T) {
	s := newTestServer(t)
	s.mem.AddApplication(models.Application{
		ID: "a-1", UserID: "user-1", MeetingID: "m-1", FirstName: "Lena", LastName: "Marsh",
		Email: "lena@example.org", PassportNumber: "0012345", Status: models.StatusApproved,
		CreatedAt: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/meetings/m-1/export?format=csv", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	csv, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(csv), `"=""0012345"""`)
}

func TestMeetingsRoutes(t *testing.T) {
	s := newTestServer(t)
	body := `{"name":"Spring Summit 2026","startDate":"2026-04-01","endDate":"2026-04-03"}`

	w := s.do(http.MethodPost, "/api/v1/meetings", "user-token", bytes.NewBufferString(body))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/meetings", "admin-token", bytes.NewBufferString(body))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/api/v1/meetings", "user-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Spring Summit 2026")
}
