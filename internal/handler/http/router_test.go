package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/storage"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/timeutil"
	"github.com/cmlabs-hris/attendance-backend-go/internal/repository/memory"
	attendanceService "github.com/cmlabs-hris/attendance-backend-go/internal/service/attendance"
	authService "github.com/cmlabs-hris/attendance-backend-go/internal/service/auth"
	"github.com/cmlabs-hris/attendance-backend-go/internal/service/file"
	userService "github.com/cmlabs-hris/attendance-backend-go/internal/service/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

type testApp struct {
	handler   http.Handler
	clock     *timeutil.FixedClock
	users     user.UserService
	hub       *sse.Hub
	jwt       jwt.Service
	publicDir string
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	userRepo, attendanceRepo := memory.NewStores()
	clock := timeutil.NewFixedClock(timeutil.At(2025, time.March, 10, 8, 5))
	jwtService := jwt.NewJWTService(handlerTestSecret, "1h")
	m := metrics.New()
	hub := sse.NewHub()

	publicDir := t.TempDir()
	local, err := storage.NewLocalStorage(publicDir, "http://localhost:8080/public")
	require.NoError(t, err)

	users := userService.NewUserService(userRepo)
	engine := attendanceService.NewAttendanceService(attendanceRepo, userRepo, clock, events.NewHubPublisher(hub), m)

	handler := NewRouter(RouterConfig{
		AllowedOrigins:    []string{"http://localhost:3000"},
		PublicDir:         publicDir,
		JWTService:        jwtService,
		Metrics:           m,
		AuthHandler:       NewAuthHandler(authService.NewAuthService(userRepo, jwtService)),
		UserHandler:       NewUserHandler(users),
		AttendanceHandler: NewAttendanceHandler(engine, file.NewFileService(local, 5<<20), jwtService, hub, clock, 5<<20),
	})

	return &testApp{handler: handler, clock: clock, users: users, hub: hub, jwt: jwtService, publicDir: publicDir}
}

func (a *testApp) do(t *testing.T, req *http.Request, token string) (int, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var body envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func (a *testApp) doJSON(t *testing.T, method, path, token string, payload any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return a.do(t, req, token)
}

func (a *testApp) createUser(t *testing.T, name, email, password string, role user.Role) user.UserResponse {
	t.Helper()
	resp, err := a.users.Create(context.Background(), user.CreateUserRequest{Name: name, Email: email, Password: password, Role: string(role)})
	require.NoError(t, err)
	return resp
}

func (a *testApp) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := a.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status)

	var token struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &token))
	return token.AccessToken
}

func photoRequest(t *testing.T, path string, fields map[string]string, withPhoto bool) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withPhoto {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="photo"; filename="selfie.png"`)
		header.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(header)
		require.NoError(t, err)

		img := image.NewRGBA(image.Rect(0, 0, 32, 32))
		img.Set(1, 1, color.RGBA{G: 255, A: 255})
		require.NoError(t, png.Encode(part, img))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func countStoredPhotos(t *testing.T, dir string) int {
	t.Helper()
	count := 0
	require.NoError(t, filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			count++
		}
		return err
	}))
	return count
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t)

	status, body := app.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":             "Employee One",
		"email":            "employee1@example.com",
		"password":         "employee123",
		"confirm_password": "employee123",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, body.Success)

	status, body = app.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": "bad"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)

	status, _ = app.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "employee1@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)

	token := app.login(t, "employee1@example.com", "employee123")

	status, body = app.doJSON(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	var me user.UserResponse
	require.NoError(t, json.Unmarshal(body.Data, &me))
	assert.Equal(t, "EMPLOYEE", me.Role)

	status, _ = app.doJSON(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = app.doJSON(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAttendanceDay(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "Employee One", "employee1@example.com", "employee123", user.RoleEmployee)
	token := app.login(t, "employee1@example.com", "employee123")

	status, body := app.doJSON(t, http.MethodGet, "/api/v1/attendance/validate-check-in", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"allowed":true,"message":"You can check in now"}`, string(body.Data))

	status, body = app.doJSON(t, http.MethodGet, "/api/v1/attendance/incomplete", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "null", string(body.Data))

	status, body = app.do(t, photoRequest(t, "/api/v1/attendance/check-in", nil, false), token)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, attendance.ErrPhotoRequired.Error(), body.Error.Message)

	status, body = app.do(t, photoRequest(t, "/api/v1/attendance/check-in", nil, true), token)
	require.Equal(t, http.StatusCreated, status, body)
	var record attendance.AttendanceResponse
	require.NoError(t, json.Unmarshal(body.Data, &record))
	assert.Equal(t, "2025-03-10", record.Date)
	assert.Contains(t, record.CheckInPhoto, "http://localhost:8080/public/attendance/2025-03-10/")
	assert.Equal(t, 1, countStoredPhotos(t, app.publicDir))

	// Second check-in is rejected and its photo removed
	status, _ = app.do(t, photoRequest(t, "/api/v1/attendance/check-in", nil, true), token)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, 1, countStoredPhotos(t, app.publicDir))

	checkOutPath := fmt.Sprintf("/api/v1/attendance/check-out/%s", record.ID)

	app.clock.Set(timeutil.At(2025, time.March, 10, 16, 0))
	status, body = app.do(t, photoRequest(t, checkOutPath, nil, true), token)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Error.Message, "(current: 7h 55m)")

	app.clock.Set(timeutil.At(2025, time.March, 10, 16, 10))
	status, body = app.doJSON(t, http.MethodGet, "/api/v1/attendance/validate-check-out/"+record.ID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"allowed":true,"message":"You can check out now (worked: 8h 5m)"}`, string(body.Data))

	status, body = app.do(t, photoRequest(t, checkOutPath, nil, true), token)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body.Data, &record))
	assert.Equal(t, attendance.StatusComplete, record.Status)

	status, _ = app.do(t, photoRequest(t, checkOutPath, nil, true), token)
	assert.Equal(t, http.StatusConflict, status)

	status, body = app.doJSON(t, http.MethodGet, "/api/v1/attendance/history?limit=5", token, nil)
	require.Equal(t, http.StatusOK, status)
	var history attendance.ListAttendanceResponse
	require.NoError(t, json.Unmarshal(body.Data, &history))
	assert.Equal(t, int64(1), history.TotalCount)
}

func TestAttendance_AccessControl(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "Admin One", "admin1@example.com", "admin123", user.RoleAdmin)
	alice := app.createUser(t, "Alice", "alice@example.com", "employee123", user.RoleEmployee)
	app.createUser(t, "Bob", "bob@example.com", "employee123", user.RoleEmployee)

	adminToken := app.login(t, "admin1@example.com", "admin123")
	aliceToken := app.login(t, "alice@example.com", "employee123")
	bobToken := app.login(t, "bob@example.com", "employee123")

	// Employees cannot act for others
	status, _ := app.do(t, photoRequest(t, "/api/v1/attendance/check-in", map[string]string{"user_id": alice.ID}, true), bobToken)
	assert.Equal(t, http.StatusForbidden, status)

	// Admins can
	status, body := app.do(t, photoRequest(t, "/api/v1/attendance/check-in", map[string]string{"user_id": alice.ID}, true), adminToken)
	require.Equal(t, http.StatusCreated, status)
	var record attendance.AttendanceResponse
	require.NoError(t, json.Unmarshal(body.Data, &record))
	assert.Equal(t, alice.ID, record.UserID)

	status, _ = app.doJSON(t, http.MethodGet, "/api/v1/attendance/"+record.ID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = app.doJSON(t, http.MethodGet, "/api/v1/attendance/"+record.ID, aliceToken, nil)
	assert.Equal(t, http.StatusOK, status)

	app.clock.Set(timeutil.At(2025, time.March, 10, 17, 0))
	status, _ = app.do(t, photoRequest(t, "/api/v1/attendance/check-out/"+record.ID, nil, true), bobToken)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = app.doJSON(t, http.MethodGet, "/api/v1/attendance", bobToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, body = app.doJSON(t, http.MethodGet, "/api/v1/attendance?status=open", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	var list attendance.ListAttendanceResponse
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list.Attendances, 1)
	require.NotNil(t, list.Attendances[0].User)
	assert.Equal(t, "Alice", list.Attendances[0].User.Name)

	status, _ = app.doJSON(t, http.MethodGet, "/api/v1/attendance?status=bogus", adminToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = app.doJSON(t, http.MethodGet, "/api/v1/attendance/user/00000000-0000-0000-0000-000000000000", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Acting for a user that does not exist writes nothing and keeps no photo
	status, _ = app.do(t, photoRequest(t, "/api/v1/attendance/check-in", map[string]string{"user_id": "00000000-0000-0000-0000-000000000000"}, true), adminToken)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 1, countStoredPhotos(t, app.publicDir))

	status, _ = app.doJSON(t, http.MethodDelete, "/api/v1/attendance/"+record.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = app.doJSON(t, http.MethodGet, "/api/v1/attendance/"+record.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = app.doJSON(t, http.MethodGet, "/api/v1/attendance/not-a-uuid", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUserRoutes(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "Admin One", "admin1@example.com", "admin123", user.RoleAdmin)
	adminToken := app.login(t, "admin1@example.com", "admin123")

	status, body := app.doJSON(t, http.MethodPost, "/api/v1/users/", adminToken, map[string]string{
		"name": "Employee Two", "email": "employee2@example.com", "password": "employee123",
	})
	require.Equal(t, http.StatusCreated, status)
	var created user.UserResponse
	require.NoError(t, json.Unmarshal(body.Data, &created))

	status, _ = app.doJSON(t, http.MethodPost, "/api/v1/users/", adminToken, map[string]string{
		"name": "Dup", "email": "employee2@example.com", "password": "employee123",
	})
	assert.Equal(t, http.StatusConflict, status)

	employeeToken := app.login(t, "employee2@example.com", "employee123")
	status, _ = app.doJSON(t, http.MethodGet, "/api/v1/users/employees", employeeToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = app.doJSON(t, http.MethodGet, "/api/v1/users/"+created.ID, employeeToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = app.doJSON(t, http.MethodPut, "/api/v1/users/"+created.ID, adminToken, map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	status, body = app.doJSON(t, http.MethodPut, "/api/v1/users/"+created.ID, adminToken, map[string]string{"name": "Renamed"})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body.Data), "Renamed")

	status, _ = app.doJSON(t, http.MethodDelete, "/api/v1/users/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = app.doJSON(t, http.MethodGet, "/api/v1/users/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStream_EndsWhenHubCloses(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.handler)
	defer srv.Close()

	token, _, err := app.jwt.GenerateSSEToken("user-1")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/v1/attendance/stream?token=" + token)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	app.hub.Close()

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, reader)
		done <- err
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream stayed open after the hub closed")
	}
}
