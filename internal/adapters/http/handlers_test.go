package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taskmaster/tracker/internal/adapters/changefeed"
	"github.com/taskmaster/tracker/internal/adapters/docstore"
	"github.com/taskmaster/tracker/internal/adapters/identity"
	"github.com/taskmaster/tracker/internal/application/services"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

const testUserHeader = "X-Test-User"

type testAPI struct {
	echo  *echo.Echo
	tasks *services.TaskStore
	logs  *services.WorkLogStore
	auth  *services.AuthGateway
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	return setupAPIWithLogger(t, logger.NewNop())
}

func setupAPIWithLogger(t *testing.T, nop *logger.Logger) *testAPI {
	t.Helper()
	feed := changefeed.NewLocal()
	t.Cleanup(func() { feed.Close() })
	store := docstore.NewMemoryStore(feed, nop)

	api := &testAPI{
		echo:  echo.New(),
		tasks: services.NewTaskStore(store, time.UTC, nop),
		logs:  services.NewWorkLogStore(store, nop),
	}
	provider := identity.NewLocalProvider(store, config.JWTConfig{
		Secret:         "test-secret",
		ExpiresIn:      time.Hour,
		ResetExpiresIn: time.Minute,
		Issuer:         "tracker-test",
	}, "", nop)
	api.auth = services.NewAuthGateway(provider, nil, nop)

	e := api.echo
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(nop)

	// stands in for the bearer-token middleware
	asUser := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(testUserHeader)
			if id == "" {
				return entities.NewAuthError("test", "MISSING_TOKEN", nil)
			}
			SetCurrentUser(c, &entities.User{ID: id})
			return next(c)
		}
	}

	taskHandler := NewTaskHandler(api.tasks, time.UTC, nil, nop)
	workLogHandler := NewWorkLogHandler(api.logs, nil, nop)
	authHandler := NewAuthHandler(api.auth, nil, nop)

	v1 := e.Group("/api/v1")
	v1.POST("/auth/sign-up", authHandler.SignUp)
	v1.POST("/auth/sign-in", authHandler.SignIn)
	v1.POST("/auth/sign-out", authHandler.SignOut)
	v1.GET("/auth/google", authHandler.GoogleSignIn)
	v1.GET("/auth/state", authHandler.StreamAuthState)

	tasks := v1.Group("/tasks", asUser)
	tasks.POST("", taskHandler.CreateTask)
	tasks.GET("", taskHandler.ListTasks)
	tasks.GET("/stream", taskHandler.StreamTasks)
	tasks.GET("/dates", taskHandler.ListDates)
	tasks.PATCH("/:id", taskHandler.UpdateTask)
	tasks.DELETE("/:id", taskHandler.DeleteTask)

	logs := v1.Group("/work-logs", asUser)
	logs.POST("", workLogHandler.CreateWorkLog)
	logs.GET("", workLogHandler.ListWorkLogs)
	logs.DELETE("/:id", workLogHandler.DeleteWorkLog)

	return api
}

func (api *testAPI) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	rec := httptest.NewRecorder()
	api.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestTaskHandler_CreateAndList(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/tasks", "u1", `{"title":"  Buy milk ","date":"2024-03-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[entities.Task](t, rec)
	assert.Equal(t, "Buy milk", created.Title)
	assert.Equal(t, "u1", created.OwnerID)
	assert.Equal(t, "2024-03-15", created.TaskDate.Format("2006-01-02"))

	rec = api.do(t, http.MethodGet, "/api/v1/tasks?date=2024-03-15", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entities.Task](t, rec), 1)

	rec = api.do(t, http.MethodGet, "/api/v1/tasks?date=2024-03-15", "u2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]entities.Task](t, rec))
}

func TestHandlers_LogEachCreateOnce(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	api := setupAPIWithLogger(t, &logger.Logger{SugaredLogger: zap.New(core).Sugar()})

	rec := api.do(t, http.MethodPost, "/api/v1/tasks", "u1", `{"title":"Buy milk","date":"2024-03-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = api.do(t, http.MethodPost, "/api/v1/work-logs", "u1", `{"date":"2024-03-15","startTime":"09:00","endTime":"10:00","description":"standup"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	actions := map[string]int{}
	for _, entry := range logs.FilterMessage("User action").All() {
		action, _ := entry.ContextMap()["action"].(string)
		actions[action]++
	}
	assert.Equal(t, map[string]int{"task_created": 1, "work_logged": 1}, actions)
}

func TestTaskHandler_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "should reject a missing title", method: http.MethodPost, path: "/api/v1/tasks", body: `{"date":"2024-03-15"}`},
		{name: "should reject a whitespace title", method: http.MethodPost, path: "/api/v1/tasks", body: `{"title":"   ","date":"2024-03-15"}`},
		{name: "should reject a malformed date", method: http.MethodPost, path: "/api/v1/tasks", body: `{"title":"x","date":"15/03/2024"}`},
		{name: "should reject malformed JSON", method: http.MethodPost, path: "/api/v1/tasks", body: `{"title":`},
		{name: "should reject a malformed day query", method: http.MethodGet, path: "/api/v1/tasks?date=yesterday"},
		{name: "should reject a half-open range", method: http.MethodGet, path: "/api/v1/tasks/dates?from=2024-03-01"},
		{name: "should reject a malformed month", method: http.MethodGet, path: "/api/v1/tasks/dates?month=March"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := setupAPI(t)

			rec := api.do(t, tt.method, tt.path, "u1", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestTaskHandler_RequiresUser(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/tasks", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_TOKEN", decode[ErrorResponse](t, rec).Reason)
}

func TestTaskHandler_UpdateAndDeleteRespectOwnership(t *testing.T) {
	api := setupAPI(t)
	id, err := api.tasks.Add(context.Background(), "Mine", "u1", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)

	rec := api.do(t, http.MethodPatch, "/api/v1/tasks/"+id, "u2", `{"completed":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, "foreign tasks look missing")

	rec = api.do(t, http.MethodDelete, "/api/v1/tasks/"+id, "u2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/v1/tasks/"+id, "u1", `{"completed":true,"dueDate":"2024-03-20T17:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[entities.Task](t, rec)
	assert.True(t, updated.Completed)
	require.NotNil(t, updated.DueDate)

	rec = api.do(t, http.MethodPatch, "/api/v1/tasks/"+id, "u1", `{"clearDueDate":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[entities.Task](t, rec).DueDate)

	rec = api.do(t, http.MethodDelete, "/api/v1/tasks/"+id, "u1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/v1/tasks/"+id, "u1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code, "delete is idempotent")

	rec = api.do(t, http.MethodPatch, "/api/v1/tasks/"+id, "u1", `{"completed":false}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskHandler_ListDates(t *testing.T) {
	api := setupAPI(t)
	for _, day := range []int{3, 3, 17} {
		_, err := api.tasks.Add(context.Background(), "t", "u1", time.Date(2024, 3, day, 9, 0, 0, 0, time.UTC), nil)
		require.NoError(t, err)
	}

	rec := api.do(t, http.MethodGet, "/api/v1/tasks/dates?month=2024-03", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2024-03-03", "2024-03-17"}, decode[DatesResponse](t, rec).Dates)

	rec = api.do(t, http.MethodGet, "/api/v1/tasks/dates?from=2024-03-10&to=2024-03-31", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2024-03-17"}, decode[DatesResponse](t, rec).Dates)
}

func TestWorkLogHandler(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/work-logs", "u1", `{"date":"2024-03-15","startTime":"09:00","endTime":"17:30","description":"client work"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[entities.WorkLog](t, rec)

	rec = api.do(t, http.MethodPost, "/api/v1/work-logs", "u1", `{"date":"2024-03-15","startTime":"9am","endTime":"17:30","description":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/work-logs", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[services.WorkLogSummary](t, rec)
	assert.Equal(t, 1, summary.Count)
	assert.Equal(t, "8h 30m", summary.TotalFormatted)

	rec = api.do(t, http.MethodDelete, "/api/v1/work-logs/"+entry.ID, "u2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/v1/work-logs/"+entry.ID, "u1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/work-logs", "u1", "")
	assert.Equal(t, 0, decode[services.WorkLogSummary](t, rec).Count)
}

func TestAuthHandler_SignUpSignInSignOut(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/auth/sign-up", "", `{"email":"ada@example.com","password":"secret1","displayName":"Ada"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	creds := decode[entities.Credentials](t, rec)
	assert.Equal(t, "Ada", creds.User.DisplayName)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/sign-up", "", `{"email":"not-an-email","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/sign-in", "", `{"email":"ada@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_PASSWORD", decode[ErrorResponse](t, rec).Reason)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/sign-in", "", `{"email":"ada@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	signedIn := decode[entities.Credentials](t, rec)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign-out", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signedIn.IDToken)
	out := httptest.NewRecorder()
	api.echo.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code, out.Body.String())

	rec = api.do(t, http.MethodPost, "/api/v1/auth/sign-out", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_GoogleNotConfigured(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/auth/google", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "PROVIDER_NOT_CONFIGURED", decode[ErrorResponse](t, rec).Reason)
}

// readEvent returns the name and data of the next server-sent event
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			return event, data
		}
	}
}

func openStream(t *testing.T, srv *httptest.Server, path, user string) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))
	return bufio.NewReader(resp.Body)
}

func TestTaskHandler_StreamTasks(t *testing.T) {
	api := setupAPI(t)
	srv := httptest.NewServer(api.echo)
	t.Cleanup(srv.Close)

	events := openStream(t, srv, "/api/v1/tasks/stream?date=2024-03-15", "u1")

	event, data := readEvent(t, events)
	assert.Equal(t, "tasks", event)
	assert.Equal(t, "[]", data)

	_, err := api.tasks.Add(context.Background(), "Live", "u1", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)

	_, data = readEvent(t, events)
	var tasks []entities.Task
	require.NoError(t, json.Unmarshal([]byte(data), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "Live", tasks[0].Title)
}

func TestAuthHandler_StreamAuthState(t *testing.T) {
	api := setupAPI(t)
	srv := httptest.NewServer(api.echo)
	t.Cleanup(srv.Close)

	creds, err := api.auth.SignUp(context.Background(), "ada@example.com", "secret1", "")
	require.NoError(t, err)

	anonymous := openStream(t, srv, "/api/v1/auth/state?token=bogus", "")
	_, data := readEvent(t, anonymous)
	assert.JSONEq(t, `{"user":null}`, data)

	events := openStream(t, srv, "/api/v1/auth/state?token="+creds.IDToken, "")
	event, data := readEvent(t, events)
	assert.Equal(t, "auth-state", event)
	state := decodeState(t, data)
	require.NotNil(t, state.User)
	assert.Equal(t, creds.User.ID, state.User.ID)

	require.NoError(t, api.auth.SignOut(context.Background(), creds.IDToken))
	_, data = readEvent(t, events)
	assert.Nil(t, decodeState(t, data).User)
}

func decodeState(t *testing.T, data string) AuthStateEvent {
	t.Helper()
	var state AuthStateEvent
	require.NoError(t, json.Unmarshal([]byte(data), &state))
	return state
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "should map validation to 400", err: entities.NewValidationError("op", entities.ErrEmptyTitle), want: http.StatusBadRequest},
		{name: "should map auth to 401", err: entities.NewAuthError("op", "INVALID_PASSWORD", nil), want: http.StatusUnauthorized},
		{name: "should map not found to 404", err: entities.NewNotFoundError("op", "tasks", "x"), want: http.StatusNotFound},
		{name: "should map transport to 502", err: entities.NewTransportError("op", context.DeadlineExceeded), want: http.StatusBadGateway},
		{name: "should map anything else to 500", err: context.Canceled, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
