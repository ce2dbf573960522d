package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eion/userdesk/internal/health"
	"github.com/eion/userdesk/internal/upstream"
	"github.com/eion/userdesk/internal/userapi"
	"github.com/eion/userdesk/internal/userform"
	"github.com/eion/userdesk/internal/userlist"
)

const (
	testDebounce    = 10 * time.Millisecond
	testSubmitDelay = 20 * time.Millisecond
)

type fixture struct {
	shell  *Shell
	router *gin.Engine
	client *userapi.Client
}

func newFixture(t *testing.T, checks *health.Manager) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstreamRouter := gin.New()
	upstream.NewHandlers(upstream.NewMemoryStore(upstream.DefaultSeed()), zap.NewNop()).
		RegisterRoutes(upstreamRouter.Group(""))
	server := httptest.NewServer(upstreamRouter)
	t.Cleanup(server.Close)

	client := userapi.NewClient(server.URL+"/users", zap.NewNop())
	s := New(client, client, Config{
		List:        userlist.Config{MaxCount: 10, DebounceWindow: testDebounce},
		SubmitDelay: testSubmitDelay,
	}, checks, zap.NewNop())
	t.Cleanup(s.Close)
	require.NoError(t, s.Start(context.Background()))

	router := gin.New()
	s.RegisterRoutes(router.Group(""))
	return &fixture{shell: s, router: router, client: client}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUsersEndpoints(t *testing.T) {
	t.Run("ListRendersDisplayNames", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodGet, "/api/users", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		view := decode[listView](t, rec)
		require.Len(t, view.Users, 4)
		assert.Equal(t, "Leanne Graham", view.Users[0].DisplayName)
		assert.Equal(t, "leanne graham", view.Users[0].Name)
		assert.Equal(t, 4, view.ActiveCount)
		assert.Equal(t, 6, view.Total)
		assert.Len(t, f.client.Cached(), 6)
	})

	t.Run("Filters", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPut, "/api/users/filters", gin.H{"showInactive": true, "maxCount": 5})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[listView](t, rec).Users, 5)

		rec = f.do(t, http.MethodPut, "/api/users/filters", gin.H{"maxCount": -1})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("SearchIsDebounced", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/api/users/search", searchRequest{Query: "BAUCH"})
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "BAUCH", decode[listView](t, rec).Query)

		assert.Eventually(t, func() bool {
			users := f.shell.List().Filtered()
			return len(users) == 1 && users[0].ID == 3
		}, time.Second, testDebounce)
	})

	t.Run("SelectAndSelection", func(t *testing.T) {
		f := newFixture(t, nil)
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/selection", nil).Code)
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/users/x/select", nil).Code)
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/users/99/select", nil).Code)

		rec := f.do(t, http.MethodPost, "/api/users/4/select", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodGet, "/api/selection", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		selected := decode[userView](t, rec)
		assert.Equal(t, 4, selected.ID)
		assert.Equal(t, "Patricia Lebsack", selected.DisplayName)
		assert.Equal(t, 4, decode[listView](t, f.do(t, http.MethodGet, "/api/users", nil)).SelectedID)
	})

	t.Run("DeleteRequiresConfirmation", func(t *testing.T) {
		f := newFixture(t, nil)
		f.do(t, http.MethodPost, "/api/users/1/select", nil)

		rec := f.do(t, http.MethodDelete, "/api/users/1", nil)
		assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
		_, found := f.shell.List().Find(1)
		assert.True(t, found)

		rec = f.do(t, http.MethodDelete, "/api/users/1?confirm=true", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		_, found = f.shell.List().Find(1)
		assert.False(t, found)

		_, selected := f.shell.Selected()
		assert.False(t, selected)
		assert.Len(t, f.client.Cached(), 5)
	})

	t.Run("RefreshClearsQueryAndSelection", func(t *testing.T) {
		f := newFixture(t, nil)
		f.do(t, http.MethodPost, "/api/users/3/select", nil)
		f.do(t, http.MethodPost, "/api/users/search", searchRequest{Query: "zzz"})

		rec := f.do(t, http.MethodPost, "/api/users/refresh", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		view := decode[listView](t, rec)
		assert.Empty(t, view.Query)
		assert.Zero(t, view.SelectedID)
		assert.Len(t, view.Users, 4)
	})
}

func TestFormEndpoints(t *testing.T) {
	t.Run("EmptyForm", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodGet, "/api/form", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		view := decode[formView](t, rec)
		assert.Equal(t, "Create New User", view.Title)
		assert.Equal(t, "Create User", view.SubmitButtonText)
		assert.True(t, view.Draft.IsActive)
		assert.False(t, view.Valid)
		assert.Empty(t, view.FieldErrors)
	})

	t.Run("InvalidDraftReportsFieldErrors", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/api/form", formRequest{
			Draft: userform.Draft{Name: "J", Email: "john@unknown.org", Age: "17"},
		})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		view := decode[formView](t, rec)
		assert.Equal(t, "Name must be at least 2 characters", view.FieldErrors[userform.FieldName])
		assert.Equal(t, "Email domain is not allowed", view.FieldErrors[userform.FieldEmail])
		assert.Equal(t, "Age must be at least 18", view.FieldErrors[userform.FieldAge])
	})

	t.Run("CreateForwardsToClient", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/api/form", formRequest{
			Draft: userform.Draft{Name: "  john doe ", Email: "JOHN@gmail.com", Age: "30", IsActive: true},
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var body struct {
			User userView `json:"user"`
			Form formView `json:"form"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "john doe", body.User.Name)
		assert.Equal(t, "john@gmail.com", body.User.Email)
		assert.Equal(t, "John Doe", body.User.DisplayName)
		assert.True(t, body.Form.Submitting)
		assert.Equal(t, "Submitting...", body.Form.SubmitButtonText)

		assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/form", formRequest{
			Draft: userform.Draft{Name: "john doe", Email: "john@gmail.com", Age: "30"},
		}).Code)

		_, found := f.shell.List().Find(body.User.ID)
		assert.True(t, found)

		assert.Eventually(t, func() bool {
			view := decode[formView](t, f.do(t, http.MethodGet, "/api/form", nil))
			return !view.Submitting && view.Draft.Name == ""
		}, time.Second, testSubmitDelay)
	})

	t.Run("EditForwardsUpdate", func(t *testing.T) {
		f := newFixture(t, nil)
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/form", formRequest{EditID: 99}).Code)

		rec := f.do(t, http.MethodPost, "/api/form", formRequest{
			EditID: 2,
			Draft:  userform.Draft{Name: "Ervin Howell", Email: "ervin@gmail.com", Age: "42", IsActive: false},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			User userView `json:"user"`
			Form formView `json:"form"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 2, body.User.ID)
		assert.Equal(t, 42, body.User.Age)
		assert.Equal(t, "Edit User", body.Form.Title)
		assert.Equal(t, "Submitting...", body.Form.SubmitButtonText)
	})

	t.Run("Cancel", func(t *testing.T) {
		f := newFixture(t, nil)
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/form/cancel", nil).Code)

		f.do(t, http.MethodPost, "/api/form", formRequest{Draft: userform.Draft{Name: "x"}})
		rec := f.do(t, http.MethodPost, "/api/form/cancel", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decode[map[string]any](t, rec)["cancelled"])

		view := decode[formView](t, f.do(t, http.MethodGet, "/api/form", nil))
		assert.Empty(t, view.Draft.Name)
		assert.Empty(t, view.FieldErrors)
	})
}

func TestHealthEndpoint(t *testing.T) {
	checks := health.NewManager(zap.NewNop())
	checks.AddChecker(health.Func{CheckName: "upstream", Critical: true, Check: func(context.Context) error { return nil }})
	f := newFixture(t, checks)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, rec)["status"])

	checks.AddChecker(health.Func{CheckName: "redis", Check: func(context.Context) error { return errors.New("down") }})
	rec = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
