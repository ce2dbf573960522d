package shell

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eion/userdesk/internal/textfmt"
	"github.com/eion/userdesk/internal/userform"
	"github.com/eion/userdesk/internal/userlist"
	"github.com/eion/userdesk/internal/users"
)

var errUnknownUser = errors.New("user not found")

// userView is a user as the shell renders it.
type userView struct {
	users.User
	DisplayName string `json:"displayName"`
}

type listView struct {
	userlist.View
	Users []userView `json:"users"`
}

type formView struct {
	Title            string                    `json:"title"`
	SubmitButtonText string                    `json:"submitButtonText"`
	Editing          bool                      `json:"editing"`
	EditID           int                       `json:"editId,omitempty"`
	Draft            userform.Draft            `json:"draft"`
	Valid            bool                      `json:"valid"`
	CanSubmit        bool                      `json:"canSubmit"`
	Submitting       bool                      `json:"submitting"`
	SubmitError      string                    `json:"submitError,omitempty"`
	FieldErrors      map[userform.Field]string `json:"fieldErrors,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type filtersRequest struct {
	ShowInactive *bool `json:"showInactive"`
	MaxCount     *int  `json:"maxCount"`
}

type formRequest struct {
	EditID int            `json:"editId"`
	Draft  userform.Draft `json:"draft"`
}

// RegisterRoutes registers the health check and the /api routes
func (s *Shell) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", s.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/users", s.GetUsers)
		api.POST("/users/refresh", s.RefreshUsers)
		api.POST("/users/search", s.SearchUsers)
		api.PUT("/users/filters", s.SetFilters)
		api.DELETE("/users/error", s.ClearError)
		api.POST("/users/:id/select", s.SelectUser)
		api.DELETE("/users/:id", s.DeleteUser)

		api.GET("/selection", s.GetSelection)

		api.GET("/form", s.GetForm)
		api.POST("/form", s.SubmitForm)
		api.POST("/form/cancel", s.CancelForm)
	}
}

func (s *Shell) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}
	if s.health != nil {
		for name, err := range s.health.RuntimeHealthCheck(c.Request.Context()) {
			if err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Shell) GetUsers(c *gin.Context) {
	c.JSON(http.StatusOK, s.listView())
}

func (s *Shell) RefreshUsers(c *gin.Context) {
	if err := s.list.Refresh(c.Request.Context()); err != nil {
		s.logger.Error("Failed to refresh users", zap.Error(err))
		c.JSON(http.StatusBadGateway, s.listView())
		return
	}
	c.JSON(http.StatusOK, s.listView())
}

// SearchUsers feeds the query to the debounced search. The response shows
// the list before the search lands.
func (s *Shell) SearchUsers(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	s.list.SearchChanged(req.Query)
	c.JSON(http.StatusAccepted, s.listView())
}

func (s *Shell) SetFilters(c *gin.Context) {
	var req filtersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.MaxCount != nil && *req.MaxCount < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "maxCount cannot be negative"})
		return
	}
	if req.ShowInactive != nil {
		s.list.SetShowInactive(*req.ShowInactive)
	}
	if req.MaxCount != nil {
		s.list.SetMaxCount(*req.MaxCount)
	}
	c.JSON(http.StatusOK, s.listView())
}

func (s *Shell) ClearError(c *gin.Context) {
	s.list.ClearError()
	c.JSON(http.StatusOK, s.listView())
}

func (s *Shell) SelectUser(c *gin.Context) {
	user, ok := s.findUser(c)
	if !ok {
		return
	}
	s.list.Select(user)
	c.JSON(http.StatusOK, present(user))
}

func (s *Shell) GetSelection(c *gin.Context) {
	user, ok := s.Selected()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no user selected"})
		return
	}
	c.JSON(http.StatusOK, present(user))
}

// DeleteUser deletes when the request carries confirm=true.
func (s *Shell) DeleteUser(c *gin.Context) {
	user, ok := s.findUser(c)
	if !ok {
		return
	}

	confirm, _ := strconv.ParseBool(c.Query("confirm"))
	if !confirm {
		c.JSON(http.StatusPreconditionRequired, gin.H{"error": "deletion not confirmed", "id": user.ID})
		return
	}

	ctx := WithConfirmation(c.Request.Context(), true)
	if !s.list.Delete(ctx, user) {
		c.JSON(http.StatusBadGateway, s.listView())
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": user.ID})
}

func (s *Shell) GetForm(c *gin.Context) {
	form, editID := s.activeForm()
	if form == nil {
		var err error
		if form, err = s.openForm(c.Request.Context(), 0); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, presentForm(form, editID))
}

// SubmitForm validates the draft and forwards a valid one to the data
// client: a create, or an update when editId names a user.
func (s *Shell) SubmitForm(c *gin.Context) {
	var req formRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.EditID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "editId cannot be negative"})
		return
	}

	ctx := c.Request.Context()
	form, err := s.openForm(ctx, req.EditID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if form.IsSubmitting() {
		c.JSON(http.StatusConflict, gin.H{"error": "submission in progress"})
		return
	}

	form.Apply(req.Draft)
	payload, ok := form.Submit()
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, presentForm(form, req.EditID))
		return
	}

	form.SetLoading(true)
	saved, err := s.save(c, form, payload)
	form.SetLoading(false)
	if err != nil {
		form.SetSubmitError(err.Error())
		s.logger.Error("Failed to save user", zap.Int("edit_id", req.EditID), zap.Error(err))
		c.JSON(http.StatusBadGateway, presentForm(form, req.EditID))
		return
	}

	if err := s.list.Load(ctx); err != nil {
		s.logger.Warn("Failed to reload users after save", zap.Error(err))
	}

	status := http.StatusCreated
	if form.Editing() {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"user": present(saved), "form": presentForm(form, req.EditID)})
}

func (s *Shell) save(c *gin.Context, form *userform.Form, payload users.CreateUserRequest) (users.User, error) {
	ctx := c.Request.Context()
	if seed, editing := form.Seed(); editing {
		return s.writer.Update(ctx, seed.ID, users.UpdateFromRequest(payload))
	}
	resp, err := s.writer.Create(ctx, payload)
	if err != nil {
		return users.User{}, err
	}
	s.logger.Info(resp.Message, zap.Int("id", resp.Data.ID))
	return resp.Data, nil
}

func (s *Shell) CancelForm(c *gin.Context) {
	form, _ := s.activeForm()
	if form == nil {
		c.JSON(http.StatusOK, gin.H{"cancelled": false})
		return
	}
	form.Cancel()
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (s *Shell) findUser(c *gin.Context) (users.User, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return users.User{}, false
	}
	user, ok := s.list.Find(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownUser.Error()})
		return users.User{}, false
	}
	return user, true
}

func (s *Shell) listView() listView {
	view := s.list.View()
	out := listView{View: view, Users: make([]userView, 0, len(view.Users))}
	for _, u := range view.Users {
		out.Users = append(out.Users, present(u))
	}
	return out
}

func present(u users.User) userView {
	return userView{User: u, DisplayName: textfmt.Capitalize(u.Name, false)}
}

func presentForm(form *userform.Form, editID int) formView {
	return formView{
		Title:            form.Title(),
		SubmitButtonText: form.SubmitButtonText(),
		Editing:          form.Editing(),
		EditID:           editID,
		Draft:            form.Draft(),
		Valid:            form.Valid(),
		CanSubmit:        form.CanSubmit(),
		Submitting:       form.IsSubmitting(),
		SubmitError:      form.SubmitError(),
		FieldErrors:      form.FieldErrors(),
	}
}
