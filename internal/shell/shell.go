// Package shell hosts the user list and the user form behind a JSON API. It
// records the selected user and reacts to the events both components raise.
package shell

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eion/userdesk/internal/health"
	"github.com/eion/userdesk/internal/textfmt"
	"github.com/eion/userdesk/internal/userform"
	"github.com/eion/userdesk/internal/userlist"
	"github.com/eion/userdesk/internal/users"
)

// UserWriter is the part of the data client that form submissions go to.
type UserWriter interface {
	FetchByID(ctx context.Context, id int) (users.User, bool)
	Create(ctx context.Context, req users.CreateUserRequest) (users.APIResponse[users.User], error)
	Update(ctx context.Context, id int, fields users.UserUpdate) (users.User, error)
}

// Config configures the shell and the components it hosts.
type Config struct {
	List        userlist.Config
	SubmitDelay time.Duration
}

// Shell owns the list controller and the active form.
type Shell struct {
	list   *userlist.Controller
	writer UserWriter
	health *health.Manager
	logger *zap.Logger

	submitDelay time.Duration

	mu         sync.Mutex
	selected   *users.User
	form       *userform.Form
	formEditID int
}

// New builds a shell reading the list from source and writing through
// writer. Deletes are confirmed per request, see WithConfirmation.
func New(source userlist.DataSource, writer UserWriter, cfg Config, checks *health.Manager, logger *zap.Logger) *Shell {
	s := &Shell{
		writer:      writer,
		health:      checks,
		logger:      logger,
		submitDelay: cfg.SubmitDelay,
	}

	listCfg := cfg.List
	listCfg.Events = userlist.Events{
		OnUserSelected: s.onUserSelected,
		OnUserDeleted:  s.onUserDeleted,
	}
	listCfg.Confirmer = userlist.ConfirmFunc(func(ctx context.Context, _ users.User) bool {
		return confirmed(ctx)
	})
	s.list = userlist.NewController(source, listCfg, logger.Named("userlist"))
	return s
}

// Start performs the initial load.
func (s *Shell) Start(ctx context.Context) error {
	return s.list.Load(ctx)
}

// List exposes the hosted controller.
func (s *Shell) List() *userlist.Controller {
	return s.list
}

// Selected returns the user last selected in the list.
func (s *Shell) Selected() (users.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return users.User{}, false
	}
	return *s.selected, true
}

// Close stops the active form and the list controller.
func (s *Shell) Close() {
	s.mu.Lock()
	form := s.form
	s.form = nil
	s.mu.Unlock()

	if form != nil {
		form.Close()
	}
	s.list.Close()
}

func (s *Shell) onUserSelected(u users.User) {
	s.mu.Lock()
	s.selected = &u
	s.mu.Unlock()
	s.logger.Info("User selected", zap.Int("id", u.ID), zap.String("name", textfmt.Capitalize(u.Name, false)))
}

func (s *Shell) onUserDeleted(id int) {
	s.mu.Lock()
	if s.selected != nil && s.selected.ID == id {
		s.selected = nil
	}
	s.mu.Unlock()
	s.logger.Info("User deleted", zap.Int("id", id))
}

func (s *Shell) onUserSubmitted(req users.CreateUserRequest) {
	s.logger.Info("User submitted", zap.String("email", req.Email), zap.Int("age", req.Age))
}

func (s *Shell) onFormCancelled() {
	s.mu.Lock()
	s.formEditID = 0
	s.mu.Unlock()
	s.logger.Info("Form cancelled")
}

// openForm returns the active form for editID, replacing a form opened for
// a different user. A form in flight is kept.
func (s *Shell) openForm(ctx context.Context, editID int) (*userform.Form, error) {
	s.mu.Lock()
	if s.form != nil && (s.formEditID == editID || s.form.IsSubmitting()) {
		form := s.form
		s.mu.Unlock()
		return form, nil
	}
	s.mu.Unlock()

	var seed *users.User
	if editID > 0 {
		u, ok := s.list.Find(editID)
		if !ok {
			u, ok = s.writer.FetchByID(ctx, editID)
		}
		if !ok {
			return nil, errUnknownUser
		}
		seed = &u
	}

	form := userform.NewForm(userform.Config{
		Seed:        seed,
		SubmitDelay: s.submitDelay,
		Events: userform.Events{
			OnUserSubmitted: s.onUserSubmitted,
			OnCancelled:     s.onFormCancelled,
		},
	}, s.logger.Named("userform"))

	s.mu.Lock()
	old := s.form
	s.form = form
	s.formEditID = editID
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return form, nil
}

func (s *Shell) activeForm() (*userform.Form, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form, s.formEditID
}

type confirmKey struct{}

// WithConfirmation marks ctx as carrying the user's answer to a delete
// confirmation.
func WithConfirmation(ctx context.Context, ok bool) context.Context {
	return context.WithValue(ctx, confirmKey{}, ok)
}

func confirmed(ctx context.Context) bool {
	ok, _ := ctx.Value(confirmKey{}).(bool)
	return ok
}
