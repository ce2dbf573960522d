// Package userform implements the create/edit user form: its draft, field
// validation and the submit flow.
package userform

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eion/userdesk/internal/users"
)

// DefaultSubmitDelay is how long a submission stays in flight before the
// form returns to idle.
const DefaultSubmitDelay = time.Second

// Draft holds the raw input values of the form.
type Draft struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Age      string `json:"age"`
	IsActive bool   `json:"isActive"`
}

// EmptyDraft is the draft a fresh or reset form shows.
func EmptyDraft() Draft {
	return Draft{IsActive: true}
}

// DraftFromUser pre-populates a draft for editing.
func DraftFromUser(u users.User) Draft {
	return Draft{
		Name:     u.Name,
		Email:    u.Email,
		Age:      strconv.Itoa(u.Age),
		IsActive: u.IsActive,
	}
}

func (d Draft) value(field Field) string {
	switch field {
	case FieldName:
		return d.Name
	case FieldEmail:
		return d.Email
	case FieldAge:
		return d.Age
	}
	return ""
}

// Events are the notifications a form raises to its host.
type Events struct {
	OnUserSubmitted func(users.CreateUserRequest)
	OnCancelled     func()
}

// Config configures a Form.
type Config struct {
	// Seed switches the form to edit mode and pre-populates the draft.
	Seed        *users.User
	SubmitDelay time.Duration
	Rules       map[Field][]Rule
	Events      Events
}

// Form is the state of one create/edit form.
type Form struct {
	mu          sync.Mutex
	draft       Draft
	touched     map[Field]bool
	seed        *users.User
	rules       map[Field][]Rule
	delay       time.Duration
	events      Events
	submitting  bool
	loading     bool
	submitError string
	timer       *time.Timer
	closed      bool
	logger      *zap.Logger
}

// NewForm creates a form.
func NewForm(cfg Config, logger *zap.Logger) *Form {
	if cfg.SubmitDelay <= 0 {
		cfg.SubmitDelay = DefaultSubmitDelay
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}

	f := &Form{
		draft:   EmptyDraft(),
		touched: make(map[Field]bool),
		seed:    cfg.Seed,
		rules:   cfg.Rules,
		delay:   cfg.SubmitDelay,
		events:  cfg.Events,
		logger:  logger,
	}
	if cfg.Seed != nil {
		f.draft = DraftFromUser(*cfg.Seed)
	}
	return f
}

// Draft returns the current input values.
func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Set changes one text field. Any change clears a pending submit error.
func (f *Form) Set(field Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch field {
	case FieldName:
		f.draft.Name = value
	case FieldEmail:
		f.draft.Email = value
	case FieldAge:
		f.draft.Age = value
	default:
		return fmt.Errorf("unknown text field %q", field)
	}
	f.submitError = ""
	return nil
}

// SetActive changes the isActive toggle.
func (f *Form) SetActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.IsActive = active
	f.submitError = ""
}

// Apply replaces every input value at once.
func (f *Form) Apply(d Draft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = d
	f.submitError = ""
}

// Touch marks a field as visited so its error is shown.
func (f *Form) Touch(field Field) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[field] = true
}

// Touched reports whether field has been visited.
func (f *Form) Touched(field Field) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touched[field]
}

// Violations returns every failed rule of field, whether touched or not.
func (f *Form) Violations(field Field) []Violation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Check(f.rules[field], f.draft.value(field))
}

// FieldError returns the message to show for field, or "" when the field is
// untouched or valid.
func (f *Form) FieldError(field Field) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fieldErrorLocked(field)
}

// HasFieldError reports whether FieldError would return a message.
func (f *Form) HasFieldError(field Field) bool {
	return f.FieldError(field) != ""
}

// FieldErrors returns the shown message of every field that has one.
func (f *Form) FieldErrors() map[Field]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[Field]string)
	for _, field := range Fields {
		if msg := f.fieldErrorLocked(field); msg != "" {
			out[field] = msg
		}
	}
	return out
}

// Valid reports whether every field passes its rules.
func (f *Form) Valid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validLocked()
}

// CanSubmit reports whether the submit action is available.
func (f *Form) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validLocked() && !f.submitting && !f.loading
}

// Submit validates the draft. An invalid draft marks every field touched
// and nothing is sent. A valid one is emitted to OnUserSubmitted right away
// and the form goes back to idle after the submit delay, resetting itself
// unless a submit error was recorded in the meantime.
func (f *Form) Submit() (users.CreateUserRequest, bool) {
	f.mu.Lock()
	if f.closed || f.submitting {
		f.mu.Unlock()
		return users.CreateUserRequest{}, false
	}
	if !f.validLocked() {
		for _, field := range Fields {
			f.touched[field] = true
		}
		f.mu.Unlock()
		f.logger.Debug("Form submission rejected by validation")
		return users.CreateUserRequest{}, false
	}

	f.submitting = true
	f.submitError = ""
	req := requestFromDraft(f.draft)
	f.timer = time.AfterFunc(f.delay, f.completeSubmit)
	onSubmitted := f.events.OnUserSubmitted
	f.mu.Unlock()

	f.logger.Debug("Form submitted", zap.String("email", req.Email))
	if onSubmitted != nil {
		onSubmitted(req)
	}
	return req, true
}

func (f *Form) completeSubmit() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.submitting = false
	f.timer = nil
	if f.submitError == "" {
		f.resetLocked()
	}
}

// Cancel resets the form immediately and raises OnCancelled.
func (f *Form) Cancel() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.resetLocked()
	onCancelled := f.events.OnCancelled
	f.mu.Unlock()

	if onCancelled != nil {
		onCancelled()
	}
}

// Reset restores the empty draft and clears touched state and errors.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

// SetSubmitError records a failure reported by the host for the current
// submission. It is cleared by the next edit.
func (f *Form) SetSubmitError(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitError = msg
}

// SubmitError returns the recorded submit failure.
func (f *Form) SubmitError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitError
}

// SetLoading tells the form whether its host is busy.
func (f *Form) SetLoading(loading bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = loading
}

// IsSubmitting reports whether a submission is in flight.
func (f *Form) IsSubmitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Editing reports whether the form was seeded with an existing user.
func (f *Form) Editing() bool {
	return f.seed != nil
}

// Seed returns the user being edited.
func (f *Form) Seed() (users.User, bool) {
	if f.seed == nil {
		return users.User{}, false
	}
	return *f.seed, true
}

// Title is the heading shown above the form.
func (f *Form) Title() string {
	if f.Editing() {
		return "Edit User"
	}
	return "Create New User"
}

// SubmitButtonText is the label of the submit action.
func (f *Form) SubmitButtonText() string {
	if f.IsSubmitting() {
		return "Submitting..."
	}
	if f.Editing() {
		return "Update User"
	}
	return "Create User"
}

// Close stops a pending submit completion. The form raises no events
// afterwards.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Form) resetLocked() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.draft = EmptyDraft()
	f.touched = make(map[Field]bool)
	f.submitError = ""
	f.submitting = false
}

func (f *Form) validLocked() bool {
	for _, field := range Fields {
		if len(Check(f.rules[field], f.draft.value(field))) > 0 {
			return false
		}
	}
	return true
}

func (f *Form) fieldErrorLocked(field Field) string {
	if !f.touched[field] {
		return ""
	}
	v, ok := First(Check(f.rules[field], f.draft.value(field)))
	if !ok {
		return ""
	}
	return Message(field, v)
}

func requestFromDraft(d Draft) users.CreateUserRequest {
	age, _ := parseNumber(d.Age)
	return users.CreateUserRequest{
		Name:  strings.TrimSpace(d.Name),
		Email: strings.ToLower(strings.TrimSpace(d.Email)),
		Age:   int(age),
	}
}
