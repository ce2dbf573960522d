// Package userlist drives the user list: loading, filtering, debounced
// search, selection and deletion.
package userlist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eion/userdesk/internal/userapi"
	"github.com/eion/userdesk/internal/users"
)

// User-visible error messages.
const (
	LoadErrorMessage   = "Failed to load users. Please try again."
	DeleteErrorMessage = "Failed to delete user."
)

// ErrClosed is returned by operations on a closed controller.
var ErrClosed = errors.New("user list controller is closed")

// DataSource is the slice of the user data client the controller needs.
type DataSource interface {
	FetchAll(ctx context.Context) ([]users.User, error)
	Search(ctx context.Context, query string) []users.User
	Delete(ctx context.Context, id int) bool
	UpdateCache(list []users.User)
}

// Confirmer asks whether a user should really be deleted.
type Confirmer interface {
	Confirm(ctx context.Context, user users.User) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, user users.User) bool

func (f ConfirmFunc) Confirm(ctx context.Context, user users.User) bool {
	return f(ctx, user)
}

// Events are the notifications the controller raises to its host.
type Events struct {
	OnUserSelected func(users.User)
	OnUserDeleted  func(id int)
}

// Config configures a Controller.
type Config struct {
	ShowInactive bool
	// MaxCount caps the displayed list; 0 shows everything.
	MaxCount       int
	DebounceWindow time.Duration
	Events         Events
	// Confirmer gates deletes. A nil Confirmer treats every delete as
	// confirmed by the caller.
	Confirmer Confirmer
}

// View is a snapshot of what the list displays.
type View struct {
	Users       []users.User `json:"users"`
	Query       string       `json:"query"`
	Loading     bool         `json:"loading"`
	Error       string       `json:"error,omitempty"`
	SelectedID  int          `json:"selectedId,omitempty"`
	ActiveCount int          `json:"activeCount"`
	Total       int          `json:"total"`
}

// Controller owns the fetch, filter and display pipeline of the user list.
type Controller struct {
	mu     sync.Mutex
	source DataSource
	cfg    Config
	logger *zap.Logger

	loaded   []users.User
	current  []users.User
	filtered []users.User

	query          string
	lastDispatched string
	dispatched     bool

	loads      int
	errMsg     string
	selectedID int

	// Loads and searches are sequenced apart: the newest load always owns
	// loaded, the newest search decides what current shows.
	loadIssued    uint64
	loadApplied   uint64
	searchIssued  uint64
	searchApplied uint64

	// emitMu is held while an event callback runs and by Close, so no
	// callback starts after Close returns.
	emitMu sync.Mutex

	debouncer *Debouncer
	inflight  sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closed    bool
}

// NewController creates a controller reading from source.
func NewController(source DataSource, cfg Config, logger *zap.Logger) *Controller {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultDebounceWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		source:    source,
		cfg:       cfg,
		logger:    logger,
		loaded:    []users.User{},
		current:   []users.User{},
		filtered:  []users.User{},
		debouncer: NewDebouncer(cfg.DebounceWindow),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Load fetches the users and displays them through the filters. A response
// older than one already displayed is dropped.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.loadIssued++
	seq := c.loadIssued
	c.loads++
	c.errMsg = ""
	c.mu.Unlock()

	ctx, stop := c.bind(ctx)
	defer stop()

	list, err := c.source.FetchAll(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.loads--
	if seq < c.loadApplied {
		c.mu.Unlock()
		c.logger.Debug("Dropping stale user list", zap.Uint64("seq", seq))
		return nil
	}
	if err != nil {
		c.errMsg = LoadErrorMessage
		c.mu.Unlock()
		c.logger.Error("Error loading users", zap.Error(err))
		return fmt.Errorf("failed to load users: %w", err)
	}

	c.loadApplied = seq
	c.loaded = list
	if !c.searchActiveLocked() {
		c.current = list
		c.applyFiltersLocked()
	}
	c.mu.Unlock()

	c.source.UpdateCache(list)
	c.logger.Debug("Users loaded", zap.Int("count", len(list)))
	return nil
}

// Refresh clears the query and selection and loads again.
func (c *Controller) Refresh(ctx context.Context) error {
	c.debouncer.Cancel()

	c.mu.Lock()
	c.query = ""
	c.lastDispatched = ""
	c.dispatched = false
	c.searchIssued++
	c.searchApplied = c.searchIssued
	c.selectedID = 0
	c.mu.Unlock()

	return c.Load(ctx)
}

// SearchChanged records the typed query and schedules a search once typing
// pauses. A query equal to the last dispatched one is not sent again.
func (c *Controller) SearchChanged(query string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.query = query
	c.mu.Unlock()

	c.debouncer.Debounce(func() {
		c.dispatchSearch(query)
	})
}

func (c *Controller) dispatchSearch(query string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.dispatched && query == c.lastDispatched {
		c.mu.Unlock()
		return
	}
	c.dispatched = true
	c.lastDispatched = query

	if strings.TrimSpace(query) == "" {
		// Results of searches still in flight are superseded.
		c.searchIssued++
		c.searchApplied = c.searchIssued
		c.current = c.loaded
		c.applyFiltersLocked()
		c.mu.Unlock()
		return
	}

	c.searchIssued++
	seq := c.searchIssued
	ctx := c.ctx
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	results := c.source.Search(ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq < c.searchApplied {
		return
	}
	c.searchApplied = seq
	c.current = results
	c.applyFiltersLocked()
	c.logger.Debug("Search applied", zap.String("query", query), zap.Int("count", len(results)))
}

// Select marks user as selected and raises OnUserSelected.
func (c *Controller) Select(user users.User) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.selectedID = user.ID
	onSelected := c.cfg.Events.OnUserSelected
	c.mu.Unlock()

	if onSelected != nil {
		c.emit(func() { onSelected(user) })
	}
}

// IsSelected compares user with the selection by id.
func (c *Controller) IsSelected(user users.User) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedID != 0 && c.selectedID == user.ID
}

// Delete removes user after confirmation. It reports whether the user was
// deleted; a declined confirmation changes nothing, a failed delete records
// an error message.
func (c *Controller) Delete(ctx context.Context, user users.User) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	confirmer := c.cfg.Confirmer
	c.mu.Unlock()

	if confirmer != nil && !confirmer.Confirm(ctx, user) {
		c.logger.Debug("Delete declined", zap.Int("id", user.ID))
		return false
	}

	ctx, stop := c.bind(ctx)
	defer stop()

	ok := c.source.Delete(ctx, user.ID)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if !ok {
		c.errMsg = DeleteErrorMessage
		c.mu.Unlock()
		return false
	}
	c.loaded = withoutUser(c.loaded, user.ID)
	c.current = withoutUser(c.current, user.ID)
	c.applyFiltersLocked()
	remaining := c.loaded
	onDeleted := c.cfg.Events.OnUserDeleted
	c.mu.Unlock()

	c.source.UpdateCache(remaining)
	if onDeleted != nil {
		c.emit(func() { onDeleted(user.ID) })
	}
	return true
}

// Find returns the displayed or loaded user with id.
func (c *Controller) Find(id int) (users.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, list := range [][]users.User{c.current, c.loaded} {
		if i := slices.IndexFunc(list, func(u users.User) bool { return u.ID == id }); i >= 0 {
			return list[i], true
		}
	}
	return users.User{}, false
}

// SetShowInactive changes the inactive filter and re-applies the filters.
func (c *Controller) SetShowInactive(show bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.ShowInactive = show
	c.applyFiltersLocked()
}

// SetMaxCount changes the display cap and re-applies the filters.
func (c *Controller) SetMaxCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.MaxCount = n
	c.applyFiltersLocked()
}

// ClearError dismisses the error message.
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = ""
}

// ActiveCount counts active users in the current list, before filtering.
func (c *Controller) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return userapi.CountActive(c.current)
}

// Filtered returns the displayed users.
func (c *Controller) Filtered() []users.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.filtered)
}

// View returns a snapshot of the displayed state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Users:       slices.Clone(c.filtered),
		Query:       c.query,
		Loading:     c.loads > 0,
		Error:       c.errMsg,
		SelectedID:  c.selectedID,
		ActiveCount: userapi.CountActive(c.current),
		Total:       len(c.current),
	}
}

// Close cancels pending searches and in-flight requests. No event is raised
// and no result is applied afterwards.
func (c *Controller) Close() {
	c.emitMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.emitMu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	c.mu.Unlock()
	c.emitMu.Unlock()

	c.debouncer.Cancel()
	c.inflight.Wait()
}

// emit runs fn unless the controller has been closed. Callbacks must not
// call Close.
func (c *Controller) emit(fn func()) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		fn()
	}
}

// searchActiveLocked reports whether current holds search results rather
// than the loaded list.
func (c *Controller) searchActiveLocked() bool {
	return c.dispatched && strings.TrimSpace(c.lastDispatched) != ""
}

func (c *Controller) applyFiltersLocked() {
	c.filtered = ApplyFilters(c.current, c.cfg.ShowInactive, c.cfg.MaxCount)
}

// bind derives a context that is also cancelled when the controller closes.
func (c *Controller) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	unregister := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		unregister()
		cancel()
	}
}
