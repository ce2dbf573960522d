package userlist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/eion/userdesk/internal/users"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testWindow = 10 * time.Millisecond

// MockDataSource is a mock implementation of DataSource.
type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) FetchAll(ctx context.Context) ([]users.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]users.User), args.Error(1)
}

func (m *MockDataSource) Search(ctx context.Context, query string) []users.User {
	args := m.Called(ctx, query)
	return args.Get(0).([]users.User)
}

func (m *MockDataSource) Delete(ctx context.Context, id int) bool {
	args := m.Called(ctx, id)
	return args.Bool(0)
}

func (m *MockDataSource) UpdateCache(list []users.User) {
	m.Called(list)
}

type eventLog struct {
	mu       sync.Mutex
	selected []users.User
	deleted  []int
}

func (e *eventLog) events() Events {
	return Events{
		OnUserSelected: func(u users.User) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.selected = append(e.selected, u)
		},
		OnUserDeleted: func(id int) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.deleted = append(e.deleted, id)
		},
	}
}

func (e *eventLog) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.selected), len(e.deleted)
}

func testUsers() []users.User {
	return []users.User{
		{ID: 1, Name: "Leanne Graham", IsActive: true},
		{ID: 2, Name: "Ervin Howell", IsActive: false},
		{ID: 3, Name: "Clementine Bauch", IsActive: true},
		{ID: 4, Name: "Patricia Lebsack", IsActive: true},
	}
}

func newTestController(t *testing.T, source DataSource, cfg Config) *Controller {
	t.Helper()
	if cfg.DebounceWindow == 0 {
		cfg.DebounceWindow = testWindow
	}
	c := NewController(source, cfg, zap.NewNop())
	t.Cleanup(c.Close)
	return c
}

func loadedController(t *testing.T, cfg Config) (*Controller, *MockDataSource) {
	t.Helper()
	source := new(MockDataSource)
	source.On("FetchAll", mock.Anything).Return(testUsers(), nil)
	source.On("UpdateCache", mock.Anything).Return()

	c := newTestController(t, source, cfg)
	require.NoError(t, c.Load(context.Background()))
	return c, source
}

func ids(list []users.User) []int {
	out := make([]int, 0, len(list))
	for _, u := range list {
		out = append(out, u.ID)
	}
	return out
}

func TestControllerLoad(t *testing.T) {
	t.Run("AppliesFiltersAndPublishes", func(t *testing.T) {
		c, source := loadedController(t, Config{MaxCount: 2})

		view := c.View()
		assert.Equal(t, []int{1, 3}, ids(view.Users))
		assert.False(t, view.Loading)
		assert.Empty(t, view.Error)
		assert.Equal(t, 3, view.ActiveCount)
		assert.Equal(t, 4, view.Total)
		assert.Equal(t, 3, c.ActiveCount())

		source.AssertCalled(t, "UpdateCache", testUsers())
	})

	t.Run("FailureRecordsMessage", func(t *testing.T) {
		source := new(MockDataSource)
		source.On("FetchAll", mock.Anything).Return(nil, errors.New("Error Code: 500"))

		c := newTestController(t, source, Config{})
		err := c.Load(context.Background())
		require.Error(t, err)

		view := c.View()
		assert.Equal(t, LoadErrorMessage, view.Error)
		assert.False(t, view.Loading)
		assert.Empty(t, view.Users)
		source.AssertNotCalled(t, "UpdateCache", mock.Anything)

		c.ClearError()
		assert.Empty(t, c.View().Error)
	})

	t.Run("InputsReapplyFilters", func(t *testing.T) {
		c, _ := loadedController(t, Config{})
		assert.Equal(t, []int{1, 3, 4}, ids(c.Filtered()))

		c.SetShowInactive(true)
		assert.Equal(t, []int{1, 2, 3, 4}, ids(c.Filtered()))

		c.SetMaxCount(2)
		assert.Equal(t, []int{1, 2}, ids(c.Filtered()))
	})
}

func TestControllerSearch(t *testing.T) {
	t.Run("DebouncesBursts", func(t *testing.T) {
		c, source := loadedController(t, Config{ShowInactive: true})
		matches := []users.User{{ID: 9, Name: "John Doe", IsActive: true}}
		source.On("Search", mock.Anything, "john").Return(matches)

		for _, q := range []string{"j", "jo", "joh", "john"} {
			c.SearchChanged(q)
		}
		assert.Equal(t, "john", c.View().Query)

		assert.Eventually(t, func() bool {
			return len(c.Filtered()) == 1 && c.Filtered()[0].ID == 9
		}, time.Second, testWindow)
		source.AssertNumberOfCalls(t, "Search", 1)
	})

	t.Run("SuppressesRepeatedQuery", func(t *testing.T) {
		c, source := loadedController(t, Config{})
		source.On("Search", mock.Anything, "leanne").Return([]users.User{testUsers()[0]})

		c.SearchChanged("leanne")
		assert.Eventually(t, func() bool {
			return len(c.Filtered()) == 1
		}, time.Second, testWindow)

		c.SearchChanged("leanne")
		time.Sleep(5 * testWindow)
		source.AssertNumberOfCalls(t, "Search", 1)
	})

	t.Run("BlankQueryRestoresLoadedList", func(t *testing.T) {
		c, source := loadedController(t, Config{ShowInactive: true})
		source.On("Search", mock.Anything, "erv").Return([]users.User{testUsers()[1]})

		c.SearchChanged("erv")
		assert.Eventually(t, func() bool {
			return len(c.Filtered()) == 1
		}, time.Second, testWindow)

		c.SearchChanged("   ")
		assert.Eventually(t, func() bool {
			return len(c.Filtered()) == 4
		}, time.Second, testWindow)
		source.AssertNotCalled(t, "Search", mock.Anything, "   ")
	})
}

func TestControllerSelection(t *testing.T) {
	events := &eventLog{}
	c, _ := loadedController(t, Config{Events: events.events()})
	list := testUsers()

	assert.False(t, c.IsSelected(list[0]))

	c.Select(list[2])
	assert.True(t, c.IsSelected(list[2]))
	assert.True(t, c.IsSelected(users.User{ID: 3}))
	assert.False(t, c.IsSelected(list[0]))
	assert.Equal(t, 3, c.View().SelectedID)

	require.Len(t, events.selected, 1)
	assert.Equal(t, list[2], events.selected[0])
}

func TestControllerDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("ConfirmedSuccess", func(t *testing.T) {
		events := &eventLog{}
		c, source := loadedController(t, Config{ShowInactive: true, Events: events.events()})
		source.On("Delete", mock.Anything, 3).Return(true)

		assert.True(t, c.Delete(ctx, testUsers()[2]))
		assert.Equal(t, []int{1, 2, 4}, ids(c.Filtered()))
		assert.Equal(t, []int{3}, events.deleted)
		source.AssertCalled(t, "UpdateCache", []users.User{testUsers()[0], testUsers()[1], testUsers()[3]})

		_, found := c.Find(3)
		assert.False(t, found)
	})

	t.Run("Declined", func(t *testing.T) {
		events := &eventLog{}
		c, source := loadedController(t, Config{
			Events:    events.events(),
			Confirmer: ConfirmFunc(func(context.Context, users.User) bool { return false }),
		})

		assert.False(t, c.Delete(ctx, testUsers()[0]))
		source.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
		assert.Len(t, c.Filtered(), 3)
		assert.Empty(t, events.deleted)
		assert.Empty(t, c.View().Error)
	})

	t.Run("Failure", func(t *testing.T) {
		events := &eventLog{}
		c, source := loadedController(t, Config{
			Events:    events.events(),
			Confirmer: ConfirmFunc(func(context.Context, users.User) bool { return true }),
		})
		source.On("Delete", mock.Anything, 1).Return(false)

		assert.False(t, c.Delete(ctx, testUsers()[0]))
		assert.Equal(t, DeleteErrorMessage, c.View().Error)
		assert.Equal(t, []int{1, 3, 4}, ids(c.Filtered()))
		assert.Empty(t, events.deleted)
	})
}

func TestControllerRefresh(t *testing.T) {
	c, source := loadedController(t, Config{})
	source.On("Search", mock.Anything, "pat").Return([]users.User{testUsers()[3]})

	c.SearchChanged("pat")
	assert.Eventually(t, func() bool {
		return len(c.Filtered()) == 1
	}, time.Second, testWindow)
	c.Select(testUsers()[3])

	require.NoError(t, c.Refresh(context.Background()))

	view := c.View()
	assert.Empty(t, view.Query)
	assert.Zero(t, view.SelectedID)
	assert.Equal(t, []int{1, 3, 4}, ids(view.Users))
	source.AssertNumberOfCalls(t, "FetchAll", 2)

	// The same query is dispatched again after a refresh.
	c.SearchChanged("pat")
	assert.Eventually(t, func() bool {
		return len(c.Filtered()) == 1
	}, time.Second, testWindow)
	source.AssertNumberOfCalls(t, "Search", 2)
}

// gatedSource hands out FetchAll results only when the test releases them.
type gatedSource struct {
	mu      sync.Mutex
	gates   []chan []users.User
	calls   int
	matches []users.User
	cached  []users.User

	// searchGate, when set, holds every Search until it is closed.
	searchGate  chan struct{}
	searchCalls int
}

func newGatedSource(n int) *gatedSource {
	g := &gatedSource{}
	for i := 0; i < n; i++ {
		g.gates = append(g.gates, make(chan []users.User, 1))
	}
	return g
}

func (g *gatedSource) FetchAll(ctx context.Context) ([]users.User, error) {
	g.mu.Lock()
	gate := g.gates[g.calls]
	g.calls++
	g.mu.Unlock()

	select {
	case list := <-gate:
		return list, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedSource) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *gatedSource) Search(ctx context.Context, _ string) []users.User {
	g.mu.Lock()
	g.searchCalls++
	gate := g.searchGate
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.matches == nil {
		return []users.User{}
	}
	return g.matches
}

func (g *gatedSource) Delete(context.Context, int) bool { return true }

func (g *gatedSource) UpdateCache(list []users.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cached = list
}

func (g *gatedSource) searchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.searchCalls
}

func (g *gatedSource) cachedIDs() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ids(g.cached)
}

func TestControllerDropsStaleLoad(t *testing.T) {
	source := newGatedSource(2)
	c := newTestController(t, source, Config{ShowInactive: true})
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- c.Load(ctx) }()
	require.Eventually(t, func() bool { return source.callCount() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- c.Load(ctx) }()
	require.Eventually(t, func() bool { return source.callCount() == 2 }, time.Second, time.Millisecond)
	assert.True(t, c.View().Loading)

	newer := []users.User{{ID: 20, IsActive: true}}
	source.gates[1] <- newer
	require.NoError(t, <-second)
	assert.True(t, c.View().Loading)

	source.gates[0] <- []users.User{{ID: 10, IsActive: true}}
	require.NoError(t, <-first)

	view := c.View()
	assert.Equal(t, []int{20}, ids(view.Users))
	assert.False(t, view.Loading)
}

func TestControllerLoadAfterSearch(t *testing.T) {
	loaded := []users.User{{ID: 1, Name: "Leanne", IsActive: true}, {ID: 2, Name: "Ervin", IsActive: true}}

	startLoad := func(t *testing.T, source *gatedSource) (*Controller, chan error) {
		t.Helper()
		c := newTestController(t, source, Config{ShowInactive: true})
		done := make(chan error, 1)
		go func() { done <- c.Load(context.Background()) }()
		require.Eventually(t, func() bool { return source.callCount() == 1 }, time.Second, time.Millisecond)
		return c, done
	}

	t.Run("KeepsLoadedListForBlankQuery", func(t *testing.T) {
		source := newGatedSource(1)
		c, done := startLoad(t, source)

		c.SearchChanged("lea")
		require.Eventually(t, func() bool { return c.View().Query == "lea" }, time.Second, time.Millisecond)
		time.Sleep(5 * testWindow)

		source.gates[0] <- loaded
		require.NoError(t, <-done)
		assert.Equal(t, []int{1, 2}, source.cachedIDs())

		c.SearchChanged("")
		assert.Eventually(t, func() bool {
			got := c.Filtered()
			return len(got) == 2 && got[0].ID == 1 && got[1].ID == 2
		}, time.Second, testWindow)
	})

	t.Run("RefreshSupersedesSearchInFlight", func(t *testing.T) {
		source := newGatedSource(2)
		source.matches = []users.User{{ID: 9, IsActive: true}}
		source.searchGate = make(chan struct{})
		c, done := startLoad(t, source)

		source.gates[0] <- loaded
		require.NoError(t, <-done)

		c.SearchChanged("zzz")
		require.Eventually(t, func() bool { return source.searchCount() == 1 }, time.Second, time.Millisecond)

		refreshed := make(chan error, 1)
		go func() { refreshed <- c.Refresh(context.Background()) }()
		require.Eventually(t, func() bool { return source.callCount() == 2 }, time.Second, time.Millisecond)
		source.gates[1] <- loaded
		require.NoError(t, <-refreshed)

		close(source.searchGate)
		time.Sleep(5 * testWindow)

		assert.Equal(t, []int{1, 2}, ids(c.Filtered()))
		assert.Empty(t, c.View().Query)
	})

	t.Run("SearchResultsStayDisplayed", func(t *testing.T) {
		source := newGatedSource(1)
		source.matches = []users.User{loaded[0]}
		c, done := startLoad(t, source)

		c.SearchChanged("lea")
		require.Eventually(t, func() bool { return len(c.Filtered()) == 1 }, time.Second, time.Millisecond)

		source.gates[0] <- loaded
		require.NoError(t, <-done)

		assert.Equal(t, []int{1}, ids(c.Filtered()))
		_, found := c.Find(2)
		assert.True(t, found)
	})
}

func TestControllerClose(t *testing.T) {
	t.Run("CancelsInFlightLoad", func(t *testing.T) {
		source := newGatedSource(1)
		c := NewController(source, Config{DebounceWindow: testWindow}, zap.NewNop())

		done := make(chan error, 1)
		go func() { done <- c.Load(context.Background()) }()
		require.Eventually(t, func() bool { return source.callCount() == 1 }, time.Second, time.Millisecond)

		c.Close()
		assert.ErrorIs(t, <-done, ErrClosed)
		assert.ErrorIs(t, c.Load(context.Background()), ErrClosed)
	})

	t.Run("WaitsForRunningCallback", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		var calls atomic.Int32
		c, _ := loadedController(t, Config{Events: Events{
			OnUserSelected: func(users.User) {
				if calls.Add(1) == 1 {
					close(entered)
					<-release
				}
			},
		}})

		go c.Select(testUsers()[0])
		<-entered

		closed := make(chan struct{})
		go func() {
			c.Close()
			close(closed)
		}()

		select {
		case <-closed:
			t.Fatal("Close returned while a callback was running")
		case <-time.After(5 * testWindow):
		}

		close(release)
		<-closed

		c.Select(testUsers()[1])
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("NoEventsAfterClose", func(t *testing.T) {
		events := &eventLog{}
		c, source := loadedController(t, Config{Events: events.events()})
		source.On("Delete", mock.Anything, mock.Anything).Return(true)

		c.SearchChanged("leanne")
		c.Close()
		time.Sleep(5 * testWindow)

		c.Select(testUsers()[0])
		assert.False(t, c.Delete(context.Background(), testUsers()[0]))

		selected, deleted := events.counts()
		assert.Zero(t, selected)
		assert.Zero(t, deleted)
		source.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
		source.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}
