// Package userapi talks to the remote user resource and turns its records
// into users.User values.
package userapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eion/userdesk/internal/cache"
	"github.com/eion/userdesk/internal/users"
)

// DefaultBaseURL is the public collection endpoint used when none is configured.
const DefaultBaseURL = "https://jsonplaceholder.typicode.com/users"

// CreatedMessage is the message attached to every successful create.
const CreatedMessage = "User created successfully"

// RequestIDHeader carries the id logged for each outbound request.
const RequestIDHeader = "X-Request-ID"

// Client wraps the CRUD operations of the user resource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	cache      *cache.UserList
	newID      func() int
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithIDGenerator sets the generator for the placeholder id sent on create.
func WithIDGenerator(fn func() int) Option {
	return func(c *Client) {
		c.newID = fn
	}
}

// WithClock sets the clock used for missing createdAt values.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithCache shares an existing user list container.
func WithCache(list *cache.UserList) Option {
	return func(c *Client) {
		c.cache = list
	}
}

// NewClient creates a client for the collection at baseURL.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		newID:      func() int { return rand.IntN(1000) + 100 },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = cache.NewUserList()
	}
	return c
}

// BaseURL returns the collection URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchAll lists every user. It does not update the shared cache.
func (c *Client) FetchAll(ctx context.Context) ([]users.User, error) {
	var raw []RawUser
	if err := c.do(ctx, http.MethodGet, c.baseURL, nil, &raw); err != nil {
		c.logger.Error("Failed to fetch users", zap.Error(err))
		return nil, err
	}

	now := c.now()
	list := make([]users.User, 0, len(raw))
	for _, r := range raw {
		list = append(list, Normalize(r, now))
	}

	c.logger.Debug("Fetched users", zap.Int("count", len(list)))
	return list, nil
}

// FetchAllWithDelay is FetchAll followed by a pause of d, for callers that
// want to exercise slow responses.
func (c *Client) FetchAllWithDelay(ctx context.Context, d time.Duration) ([]users.User, error) {
	list, err := c.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return list, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FetchByID looks up a single user. Ids <= 0 are answered without a request.
// Any failure, including not found, reports the user as absent.
func (c *Client) FetchByID(ctx context.Context, id int) (users.User, bool) {
	if id <= 0 {
		return users.User{}, false
	}

	var raw RawUser
	if err := c.do(ctx, http.MethodGet, c.itemURL(id), nil, &raw); err != nil {
		if IsNotFound(err) {
			c.logger.Debug("User not found", zap.Int("id", id))
		} else {
			c.logger.Warn("Failed to fetch user", zap.Int("id", id), zap.Error(err))
		}
		return users.User{}, false
	}
	if raw == nil {
		return users.User{}, false
	}

	return Normalize(raw, c.now()), true
}

// Create posts req together with a generated placeholder id.
func (c *Client) Create(ctx context.Context, req users.CreateUserRequest) (users.APIResponse[users.User], error) {
	payload := struct {
		users.CreateUserRequest
		ID int `json:"id"`
	}{
		CreateUserRequest: req,
		ID:                c.newID(),
	}

	var raw RawUser
	if err := c.do(ctx, http.MethodPost, c.baseURL, payload, &raw); err != nil {
		c.logger.Error("Failed to create user", zap.String("email", req.Email), zap.Error(err))
		return users.APIResponse[users.User]{}, err
	}

	user := Normalize(raw, c.now())
	c.logger.Info("User created", zap.Int("id", user.ID))
	return users.APIResponse[users.User]{
		Data:    user,
		Message: CreatedMessage,
		Success: true,
	}, nil
}

// Update sends only the fields set in fields and returns the merged record.
func (c *Client) Update(ctx context.Context, id int, fields users.UserUpdate) (users.User, error) {
	var raw RawUser
	if err := c.do(ctx, http.MethodPut, c.itemURL(id), fields, &raw); err != nil {
		c.logger.Error("Failed to update user", zap.Int("id", id), zap.Error(err))
		return users.User{}, err
	}
	return Normalize(raw, c.now()), nil
}

// Delete removes a user and reports whether it worked. Errors are logged,
// not returned.
func (c *Client) Delete(ctx context.Context, id int) bool {
	if err := c.do(ctx, http.MethodDelete, c.itemURL(id), nil, nil); err != nil {
		c.logger.Error("Failed to delete user", zap.Int("id", id), zap.Error(err))
		return false
	}
	return true
}

// Search returns users whose name contains query, ignoring case. A blank
// query returns nothing without a request; fetch failures return nothing.
func (c *Client) Search(ctx context.Context, query string) []users.User {
	if strings.TrimSpace(query) == "" {
		return []users.User{}
	}

	list, err := c.FetchAll(ctx)
	if err != nil {
		c.logger.Warn("Search failed", zap.String("query", query), zap.Error(err))
		return []users.User{}
	}

	needle := strings.ToLower(query)
	matches := make([]users.User, 0, len(list))
	for _, u := range list {
		if strings.Contains(strings.ToLower(u.Name), needle) {
			matches = append(matches, u)
		}
	}
	return matches
}

// UpdateCache replaces the shared list.
func (c *Client) UpdateCache(list []users.User) {
	c.cache.Replace(list)
}

// Cached returns the shared list.
func (c *Client) Cached() []users.User {
	return c.cache.Snapshot()
}

// Cache exposes the shared container for subscribers.
func (c *Client) Cache() *cache.UserList {
	return c.cache
}

func (c *Client) itemURL(id int) string {
	return c.baseURL + "/" + strconv.Itoa(id)
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return NewEncodeError(method, url, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return NewTransportError(method, url, err)
	}
	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Calling user resource",
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewTransportError(method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return NewServerError(method, url, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewDecodeError(method, url, err)
	}
	return nil
}
