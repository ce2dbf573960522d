package upstream

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eion/userdesk/internal/users"
)

// Handlers provides the HTTP handlers of the user collection
type Handlers struct {
	store  Store
	logger *zap.Logger
}

// NewHandlers creates new user collection handlers
func NewHandlers(store Store, logger *zap.Logger) *Handlers {
	return &Handlers{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes registers the collection and item routes
func (h *Handlers) RegisterRoutes(router *gin.RouterGroup) {
	collection := router.Group("/users")
	{
		collection.GET("", h.ListUsers)
		collection.POST("", h.CreateUser)
		collection.GET("/:id", h.GetUser)
		collection.PUT("/:id", h.UpdateUser)
		collection.PATCH("/:id", h.UpdateUser)
		collection.DELETE("/:id", h.DeleteUser)
	}
}

func (h *Handlers) ListUsers(c *gin.Context) {
	list, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handlers) GetUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	user, err := h.store.GetUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handlers) CreateUser(c *gin.Context) {
	var req NewUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user, err := h.store.CreateUser(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("User created", zap.Int("id", user.ID))
	c.JSON(http.StatusCreated, user)
}

func (h *Handlers) UpdateUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}

	var update users.UserUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user, err := h.store.UpdateUser(c.Request.Context(), id, update)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("User updated", zap.Int("id", id))
	c.JSON(http.StatusOK, user)
}

func (h *Handlers) DeleteUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteUser(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("User deleted", zap.Int("id", id))
	c.JSON(http.StatusOK, gin.H{})
}

// userID parses the :id parameter. Anything that is not a positive integer
// names no user.
func (h *Handlers) userID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return 0, false
	}
	return id, true
}

func (h *Handlers) fail(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("User store operation failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
