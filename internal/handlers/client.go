package handlers

import (
	"net/http"

	"LT-FLOW/internal/models"
	"LT-FLOW/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClientHandler is plain record CRUD, kept thin; the pipeline only ever
// reads clients.
type ClientHandler struct {
	store services.RecordStore
}

func NewClientHandler(store services.RecordStore) *ClientHandler {
	return &ClientHandler{store: store}
}

func (h *ClientHandler) Create(c *gin.Context) {
	var client models.Client
	if err := c.ShouldBindJSON(&client); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if client.FirstName == "" || client.LastName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "first_name and last_name are required"})
		return
	}

	client.ID = uuid.New().String()
	if err := h.store.SaveClient(c.Request.Context(), &client); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.store.GetClient(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) Update(c *gin.Context) {
	client, err := h.store.GetClient(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	var update models.Client
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	update.ID = client.ID
	update.CreatedAt = client.CreatedAt
	if err := h.store.SaveClient(c.Request.Context(), &update); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, update)
}
