package handlers

import (
	"net/http"
	"strings"

	"LT-FLOW/internal/models"
	"LT-FLOW/internal/schema"
	"LT-FLOW/internal/services"
	"LT-FLOW/internal/suggest"

	"github.com/gin-gonic/gin"
)

type TemplateHandler struct {
	templates  *services.TemplateService
	discoverer *schema.Discoverer
	suggester  *suggest.Service // nil when not configured
}

func NewTemplateHandler(templates *services.TemplateService, discoverer *schema.Discoverer, suggester *suggest.Service) *TemplateHandler {
	return &TemplateHandler{templates: templates, discoverer: discoverer, suggester: suggester}
}

type registerTemplateRequest struct {
	Name    string `json:"name" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type updateContentRequest struct {
	Content string `json:"content" binding:"required"`
}

type fieldDefinitionsRequest struct {
	Fields []models.CustomFieldDefinition `json:"fields"`
}

// Register accepts either a JSON body or a multipart form. The multipart
// variant carries the original upload alongside the converted HTML so the
// source file can be archived.
func (h *TemplateHandler) Register(c *gin.Context) {
	var input services.RegisterTemplateInput

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		input.Name = c.PostForm("name")
		input.Content = c.PostForm("content")
		if input.Name == "" || input.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and content are required"})
			return
		}
		if file, header, err := c.Request.FormFile("file"); err == nil {
			defer file.Close()
			input.Source = file
			input.FileName = header.Filename
			input.MimeType = header.Header.Get("Content-Type")
		}
	} else {
		var req registerTemplateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		input.Name = req.Name
		input.Content = req.Content
	}

	template, err := h.templates.Register(c.Request.Context(), input)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, template)
}

func (h *TemplateHandler) Get(c *gin.Context) {
	template, err := h.templates.Get(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, template)
}

func (h *TemplateHandler) UpdateContent(c *gin.Context) {
	var req updateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	template, err := h.templates.UpdateContent(c.Request.Context(), c.Param("templateId"), req.Content)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, template)
}

func (h *TemplateHandler) SetFieldDefinitions(c *gin.Context) {
	var req fieldDefinitionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	template, err := h.templates.SetFieldDefinitions(c.Request.Context(), c.Param("templateId"), req.Fields)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, template)
}

func (h *TemplateHandler) Activate(c *gin.Context) {
	template, err := h.templates.Activate(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, template)
}

func (h *TemplateHandler) Deactivate(c *gin.Context) {
	template, err := h.templates.Deactivate(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, template)
}

func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.templates.Delete(c.Request.Context(), c.Param("templateId")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}

// SuggestMappings proposes a known field for each of the template's
// placeholders. The field registry comes from the schema discoverer; the
// match itself from the optional LLM service.
func (h *TemplateHandler) SuggestMappings(c *gin.Context) {
	template, err := h.templates.Get(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	placeholders, err := template.PlaceholderNames()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	known, err := h.discoverer.Schema(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var suggestions []suggest.Suggestion
	if h.suggester != nil {
		suggestions = h.suggester.MapPlaceholders(c.Request.Context(), placeholders, known.Fields)
	}

	c.JSON(http.StatusOK, gin.H{
		"placeholders":  placeholders,
		"known_fields":  known.Fields,
		"schema_source": known.Source,
		"suggestions":   suggestions,
	})
}

// RefreshSchema bypasses the discovery cache.
func (h *TemplateHandler) RefreshSchema(c *gin.Context) {
	result, err := h.discoverer.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
