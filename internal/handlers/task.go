package handlers

import (
	"errors"
	"net/http"
	"time"

	"LT-FLOW/internal/services"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	tasks     *services.TaskService
	validator *services.CompletionValidator
	converter *services.ConvertService
}

func NewTaskHandler(tasks *services.TaskService, validator *services.CompletionValidator, converter *services.ConvertService) *TaskHandler {
	return &TaskHandler{tasks: tasks, validator: validator, converter: converter}
}

type completeRequest struct {
	PushFields []string `json:"push_fields"`
}

type fieldValuesRequest struct {
	Values map[string]string `json:"values"`
}

func (h *TaskHandler) Create(c *gin.Context) {
	var input services.CreateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), input)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrTemplateInactive) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) AggregateFields(c *gin.Context) {
	result, err := h.tasks.AggregateFields(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TaskHandler) SetFieldValues(c *gin.Context) {
	var req fieldValuesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	task, err := h.tasks.SetFieldValues(c.Request.Context(), c.Param("taskId"), req.Values)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Finalize(c *gin.Context) {
	report, err := h.tasks.Finalize(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *TaskHandler) Retry(c *gin.Context) {
	report, err := h.tasks.Retry(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *TaskHandler) Complete(c *gin.Context) {
	var req completeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
	}

	result, check, err := h.tasks.Complete(c.Request.Context(), c.Param("taskId"), req.PushFields)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if result == nil {
		// Gate failed; the check tells the operator what is outstanding.
		c.JSON(http.StatusConflict, check)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), c.Param("taskId")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

func (h *TaskHandler) AttachFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	attached, err := h.tasks.AttachFile(c.Request.Context(), c.Param("taskId"),
		header.Filename, file, header.Header.Get("Content-Type"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, attached)
}

func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

// DownloadBinary converts a generated document's stored HTML via the
// conversion collaborator and streams the result.
func (h *TaskHandler) DownloadBinary(c *gin.Context) {
	html, doc, err := h.tasks.GeneratedHTML(c.Request.Context(), c.Param("taskId"), c.Param("templateId"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	body, err := h.converter.RenderBinary(c.Request.Context(), html)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	defer body.Close()

	c.Header("Content-Disposition", `attachment; filename="`+doc.TemplateName+`.pdf"`)
	c.DataFromReader(http.StatusOK, -1, "application/pdf", body, nil)
}

func (h *TaskHandler) UploadSigned(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	path, err := h.tasks.UploadSigned(c.Request.Context(), c.Param("taskId"), c.Param("templateId"),
		header.Filename, file, header.Header.Get("Content-Type"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"path": path})
}

func (h *TaskHandler) ListSigned(c *gin.Context) {
	files, err := h.validator.ListSigned(c.Request.Context(), c.Param("taskId"), c.Param("templateId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (h *TaskHandler) SignedURL(c *gin.Context) {
	fileName := c.Query("file")
	if fileName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file query parameter is required"})
		return
	}

	url, err := h.validator.SignedURL(c.Param("taskId"), c.Param("templateId"), fileName, 15*time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrNoTemplates),
		errors.Is(err, services.ErrTemplateInactive),
		errors.Is(err, services.ErrTemplateInUse):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
