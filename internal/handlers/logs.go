package handlers

import (
	"net/http"
	"strconv"

	"LT-FLOW/internal/services"

	"github.com/gin-gonic/gin"
)

type LogsHandler struct {
	logs *services.ActivityLogService
}

func NewLogsHandler(logs *services.ActivityLogService) *LogsHandler {
	return &LogsHandler{logs: logs}
}

func (h *LogsHandler) GetLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var (
		logs  interface{}
		total int64
		err   error
	)

	switch {
	case c.Query("method") != "":
		logs, total, err = h.logs.GetLogsByMethod(c.Query("method"), limit, offset)
	case c.Query("path") != "":
		logs, total, err = h.logs.GetLogsByPath(c.Query("path"), limit, offset)
	default:
		logs, total, err = h.logs.GetAllLogs(limit, offset)
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
