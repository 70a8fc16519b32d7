package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sentinel/internal/audit"
	"sentinel/internal/comment"
	"sentinel/internal/constants"
	"sentinel/internal/logger"
	"sentinel/pkg/errors"
)

type Handler struct {
	Service Service
	Logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  log,
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		comments := v1.Group("/comments")
		{
			comments.GET("", h.ListComments)
			comments.GET("/:id", h.GetComment)
		}

		auditGroup := v1.Group("/audit")
		{
			auditGroup.GET("/logs", h.GetAuditLogs)
		}

		v1.GET("/metrics", h.GetMetrics)
	}
}

// ListComments godoc
// @Summary      List comments
// @Description  List comments filtered by client, platform, status or sentiment
// @Tags         comments
// @Produce      json
// @Param        client_id  query  string  false  "Client ID"
// @Param        platform   query  string  false  "Platform (facebook|instagram|facebook_ads)"
// @Param        status     query  string  false  "Status (pending|classified|processed|failed)"
// @Param        sentiment  query  string  false  "Sentiment (positive|negative|neutral)"
// @Param        limit      query  int     false  "Page size (max 1000)"
// @Param        offset     query  int     false  "Offset"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]interface{}
// @Router       /comments [get]
func (h *Handler) ListComments(c *gin.Context) {
	filter := comment.ListFilter{
		ClientID:  c.Query("client_id"),
		Platform:  c.Query("platform"),
		Status:    c.Query("status"),
		Sentiment: c.Query("sentiment"),
		Limit:     parseIntQuery(c, "limit", constants.DefaultLimit),
		Offset:    parseIntQuery(c, "offset", 0),
	}

	comments, total, err := h.Service.ListComments(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if comments == nil {
		comments = []comment.Comment{}
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// GetComment godoc
// @Summary      Get a comment by ID
// @Tags         comments
// @Produce      json
// @Param        id  path  string  true  "Comment ID"
// @Success      200  {object}  comment.Comment
// @Failure      404  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]interface{}
// @Router       /comments/{id} [get]
func (h *Handler) GetComment(c *gin.Context) {
	result, err := h.Service.GetComment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAuditLogs godoc
// @Summary      Query the audit trail
// @Description  Audit entries filtered by client, comment or action type, newest first
// @Tags         audit
// @Produce      json
// @Param        client_id    query  string  false  "Client ID"
// @Param        comment_id   query  string  false  "Comment ID"
// @Param        action_type  query  string  false  "Action type"
// @Param        limit        query  int     false  "Page size (max 1000)"
// @Param        offset       query  int     false  "Offset"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]interface{}
// @Router       /audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	filter := audit.QueryFilter{
		ClientID:   c.Query("client_id"),
		CommentID:  c.Query("comment_id"),
		ActionType: c.Query("action_type"),
		Limit:      parseIntQuery(c, "limit", constants.DefaultLimit),
		Offset:     parseIntQuery(c, "offset", 0),
	}

	entries, err := h.Service.AuditLogs(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if entries == nil {
		entries = []audit.LogEntry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  entries,
		"limit": filter.Limit,
	})
}

// GetMetrics godoc
// @Summary      Moderation metrics
// @Description  Aggregated totals, breakdowns and automation rates
// @Tags         metrics
// @Produce      json
// @Param        client_id  query  string  false  "Client ID"
// @Param        hours      query  int     false  "Window in hours (0 = all time)"
// @Success      200  {object}  MetricsReport
// @Failure      500  {object}  map[string]interface{}
// @Router       /metrics [get]
func (h *Handler) GetMetrics(c *gin.Context) {
	var since time.Time
	if hours := parseIntQuery(c, "hours", 0); hours > 0 {
		since = time.Now().Add(-time.Duration(hours) * time.Hour)
	}

	report, err := h.Service.Metrics(c.Request.Context(), c.Query("client_id"), since)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
