package api

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"langmod/server/backend/domain"
	commonauth "langmod/server/common/auth"
	"langmod/server/common/infra/cache"
	"langmod/server/common/middleware"
	"langmod/server/common/transport/httpresp"
	ingestservice "langmod/server/ingest/service"
	"langmod/server/store"
)

const RoleService = "service"

type Handler struct {
	svc    *ingestservice.IngestService
	auth   *commonauth.Service
	apiKey string
}

func NewHandler(svc *ingestservice.IngestService, auth *commonauth.Service, apiKey string) *Handler {
	return &Handler{svc: svc, auth: auth, apiKey: apiKey}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/api/v1/auth/token", h.issueToken)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthRequired(h.auth))
	api.Use(middleware.RequireRoles(RoleService))
	{
		api.POST("/messages", h.handleMessage)
		api.POST("/analyze", h.submitAnalysis)
		api.GET("/analyze/:job_id", h.jobStatus)
		api.POST("/commands", h.submitCommand)
		api.PUT("/chats/:chat_id/settings", h.updateChatSettings)
	}
}

// issueToken exchanges the bot transport's API key for a short-lived
// JWT used on every other endpoint.
func (h *Handler) issueToken(c *gin.Context) {
	var req struct {
		ServiceID string `json:"service_id" binding:"required"`
		APIKey    string `json:"api_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.apiKey)) != 1 {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrInvalidCredentials))
		return
	}
	token, err := h.auth.GenerateToken(req.ServiceID, RoleService)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: token, ServiceID: req.ServiceID, Role: RoleService})
}

func (h *Handler) handleMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	jobID, admitted, err := h.svc.HandleInbound(c.Request.Context(), req.toInbound())
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse(err.Error()))
		return
	}
	if !admitted {
		c.JSON(http.StatusOK, MessageResponse{Recorded: true, Admitted: false})
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{Recorded: true, Admitted: true, JobID: jobID})
}

func (h *Handler) submitAnalysis(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	jobID, err := h.svc.SubmitAnalysis(c.Request.Context(), req.toInbound())
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusAccepted, httpresp.NewJobResponse(jobID))
}

func (h *Handler) jobStatus(c *gin.Context) {
	status, err := h.svc.JobStatus(c.Request.Context(), c.Param("job_id"))
	if errors.Is(err, cache.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, httpresp.NewErrorResponse(httpresp.ErrJobNotFound))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) submitCommand(c *gin.Context) {
	var req struct {
		Command  string `json:"command" binding:"required"`
		ChatID   string `json:"chat_id"`
		UserID   int64  `json:"user_id" binding:"required"`
		Language string `json:"language"`
		Limit    int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	jobID, err := h.svc.SubmitCommand(c.Request.Context(), domain.ReportCommandPayload{
		MessageType: domain.MessageType(req.Command),
		ChatID:      req.ChatID,
		UserID:      req.UserID,
		Language:    req.Language,
		Limit:       req.Limit,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusAccepted, httpresp.NewJobResponse(jobID))
}

func (h *Handler) updateChatSettings(c *gin.Context) {
	var settings domain.ChatSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	err := h.svc.UpdateChatSettings(c.Request.Context(), c.Param("chat_id"), settings)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, httpresp.NewErrorResponse(err.Error()))
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, httpresp.NewOKResponse())
}

type messageRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	ChatID    string `json:"chat_id" binding:"required"`
	ChatName  string `json:"chat_name"`
	MessageID string `json:"message_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
	Timestamp string `json:"timestamp" binding:"required"`
}

func (r messageRequest) toInbound() ingestservice.InboundMessage {
	return ingestservice.InboundMessage{
		UserID:    r.UserID,
		Name:      r.Name,
		Username:  r.Username,
		ChatID:    r.ChatID,
		ChatName:  r.ChatName,
		MessageID: r.MessageID,
		Content:   r.Content,
		Timestamp: r.Timestamp,
	}
}
