package clientsync

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/clients_backend/config"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc    *Service
	logger *logrus.Logger
}

func NewHandler(svc *Service, logger *logrus.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the sync endpoints under /sync of rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/sync")
	g.GET("/mismatches", h.MismatchesHandler())
	g.GET("/mismatches/export", h.ExportHandler())
	g.POST("/push", h.PushHandler())
	g.POST("/push-client", h.PushClientHandler())
	g.POST("/sync-pair", h.SyncPairHandler())
	g.POST("/ignore", h.IgnoreHandler())
	g.GET("/ignore-rules", h.IgnoreRulesHandler())
	g.POST("/link", h.LinkHandler())
	g.GET("/audit", h.AuditHandler())
}

type PushRequest struct {
	TargetUserID int    `json:"target_user_id" binding:"required"`
	Field        string `json:"field" binding:"required"`
	Value        string `json:"value"`
}

type PushClientRequest struct {
	ClientID int    `json:"client_id" binding:"required"`
	Field    string `json:"field" binding:"required"`
	Value    string `json:"value"`
}

type SyncPairRequest struct {
	ClientID  int    `json:"client_id" binding:"required"`
	Direction string `json:"direction" binding:"required"`
}

type IgnoreRequest struct {
	Field       string `json:"field" binding:"required"`
	SourceValue string `json:"source_value"`
	TargetValue string `json:"target_value"`
	Ignored     *bool  `json:"ignored" binding:"required"`
}

type LinkRequest struct {
	ClientID int `json:"client_id" binding:"required"`
	WpUserID int `json:"wp_user_id" binding:"required"`
}

func (h *Handler) MismatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := h.svc.Reconcile(c.Request.Context())
		if err != nil {
			h.respondError(c, "MismatchesHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func (h *Handler) ExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var buf bytes.Buffer
		if err := h.svc.ExportMismatches(c.Request.Context(), &buf); err != nil {
			h.respondError(c, "ExportHandler", err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename=mismatches.xlsx")
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

func (h *Handler) PushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PushRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := h.svc.PushField(c.Request.Context(), req.TargetUserID, Field(req.Field), req.Value); err != nil {
			h.respondError(c, "PushHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (h *Handler) PushClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PushClientRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := h.svc.PushClientField(c.Request.Context(), req.ClientID, Field(req.Field), req.Value); err != nil {
			h.respondError(c, "PushClientHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (h *Handler) SyncPairHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SyncPairRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		result, err := h.svc.SyncPair(c.Request.Context(), req.ClientID, Direction(req.Direction))
		if err != nil {
			h.respondError(c, "SyncPairHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (h *Handler) IgnoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IgnoreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := h.svc.SetIgnored(c.Request.Context(), Field(req.Field), req.SourceValue, req.TargetValue, *req.Ignored); err != nil {
			h.respondError(c, "IgnoreHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (h *Handler) IgnoreRulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rules, err := h.svc.ListIgnoreRules(c.Request.Context())
		if err != nil {
			h.respondError(c, "IgnoreRulesHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rules": rules})
	}
}

func (h *Handler) LinkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := h.svc.LinkClientToUser(c.Request.Context(), req.ClientID, req.WpUserID); err != nil {
			h.respondError(c, "LinkHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (h *Handler) AuditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := queryInt(c, "client_id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "client_id must be a number"})
			return
		}
		limit, err := queryInt(c, "limit")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
			return
		}
		entries, err := h.svc.ListAuditLog(c.Request.Context(), clientID, limit)
		if err != nil {
			h.respondError(c, "AuditHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// StatusFor maps a sync error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrClientNotFound), errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUserAlreadyLinked):
		return http.StatusConflict
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError never writes an unclassified error's text to the response.
func (h *Handler) respondError(c *gin.Context, funcName string, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		config.LogError(h.logger, "clientsync", funcName, "unexpected error", nil, err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
