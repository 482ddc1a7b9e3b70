package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/clients_backend/config"
	"github.com/mmdatafocus/clients_backend/models"
	"github.com/mmdatafocus/clients_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type clientHandler struct {
	store  *models.ClientStore
	logger *logrus.Logger
}

// clientResponse carries the readable sensitive values next to the row.
type clientResponse struct {
	*models.Client
	Sensitive map[models.ClientField]string `json:"sensitive"`
}

func (h *clientHandler) registerRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/clients")
	g.GET("", h.listClientsHandler())
	g.GET("/schema", h.schemaHandler())
	g.GET("/:id", h.getClientHandler())
	g.POST("", h.createClientHandler())
	g.PUT("/:id", h.updateClientHandler())
	g.DELETE("/:id", h.deleteClientHandler())
}

func (h *clientHandler) respond(c *gin.Context, status int, client *models.Client) {
	sensitive, failures := h.store.DecryptSensitive(client)
	for field, err := range failures {
		h.logger.WithFields(logrus.Fields{
			"module":    "clients",
			"client_id": client.ID,
			"field":     field,
		}).Warn("sensitive field not readable: " + err.Error())
	}
	c.JSON(status, clientResponse{Client: client, Sensitive: sensitive})
}

func (h *clientHandler) respondError(c *gin.Context, funcName string, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client", "fields": ve.Fields})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
	case errors.Is(err, models.ErrDuplicateIdentifier):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		config.LogError(h.logger, "clients.go", funcName, "client store", nil, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "client store unavailable"})
	}
}

func clientIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
		return 0, false
	}
	return id, true
}

func bindClient(c *gin.Context) (*models.NewClient, bool) {
	var input models.NewClient
	if err := c.ShouldBindJSON(&input); err != nil {
		if fields := utils.ProcessValidationErrors(err); fields != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": fields})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		}
		return nil, false
	}
	return &input, true
}

func (h *clientHandler) listClientsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.ClientFilter{Search: c.Query("search")}
		if v := c.Query("customer_type"); v != "" {
			t, err := models.ParseCustomerType(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			filter.CustomerType = t
		}
		if v := c.Query("linked"); v != "" {
			linked, err := strconv.ParseBool(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "linked must be true or false"})
				return
			}
			filter.Linked = &linked
		}
		filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
		filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

		clients, err := h.store.List(c.Request.Context(), filter)
		if err != nil {
			h.respondError(c, "listClientsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"clients": clients})
	}
}

// schemaHandler describes the form: every field and the required set of each customer type.
func (h *clientHandler) schemaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		required := make(map[models.CustomerType][]models.ClientField, len(models.CustomerTypes))
		for _, t := range models.CustomerTypes {
			required[t] = models.RequiredFields(t)
		}
		c.JSON(http.StatusOK, gin.H{"fields": models.ClientSchema(), "required": required})
	}
}

func (h *clientHandler) getClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := clientIdParam(c)
		if !ok {
			return
		}
		client, err := h.store.Get(c.Request.Context(), id)
		if err != nil {
			h.respondError(c, "getClientHandler", err)
			return
		}
		h.respond(c, http.StatusOK, client)
	}
}

func (h *clientHandler) createClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		input, ok := bindClient(c)
		if !ok {
			return
		}
		client, err := h.store.Create(c.Request.Context(), input)
		if err != nil {
			h.respondError(c, "createClientHandler", err)
			return
		}
		h.respond(c, http.StatusCreated, client)
	}
}

func (h *clientHandler) updateClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := clientIdParam(c)
		if !ok {
			return
		}
		input, ok := bindClient(c)
		if !ok {
			return
		}
		client, err := h.store.Update(c.Request.Context(), id, input)
		if err != nil {
			h.respondError(c, "updateClientHandler", err)
			return
		}
		h.respond(c, http.StatusOK, client)
	}
}

func (h *clientHandler) deleteClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := clientIdParam(c)
		if !ok {
			return
		}
		client, err := h.store.Delete(c.Request.Context(), id)
		if err != nil {
			h.respondError(c, "deleteClientHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": client.ID, "success": true})
	}
}
