package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"role-service/internal/middleware"
	"role-service/internal/models"
	"role-service/internal/services"
)

// RoleHandler handles role switching HTTP requests
type RoleHandler struct {
	roleService *services.RoleSwitchService
	jwtSecret   string
}

// NewRoleHandler creates a new role handler
func NewRoleHandler(roleService *services.RoleSwitchService, jwtSecret string) *RoleHandler {
	return &RoleHandler{
		roleService: roleService,
		jwtSecret:   jwtSecret,
	}
}

// SwitchRole handles POST /api/v1/roles/switch. The target role is validated
// against the closed enumeration before any authentication-dependent work so
// malformed requests fail fast.
func (h *RoleHandler) SwitchRole(c *gin.Context) {
	var req models.SwitchRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, models.NewSwitchError(models.ErrorInvalidRole, "Corps de requête invalide: newRole est obligatoire"))
		return
	}

	target, err := models.ParseRole(req.NewRole)
	if err != nil {
		ErrorResponse(c, models.NewSwitchError(models.ErrorInvalidRole,
			fmt.Sprintf("Rôle inconnu: %q", req.NewRole)))
		return
	}

	claims, err := middleware.Authenticate(c, h.jwtSecret)
	if err != nil {
		ErrorResponse(c, models.NewSwitchError(models.ErrorNotAuthenticated, "Authentification requise"))
		return
	}

	requestID, _ := c.Get("request_id")
	meta := models.RequestMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if id, ok := requestID.(string); ok {
		meta.RequestID = id
	}

	data, err := h.roleService.Switch(c.Request.Context(), claims.UserID, target, claims.IsAdmin, meta)
	if err != nil {
		var switchErr *models.SwitchError
		if errors.As(err, &switchErr) {
			ErrorResponse(c, switchErr)
			return
		}
		ErrorResponse(c, models.NewSwitchError(models.ErrorDatabase, "Le changement de rôle a échoué"))
		return
	}

	SuccessResponse(c, http.StatusOK, "Rôle mis à jour avec succès", data)
}

// GetStatus handles GET /api/v1/roles/me
func (h *RoleHandler) GetStatus(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		ErrorResponse(c, models.NewSwitchError(models.ErrorNotAuthenticated, "Authentification requise"))
		return
	}

	data, err := h.roleService.Status(c.Request.Context(), userID)
	if err != nil {
		var switchErr *models.SwitchError
		if errors.As(err, &switchErr) {
			ErrorResponse(c, switchErr)
			return
		}
		ErrorResponse(c, models.NewSwitchError(models.ErrorDatabase, "Impossible de charger le statut"))
		return
	}

	SuccessResponse(c, http.StatusOK, "Statut du rôle récupéré", data)
}

// GetHistory handles GET /api/v1/roles/history
func (h *RoleHandler) GetHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		ErrorResponse(c, models.NewSwitchError(models.ErrorNotAuthenticated, "Authentification requise"))
		return
	}

	var query models.HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		query = models.HistoryQuery{Limit: 20}
	}

	data, err := h.roleService.History(c.Request.Context(), userID, query.Limit, query.Offset)
	if err != nil {
		var switchErr *models.SwitchError
		if errors.As(err, &switchErr) {
			ErrorResponse(c, switchErr)
			return
		}
		ErrorResponse(c, models.NewSwitchError(models.ErrorDatabase, "Impossible de charger l'historique"))
		return
	}

	SuccessResponse(c, http.StatusOK, "Historique récupéré", data)
}
