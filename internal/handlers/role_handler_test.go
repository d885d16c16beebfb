package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"role-service/internal/middleware"
	"role-service/internal/models"
	"role-service/internal/services"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type stateStore struct {
	states map[uuid.UUID]*models.UserRoleState
}

func (s *stateStore) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.UserRoleState, error) {
	if state, ok := s.states[userID]; ok {
		return state, nil
	}
	state := &models.UserRoleState{
		UserID:                 userID,
		CurrentRole:            models.RoleTenant,
		AvailableSwitchesToday: 3,
	}
	s.states[userID] = state
	return state, nil
}

func (s *stateStore) ResetDailyQuota(ctx context.Context, state *models.UserRoleState, now time.Time) error {
	today := now.UTC().Truncate(24 * time.Hour)
	state.DailySwitchCount = 0
	state.AvailableSwitchesToday = 3
	state.LastRoleChangeDate = &today
	return nil
}

func (s *stateStore) ApplySwitch(ctx context.Context, state *models.UserRoleState, newRole models.Role, now time.Time) error {
	if err := state.AppendHistory(models.SwitchRecord{
		PreviousRole: state.CurrentRole,
		NewRole:      newRole,
		SwitchedAt:   now,
	}); err != nil {
		return err
	}
	today := now.UTC().Truncate(24 * time.Hour)
	state.CurrentRole = newRole
	state.LastSwitchAt = &now
	state.DailySwitchCount++
	state.AvailableSwitchesToday--
	state.LastRoleChangeDate = &today
	return nil
}

type profileStore struct {
	profile *models.IdentityProfile
}

func (s *profileStore) GetProfile(ctx context.Context, userID uuid.UUID) (*models.IdentityProfile, error) {
	if s.profile == nil {
		return nil, fmt.Errorf("%w: no profile", models.ErrProfileLookupFailed)
	}
	return s.profile, nil
}

func (s *profileStore) GetVerificationFlags(ctx context.Context, userID uuid.UUID) (models.VerificationFlags, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return models.VerificationFlags{}, err
	}
	return profile.Flags(), nil
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(userID uuid.UUID, previousRole, newRole models.Role, meta models.RequestMetadata) {
}

func verifiedProfile() *models.IdentityProfile {
	confirmed := time.Now().Add(-time.Hour)
	return &models.IdentityProfile{
		FirstName:        "Awa",
		LastName:         "Koné",
		Phone:            "+2250700000000",
		PhoneVerified:    true,
		Email:            "awa@example.ci",
		EmailConfirmedAt: &confirmed,
		Address:          "Cocody, Abidjan",
		ONECIVerified:    true,
	}
}

func setupTestRouter(store *stateStore, profiles *profileStore) *gin.Engine {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	validator := services.NewPrerequisiteValidator(80)
	limiter := services.NewSwitchRateLimiter(store, 15*time.Minute, 3)
	roleService := services.NewRoleSwitchService(store, profiles, validator, limiter, noopDispatcher{}, logger)
	roleHandler := NewRoleHandler(roleService, testSecret)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())

	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, models.APIResponse{Success: false, Message: "Méthode non autorisée"})
	})

	v1 := router.Group("/api/v1")
	roles := v1.Group("/roles")
	roles.POST("/switch", roleHandler.SwitchRole)

	authed := roles.Group("")
	authed.Use(middleware.AuthRequired(testSecret))
	authed.GET("/me", roleHandler.GetStatus)
	authed.GET("/history", roleHandler.GetHistory)

	return router
}

func signToken(t *testing.T, userID uuid.UUID, isAdmin bool) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID.String(),
		"is_admin": isAdmin,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func doSwitch(router *gin.Engine, token, newRole string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(models.SwitchRoleRequest{NewRole: newRole})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/roles/switch", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return resp
}

func TestSwitchRole_Success(t *testing.T) {
	store := &stateStore{states: make(map[uuid.UUID]*models.UserRoleState)}
	router := setupTestRouter(store, &profileStore{profile: verifiedProfile()})
	token := signToken(t, uuid.New(), false)

	w := doSwitch(router, token, "proprietaire")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := parseResponse(t, w)
	if !resp.Success {
		t.Fatal("expected success response")
	}

	data, _ := json.Marshal(resp.Data)
	var payload models.SwitchRoleData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("failed to parse data: %v", err)
	}
	if payload.PreviousRole != models.RoleTenant {
		t.Errorf("expected previousRole locataire, got %s", payload.PreviousRole)
	}
	if payload.NewRole != models.RoleLandlord {
		t.Errorf("expected newRole proprietaire, got %s", payload.NewRole)
	}
	if payload.RemainingSwitches != 2 {
		t.Errorf("expected 2 remaining switches, got %d", payload.RemainingSwitches)
	}
}

func TestSwitchRole_ImmediateRepeatIsCooldown(t *testing.T) {
	store := &stateStore{states: make(map[uuid.UUID]*models.UserRoleState)}
	router := setupTestRouter(store, &profileStore{profile: verifiedProfile()})
	userID := uuid.New()
	token := signToken(t, userID, false)

	if w := doSwitch(router, token, "proprietaire"); w.Code != http.StatusOK {
		t.Fatalf("first switch failed: %d %s", w.Code, w.Body.String())
	}

	w := doSwitch(router, token, "locataire")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", w.Code, w.Body.String())
	}
	resp := parseResponse(t, w)
	if resp.Error == nil || resp.Error.Type != models.ErrorCooldown {
		t.Errorf("expected cooldown error, got %+v", resp.Error)
	}
}

func TestSwitchRole_UnknownRole(t *testing.T) {
	store := &stateStore{states: make(map[uuid.UUID]*models.UserRoleState)}
	router := setupTestRouter(store, &profileStore{profile: verifiedProfile()})

	// The role is validated before authentication, so no token is needed
	// to observe invalid_role.
	w := doSwitch(router, "", "super_admin")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := parseResponse(t, w)
	if resp.Error == nil || resp.Error.Type != models.ErrorInvalidRole {
		t.Errorf("expected invalid_role error, got %+v", resp.Error)
	}
}

func TestSwitchRole_MissingToken(t *testing.T) {
	store := &stateStore{states: make(map[uuid.UUID]*models.UserRoleState)}
	router := setupTestRouter(store, &profileStore{profile: verifiedProfile()})

	w := doSwitch(router, "", "proprietaire")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	resp := parseResponse(t, w)
	if resp.Error == nil || resp.Error.Type != models.ErrorNotAuthenticated {
		t.Errorf("expected not_authenticated error, got %+v", resp.Error)
	}
}

func TestSwitchRole_MalformedBody(t *testing.T) {
	store := &stateStore{states: make(map[uuid.UUID]*models.UserRoleState)}
	router := setupTestRouter(store, &profileStore{profile: verifiedProfile()})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/roles/switch", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSwitchRole_MethodNotAllowed(t *testing.T) {
	store := &stateStore{states: make(map[uuid.UUID]*models.UserRoleState)}
	router := setupTestRouter(store, &profileStore{profile: verifiedProfile()})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/roles/switch", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestSwitchRole_NoOpTransition(t *testing.T) {
	store := &stateStore{states: make(map[uuid.UUID]*models.UserRoleState)}
	router := setupTestRouter(store, &profileStore{profile: verifiedProfile()})
	token := signToken(t, uuid.New(), false)

	w := doSwitch(router, token, "locataire")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := parseResponse(t, w)
	if resp.Error == nil || resp.Error.Type != models.ErrorInvalidRole {
		t.Errorf("expected invalid_role error, got %+v", resp.Error)
	}
}

func TestSwitchRole_ValidationFailedDetails(t *testing.T) {
	store := &stateStore{states: make(map[uuid.UUID]*models.UserRoleState)}
	// Phone verified only; identity and email missing.
	profile := verifiedProfile()
	profile.ONECIVerified = false
	profile.EmailConfirmedAt = nil
	router := setupTestRouter(store, &profileStore{profile: profile})
	token := signToken(t, uuid.New(), false)

	w := doSwitch(router, token, "proprietaire")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	resp := parseResponse(t, w)
	if resp.Error == nil || resp.Error.Type != models.ErrorValidationFailed {
		t.Fatalf("expected validation_failed error, got %+v", resp.Error)
	}

	missing, ok := resp.Error.Details["missingRequirements"].([]interface{})
	if !ok || len(missing) != 2 {
		t.Errorf("expected 2 missing requirements, got %v", resp.Error.Details["missingRequirements"])
	}
	if completion, ok := resp.Error.Details["completionPercentage"].(float64); !ok || completion != 80 {
		t.Errorf("expected completionPercentage 80, got %v", resp.Error.Details["completionPercentage"])
	}
}

func TestSwitchRole_DailyLimit(t *testing.T) {
	store := &stateStore{states: make(map[uuid.UUID]*models.UserRoleState)}
	router := setupTestRouter(store, &profileStore{profile: verifiedProfile()})
	userID := uuid.New()
	token := signToken(t, userID, false)

	// Quota exhausted today, cooldown elapsed.
	now := time.Now()
	lastSwitch := now.Add(-20 * time.Minute)
	today := now.UTC().Truncate(24 * time.Hour)
	store.states[userID] = &models.UserRoleState{
		UserID:                 userID,
		CurrentRole:            models.RoleTenant,
		DailySwitchCount:       3,
		AvailableSwitchesToday: 0,
		LastSwitchAt:           &lastSwitch,
		LastRoleChangeDate:     &today,
	}

	w := doSwitch(router, token, "proprietaire")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", w.Code, w.Body.String())
	}
	resp := parseResponse(t, w)
	if resp.Error == nil || resp.Error.Type != models.ErrorDailyLimit {
		t.Errorf("expected daily_limit error, got %+v", resp.Error)
	}
}

func TestGetStatus(t *testing.T) {
	store := &stateStore{states: make(map[uuid.UUID]*models.UserRoleState)}
	router := setupTestRouter(store, &profileStore{profile: verifiedProfile()})
	token := signToken(t, uuid.New(), false)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/roles/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := parseResponse(t, w)
	data, _ := json.Marshal(resp.Data)
	var payload models.RoleStatusData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("failed to parse data: %v", err)
	}
	if payload.CurrentRole != models.RoleTenant {
		t.Errorf("expected locataire, got %s", payload.CurrentRole)
	}
	if payload.RemainingSwitches != 3 {
		t.Errorf("expected 3 remaining, got %d", payload.RemainingSwitches)
	}
}

func TestGetHistory(t *testing.T) {
	store := &stateStore{states: make(map[uuid.UUID]*models.UserRoleState)}
	router := setupTestRouter(store, &profileStore{profile: verifiedProfile()})
	userID := uuid.New()
	token := signToken(t, userID, false)

	if w := doSwitch(router, token, "proprietaire"); w.Code != http.StatusOK {
		t.Fatalf("switch failed: %d", w.Code)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/roles/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := parseResponse(t, w)
	data, _ := json.Marshal(resp.Data)
	var payload models.HistoryData
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("failed to parse data: %v", err)
	}
	if payload.Total != 1 || len(payload.History) != 1 {
		t.Fatalf("expected 1 history entry, got %+v", payload)
	}
	if payload.History[0].NewRole != models.RoleLandlord {
		t.Errorf("expected proprietaire in history, got %s", payload.History[0].NewRole)
	}
}
