package models

import "time"

// APIResponse is the standard API response wrapper
type APIResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *SwitchError `json:"error,omitempty"`
}

// SwitchRoleData is the success payload of a role switch
type SwitchRoleData struct {
	PreviousRole      Role      `json:"previousRole"`
	NewRole           Role      `json:"newRole"`
	RemainingSwitches int       `json:"remainingSwitches"`
	NextResetTime     time.Time `json:"nextResetTime"`
}

// EligibilityResult is the prerequisite validator's verdict for a target role.
// MissingRequirements is complete and in fixed checklist order so the client
// can render a remediation list, not just the first failure.
type EligibilityResult struct {
	Eligible             bool     `json:"eligible"`
	MissingRequirements  []string `json:"missingRequirements"`
	CompletionPercentage int      `json:"completionPercentage"`
}

// QuotaStatus reports the rate limiter's view of a user.
type QuotaStatus struct {
	Allowed           bool       `json:"allowed"`
	Reason            ErrorType  `json:"reason,omitempty"`
	RemainingSwitches int        `json:"remainingSwitches"`
	CooldownEndTime   *time.Time `json:"cooldownEndTime,omitempty"`
	NextResetTime     time.Time  `json:"nextResetTime"`
}

// RoleStatusData is the payload of GET /roles/me
type RoleStatusData struct {
	CurrentRole       Role       `json:"currentRole"`
	RemainingSwitches int        `json:"remainingSwitches"`
	CooldownEndTime   *time.Time `json:"cooldownEndTime,omitempty"`
	NextResetTime     time.Time  `json:"nextResetTime"`
}

// HistoryData is the payload of GET /roles/history
type HistoryData struct {
	History []SwitchRecord `json:"history"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// HealthResponse is returned by the health and readiness endpoints
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}
