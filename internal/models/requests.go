package models

// SwitchRoleRequest represents a request to switch the active role
type SwitchRoleRequest struct {
	NewRole string `json:"newRole" binding:"required"`
}

// HistoryQuery represents pagination parameters for the switch history
type HistoryQuery struct {
	Limit  int `form:"limit,default=20"`
	Offset int `form:"offset,default=0"`
}
