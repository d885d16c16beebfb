package services

import (
	"strings"

	"role-service/internal/models"
)

// completionShare is the fixed contribution of each checklist field.
const completionShare = 20

// EvaluateCompletion computes the profile completion percentage: each present
// checklist field (first name, last name, phone, address) contributes an
// equal fixed share, summed and capped at 100. No partial credit. Pure and
// total; a nil profile scores 0.
func EvaluateCompletion(profile *models.IdentityProfile) int {
	if profile == nil {
		return 0
	}

	score := 0
	if strings.TrimSpace(profile.FirstName) != "" {
		score += completionShare
	}
	if strings.TrimSpace(profile.LastName) != "" {
		score += completionShare
	}
	if strings.TrimSpace(profile.Phone) != "" {
		score += completionShare
	}
	if strings.TrimSpace(profile.Address) != "" {
		score += completionShare
	}

	if score > 100 {
		score = 100
	}
	return score
}
