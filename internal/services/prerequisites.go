package services

import (
	"role-service/internal/models"
)

// Checklist item labels, in fixed order, returned verbatim to the client so
// it can render a complete remediation list.
const (
	requirementIdentity   = "Vérification de la pièce d'identité (ONECI) requise"
	requirementPhone      = "Numéro de téléphone non vérifié"
	requirementEmail      = "Adresse e-mail non confirmée"
	requirementCompletion = "Profil incomplet"
)

// PrerequisiteValidator decides whether a user's identity-verification facts
// satisfy a target role's upgrade requirements.
type PrerequisiteValidator struct {
	completionThreshold int
}

// NewPrerequisiteValidator creates a new prerequisite validator
func NewPrerequisiteValidator(completionThreshold int) *PrerequisiteValidator {
	return &PrerequisiteValidator{completionThreshold: completionThreshold}
}

// Validate evaluates every predicate for the target role and returns the
// complete set of unmet requirements in checklist order. Roles without an
// identity-upgrade gate are always eligible. Side-effect-free.
func (v *PrerequisiteValidator) Validate(targetRole models.Role, profile *models.IdentityProfile, flags models.VerificationFlags) models.EligibilityResult {
	completion := EvaluateCompletion(profile)

	result := models.EligibilityResult{
		Eligible:             true,
		MissingRequirements:  []string{},
		CompletionPercentage: completion,
	}

	if !targetRole.RequiresIdentityUpgrade() {
		return result
	}

	if !flags.IdentityVerified {
		result.MissingRequirements = append(result.MissingRequirements, requirementIdentity)
	}
	if !flags.PhoneVerified {
		result.MissingRequirements = append(result.MissingRequirements, requirementPhone)
	}
	if !flags.EmailVerified {
		result.MissingRequirements = append(result.MissingRequirements, requirementEmail)
	}
	if completion < v.completionThreshold {
		result.MissingRequirements = append(result.MissingRequirements, requirementCompletion)
	}

	result.Eligible = len(result.MissingRequirements) == 0
	return result
}
