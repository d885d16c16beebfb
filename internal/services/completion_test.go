package services

import (
	"testing"

	"role-service/internal/models"
)

func TestEvaluateCompletion(t *testing.T) {
	testCases := []struct {
		name     string
		profile  *models.IdentityProfile
		expected int
	}{
		{"nil profile", nil, 0},
		{"empty profile", &models.IdentityProfile{}, 0},
		{"first name only", &models.IdentityProfile{FirstName: "Awa"}, 20},
		{"two fields", &models.IdentityProfile{FirstName: "Awa", LastName: "Koné"}, 40},
		{"three fields", &models.IdentityProfile{FirstName: "Awa", LastName: "Koné", Phone: "+2250700000000"}, 60},
		{"all four fields", &models.IdentityProfile{
			FirstName: "Awa",
			LastName:  "Koné",
			Phone:     "+2250700000000",
			Address:   "Cocody, Abidjan",
		}, 80},
		{"whitespace gets no credit", &models.IdentityProfile{FirstName: "   ", LastName: "Koné"}, 20},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EvaluateCompletion(tc.profile); got != tc.expected {
				t.Errorf("expected %d%%, got %d%%", tc.expected, got)
			}
		})
	}
}

func TestEvaluateCompletion_Deterministic(t *testing.T) {
	profile := &models.IdentityProfile{FirstName: "Awa", Phone: "+2250700000000"}

	first := EvaluateCompletion(profile)
	for i := 0; i < 10; i++ {
		if got := EvaluateCompletion(profile); got != first {
			t.Fatalf("evaluation is not deterministic: %d vs %d", first, got)
		}
	}
}
