package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"role-service/internal/models"
)

// NotificationProvider delivers messages via the notification-service API,
// which centralizes channel selection and actual delivery.
type NotificationProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// notificationSendRequest represents the notification-service send request
type notificationSendRequest struct {
	Channel        string                 `json:"channel"`
	RecipientEmail string                 `json:"recipientEmail,omitempty"`
	Subject        string                 `json:"subject"`
	BodyHTML       string                 `json:"bodyHtml,omitempty"`
	Variables      map[string]interface{} `json:"variables,omitempty"`
	Priority       string                 `json:"priority,omitempty"`
}

// notificationResponse represents the notification-service API response
type notificationResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewNotificationProvider creates a new notification provider.
// baseURL is the notification-service internal URL; apiKey is used for
// inter-service authentication.
func NewNotificationProvider(baseURL, apiKey string) *NotificationProvider {
	return &NotificationProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetName returns the provider name
func (p *NotificationProvider) GetName() string {
	return "notification-service"
}

// SendRoleChangeEmail sends the role change confirmation email
func (p *NotificationProvider) SendRoleChangeEmail(email string, previousRole, newRole models.Role) error {
	subject := "Votre rôle a été mis à jour"
	body := fmt.Sprintf(
		"<p>Bonjour,</p><p>Votre rôle sur la plateforme est passé de <strong>%s</strong> à <strong>%s</strong>.</p>"+
			"<p>Si vous n'êtes pas à l'origine de ce changement, contactez le support immédiatement.</p>",
		previousRole, newRole,
	)
	return p.send(email, subject, body)
}

func (p *NotificationProvider) send(recipient, subject, htmlBody string) error {
	payload := notificationSendRequest{
		Channel:        "EMAIL",
		RecipientEmail: recipient,
		Subject:        subject,
		BodyHTML:       htmlBody,
		Priority:       "NORMAL",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	apiEndpoint := fmt.Sprintf("%s/api/v1/notifications/send", p.baseURL)

	req, err := http.NewRequest(http.MethodPost, apiEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to notification-service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("notification-service API error (status %d): %s", resp.StatusCode, string(body))
	}

	var notifResp notificationResponse
	if err := json.Unmarshal(body, &notifResp); err != nil {
		return fmt.Errorf("failed to parse notification-service response: %w", err)
	}

	if !notifResp.Success {
		return fmt.Errorf("notification-service returned error: %s", notifResp.Error)
	}

	return nil
}
