package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"groomly/internal/notify"
)

var _ notify.Provider = (*ResendProvider)(nil)

const apiURL = "https://api.resend.com/emails"

// ResendProvider sends transactional email through the Resend API.
type ResendProvider struct {
	apiKey      string
	fromAddress string
	fromName    string
	httpClient  *http.Client
}

// NewResendProvider creates a new Resend email provider.
func NewResendProvider(apiKey, fromAddress, fromName string) *ResendProvider {
	return &ResendProvider{
		apiKey:      apiKey,
		fromAddress: fromAddress,
		fromName:    fromName,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel returns the email channel identifier.
func (p *ResendProvider) Channel() notify.Channel {
	return notify.ChannelEmail
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Send delivers an email and returns the Resend message ID. The error text
// on failure carries the API's message so the classifier can inspect it.
func (p *ResendProvider) Send(ctx context.Context, msg *notify.Message) (string, error) {
	from := p.fromAddress
	if p.fromName != "" {
		from = fmt.Sprintf("%s <%s>", p.fromName, p.fromAddress)
	}

	body, err := json.Marshal(sendRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		if errResp.Message != "" {
			return "", fmt.Errorf("resend: %s", errResp.Message)
		}
		return "", fmt.Errorf("resend: status %d", resp.StatusCode)
	}

	var successResp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &successResp); err != nil {
		return "", fmt.Errorf("parsing resend response: %w", err)
	}

	return successResp.ID, nil
}
