package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"groomly/internal/notify"
)

var _ notify.Provider = (*TwilioProvider)(nil)

// TwilioProvider sends text messages through the Twilio Messages API.
type TwilioProvider struct {
	accountSID string
	authToken  string
	fromNumber string
	httpClient *http.Client
}

// NewTwilioProvider creates a new Twilio SMS provider.
func NewTwilioProvider(accountSID, authToken, fromNumber string) *TwilioProvider {
	return &TwilioProvider{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel returns the SMS channel identifier.
func (p *TwilioProvider) Channel() notify.Channel {
	return notify.ChannelSMS
}

// Send delivers a text message and returns the Twilio message SID. The
// error text on failure carries Twilio's message so the classifier can
// inspect it ("is not a valid phone number" and friends stay permanent).
func (p *TwilioProvider) Send(ctx context.Context, msg *notify.Message) (string, error) {
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", p.accountSID)

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", p.fromNumber)
	form.Set("Body", msg.Body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.accountSID, p.authToken)

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
			Code    int    `json:"code"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		if errResp.Message != "" {
			return "", fmt.Errorf("twilio: %s (code %d)", errResp.Message, errResp.Code)
		}
		return "", fmt.Errorf("twilio: status %d", resp.StatusCode)
	}

	var successResp struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(respBody, &successResp); err != nil {
		return "", fmt.Errorf("parsing twilio response: %w", err)
	}

	return successResp.SID, nil
}
