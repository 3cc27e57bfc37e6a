package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"groomly/internal/common"

	"golang.org/x/sync/errgroup"
)

const defaultBatchConcurrency = 8

// Service orchestrates a single delivery attempt: resolve channel settings
// and template, render content, invoke the channel provider, classify
// failure, update the delivery log, and compute retry state.
//
// Send and SendBatch never return an error value; every failure is captured
// in the SendResult and in the delivery log so the caller always has an
// inspectable outcome.
type Service struct {
	store            DeliveryStore
	templates        TemplateRepository
	settings         SettingsRepository
	renderer         Renderer
	providers        map[Channel]Provider
	policy           RetryPolicy
	batchConcurrency int
}

// NewService creates a new notification service. batchConcurrency bounds
// concurrent dispatch in SendBatch; zero or negative selects the default.
func NewService(
	store DeliveryStore,
	templates TemplateRepository,
	settings SettingsRepository,
	renderer Renderer,
	policy RetryPolicy,
	batchConcurrency int,
	providers ...Provider,
) *Service {
	pm := make(map[Channel]Provider, len(providers))
	for _, p := range providers {
		pm[p.Channel()] = p
	}
	if batchConcurrency <= 0 {
		batchConcurrency = defaultBatchConcurrency
	}
	return &Service{
		store:            store,
		templates:        templates,
		settings:         settings,
		renderer:         renderer,
		providers:        pm,
		policy:           policy,
		batchConcurrency: batchConcurrency,
	}
}

// Send performs one delivery attempt for the message.
func (s *Service) Send(ctx context.Context, msg *NotificationMessage) SendResult {
	return s.attempt(ctx, msg, nil)
}

// SendBatch sends each message independently through the same path as Send.
// Dispatch is concurrent up to the configured bound; the results slice
// preserves input order, and one item's failure never prevents, delays
// beyond the bound, or alters the outcome of any other item.
func (s *Service) SendBatch(ctx context.Context, msgs []*NotificationMessage) []SendResult {
	results := make([]SendResult, len(msgs))
	g := new(errgroup.Group)
	g.SetLimit(s.batchConcurrency)
	for i, msg := range msgs {
		i, msg := i, msg
		g.Go(func() error {
			results[i] = s.Send(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Retry re-enters the send path for a claimed retry-eligible log entry,
// rebuilding the message from the stored row. The lineage keeps its row:
// the next attempt updates the same entry in place.
func (s *Service) Retry(ctx context.Context, entry *DeliveryLog) SendResult {
	return s.attempt(ctx, entry.Message(), entry)
}

func (s *Service) attempt(ctx context.Context, msg *NotificationMessage, prior *DeliveryLog) SendResult {
	start := time.Now()

	if !msg.Channel.IsValid() {
		return s.recordFailure(ctx, msg, prior,
			common.NewValidationError("unsupported channel: "+string(msg.Channel)), false)
	}

	enabled, err := s.settings.IsChannelEnabled(ctx, msg.Type)
	if err != nil {
		return s.recordFailure(ctx, msg, prior,
			fmt.Errorf("resolving channel settings: %w", err), IsTransient(err))
	}
	if !enabled {
		// No provider call and no retry: a disabled channel is an
		// operator decision, not a fault.
		return s.recordFailure(ctx, msg, prior,
			common.NewChannelDisabledError(string(msg.Type)), false)
	}

	tpl, err := s.templates.GetTemplate(ctx, msg.Type, msg.Channel)
	if err != nil {
		return s.recordFailure(ctx, msg, prior,
			fmt.Errorf("resolving template: %w", err), IsTransient(err))
	}
	if tpl == nil {
		// A missing template is a configuration defect, never transient.
		return s.recordFailure(ctx, msg, prior,
			common.NewTemplateNotFoundError(string(msg.Type), string(msg.Channel)), false)
	}

	rendered := s.render(tpl, msg)

	entry := prior
	if entry == nil {
		entry = newLogEntry(msg, tpl, rendered)
		if err := s.store.Create(ctx, entry); err != nil {
			slog.Error("failed to create delivery log",
				"type", msg.Type,
				"channel", msg.Channel,
				"error", err,
			)
			return SendResult{Success: false, Error: "creating delivery log: " + err.Error()}
		}
	} else if err := s.store.MarkPending(ctx, entry.ID); err != nil {
		slog.Error("failed to reset delivery log to pending", "log_id", entry.ID, "error", err)
	}

	provider, ok := s.providers[msg.Channel]
	if !ok {
		return s.recordFailure(ctx, msg, entry,
			common.NewValidationError("no provider registered for channel: "+string(msg.Channel)), false)
	}

	messageID, sendErr := invoke(ctx, provider, rendered)
	if sendErr != nil {
		return s.recordFailure(ctx, msg, entry,
			common.NewProviderError(string(msg.Channel), sendErr.Error()), IsTransient(sendErr))
	}

	sentAt := time.Now().UTC()
	if err := s.store.MarkSent(ctx, entry.ID, messageID, sentAt); err != nil {
		// The message is out; losing the log update must not turn a
		// delivered notification into a reported failure.
		slog.Error("failed to mark delivery sent", "log_id", entry.ID, "error", err)
	}

	slog.Info("notification sent",
		"log_id", entry.ID,
		"channel", msg.Channel,
		"type", msg.Type,
		"to", msg.Recipient,
		"message_id", messageID,
		"retry_count", entry.RetryCount,
		"duration", time.Since(start),
	)

	return SendResult{Success: true, MessageID: messageID, LogID: entry.ID}
}

// recordFailure captures a failed attempt. When no log row exists yet
// (first-attempt failures in the resolution phase) one is created first, so
// every failed send leaves an entry an operator can inspect or re-trigger.
// Transient failures under the retry ceiling get a retryAfter from the
// backoff policy; everything else is terminal.
func (s *Service) recordFailure(ctx context.Context, msg *NotificationMessage, entry *DeliveryLog, cause error, transient bool) SendResult {
	if entry == nil {
		entry = &DeliveryLog{
			CustomerID:   msg.CustomerID,
			Type:         string(msg.Type),
			Channel:      string(msg.Channel),
			Recipient:    msg.Recipient,
			TemplateData: msg.TemplateData,
			Status:       StatusPending,
			IsTest:       msg.IsTest,
		}
		if err := s.store.Create(ctx, entry); err != nil {
			slog.Error("failed to create delivery log",
				"type", msg.Type,
				"channel", msg.Channel,
				"error", err,
			)
			return SendResult{Success: false, Error: cause.Error()}
		}
	}

	retryCount := entry.RetryCount + 1
	var retryAfter *time.Time
	if transient && !s.policy.Exhausted(retryCount) {
		at := s.policy.RetryAfter(time.Now().UTC(), entry.RetryCount)
		retryAfter = &at
	}

	if err := s.store.MarkFailed(ctx, entry.ID, cause.Error(), retryCount, retryAfter); err != nil {
		slog.Error("failed to mark delivery failed", "log_id", entry.ID, "error", err)
	}

	slog.Error("notification delivery failed",
		"log_id", entry.ID,
		"channel", msg.Channel,
		"type", msg.Type,
		"to", msg.Recipient,
		"transient", transient,
		"retry_count", retryCount,
		"error", cause,
	)

	return SendResult{Success: false, LogID: entry.ID, Error: cause.Error()}
}

// render produces the channel-specific content for the message.
func (s *Service) render(tpl *Template, msg *NotificationMessage) *Message {
	rendered := &Message{To: msg.Recipient}
	switch msg.Channel {
	case ChannelEmail:
		rendered.Subject = s.renderer.Render(tpl.SubjectTemplate, msg.TemplateData)
		rendered.HTML = s.renderer.Render(tpl.HTMLTemplate, msg.TemplateData)
		rendered.Text = s.renderer.Render(tpl.TextTemplate, msg.TemplateData)
	case ChannelSMS:
		rendered.Body = s.renderer.Render(tpl.SMSTemplate, msg.TemplateData)
	}
	return rendered
}

// newLogEntry builds the pending log row for a first attempt. Subject and
// Content hold the rendered text, not the raw template.
func newLogEntry(msg *NotificationMessage, tpl *Template, rendered *Message) *DeliveryLog {
	return &DeliveryLog{
		CustomerID:   msg.CustomerID,
		Type:         string(msg.Type),
		Channel:      string(msg.Channel),
		Recipient:    msg.Recipient,
		Subject:      rendered.Subject,
		Content:      logContent(rendered),
		Status:       StatusPending,
		TemplateID:   tpl.ID,
		TemplateData: msg.TemplateData,
		IsTest:       msg.IsTest,
	}
}

// logContent picks the body that was actually handed to the provider.
func logContent(m *Message) string {
	if m.Body != "" {
		return m.Body
	}
	if m.HTML != "" {
		return m.HTML
	}
	return m.Text
}

// invoke shields the service from a panicking provider. A panic is routed
// through the error classifier exactly like a structured provider failure.
func invoke(ctx context.Context, p Provider, msg *Message) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	return p.Send(ctx, msg)
}
