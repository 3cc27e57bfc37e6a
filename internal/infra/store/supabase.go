package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"groomly/internal/notify"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const logTable = "notification_logs"

var _ notify.DeliveryStore = (*SupabaseStore)(nil)

// SupabaseStore implements DeliveryStore over the Supabase PostgREST API.
//
// The row carries the marketing-analytics columns (delivered_at, clicked_at,
// campaign_id, campaign_send_id, tracking_id, cost_cents) read by the
// campaign side of the platform. Every update here is a partial update that
// never names those columns, so they pass through unchanged.
type SupabaseStore struct {
	client *supa.Client
}

// NewClient creates the Supabase client shared by the delivery log store
// and the template and settings repositories.
func NewClient(supabaseURL, serviceKey string) (*supa.Client, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return client, nil
}

// NewSupabaseStore creates a new Supabase-backed delivery log store.
func NewSupabaseStore(client *supa.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

// logRow is the internal representation for PostgREST insert/update.
type logRow struct {
	ID             string            `json:"id,omitempty"`
	CustomerID     *string           `json:"customer_id,omitempty"`
	Type           string            `json:"type"`
	Channel        string            `json:"channel"`
	Recipient      string            `json:"recipient"`
	Subject        *string           `json:"subject,omitempty"`
	Content        string            `json:"content"`
	Status         string            `json:"status"`
	ErrorMessage   *string           `json:"error_message,omitempty"`
	SentAt         *string           `json:"sent_at,omitempty"`
	DeliveredAt    *string           `json:"delivered_at,omitempty"`
	ClickedAt      *string           `json:"clicked_at,omitempty"`
	CampaignID     *string           `json:"campaign_id,omitempty"`
	CampaignSendID *string           `json:"campaign_send_id,omitempty"`
	TrackingID     *string           `json:"tracking_id,omitempty"`
	CostCents      *int              `json:"cost_cents,omitempty"`
	TemplateID     *string           `json:"template_id,omitempty"`
	TemplateData   map[string]string `json:"template_data,omitempty"`
	RetryCount     int               `json:"retry_count"`
	RetryAfter     *string           `json:"retry_after,omitempty"`
	IsTest         bool              `json:"is_test"`
	MessageID      *string           `json:"message_id,omitempty"`
	CreatedAt      string            `json:"created_at,omitempty"`
}

// Create inserts a new delivery log entry and fills ID and CreatedAt.
func (s *SupabaseStore) Create(ctx context.Context, entry *notify.DeliveryLog) error {
	row := logRow{
		Type:         entry.Type,
		Channel:      entry.Channel,
		Recipient:    entry.Recipient,
		Content:      entry.Content,
		Status:       string(entry.Status),
		TemplateData: entry.TemplateData,
		RetryCount:   entry.RetryCount,
		IsTest:       entry.IsTest,
	}
	if entry.CustomerID != "" {
		row.CustomerID = &entry.CustomerID
	}
	if entry.Subject != "" {
		row.Subject = &entry.Subject
	}
	if entry.TemplateID != "" {
		row.TemplateID = &entry.TemplateID
	}

	data, _, err := s.client.From(logTable).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting delivery log: %w", err)
	}

	var results []logRow
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parsing insert response: %w", err)
	}

	if len(results) > 0 {
		entry.ID = results[0].ID
		if t, err := time.Parse(time.RFC3339Nano, results[0].CreatedAt); err == nil {
			entry.CreatedAt = t
		}
	}

	return nil
}

// GetByID retrieves a delivery log entry by its ID.
func (s *SupabaseStore) GetByID(ctx context.Context, id string) (*notify.DeliveryLog, error) {
	data, _, err := s.client.From(logTable).Select("*", "exact", false).Eq("id", id).Single().Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching delivery log: %w", err)
	}

	var row logRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("parsing delivery log: %w", err)
	}

	return rowToLog(&row), nil
}

// MarkPending resets an entry to pending at the start of a retry attempt.
func (s *SupabaseStore) MarkPending(ctx context.Context, id string) error {
	update := map[string]any{
		"status": string(notify.StatusPending),
	}

	_, _, err := s.client.From(logTable).Update(update, "", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("marking delivery pending: %w", err)
	}
	return nil
}

// MarkSent records a successful delivery. Clears error and retry state so
// the sent-state invariant holds: message_id set and error_message unset.
func (s *SupabaseStore) MarkSent(ctx context.Context, id, messageID string, sentAt time.Time) error {
	update := map[string]any{
		"status":        string(notify.StatusSent),
		"message_id":    messageID,
		"sent_at":       sentAt.UTC().Format(time.RFC3339Nano),
		"error_message": nil,
		"retry_after":   nil,
	}

	_, _, err := s.client.From(logTable).Update(update, "", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("marking delivery sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt with its retry state.
func (s *SupabaseStore) MarkFailed(ctx context.Context, id, errMsg string, retryCount int, retryAfter *time.Time) error {
	update := map[string]any{
		"status":        string(notify.StatusFailed),
		"error_message": errMsg,
		"retry_count":   retryCount,
		"message_id":    nil,
	}
	if retryAfter != nil {
		update["retry_after"] = retryAfter.UTC().Format(time.RFC3339Nano)
	} else {
		update["retry_after"] = nil
	}

	_, _, err := s.client.From(logTable).Update(update, "", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("marking delivery failed: %w", err)
	}
	return nil
}

// ListRetryEligible returns failed entries whose retry_after has passed,
// oldest first. A non-null retry_after already implies the entry was
// transient and under the retry ceiling when it was recorded.
func (s *SupabaseStore) ListRetryEligible(ctx context.Context, now time.Time, limit int) ([]*notify.DeliveryLog, error) {
	if limit <= 0 {
		limit = 50
	}

	due := now.UTC().Format(time.RFC3339Nano)

	data, _, err := s.client.From(logTable).
		Select("*", "exact", false).
		Eq("status", string(notify.StatusFailed)).
		Not("retry_after", "is", "null").
		Lte("retry_after", due).
		Order("retry_after", &postgrest.OrderOpts{Ascending: true}).
		Range(0, limit-1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing retry-eligible entries: %w", err)
	}

	var rows []logRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing retry-eligible entries: %w", err)
	}

	logs := make([]*notify.DeliveryLog, len(rows))
	for i := range rows {
		logs[i] = rowToLog(&rows[i])
	}
	return logs, nil
}

// Claim takes ownership of a retry-eligible entry by clearing retry_after,
// guarded by a compare-and-swap on retry_count. A concurrent claimer (or a
// lineage that already moved on) leaves zero rows updated.
func (s *SupabaseStore) Claim(ctx context.Context, id string, retryCount int) (bool, error) {
	update := map[string]any{
		"retry_after": nil,
	}

	data, _, err := s.client.From(logTable).
		Update(update, "representation", "").
		Eq("id", id).
		Eq("retry_count", strconv.Itoa(retryCount)).
		Not("retry_after", "is", "null").
		Execute()
	if err != nil {
		return false, fmt.Errorf("claiming delivery log: %w", err)
	}

	var rows []logRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, fmt.Errorf("parsing claim response: %w", err)
	}

	return len(rows) > 0, nil
}

// List retrieves delivery log entries with pagination and filtering.
func (s *SupabaseStore) List(ctx context.Context, filter notify.ListFilter) ([]*notify.DeliveryLog, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	offset := (filter.Page - 1) * filter.PageSize

	query := s.client.From(logTable).Select("*", "exact", false)

	if filter.Status != "" {
		query = query.Eq("status", filter.Status)
	}
	if filter.Recipient != "" {
		query = query.Eq("recipient", filter.Recipient)
	}
	if filter.Channel != "" {
		query = query.Eq("channel", filter.Channel)
	}
	if filter.CustomerID != "" {
		query = query.Eq("customer_id", filter.CustomerID)
	}

	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	query = query.Range(offset, offset+filter.PageSize-1, "")

	data, count, err := query.Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("listing delivery logs: %w", err)
	}

	var rows []logRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("parsing delivery log list: %w", err)
	}

	logs := make([]*notify.DeliveryLog, len(rows))
	for i := range rows {
		logs[i] = rowToLog(&rows[i])
	}
	return logs, int(count), nil
}

// rowToLog converts a logRow to a DeliveryLog.
func rowToLog(row *logRow) *notify.DeliveryLog {
	entry := &notify.DeliveryLog{
		ID:           row.ID,
		Type:         row.Type,
		Channel:      row.Channel,
		Recipient:    row.Recipient,
		Content:      row.Content,
		Status:       notify.Status(row.Status),
		TemplateData: row.TemplateData,
		RetryCount:   row.RetryCount,
		IsTest:       row.IsTest,
		CostCents:    row.CostCents,
	}

	if row.CustomerID != nil {
		entry.CustomerID = *row.CustomerID
	}
	if row.Subject != nil {
		entry.Subject = *row.Subject
	}
	if row.ErrorMessage != nil {
		entry.ErrorMessage = *row.ErrorMessage
	}
	if row.CampaignID != nil {
		entry.CampaignID = *row.CampaignID
	}
	if row.CampaignSendID != nil {
		entry.CampaignSendID = *row.CampaignSendID
	}
	if row.TrackingID != nil {
		entry.TrackingID = *row.TrackingID
	}
	if row.TemplateID != nil {
		entry.TemplateID = *row.TemplateID
	}
	if row.MessageID != nil {
		entry.MessageID = *row.MessageID
	}

	entry.SentAt = parseTimePtr(row.SentAt)
	entry.DeliveredAt = parseTimePtr(row.DeliveredAt)
	entry.ClickedAt = parseTimePtr(row.ClickedAt)
	entry.RetryAfter = parseTimePtr(row.RetryAfter)

	if row.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
			entry.CreatedAt = t
		}
	}

	return entry
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}
