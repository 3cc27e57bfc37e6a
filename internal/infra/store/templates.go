package store

import (
	"context"
	"encoding/json"
	"fmt"

	"groomly/internal/notify"

	supa "github.com/supabase-community/supabase-go"
)

const (
	templateTable = "notification_templates"
	settingsTable = "notification_settings"
)

var (
	_ notify.TemplateRepository = (*TemplateRepository)(nil)
	_ notify.SettingsRepository = (*SettingsRepository)(nil)
)

// TemplateRepository resolves notification templates from Supabase, keyed
// by (type, channel). Templates are authored and versioned by the admin UI;
// the core only reads the active row.
type TemplateRepository struct {
	client *supa.Client
}

// NewTemplateRepository creates a new Supabase-backed template repository.
func NewTemplateRepository(client *supa.Client) *TemplateRepository {
	return &TemplateRepository{client: client}
}

type templateRow struct {
	ID              string                    `json:"id"`
	Type            string                    `json:"type"`
	Channel         string                    `json:"channel"`
	SubjectTemplate *string                   `json:"subject_template,omitempty"`
	HTMLTemplate    *string                   `json:"html_template,omitempty"`
	TextTemplate    *string                   `json:"text_template,omitempty"`
	SMSTemplate     *string                   `json:"sms_template,omitempty"`
	Variables       []notify.TemplateVariable `json:"variables,omitempty"`
}

// GetTemplate returns the template for the pair, or nil, nil when no
// template is configured.
func (r *TemplateRepository) GetTemplate(ctx context.Context, t notify.NotificationType, c notify.Channel) (*notify.Template, error) {
	data, _, err := r.client.From(templateTable).
		Select("*", "exact", false).
		Eq("type", string(t)).
		Eq("channel", string(c)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching template: %w", err)
	}

	var rows []templateRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	tpl := &notify.Template{
		ID:        row.ID,
		Type:      notify.NotificationType(row.Type),
		Channel:   notify.Channel(row.Channel),
		Variables: row.Variables,
	}
	if row.SubjectTemplate != nil {
		tpl.SubjectTemplate = *row.SubjectTemplate
	}
	if row.HTMLTemplate != nil {
		tpl.HTMLTemplate = *row.HTMLTemplate
	}
	if row.TextTemplate != nil {
		tpl.TextTemplate = *row.TextTemplate
	}
	if row.SMSTemplate != nil {
		tpl.SMSTemplate = *row.SMSTemplate
	}

	return tpl, nil
}

// SettingsRepository resolves per-type channel enablement from Supabase.
type SettingsRepository struct {
	client *supa.Client
}

// NewSettingsRepository creates a new Supabase-backed settings repository.
func NewSettingsRepository(client *supa.Client) *SettingsRepository {
	return &SettingsRepository{client: client}
}

type settingsRow struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// IsChannelEnabled reports whether notifications of the given type may be
// sent. A type with no settings row is enabled: new notification types flow
// until an operator switches them off.
func (r *SettingsRepository) IsChannelEnabled(ctx context.Context, t notify.NotificationType) (bool, error) {
	data, _, err := r.client.From(settingsTable).
		Select("type,enabled", "exact", false).
		Eq("type", string(t)).
		Execute()
	if err != nil {
		return false, fmt.Errorf("fetching notification settings: %w", err)
	}

	var rows []settingsRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, fmt.Errorf("parsing notification settings: %w", err)
	}

	if len(rows) == 0 {
		return true, nil
	}
	return rows[0].Enabled, nil
}
