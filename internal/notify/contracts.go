package notify

import "context"

// Provider defines the contract for a notification delivery channel.
// Implementations live in infra/ (Resend for email, Twilio for SMS).
type Provider interface {
	// Send delivers a rendered message and returns the provider's message ID.
	Send(ctx context.Context, msg *Message) (string, error)

	// Channel returns which delivery channel this provider handles.
	Channel() Channel
}

// Renderer defines the contract for rendering a template string against
// a variable map. Implementations live in infra/template/.
type Renderer interface {
	// Render replaces every {{name}} marker with its value from data.
	// A marker with no matching key renders as the literal [name].
	Render(template string, data map[string]string) string
}

// TemplateRepository resolves the template for a (type, channel) pair.
// Implementations live in infra/store/.
type TemplateRepository interface {
	// GetTemplate returns the template for the pair, or nil, nil when no
	// template is configured.
	GetTemplate(ctx context.Context, t NotificationType, c Channel) (*Template, error)
}

// SettingsRepository resolves per-type channel enablement.
// Implementations live in infra/store/.
type SettingsRepository interface {
	IsChannelEnabled(ctx context.Context, t NotificationType) (bool, error)
}
