package common

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' not found", e.Resource, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError indicates invalid input data.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// ChannelDisabledError indicates the channel for a notification type is
// switched off in settings. Always permanent; no provider is invoked.
type ChannelDisabledError struct {
	Type string
}

func (e *ChannelDisabledError) Error() string {
	return fmt.Sprintf("notifications of type '%s' are disabled", e.Type)
}

// NewChannelDisabledError creates a new ChannelDisabledError.
func NewChannelDisabledError(notifType string) *ChannelDisabledError {
	return &ChannelDisabledError{Type: notifType}
}

// TemplateNotFoundError indicates no template is configured for a
// (type, channel) pair. A configuration defect, always permanent.
type TemplateNotFoundError struct {
	Type    string
	Channel string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("no template configured for type '%s' on channel '%s'", e.Type, e.Channel)
}

// NewTemplateNotFoundError creates a new TemplateNotFoundError.
func NewTemplateNotFoundError(notifType, channel string) *TemplateNotFoundError {
	return &TemplateNotFoundError{Type: notifType, Channel: channel}
}

// ProviderError indicates an external provider failure.
type ProviderError struct {
	Provider string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, message string) *ProviderError {
	return &ProviderError{Provider: provider, Message: message}
}
