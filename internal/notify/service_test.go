package notify_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"groomly/internal/infra/template"
	"groomly/internal/notify"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory DeliveryStore for tests.
type memStore struct {
	mu        sync.Mutex
	entries   map[string]*notify.DeliveryLog
	createErr error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]*notify.DeliveryLog)}
}

func (s *memStore) Create(ctx context.Context, entry *notify.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	cp := *entry
	s.entries[entry.ID] = &cp
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*notify.DeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("delivery log not found: %s", id)
	}
	cp := *entry
	return &cp, nil
}

func (s *memStore) MarkPending(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[id]; ok {
		entry.Status = notify.StatusPending
	}
	return nil
}

func (s *memStore) MarkSent(ctx context.Context, id, messageID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("delivery log not found: %s", id)
	}
	entry.Status = notify.StatusSent
	entry.MessageID = messageID
	entry.SentAt = &sentAt
	entry.ErrorMessage = ""
	entry.RetryAfter = nil
	return nil
}

func (s *memStore) MarkFailed(ctx context.Context, id, errMsg string, retryCount int, retryAfter *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("delivery log not found: %s", id)
	}
	entry.Status = notify.StatusFailed
	entry.ErrorMessage = errMsg
	entry.RetryCount = retryCount
	entry.RetryAfter = retryAfter
	entry.MessageID = ""
	return nil
}

func (s *memStore) ListRetryEligible(ctx context.Context, now time.Time, limit int) ([]*notify.DeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*notify.DeliveryLog
	for _, entry := range s.entries {
		if entry.Status == notify.StatusFailed && entry.RetryAfter != nil && !entry.RetryAfter.After(now) {
			cp := *entry
			due = append(due, &cp)
			if len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

func (s *memStore) Claim(ctx context.Context, id string, retryCount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok || entry.RetryAfter == nil || entry.RetryCount != retryCount {
		return false, nil
	}
	entry.RetryAfter = nil
	return true, nil
}

func (s *memStore) List(ctx context.Context, filter notify.ListFilter) ([]*notify.DeliveryLog, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*notify.DeliveryLog
	for _, entry := range s.entries {
		if filter.Status != "" && string(entry.Status) != filter.Status {
			continue
		}
		if filter.Recipient != "" && entry.Recipient != filter.Recipient {
			continue
		}
		cp := *entry
		out = append(out, &cp)
	}
	return out, len(out), nil
}

// setRetryAfter rewinds an entry's retry clock so a sweep sees it as due.
func (s *memStore) setRetryAfter(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[id]; ok {
		entry.RetryAfter = &at
	}
}

// fakeTemplates is an in-memory TemplateRepository.
type fakeTemplates struct {
	templates map[string]*notify.Template
	err       error
}

func (f *fakeTemplates) GetTemplate(ctx context.Context, t notify.NotificationType, c notify.Channel) (*notify.Template, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.templates[string(t)+"/"+string(c)], nil
}

// fakeSettings is an in-memory SettingsRepository. Types default to enabled.
type fakeSettings struct {
	disabled map[notify.NotificationType]bool
	err      error
}

func (f *fakeSettings) IsChannelEnabled(ctx context.Context, t notify.NotificationType) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.disabled[t], nil
}

// fakeProvider records calls and fails on demand, per recipient or globally.
type fakeProvider struct {
	mu       sync.Mutex
	channel  notify.Channel
	err      error            // fail every call
	failFor  map[string]error // fail calls to specific recipients
	panicMsg string
	calls    int
	sent     []*notify.Message
}

func (p *fakeProvider) Send(ctx context.Context, msg *notify.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	if p.err != nil {
		return "", p.err
	}
	if err, ok := p.failFor[msg.To]; ok {
		return "", err
	}
	p.sent = append(p.sent, msg)
	return fmt.Sprintf("msg_%d", len(p.sent)), nil
}

func (p *fakeProvider) Channel() notify.Channel { return p.channel }

func (p *fakeProvider) successCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var testPolicy = notify.RetryPolicy{MaxRetries: 3, BaseDelay: time.Minute, MaxDelay: time.Hour}

func bookingTemplates() *fakeTemplates {
	return &fakeTemplates{templates: map[string]*notify.Template{
		"booking_confirmation/email": {
			ID:              "tpl-confirm-email",
			Type:            notify.TypeBookingConfirmation,
			Channel:         notify.ChannelEmail,
			SubjectTemplate: "Appointment confirmed for {{pet_name}}",
			HTMLTemplate:    "<p>Hi {{customer_name}}, {{pet_name}} is booked for {{appointment_date}} at {{appointment_time}}.</p>",
			TextTemplate:    "Hi {{customer_name}}, {{pet_name}} is booked for {{appointment_date}} at {{appointment_time}}.",
		},
		"booking_reminder/sms": {
			ID:          "tpl-reminder-sms",
			Type:        notify.TypeBookingReminder,
			Channel:     notify.ChannelSMS,
			SMSTemplate: "Hi {{customer_name}}, reminder: {{pet_name}} has a grooming appointment at {{appointment_time}}.",
		},
	}}
}

func confirmationMessage() *notify.NotificationMessage {
	return &notify.NotificationMessage{
		Type:      notify.TypeBookingConfirmation,
		Channel:   notify.ChannelEmail,
		Recipient: "john@example.com",
		TemplateData: map[string]string{
			"customer_name":    "John Doe",
			"pet_name":         "Buddy",
			"appointment_date": "December 20, 2024",
			"appointment_time": "10:00 AM",
		},
	}
}

func TestSend_Success(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{channel: notify.ChannelEmail}
	svc := notify.NewService(store, bookingTemplates(), &fakeSettings{}, template.NewEngine(), testPolicy, 0, provider)

	res := svc.Send(context.Background(), confirmationMessage())

	require.True(t, res.Success)
	assert.NotEmpty(t, res.MessageID)
	assert.Empty(t, res.Error)

	entry, err := store.GetByID(context.Background(), res.LogID)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusSent, entry.Status)
	assert.Equal(t, res.MessageID, entry.MessageID)
	assert.Empty(t, entry.ErrorMessage)
	assert.NotNil(t, entry.SentAt)
	assert.Nil(t, entry.RetryAfter)
	assert.Contains(t, entry.Content, "John Doe")
	assert.Contains(t, entry.Content, "Buddy")
	assert.Equal(t, "Appointment confirmed for Buddy", entry.Subject)
	assert.Equal(t, "tpl-confirm-email", entry.TemplateID)
}

func TestSend_ChannelDisabled(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{channel: notify.ChannelEmail}
	settings := &fakeSettings{disabled: map[notify.NotificationType]bool{notify.TypeBookingConfirmation: true}}
	svc := notify.NewService(store, bookingTemplates(), settings, template.NewEngine(), testPolicy, 0, provider)

	res := svc.Send(context.Background(), confirmationMessage())

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "disabled")
	assert.Zero(t, provider.callCount())

	entry, err := store.GetByID(context.Background(), res.LogID)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusFailed, entry.Status)
	assert.Nil(t, entry.RetryAfter)
}

func TestSend_TemplateMissing(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{channel: notify.ChannelSMS}
	svc := notify.NewService(store, bookingTemplates(), &fakeSettings{}, template.NewEngine(), testPolicy, 0, provider)

	res := svc.Send(context.Background(), &notify.NotificationMessage{
		Type:      notify.TypeVaccinationExpiry,
		Channel:   notify.ChannelSMS,
		Recipient: "+15551230000",
	})

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "no template configured")
	assert.Zero(t, provider.callCount())

	entry, err := store.GetByID(context.Background(), res.LogID)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusFailed, entry.Status)
	assert.Nil(t, entry.RetryAfter)
}

func TestSend_TransientProviderFailure(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{channel: notify.ChannelEmail, err: errors.New("ETIMEDOUT: Connection timeout")}
	svc := notify.NewService(store, bookingTemplates(), &fakeSettings{}, template.NewEngine(), testPolicy, 0, provider)

	before := time.Now().UTC()
	res := svc.Send(context.Background(), confirmationMessage())

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "ETIMEDOUT")

	entry, err := store.GetByID(context.Background(), res.LogID)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusFailed, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
	require.NotNil(t, entry.RetryAfter)
	assert.True(t, entry.RetryAfter.After(before))
	assert.Empty(t, entry.MessageID)
}

func TestSend_PermanentProviderFailure(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{channel: notify.ChannelEmail, err: errors.New("Invalid email address format")}
	svc := notify.NewService(store, bookingTemplates(), &fakeSettings{}, template.NewEngine(), testPolicy, 0, provider)

	res := svc.Send(context.Background(), confirmationMessage())

	require.False(t, res.Success)

	entry, err := store.GetByID(context.Background(), res.LogID)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusFailed, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
	assert.Nil(t, entry.RetryAfter)
}

func TestSend_ProviderPanicCaptured(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{channel: notify.ChannelEmail, panicMsg: "nil pointer dereference"}
	svc := notify.NewService(store, bookingTemplates(), &fakeSettings{}, template.NewEngine(), testPolicy, 0, provider)

	res := svc.Send(context.Background(), confirmationMessage())

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "panic")

	entry, err := store.GetByID(context.Background(), res.LogID)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusFailed, entry.Status)
	assert.Nil(t, entry.RetryAfter)
}

func TestSend_UnknownChannel(t *testing.T) {
	store := newMemStore()
	svc := notify.NewService(store, bookingTemplates(), &fakeSettings{}, template.NewEngine(), testPolicy, 0)

	res := svc.Send(context.Background(), &notify.NotificationMessage{
		Type:      notify.TypeBookingConfirmation,
		Channel:   notify.Channel("pigeon"),
		Recipient: "coop 7",
	})

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "unsupported channel")
}

func TestSend_SettingsLookupTimeoutIsRetryable(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{channel: notify.ChannelEmail}
	settings := &fakeSettings{err: errors.New("dial tcp: i/o timeout")}
	svc := notify.NewService(store, bookingTemplates(), settings, template.NewEngine(), testPolicy, 0, provider)

	res := svc.Send(context.Background(), confirmationMessage())

	require.False(t, res.Success)
	assert.Zero(t, provider.callCount())

	entry, err := store.GetByID(context.Background(), res.LogID)
	require.NoError(t, err)
	assert.NotNil(t, entry.RetryAfter)
}

func TestRetry_ExhaustionIsTerminal(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{channel: notify.ChannelEmail, err: errors.New("connection reset by peer")}
	svc := notify.NewService(store, bookingTemplates(), &fakeSettings{}, template.NewEngine(), testPolicy, 0, provider)

	// First attempt: transient failure, retry scheduled.
	res := svc.Send(context.Background(), confirmationMessage())
	require.False(t, res.Success)

	// Walk the lineage to the ceiling through the retry path.
	for i := 1; i < testPolicy.MaxRetries; i++ {
		entry, err := store.GetByID(context.Background(), res.LogID)
		require.NoError(t, err)
		res = svc.Retry(context.Background(), entry)
		require.False(t, res.Success)
	}

	entry, err := store.GetByID(context.Background(), res.LogID)
	require.NoError(t, err)
	assert.Equal(t, testPolicy.MaxRetries, entry.RetryCount)
	assert.Nil(t, entry.RetryAfter, "an exhausted lineage must not stay retry-eligible")
	assert.Equal(t, notify.StatusFailed, entry.Status)
}

func TestSendBatch_Isolation(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{
		channel: notify.ChannelSMS,
		failFor: map[string]error{"+15550000002": errors.New("The 'To' number is not a valid phone number.")},
	}
	svc := notify.NewService(store, bookingTemplates(), &fakeSettings{}, template.NewEngine(), testPolicy, 2, provider)

	msgs := []*notify.NotificationMessage{
		{
			Type: notify.TypeBookingReminder, Channel: notify.ChannelSMS, Recipient: "+15550000001",
			TemplateData: map[string]string{"customer_name": "Ann", "pet_name": "Rex", "appointment_time": "9:00 AM"},
		},
		{
			Type: notify.TypeBookingReminder, Channel: notify.ChannelSMS, Recipient: "+15550000002",
			TemplateData: map[string]string{"customer_name": "Bob", "pet_name": "Milo", "appointment_time": "9:30 AM"},
		},
	}

	results := svc.SendBatch(context.Background(), msgs)

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "not a valid phone number")
	assert.Equal(t, 1, provider.successCount(), "only the successful item may reach the provider's sent log")

	// The failed row never retries: an invalid number is permanent.
	entry, err := store.GetByID(context.Background(), results[1].LogID)
	require.NoError(t, err)
	assert.Nil(t, entry.RetryAfter)
}

func TestSendBatch_PreservesInputOrder(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{channel: notify.ChannelSMS}
	svc := notify.NewService(store, bookingTemplates(), &fakeSettings{}, template.NewEngine(), testPolicy, 3, provider)

	recipients := []string{"+15550000001", "+15550000002", "+15550000003", "+15550000004", "+15550000005"}
	msgs := make([]*notify.NotificationMessage, len(recipients))
	for i, r := range recipients {
		msgs[i] = &notify.NotificationMessage{
			Type: notify.TypeBookingReminder, Channel: notify.ChannelSMS, Recipient: r,
			TemplateData: map[string]string{"customer_name": "A", "pet_name": "B", "appointment_time": "noon"},
		}
	}

	results := svc.SendBatch(context.Background(), msgs)

	require.Len(t, results, len(msgs))
	for i, res := range results {
		require.True(t, res.Success)
		entry, err := store.GetByID(context.Background(), res.LogID)
		require.NoError(t, err)
		assert.Equal(t, recipients[i], entry.Recipient, "results must line up with input order")
	}
}

func TestSend_TestFlagPersisted(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{channel: notify.ChannelEmail}
	svc := notify.NewService(store, bookingTemplates(), &fakeSettings{}, template.NewEngine(), testPolicy, 0, provider)

	msg := confirmationMessage()
	msg.IsTest = true
	res := svc.Send(context.Background(), msg)

	require.True(t, res.Success)
	entry, err := store.GetByID(context.Background(), res.LogID)
	require.NoError(t, err)
	assert.True(t, entry.IsTest)
}
