package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"nyumbani/rental/internal/config"
	"nyumbani/rental/internal/tasks"
)

// MockEmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

func TestHandleEmailDeliveryTask_Success(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	cfg := &config.Config{SmtpFromAddress: "noreply@nyumbani.example.com"}

	p := tasks.NewTaskProcessor(cfg, mockEmailSender, nil, nil, nil)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         "landlord@example.com",
		TemplateID: "inquiry_received",
		Data: map[string]interface{}{
			"name":           "Otieno",
			"property_title": "Two bedroom in Kilimani",
			"message":        "Is this still available?",
		},
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	mockEmailSender.On("Send", mock.Anything,
		[]string{"landlord@example.com"},
		"New inquiry for Two bedroom in Kilimani",
		mock.MatchedBy(func(raw []byte) bool {
			return strings.Contains(string(raw), "Is this still available?") &&
				strings.Contains(string(raw), "Hello Otieno")
		}),
	).Return(nil).Once()

	err := p.HandleEmailDeliveryTask(context.Background(), task)
	assert.NoError(t, err)
	mockEmailSender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_UnknownTemplate(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(&config.Config{}, mockEmailSender, nil, nil, nil)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         "someone@example.com",
		TemplateID: "nonexistent",
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	err := p.HandleEmailDeliveryTask(context.Background(), task)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	mockEmailSender.AssertNotCalled(t, "Send")
}

func TestHandleEmailDeliveryTask_BadPayload(t *testing.T) {
	p := tasks.NewTaskProcessor(&config.Config{}, new(MockEmailSender), nil, nil, nil)
	task := asynq.NewTask(tasks.TypeEmailDelivery, []byte("{not json"))

	err := p.HandleEmailDeliveryTask(context.Background(), task)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleEmailDeliveryTask_SenderFailureRetries(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(&config.Config{}, mockEmailSender, nil, nil, nil)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         "tenant@example.com",
		TemplateID: "welcome",
		Data:       map[string]interface{}{"name": "Wanjiku", "app_name": "Nyumbani"},
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	sendErr := errors.New("smtp unavailable")
	mockEmailSender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(sendErr).Once()

	err := p.HandleEmailDeliveryTask(context.Background(), task)
	assert.ErrorIs(t, err, sendErr)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}
