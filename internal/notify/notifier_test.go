// internal/notify/notifier_test.go
package notify

import (
	"context"
	"errors"
	"testing"

	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Mocks
// ==========================

type mockSES struct {
	err       error
	calls     int
	lastInput *ses.SendEmailInput
}

func (m *mockSES) SendEmail(_ context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	m.calls++
	m.lastInput = input
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{}, nil
}

type mockSNS struct {
	err       error
	calls     int
	lastInput *sns.PublishInput
}

func (m *mockSNS) Publish(_ context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	m.calls++
	m.lastInput = input
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{}, nil
}

// ==========================
// Test Helper Functions
// ==========================

func escalationConfig() *Config {
	return &Config{
		Enabled:         true,
		Region:          "us-east-1",
		FromEmail:       "ethics-advisor@gsa.gov",
		EscalationEmail: "ethics-office@gsa.gov",
		TopicARN:        "arn:aws:sns:us-east-1:123456789012:ethics-escalations",
	}
}

func seriousAssessment() *models.StructuredAssessment {
	return &models.StructuredAssessment{
		DirectAnswer:            "Accepting this payment violates 18 U.S.C. 201.",
		Severity:                models.SeveritySerious,
		ImmediateActionRequired: true,
		NextStepsSummary:        "Report to your agency ethics official today.",
	}
}

func escalationRecord() *models.ConsultationRecord {
	return &models.ConsultationRecord{
		ID:       "0b4a2c9e-1f6d-4d3a-b8e5-7c2f9a1d6e30",
		Question: "A contractor offered me $5,000 to fast-track their proposal.",
		Agency:   "GSA",
	}
}

// ==========================
// Escalation Tests
// ==========================

func TestNotifier_Escalate_SendsBothChannels(t *testing.T) {
	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewNotifier(escalationConfig(), sesMock, snsMock, logger.NewTestLogger(t))

	err := n.Escalate(context.Background(), escalationRecord(), seriousAssessment())

	require.NoError(t, err)
	require.Equal(t, 1, sesMock.calls)
	require.Equal(t, 1, snsMock.calls)

	email := sesMock.lastInput
	assert.Equal(t, []string{"ethics-office@gsa.gov"}, email.Destination.ToAddresses)
	assert.Equal(t, "ethics-advisor@gsa.gov", *email.Source)
	assert.Contains(t, *email.Message.Subject.Data, "GSA")
	body := *email.Message.Body.Text.Data
	assert.Contains(t, body, "0b4a2c9e-1f6d-4d3a-b8e5-7c2f9a1d6e30")
	assert.Contains(t, body, "fast-track their proposal")
	assert.Contains(t, body, "18 U.S.C. 201")
	assert.Contains(t, body, "Report to your agency ethics official")

	publish := snsMock.lastInput
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:ethics-escalations", *publish.TopicArn)
	assert.Contains(t, *publish.Message, "0b4a2c9e-1f6d-4d3a-b8e5-7c2f9a1d6e30")
}

func TestNotifier_Escalate_DisabledSkipsAll(t *testing.T) {
	cfg := escalationConfig()
	cfg.Enabled = false
	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewNotifier(cfg, sesMock, snsMock, logger.NewTestLogger(t))

	err := n.Escalate(context.Background(), escalationRecord(), seriousAssessment())

	assert.NoError(t, err)
	assert.Zero(t, sesMock.calls)
	assert.Zero(t, snsMock.calls)
}

func TestNotifier_Escalate_Threshold(t *testing.T) {
	tests := []struct {
		name       string
		assessment *models.StructuredAssessment
		wantSend   bool
	}{
		{
			name:       "serious and immediate escalates",
			assessment: seriousAssessment(),
			wantSend:   true,
		},
		{
			name: "serious without immediate action stays quiet",
			assessment: &models.StructuredAssessment{
				Severity:                models.SeveritySerious,
				ImmediateActionRequired: false,
			},
			wantSend: false,
		},
		{
			name: "moderate with immediate action stays quiet",
			assessment: &models.StructuredAssessment{
				Severity:                models.SeverityModerate,
				ImmediateActionRequired: true,
			},
			wantSend: false,
		},
		{
			name:       "missing assessment stays quiet",
			assessment: nil,
			wantSend:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sesMock := &mockSES{}
			n := NewNotifier(escalationConfig(), sesMock, nil, logger.NewTestLogger(t))

			err := n.Escalate(context.Background(), escalationRecord(), tt.assessment)

			assert.NoError(t, err)
			if tt.wantSend {
				assert.Equal(t, 1, sesMock.calls)
			} else {
				assert.Zero(t, sesMock.calls)
			}
		})
	}
}

func TestNotifier_Escalate_EmailFailureStillPublishes(t *testing.T) {
	sesMock := &mockSES{err: errors.New("ses throttled")}
	snsMock := &mockSNS{}
	n := NewNotifier(escalationConfig(), sesMock, snsMock, logger.NewTestLogger(t))

	err := n.Escalate(context.Background(), escalationRecord(), seriousAssessment())

	assert.NoError(t, err, "one delivered channel is a success")
	assert.Equal(t, 1, sesMock.calls)
	assert.Equal(t, 1, snsMock.calls)
}

func TestNotifier_Escalate_AllChannelsFail(t *testing.T) {
	sesMock := &mockSES{err: errors.New("ses down")}
	snsMock := &mockSNS{err: errors.New("sns down")}
	n := NewNotifier(escalationConfig(), sesMock, snsMock, logger.NewTestLogger(t))

	err := n.Escalate(context.Background(), escalationRecord(), seriousAssessment())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEscalationSendFailed))
}

func TestNotifier_Escalate_NoChannelsConfigured(t *testing.T) {
	cfg := escalationConfig()
	cfg.TopicARN = ""
	n := NewNotifier(cfg, nil, nil, logger.NewTestLogger(t))

	err := n.Escalate(context.Background(), escalationRecord(), seriousAssessment())

	assert.NoError(t, err)
}

func TestNotifier_Escalate_MissingAgencyLabel(t *testing.T) {
	sesMock := &mockSES{}
	rec := escalationRecord()
	rec.Agency = ""
	n := NewNotifier(escalationConfig(), sesMock, nil, logger.NewTestLogger(t))

	err := n.Escalate(context.Background(), rec, seriousAssessment())

	require.NoError(t, err)
	require.Equal(t, 1, sesMock.calls)
	assert.Contains(t, *sesMock.lastInput.Message.Subject.Data, "agency not specified")
}

func TestShouldEscalate(t *testing.T) {
	assert.True(t, ShouldEscalate(seriousAssessment()))
	assert.False(t, ShouldEscalate(nil))
	assert.False(t, ShouldEscalate(&models.StructuredAssessment{
		Severity:                models.SeverityMinor,
		ImmediateActionRequired: true,
	}))
}
