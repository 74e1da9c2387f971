package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/cmlabs-hris/attendance-backend-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	to, subject, body string
	err               error
}

func (r *recordingTransport) Send(_ context.Context, to, subject, htmlBody string) error {
	r.to, r.subject, r.body = to, subject, htmlBody
	return r.err
}

func TestSendCheckOutSummary_RendersTemplate(t *testing.T) {
	transport := &recordingTransport{}
	svc, err := NewEmailService(transport)
	require.NoError(t, err)

	err = svc.SendCheckOutSummary(context.Background(), "employee1@example.com", CheckOutSummary{
		Name:         "Employee <One>",
		Date:         "2025-03-10",
		CheckIn:      "08:05",
		CheckOut:     "16:10",
		WorkDuration: "8h 5m",
	})
	require.NoError(t, err)

	assert.Equal(t, "employee1@example.com", transport.to)
	assert.Equal(t, "Work Shift Summary", transport.subject)
	assert.Contains(t, transport.body, "2025-03-10")
	assert.Contains(t, transport.body, "8h 5m")
	// html/template escapes user data
	assert.Contains(t, transport.body, "Employee &lt;One&gt;")
}

func TestSendCheckOutSummary_PropagatesTransportError(t *testing.T) {
	svc, err := NewEmailService(&recordingTransport{err: errors.New("relay down")})
	require.NoError(t, err)

	err = svc.SendCheckOutSummary(context.Background(), "a@example.com", CheckOutSummary{})
	assert.EqualError(t, err, "relay down")
}

func TestSMTPTransport_BuildsMessage(t *testing.T) {
	transport := NewSMTPTransport(config.EmailConfig{
		From:     "noreply@example.com",
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
	})

	var gotAddr string
	var gotMsg []byte
	transport.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Equal(t, "noreply@example.com", from)
		assert.Equal(t, []string{"a@example.com"}, to)
		return nil
	}

	require.NoError(t, transport.Send(context.Background(), "a@example.com", "Hello", "<p>hi</p>"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: Hello\r\n")
	assert.Contains(t, string(gotMsg), "\r\n\r\n<p>hi</p>")
}

type fakeSES struct {
	input *ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESTransport(t *testing.T) {
	client := &fakeSES{}
	transport := NewSESTransport(client, "noreply@example.com")

	require.NoError(t, transport.Send(context.Background(), "a@example.com", "Hello", "<p>hi</p>"))
	require.NotNil(t, client.input)
	assert.Equal(t, "noreply@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"a@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "<p>hi</p>", aws.ToString(client.input.Message.Body.Html.Data))
}

func TestNewTransport_Log(t *testing.T) {
	transport, err := NewTransport(context.Background(), &config.Config{Email: config.EmailConfig{Provider: "log"}})
	require.NoError(t, err)
	assert.IsType(t, LogTransport{}, transport)

	_, err = NewTransport(context.Background(), &config.Config{Email: config.EmailConfig{Provider: "pigeon"}})
	assert.Error(t, err)
}
