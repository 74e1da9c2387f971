package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/cmlabs-hris/attendance-backend-go/internal/config"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/awsconfig"
)

const charsetUTF8 = "UTF-8"

// NewTransport picks the transport named by cfg.Email.Provider
func NewTransport(ctx context.Context, cfg *config.Config) (Transport, error) {
	switch cfg.Email.Provider {
	case "smtp":
		return NewSMTPTransport(cfg.Email), nil
	case "ses":
		awsCfg, err := awsconfig.Load(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return NewSESTransport(ses.NewFromConfig(awsCfg), cfg.Email.From), nil
	case "log", "":
		return LogTransport{}, nil
	}
	return nil, fmt.Errorf("unsupported email provider %q", cfg.Email.Provider)
}

// SMTPTransport sends through a plain-auth SMTP relay. Sending is a single
// attempt; the worker owns retries.
type SMTPTransport struct {
	cfg  config.EmailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPTransport(cfg config.EmailConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, send: smtp.SendMail}
}

func (t *SMTPTransport) Send(_ context.Context, to, subject, htmlBody string) error {
	headers := fmt.Sprintf("From: %s\r\n", t.cfg.From)
	headers += fmt.Sprintf("To: %s\r\n", to)
	headers += fmt.Sprintf("Subject: %s\r\n", subject)
	headers += "MIME-Version: 1.0\r\n"
	headers += "Content-Type: text/html; charset=\"UTF-8\"\r\n"
	headers += "\r\n"

	auth := smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPassword, t.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", t.cfg.SMTPHost, t.cfg.SMTPPort)

	if err := t.send(addr, auth, t.cfg.From, []string{to}, []byte(headers+htmlBody)); err != nil {
		return fmt.Errorf("failed to send email via smtp: %w", err)
	}

	slog.Info("Email sent successfully", "to", to, "subject", subject, "provider", "smtp")
	return nil
}

// SESSender is the part of *ses.Client the transport needs
type SESSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESTransport struct {
	client SESSender
	from   string
}

func NewSESTransport(client SESSender, from string) *SESTransport {
	return &SESTransport{client: client, from: from}
}

func (t *SESTransport) Send(ctx context.Context, to, subject, htmlBody string) error {
	out, err := t.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(t.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String(charsetUTF8)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String(charsetUTF8)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email via ses: %w", err)
	}

	slog.Info("Email sent successfully", "to", to, "subject", subject, "provider", "ses", "message_id", aws.ToString(out.MessageId))
	return nil
}

// LogTransport only logs. Used in development and when no provider is configured.
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, to, subject, htmlBody string) error {
	slog.Warn("Email provider not configured, skipping email send", "to", to, "subject", subject, "bytes", len(htmlBody))
	return nil
}
