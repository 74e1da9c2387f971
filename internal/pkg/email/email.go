package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

//go:embed templates/*.html
var templateFS embed.FS

// Transport delivers one rendered HTML message
type Transport interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// EmailService defines the interface for sending emails
type EmailService interface {
	SendCheckOutSummary(ctx context.Context, to string, summary CheckOutSummary) error
}

// CheckOutSummary is the data rendered into checkout_summary.html
type CheckOutSummary struct {
	Name         string
	Date         string
	CheckIn      string
	CheckOut     string
	WorkDuration string
}

type emailServiceImpl struct {
	transport Transport
	templates *template.Template
}

// NewEmailService creates a new email service instance
func NewEmailService(transport Transport) (EmailService, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &emailServiceImpl{
		transport: transport,
		templates: tmpl,
	}, nil
}

// SendCheckOutSummary sends the end-of-shift summary to the employee
func (s *emailServiceImpl) SendCheckOutSummary(ctx context.Context, to string, summary CheckOutSummary) error {
	ctx, span := telemetry.Tracer().Start(ctx, "email.SendCheckOutSummary",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("email.template", "checkout_summary")),
	)
	defer span.End()

	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, "checkout_summary.html", summary); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	if err := s.transport.Send(ctx, to, "Work Shift Summary", body.String()); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
