// Package email provides outbound email delivery for broker notifications.
// Templates are intentionally plain; the notification module decides when
// and what to send.
package email

import (
	"context"
	"fmt"

	"leadbroker_backend/platform/config"
)

// LeadContact is the unlocked contact data rendered into delivery emails.
type LeadContact struct {
	LeadNumber int64
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	PostalCode string
	City       string
	Category   string
	ExtraData  map[string]string
}

// Name returns the lead's display name.
func (l LeadContact) Name() string {
	return l.FirstName + " " + l.LastName
}

// Sender delivers broker-facing notifications.
type Sender interface {
	SendLeadDeliveredEmail(ctx context.Context, toEmail, brokerName string, lead LeadContact) error
	SendBulkLeadsDeliveredEmail(ctx context.Context, toEmail, brokerName string, leads []LeadContact) error
	SendPaymentRequiredEmail(ctx context.Context, toEmail, brokerName, invoiceNumber, paymentURL, dueDate string, amountCents int64) error
	SendContractConfirmationEmail(ctx context.Context, toEmail, brokerName, confirmURL string) error
	SendFollowupRequestEmail(ctx context.Context, toEmail, brokerName, leadName, feedbackURL string) error
	SendPackageDeliveredEmail(ctx context.Context, toEmail, brokerName, packageName string, leads []LeadContact, completed bool) error
	SendInvoicePaidEmail(ctx context.Context, toEmail, brokerName, invoiceNumber string) error
	SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

// NoopSender is used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) SendLeadDeliveredEmail(ctx context.Context, toEmail, brokerName string, lead LeadContact) error {
	return nil
}

func (NoopSender) SendBulkLeadsDeliveredEmail(ctx context.Context, toEmail, brokerName string, leads []LeadContact) error {
	return nil
}

func (NoopSender) SendPaymentRequiredEmail(ctx context.Context, toEmail, brokerName, invoiceNumber, paymentURL, dueDate string, amountCents int64) error {
	return nil
}

func (NoopSender) SendContractConfirmationEmail(ctx context.Context, toEmail, brokerName, confirmURL string) error {
	return nil
}

func (NoopSender) SendFollowupRequestEmail(ctx context.Context, toEmail, brokerName, leadName, feedbackURL string) error {
	return nil
}

func (NoopSender) SendPackageDeliveredEmail(ctx context.Context, toEmail, brokerName, packageName string, leads []LeadContact, completed bool) error {
	return nil
}

func (NoopSender) SendInvoicePaidEmail(ctx context.Context, toEmail, brokerName, invoiceNumber string) error {
	return nil
}

func (NoopSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}

// NewSender builds the configured sender: Brevo HTTP API, direct SMTP, or a
// no-op when email is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	switch cfg.GetEmailProvider() {
	case "brevo":
		if cfg.GetBrevoAPIKey() == "" {
			return nil, fmt.Errorf("email enabled with brevo provider but BREVO_API_KEY is empty")
		}
		return NewBrevoSender(cfg.GetBrevoAPIKey(), cfg.GetEmailFromName(), cfg.GetEmailFromAddress()), nil
	case "smtp":
		if cfg.GetSMTPHost() == "" {
			return nil, fmt.Errorf("email enabled with smtp provider but SMTP_HOST is empty")
		}
		return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(), cfg.GetEmailFromAddress(), cfg.GetEmailFromName()), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.GetEmailProvider())
	}
}
