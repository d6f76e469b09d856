package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection
// via go-mail. It renders the same HTML templates as BrevoSender but delivers
// through the operator's own SMTP server.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendLeadDeliveredEmail(ctx context.Context, toEmail, brokerName string, lead LeadContact) error {
	content, err := renderEmailTemplate("lead_delivered.html", leadDeliveredEmailData{
		baseEmailData: baseEmailData{Title: "Neuer Lead", Heading: "Neuer Lead für Sie"},
		BrokerName:    brokerName,
		Lead:          lead,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectLeadDelivered(lead), content)
}

func (s *SMTPSender) SendBulkLeadsDeliveredEmail(ctx context.Context, toEmail, brokerName string, leads []LeadContact) error {
	content, err := renderEmailTemplate("bulk_leads.html", bulkLeadsEmailData{
		baseEmailData: baseEmailData{Title: "Neue Leads", Heading: "Neue Leads für Sie"},
		BrokerName:    brokerName,
		Leads:         leads,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectBulkLeadsDelivered(len(leads)), content)
}

func (s *SMTPSender) SendPaymentRequiredEmail(ctx context.Context, toEmail, brokerName, invoiceNumber, paymentURL, dueDate string, amountCents int64) error {
	content, err := renderEmailTemplate("payment_required.html", paymentRequiredEmailData{
		baseEmailData: baseEmailData{
			Title:    "Zahlung erforderlich",
			Heading:  "Zahlung erforderlich",
			CTALabel: "Jetzt bezahlen",
			CTAURL:   paymentURL,
		},
		BrokerName:      brokerName,
		InvoiceNumber:   invoiceNumber,
		AmountFormatted: formatCurrencyEUR(amountCents),
		DueDate:         dueDate,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectPaymentRequired(invoiceNumber), content)
}

func (s *SMTPSender) SendContractConfirmationEmail(ctx context.Context, toEmail, brokerName, confirmURL string) error {
	content, err := renderEmailTemplate("contract_confirmation.html", contractConfirmationEmailData{
		baseEmailData: baseEmailData{
			Title:    "Vertragsbestätigung",
			Heading:  "Vertragsbestätigung",
			CTALabel: "Vertrag bestätigen",
			CTAURL:   confirmURL,
		},
		BrokerName: brokerName,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectContractConfirmation, content)
}

func (s *SMTPSender) SendFollowupRequestEmail(ctx context.Context, toEmail, brokerName, leadName, feedbackURL string) error {
	content, err := renderEmailTemplate("followup_request.html", followupRequestEmailData{
		baseEmailData: baseEmailData{
			Title:    "Statusabfrage",
			Heading:  "Wie ist der Stand?",
			CTALabel: "Status melden",
			CTAURL:   feedbackURL,
		},
		BrokerName: brokerName,
		LeadName:   leadName,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectFollowupRequest(leadName), content)
}

func (s *SMTPSender) SendPackageDeliveredEmail(ctx context.Context, toEmail, brokerName, packageName string, leads []LeadContact, completed bool) error {
	content, err := renderEmailTemplate("package_delivered.html", packageDeliveredEmailData{
		baseEmailData: baseEmailData{Title: "Paketlieferung", Heading: "Leads aus Ihrem Paket"},
		BrokerName:    brokerName,
		PackageName:   packageName,
		Leads:         leads,
		Completed:     completed,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectPackageDelivered(packageName, len(leads)), content)
}

func (s *SMTPSender) SendInvoicePaidEmail(ctx context.Context, toEmail, brokerName, invoiceNumber string) error {
	content, err := renderEmailTemplate("invoice_paid.html", invoicePaidEmailData{
		baseEmailData: baseEmailData{Title: "Zahlungsbestätigung", Heading: "Zahlung erhalten"},
		BrokerName:    brokerName,
		InvoiceNumber: invoiceNumber,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectInvoicePaid(invoiceNumber), content)
}

func (s *SMTPSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return s.send(ctx, toEmail, subject, htmlContent)
}

var _ Sender = (*SMTPSender)(nil)
