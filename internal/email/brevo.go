package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BrevoSender delivers emails through the Brevo transactional HTTP API.
type BrevoSender struct {
	apiKey    string
	fromName  string
	fromEmail string
	client    *http.Client
}

// NewBrevoSender creates a Brevo API sender.
func NewBrevoSender(apiKey, fromName, fromEmail string) *BrevoSender {
	return &BrevoSender{
		apiKey:    apiKey,
		fromName:  fromName,
		fromEmail: fromEmail,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type brevoEmailRequest struct {
	Sender struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"sender"`
	To []struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"htmlContent"`
}

func (b *BrevoSender) SendLeadDeliveredEmail(ctx context.Context, toEmail, brokerName string, lead LeadContact) error {
	content, err := renderEmailTemplate("lead_delivered.html", leadDeliveredEmailData{
		baseEmailData: baseEmailData{
			Title:   "Neuer Lead",
			Heading: "Neuer Lead für Sie",
		},
		BrokerName: brokerName,
		Lead:       lead,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectLeadDelivered(lead), content)
}

func (b *BrevoSender) SendBulkLeadsDeliveredEmail(ctx context.Context, toEmail, brokerName string, leads []LeadContact) error {
	content, err := renderEmailTemplate("bulk_leads.html", bulkLeadsEmailData{
		baseEmailData: baseEmailData{
			Title:   "Neue Leads",
			Heading: "Neue Leads für Sie",
		},
		BrokerName: brokerName,
		Leads:      leads,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectBulkLeadsDelivered(len(leads)), content)
}

func (b *BrevoSender) SendPaymentRequiredEmail(ctx context.Context, toEmail, brokerName, invoiceNumber, paymentURL, dueDate string, amountCents int64) error {
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
	return b.send(ctx, toEmail, subjectPaymentRequired(invoiceNumber), content)
}

func (b *BrevoSender) SendContractConfirmationEmail(ctx context.Context, toEmail, brokerName, confirmURL string) error {
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
	return b.send(ctx, toEmail, subjectContractConfirmation, content)
}

func (b *BrevoSender) SendFollowupRequestEmail(ctx context.Context, toEmail, brokerName, leadName, feedbackURL string) error {
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
	return b.send(ctx, toEmail, subjectFollowupRequest(leadName), content)
}

func (b *BrevoSender) SendPackageDeliveredEmail(ctx context.Context, toEmail, brokerName, packageName string, leads []LeadContact, completed bool) error {
	content, err := renderEmailTemplate("package_delivered.html", packageDeliveredEmailData{
		baseEmailData: baseEmailData{
			Title:   "Paketlieferung",
			Heading: "Leads aus Ihrem Paket",
		},
		BrokerName:  brokerName,
		PackageName: packageName,
		Leads:       leads,
		Completed:   completed,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectPackageDelivered(packageName, len(leads)), content)
}

func (b *BrevoSender) SendInvoicePaidEmail(ctx context.Context, toEmail, brokerName, invoiceNumber string) error {
	content, err := renderEmailTemplate("invoice_paid.html", invoicePaidEmailData{
		baseEmailData: baseEmailData{
			Title:   "Zahlungsbestätigung",
			Heading: "Zahlung erhalten",
		},
		BrokerName:    brokerName,
		InvoiceNumber: invoiceNumber,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectInvoicePaid(invoiceNumber), content)
}

func (b *BrevoSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return b.send(ctx, toEmail, subject, htmlContent)
}

func (b *BrevoSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	payload := brevoEmailRequest{
		Subject:     subject,
		HTMLContent: htmlContent,
	}
	payload.Sender.Name = b.fromName
	payload.Sender.Email = b.fromEmail
	payload.To = []struct {
		Email string `json:"email"`
	}{{Email: toEmail}}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.brevo.com/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(data))
	}

	return nil
}

var _ Sender = (*BrevoSender)(nil)
