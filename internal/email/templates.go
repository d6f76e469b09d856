package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title    string
	Heading  string
	CTALabel string
	CTAURL   string
}

type leadDeliveredEmailData struct {
	baseEmailData
	BrokerName string
	Lead       LeadContact
}

type bulkLeadsEmailData struct {
	baseEmailData
	BrokerName string
	Leads      []LeadContact
}

type paymentRequiredEmailData struct {
	baseEmailData
	BrokerName      string
	InvoiceNumber   string
	AmountFormatted string
	DueDate         string
}

type contractConfirmationEmailData struct {
	baseEmailData
	BrokerName string
}

type followupRequestEmailData struct {
	baseEmailData
	BrokerName string
	LeadName   string
}

type packageDeliveredEmailData struct {
	baseEmailData
	BrokerName  string
	PackageName string
	Leads       []LeadContact
	Completed   bool
}

type invoicePaidEmailData struct {
	baseEmailData
	BrokerName    string
	InvoiceNumber string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func formatCurrencyEUR(cents int64) string {
	return fmt.Sprintf("€%.2f", float64(cents)/100)
}
