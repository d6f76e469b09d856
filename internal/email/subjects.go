package email

import "fmt"

func subjectLeadDelivered(lead LeadContact) string {
	return fmt.Sprintf("Neuer Lead #%d: %s (%s)", lead.LeadNumber, lead.Name(), lead.Category)
}

func subjectBulkLeadsDelivered(count int) string {
	return fmt.Sprintf("%d neue Leads für Sie", count)
}

func subjectPaymentRequired(invoiceNumber string) string {
	return fmt.Sprintf("Rechnung %s: Zahlung erforderlich", invoiceNumber)
}

const subjectContractConfirmation = "Bitte bestätigen Sie Ihren Vertrag"

func subjectFollowupRequest(leadName string) string {
	return fmt.Sprintf("Statusabfrage zu Ihrem Lead %s", leadName)
}

func subjectPackageDelivered(packageName string, count int) string {
	return fmt.Sprintf("Paket %s: %d Leads geliefert", packageName, count)
}

func subjectInvoicePaid(invoiceNumber string) string {
	return fmt.Sprintf("Zahlungsbestätigung für Rechnung %s", invoiceNumber)
}
