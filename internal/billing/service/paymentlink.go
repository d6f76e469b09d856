package service

import (
	"context"
	"fmt"

	"leadbroker_backend/platform/config"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentlink"
	"github.com/stripe/stripe-go/v76/price"
)

// PaymentLink is the external checkout reference stored on an invoice.
type PaymentLink struct {
	ID  string
	URL string
}

// LinkCreator creates hosted payment links for invoices.
type LinkCreator interface {
	CreatePaymentLink(ctx context.Context, invoiceID uuid.UUID, invoiceNumber string, amountCents int64, description string) (PaymentLink, error)
	Enabled() bool
}

// StripeLinks creates Stripe payment links. An ad-hoc price is created per
// invoice because invoice amounts are not catalog products.
type StripeLinks struct {
	currency string
}

// NewStripeLinks configures the global Stripe client and returns the
// link creator.
func NewStripeLinks(cfg config.StripeConfig) *StripeLinks {
	stripe.Key = cfg.GetStripeSecretKey()
	return &StripeLinks{currency: cfg.GetStripeCurrency()}
}

func (s *StripeLinks) Enabled() bool { return true }

func (s *StripeLinks) CreatePaymentLink(ctx context.Context, invoiceID uuid.UUID, invoiceNumber string, amountCents int64, description string) (PaymentLink, error) {
	p, err := price.New(&stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		UnitAmount: stripe.Int64(amountCents),
		Currency:   stripe.String(s.currency),
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(fmt.Sprintf("Rechnung %s", invoiceNumber)),
		},
	})
	if err != nil {
		return PaymentLink{}, fmt.Errorf("create stripe price: %w", err)
	}

	link, err := paymentlink.New(&stripe.PaymentLinkParams{
		Params: stripe.Params{Context: ctx},
		LineItems: []*stripe.PaymentLinkLineItemParams{
			{Price: stripe.String(p.ID), Quantity: stripe.Int64(1)},
		},
		Metadata: map[string]string{
			"invoice_id":     invoiceID.String(),
			"invoice_number": invoiceNumber,
			"description":    description,
		},
	})
	if err != nil {
		return PaymentLink{}, fmt.Errorf("create stripe payment link: %w", err)
	}

	return PaymentLink{ID: link.ID, URL: link.URL}, nil
}

// NoopLinks is used when Stripe is not configured. Invoices are still
// created, payment then goes through the manual verification path.
type NoopLinks struct{}

func (NoopLinks) Enabled() bool { return false }

func (NoopLinks) CreatePaymentLink(context.Context, uuid.UUID, string, int64, string) (PaymentLink, error) {
	return PaymentLink{}, nil
}

var (
	_ LinkCreator = (*StripeLinks)(nil)
	_ LinkCreator = NoopLinks{}
)
