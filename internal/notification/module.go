// Package notification subscribes to domain events and turns them into
// broker emails. Every notification is persisted to the outbox first; the
// inline send attempt reports success back to the caller, and the scheduler
// retries whatever is still pending. Domain modules never talk to email
// providers directly.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leadbroker_backend/internal/email"
	"leadbroker_backend/internal/events"
	apphttp "leadbroker_backend/internal/http"
	"leadbroker_backend/internal/notification/outbox"
	"leadbroker_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Template identifiers stored on outbox rows.
const (
	TemplateLeadDelivered        = "lead_delivered"
	TemplateBulkLeadsDelivered   = "bulk_leads_delivered"
	TemplatePaymentRequired      = "payment_required"
	TemplateContractConfirmation = "contract_confirmation"
	TemplateFollowupRequest      = "followup_request"
	TemplatePackageDelivered     = "package_delivered"
	TemplateInvoicePaid          = "invoice_paid"
)

// retryBackoff spaces redelivery attempts of a failed notification.
const retryBackoff = 5 * time.Minute

// Module handles all notification-related event subscriptions.
type Module struct {
	sender  email.Sender
	repo    *outbox.Repository
	log     *logger.Logger
	handler *Handler
}

// New creates the notification module.
func New(pool *pgxpool.Pool, sender email.Sender, log *logger.Logger) *Module {
	repo := outbox.New(pool)
	m := &Module{
		sender: sender,
		repo:   repo,
		log:    log,
	}
	m.handler = NewHandler(m, repo)
	return m
}

// Outbox exposes the repository for the scheduler's dispatcher.
func (m *Module) Outbox() *outbox.Repository {
	return m.repo
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// RegisterRoutes mounts the operator-facing outbox endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Admin.Group("/notifications")
	group.GET("", m.handler.HandleListOutbox)
	group.POST("/:outboxId/resend", m.handler.HandleResend)
}

// RegisterHandlers subscribes the module to all notification-producing events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadDelivered{}.EventName(), events.HandlerFunc(m.onLeadDelivered))
	bus.Subscribe(events.LeadsDeliveredBulk{}.EventName(), events.HandlerFunc(m.onLeadsDeliveredBulk))
	bus.Subscribe(events.PaymentRequired{}.EventName(), events.HandlerFunc(m.onPaymentRequired))
	bus.Subscribe(events.ContractCreated{}.EventName(), events.HandlerFunc(m.onContractCreated))
	bus.Subscribe(events.FollowupRequested{}.EventName(), events.HandlerFunc(m.onFollowupRequested))
	bus.Subscribe(events.PackageLeadsDelivered{}.EventName(), events.HandlerFunc(m.onPackageLeadsDelivered))
	bus.Subscribe(events.InvoicePaid{}.EventName(), events.HandlerFunc(m.onInvoicePaid))
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), events.HandlerFunc(m.onOutboxDue))
}

// =============================================================================
// Event handlers: persist, then attempt delivery inline
// =============================================================================

func (m *Module) onLeadDelivered(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadDelivered)
	if !ok {
		return nil
	}
	return m.enqueueAndSend(ctx, TemplateLeadDelivered, e.BrokerEmail, e)
}

func (m *Module) onLeadsDeliveredBulk(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadsDeliveredBulk)
	if !ok {
		return nil
	}
	return m.enqueueAndSend(ctx, TemplateBulkLeadsDelivered, e.BrokerEmail, e)
}

func (m *Module) onPaymentRequired(ctx context.Context, event events.Event) error {
	e, ok := event.(events.PaymentRequired)
	if !ok {
		return nil
	}
	return m.enqueueAndSend(ctx, TemplatePaymentRequired, e.BrokerEmail, e)
}

func (m *Module) onContractCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ContractCreated)
	if !ok {
		return nil
	}
	return m.enqueueAndSend(ctx, TemplateContractConfirmation, e.BrokerEmail, e)
}

func (m *Module) onFollowupRequested(ctx context.Context, event events.Event) error {
	e, ok := event.(events.FollowupRequested)
	if !ok {
		return nil
	}
	return m.enqueueAndSend(ctx, TemplateFollowupRequest, e.BrokerEmail, e)
}

func (m *Module) onPackageLeadsDelivered(ctx context.Context, event events.Event) error {
	e, ok := event.(events.PackageLeadsDelivered)
	if !ok {
		return nil
	}
	return m.enqueueAndSend(ctx, TemplatePackageDelivered, e.BrokerEmail, e)
}

func (m *Module) onInvoicePaid(ctx context.Context, event events.Event) error {
	e, ok := event.(events.InvoicePaid)
	if !ok {
		return nil
	}
	return m.enqueueAndSend(ctx, TemplateInvoicePaid, e.BrokerEmail, e)
}

func (m *Module) onOutboxDue(ctx context.Context, event events.Event) error {
	e, ok := event.(events.NotificationOutboxDue)
	if !ok {
		return nil
	}
	return m.Process(ctx, e.OutboxID)
}

// enqueueAndSend writes the durable row and tries one inline delivery. The
// caller (PublishSync) sees the delivery error, but the row stays queued for
// retry either way.
func (m *Module) enqueueAndSend(ctx context.Context, template, recipient string, payload any) error {
	id, err := m.repo.Insert(ctx, outbox.InsertParams{
		Template:  template,
		Recipient: recipient,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("outbox insert: %w", err)
	}
	return m.Process(ctx, id)
}

// Process delivers a single outbox row. Already-succeeded rows are skipped,
// which makes redelivery of the same row safe.
func (m *Module) Process(ctx context.Context, outboxID uuid.UUID) error {
	rec, err := m.repo.GetByID(ctx, outboxID)
	if err != nil {
		return err
	}
	if rec.Status == outbox.StatusSucceeded {
		return nil
	}

	sendErr := m.deliver(ctx, rec)
	m.log.EmailEvent(rec.Template, rec.Recipient, sendErr)

	if sendErr != nil {
		if markErr := m.repo.MarkFailed(ctx, rec.ID, sendErr.Error(), time.Now().UTC().Add(retryBackoff)); markErr != nil {
			m.log.DatabaseError("outbox.mark_failed", markErr)
		}
		return sendErr
	}

	return m.repo.MarkSucceeded(ctx, rec.ID)
}

func (m *Module) deliver(ctx context.Context, rec outbox.Record) error {
	switch rec.Template {
	case TemplateLeadDelivered:
		var e events.LeadDelivered
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			return err
		}
		return m.sender.SendLeadDeliveredEmail(ctx, rec.Recipient, e.BrokerName, toEmailContact(e.Lead))

	case TemplateBulkLeadsDelivered:
		var e events.LeadsDeliveredBulk
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			return err
		}
		return m.sender.SendBulkLeadsDeliveredEmail(ctx, rec.Recipient, e.BrokerName, toEmailContacts(e.Leads))

	case TemplatePaymentRequired:
		var e events.PaymentRequired
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			return err
		}
		return m.sender.SendPaymentRequiredEmail(ctx, rec.Recipient, e.BrokerName, e.InvoiceNumber, e.PaymentURL, e.DueDate, e.AmountCents)

	case TemplateContractConfirmation:
		var e events.ContractCreated
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			return err
		}
		return m.sender.SendContractConfirmationEmail(ctx, rec.Recipient, e.BrokerName, e.ConfirmURL)

	case TemplateFollowupRequest:
		var e events.FollowupRequested
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			return err
		}
		return m.sender.SendFollowupRequestEmail(ctx, rec.Recipient, e.BrokerName, e.LeadName, e.FeedbackURL)

	case TemplatePackageDelivered:
		var e events.PackageLeadsDelivered
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			return err
		}
		return m.sender.SendPackageDeliveredEmail(ctx, rec.Recipient, e.BrokerName, e.PackageName, toEmailContacts(e.Leads), e.Completed)

	case TemplateInvoicePaid:
		var e events.InvoicePaid
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			return err
		}
		return m.sender.SendInvoicePaidEmail(ctx, rec.Recipient, e.BrokerName, e.InvoiceNumber)

	default:
		return fmt.Errorf("unknown notification template %q", rec.Template)
	}
}

func toEmailContact(c events.LeadContact) email.LeadContact {
	return email.LeadContact{
		LeadNumber: c.LeadNumber,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Email:      c.Email,
		Phone:      c.Phone,
		PostalCode: c.PostalCode,
		City:       c.City,
		Category:   c.Category,
		ExtraData:  c.ExtraData,
	}
}

func toEmailContacts(cs []events.LeadContact) []email.LeadContact {
	result := make([]email.LeadContact, len(cs))
	for i, c := range cs {
		result[i] = toEmailContact(c)
	}
	return result
}

var _ apphttp.Module = (*Module)(nil)
