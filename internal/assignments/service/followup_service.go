package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadbroker_backend/internal/assignments/domain"
	"leadbroker_backend/internal/assignments/transport"
	"leadbroker_backend/internal/events"
	"leadbroker_backend/platform/apperr"

	"github.com/google/uuid"
)

// GetFeedbackView loads the sanitized follow-up page payload. The token
// travels in the URL, so the page is reachable without a login.
func (s *Service) GetFeedbackView(ctx context.Context, assignmentID uuid.UUID, token string) (transport.FeedbackView, error) {
	a, err := s.repo.GetByID(ctx, assignmentID)
	if err != nil {
		return transport.FeedbackView{}, err
	}
	if !feedbackTokenMatches(a.FeedbackToken, token) {
		return transport.FeedbackView{}, apperr.Unauthorized("invalid feedback token")
	}
	if a.Status == domain.StatusReturned || a.Status == domain.StatusSuccess {
		return transport.FeedbackView{}, apperr.Conflict("this assignment has already been finalized")
	}
	state := domain.FollowupState{Response: a.FollowupResponse, RespondedAt: a.FollowupRespondedAt, SentAt: a.FollowupSentAt}
	if state.InCooldown(time.Now()) {
		return transport.FeedbackView{}, apperr.Conflict("a response was just recorded, wait for the next follow-up request")
	}

	lead, err := s.leads.Get(ctx, a.LeadID)
	if err != nil {
		return transport.FeedbackView{}, err
	}
	contact := s.leads.Contact(ctx, lead)

	return transport.FeedbackView{
		AssignmentID:  a.ID,
		LeadName:      strings.TrimSpace(contact.FirstName + " " + contact.LastName),
		LeadPhone:     contact.Phone,
		LeadEmail:     contact.Email,
		LeadCity:      contact.City,
		Category:      contact.Category,
		Status:        a.Status,
		FollowupCount: a.FollowupCount,
		FollowupDate:  a.FollowupDate,
		LastResponse:  a.FollowupResponse,
		RevenueShare:  a.RevenueSharePercent,
		AssignedAt:    a.CreatedAt,
	}, nil
}

// SubmitFeedback records a broker's follow-up response. When a closed deal
// carries the deal amount, the commission is derived from the stored
// revenue share so the broker cannot choose their own percentage.
func (s *Service) SubmitFeedback(ctx context.Context, assignmentID uuid.UUID, req transport.SubmitFeedbackRequest) (transport.AssignmentResponse, error) {
	a, err := s.repo.GetByID(ctx, assignmentID)
	if err != nil {
		return transport.AssignmentResponse{}, err
	}
	if !feedbackTokenMatches(a.FeedbackToken, req.Token) {
		return transport.AssignmentResponse{}, apperr.Unauthorized("invalid feedback token")
	}

	var commission *int64
	if req.Status == domain.ResponseClosed && req.DealAmountCents != nil && a.RevenueSharePercent != nil {
		c := domain.CommissionCents(*req.DealAmountCents, *a.RevenueSharePercent)
		commission = &c
	}

	updated, err := s.repo.ApplyFollowup(ctx, assignmentID, req.Status, commission, req.Notes, time.Now())
	if err != nil {
		return transport.AssignmentResponse{}, err
	}

	s.log.Info("followup recorded",
		"assignmentId", updated.ID,
		"response", req.Status,
		"followupCount", updated.FollowupCount,
	)

	return mapAssignmentResponse(updated), nil
}

// DispatchResult summarizes one follow-up sweep run.
type DispatchResult struct {
	Due    int `json:"due"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// DispatchDueFollowups mails a status request for every revenue-share
// assignment whose follow-up date has passed. Each row is claimed before
// the email goes out so a concurrently running sweep cannot double-send.
func (s *Service) DispatchDueFollowups(ctx context.Context, limit int) (DispatchResult, error) {
	now := time.Now()
	due, err := s.repo.DueFollowups(ctx, now, limit)
	if err != nil {
		return DispatchResult{}, err
	}

	result := DispatchResult{Due: len(due)}
	for _, a := range due {
		claimed, err := s.repo.MarkFollowupSent(ctx, a.ID, now)
		if err != nil {
			s.log.Error("followup claim failed", "error", err, "assignmentId", a.ID)
			result.Failed++
			continue
		}
		if !claimed {
			continue
		}

		if err := s.sendFollowupRequest(ctx, a.ID); err != nil {
			s.log.Error("followup dispatch failed", "error", err, "assignmentId", a.ID)
			result.Failed++
			continue
		}
		result.Sent++
	}

	s.log.SweepRun("followup_dispatch", result.Sent, result.Failed)
	return result, nil
}

func (s *Service) sendFollowupRequest(ctx context.Context, assignmentID uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a.FeedbackToken == nil {
		return apperr.Internal("assignment has no feedback token")
	}

	broker, err := s.brokers.GetContact(ctx, a.BrokerID)
	if err != nil {
		return err
	}
	lead, err := s.leads.Get(ctx, a.LeadID)
	if err != nil {
		return err
	}
	contact := s.leads.Contact(ctx, lead)

	return s.eventBus.PublishSync(ctx, events.FollowupRequested{
		BaseEvent:    events.NewBaseEvent(),
		AssignmentID: a.ID,
		BrokerID:     broker.ID,
		BrokerName:   broker.ContactName,
		BrokerEmail:  broker.Email,
		LeadName:     strings.TrimSpace(contact.FirstName + " " + contact.LastName),
		FeedbackURL:  s.feedbackURL(a.ID, *a.FeedbackToken),
	})
}

func (s *Service) feedbackURL(assignmentID uuid.UUID, token string) string {
	return fmt.Sprintf("%s/api/v1/assignments/%s/feedback?token=%s", strings.TrimRight(s.baseURL, "/"), assignmentID, token)
}
