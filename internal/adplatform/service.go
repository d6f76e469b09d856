package adplatform

import (
	"context"
	"strings"
	"sync"
	"time"

	leadsrepo "leadbroker_backend/internal/leads/repository"
	leadsvc "leadbroker_backend/internal/leads/service"
	"leadbroker_backend/internal/webhook"
	"leadbroker_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

const formConcurrency = 4

// LeadStore is the fragment of the lead store the import path needs.
type LeadStore interface {
	CreateFromSubmission(ctx context.Context, sub leadsvc.Submission) (leadsrepo.Lead, error)
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	Pages      int       `json:"pages"`
	Forms      int       `json:"forms"`
	Fetched    int       `json:"fetched"`
	Imported   int       `json:"imported"`
	Duplicates int       `json:"duplicates"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Service walks the graph API and imports new leads.
type Service struct {
	client *Client
	leads  LeadStore
	log    *logger.Logger

	mu      sync.Mutex
	running bool
	lastRun *SyncResult
	lastErr string
}

// NewService creates a new ad-platform sync service.
func NewService(client *Client, leads LeadStore, log *logger.Logger) *Service {
	return &Service{client: client, leads: leads, log: log}
}

// Sync pulls every page, form and lead reachable with the configured token
// and imports submissions not yet present in the lead store. Re-running is
// safe: already imported external ids are skipped.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return SyncResult{}, errSyncInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	result := SyncResult{StartedAt: time.Now()}

	pages, err := s.client.ListPages(ctx)
	if err != nil {
		s.recordRun(result, err)
		return result, err
	}
	result.Pages = len(pages)

	type formRef struct {
		form     Form
		pageName string
	}
	var forms []formRef
	for _, page := range pages {
		pageForms, err := s.client.ListForms(ctx, page.ID)
		if err != nil {
			s.recordRun(result, err)
			return result, err
		}
		for _, form := range pageForms {
			forms = append(forms, formRef{form: form, pageName: page.Name})
		}
	}
	result.Forms = len(forms)

	var resultMu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(formConcurrency)
	for _, ref := range forms {
		ref := ref
		group.Go(func() error {
			leads, err := s.client.ListLeads(groupCtx, ref.form.ID)
			if err != nil {
				return err
			}
			fetched, imported, duplicates, skipped := s.importLeads(groupCtx, ref.form, leads)
			resultMu.Lock()
			result.Fetched += fetched
			result.Imported += imported
			result.Duplicates += duplicates
			result.Skipped += skipped
			resultMu.Unlock()
			return nil
		})
	}
	err = group.Wait()

	result.FinishedAt = time.Now()
	s.recordRun(result, err)

	s.log.Info("ad-platform sync finished",
		"pages", result.Pages,
		"forms", result.Forms,
		"imported", result.Imported,
		"duplicates", result.Duplicates,
		"skipped", result.Skipped,
		"error", err,
	)

	return result, err
}

// Status reports whether a sync is running and the last run's outcome.
func (s *Service) Status() (running bool, lastRun *SyncResult, lastErr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.lastRun, s.lastErr
}

func (s *Service) importLeads(ctx context.Context, form Form, leads []RawLead) (fetched, imported, duplicates, skipped int) {
	for _, raw := range leads {
		fetched++

		exists, err := s.leads.ExistsByExternalID(ctx, raw.ID)
		if err != nil {
			s.log.Error("import dedupe check failed", "error", err, "externalLeadId", raw.ID)
			skipped++
			continue
		}
		if exists {
			duplicates++
			continue
		}

		flat := make(map[string]string, len(raw.FieldData))
		for _, field := range raw.FieldData {
			flat[field.Name] = strings.Join(field.Values, ", ")
		}

		mapped := webhook.MapFields(flat)
		if mapped.IsIncomplete() {
			s.log.Warn("imported lead incomplete, skipping", "externalLeadId", raw.ID, "form", form.Name)
			skipped++
			continue
		}

		hint := mapped.Category
		if hint == "" {
			hint = form.Name
		}

		_, err = s.leads.CreateFromSubmission(ctx, leadsvc.Submission{
			FirstName:      mapped.FirstName,
			LastName:       mapped.LastName,
			Email:          mapped.Email,
			Phone:          mapped.Phone,
			PostalCode:     mapped.PostalCode,
			City:           mapped.City,
			ExtraData:      mapped.Extra,
			CategoryHint:   hint,
			ExternalLeadID: raw.ID,
			Channel:        "adplatform",
		})
		if err != nil {
			s.log.Error("import lead failed", "error", err, "externalLeadId", raw.ID)
			skipped++
			continue
		}
		imported++
	}
	return fetched, imported, duplicates, skipped
}

func (s *Service) recordRun(result SyncResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := result
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	s.lastRun = &run
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
	}
}
