package adplatform

import (
	"context"
	"testing"

	leadsrepo "leadbroker_backend/internal/leads/repository"
	leadsvc "leadbroker_backend/internal/leads/service"
	"leadbroker_backend/platform/logger"
)

type fakeLeadStore struct {
	existing map[string]bool
	created  []leadsvc.Submission
}

func (f *fakeLeadStore) CreateFromSubmission(_ context.Context, sub leadsvc.Submission) (leadsrepo.Lead, error) {
	f.created = append(f.created, sub)
	return leadsrepo.Lead{}, nil
}

func (f *fakeLeadStore) ExistsByExternalID(_ context.Context, externalID string) (bool, error) {
	return f.existing[externalID], nil
}

func TestImportLeadsDeduplicatesOnExternalID(t *testing.T) {
	store := &fakeLeadStore{existing: map[string]bool{"lead-1": true}}
	svc := NewService(nil, store, logger.New("test"))

	form := Form{ID: "form-1", Name: "Gesundheit Formular"}
	raws := []RawLead{
		{ID: "lead-1", FieldData: []FieldData{
			{Name: "vorname", Values: []string{"Anna"}},
			{Name: "email", Values: []string{"anna@example.com"}},
		}},
		{ID: "lead-2", FieldData: []FieldData{
			{Name: "vorname", Values: []string{"Max"}},
			{Name: "telefon", Values: []string{"030 1234567"}},
		}},
	}

	fetched, imported, duplicates, skipped := svc.importLeads(context.Background(), form, raws)
	if fetched != 2 || imported != 1 || duplicates != 1 || skipped != 0 {
		t.Fatalf("got fetched=%d imported=%d duplicates=%d skipped=%d", fetched, imported, duplicates, skipped)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected one created lead, got %d", len(store.created))
	}

	sub := store.created[0]
	if sub.ExternalLeadID != "lead-2" {
		t.Fatalf("external id: got %q", sub.ExternalLeadID)
	}
	if sub.FirstName != "Max" || sub.Phone != "030 1234567" {
		t.Fatalf("mapping: got %q %q", sub.FirstName, sub.Phone)
	}
	if sub.Channel != "adplatform" {
		t.Fatalf("channel: got %q", sub.Channel)
	}
}

func TestImportLeadsUsesFormNameAsCategoryHint(t *testing.T) {
	store := &fakeLeadStore{existing: map[string]bool{}}
	svc := NewService(nil, store, logger.New("test"))

	form := Form{ID: "form-1", Name: "Solaranlagen Anfrage"}
	raws := []RawLead{
		{ID: "lead-9", FieldData: []FieldData{
			{Name: "name", Values: []string{"Eva Braun"}},
			{Name: "email", Values: []string{"eva@example.com"}},
		}},
	}

	if _, imported, _, _ := svc.importLeads(context.Background(), form, raws); imported != 1 {
		t.Fatal("expected one imported lead")
	}
	if got := store.created[0].CategoryHint; got != "Solaranlagen Anfrage" {
		t.Fatalf("category hint: got %q", got)
	}
}

func TestImportLeadsSkipsIncompleteSubmissions(t *testing.T) {
	store := &fakeLeadStore{existing: map[string]bool{}}
	svc := NewService(nil, store, logger.New("test"))

	raws := []RawLead{
		{ID: "lead-3", FieldData: []FieldData{
			{Name: "kommentar", Values: []string{"kein Kontakt"}},
		}},
	}

	_, imported, _, skipped := svc.importLeads(context.Background(), Form{ID: "f"}, raws)
	if imported != 0 || skipped != 1 {
		t.Fatalf("got imported=%d skipped=%d", imported, skipped)
	}
}
