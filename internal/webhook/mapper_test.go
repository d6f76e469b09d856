package webhook

import "testing"

func TestMapFieldsGermanLabels(t *testing.T) {
	got := MapFields(map[string]string{
		"Vorname":      "Anna",
		"Nachname":     "Schmidt",
		"E-Mail":       "anna@example.com",
		"Telefon":      "030 1234567",
		"PLZ":          "10115",
		"Wohnort":      "Berlin",
		"Kategorie":    "Gesundheit",
		"Freitextfeld": "Bitte morgens anrufen",
	})

	if got.FirstName != "Anna" || got.LastName != "Schmidt" {
		t.Fatalf("name: got %q %q", got.FirstName, got.LastName)
	}
	if got.Email != "anna@example.com" {
		t.Fatalf("email: got %q", got.Email)
	}
	if got.Phone != "030 1234567" {
		t.Fatalf("phone: got %q", got.Phone)
	}
	if got.PostalCode != "10115" || got.City != "Berlin" {
		t.Fatalf("address: got %q %q", got.PostalCode, got.City)
	}
	if got.Category != "Gesundheit" {
		t.Fatalf("category: got %q", got.Category)
	}
	if got.Extra["Freitextfeld"] != "Bitte morgens anrufen" {
		t.Fatalf("extra: got %v", got.Extra)
	}
}

func TestMapFieldsAmbiguousLabelConsumedOnce(t *testing.T) {
	// "email_telefon" matches both the email and the phone rule; the email
	// rule runs first and consumes it, and it must not also fill the phone.
	got := MapFields(map[string]string{
		"name":          "Max Mustermann",
		"email_telefon": "max@example.com",
	})

	if got.Email != "max@example.com" {
		t.Fatalf("email: got %q", got.Email)
	}
	if got.Phone != "" {
		t.Fatalf("phone should stay empty, got %q", got.Phone)
	}
	if _, ok := got.Extra["email_telefon"]; ok {
		t.Fatal("consumed field must not appear in extra data")
	}
}

func TestMapFieldsFullNameSplit(t *testing.T) {
	got := MapFields(map[string]string{"name": "Max Mustermann"})
	if got.FirstName != "Max" || got.LastName != "Mustermann" {
		t.Fatalf("got %q %q", got.FirstName, got.LastName)
	}
}

func TestMapFieldsFullNameDoesNotOverrideExplicit(t *testing.T) {
	got := MapFields(map[string]string{
		"vorname":  "Anna",
		"nachname": "Schmidt",
		"name":     "Other Person",
	})
	if got.FirstName != "Anna" || got.LastName != "Schmidt" {
		t.Fatalf("got %q %q", got.FirstName, got.LastName)
	}
	if got.Extra["name"] != "Other Person" {
		t.Fatalf("unconsumed name should land in extra, got %v", got.Extra)
	}
}

func TestMapFieldsIncomplete(t *testing.T) {
	cases := []struct {
		name string
		data map[string]string
		want bool
	}{
		{"name and email", map[string]string{"name": "Max M", "email": "m@example.com"}, false},
		{"name only", map[string]string{"name": "Max M"}, true},
		{"contact only", map[string]string{"telefon": "030 1234567"}, true},
		{"empty", map[string]string{}, true},
	}

	for _, tc := range cases {
		if got := MapFields(tc.data).IsIncomplete(); got != tc.want {
			t.Fatalf("%s: IsIncomplete = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMapFieldsBlankValuesIgnored(t *testing.T) {
	got := MapFields(map[string]string{
		"email":   "  ",
		"e_mail":  "real@example.com",
		"comment": "",
	})
	if got.Email != "real@example.com" {
		t.Fatalf("email: got %q", got.Email)
	}
	if len(got.Extra) != 0 {
		t.Fatalf("blank fields must not reach extra data: %v", got.Extra)
	}
}
