package webhook

import (
	"sort"
	"strings"
)

// MappedFields holds the normalized contact fields extracted from a raw
// submission. Every submitted field that was not consumed by the mapper
// lands in Extra verbatim.
type MappedFields struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	PostalCode string
	City       string
	Category   string
	Extra      map[string]string
}

// IsIncomplete returns true if minimum required fields (a name and at least
// one contact method) are missing.
func (m MappedFields) IsIncomplete() bool {
	hasName := m.FirstName != "" || m.LastName != ""
	hasContact := m.Phone != "" || m.Email != ""
	return !hasName || !hasContact
}

// mappingRule binds a canonical field to its known label variants.
// Rules are evaluated in order and each submitted field is consumed at
// most once, so a label matching several rules (e.g. "email_telefon")
// goes to the earlier rule.
type mappingRule struct {
	canonical string
	patterns  []string
}

const (
	fieldFirstName  = "first_name"
	fieldLastName   = "last_name"
	fieldFullName   = "full_name"
	fieldEmail      = "email"
	fieldPhone      = "phone"
	fieldPostalCode = "postal_code"
	fieldCity       = "city"
	fieldCategory   = "category"
)

// Field label variants (German + English), ordered by priority.
var mappingRules = []mappingRule{
	{fieldFirstName, []string{"first_name", "firstname", "first name", "vorname", "given_name", "fname"}},
	{fieldLastName, []string{"last_name", "lastname", "last name", "nachname", "surname", "familienname", "lname"}},
	{fieldEmail, []string{"email", "e-mail", "e_mail", "mail"}},
	{fieldPhone, []string{"phone", "telefon", "tel", "telephone", "handy", "mobil", "mobile", "rufnummer"}},
	{fieldPostalCode, []string{"zip", "zipcode", "postal_code", "postalcode", "plz", "postleitzahl"}},
	{fieldCity, []string{"city", "stadt", "ort", "wohnort", "town", "gemeinde"}},
	{fieldCategory, []string{"category", "kategorie", "branche", "leistung", "form_name", "formular", "service"}},
	{fieldFullName, []string{"full_name", "fullname", "name", "your_name"}},
}

// MapFields normalizes a flat string map of submitted form data using the
// ordered synonym table. Matching is case-insensitive substring.
func MapFields(data map[string]string) MappedFields {
	result := MappedFields{Extra: map[string]string{}}

	// Deterministic field order so repeated submissions map identically.
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	consumed := map[string]bool{}
	for _, rule := range mappingRules {
		for _, key := range keys {
			if consumed[key] {
				continue
			}
			value := strings.TrimSpace(data[key])
			if value == "" {
				continue
			}
			if !matchesAny(strings.ToLower(strings.TrimSpace(key)), rule.patterns) {
				continue
			}
			if result.apply(rule.canonical, value) {
				consumed[key] = true
				break
			}
		}
	}

	for _, key := range keys {
		if !consumed[key] && strings.TrimSpace(data[key]) != "" {
			result.Extra[key] = data[key]
		}
	}

	// A bare "name" field often carries "first last".
	if result.FirstName != "" && result.LastName == "" && strings.Contains(result.FirstName, " ") {
		parts := strings.SplitN(result.FirstName, " ", 2)
		result.FirstName = parts[0]
		result.LastName = parts[1]
	}

	return result
}

func (m *MappedFields) apply(canonical, value string) bool {
	switch canonical {
	case fieldFirstName:
		if m.FirstName != "" {
			return false
		}
		m.FirstName = value
	case fieldLastName:
		if m.LastName != "" {
			return false
		}
		m.LastName = value
	case fieldFullName:
		if m.FirstName != "" {
			return false
		}
		parts := strings.SplitN(value, " ", 2)
		m.FirstName = parts[0]
		if len(parts) > 1 && m.LastName == "" {
			m.LastName = parts[1]
		}
	case fieldEmail:
		if m.Email != "" {
			return false
		}
		m.Email = value
	case fieldPhone:
		if m.Phone != "" {
			return false
		}
		m.Phone = value
	case fieldPostalCode:
		if m.PostalCode != "" {
			return false
		}
		m.PostalCode = value
	case fieldCity:
		if m.City != "" {
			return false
		}
		m.City = value
	case fieldCategory:
		if m.Category != "" {
			return false
		}
		m.Category = value
	default:
		return false
	}
	return true
}

func matchesAny(key string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(key, pattern) {
			return true
		}
	}
	return false
}
