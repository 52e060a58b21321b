package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
	domledger "github.com/kailas-cloud/talentdex/internal/domain/ledger"
	"github.com/kailas-cloud/talentdex/internal/domain/person"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runExpectingError(t *testing.T, want string, args ...string) {
	t.Helper()
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run(append([]string{"talentadmin"}, args...))
	if err == nil {
		t.Fatalf("%v: expected error", args)
	}
	if !strings.Contains(err.Error(), want) {
		t.Errorf("%v: error %q does not mention %q", args, err, want)
	}
}

func TestCreditCommandFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"person is required", []string{"credit", "--amount", "5"}, "person"},
		{"amount is required", []string{"credit", "--person", "p1"}, "amount"},
		{
			"unknown reason fails before any store is opened",
			[]string{"credit", "--person", "p1", "--amount", "5", "--reason", "gift"},
			`unknown credit reason "gift"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runExpectingError(t, tt.want, tt.args...)
		})
	}
}

func TestImportCommand_RequiresInput(t *testing.T) {
	runExpectingError(t, "nothing to import", "import")
}

func TestImportCommand_BadFileFailsEarly(t *testing.T) {
	path := writeFile(t, "persons.json", `{"not": "an array"}`)
	runExpectingError(t, "parse", "import", "--persons", path)
}

func TestParseReason(t *testing.T) {
	for _, r := range []domledger.Reason{domledger.ReasonTopUp, domledger.ReasonAdjustment, domledger.ReasonRefund} {
		got, err := parseReason(string(r))
		if err != nil {
			t.Errorf("parseReason(%q): %v", r, err)
		}
		if got != r {
			t.Errorf("parseReason(%q) = %q", r, got)
		}
	}
	// Unlock charges are never granted by hand.
	if _, err := parseReason(string(domledger.ReasonUnlock)); err == nil {
		t.Error("expected error for unlock reason")
	}
}

func TestReadPersons(t *testing.T) {
	path := writeFile(t, "persons.json", `[
		{
			"id": "p1",
			"display_name": "Ada",
			"open_to_work": true,
			"open_to_contact": true,
			"salary_min": 90000,
			"visibility": "public",
			"contact": {"email": "ada@example.com", "email_visible": true, "linkedin_url": "https://linkedin.com/in/ada"}
		},
		{"id": "p2", "visibility": "hidden"}
	]`)

	persons, err := readPersons(path)
	if err != nil {
		t.Fatalf("readPersons: %v", err)
	}
	if len(persons) != 2 {
		t.Fatalf("persons = %d, want 2", len(persons))
	}

	ada := persons[0]
	if ada.DisplayName != "Ada" || !ada.OpenToWork {
		t.Errorf("ada = %+v", ada)
	}
	if ada.SalaryMin == nil || *ada.SalaryMin != 90000 || ada.SalaryMax != nil {
		t.Errorf("salary = %v..%v", ada.SalaryMin, ada.SalaryMax)
	}
	if ada.Contact.Email != "ada@example.com" || !ada.Contact.EmailVisible {
		t.Errorf("contact = %+v", ada.Contact)
	}
	if persons[1].Visibility != person.VisibilityHidden {
		t.Errorf("p2 visibility = %q", persons[1].Visibility)
	}
}

func TestReadCards(t *testing.T) {
	path := writeFile(t, "cards.json", `[
		{"id": "c1", "person_id": "p1", "title": "Payments platform", "company": "Stripe", "city": "Dublin", "status": "published"},
		{"id": "c2", "person_id": "p1", "parent_id": "c1", "title": "Ledger rewrite", "remote": true, "source_id": "cv-7"}
	]`)

	drafts, err := readCards(path)
	if err != nil {
		t.Fatalf("readCards: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("drafts = %d, want 2", len(drafts))
	}
	if drafts[0].Company != "Stripe" || drafts[0].Status != domcard.Status("published") {
		t.Errorf("c1 = %+v", drafts[0])
	}
	if drafts[1].ParentID != "c1" || !drafts[1].Remote || drafts[1].SourceID != "cv-7" {
		t.Errorf("c2 = %+v", drafts[1])
	}
}

func TestReadCards_MissingFile(t *testing.T) {
	_, err := readCards(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "read") {
		t.Errorf("error %q does not mention read", err)
	}
}
