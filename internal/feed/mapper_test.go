package feed

import (
	"testing"
	"time"

	"github.com/opencorp/clientsync/internal/domain"
)

func TestMapReturnsNilWithoutIdentity(t *testing.T) {
	rows := []Row{
		{},
		{"company_name": ""},
		{"company_name": "   ", "razao_social": ""},
		{"formation_fee": "100,00", "notes": "no name anywhere"},
	}

	for i, row := range rows {
		if mapped := Map(row, i, VariantOnboarding); mapped != nil {
			t.Errorf("row %d: expected nil for identity-less row, got %+v", i, mapped)
		}
	}
}

func TestMapOnboardingRow(t *testing.T) {
	row := Row{
		"company_name":         "Acme LLC",
		"jurisdiction":         "Delaware",
		"company_type":         "LLC",
		"formation_fee":        "1.500,00",
		"partner_1_first_name": "John",
		"partner_1_last_name":  "Doe",
		"partner_1_percentage": "100",
	}

	mapped := Map(row, 0, VariantOnboarding)
	if mapped == nil {
		t.Fatal("expected mapped row")
	}

	if mapped.Client.DisplayName != "Acme LLC" {
		t.Errorf("display name = %q", mapped.Client.DisplayName)
	}
	if mapped.Client.NormalizedName != "acme llc" {
		t.Errorf("normalized name = %q", mapped.Client.NormalizedName)
	}

	if len(mapped.Items) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(mapped.Items))
	}
	item := mapped.Items[0]
	if item.Kind != domain.LineItemFormation {
		t.Errorf("item kind = %s", item.Kind)
	}
	if item.ValueCents != 150000 {
		t.Errorf("value cents = %d, want 150000", item.ValueCents)
	}
	if item.Description != "Delaware LLC formation" {
		t.Errorf("description = %q", item.Description)
	}

	if len(mapped.Partners) != 1 {
		t.Fatalf("expected 1 partner, got %d", len(mapped.Partners))
	}
	partner := mapped.Partners[0]
	if partner.FullName != "John Doe" {
		t.Errorf("partner name = %q", partner.FullName)
	}
	if partner.Role != domain.PartnerRolePrincipal {
		t.Errorf("partner role = %s", partner.Role)
	}
	if partner.Percentage == nil || *partner.Percentage != 100 {
		t.Errorf("partner percentage = %v, want 100", partner.Percentage)
	}
}

func TestParseCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1.234,56", 123456, true},
		{"1234.56", 123456, true},
		{"1500", 150000, true},
		{"R$ 99,90", 9990, true},
		{"0", 0, true},
		{"", 0, false},
		{"abc", 0, false},
	}

	for _, tc := range cases {
		got, ok := ParseCents(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseCents(%q) = (%d, %v), want (%d, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestUnparseableFeeOmitsItemOnly(t *testing.T) {
	row := Row{
		"company_name":  "Beta Corp",
		"formation_fee": "abc",
		"service_fee":   "250,00",
	}

	mapped := Map(row, 0, VariantOnboarding)
	if mapped == nil {
		t.Fatal("expected mapped row despite unparseable fee")
	}
	if len(mapped.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(mapped.Items))
	}
	if mapped.Items[0].Kind != domain.LineItemAncillaryService {
		t.Errorf("surviving item kind = %s", mapped.Items[0].Kind)
	}
}

func TestNegativeFeeOmitsItem(t *testing.T) {
	row := Row{
		"company_name":  "Gamma Corp",
		"formation_fee": "-100,00",
	}

	mapped := Map(row, 0, VariantOnboarding)
	if mapped == nil || len(mapped.Items) != 0 {
		t.Fatalf("expected row with no items, got %+v", mapped)
	}
}

func TestParsePercentage(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{"150", f(100)},
		{"-10", f(0)},
		{"42,5", f(42.5)},
		{"42.5", f(42.5)},
		{"50%", f(50)},
		{"", nil},
		{"n/a", nil},
	}

	for _, tc := range cases {
		got := ParsePercentage(tc.in)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("ParsePercentage(%q) = %v, want nil", tc.in, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Errorf("ParsePercentage(%q) = %v, want %v", tc.in, got, *tc.want)
		}
	}
}

func f(v float64) *float64 { return &v }

func TestParseBool(t *testing.T) {
	affirmative := []string{"1", "true", "sim", "sí", "si", "yes", "s", "y", "SIM", "Yes"}
	for _, in := range affirmative {
		if !ParseBool(in) {
			t.Errorf("ParseBool(%q) = false, want true", in)
		}
	}

	negative := []string{"", "0", "no", "nao", "false", "2"}
	for _, in := range negative {
		if ParseBool(in) {
			t.Errorf("ParseBool(%q) = true, want false", in)
		}
	}
}

func TestParseDate(t *testing.T) {
	if got := ParseDate("25/12/2024"); got == nil || !got.Equal(time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate(25/12/2024) = %v", got)
	}
	if got := ParseDate("2024-12-25"); got == nil || !got.Equal(time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate(2024-12-25) = %v", got)
	}
	if got := ParseDate("not a date"); got != nil {
		t.Errorf("ParseDate(not a date) = %v, want nil", got)
	}
}

func TestMatchCategory(t *testing.T) {
	reps := []string{"ana", "bruno", "carla"}
	if got := MatchCategory("BRUNO", reps); got != "bruno" {
		t.Errorf("exact match = %q", got)
	}
	if got := MatchCategory("bru", reps); got != "bruno" {
		t.Errorf("prefix match = %q", got)
	}
	if got := MatchCategory("zoe", reps); got != "" {
		t.Errorf("no match = %q", got)
	}
}

func TestRegisteredAddressProviderOverridesRowAddress(t *testing.T) {
	row := Row{
		"company_name":     "Delta LLC",
		"address_fee":      "49,90",
		"address_provider": "CorpDesk",
		"address_line1":    "1 Some Other St",
	}

	mapped := Map(row, 0, VariantOnboarding)
	if mapped == nil || len(mapped.Items) != 1 {
		t.Fatalf("expected 1 item, got %+v", mapped)
	}
	meta := mapped.Items[0].Meta
	if meta["address_line1"] != "100 Market Street, Suite 300" {
		t.Errorf("address_line1 = %q, want fixed provider address", meta["address_line1"])
	}
}

func TestMapPartnersIndexedFamilies(t *testing.T) {
	row := Row{
		"company_name":         "Epsilon LLC",
		"partner_1_first_name": "Maria",
		"partner_1_last_name":  "Silva",
		"partner_2_first_name": "Jose",
		"partner_2_last_name":  "Souza",
		"partner_2_percentage": "30,5",
	}

	mapped := Map(row, 0, VariantOnboarding)
	if mapped == nil || len(mapped.Partners) != 2 {
		t.Fatalf("expected 2 partners, got %+v", mapped)
	}

	principal := mapped.Partners[0]
	if principal.Role != domain.PartnerRolePrincipal || principal.Percentage == nil || *principal.Percentage != 100 {
		t.Errorf("principal should default to 100%%, got %+v", principal)
	}

	secondary := mapped.Partners[1]
	if secondary.Role != domain.PartnerRoleSecondary || secondary.Percentage == nil || *secondary.Percentage != 30.5 {
		t.Errorf("secondary = %+v", secondary)
	}
}

func TestMapRenewalsVariantAliases(t *testing.T) {
	row := Row{
		"cliente":       "Omega SA",
		"tarifa_anual":  "1.200,00",
		"data_renovacion": "01/03/2025",
	}

	mapped := Map(row, 0, VariantRenewals)
	if mapped == nil {
		t.Fatal("expected mapped row from renewals aliases")
	}
	if mapped.Client.DisplayName != "Omega SA" {
		t.Errorf("display name = %q", mapped.Client.DisplayName)
	}
	if len(mapped.Items) != 1 || mapped.Items[0].Kind != domain.LineItemRecurringFee {
		t.Fatalf("expected recurring fee item, got %+v", mapped.Items)
	}
	if mapped.Items[0].ValueCents != 120000 {
		t.Errorf("value cents = %d", mapped.Items[0].ValueCents)
	}
	if mapped.Client.TransactionDate == nil {
		t.Error("expected parsed renewal date")
	}
}
