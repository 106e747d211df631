package feed

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/opencorp/clientsync/internal/domain"
)

// MappedRow is the typed result of mapping one raw row.
type MappedRow struct {
	Index    int
	Client   domain.ClientPatch
	Items    []domain.LineItem
	Partners []domain.Partner
}

// salesReps is the fixed attribution enumeration. Matching is
// case-insensitive with a prefix fallback.
var salesReps = []string{"ana", "bruno", "carla", "diego", "marina"}

// salesChannels enumerates the recognized acquisition channels.
var salesChannels = []string{"web", "referral", "partner", "events"}

// companyTypes maps recognized entity categories to the label used when
// synthesizing formation descriptions.
var companyTypes = map[string]string{
	"llc":         "LLC",
	"corporation": "Corporation",
	"corp":        "Corporation",
	"nonprofit":   "Nonprofit",
}

// registeredAddressProvider is the one provider whose service implies fixed
// address lines regardless of what the row supplies.
const registeredAddressProvider = "corpdesk"

var corpdeskAddress = map[string]string{
	"address_line1": "100 Market Street, Suite 300",
	"address_line2": "Wilmington, DE 19801",
}

var affirmativeTokens = map[string]bool{
	"1": true, "true": true, "sim": true, "sí": true,
	"si": true, "yes": true, "s": true, "y": true,
}

var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// Map converts one normalized raw row into a typed patch with its child
// collections. It returns nil when no display-name alias resolves to a
// non-empty value; such rows are silently excluded from the run.
func Map(row Row, index int, variant Variant) *MappedRow {
	ex := NewExtractor(variant)

	name := ex.Value(row, FieldDisplayName)
	if name == "" {
		return nil
	}

	patch := domain.ClientPatch{
		DisplayName:     name,
		NormalizedName:  domain.NormalizeName(name),
		ReferenceCode:   ex.Value(row, FieldReferenceCode),
		TransactionDate: ParseDate(ex.Value(row, FieldTransactionDate)),
		SalesRep:        MatchCategory(ex.Value(row, FieldSalesRep), salesReps),
		SalesChannel:    MatchCategory(ex.Value(row, FieldSalesChannel), salesChannels),
		PaymentMethod:   ex.Value(row, FieldPaymentMethod),
		Expedited:       ParseBool(ex.Value(row, FieldExpedited)),
		Courtesy:        ParseBool(ex.Value(row, FieldCourtesy)),
		Notes:           ex.Value(row, FieldNotes),
	}

	return &MappedRow{
		Index:    index,
		Client:   patch,
		Items:    mapLineItems(ex, row),
		Partners: mapPartners(ex, row),
	}
}

// mapLineItems emits at most one item per recognized monetary column whose
// value parses to a non-negative amount. Unparseable values drop the item,
// never the row.
func mapLineItems(ex Extractor, row Row) []domain.LineItem {
	var items []domain.LineItem
	for _, mf := range moneyFields {
		raw := ex.Value(row, mf.Field)
		if raw == "" {
			continue
		}
		cents, ok := ParseCents(raw)
		if !ok || cents < 0 {
			continue
		}
		item := domain.LineItem{
			Kind:        mf.Kind,
			Description: deriveDescription(ex, row, mf.Kind),
			ValueCents:  cents,
		}
		if mf.Kind == domain.LineItemRegisteredAddress {
			item.Meta = addressMeta(ex, row)
		}
		items = append(items, item)
	}
	return items
}

// deriveDescription synthesizes the human-readable description for kinds that
// build it from categorical sub-fields instead of free text.
func deriveDescription(ex Extractor, row Row, kind domain.LineItemKind) string {
	switch kind {
	case domain.LineItemFormation:
		jurisdiction := ex.Value(row, FieldJurisdiction)
		label := companyTypes[strings.ToLower(ex.Value(row, FieldCompanyType))]
		parts := make([]string, 0, 3)
		if jurisdiction != "" {
			parts = append(parts, jurisdiction)
		}
		if label != "" {
			parts = append(parts, label)
		}
		if len(parts) == 0 {
			return "Company formation"
		}
		return strings.Join(append(parts, "formation"), " ")
	case domain.LineItemRegisteredAddress:
		if provider := ex.Value(row, FieldAddressProvider); provider != "" {
			return "Registered address (" + provider + ")"
		}
		return "Registered address"
	case domain.LineItemPaymentGateway:
		return "Payment gateway setup"
	case domain.LineItemAncillaryService:
		if detail := ex.Value(row, FieldServiceDetail); detail != "" {
			return detail
		}
		return "Ancillary service"
	case domain.LineItemRecurringFee:
		return "Recurring maintenance fee"
	default:
		return string(kind)
	}
}

// addressMeta returns the structured address for a registered-address item.
// The fixed provider always wins over row-supplied lines.
func addressMeta(ex Extractor, row Row) map[string]string {
	provider := strings.ToLower(ex.Value(row, FieldAddressProvider))
	if provider == registeredAddressProvider {
		meta := make(map[string]string, len(corpdeskAddress))
		for k, v := range corpdeskAddress {
			meta[k] = v
		}
		return meta
	}

	meta := map[string]string{}
	if line := ex.Value(row, FieldAddressLine1); line != "" {
		meta["address_line1"] = line
	}
	if line := ex.Value(row, FieldAddressLine2); line != "" {
		meta["address_line2"] = line
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// mapPartners reads the indexed partner column families. Index 1 is the
// principal and defaults to 100% when no percentage column resolves.
func mapPartners(ex Extractor, row Row) []domain.Partner {
	var partners []domain.Partner
	for i := 1; i <= maxPartners; i++ {
		name := partnerName(ex, row, i)
		if name == "" {
			continue
		}

		partner := domain.Partner{
			FullName:   name,
			Role:       domain.PartnerRoleSecondary,
			Percentage: ParsePercentage(ex.partnerValue(row, i, partnerPercentage)),
			Phone:      ex.partnerValue(row, i, partnerPhone),
		}
		if i == 1 {
			partner.Role = domain.PartnerRolePrincipal
			if partner.Percentage == nil {
				full := 100.0
				partner.Percentage = &full
			}
		}
		partners = append(partners, partner)
	}
	return partners
}

func partnerName(ex Extractor, row Row, index int) string {
	if full := ex.partnerValue(row, index, partnerFullName); full != "" {
		return full
	}
	first := ex.partnerValue(row, index, partnerFirstName)
	last := ex.partnerValue(row, index, partnerLastName)
	return strings.TrimSpace(first + " " + last)
}

// ParseCents parses a currency value into integer cents. Both "1.234,56" and
// "1234.56" forms are accepted; thousands separators are stripped and a comma
// decimal separator is converted before parsing.
func ParseCents(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "R$€£ ")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(value * 100)), true
}

// ParsePercentage parses a comma-or-dot decimal and clamps it to [0,100].
// Unparseable input yields nil so the field is omitted without failing the row.
func ParsePercentage(raw string) *float64 {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if s == "" {
		return nil
	}
	s = strings.Replace(s, ",", ".", 1)
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	return &value
}

// ParseBool matches against the affirmative token set; anything else is false.
func ParseBool(raw string) bool {
	return affirmativeTokens[strings.ToLower(strings.TrimSpace(raw))]
}

// ParseDate accepts DD/MM/YYYY or YYYY-MM-DD first, then the generic layouts.
// Unparseable input yields nil.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}

// MatchCategory resolves a value against a fixed enumeration, exact match
// first, then unique-insensitive prefix. No match yields the empty string.
func MatchCategory(raw string, options []string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return ""
	}
	for _, option := range options {
		if value == option {
			return option
		}
	}
	for _, option := range options {
		if strings.HasPrefix(option, value) || strings.HasPrefix(value, option) {
			return option
		}
	}
	return ""
}
