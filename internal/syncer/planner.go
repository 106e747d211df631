package syncer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opencorp/clientsync/internal/domain"
	"github.com/opencorp/clientsync/internal/feed"
)

// PlanAction is the planner's decision for one mapped row.
type PlanAction string

const (
	PlanCreate    PlanAction = "create"
	PlanUpdate    PlanAction = "update"
	PlanUnchanged PlanAction = "unchanged"
	PlanInvalid   PlanAction = "invalid"
)

// RowPlan pairs a mapped row with the decision and the data needed to apply
// it. It is a pure function of its inputs and never touches storage, so the
// same logic backs both preview and live execution.
type RowPlan struct {
	Action   PlanAction
	Row      *feed.MappedRow
	Existing *domain.Client
	Changed  []string
	Errors   []domain.RowError
}

// Plan decides create, update, unchanged, or invalid for one mapped row by
// full-field comparison against the existing record.
func Plan(row *feed.MappedRow, existing *domain.Client) RowPlan {
	if row.Client.NormalizedName == "" {
		return RowPlan{
			Action: PlanInvalid,
			Row:    row,
			Errors: []domain.RowError{{Row: row.Index, Field: "display_name", Message: "row has no resolvable identity"}},
		}
	}

	if existing == nil {
		return RowPlan{Action: PlanCreate, Row: row}
	}

	changed := diffPatch(existing.ClientPatch, row.Client)
	if !sameItems(existing.Items, row.Items) {
		changed = append(changed, "line_items")
	}
	if !samePartners(existing.Partners, row.Partners) {
		changed = append(changed, "partners")
	}

	if len(changed) == 0 {
		return RowPlan{Action: PlanUnchanged, Row: row, Existing: existing}
	}
	return RowPlan{Action: PlanUpdate, Row: row, Existing: existing, Changed: changed}
}

// diffPatch lists the client-level fields whose incoming value differs from
// the persisted one. The reference code is excluded: it is assigned once at
// create time and never reconciled afterwards.
func diffPatch(existing, incoming domain.ClientPatch) []string {
	var changed []string
	if existing.DisplayName != incoming.DisplayName {
		changed = append(changed, "display_name")
	}
	if existing.NormalizedName != incoming.NormalizedName {
		changed = append(changed, "normalized_name")
	}
	if !sameDate(existing.TransactionDate, incoming.TransactionDate) {
		changed = append(changed, "transaction_date")
	}
	if existing.SalesRep != incoming.SalesRep {
		changed = append(changed, "sales_rep")
	}
	if existing.SalesChannel != incoming.SalesChannel {
		changed = append(changed, "sales_channel")
	}
	if existing.PaymentMethod != incoming.PaymentMethod {
		changed = append(changed, "payment_method")
	}
	if existing.Expedited != incoming.Expedited {
		changed = append(changed, "expedited")
	}
	if existing.Courtesy != incoming.Courtesy {
		changed = append(changed, "courtesy")
	}
	if existing.Notes != incoming.Notes {
		changed = append(changed, "notes")
	}
	return changed
}

// sameDate compares transaction dates at day precision; nil equals only nil.
func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// sameItems compares the line-item collections as unordered multisets.
func sameItems(a, b []domain.LineItem) bool {
	return sameKeys(itemKeys(a), itemKeys(b))
}

// samePartners compares the partner collections as unordered multisets.
func samePartners(a, b []domain.Partner) bool {
	return sameKeys(partnerKeys(a), partnerKeys(b))
}

func itemKeys(items []domain.LineItem) []string {
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, fmt.Sprintf("%s|%s|%d|%s", item.Kind, item.Description, item.ValueCents, metaKey(item.Meta)))
	}
	return keys
}

func metaKey(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(meta))
	for k, v := range meta {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ";")
}

func partnerKeys(partners []domain.Partner) []string {
	keys := make([]string, 0, len(partners))
	for _, partner := range partners {
		pct := ""
		if partner.Percentage != nil {
			pct = fmt.Sprintf("%.2f", *partner.Percentage)
		}
		keys = append(keys, fmt.Sprintf("%s|%s|%s|%s", partner.FullName, partner.Role, pct, partner.Phone))
	}
	return keys
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
