package domain

import (
	"time"

	"github.com/google/uuid"
)

// LineItemKind enumerates the billable item categories a feed can produce.
type LineItemKind string

const (
	LineItemFormation         LineItemKind = "entity_formation"
	LineItemRegisteredAddress LineItemKind = "registered_address"
	LineItemPaymentGateway    LineItemKind = "payment_gateway"
	LineItemAncillaryService  LineItemKind = "ancillary_service"
	LineItemRecurringFee      LineItemKind = "recurring_fee"
)

// PartnerRole distinguishes the principal owner from secondary partners.
type PartnerRole string

const (
	PartnerRolePrincipal PartnerRole = "principal"
	PartnerRoleSecondary PartnerRole = "secondary"
)

// ClientPatch carries the customer-level fields mapped from one feed row.
// NormalizedName is derived from DisplayName and is the primary matching key.
type ClientPatch struct {
	DisplayName     string     `json:"display_name"`
	NormalizedName  string     `json:"normalized_name"`
	ReferenceCode   string     `json:"reference_code,omitempty"`
	TransactionDate *time.Time `json:"transaction_date,omitempty"`
	SalesRep        string     `json:"sales_rep,omitempty"`
	SalesChannel    string     `json:"sales_channel,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	Expedited       bool       `json:"expedited"`
	Courtesy        bool       `json:"courtesy"`
	Notes           string     `json:"notes,omitempty"`
}

// LineItem is one billable unit attached to a client. ValueCents is always
// non-negative and integral.
type LineItem struct {
	Kind        LineItemKind      `json:"kind"`
	Description string            `json:"description"`
	ValueCents  int64             `json:"value_cents"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Partner is an ownership record attached to a client. Percentage is nil when
// the feed did not supply a parseable value.
type Partner struct {
	FullName   string      `json:"full_name"`
	Role       PartnerRole `json:"role"`
	Percentage *float64    `json:"percentage,omitempty"`
	Phone      string      `json:"phone,omitempty"`
}

// Client is the persisted customer record together with its child collections.
type Client struct {
	ID        uuid.UUID `json:"id"`
	ClientPatch
	Items     []LineItem `json:"items"`
	Partners  []Partner  `json:"partners"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
