package feed

import (
	"fmt"
	"strings"

	"github.com/opencorp/clientsync/internal/domain"
)

// Variant selects the column-alias mapping for one configured feed.
type Variant string

const (
	VariantOnboarding Variant = "onboarding"
	VariantRenewals   Variant = "renewals"
)

// Config describes one external feed: where to fetch it from and which
// alias table applies to its columns.
type Config struct {
	Key      string
	Location string
	Sheet    string
	Variant  Variant
}

// Field names a logical column independent of the header spelling a feed uses.
type Field string

const (
	FieldDisplayName     Field = "display_name"
	FieldReferenceCode   Field = "reference_code"
	FieldTransactionDate Field = "transaction_date"
	FieldSalesRep        Field = "sales_rep"
	FieldSalesChannel    Field = "sales_channel"
	FieldPaymentMethod   Field = "payment_method"
	FieldExpedited       Field = "expedited"
	FieldCourtesy        Field = "courtesy"
	FieldNotes           Field = "notes"
	FieldJurisdiction    Field = "jurisdiction"
	FieldCompanyType     Field = "company_type"
	FieldAddressProvider Field = "address_provider"
	FieldAddressLine1    Field = "address_line1"
	FieldAddressLine2    Field = "address_line2"
	FieldServiceDetail   Field = "service_detail"

	FieldFormationFee Field = "formation_fee"
	FieldAddressFee   Field = "address_fee"
	FieldGatewayFee   Field = "gateway_fee"
	FieldServiceFee   Field = "service_fee"
	FieldRecurringFee Field = "recurring_fee"
)

// fieldAliases is the per-variant extraction table: for every logical field,
// the ordered list of normalized headers that may carry it. Adding a feed
// variant is a change to this table, not to the mapper.
var fieldAliases = map[Variant]map[Field][]string{
	VariantOnboarding: {
		FieldDisplayName:     {"company_name", "razao_social", "empresa", "client_name"},
		FieldReferenceCode:   {"reference", "codigo", "ref"},
		FieldTransactionDate: {"sale_date", "data_venda", "date"},
		FieldSalesRep:        {"sales_rep", "vendedor", "rep"},
		FieldSalesChannel:    {"channel", "canal"},
		FieldPaymentMethod:   {"payment_method", "forma_pagamento"},
		FieldExpedited:       {"expedited", "urgente"},
		FieldCourtesy:        {"courtesy", "cortesia"},
		FieldNotes:           {"notes", "observacoes", "obs"},
		FieldJurisdiction:    {"jurisdiction", "estado", "state"},
		FieldCompanyType:     {"company_type", "tipo_empresa", "entity_type"},
		FieldAddressProvider: {"address_provider", "fornecedor_endereco"},
		FieldAddressLine1:    {"address_line1", "endereco"},
		FieldAddressLine2:    {"address_line2", "complemento"},
		FieldServiceDetail:   {"service_detail", "servico"},
		FieldFormationFee:    {"formation_fee", "taxa_abertura", "valor_abertura"},
		FieldAddressFee:      {"address_fee", "taxa_endereco"},
		FieldGatewayFee:      {"gateway_fee", "taxa_gateway"},
		FieldServiceFee:      {"service_fee", "taxa_servico"},
	},
	VariantRenewals: {
		FieldDisplayName:     {"company_name", "cliente", "company"},
		FieldReferenceCode:   {"reference", "codigo"},
		FieldTransactionDate: {"renewal_date", "data_renovacion", "date"},
		FieldSalesRep:        {"account_rep", "sales_rep", "gestor"},
		FieldSalesChannel:    {"channel", "canal"},
		FieldPaymentMethod:   {"payment_method", "forma_pago"},
		FieldExpedited:       {"expedited"},
		FieldCourtesy:        {"courtesy", "cortesia"},
		FieldNotes:           {"notes", "notas"},
		FieldAddressProvider: {"address_provider", "proveedor_direccion"},
		FieldAddressLine1:    {"address_line1", "direccion"},
		FieldAddressLine2:    {"address_line2"},
		FieldServiceDetail:   {"service_detail", "servicio"},
		FieldAddressFee:      {"address_fee", "tarifa_direccion"},
		FieldServiceFee:      {"service_fee", "tarifa_servicio"},
		FieldRecurringFee:    {"recurring_fee", "annual_fee", "tarifa_anual"},
	},
}

// moneyFields maps each recognized monetary column onto the line-item kind it
// produces. Order is the emission order for a row's items.
var moneyFields = []struct {
	Field Field
	Kind  domain.LineItemKind
}{
	{FieldFormationFee, domain.LineItemFormation},
	{FieldAddressFee, domain.LineItemRegisteredAddress},
	{FieldGatewayFee, domain.LineItemPaymentGateway},
	{FieldServiceFee, domain.LineItemAncillaryService},
	{FieldRecurringFee, domain.LineItemRecurringFee},
}

// maxPartners bounds the indexed partner column families scanned per row.
const maxPartners = 5

type partnerField string

const (
	partnerFirstName  partnerField = "first_name"
	partnerLastName   partnerField = "last_name"
	partnerFullName   partnerField = "full_name"
	partnerPercentage partnerField = "percentage"
	partnerPhone      partnerField = "phone"
)

var partnerAliasTemplates = map[Variant]map[partnerField][]string{
	VariantOnboarding: {
		partnerFirstName:  {"partner_%d_first_name", "socio_%d_nome"},
		partnerLastName:   {"partner_%d_last_name", "socio_%d_sobrenome"},
		partnerFullName:   {"partner_%d_name", "socio_%d"},
		partnerPercentage: {"partner_%d_percentage", "socio_%d_participacao"},
		partnerPhone:      {"partner_%d_phone", "socio_%d_telefone"},
	},
	VariantRenewals: {
		partnerFirstName:  {"partner_%d_first_name", "socio_%d_nombre"},
		partnerLastName:   {"partner_%d_last_name", "socio_%d_apellido"},
		partnerFullName:   {"partner_%d_name", "socio_%d"},
		partnerPercentage: {"partner_%d_percentage", "socio_%d_porcentaje"},
		partnerPhone:      {"partner_%d_phone", "socio_%d_telefono"},
	},
}

// referenceTags prefix the deterministic fallback reference code per variant.
var referenceTags = map[Variant]string{
	VariantOnboarding: "ONB",
	VariantRenewals:   "REN",
}

// Tag returns the reference-code prefix for a variant.
func Tag(v Variant) string {
	if tag, ok := referenceTags[v]; ok {
		return tag
	}
	return "GEN"
}

// KnownVariant reports whether v has an alias table.
func KnownVariant(v Variant) bool {
	_, ok := fieldAliases[v]
	return ok
}

// Extractor resolves logical fields against a normalized row using the
// variant's alias table.
type Extractor struct {
	variant Variant
}

// NewExtractor returns an extractor for the given variant.
func NewExtractor(v Variant) Extractor {
	return Extractor{variant: v}
}

// Value returns the first non-empty value among the field's aliases.
func (e Extractor) Value(row Row, f Field) string {
	for _, alias := range fieldAliases[e.variant][f] {
		if v, ok := row[alias]; ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// partnerValue resolves one field of the indexed partner column family.
func (e Extractor) partnerValue(row Row, index int, f partnerField) string {
	for _, tmpl := range partnerAliasTemplates[e.variant][f] {
		alias := fmt.Sprintf(tmpl, index)
		if v, ok := row[alias]; ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
