package extraction

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mailpipeErrors "github.com/cadrius/mailpipe/internal/errors"
)

func TestLookupSchema(t *testing.T) {
	schema, err := LookupSchema(" LegalProcessSchema ")
	require.NoError(t, err)
	assert.Equal(t, SchemaLegalProcess, schema)

	_, err = LookupSchema("InvoiceSchema")
	require.Error(t, err)
	assert.True(t, errors.Is(err, mailpipeErrors.ErrUnknownSchema))
	assert.Contains(t, err.Error(), "InvoiceSchema")
}

func TestDescribe_EveryKnownSchema(t *testing.T) {
	for _, schema := range KnownSchemas() {
		description, err := Describe(schema)
		require.NoError(t, err, schema)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(description, &decoded))
		assert.Equal(t, string(schema), decoded["title"])
		assert.Contains(t, decoded["required"], "confidence_score")
	}
}

func TestDecode_LegalProcess(t *testing.T) {
	document, err := Decode(SchemaLegalProcess, "```json\n"+`{
		"document_type": "LEGAL_PROCESS_MOVEMENT",
		"confidence_score": 88,
		"case_number": "0001234-56.2024.8.26.0100",
		"movement_type": "Intimação",
		"movement_summary": "Prazo para manifestação",
		"deadline": "2025-07-01",
		"suggested_next_step": "Preparar manifestação"
	}`+"\n```")
	require.NoError(t, err)

	legal, ok := document.(*LegalProcess)
	require.True(t, ok)
	assert.Equal(t, "2025-07-01", legal.Deadline.String())
	assert.Equal(t, DocumentTypeLegalProcess, document.Type())

	asMap := document.ToMap()
	assert.Equal(t, "2025-07-01", asMap["deadline"])
	assert.Equal(t, float64(88), asMap["confidence_score"])
}

func TestDecode_NullDeadlineIsAllowed(t *testing.T) {
	document, err := Decode(SchemaLegalProcess, `{
		"document_type": "LEGAL_PROCESS_MOVEMENT",
		"confidence_score": 0,
		"case_number": "1",
		"movement_type": "Despacho",
		"movement_summary": "x",
		"deadline": null,
		"suggested_next_step": "Dar ciência"
	}`)
	require.NoError(t, err)
	assert.Nil(t, document.(*LegalProcess).Deadline)
	assert.Nil(t, document.ToMap()["deadline"])
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(SchemaSupportRequest, "{broken")
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))

	_, err = Decode(SchemaSupportRequest, `{"document_type": "SUPPORT_REQUEST", "confidence_score": "high"}`)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Error(), "confidence_score")

	_, err = Decode(SchemaServiceOrder, `{
		"document_type": "SERVICE_ORDER", "confidence_score": 50, "customer_name": "a",
		"service_description": "b", "priority": "URGENT", "target_sla_days": 120,
		"delivery_date": "01/07/2025", "contact_phone": "1"}`)
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Error(), "YYYY-MM-DD")

	_, err = Decode(SchemaServiceOrder, `{
		"document_type": "SERVICE_ORDER", "confidence_score": 50, "customer_name": "a",
		"service_description": "b", "priority": "URGENT", "target_sla_days": 120,
		"contact_phone": "1"}`)
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Error(), "priority: must be one of HIGH MEDIUM LOW")
	assert.Contains(t, validationErr.Error(), "target_sla_days: must be less than or equal to 90")

	_, err = Decode(SchemaName("Nope"), "{}")
	assert.True(t, errors.Is(err, mailpipeErrors.ErrUnknownSchema))
}

func TestDecode_WrongDocumentTypeFailsValidation(t *testing.T) {
	_, err := Decode(SchemaSupportRequest, `{
		"document_type": "SERVICE_ORDER", "confidence_score": 10, "system_affected": "CRM",
		"issue_summary": "down", "is_critical": false, "requester_email": "a@b.com"}`)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Error(), "document_type")
}

func TestDecode_EmptyStringsArePresentValues(t *testing.T) {
	document, err := Decode(SchemaServiceOrder, `{
		"document_type": "SERVICE_ORDER", "confidence_score": 60, "customer_name": "Acme",
		"service_description": "Install", "priority": "LOW", "target_sla_days": 5,
		"delivery_date": null, "contact_phone": ""}`)
	require.NoError(t, err)
	assert.Equal(t, "", document.(*ServiceOrder).ContactPhone)

	document, err = Decode(SchemaSupportRequest, `{
		"document_type": "SUPPORT_REQUEST", "confidence_score": 70, "system_affected": "",
		"issue_summary": "down", "is_critical": true, "error_code": null, "requester_email": ""}`)
	require.NoError(t, err)
	assert.Equal(t, "", document.(*SupportRequest).RequesterEmail)
}

func TestDecode_NullOrAbsentRequiredKeyIsMissing(t *testing.T) {
	_, err := Decode(SchemaSupportRequest, `{
		"document_type": "SUPPORT_REQUEST", "confidence_score": 70, "system_affected": null,
		"issue_summary": "down", "is_critical": true}`)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, []string{"system_affected: field required", "requester_email: field required"}, validationErr.Problems)
}

func TestDecode_WholeNumberFloatsFillIntegerFields(t *testing.T) {
	document, err := Decode(SchemaServiceOrder, `{
		"document_type": "SERVICE_ORDER", "confidence_score": 80.0, "customer_name": "Acme",
		"service_description": "Install", "priority": "HIGH", "target_sla_days": 3.0,
		"contact_phone": "555"}`)
	require.NoError(t, err)
	assert.Equal(t, 80, document.Confidence())
	assert.Equal(t, 3, *document.(*ServiceOrder).TargetSLADays)

	_, err = Decode(SchemaServiceOrder, `{
		"document_type": "SERVICE_ORDER", "confidence_score": 80.5, "customer_name": "Acme",
		"service_description": "Install", "priority": "HIGH", "target_sla_days": 3,
		"contact_phone": "555"}`)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Error(), "confidence_score")
}
