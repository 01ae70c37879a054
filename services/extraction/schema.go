package extraction

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	mailpipeErrors "github.com/cadrius/mailpipe/internal/errors"
	"github.com/cadrius/mailpipe/internal/utils"
)

type SchemaName string

const (
	SchemaLegalProcess   SchemaName = "LegalProcessSchema"
	SchemaServiceOrder   SchemaName = "ServiceOrderSchema"
	SchemaSupportRequest SchemaName = "SupportRequestSchema"
)

const (
	DocumentTypeLegalProcess   = "LEGAL_PROCESS_MOVEMENT"
	DocumentTypeServiceOrder   = "SERVICE_ORDER"
	DocumentTypeSupportRequest = "SUPPORT_REQUEST"
)

var knownSchemas = []SchemaName{SchemaLegalProcess, SchemaServiceOrder, SchemaSupportRequest}

// LookupSchema resolves a profile's schema name. Anything outside the known set
// is ErrUnknownSchema.
func LookupSchema(name string) (SchemaName, error) {
	trimmed := strings.TrimSpace(name)
	for _, schema := range knownSchemas {
		if string(schema) == trimmed {
			return schema, nil
		}
	}
	return "", errors.Wrapf(mailpipeErrors.ErrUnknownSchema, "schema '%s'", name)
}

func KnownSchemas() []SchemaName {
	return append([]SchemaName(nil), knownSchemas...)
}

// Document is one validated extraction result. The concrete type is one of
// *LegalProcess, *ServiceOrder or *SupportRequest.
type Document interface {
	Schema() SchemaName
	Type() string
	Confidence() int
	ToMap() map[string]any
}

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return errors.New("expected a date string")
	}
	parsed, err := time.Parse(utils.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return errors.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	d.Time = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(utils.DateLayout))
}

func (d *Date) String() string {
	if d == nil {
		return ""
	}
	return d.Format(utils.DateLayout)
}

type LegalProcess struct {
	DocumentType      string `json:"document_type" validate:"eq=LEGAL_PROCESS_MOVEMENT"`
	ConfidenceScore   *int   `json:"confidence_score" validate:"required,min=0,max=100"`
	CaseNumber        string `json:"case_number"`
	MovementType      string `json:"movement_type"`
	MovementSummary   string `json:"movement_summary"`
	Deadline          *Date  `json:"deadline"`
	SuggestedNextStep string `json:"suggested_next_step"`
}

type ServiceOrder struct {
	DocumentType       string `json:"document_type" validate:"eq=SERVICE_ORDER"`
	ConfidenceScore    *int   `json:"confidence_score" validate:"required,min=0,max=100"`
	CustomerName       string `json:"customer_name"`
	ServiceDescription string `json:"service_description"`
	Priority           string `json:"priority" validate:"oneof=HIGH MEDIUM LOW"`
	TargetSLADays      *int   `json:"target_sla_days" validate:"required,min=1,max=90"`
	DeliveryDate       *Date  `json:"delivery_date"`
	ContactPhone       string `json:"contact_phone"`
}

type SupportRequest struct {
	DocumentType    string  `json:"document_type" validate:"eq=SUPPORT_REQUEST"`
	ConfidenceScore *int    `json:"confidence_score" validate:"required,min=0,max=100"`
	SystemAffected  string  `json:"system_affected"`
	IssueSummary    string  `json:"issue_summary"`
	IsCritical      *bool   `json:"is_critical" validate:"required"`
	ErrorCode       *string `json:"error_code"`
	RequesterEmail  string  `json:"requester_email"`
}

func (d *LegalProcess) Schema() SchemaName   { return SchemaLegalProcess }
func (d *ServiceOrder) Schema() SchemaName   { return SchemaServiceOrder }
func (d *SupportRequest) Schema() SchemaName { return SchemaSupportRequest }

func (d *LegalProcess) Type() string   { return d.DocumentType }
func (d *ServiceOrder) Type() string   { return d.DocumentType }
func (d *SupportRequest) Type() string { return d.DocumentType }

func (d *LegalProcess) Confidence() int   { return utils.GetOrDefault(d.ConfidenceScore, 0) }
func (d *ServiceOrder) Confidence() int   { return utils.GetOrDefault(d.ConfidenceScore, 0) }
func (d *SupportRequest) Confidence() int { return utils.GetOrDefault(d.ConfidenceScore, 0) }

func (d *LegalProcess) ToMap() map[string]any   { return toMap(d) }
func (d *ServiceOrder) ToMap() map[string]any   { return toMap(d) }
func (d *SupportRequest) ToMap() map[string]any { return toMap(d) }

func toMap(document any) map[string]any {
	data, err := json.Marshal(document)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func newDocument(schema SchemaName) Document {
	switch schema {
	case SchemaLegalProcess:
		return &LegalProcess{}
	case SchemaServiceOrder:
		return &ServiceOrder{}
	case SchemaSupportRequest:
		return &SupportRequest{}
	}
	return nil
}

type property struct {
	Type        any      `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
	Format      string   `json:"format,omitempty"`
	Minimum     *int     `json:"minimum,omitempty"`
	Maximum     *int     `json:"maximum,omitempty"`
}

type jsonSchema struct {
	Title      string              `json:"title"`
	Type       string              `json:"type"`
	Properties map[string]property `json:"properties"`
	Required   []string            `json:"required"`
}

func confidenceProperty() property {
	return property{
		Type:        "integer",
		Description: "Confidence of the extraction, from 0 to 100.",
		Minimum:     utils.ToPtr(0),
		Maximum:     utils.ToPtr(100),
	}
}

func nullableDate(description string) property {
	return property{Type: []string{"string", "null"}, Format: "date", Description: description + " Format: YYYY-MM-DD."}
}

// Describe returns the machine-readable shape embedded in the system prompt.
func Describe(schema SchemaName) ([]byte, error) {
	s, err := definition(schema)
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

func definition(schema SchemaName) (jsonSchema, error) {
	var s jsonSchema
	switch schema {
	case SchemaLegalProcess:
		s = jsonSchema{
			Title: string(schema),
			Type:  "object",
			Properties: map[string]property{
				"document_type":       {Type: "string", Enum: []string{DocumentTypeLegalProcess}, Description: "Detected document type."},
				"confidence_score":    confidenceProperty(),
				"case_number":         {Type: "string", Description: "Unique case number, formatted NNNNNNN-DD.AAAA.J.TR.OOOO."},
				"movement_type":       {Type: "string", Description: "Kind of procedural act (summons, order, decision, ruling)."},
				"movement_summary":    {Type: "string", Description: "Short objective summary of the movement."},
				"deadline":            nullableDate("Final date to comply with the deadline, if any."),
				"suggested_next_step": {Type: "string", Description: "Clear next action for the lawyer."},
			},
			Required: []string{"document_type", "confidence_score", "case_number", "movement_type", "movement_summary", "suggested_next_step"},
		}
	case SchemaServiceOrder:
		s = jsonSchema{
			Title: string(schema),
			Type:  "object",
			Properties: map[string]property{
				"document_type":       {Type: "string", Enum: []string{DocumentTypeServiceOrder}, Description: "Detected document type."},
				"confidence_score":    confidenceProperty(),
				"customer_name":       {Type: "string", Description: "Customer full name or company name."},
				"service_description": {Type: "string", Description: "Detailed description of the requested service."},
				"priority":            {Type: "string", Enum: []string{"HIGH", "MEDIUM", "LOW"}, Description: "Suggested priority."},
				"target_sla_days":     {Type: "integer", Minimum: utils.ToPtr(1), Maximum: utils.ToPtr(90), Description: "Suggested SLA in business days."},
				"delivery_date":       nullableDate("Delivery deadline, if stated in the e-mail."),
				"contact_phone":       {Type: "string", Description: "Preferred contact phone of the customer."},
			},
			Required: []string{"document_type", "confidence_score", "customer_name", "service_description", "priority", "target_sla_days", "contact_phone"},
		}
	case SchemaSupportRequest:
		s = jsonSchema{
			Title: string(schema),
			Type:  "object",
			Properties: map[string]property{
				"document_type":    {Type: "string", Enum: []string{DocumentTypeSupportRequest}, Description: "Detected document type."},
				"confidence_score": confidenceProperty(),
				"system_affected":  {Type: "string", Description: "System or module affected."},
				"issue_summary":    {Type: "string", Description: "Concise summary of the problem."},
				"is_critical":      {Type: "boolean", Description: "True when the problem blocks normal operation."},
				"error_code":       {Type: []string{"string", "null"}, Description: "Any error code mentioned."},
				"requester_email":  {Type: "string", Description: "E-mail of the requester, for follow-up."},
			},
			Required: []string{"document_type", "confidence_score", "system_affected", "issue_summary", "is_critical", "requester_email"},
		}
	default:
		return s, errors.Wrapf(mailpipeErrors.ErrUnknownSchema, "schema '%s'", schema)
	}
	return s, nil
}
