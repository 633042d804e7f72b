// Package form holds the questionnaire and response data model the resolver
// operates over: a tree of items with stable link ids and url-tagged
// extensions, mirrored by response items carrying answers.
package form

import "encoding/json"

// Expression languages recognized on extensions.
const (
	LangFHIRPath  = "text/fhirpath"
	LangFHIRQuery = "application/x-fhir-query"
)

// Extension urls recognized by the parser.
const (
	ExtPopulationContext    = "http://hl7.org/fhir/uv/sdc/StructureDefinition/sdc-questionnaire-itemPopulationContext"
	ExtExtractionContext    = "http://hl7.org/fhir/uv/sdc/StructureDefinition/sdc-questionnaire-itemExtractionContext"
	ExtInitialExpression    = "http://hl7.org/fhir/uv/sdc/StructureDefinition/sdc-questionnaire-initialExpression"
	ExtVariable             = "http://hl7.org/fhir/StructureDefinition/variable"
	ExtCalculatedExpression = "http://hl7.org/fhir/uv/sdc/StructureDefinition/sdc-questionnaire-calculatedExpression"
	ExtExtractionContextID  = "http://hl7.org/fhir/uv/sdc/StructureDefinition/sdc-questionnaire-itemExtractionContextId"
)

// Item type tags. Anything that is not a group or display item can carry
// answers.
const (
	TypeGroup   = "group"
	TypeDisplay = "display"
)

// Expression is the value of an expression-bearing extension.
type Expression struct {
	Name       string `json:"name,omitempty"`
	Language   string `json:"language"`
	Expression string `json:"expression"`
}

// Extension is a url-tagged value attached to a form or an item.
type Extension struct {
	URL             string      `json:"url"`
	ValueExpression *Expression `json:"valueExpression,omitempty"`
	ValueString     string      `json:"valueString,omitempty"`
}

// Questionnaire is the root of the form tree.
type Questionnaire struct {
	ResourceType string      `json:"resourceType,omitempty"`
	ID           string      `json:"id,omitempty"`
	Title        string      `json:"title,omitempty"`
	Item         []*Item     `json:"item,omitempty"`
	Extension    []Extension `json:"extension,omitempty"`
}

// Item is one node of the form tree.
type Item struct {
	LinkID    string      `json:"linkId"`
	Type      string      `json:"type"`
	Text      string      `json:"text,omitempty"`
	Repeats   bool        `json:"repeats,omitempty"`
	Initial   []Initial   `json:"initial,omitempty"`
	Item      []*Item     `json:"item,omitempty"`
	Extension []Extension `json:"extension,omitempty"`
}

// Answerable reports whether the item's type admits answers.
func (it *Item) Answerable() bool {
	return it.Type != TypeGroup && it.Type != TypeDisplay
}

// Initial is one default value declared on an item.
type Initial struct {
	ValueBoolean *bool    `json:"valueBoolean,omitempty"`
	ValueInteger *int     `json:"valueInteger,omitempty"`
	ValueDecimal *float64 `json:"valueDecimal,omitempty"`
	ValueString  *string  `json:"valueString,omitempty"`
}

// QuestionnaireResponse is the root of the (possibly empty) response tree.
type QuestionnaireResponse struct {
	ResourceType string          `json:"resourceType,omitempty"`
	Status       string          `json:"status,omitempty"`
	Item         []*ResponseItem `json:"item,omitempty"`
}

// ResponseItem mirrors an Item by link id and carries answers.
type ResponseItem struct {
	LinkID string          `json:"linkId"`
	Text   string          `json:"text,omitempty"`
	Answer []*Answer       `json:"answer,omitempty"`
	Item   []*ResponseItem `json:"item,omitempty"`
}

// Answer is one answer value, optionally with nested response items.
type Answer struct {
	ValueBoolean *bool           `json:"valueBoolean,omitempty"`
	ValueInteger *int            `json:"valueInteger,omitempty"`
	ValueDecimal *float64        `json:"valueDecimal,omitempty"`
	ValueString  *string         `json:"valueString,omitempty"`
	Item         []*ResponseItem `json:"item,omitempty"`
}

// DecodeQuestionnaire parses a questionnaire from raw JSON.
func DecodeQuestionnaire(raw []byte) (*Questionnaire, error) {
	var q Questionnaire
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// DecodeResponse parses a questionnaire response from raw JSON.
func DecodeResponse(raw []byte) (*QuestionnaireResponse, error) {
	var qr QuestionnaireResponse
	if err := json.Unmarshal(raw, &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}
