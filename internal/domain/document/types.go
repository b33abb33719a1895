package document

import (
	"fmt"
	"strings"

	gateway_errors "market-gateway/pkg/errors"
)

// MessageCategory is the coarse grouping of document types used by the
// bundling policy and by category-filtered peek.
type MessageCategory string

const (
	CategoryNone         MessageCategory = "None"
	CategoryAggregations MessageCategory = "Aggregations"
	CategoryMasterData   MessageCategory = "MasterData"
)

// ParseCategory accepts a category name case-insensitively. An empty string
// is CategoryNone, which matches every document type.
func ParseCategory(s string) (MessageCategory, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryNone, nil
	}
	for _, c := range []MessageCategory{CategoryNone, CategoryAggregations, CategoryMasterData} {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown message category %q", gateway_errors.ErrInvalidInput, s)
}

// DocumentType is the kind of market document carried by a message.
type DocumentType string

const (
	NotifyAggregatedMeasureData         DocumentType = "NotifyAggregatedMeasureData"
	RejectRequestAggregatedMeasureData  DocumentType = "RejectRequestAggregatedMeasureData"
	NotifyWholesaleServices             DocumentType = "NotifyWholesaleServices"
	ConfirmRequestChangeOfSupplier      DocumentType = "ConfirmRequestChangeOfSupplier"
	RejectRequestChangeOfSupplier       DocumentType = "RejectRequestChangeOfSupplier"
	GenericNotification                 DocumentType = "GenericNotification"
	AccountingPointCharacteristics      DocumentType = "AccountingPointCharacteristics"
	CharacteristicsOfACustomerAtAnAP    DocumentType = "CharacteristicsOfACustomerAtAnAP"
	ConfirmRequestChangeAccountingPoint DocumentType = "ConfirmRequestChangeAccountingPointCharacteristics"
	RejectRequestChangeAccountingPoint  DocumentType = "RejectRequestChangeAccountingPointCharacteristics"
)

type typeInfo struct {
	category MessageCategory
	typeCode string
}

var documentTypes = map[DocumentType]typeInfo{
	NotifyAggregatedMeasureData:         {CategoryAggregations, "E31"},
	RejectRequestAggregatedMeasureData:  {CategoryAggregations, "ERR"},
	NotifyWholesaleServices:             {CategoryAggregations, "E31"},
	ConfirmRequestChangeOfSupplier:      {CategoryMasterData, "414"},
	RejectRequestChangeOfSupplier:       {CategoryMasterData, "414"},
	GenericNotification:                 {CategoryMasterData, "E44"},
	AccountingPointCharacteristics:      {CategoryMasterData, "E07"},
	CharacteristicsOfACustomerAtAnAP:    {CategoryMasterData, "E21"},
	ConfirmRequestChangeAccountingPoint: {CategoryMasterData, "414"},
	RejectRequestChangeAccountingPoint:  {CategoryMasterData, "414"},
}

// ParseDocumentType accepts a known document type name case-insensitively.
func ParseDocumentType(s string) (DocumentType, error) {
	s = strings.TrimSpace(s)
	for t := range documentTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown document type %q", gateway_errors.ErrInvalidInput, s)
}

// Category returns the message category the document type belongs to.
// Unknown types belong to CategoryNone.
func (t DocumentType) Category() MessageCategory {
	if info, ok := documentTypes[t]; ok {
		return info.category
	}
	return CategoryNone
}

// TypeCode is the CIM type code written into the document header.
func (t DocumentType) TypeCode() string {
	return documentTypes[t].typeCode
}

// BelongsTo reports whether t is part of category c. Every type belongs to
// CategoryNone.
func (t DocumentType) BelongsTo(c MessageCategory) bool {
	return c == "" || c == CategoryNone || t.Category() == c
}

func (t DocumentType) String() string {
	return string(t)
}

// BusinessReason classifies why a message was produced.
type BusinessReason string

const (
	BalanceFixing           BusinessReason = "BalanceFixing"
	PreliminaryAggregation  BusinessReason = "PreliminaryAggregation"
	WholesaleFixing         BusinessReason = "WholesaleFixing"
	Correction              BusinessReason = "Correction"
	MoveIn                  BusinessReason = "MoveIn"
	ChangeOfSupplier        BusinessReason = "ChangeOfSupplier"
	CustomerMoveInOrMoveOut BusinessReason = "CustomerMoveInOrMoveOut"
)

var businessReasonCodes = map[BusinessReason]string{
	BalanceFixing:           "D04",
	PreliminaryAggregation:  "D03",
	WholesaleFixing:         "D05",
	Correction:              "D32",
	MoveIn:                  "E65",
	ChangeOfSupplier:        "E03",
	CustomerMoveInOrMoveOut: "D34",
}

// ParseBusinessReason accepts a business reason name or its code.
func ParseBusinessReason(s string) (BusinessReason, error) {
	s = strings.TrimSpace(s)
	for r, code := range businessReasonCodes {
		if strings.EqualFold(s, string(r)) || strings.EqualFold(s, code) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: unknown business reason %q", gateway_errors.ErrInvalidInput, s)
}

// Code is the process type code written into documents.
func (r BusinessReason) Code() string {
	return businessReasonCodes[r]
}

func (r BusinessReason) String() string {
	return string(r)
}

// DocumentFormat is the wire format a bundle is rendered into.
type DocumentFormat string

const (
	FormatXML  DocumentFormat = "Xml"
	FormatJSON DocumentFormat = "Json"
	FormatEbix DocumentFormat = "Ebix"
)

// ParseFormat accepts a format name case-insensitively; empty means XML.
func ParseFormat(s string) (DocumentFormat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FormatXML, nil
	}
	for _, f := range []DocumentFormat{FormatXML, FormatJSON, FormatEbix} {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown document format %q", gateway_errors.ErrInvalidInput, s)
}

// ContentType is the HTTP media type of documents in format f.
func (f DocumentFormat) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "application/xml"
}

// Extension is the file extension used when archiving documents in format f.
func (f DocumentFormat) Extension() string {
	if f == FormatJSON {
		return "json"
	}
	return "xml"
}
