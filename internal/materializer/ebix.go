package materializer

import (
	"context"
	"fmt"
	"strings"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// ebixDocumentNames maps the document types that have an ebIX rendition to
// their ebIX root element.
var ebixDocumentNames = map[document.DocumentType]string{
	document.NotifyAggregatedMeasureData:        "DK_AggregatedMeteredDataTimeSeries",
	document.RejectRequestAggregatedMeasureData: "DK_RejectRequestMeteredDataAggregated",
	document.NotifyWholesaleServices:            "DK_NotifyAggregatedWholesaleServices",
	document.ConfirmRequestChangeOfSupplier:     "DK_ConfirmRequestChangeOfSupplier",
	document.RejectRequestChangeOfSupplier:      "DK_RejectRequestChangeOfSupplier",
	document.GenericNotification:                "DK_GenericNotification",
}

type ebixWriter struct{}

func NewEbixWriter() Writer { return ebixWriter{} }

func (ebixWriter) Format() document.DocumentFormat { return document.FormatEbix }

func (ebixWriter) Write(ctx context.Context, req Request) ([]byte, error) {
	name, ok := ebixDocumentNames[req.DocumentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no ebIX rendition", gateway_errors.ErrMaterialization, req.DocumentType)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("ns0:" + name)
	root.CreateAttr("xmlns:ns0", "un:unece:260:data:EEM-"+name)

	header := root.CreateElement("ns0:HeaderEnergyDocument")
	header.CreateElement("ns0:Identification").SetText(ebixID(req.BundleID))
	docType := header.CreateElement("ns0:DocumentType")
	docType.CreateAttr("listAgencyIdentifier", "260")
	docType.SetText(req.DocumentType.TypeCode())
	header.CreateElement("ns0:Creation").SetText(timestamp(req.CreatedAt))
	ebixParty(header, "ns0:SenderEnergyParty", req.Sender)
	ebixParty(header, "ns0:RecipientEnergyParty", req.Receiver)

	processContext := root.CreateElement("ns0:ProcessEnergyContext")
	process := processContext.CreateElement("ns0:EnergyBusinessProcess")
	process.CreateAttr("listAgencyIdentifier", "260")
	process.SetText(req.BusinessReason.Code())
	role := processContext.CreateElement("ns0:EnergyBusinessProcessRole")
	role.CreateAttr("listAgencyIdentifier", "260")
	role.SetText(req.Receiver.Role.String())
	processContext.CreateElement("ns0:EnergyIndustryClassification").SetText(electricitySector)

	for _, msg := range req.Messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := decodeRecord(msg)
		if err != nil {
			return nil, err
		}
		payload := root.CreateElement("ns0:PayloadEnergyTimeSeries")
		payload.CreateElement("ns0:Identification").SetText(ebixID(msg.ID))
		if err := appendFields(payload, "ns0:", fields); err != nil {
			return nil, fmt.Errorf("message %s: %w", msg.ID, err)
		}
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

// ebixID fits a uuid into the 35 character ebIX identification field.
func ebixID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}

func ebixParty(parent *etree.Element, tag string, r actor.Receiver) {
	id := parent.CreateElement(tag).CreateElement("ns0:Identification")
	if r.Number.Kind() == actor.KindEIC {
		id.CreateAttr("schemeAgencyIdentifier", "305")
	} else {
		id.CreateAttr("schemeAgencyIdentifier", "9")
	}
	id.SetText(r.Number.String())
}
