package materializer

import (
	"context"
	"fmt"
	"strings"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/beevik/etree"
)

type cimXMLWriter struct{}

func NewCIMXMLWriter() Writer { return cimXMLWriter{} }

func (cimXMLWriter) Format() document.DocumentFormat { return document.FormatXML }

func (cimXMLWriter) Write(ctx context.Context, req Request) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("cim:" + string(req.DocumentType) + "_MarketDocument")
	root.CreateAttr("xmlns:cim", "urn:ediel.org:structure:"+strings.ToLower(string(req.DocumentType))+":0:1")

	root.CreateElement("cim:mRID").SetText(req.BundleID.String())
	root.CreateElement("cim:type").SetText(req.DocumentType.TypeCode())
	root.CreateElement("cim:process.processType").SetText(req.BusinessReason.Code())
	root.CreateElement("cim:businessSector.type").SetText(electricitySector)
	writeParticipant(root, "sender", req.Sender)
	writeParticipant(root, "receiver", req.Receiver)
	root.CreateElement("cim:createdDateTime").SetText(timestamp(req.CreatedAt))

	for _, msg := range req.Messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := decodeRecord(msg)
		if err != nil {
			return nil, err
		}
		series := root.CreateElement("cim:Series")
		series.CreateElement("cim:mRID").SetText(msg.ID.String())
		if err := appendFields(series, "cim:", fields); err != nil {
			return nil, fmt.Errorf("message %s: %w", msg.ID, err)
		}
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func writeParticipant(root *etree.Element, side string, r actor.Receiver) {
	id := root.CreateElement("cim:" + side + "_MarketParticipant.mRID")
	id.CreateAttr("codingScheme", codingScheme(r.Number))
	id.SetText(r.Number.String())
	root.CreateElement("cim:" + side + "_MarketParticipant.marketRole.type").SetText(r.Role.String())
}

// appendFields writes a decoded record below parent, one element per key in
// key order. Nested objects become nested elements and arrays repeat the
// element.
func appendFields(parent *etree.Element, prefix string, fields map[string]interface{}) error {
	for _, key := range sortedKeys(fields) {
		if key == "mRID" {
			continue
		}
		if err := appendValue(parent, prefix, key, fields[key]); err != nil {
			return err
		}
	}
	return nil
}

func appendValue(parent *etree.Element, prefix, key string, v interface{}) error {
	if !validName(key) {
		return fmt.Errorf("%w: %q is not a valid element name", gateway_errors.ErrMaterialization, key)
	}
	switch val := v.(type) {
	case nil:
		return nil
	case []interface{}:
		for _, item := range val {
			if err := appendValue(parent, prefix, key, item); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		child := parent.CreateElement(prefix + key)
		for _, k := range sortedKeys(val) {
			if err := appendValue(child, prefix, k, val[k]); err != nil {
				return err
			}
		}
		return nil
	default:
		parent.CreateElement(prefix + key).SetText(scalar(val))
		return nil
	}
}

func scalar(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(val)
	}
}
