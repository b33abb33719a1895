// Package materializer renders closed bundles into market documents.
package materializer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	"market-gateway/internal/domain/outgoing"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/google/uuid"
)

// Request carries everything a writer needs to render one bundle. Messages
// are in enqueue order.
type Request struct {
	BundleID       uuid.UUID
	DocumentType   document.DocumentType
	BusinessReason document.BusinessReason
	Sender         actor.Receiver
	Receiver       actor.Receiver
	CreatedAt      time.Time
	Messages       []outgoing.Message
}

// Writer renders bundles in one document format.
type Writer interface {
	Format() document.DocumentFormat
	Write(ctx context.Context, req Request) ([]byte, error)
}

// Registry selects the writer for a requested format.
type Registry struct {
	writers map[document.DocumentFormat]Writer
}

func NewRegistry(writers ...Writer) *Registry {
	r := &Registry{writers: map[document.DocumentFormat]Writer{}}
	for _, w := range writers {
		r.writers[w.Format()] = w
	}
	return r
}

// DefaultRegistry knows the CIM XML, CIM JSON and ebIX writers.
func DefaultRegistry() *Registry {
	return NewRegistry(NewCIMXMLWriter(), NewCIMJSONWriter(), NewEbixWriter())
}

// Render produces the document for req. Every failure matches
// ErrMaterialization.
func (r *Registry) Render(ctx context.Context, format document.DocumentFormat, req Request) ([]byte, error) {
	w, ok := r.writers[format]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported format %q", gateway_errors.ErrMaterialization, format)
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: bundle %s has no messages", gateway_errors.ErrMaterialization, req.BundleID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := w.Write(ctx, req)
	if err != nil {
		if errors.Is(err, gateway_errors.ErrMaterialization) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s bundle %s: %v", gateway_errors.ErrMaterialization, format, req.BundleID, err)
	}
	return out, nil
}

// codingScheme is the CIM code list for the actor number's kind.
func codingScheme(n actor.ActorNumber) string {
	if n.Kind() == actor.KindEIC {
		return "A01"
	}
	return "A10"
}

const (
	electricitySector = "23"
	timestampLayout   = "2006-01-02T15:04:05Z"
)

func timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
