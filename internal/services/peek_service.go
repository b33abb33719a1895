package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-gateway/internal/archive"
	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	"market-gateway/internal/domain/outgoing"
	"market-gateway/internal/domain/queue"
	"market-gateway/internal/materializer"
	"market-gateway/internal/repository"
	gateway_errors "market-gateway/pkg/errors"
	"market-gateway/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type PeekRequest struct {
	Receiver actor.Receiver
	// Category restricts the peek to one message category. Empty means any.
	Category document.MessageCategory
	// Format of the returned document. Empty means XML.
	Format document.DocumentFormat
}

// PeekResponse is the next bundle of a receiver's queue, rendered. Found is
// false when there is nothing to fetch.
type PeekResponse struct {
	Found        bool
	BundleID     uuid.UUID
	DocumentType document.DocumentType
	Format       document.DocumentFormat
	Payload      []byte
}

// PeekService hands out the next bundle of a queue as a market document.
type PeekService struct {
	core
	sender   actor.Receiver
	registry *materializer.Registry
	archiver *archive.Archiver
	renders  singleflight.Group
}

// NewPeekService renders documents with registry, sent from sender. A nil
// archiver disables archiving.
func NewPeekService(store repository.Store, locks *ReceiverLocker, sender actor.Receiver, registry *materializer.Registry, archiver *archive.Archiver, opts ...Option) *PeekService {
	if registry == nil {
		registry = materializer.DefaultRegistry()
	}
	return &PeekService{
		core:     newCore(store, locks, opts),
		sender:   sender,
		registry: registry,
		archiver: archiver,
	}
}

// peeked is what the selecting transaction learned about the bundle.
type peeked struct {
	bundle   queue.BundleSnapshot
	messages []outgoing.Message
	stored   *repository.StoredDocument
}

// Peek closes and returns the receiver's next bundle. The document is
// rendered on first peek and served from the store afterwards; asking for
// another format renders it again without storing it.
func (s *PeekService) Peek(ctx context.Context, req PeekRequest) (PeekResponse, error) {
	if req.Receiver.IsZero() {
		return PeekResponse{}, fmt.Errorf("%w: receiver is required", gateway_errors.ErrInvalidInput)
	}
	if req.Category == "" {
		req.Category = document.CategoryNone
	}
	if req.Format == "" {
		req.Format = document.FormatXML
	}
	ctx = logger.WithActor(ctx, req.Receiver.String())

	p, err := s.selectBundle(ctx, req)
	if err != nil || p == nil {
		return PeekResponse{}, err
	}

	resp := PeekResponse{
		Found:        true,
		BundleID:     p.bundle.ID,
		DocumentType: p.bundle.DocumentType,
		Format:       req.Format,
	}
	if p.stored != nil {
		resp.Payload = p.stored.Payload
		s.metrics.BundlePeeked(ctx, req.Receiver, resp.DocumentType, resp.Format)
		return resp, nil
	}

	payload, err := s.render(ctx, req, p)
	if err != nil {
		return PeekResponse{}, err
	}
	resp.Payload = payload
	s.metrics.BundlePeeked(ctx, req.Receiver, resp.DocumentType, resp.Format)
	s.log.Debug(ctx, "bundle peeked", zap.Stringer("bundle_id", resp.BundleID), zap.String("format", string(resp.Format)))
	return resp, nil
}

func (s *PeekService) selectBundle(ctx context.Context, req PeekRequest) (*peeked, error) {
	var p *peeked
	err := s.inQueueTx(ctx, req.Receiver, func(repos repository.Repositories) error {
		p = nil

		q, found, err := repos.Queues.GetForUpdate(ctx, req.Receiver)
		if err != nil || !found {
			return err
		}
		res := q.Peek(req.Category)
		if res.Empty() {
			return nil
		}
		if err := repos.Queues.SaveBundles(ctx, q); err != nil {
			return err
		}

		b, _ := q.Bundle(res.BundleID)
		p = &peeked{bundle: b.Snapshot()}

		if doc := b.Document(); doc.State == queue.Rendered && doc.Format == req.Format {
			stored, ok, err := repos.Documents.Get(ctx, b.ID())
			if err != nil {
				return err
			}
			if ok {
				p.stored = &stored
				return nil
			}
		}

		p.messages, err = repos.Messages.ListByBundle(ctx, b.ID())
		return err
	})
	return p, err
}

// render materializes the bundle once per bundle and format, even when the
// receiver peeks concurrently.
func (s *PeekService) render(ctx context.Context, req PeekRequest, p *peeked) ([]byte, error) {
	key := p.bundle.ID.String() + "/" + string(req.Format)
	ch := s.renders.DoChan(key, func() (interface{}, error) {
		return s.renderAndStore(context.WithoutCancel(ctx), req, p)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (s *PeekService) renderAndStore(ctx context.Context, req PeekRequest, p *peeked) ([]byte, error) {
	b := p.bundle
	payload, err := s.registry.Render(ctx, req.Format, materializer.Request{
		BundleID:       b.ID,
		DocumentType:   b.DocumentType,
		BusinessReason: b.BusinessReason,
		Sender:         s.sender,
		Receiver:       req.Receiver,
		CreatedAt:      s.clock(),
		Messages:       p.messages,
	})
	if err != nil {
		if errors.Is(err, gateway_errors.ErrMaterialization) {
			s.metrics.RenderFailed(ctx, req.Receiver, b.DocumentType, req.Format)
			s.log.Error(ctx, "render failed", zap.Stringer("bundle_id", b.ID), zap.Error(err))
			if recErr := s.recordFailure(ctx, req, b.ID, err); recErr != nil {
				s.log.Error(ctx, "recording render failure", zap.Stringer("bundle_id", b.ID), zap.Error(recErr))
			}
		}
		return nil, err
	}

	// A bundle keeps the document it was first rendered in.
	if b.Document.State == queue.Rendered {
		return payload, nil
	}

	now := s.clock()
	err = s.inQueueTx(ctx, req.Receiver, func(repos repository.Repositories) error {
		q, found, err := repos.Queues.GetForUpdate(ctx, req.Receiver)
		if err != nil || !found {
			return err
		}
		current, ok := q.Bundle(b.ID)
		if !ok {
			// dequeued meanwhile
			return nil
		}
		if current.Document().State == queue.Rendered {
			stored, ok, err := repos.Documents.Get(ctx, b.ID)
			if err == nil && ok && stored.Format == req.Format {
				payload = stored.Payload
			}
			return err
		}

		if err := q.RecordDocument(b.ID, queue.GeneratedDocument{State: queue.Rendered, Format: req.Format, UpdatedAt: now}); err != nil {
			return err
		}
		if err := repos.Queues.SaveBundles(ctx, q); err != nil {
			return err
		}
		if err := repos.Documents.Save(ctx, repository.StoredDocument{
			BundleID:  b.ID,
			Format:    req.Format,
			Payload:   payload,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		return s.archiveDocument(ctx, repos, req, b, payload, now)
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// archiveDocument files the first rendition of a bundle. It runs inside the
// transaction that stores the document so that a failed upload rolls it back.
func (s *PeekService) archiveDocument(ctx context.Context, repos repository.Repositories, req PeekRequest, b queue.BundleSnapshot, payload []byte, at time.Time) error {
	if s.archiver == nil {
		return nil
	}
	rec, err := s.archiver.Store(ctx, archive.Record{
		BundleID:       b.ID,
		DocumentType:   b.DocumentType,
		BusinessReason: b.BusinessReason,
		Format:         req.Format,
		Sender:         s.sender,
		Receiver:       req.Receiver,
		CreatedAt:      at,
	}, payload)
	if err != nil {
		return err
	}
	return repos.Archive.Create(ctx, rec)
}

func (s *PeekService) recordFailure(ctx context.Context, req PeekRequest, bundleID uuid.UUID, cause error) error {
	now := s.clock()
	return s.inQueueTx(ctx, req.Receiver, func(repos repository.Repositories) error {
		q, found, err := repos.Queues.GetForUpdate(ctx, req.Receiver)
		if err != nil || !found {
			return err
		}
		b, ok := q.Bundle(bundleID)
		if !ok || b.Document().State == queue.Rendered {
			return nil
		}
		if err := q.RecordDocument(bundleID, queue.GeneratedDocument{
			State:     queue.RenderFailed,
			Format:    req.Format,
			Error:     cause.Error(),
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		return repos.Queues.SaveBundles(ctx, q)
	})
}
