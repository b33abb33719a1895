package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"market-gateway/internal/archive"
	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	"market-gateway/internal/domain/outgoing"
	"market-gateway/internal/services"
	"market-gateway/internal/transport/httpdto"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response headers of a peeked document. MessageId is the bundle id; actors
// acknowledge a document by the id it was delivered under.
const (
	HeaderMessageID = "MessageId"
	HeaderBundleID  = "BundleId"
)

type QueueHandler struct {
	enqueuer *services.MessageEnqueuer
	peeker   *services.PeekService
	dequeuer *services.DequeueService
	archive  *services.ArchiveService
	clock    func() time.Time
}

func NewQueueHandler(enqueuer *services.MessageEnqueuer, peeker *services.PeekService, dequeuer *services.DequeueService, archive *services.ArchiveService) *QueueHandler {
	return &QueueHandler{
		enqueuer: enqueuer,
		peeker:   peeker,
		dequeuer: dequeuer,
		archive:  archive,
		clock:    time.Now,
	}
}

func (h *QueueHandler) Enqueue(c *gin.Context) {
	var req httpdto.EnqueueMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", httpdto.CodeInvalidRequest))
		return
	}

	params, err := enqueueParams(req)
	if err != nil {
		h.fail(c, err)
		return
	}
	msg, err := outgoing.New(params, h.clock())
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.enqueuer.Enqueue(c.Request.Context(), msg); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.EnqueueMessageResponse{
		MessageID: msg.ID.String(),
		BundleID:  msg.AssignedBundleID.UUID.String(),
	}))
}

func enqueueParams(req httpdto.EnqueueMessageRequest) (outgoing.Params, error) {
	var p outgoing.Params
	var err error
	if p.DocumentType, err = document.ParseDocumentType(req.DocumentType); err != nil {
		return p, err
	}
	if p.BusinessReason, err = document.ParseBusinessReason(req.BusinessReason); err != nil {
		return p, err
	}
	receiver, err := actor.NewReceiver(req.ReceiverNumber, req.ReceiverRole)
	if err != nil {
		return p, err
	}
	sender, err := actor.NewReceiver(req.SenderNumber, req.SenderRole)
	if err != nil {
		return p, err
	}
	p.ReceiverID, p.ReceiverRole = receiver.Number, receiver.Role
	p.SenderID, p.SenderRole = sender.Number, sender.Role

	p.ProcessID = uuid.New()
	if req.ProcessID != "" {
		if p.ProcessID, err = uuid.Parse(req.ProcessID); err != nil {
			return p, gateway_errors.ErrInvalidInput
		}
	}
	p.MessageRecord = req.MessageRecord
	return p, nil
}

func (h *QueueHandler) Peek(c *gin.Context) {
	receiver, err := actor.NewReceiver(c.Param("number"), c.Param("role"))
	if err != nil {
		h.fail(c, err)
		return
	}
	category, err := document.ParseCategory(c.Query("category"))
	if err != nil {
		h.fail(c, err)
		return
	}
	format, err := document.ParseFormat(c.Query("format"))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp, err := h.peeker.Peek(c.Request.Context(), services.PeekRequest{
		Receiver: receiver,
		Category: category,
		Format:   format,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if !resp.Found {
		c.Status(http.StatusNoContent)
		return
	}

	c.Header(HeaderMessageID, resp.BundleID.String())
	c.Header(HeaderBundleID, resp.BundleID.String())
	c.Data(http.StatusOK, resp.Format.ContentType(), resp.Payload)
}

func (h *QueueHandler) Dequeue(c *gin.Context) {
	receiver, err := actor.NewReceiver(c.Param("number"), c.Param("role"))
	if err != nil {
		h.fail(c, err)
		return
	}
	bundleID, err := uuid.Parse(c.Param("bundleId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid bundle id", httpdto.CodeInvalidRequest))
		return
	}

	dequeued, err := h.dequeuer.Dequeue(c.Request.Context(), receiver, bundleID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.DequeueResponse{Dequeued: dequeued}))
}

// ArchivedDocument returns the archived document of a bundle.
func (h *QueueHandler) ArchivedDocument(c *gin.Context) {
	rec, payload, ok := h.lookupArchive(c)
	if !ok {
		return
	}
	c.Header(HeaderBundleID, rec.BundleID.String())
	c.Data(http.StatusOK, rec.Format.ContentType(), payload)
}

// ArchivedRecord returns the archive index entry of a bundle.
func (h *QueueHandler) ArchivedRecord(c *gin.Context) {
	rec, _, ok := h.lookupArchive(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ArchivedMessageResponse{
		BundleID:       rec.BundleID.String(),
		DocumentType:   rec.DocumentType.String(),
		BusinessReason: rec.BusinessReason.String(),
		Format:         string(rec.Format),
		SenderNumber:   rec.Sender.Number.String(),
		SenderRole:     rec.Sender.Role.String(),
		ReceiverNumber: rec.Receiver.Number.String(),
		ReceiverRole:   rec.Receiver.Role.String(),
		ObjectKey:      rec.ObjectKey,
		CreatedAt:      rec.CreatedAt,
	}))
}

func (h *QueueHandler) lookupArchive(c *gin.Context) (archive.Record, []byte, bool) {
	bundleID, err := uuid.Parse(c.Param("bundleId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid bundle id", httpdto.CodeInvalidRequest))
		return archive.Record{}, nil, false
	}
	rec, payload, found, err := h.archive.Lookup(c.Request.Context(), bundleID)
	if err != nil {
		h.fail(c, err)
		return archive.Record{}, nil, false
	}
	if !found {
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("bundle is not archived", httpdto.CodeNotFound))
		return archive.Record{}, nil, false
	}
	return rec, payload, true
}

// fail answers with the status and code of a known error and leaves unknown
// errors to the error middleware.
func (h *QueueHandler) fail(c *gin.Context, err error) {
	status, code := statusOf(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		return
	}
	c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, gateway_errors.ErrReceiverMismatch):
		return http.StatusUnprocessableEntity, httpdto.CodeReceiverMismatch
	case errors.Is(err, gateway_errors.ErrBundleFull):
		return http.StatusUnprocessableEntity, httpdto.CodeBundleFull
	case errors.Is(err, gateway_errors.ErrMaterialization):
		return http.StatusUnprocessableEntity, httpdto.CodeMaterializationFailed
	case errors.Is(err, gateway_errors.ErrInvalidInput):
		return http.StatusUnprocessableEntity, httpdto.CodeInvalidRequest
	case errors.Is(err, gateway_errors.ErrAlreadyAssigned), errors.Is(err, gateway_errors.ErrConflict):
		return http.StatusConflict, httpdto.CodeConflict
	case errors.Is(err, gateway_errors.ErrNotFound):
		return http.StatusNotFound, httpdto.CodeNotFound
	case errors.Is(err, gateway_errors.ErrRateLimited):
		return http.StatusTooManyRequests, httpdto.CodeRateLimited
	case errors.Is(err, gateway_errors.ErrServiceUnavailable), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, httpdto.CodeUnavailable
	}
	return http.StatusInternalServerError, httpdto.CodeInternal
}
