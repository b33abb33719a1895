package queue_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	"market-gateway/internal/domain/outgoing"
	. "market-gateway/internal/domain/queue"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/google/uuid"
	"pgregory.net/rapid"
)

var (
	propertyDocumentTypes = []document.DocumentType{
		document.NotifyAggregatedMeasureData,
		document.RejectRequestAggregatedMeasureData,
		document.ConfirmRequestChangeOfSupplier,
		document.GenericNotification,
	}
	propertyReasons = []document.BusinessReason{
		document.BalanceFixing,
		document.MoveIn,
	}
	propertyCategories = []document.MessageCategory{
		document.CategoryNone,
		document.CategoryAggregations,
		document.CategoryMasterData,
	}
)

type bundleKey struct {
	reason  document.BusinessReason
	docType document.DocumentType
}

// TestActorMessageQueue_Properties drives one queue with random enqueues,
// peeks and dequeues, checking the bundling rules after every step.
func TestActorMessageQueue_Properties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		tick := 0
		now := func() time.Time {
			tick++
			return t0.Add(time.Duration(tick) * time.Second)
		}

		q, err := CreateFor(energySupplier, WithClock(now))
		if err != nil {
			t.Fatal(err)
		}
		other, err := CreateFor(gridOperator, WithClock(now))
		if err != nil {
			t.Fatal(err)
		}

		enqueued := 0
		closedCounts := map[uuid.UUID]int{}
		dequeued := map[uuid.UUID]struct{}{}
		var peeked *PeekResult

		t.Repeat(map[string]func(*rapid.T){
			"enqueue": func(t *rapid.T) {
				docType := rapid.SampledFrom(propertyDocumentTypes).Draw(t, "document type")
				reason := rapid.SampledFrom(propertyReasons).Draw(t, "business reason")
				override := 0
				if docType.Category() != document.CategoryAggregations {
					override = rapid.IntRange(0, 3).Draw(t, "override")
				}

				msg := drawMessage(t, energySupplier, docType, reason)
				if override > 0 {
					err = q.Enqueue(msg, now(), override)
				} else {
					err = q.Enqueue(msg, now())
				}
				if err != nil {
					t.Fatalf("unexpected enqueue error: %v", err)
				}
				if !msg.AssignedBundleID.Valid {
					t.Fatal("message was not assigned to a bundle")
				}
				b, ok := q.Bundle(msg.AssignedBundleID.UUID)
				if !ok {
					t.Fatal("assigned bundle is not in the queue")
				}
				if b.IsClosed() {
					t.Fatal("message was appended to a closed bundle")
				}
				if b.BusinessReason() != reason || b.DocumentType() != docType {
					t.Fatalf("message %s/%s placed in bundle %s/%s", reason, docType, b.BusinessReason(), b.DocumentType())
				}
				if docType.Category() == document.CategoryAggregations && b.MessageCount() != 1 {
					t.Fatalf("aggregation bundle holds %d messages", b.MessageCount())
				}
				enqueued++
			},
			"enqueue for another receiver": func(t *rapid.T) {
				before := snapshots(q)
				msg := drawMessage(t, gridOperator, document.GenericNotification, document.MoveIn)
				if err := q.Enqueue(msg, now()); !isReceiverMismatch(err) {
					t.Fatalf("expected receiver mismatch, got %v", err)
				}
				if msg.AssignedBundleID.Valid {
					t.Fatal("rejected message was assigned")
				}
				if after := snapshots(q); !equalSnapshots(before, after) {
					t.Fatal("rejected enqueue modified the queue")
				}
			},
			"enqueue into the other queue": func(t *rapid.T) {
				before := snapshots(q)
				msg := drawMessage(t, gridOperator, document.NotifyAggregatedMeasureData, document.BalanceFixing)
				if err := other.Enqueue(msg, now()); err != nil {
					t.Fatal(err)
				}
				other.Peek()
				if after := snapshots(q); !equalSnapshots(before, after) {
					t.Fatal("operations on another receiver's queue modified this queue")
				}
			},
			"peek": func(t *rapid.T) {
				category := rapid.SampledFrom(propertyCategories).Draw(t, "category")
				want := earliestEligible(q, category)

				res := q.Peek(category)
				if want == nil {
					if !res.Empty() {
						t.Fatalf("expected empty peek, got %s", res.BundleID)
					}
					return
				}
				if res.BundleID != want.ID() {
					t.Fatalf("peeked %s, want earliest %s", res.BundleID, want.ID())
				}
				if again := q.Peek(category); again != res {
					t.Fatalf("second peek returned %s, first %s", again.BundleID, res.BundleID)
				}
				b, _ := q.Bundle(res.BundleID)
				if !b.IsClosed() {
					t.Fatal("peeked bundle is not closed")
				}
				if _, ok := closedCounts[b.ID()]; !ok {
					closedCounts[b.ID()] = b.MessageCount()
				}
				peeked = &res
			},
			"dequeue peeked bundle": func(t *rapid.T) {
				if peeked == nil {
					t.Skip("nothing peeked")
				}
				_, already := dequeued[peeked.BundleID]
				if got := q.Dequeue(peeked.BundleID); got == already {
					t.Fatalf("dequeue returned %v for a bundle dequeued=%v", got, already)
				}
				if q.Dequeue(peeked.BundleID) {
					t.Fatal("second dequeue returned true")
				}
				dequeued[peeked.BundleID] = struct{}{}
				peeked = nil
			},
			"dequeue unknown bundle": func(t *rapid.T) {
				if q.Dequeue(uuid.New()) {
					t.Fatal("dequeue of an unknown bundle returned true")
				}
			},
			"": func(t *rapid.T) {
				accepting := map[bundleKey]int{}
				total := 0
				for _, b := range q.Bundles() {
					total += b.MessageCount()
					if b.MessageCount() > b.MaxMessages() {
						t.Fatalf("bundle %s holds %d of %d messages", b.ID(), b.MessageCount(), b.MaxMessages())
					}
					if !b.IsClosed() && !b.IsFull() {
						accepting[bundleKey{b.BusinessReason(), b.DocumentType()}]++
					}
					if n, ok := closedCounts[b.ID()]; ok && n != b.MessageCount() {
						t.Fatalf("closed bundle %s changed from %d to %d messages", b.ID(), n, b.MessageCount())
					}
					if _, ok := dequeued[b.ID()]; ok != b.IsDequeued() {
						t.Fatalf("bundle %s dequeued=%v, expected %v", b.ID(), b.IsDequeued(), ok)
					}
				}
				for key, n := range accepting {
					if n > 1 {
						t.Fatalf("%d bundles accept messages for %s/%s", n, key.reason, key.docType)
					}
				}
				if total != enqueued {
					t.Fatalf("bundles hold %d messages, %d were enqueued", total, enqueued)
				}
				for id := range dequeued {
					b, ok := q.Bundle(id)
					if !ok || !b.IsDequeued() {
						t.Fatalf("bundle %s reverted from dequeued", id)
					}
				}
			},
		})
	})
}

// TestEnqueue_CapacityProperty checks that N+1 messages with cap N always
// produce exactly two bundles.
func TestEnqueue_CapacityProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 50).Draw(t, "cap")
		docType := rapid.SampledFrom(propertyDocumentTypes).Draw(t, "document type")

		q, err := CreateFor(energySupplier)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i <= limit; i++ {
			if err := q.Enqueue(drawMessage(t, energySupplier, docType, document.MoveIn), t0.Add(time.Duration(i)*time.Second), limit); err != nil {
				t.Fatal(err)
			}
		}

		bundles := q.Bundles()
		if len(bundles) != 2 {
			t.Fatalf("expected 2 bundles, got %d", len(bundles))
		}
		if bundles[0].MessageCount() != limit || bundles[1].MessageCount() != 1 {
			t.Fatalf("unexpected distribution %d/%d", bundles[0].MessageCount(), bundles[1].MessageCount())
		}
		if bundles[0].IsClosed() {
			t.Fatal("full bundle closed before peek")
		}
	})
}

func earliestEligible(q *ActorMessageQueue, category document.MessageCategory) *Bundle {
	var next *Bundle
	for _, b := range q.Bundles() {
		if b.IsDequeued() || !b.DocumentType().BelongsTo(category) {
			continue
		}
		if next == nil || b.Created().Before(next.Created()) {
			next = b
		}
	}
	return next
}

func snapshots(q *ActorMessageQueue) []BundleSnapshot {
	var s []BundleSnapshot
	for _, b := range q.Bundles() {
		s = append(s, b.Snapshot())
	}
	return s
}

func equalSnapshots(a, b []BundleSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.MessageCount != y.MessageCount || x.Document != y.Document ||
			(x.ClosedAt == nil) != (y.ClosedAt == nil) || (x.DequeuedAt == nil) != (y.DequeuedAt == nil) {
			return false
		}
	}
	return true
}

func isReceiverMismatch(err error) bool {
	return errors.Is(err, gateway_errors.ErrReceiverMismatch)
}

func drawMessage(t *rapid.T, r actor.Receiver, docType document.DocumentType, reason document.BusinessReason) *outgoing.Message {
	msg, err := outgoing.New(outgoing.Params{
		DocumentType:   docType,
		ReceiverID:     r.Number,
		ReceiverRole:   r.Role,
		ProcessID:      uuid.New(),
		BusinessReason: reason,
		SenderID:       "5790001330552",
		SenderRole:     actor.RoleMeteredDataAdministrator,
		MessageRecord:  json.RawMessage(`{"gridArea":"804"}`),
	}, t0)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}
