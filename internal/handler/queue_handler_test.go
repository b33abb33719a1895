package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"market-gateway/internal/archive"
	"market-gateway/internal/domain/actor"
	"market-gateway/internal/materializer"
	"market-gateway/internal/repository/memory"
	"market-gateway/internal/services"
	"market-gateway/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const supplierPath = "/v1/actors/5790000392551/DDQ"

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	locks := services.NewReceiverLocker()
	archiver := archive.NewArchiver(archive.NewMemoryBlobStore())
	hub := actor.Receiver{Number: "5790001330583", Role: actor.RoleMeteringPointAdministrator}
	h := NewQueueHandler(
		services.NewMessageEnqueuer(store, locks),
		services.NewPeekService(store, locks, hub, materializer.DefaultRegistry(), archiver),
		services.NewDequeueService(store, locks),
		services.NewArchiveService(store, archiver),
	)

	r := gin.New()
	r.POST("/v1/outgoing-messages", h.Enqueue)
	r.GET("/v1/actors/:number/:role/peek", h.Peek)
	r.DELETE("/v1/actors/:number/:role/bundles/:bundleId", h.Dequeue)
	r.GET("/v1/archive/:bundleId", h.ArchivedDocument)
	r.GET("/v1/archive/:bundleId/record", h.ArchivedRecord)
	return r
}

func do(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func enqueueBody(docType, receiverRole string) map[string]interface{} {
	return map[string]interface{}{
		"document_type":   docType,
		"receiver_number": "5790000392551",
		"receiver_role":   receiverRole,
		"business_reason": "MoveIn",
		"sender_number":   "5790001330583",
		"sender_role":     "DDZ",
		"message_record":  map[string]interface{}{"meteringPoint": "571313180400000028"},
	}
}

func TestQueueHandler_RoundTrip(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodGet, supplierPath+"/peek", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodPost, "/v1/outgoing-messages", enqueueBody("GenericNotification", "DDQ"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created httpdto.Response[httpdto.EnqueueMessageResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	bundleID := created.Data.BundleID
	require.NotEmpty(t, bundleID)

	w = do(r, http.MethodGet, supplierPath+"/peek?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, bundleID, w.Header().Get(HeaderMessageID))
	assert.Equal(t, bundleID, w.Header().Get(HeaderBundleID))
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	w = do(r, http.MethodGet, "/v1/archive/"+bundleID+"/record", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"format":"Json"`)

	w = do(r, http.MethodDelete, supplierPath+"/bundles/"+bundleID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dequeued":true`)

	w = do(r, http.MethodDelete, supplierPath+"/bundles/"+bundleID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dequeued":false`)

	w = do(r, http.MethodGet, supplierPath+"/peek", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestQueueHandler_Errors(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/v1/outgoing-messages", map[string]string{"document_type": "GenericNotification"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/v1/outgoing-messages", enqueueBody("NoSuchDocument", "DDQ"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), httpdto.CodeInvalidRequest)

	w = do(r, http.MethodPost, "/v1/outgoing-messages", enqueueBody("GenericNotification", "XYZ"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodGet, "/v1/actors/123/DDQ/peek", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodGet, supplierPath+"/peek?format=pdf", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodDelete, supplierPath+"/bundles/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/v1/archive/6f1c1f38-5a80-4b0c-9d43-7d2f0f3e2b11", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueHandler_RenderFailure(t *testing.T) {
	r := newRouter(t)

	body := enqueueBody("AccountingPointCharacteristics", "DDQ")
	w := do(r, http.MethodPost, "/v1/outgoing-messages", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(r, http.MethodGet, supplierPath+"/peek?format=ebix", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), httpdto.CodeMaterializationFailed)
}
