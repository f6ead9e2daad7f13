package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/assistant"
	chatService "github.com/zhouzirui/z-pharmacy/backend/internal/service/chat"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/reply"
)

type brokenStore struct {
	*catalog.MemoryStore
}

var errDown = errors.New("db down")

func (brokenStore) ListProducts(context.Context) ([]catalog.Product, error) { return nil, errDown }

func (brokenStore) FindProductsByName(context.Context, []string) ([]catalog.Product, error) {
	return nil, errDown
}

func (brokenStore) FindProductsByDescription(context.Context, []string) ([]catalog.Product, error) {
	return nil, errDown
}

func setupRouter(store assistant.Store) *chi.Mux {
	engine := assistant.NewEngine(store, assistant.Options{})
	handler := New(engine, store, chatService.NewService(0), zerolog.Nop())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func postChat(t *testing.T, r http.Handler, body map[string]string) (*httptest.ResponseRecorder, chatResponse) {
	t.Helper()
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var out chatResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return resp, out
}

func TestChatMintsSessionID(t *testing.T) {
	r := setupRouter(catalog.NewMemoryStore(catalog.Seed()))

	resp, out := postChat(t, r, map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, out.SessionID, resp.Header().Get(SessionHeader))
	assert.Equal(t, reply.Greeting, out.Text)
}

func TestChatInvalidBody(t *testing.T) {
	r := setupRouter(catalog.NewMemoryStore(catalog.Seed()))
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestChatSearchConfirmAndCart(t *testing.T) {
	r := setupRouter(catalog.NewMemoryStore(catalog.Seed()))

	_, out := postChat(t, r, map[string]string{"message": "ibuprofen", "sessionId": "s-1"})
	require.Len(t, out.Products, 1)
	assert.Equal(t, "Ibuprofen 200mg", out.Products[0].Name)
	assert.Equal(t, "s-1", out.SessionID)

	_, out = postChat(t, r, map[string]string{"message": "yes", "sessionId": "s-1"})
	assert.Contains(t, out.Text, "Added 1 x Ibuprofen 200mg")

	req := httptest.NewRequest(http.MethodGet, "/cart?sessionId=s-1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var cart cartResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)
	assert.Equal(t, int64(850), cart.TotalCents)
	assert.Equal(t, "$8.50", cart.Total)
}

func TestChatStoreFailureIs503(t *testing.T) {
	r := setupRouter(brokenStore{catalog.NewMemoryStore(catalog.Seed())})

	resp, out := postChat(t, r, map[string]string{"message": "ibuprofen", "sessionId": "s-2"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, reply.StoreFailure, out.Text)
	assert.Empty(t, out.Products)
}

func TestChatStream(t *testing.T) {
	r := setupRouter(catalog.NewMemoryStore(catalog.Seed()))
	req := httptest.NewRequest(http.MethodGet, "/chat/stream?message=hello&sessionId=s-3", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	body := resp.Body.String()
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: status")
	assert.Contains(t, body, "event: reply")
	assert.Contains(t, body, "event: done")
}

func TestChatStreamRequiresMessage(t *testing.T) {
	r := setupRouter(catalog.NewMemoryStore(catalog.Seed()))
	req := httptest.NewRequest(http.MethodGet, "/chat/stream", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func uploadPrescription(t *testing.T, r http.Handler, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sessionId", "rx-1"))
	part, err := mw.CreateFormFile("file", "rx.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/prescription", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestPrescriptionUpload(t *testing.T) {
	r := setupRouter(catalog.NewMemoryStore(catalog.Seed()))
	resp := uploadPrescription(t, r, "Amoxicillin 500mg three times a day\nParacetamol as needed")
	require.Equal(t, http.StatusOK, resp.Code)

	var out prescriptionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	names := make([]string, 0, len(out.Products))
	for _, p := range out.Products {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "Amoxicillin 500mg")
	assert.Contains(t, names, "Paracetamol 500mg")
	assert.True(t, strings.HasPrefix(out.Message, "Prescription processed successfully."))
	assert.Equal(t, "rx-1", out.SessionID)
}

func TestPrescriptionUnreadable(t *testing.T) {
	r := setupRouter(catalog.NewMemoryStore(catalog.Seed()))
	resp := uploadPrescription(t, r, "   ")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestPrescriptionMissingFile(t *testing.T) {
	r := setupRouter(catalog.NewMemoryStore(catalog.Seed()))
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sessionId", "rx-2"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/prescription", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestChatHistory(t *testing.T) {
	r := setupRouter(catalog.NewMemoryStore(catalog.Seed()))
	postChat(t, r, map[string]string{"message": "hello", "sessionId": "h-1"})
	postChat(t, r, map[string]string{"message": "what are your hours", "sessionId": "h-1"})

	req := httptest.NewRequest(http.MethodGet, "/chat/history?sessionId=h-1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var out struct {
		Messages []struct {
			Sender  string `json:"sender"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.Len(t, out.Messages, 4)
	assert.Equal(t, "hello", out.Messages[0].Content)
	assert.Equal(t, "assistant", out.Messages[1].Sender)

	req = httptest.NewRequest(http.MethodGet, "/chat/history?sessionId=nobody", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
