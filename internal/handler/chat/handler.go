package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/assistant"
	chatService "github.com/zhouzirui/z-pharmacy/backend/internal/service/chat"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/reply"
	"github.com/zhouzirui/z-pharmacy/backend/pkg/utils"
)

// SessionHeader 携带会话 ID，缺失时由服务端生成并回写。
const SessionHeader = "X-Session-ID"

const maxUploadBytes = assistant.MaxPrescriptionBytes + 64<<10

// Handler 药房助手的HTTP处理器
type Handler struct {
	engine      *assistant.Engine
	cart        catalog.Cart
	transcripts *chatService.Service
	logger      zerolog.Logger
}

// New 创建聊天处理器；transcripts 为 nil 时不记录对话。
func New(engine *assistant.Engine, cart catalog.Cart, transcripts *chatService.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:      engine,
		cart:        cart,
		transcripts: transcripts,
		logger:      logger.With().Str("component", "chat_handler").Logger(),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/stream", h.handleChatStream)
	r.Get("/chat/history", h.handleHistory)
	r.Post("/prescription", h.handlePrescription)
	r.Get("/cart", h.handleCart)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type chatResponse struct {
	assistant.Reply
	SessionID string `json:"sessionId"`
}

// handleChat 处理一轮对话
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := resolveSessionID(w, r, payload.SessionID)
	out, err := h.engine.Handle(r.Context(), assistant.Request{
		Message:   payload.Message,
		SessionID: sessionID,
		UserID:    payload.UserID,
	})
	h.record(r, sessionID, payload.Message, out)
	utils.RespondJSON(w, h.status(err, sessionID), chatResponse{Reply: out, SessionID: sessionID})
}

// handleChatStream 以 SSE 形式返回一轮对话
func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	query := r.URL.Query()
	message := query.Get("message")
	if strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	sessionID := resolveSessionID(w, r, query.Get("sessionId"))
	utils.SetupSSEHeaders(w)
	utils.SendSSEEvent(w, flusher, "status", map[string]string{"sessionId": sessionID, "message": "processing"})

	out, err := h.engine.Handle(r.Context(), assistant.Request{
		Message:   message,
		SessionID: sessionID,
		UserID:    query.Get("userId"),
	})
	h.record(r, sessionID, message, out)
	if err != nil {
		h.status(err, sessionID)
		utils.SendSSEEvent(w, flusher, "error", chatResponse{Reply: out, SessionID: sessionID})
		return
	}
	utils.SendSSEEvent(w, flusher, "reply", chatResponse{Reply: out, SessionID: sessionID})
	utils.SendSSEEvent(w, flusher, "done", map[string]string{"sessionId": sessionID})
}

// handleHistory 返回会话记录
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		utils.RespondError(w, http.StatusNotFound, "history disabled")
		return
	}
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = r.Header.Get(SessionHeader)
	}
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	messages, err := h.transcripts.LoadTranscript(r.Context(), sessionID)
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"sessionId": sessionID, "messages": messages})
}

func (h *Handler) record(r *http.Request, sessionID, message string, out assistant.Reply) {
	if h.transcripts == nil || strings.TrimSpace(message) == "" {
		return
	}
	if err := h.transcripts.RecordTurn(r.Context(), sessionID, message, out.Text, string(out.Intent), out.Branch); err != nil {
		h.logger.Warn().Err(err).Str("session", sessionID).Msg("record transcript failed")
	}
}

type prescriptionResponse struct {
	assistant.PrescriptionResult
	SessionID string `json:"sessionId"`
}

// handlePrescription 解析上传的处方文件并匹配商品
func (h *Handler) handlePrescription(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, assistant.MaxPrescriptionBytes))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	sessionID := resolveSessionID(w, r, r.FormValue("sessionId"))
	result, err := h.engine.SubmitPrescription(r.Context(), assistant.PrescriptionRequest{
		SessionID: sessionID,
		UserID:    r.FormValue("userId"),
		Filename:  header.Filename,
		Content:   content,
	})
	switch {
	case errors.Is(err, assistant.ErrUnreadablePrescription):
		utils.RespondError(w, http.StatusUnprocessableEntity, "prescription has no readable text")
		return
	case err != nil:
		utils.RespondError(w, h.status(err, sessionID), reply.StoreFailure)
		return
	}
	utils.RespondJSON(w, http.StatusOK, prescriptionResponse{PrescriptionResult: result, SessionID: sessionID})
}

type cartItem struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"priceCents"`
	LineCents  int64  `json:"lineCents"`
}

type cartResponse struct {
	SessionID  string     `json:"sessionId,omitempty"`
	Items      []cartItem `json:"items"`
	TotalCents int64      `json:"totalCents"`
	Total      string     `json:"total"`
}

// handleCart 返回当前购物车
func (h *Handler) handleCart(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = r.Header.Get(SessionHeader)
	}
	owner := catalog.ResolveOwner(r.URL.Query().Get("userId"), sessionID)

	lines, err := h.cart.GetLines(r.Context(), owner)
	if err != nil {
		h.logger.Error().Err(err).Str("owner", owner.Key()).Msg("load cart failed")
		utils.RespondError(w, http.StatusServiceUnavailable, reply.StoreFailure)
		return
	}

	items := make([]cartItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, cartItem{
			ProductID:  line.Product.ID,
			Name:       line.Product.Name,
			Quantity:   line.Quantity,
			PriceCents: line.Product.PriceCents,
			LineCents:  line.TotalCents(),
		})
	}
	total := catalog.CartTotal(lines)
	utils.RespondJSON(w, http.StatusOK, cartResponse{
		SessionID:  sessionID,
		Items:      items,
		TotalCents: total,
		Total:      reply.Money(total),
	})
}

// status maps an engine error to an HTTP status code.
func (h *Handler) status(err error, sessionID string) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, assistant.ErrStoreUnavailable):
		h.logger.Error().Err(err).Str("session", sessionID).Msg("store unavailable")
		return http.StatusServiceUnavailable
	default:
		h.logger.Warn().Err(err).Str("session", sessionID).Msg("turn aborted")
		return http.StatusInternalServerError
	}
}

// resolveSessionID prefers the payload, then the header, and mints one otherwise.
func resolveSessionID(w http.ResponseWriter, r *http.Request, fromPayload string) string {
	sessionID := strings.TrimSpace(fromPayload)
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.Header.Get(SessionHeader))
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	w.Header().Set(SessionHeader, sessionID)
	return sessionID
}
