package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"blogpulse/internal/httputil"
	"blogpulse/internal/model"
	"blogpulse/internal/service"
	"blogpulse/internal/transport/http/middleware"
)

type ChatHandler struct {
	chatService  *service.ChatService
	quotaService *service.QuotaService
}

func NewChatHandler(chatService *service.ChatService, quotaService *service.QuotaService) *ChatHandler {
	return &ChatHandler{
		chatService:  chatService,
		quotaService: quotaService,
	}
}

// Ask handles POST /chat
// Draws one quota unit and forwards the message to the assistant.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	resp, err := h.chatService.Ask(r.Context(), identity, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrMessageRequired):
			httputil.WriteBadRequest(w, "Chat message is required")
		case errors.Is(err, model.ErrMessageTooLong):
			httputil.WriteBadRequest(w, "Chat message too long")
		case errors.Is(err, model.ErrQuotaExceeded):
			httputil.WriteTooManyRequests(w, httputil.ErrCodeQuotaExceeded, "Daily chat limit reached")
		case errors.Is(err, model.ErrChatUnavailable):
			httputil.WriteError(w, http.StatusBadGateway, httputil.ErrCodeInternal, "Chat assistant unavailable")
		default:
			log.Printf("[ERROR] Chat handler: user=%s err=%v", identity.Key(), err)
			httputil.WriteInternalError(w, "Failed to process chat message")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Quota handles GET /chat/quota
// Returns the caller's remaining allowance.
func (h *ChatHandler) Quota(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	status, err := h.quotaService.GetStatus(r.Context(), identity.Key())
	if err != nil {
		log.Printf("[ERROR] Quota handler: user=%s err=%v", identity.Key(), err)
		httputil.WriteInternalError(w, "Failed to get quota")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, status)
}

// Redeem handles POST /chat/quota/redeem
// Validates a bonus code and credits its tier amount. Each code works
// exactly once, globally.
func (h *ChatHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	resp, err := h.quotaService.Redeem(r.Context(), identity.Key(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCodeInvalid):
			httputil.WriteBadRequest(w, "Invalid redemption code")
		case errors.Is(err, model.ErrCodeExpired):
			httputil.WriteBadRequest(w, "Redemption code has expired")
		case errors.Is(err, model.ErrCodeAlreadyRedeemed):
			httputil.WriteConflictWithCode(w, httputil.ErrCodeAlreadyRedeemed, "Code has already been redeemed")
		default:
			log.Printf("[ERROR] Redeem handler: user=%s err=%v", identity.Key(), err)
			httputil.WriteInternalError(w, "Failed to redeem code")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
