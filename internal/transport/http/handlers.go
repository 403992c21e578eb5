package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"folio/internal/admission"
	"folio/internal/contact"
	"folio/internal/ratelimit/models"
	"folio/pkg/requestcontext"
)

// ChatService answers chat messages.
type ChatService interface {
	Chat(ctx context.Context, message string) (string, error)
}

// ContactService sends the contact form emails.
type ContactService interface {
	Submit(ctx context.Context, sub contact.Submission) (*contact.Result, error)
}

// Endpoint paths.
const (
	PathChat         = "/api/chatbot"
	PathContact      = "/api/contact"
	PathContactAlias = "/api/sendContactEmail"
	PathConfig       = "/config"
)

// Handler binds the public endpoints to their services. A nil service means
// the feature is disabled and its route is not mounted.
type Handler struct {
	chat    ChatService
	contact ContactService
	logger  *slog.Logger
}

func NewHandler(chat ChatService, contactSvc ContactService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{chat: chat, contact: contactSvc, logger: logger}
}

// ChatRoute is the admission route for POST /api/chatbot.
func (h *Handler) ChatRoute() admission.Route {
	return admission.Route{
		Name:     "chatbot",
		Classes:  []models.LimitClass{models.ClassChatbot},
		Validate: admission.ValidateForm[ChatRequest](),
		Dispatch: h.dispatchChat,
	}
}

// ContactRoute is the admission route for POST /api/contact.
func (h *Handler) ContactRoute() admission.Route {
	return admission.Route{
		Name:     "contact",
		Classes:  []models.LimitClass{models.ClassContact},
		Validate: admission.ValidateForm[ContactRequest](),
		Dispatch: h.dispatchContact,
	}
}

func (h *Handler) dispatchChat(ctx context.Context, x *admission.Exchange) (*admission.Reply, error) {
	reply, err := h.chat.Chat(ctx, x.Fields["message"])
	if err != nil {
		return nil, err
	}
	return &admission.Reply{
		Status:  http.StatusOK,
		Message: "Response generated successfully",
		Data:    ChatResponse{Response: reply},
	}, nil
}

func (h *Handler) dispatchContact(ctx context.Context, x *admission.Exchange) (*admission.Reply, error) {
	result, err := h.contact.Submit(ctx, submissionFrom(x.Fields))
	if err != nil {
		return nil, err
	}
	return &admission.Reply{
		Status:  http.StatusOK,
		Message: "Contact form submitted successfully",
		Data:    result,
	}, nil
}

// ClientConfig is what the static site reads from /config.
type ClientConfig struct {
	ChatbotEnabled   bool              `json:"chatbotEnabled"`
	MessagingEnabled bool              `json:"messagingEnabled"`
	APIEndpoints     map[string]string `json:"apiEndpoints"`
}

func (h *Handler) clientConfig() ClientConfig {
	cfg := ClientConfig{
		ChatbotEnabled:   h.chat != nil,
		MessagingEnabled: h.contact != nil,
		APIEndpoints:     map[string]string{},
	}
	if cfg.ChatbotEnabled {
		cfg.APIEndpoints["chatbot"] = PathChat
	}
	if cfg.MessagingEnabled {
		cfg.APIEndpoints["contact"] = PathContact
	}
	return cfg
}

// handleConfig serves the feature flags as a script that sets
// window.portfolioConfig.
func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	body, err := json.Marshal(h.clientConfig())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "config_encode_failed", "error", err,
			"request_id", requestcontext.RequestID(r.Context()))
		http.Error(w, "config unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "window.portfolioConfig = %s;\n", body)
}
