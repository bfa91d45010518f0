package transport

import (
	"net/http"

	"furniture-catalog/internal/middleware"
	"furniture-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ContactRequest represents the storefront contact form
type ContactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required"`
}

// ContactHandler forwards contact form submissions
type ContactHandler struct {
	contactService service.ContactService
	logger         *zap.Logger
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(contactService service.ContactService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{contactService: contactService, logger: logger}
}

// RegisterRoutes registers the contact route behind limit
func (h *ContactHandler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Route("/api/contact", func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/", h.Submit)
	})
}

// Submit validates the form and sends it to the shop inbox
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Contact validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	err := h.contactService.Submit(r.Context(), service.ContactForm{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, messageResponse{Message: "message sent"})
}
