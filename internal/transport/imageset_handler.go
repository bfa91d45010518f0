package transport

import (
	"net/http"

	"furniture-catalog/internal/domain"
	"furniture-catalog/internal/middleware"
	"furniture-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var placementRoutes = map[domain.Placement]string{
	domain.PlacementHomepage: "homepageimg",
	domain.PlacementMobile:   "mobileimg",
}

// ImageSetHandler serves the banner image sets of one placement
type ImageSetHandler struct {
	imageSetService service.ImageSetService
	maxMemory       int64
	logger          *zap.Logger
}

// NewImageSetHandler creates a handler for the service's placement
func NewImageSetHandler(imageSetService service.ImageSetService, maxMemory int64, logger *zap.Logger) *ImageSetHandler {
	return &ImageSetHandler{
		imageSetService: imageSetService,
		maxMemory:       maxMemory,
		logger:          logger.With(zap.String("placement", string(imageSetService.Placement()))),
	}
}

// RegisterRoutes registers the placement's routes; admin guards every mutation
func (h *ImageSetHandler) RegisterRoutes(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Route("/api/"+placementRoutes[h.imageSetService.Placement()], func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/create", h.Create)
			r.Put("/{id}", h.Replace)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// Create stores a new image set from the uploaded files
func (h *ImageSetHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r, h.maxMemory); err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	uploads, release, err := formUploads(r)
	defer release()
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	set, err := h.imageSetService.Create(r.Context(), uploads)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Image set created", zap.String("id", set.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, set)
}

// List returns every set of the placement
func (h *ImageSetHandler) List(w http.ResponseWriter, r *http.Request) {
	sets, err := h.imageSetService.List(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	if sets == nil {
		sets = []*domain.ImageSet{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, sets)
}

// Get returns one set
func (h *ImageSetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	set, err := h.imageSetService.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, set)
}

// Replace swaps the images of a set for the uploaded files
func (h *ImageSetHandler) Replace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	if err := parseForm(r, h.maxMemory); err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	uploads, release, err := formUploads(r)
	defer release()
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	set, err := h.imageSetService.Replace(r.Context(), id, uploads)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Image set replaced", zap.String("id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, set)
}

// Delete removes a set and its images
func (h *ImageSetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	if err := h.imageSetService.Delete(r.Context(), id); err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Image set deleted", zap.String("id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, messageResponse{Message: "image set deleted"})
}
