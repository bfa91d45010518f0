package transport

import (
	"encoding/json"
	"net/http"

	"furniture-catalog/internal/domain"
	"furniture-catalog/internal/middleware"
	"furniture-catalog/internal/service"
	"furniture-catalog/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CatalogRequest is the JSON form of a catalog entity create or update
type CatalogRequest struct {
	Name *string `json:"name"`
}

// CatalogHandler serves one catalog kind under /api/<kind>
type CatalogHandler struct {
	kind           domain.CatalogKind
	catalogService service.CatalogService
	maxMemory      int64
	logger         *zap.Logger
}

// NewCatalogHandler creates a handler for kind
func NewCatalogHandler(kind domain.CatalogKind, catalogService service.CatalogService, maxMemory int64, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		kind:           kind,
		catalogService: catalogService,
		maxMemory:      maxMemory,
		logger:         logger.With(zap.String("catalog_kind", string(kind))),
	}
}

// RegisterRoutes registers the kind's routes; admin guards every mutation
func (h *CatalogHandler) RegisterRoutes(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Route("/api/"+string(h.kind), func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/create", h.Create)
			r.Delete("/{id}", h.Delete)
			if h.kind == domain.KindCategory {
				r.Put("/{id}", h.Update)
			}
		})
	})
}

// readRequest accepts a JSON body or a form with optional image files.
// The returned func releases the opened files.
func (h *CatalogHandler) readRequest(r *http.Request) (*string, []storage.Upload, func(), error) {
	if !isMultipart(r) {
		var req CatalogRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, nil, func() {}, domain.Invalid("invalid request body")
		}
		return req.Name, nil, func() {}, nil
	}

	if err := parseForm(r, h.maxMemory); err != nil {
		return nil, nil, func() {}, err
	}
	var name *string
	if values, ok := r.MultipartForm.Value["name"]; ok && len(values) > 0 {
		name = &values[0]
	}
	uploads, release, err := formUploads(r)
	return name, uploads, release, err
}

// Create handles entity creation
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	name, uploads, release, err := h.readRequest(r)
	defer release()
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	if name == nil {
		middleware.RespondWithDomainError(w, domain.Invalid("name is required"), h.logger)
		return
	}

	entity, err := h.catalogService.Create(r.Context(), h.kind, *name, uploads)
	if err != nil {
		h.logger.Debug("Catalog create failed", zap.Error(err))
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Catalog entity created", zap.String("id", entity.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, entity)
}

// List returns every entity of the kind
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	entities, err := h.catalogService.List(r.Context(), h.kind)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, entities)
}

// Get returns one entity
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	entity, err := h.catalogService.Get(r.Context(), h.kind, id)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, entity)
}

// Update renames an entity and replaces its images when files are sent
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	name, uploads, release, err := h.readRequest(r)
	defer release()
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	entity, err := h.catalogService.Update(r.Context(), h.kind, id, name, uploads)
	if err != nil {
		h.logger.Debug("Catalog update failed", zap.Error(err))
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Catalog entity updated", zap.String("id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, entity)
}

// Delete removes an entity that nothing references
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	if err := h.catalogService.Delete(r.Context(), h.kind, id); err != nil {
		h.logger.Debug("Catalog delete failed", zap.Error(err))
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Catalog entity deleted", zap.String("id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, messageResponse{Message: h.kind.Label() + " deleted"})
}
