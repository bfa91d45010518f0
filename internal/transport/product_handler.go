package transport

import (
	"net/http"
	"strings"

	"furniture-catalog/internal/domain"
	"furniture-catalog/internal/middleware"
	"furniture-catalog/internal/repository"
	"furniture-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductHandler handles product and search requests
type ProductHandler struct {
	productService service.ProductService
	maxMemory      int64
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, maxMemory int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		maxMemory:      maxMemory,
		logger:         logger,
	}
}

// RegisterRoutes registers product and search routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/featured", h.Featured)
		r.Get("/filter", h.Filter)
		r.Get("/category", h.ByCategory)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/create", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})

	r.Get("/api/search", h.Search)
}

// productInput reads the product fields of a parsed form
func productInput(r *http.Request) (service.ProductInput, error) {
	var in service.ProductInput
	var err error

	in.Name = r.FormValue("name")
	in.Description = r.FormValue("description")

	if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
		if in.Price, err = decimal.NewFromString(raw); err != nil {
			return in, domain.Invalid("price must be a number")
		}
	}

	// missing required references are reported by the service
	refs := []struct {
		field string
		dst   *uuid.UUID
	}{
		{"category", &in.CategoryID},
		{"legfinish", &in.LegFinishID},
		{"legmaterial", &in.LegMaterialID},
	}
	for _, ref := range refs {
		raw := r.FormValue(ref.field)
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if *ref.dst, err = parseID(raw, ref.field); err != nil {
			return in, err
		}
	}

	if in.TopFinishID, err = optionalID(r.FormValue("topfinish"), "topfinish"); err != nil {
		return in, err
	}
	if in.TopMaterialID, err = optionalID(r.FormValue("topmaterial"), "topmaterial"); err != nil {
		return in, err
	}

	in.Dimensions = domain.Dimensions{
		Height: r.FormValue("height"),
		Width:  r.FormValue("width"),
		Length: r.FormValue("length"),
		Weight: r.FormValue("weight"),
		CBM:    r.FormValue("cbm"),
	}

	featured, err := optionalBool(r.FormValue("isFeatured"), "isFeatured")
	if err != nil {
		return in, err
	}
	in.IsFeatured = featured != nil && *featured

	return in, nil
}

// Create handles product creation from a multipart form
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	in, err := productInput(r)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	product, err := h.productService.Create(r.Context(), in, uploads)
	if err != nil {
		h.logger.Debug("Product create failed", zap.Error(err))
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update replaces the product fields; sent files replace the images
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	in, err := productInput(r)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	product, err := h.productService.Update(r.Context(), id, in, uploads)
	if err != nil {
		h.logger.Debug("Product update failed", zap.Error(err))
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Product updated", zap.String("product_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete removes the product with its attachments and images
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		h.logger.Debug("Product delete failed", zap.Error(err))
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, messageResponse{Message: "product deleted"})
}

// Get returns a product with its references resolved
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	detail, err := h.productService.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, detail)
}

// List returns every product
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, func() ([]*domain.Product, error) {
		return h.productService.List(r.Context(), repository.ProductFilter{})
	})
}

// Featured returns products flagged as featured
func (h *ProductHandler) Featured(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, func() ([]*domain.Product, error) {
		return h.productService.Featured(r.Context())
	})
}

// ByCategory returns the products of ?category=<id>
func (h *ProductHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := parseID(r.URL.Query().Get("category"), "category")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	h.respondList(w, func() ([]*domain.Product, error) {
		return h.productService.ByCategory(r.Context(), categoryID)
	})
}

// Filter narrows products by category name and leg/top references
func (h *ProductHandler) Filter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ProductFilter{CategoryName: strings.TrimSpace(q.Get("category"))}

	ids := []struct {
		field string
		dst   **uuid.UUID
	}{
		{"legfinish", &filter.LegFinishID},
		{"legmaterial", &filter.LegMaterialID},
		{"topfinish", &filter.TopFinishID},
		{"topmaterial", &filter.TopMaterialID},
	}
	var err error
	for _, f := range ids {
		if *f.dst, err = optionalID(q.Get(f.field), f.field); err != nil {
			middleware.RespondWithDomainError(w, err, h.logger)
			return
		}
	}
	if filter.Featured, err = optionalBool(q.Get("featured"), "featured"); err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.respondList(w, func() ([]*domain.Product, error) {
		return h.productService.List(r.Context(), filter)
	})
}

// Search matches ?q= against product and category names
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	h.respondList(w, func() ([]*domain.Product, error) {
		return h.productService.Search(r.Context(), query)
	})
}

func (h *ProductHandler) respondList(w http.ResponseWriter, load func() ([]*domain.Product, error)) {
	products, err := load()
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}
