package transport

import (
	"encoding/json"
	"net/http"

	"furniture-catalog/internal/domain"
	"furniture-catalog/internal/middleware"
	"furniture-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// attachmentRoutes maps attachment kinds to their URL segment
var attachmentRoutes = map[domain.AttachmentKind]string{
	domain.AttachmentEdges:    "productedge",
	domain.AttachmentFinishes: "productfinish",
	domain.AttachmentTops:     "producttop",
}

// AttachRequest is the JSON body of an attach call. The child may be sent
// as childId or under its kind specific name (edgeId, finishId, topId).
type AttachRequest struct {
	ProductID string   `json:"productId"`
	ChildID   string   `json:"childId"`
	EdgeID    string   `json:"edgeId"`
	FinishID  string   `json:"finishId"`
	TopID     string   `json:"topId"`
	Images    []string `json:"images"`
}

func (req AttachRequest) child(kind domain.AttachmentKind) string {
	if req.ChildID != "" {
		return req.ChildID
	}
	switch kind {
	case domain.AttachmentEdges:
		return req.EdgeID
	case domain.AttachmentFinishes:
		return req.FinishID
	case domain.AttachmentTops:
		return req.TopID
	}
	return ""
}

// childField is the kind specific form field naming the child entity
func childField(kind domain.AttachmentKind) string {
	return string(kind.ChildKind()) + "Id"
}

// UploadResponse lists the ids of freshly stored blobs
type UploadResponse struct {
	Images []string `json:"images"`
}

// AttachmentHandler serves one attachment kind
type AttachmentHandler struct {
	attachmentService service.AttachmentService
	maxMemory         int64
	logger            *zap.Logger
}

// NewAttachmentHandler creates a handler for the service's kind
func NewAttachmentHandler(attachmentService service.AttachmentService, maxMemory int64, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentService: attachmentService,
		maxMemory:         maxMemory,
		logger:            logger.With(zap.String("attachment_kind", string(attachmentService.Kind()))),
	}
}

// RegisterRoutes registers the kind's routes; admin guards every mutation
func (h *AttachmentHandler) RegisterRoutes(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Route("/api/"+attachmentRoutes[h.attachmentService.Kind()], func(r chi.Router) {
		r.Get("/", h.ListAll)
		r.Get("/{productId}", h.ListForProduct)

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/upload", h.Upload)
			r.Post("/create", h.Create)
			r.Delete("/deleteImage", h.DeleteImage)
			r.Delete("/{productId}/{childId}", h.Detach)
			r.Delete("/{productId}", h.DetachAll)
		})
	})
}

// Upload stores files and returns their ids for a later create call
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
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

	ids, err := h.attachmentService.StageUpload(r.Context(), uploads)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, UploadResponse{Images: ids})
}

// Create attaches a child to a product. JSON bodies reference staged
// images; multipart bodies carry the files.
func (h *AttachmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	kind := h.attachmentService.Kind()

	if isMultipart(r) {
		h.createWithFiles(w, r)
		return
	}

	var req AttachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID, err := parseID(req.ProductID, "productId")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	childID, err := parseID(req.child(kind), childField(kind))
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	record, err := h.attachmentService.AttachStaged(r.Context(), productID, childID, req.Images)
	if err != nil {
		h.logger.Debug("Attach failed", zap.Error(err))
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Child attached", zap.String("product_id", productID.String()), zap.String("child_id", childID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, record)
}

func (h *AttachmentHandler) createWithFiles(w http.ResponseWriter, r *http.Request) {
	kind := h.attachmentService.Kind()

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

	productID, err := parseID(r.FormValue("productId"), "productId")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	rawChild := r.FormValue("childId")
	if rawChild == "" {
		rawChild = r.FormValue(childField(kind))
	}
	childID, err := parseID(rawChild, childField(kind))
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	record, err := h.attachmentService.AttachWithImages(r.Context(), productID, childID, uploads)
	if err != nil {
		h.logger.Debug("Attach with images failed", zap.Error(err))
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Child attached", zap.String("product_id", productID.String()), zap.String("child_id", childID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, record)
}

// ListAll returns every record of the kind
func (h *AttachmentHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	records, err := h.attachmentService.ListAll(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	if records == nil {
		records = []*domain.ResolvedRecord{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, records)
}

// ListForProduct returns the product's record
func (h *AttachmentHandler) ListForProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productId")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	record, err := h.attachmentService.ListForProduct(r.Context(), productID)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, record)
}

// Detach removes one child and its images from the product's record
func (h *AttachmentHandler) Detach(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productId")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	childID, err := pathID(r, "childId")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	record, err := h.attachmentService.Detach(r.Context(), productID, childID)
	if err != nil {
		h.logger.Debug("Detach failed", zap.Error(err))
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Child detached", zap.String("product_id", productID.String()), zap.String("child_id", childID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, record)
}

// DetachAll deletes the product's record with every image in it
func (h *AttachmentHandler) DetachAll(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productId")
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	if err := h.attachmentService.DetachAll(r.Context(), productID); err != nil {
		h.logger.Debug("Detach all failed", zap.Error(err))
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("Attachment record deleted", zap.String("product_id", productID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, messageResponse{Message: "attachment deleted"})
}

// DeleteImage removes a single stored blob named by ?img=
func (h *AttachmentHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := h.attachmentService.DeleteBlobByURL(r.Context(), r.URL.Query().Get("img")); err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, messageResponse{Message: "image deleted"})
}
