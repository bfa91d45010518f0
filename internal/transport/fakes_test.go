package transport

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"furniture-catalog/internal/domain"
	"furniture-catalog/internal/repository"
	"furniture-catalog/internal/service"
	"furniture-catalog/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func passthrough(next http.Handler) http.Handler { return next }

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newRouter(register func(r chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	register(r)
	return r
}

type formFile struct {
	name    string
	content string
}

// multipartRequest builds a request with text fields and files under "images"
func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(ImagesField, f.name)
		require.NoError(t, err)
		_, err = io.WriteString(part, f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type fakeAuthService struct {
	service.AuthService
	signup func(in service.SignupInput) (*service.AuthResult, error)
	signin func(email, password string) (*service.AuthResult, error)
}

func (f *fakeAuthService) Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error) {
	return f.signup(in)
}

func (f *fakeAuthService) Signin(ctx context.Context, email, password string) (*service.AuthResult, error) {
	return f.signin(email, password)
}

type fakeCatalogService struct {
	service.CatalogService
	created  []string
	uploads  []string
	updated  *string
	deleted  []uuid.UUID
	err      error
	entities map[uuid.UUID]*domain.CatalogEntity
}

func (f *fakeCatalogService) Create(ctx context.Context, kind domain.CatalogKind, name string, uploads []storage.Upload) (*domain.CatalogEntity, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, name)
	for _, u := range uploads {
		f.uploads = append(f.uploads, u.Filename)
	}
	return &domain.CatalogEntity{ID: uuid.New(), Kind: kind, Name: name, Images: []string{}}, nil
}

func (f *fakeCatalogService) List(ctx context.Context, kind domain.CatalogKind) ([]*domain.CatalogEntity, error) {
	var out []*domain.CatalogEntity
	for _, e := range f.entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCatalogService) Get(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) (*domain.CatalogEntity, error) {
	if e, ok := f.entities[id]; ok && e.Kind == kind {
		return e, nil
	}
	return nil, domain.NotFound(kind.Label())
}

func (f *fakeCatalogService) Update(ctx context.Context, kind domain.CatalogKind, id uuid.UUID, name *string, uploads []storage.Upload) (*domain.CatalogEntity, error) {
	f.updated = name
	for _, u := range uploads {
		f.uploads = append(f.uploads, u.Filename)
	}
	return &domain.CatalogEntity{ID: id, Kind: kind}, nil
}

func (f *fakeCatalogService) Delete(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeProductService struct {
	service.ProductService
	input    service.ProductInput
	uploads  []string
	filter   repository.ProductFilter
	query    string
	category uuid.UUID
	products []*domain.Product
	err      error
}

func (f *fakeProductService) Create(ctx context.Context, in service.ProductInput, uploads []storage.Upload) (*domain.Product, error) {
	f.input = in
	for _, u := range uploads {
		f.uploads = append(f.uploads, u.Filename)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Product{ID: uuid.New(), Name: in.Name}, nil
}

func (f *fakeProductService) Update(ctx context.Context, id uuid.UUID, in service.ProductInput, uploads []storage.Upload) (*domain.Product, error) {
	f.input = in
	for _, u := range uploads {
		f.uploads = append(f.uploads, u.Filename)
	}
	return &domain.Product{ID: id, Name: in.Name}, f.err
}

func (f *fakeProductService) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error) {
	f.filter = filter
	return f.products, f.err
}

func (f *fakeProductService) ByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error) {
	f.category = categoryID
	return f.products, f.err
}

func (f *fakeProductService) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	f.query = query
	return f.products, f.err
}

type attachCall struct {
	productID, childID uuid.UUID
	images             []string
	files              []string
}

type fakeAttachmentService struct {
	service.AttachmentService
	kind        domain.AttachmentKind
	attached    []attachCall
	deletedURLs []string
	detached    []uuid.UUID
	err         error
}

func (f *fakeAttachmentService) Kind() domain.AttachmentKind { return f.kind }

func (f *fakeAttachmentService) StageUpload(ctx context.Context, uploads []storage.Upload) ([]string, error) {
	if len(uploads) == 0 {
		return nil, domain.Invalid("no images were uploaded")
	}
	ids := make([]string, len(uploads))
	for i, u := range uploads {
		ids[i] = "1700000000000_" + u.Filename
	}
	return ids, nil
}

func (f *fakeAttachmentService) record(productID, childID uuid.UUID, images []string) *domain.AttachmentRecord {
	return &domain.AttachmentRecord{
		ID:        uuid.New(),
		ProductID: productID,
		Kind:      f.kind,
		Entries:   []domain.AttachmentEntry{{ChildID: childID, Images: images}},
	}
}

func (f *fakeAttachmentService) AttachStaged(ctx context.Context, productID, childID uuid.UUID, imageIDs []string) (*domain.AttachmentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.attached = append(f.attached, attachCall{productID: productID, childID: childID, images: imageIDs})
	return f.record(productID, childID, imageIDs), nil
}

func (f *fakeAttachmentService) AttachWithImages(ctx context.Context, productID, childID uuid.UUID, uploads []storage.Upload) (*domain.AttachmentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	call := attachCall{productID: productID, childID: childID}
	for _, u := range uploads {
		call.files = append(call.files, u.Filename)
	}
	f.attached = append(f.attached, call)
	return f.record(productID, childID, call.files), nil
}

func (f *fakeAttachmentService) ListAll(ctx context.Context) ([]*domain.ResolvedRecord, error) {
	return nil, f.err
}

func (f *fakeAttachmentService) Detach(ctx context.Context, productID, childID uuid.UUID) (*domain.AttachmentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.detached = append(f.detached, childID)
	return &domain.AttachmentRecord{ProductID: productID, Kind: f.kind, Entries: []domain.AttachmentEntry{}}, nil
}

func (f *fakeAttachmentService) DetachAll(ctx context.Context, productID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.detached = append(f.detached, productID)
	return nil
}

func (f *fakeAttachmentService) DeleteBlobByURL(ctx context.Context, url string) error {
	if url == "" {
		return domain.Invalid("image url is required")
	}
	f.deletedURLs = append(f.deletedURLs, url)
	return f.err
}

type fakeImageSetService struct {
	service.ImageSetService
	placement domain.Placement
	files     []string
}

func (f *fakeImageSetService) Placement() domain.Placement { return f.placement }

func (f *fakeImageSetService) Create(ctx context.Context, uploads []storage.Upload) (*domain.ImageSet, error) {
	if len(uploads) == 0 {
		return nil, domain.Invalid("at least one image is required")
	}
	for _, u := range uploads {
		f.files = append(f.files, u.Filename)
	}
	return &domain.ImageSet{ID: uuid.New(), Placement: f.placement, Images: f.files}, nil
}

func (f *fakeImageSetService) List(ctx context.Context) ([]*domain.ImageSet, error) {
	return nil, nil
}

type fakeContactService struct {
	forms []service.ContactForm
	err   error
}

func (f *fakeContactService) Submit(ctx context.Context, form service.ContactForm) error {
	if f.err != nil {
		return f.err
	}
	f.forms = append(f.forms, form)
	return nil
}
