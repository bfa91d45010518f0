package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"furniture-catalog/internal/domain"
	"furniture-catalog/internal/repository"
	"furniture-catalog/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Mock repositories for testing

type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	for _, u := range m.users {
		if u.Email == user.Email || u.Phone == user.Phone {
			return repository.ErrUserAlreadyExists
		}
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Phone == phone {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) Count(ctx context.Context) (int, error) {
	return len(m.users), nil
}

type mockCatalogRepository struct {
	mu       sync.Mutex
	entities map[uuid.UUID]*domain.CatalogEntity
	creates  int
}

func newMockCatalogRepository() *mockCatalogRepository {
	return &mockCatalogRepository{entities: make(map[uuid.UUID]*domain.CatalogEntity)}
}

func (m *mockCatalogRepository) add(kind domain.CatalogKind, name string, images ...string) *domain.CatalogEntity {
	e := &domain.CatalogEntity{ID: uuid.New(), Kind: kind, Name: name, Images: append([]string{}, images...)}
	m.entities[e.ID] = e
	return e
}

func (m *mockCatalogRepository) Create(ctx context.Context, entity *domain.CatalogEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entities {
		if e.Kind == entity.Kind && strings.EqualFold(e.Name, entity.Name) {
			return repository.ErrCatalogEntityAlreadyExists
		}
	}
	m.creates++
	copied := *entity
	m.entities[entity.ID] = &copied
	return nil
}

func (m *mockCatalogRepository) Update(ctx context.Context, entity *domain.CatalogEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entities[entity.ID]; !ok || e.Kind != entity.Kind {
		return repository.ErrCatalogEntityNotFound
	}
	copied := *entity
	m.entities[entity.ID] = &copied
	return nil
}

func (m *mockCatalogRepository) Delete(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entities[id]; !ok || e.Kind != kind {
		return repository.ErrCatalogEntityNotFound
	}
	delete(m.entities, id)
	return nil
}

func (m *mockCatalogRepository) FindByID(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) (*domain.CatalogEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok || e.Kind != kind {
		return nil, repository.ErrCatalogEntityNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *mockCatalogRepository) FindByName(ctx context.Context, kind domain.CatalogKind, name string) (*domain.CatalogEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entities {
		if e.Kind == kind && strings.EqualFold(e.Name, name) {
			copied := *e
			return &copied, nil
		}
	}
	return nil, repository.ErrCatalogEntityNotFound
}

func (m *mockCatalogRepository) FindByIDs(ctx context.Context, kind domain.CatalogKind, ids []uuid.UUID) ([]*domain.CatalogEntity, error) {
	var out []*domain.CatalogEntity
	for _, id := range ids {
		if e, err := m.FindByID(ctx, kind, id); err == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockCatalogRepository) List(ctx context.Context, kind domain.CatalogKind) ([]*domain.CatalogEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.CatalogEntity{}
	for _, e := range m.entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCatalogRepository) ImageIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for _, e := range m.entities {
		ids = append(ids, e.Images...)
	}
	return ids, nil
}

type mockProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	failNext error
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *mockProductRepository) add(name string) *domain.Product {
	p := &domain.Product{ID: uuid.New(), Name: name, Images: []string{}}
	m.products[p.ID] = p
	return p
}

func (m *mockProductRepository) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	for _, p := range m.products {
		if strings.EqualFold(p.Name, product.Name) {
			return repository.ErrProductAlreadyExists
		}
	}
	copied := *product
	m.products[product.ID] = &copied
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	copied := *product
	m.products[product.ID] = &copied
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockProductRepository) FindByName(ctx context.Context, name string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if strings.EqualFold(p.Name, name) {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter, opts repository.ListOptions) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range m.products {
		if filter.CategoryID != nil && p.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Featured != nil && p.IsFeatured != *filter.Featured {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockProductRepository) Search(ctx context.Context, query string, opts repository.ListOptions) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *mockProductRepository) References(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if ref, ok := p.References()[kind]; ok && ref == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockProductRepository) ImageIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for _, p := range m.products {
		ids = append(ids, p.Images...)
	}
	return ids, nil
}

type attachmentKey struct {
	kind      domain.AttachmentKind
	productID uuid.UUID
}

type mockAttachmentRepository struct {
	mu          sync.Mutex
	records     map[attachmentKey]*domain.AttachmentRecord
	failUpdates error
}

func newMockAttachmentRepository() *mockAttachmentRepository {
	return &mockAttachmentRepository{records: make(map[attachmentKey]*domain.AttachmentRecord)}
}

func cloneRecord(r *domain.AttachmentRecord) *domain.AttachmentRecord {
	copied := *r
	copied.Entries = make([]domain.AttachmentEntry, len(r.Entries))
	for i, e := range r.Entries {
		copied.Entries[i] = domain.AttachmentEntry{ChildID: e.ChildID, Images: append([]string{}, e.Images...)}
	}
	return &copied
}

func (m *mockAttachmentRepository) Create(ctx context.Context, record *domain.AttachmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attachmentKey{record.Kind, record.ProductID}
	if _, ok := m.records[key]; ok {
		return repository.ErrAttachmentAlreadyExists
	}
	m.records[key] = cloneRecord(record)
	return nil
}

func (m *mockAttachmentRepository) UpdateEntries(ctx context.Context, record *domain.AttachmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdates != nil {
		return m.failUpdates
	}
	key := attachmentKey{record.Kind, record.ProductID}
	if _, ok := m.records[key]; !ok {
		return repository.ErrAttachmentNotFound
	}
	m.records[key] = cloneRecord(record)
	return nil
}

func (m *mockAttachmentRepository) Delete(ctx context.Context, kind domain.AttachmentKind, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attachmentKey{kind, productID}
	if _, ok := m.records[key]; !ok {
		return repository.ErrAttachmentNotFound
	}
	delete(m.records, key)
	return nil
}

func (m *mockAttachmentRepository) FindByProduct(ctx context.Context, kind domain.AttachmentKind, productID uuid.UUID) (*domain.AttachmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[attachmentKey{kind, productID}]
	if !ok {
		return nil, repository.ErrAttachmentNotFound
	}
	return cloneRecord(r), nil
}

func (m *mockAttachmentRepository) List(ctx context.Context, kind domain.AttachmentKind) ([]*domain.AttachmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.AttachmentRecord{}
	for key, r := range m.records {
		if key.kind == kind {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

func (m *mockAttachmentRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.AttachmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.AttachmentRecord{}
	for key, r := range m.records {
		if key.productID == productID {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

func (m *mockAttachmentRepository) ReferencesChild(ctx context.Context, kind domain.AttachmentKind, childID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, r := range m.records {
		if key.kind == kind && r.EntryIndex(childID) >= 0 {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAttachmentRepository) ImageIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for _, r := range m.records {
		ids = append(ids, r.Images()...)
	}
	return ids, nil
}

type mockImageSetRepository struct {
	sets map[uuid.UUID]*domain.ImageSet
}

func newMockImageSetRepository() *mockImageSetRepository {
	return &mockImageSetRepository{sets: make(map[uuid.UUID]*domain.ImageSet)}
}

func (m *mockImageSetRepository) Create(ctx context.Context, set *domain.ImageSet) error {
	copied := *set
	m.sets[set.ID] = &copied
	return nil
}

func (m *mockImageSetRepository) Update(ctx context.Context, set *domain.ImageSet) error {
	if s, ok := m.sets[set.ID]; !ok || s.Placement != set.Placement {
		return repository.ErrImageSetNotFound
	}
	copied := *set
	m.sets[set.ID] = &copied
	return nil
}

func (m *mockImageSetRepository) Delete(ctx context.Context, placement domain.Placement, id uuid.UUID) error {
	if s, ok := m.sets[id]; !ok || s.Placement != placement {
		return repository.ErrImageSetNotFound
	}
	delete(m.sets, id)
	return nil
}

func (m *mockImageSetRepository) FindByID(ctx context.Context, placement domain.Placement, id uuid.UUID) (*domain.ImageSet, error) {
	s, ok := m.sets[id]
	if !ok || s.Placement != placement {
		return nil, repository.ErrImageSetNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *mockImageSetRepository) List(ctx context.Context, placement domain.Placement) ([]*domain.ImageSet, error) {
	out := []*domain.ImageSet{}
	for _, s := range m.sets {
		if s.Placement == placement {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockImageSetRepository) ImageIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for _, s := range m.sets {
		ids = append(ids, s.Images...)
	}
	return ids, nil
}

// failingStore wraps a blob store and fails the Put call numbered failAt
// (1-based). Zero never fails.
type failingStore struct {
	storage.BlobStore
	failAt int
	puts   int
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) Put(ctx context.Context, r io.Reader, name string) (string, error) {
	f.puts++
	if f.failAt > 0 && f.puts == f.failAt {
		return "", errDiskFull
	}
	return f.BlobStore.Put(ctx, r, name)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func pngUpload(name string) storage.Upload {
	return storage.Upload{
		Filename: name,
		Content:  bytes.NewReader(append(append([]byte{}, pngHeader...), name...)),
	}
}

func pngUploads(names ...string) []storage.Upload {
	uploads := make([]storage.Upload, len(names))
	for i, n := range names {
		uploads[i] = pngUpload(n)
	}
	return uploads
}

func newMemStore(t *testing.T) (*storage.DiskStore, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	store, err := storage.NewDiskStore(fsys, "uploads")
	require.NoError(t, err)
	return store, fsys
}

// seedBlob writes a blob with a fixed id straight to the store directory
func seedBlob(t *testing.T, fsys afero.Fs, id string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, "uploads/"+id, pngHeader, 0o644))
}

func blobCount(t *testing.T, store storage.BlobStore) int {
	t.Helper()
	blobs, err := store.List(context.Background())
	require.NoError(t, err)
	return len(blobs)
}

func blobExists(t *testing.T, store storage.BlobStore, id string) bool {
	t.Helper()
	ok, err := store.Exists(context.Background(), id)
	require.NoError(t, err)
	return ok
}

type attachmentFixture struct {
	svc         AttachmentService
	attachments *mockAttachmentRepository
	products    *mockProductRepository
	catalog     *mockCatalogRepository
	store       storage.BlobStore
	fsys        afero.Fs
}

func newAttachmentFixture(t *testing.T, kind domain.AttachmentKind) *attachmentFixture {
	t.Helper()
	store, fsys := newMemStore(t)
	f := &attachmentFixture{
		attachments: newMockAttachmentRepository(),
		products:    newMockProductRepository(),
		catalog:     newMockCatalogRepository(),
		store:       store,
		fsys:        fsys,
	}
	f.svc = NewAttachmentService(kind, f.attachments, f.products, f.catalog, f.store, zap.NewNop())
	return f
}

func zapNop() *zap.Logger {
	return zap.NewNop()
}
