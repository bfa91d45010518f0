package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttachmentKind names a per-product list of child catalog entities.
type AttachmentKind string

const (
	AttachmentEdges    AttachmentKind = "edges"
	AttachmentFinishes AttachmentKind = "finishes"
	AttachmentTops     AttachmentKind = "tops"
)

// AttachmentKinds lists every attachment kind.
var AttachmentKinds = []AttachmentKind{AttachmentEdges, AttachmentFinishes, AttachmentTops}

// ChildKind returns the catalog kind an attachment entry of k refers to.
func (k AttachmentKind) ChildKind() CatalogKind {
	switch k {
	case AttachmentEdges:
		return KindEdge
	case AttachmentFinishes:
		return KindFinish
	case AttachmentTops:
		return KindTop
	}
	return ""
}

// AttachmentEntry attaches one child entity with its own image set.
type AttachmentEntry struct {
	ChildID uuid.UUID `json:"child_id"`
	Images  []string  `json:"images"`
}

// AttachmentRecord holds every entry of one kind for one product.
// No two entries share a ChildID.
type AttachmentRecord struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	ProductID uuid.UUID         `json:"product_id" db:"product_id"`
	Kind      AttachmentKind    `json:"kind" db:"kind"`
	Entries   []AttachmentEntry `json:"entries" db:"entries"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

// EntryIndex returns the position of childID in the record or -1.
func (r *AttachmentRecord) EntryIndex(childID uuid.UUID) int {
	for i, e := range r.Entries {
		if e.ChildID == childID {
			return i
		}
	}
	return -1
}

// Images returns every blob referenced by any entry.
func (r *AttachmentRecord) Images() []string {
	var images []string
	for _, e := range r.Entries {
		images = append(images, e.Images...)
	}
	return images
}

// ResolvedEntry is an entry with its child entity loaded. ChildID is kept so
// an entry whose child no longer exists can still be detached.
type ResolvedEntry struct {
	ChildID uuid.UUID      `json:"child_id"`
	Child   *CatalogEntity `json:"child"`
	Images  []string       `json:"images"`
}

// ResolvedRecord is an attachment record with product and child references loaded.
// Child is nil for entries whose entity no longer exists.
type ResolvedRecord struct {
	ID        uuid.UUID       `json:"id"`
	Kind      AttachmentKind  `json:"kind"`
	ProductID uuid.UUID       `json:"product_id"`
	Product   *Product        `json:"product,omitempty"`
	Entries   []ResolvedEntry `json:"entries"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AttachmentKindFor returns the attachment kind whose entries point at
// entities of k.
func AttachmentKindFor(k CatalogKind) (AttachmentKind, bool) {
	for _, a := range AttachmentKinds {
		if a.ChildKind() == k {
			return a, true
		}
	}
	return "", false
}
