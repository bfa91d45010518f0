package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CatalogKind identifies one of the simple named reference tables.
type CatalogKind string

const (
	KindCategory    CatalogKind = "category"
	KindEdge        CatalogKind = "edge"
	KindFinish      CatalogKind = "finish"
	KindTop         CatalogKind = "top"
	KindLegFinish   CatalogKind = "legfinish"
	KindLegMaterial CatalogKind = "legmaterial"
	KindTopFinish   CatalogKind = "topfinish"
	KindTopMaterial CatalogKind = "topmaterial"
)

// CatalogKinds lists every catalog kind in route order.
var CatalogKinds = []CatalogKind{
	KindCategory,
	KindEdge,
	KindFinish,
	KindTop,
	KindLegFinish,
	KindLegMaterial,
	KindTopFinish,
	KindTopMaterial,
}

var catalogLabels = map[CatalogKind]string{
	KindCategory:    "category",
	KindEdge:        "edge",
	KindFinish:      "finish",
	KindTop:         "top",
	KindLegFinish:   "leg finish",
	KindLegMaterial: "leg material",
	KindTopFinish:   "top finish",
	KindTopMaterial: "top material",
}

// Label returns the human readable name of the kind.
func (k CatalogKind) Label() string {
	if l, ok := catalogLabels[k]; ok {
		return l
	}
	return string(k)
}

// Valid reports whether k is a known catalog kind.
func (k CatalogKind) Valid() bool {
	_, ok := catalogLabels[k]
	return ok
}

// CatalogEntity is a named reference value attachable to products.
type CatalogEntity struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Kind      CatalogKind `json:"kind" db:"kind"`
	Name      string      `json:"name" db:"name"`
	Images    []string    `json:"images" db:"images"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// NormalizeName trims surrounding whitespace from a user supplied name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}
