package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Dimensions are free-form measurements as entered by the shop admin.
type Dimensions struct {
	Height string `json:"height" db:"height"`
	Width  string `json:"width" db:"width"`
	Length string `json:"length" db:"length"`
	Weight string `json:"weight" db:"weight"`
	CBM    string `json:"cbm" db:"cbm"`
}

// Product represents a piece of furniture in the catalog
type Product struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Description   string          `json:"description" db:"description"`
	Images        []string        `json:"images" db:"images"`
	Price         decimal.Decimal `json:"price" db:"price"`
	CategoryID    uuid.UUID       `json:"category_id" db:"category_id"`
	LegFinishID   uuid.UUID       `json:"legfinish_id" db:"legfinish_id"`
	LegMaterialID uuid.UUID       `json:"legmaterial_id" db:"legmaterial_id"`
	TopFinishID   *uuid.UUID      `json:"topfinish_id,omitempty" db:"topfinish_id"`
	TopMaterialID *uuid.UUID      `json:"topmaterial_id,omitempty" db:"topmaterial_id"`
	Dimensions
	IsFeatured bool      `json:"is_featured" db:"is_featured"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// References returns every catalog reference of the product keyed by kind.
// Optional references are only included when set.
func (p *Product) References() map[CatalogKind]uuid.UUID {
	refs := map[CatalogKind]uuid.UUID{
		KindCategory:    p.CategoryID,
		KindLegFinish:   p.LegFinishID,
		KindLegMaterial: p.LegMaterialID,
	}
	if p.TopFinishID != nil {
		refs[KindTopFinish] = *p.TopFinishID
	}
	if p.TopMaterialID != nil {
		refs[KindTopMaterial] = *p.TopMaterialID
	}
	return refs
}

// ProductDetail is a product with its catalog references resolved.
type ProductDetail struct {
	*Product
	Category    *CatalogEntity `json:"category,omitempty"`
	LegFinish   *CatalogEntity `json:"legfinish,omitempty"`
	LegMaterial *CatalogEntity `json:"legmaterial,omitempty"`
	TopFinish   *CatalogEntity `json:"topfinish,omitempty"`
	TopMaterial *CatalogEntity `json:"topmaterial,omitempty"`
}
