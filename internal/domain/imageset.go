package domain

import (
	"time"

	"github.com/google/uuid"
)

// Placement says where a banner image set is shown.
type Placement string

const (
	PlacementHomepage Placement = "homepage"
	PlacementMobile   Placement = "mobile"
)

// ImageSet is an ordered banner image list.
type ImageSet struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Placement Placement `json:"placement" db:"placement"`
	Images    []string  `json:"images" db:"images"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
