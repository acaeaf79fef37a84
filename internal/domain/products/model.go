package products

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	SKU       string
	Name      string
	UOM       string
	CreatedAt time.Time
}
