package listings

import (
	"time"

	"github.com/uptrace/bun"
)

// Property is one listing row. Prices are whole naira.
type Property struct {
	bun.BaseModel `bun:"table:listings,alias:l"`

	ID          string    `bun:"id,pk" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Type        string    `bun:"type,notnull" json:"type"` // APARTMENT, HOUSE, OFFICE, LAND
	Bedrooms    int       `bun:"bedrooms" json:"bedrooms"`
	Bathrooms   int       `bun:"bathrooms" json:"bathrooms"`
	Price       int64     `bun:"price,notnull" json:"price"`
	Area        int       `bun:"area" json:"area"` // square meters, 0 when unknown
	Address     string    `bun:"address" json:"address"`
	City        string    `bun:"city" json:"city"`
	State       string    `bun:"state" json:"state"`
	Description string    `bun:"description" json:"description"`
	Featured    bool      `bun:"featured,notnull,default:false" json:"featured"`
	Status      string    `bun:"status,notnull,default:'ACTIVE'" json:"status"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
