package domain

import (
	"errors"
	"strconv"
	"time"
)

var ErrProductNotFound = errors.New("product not found")

// CREATE TABLE public.products (
//     id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//     product_id      BIGINT,
//     product_skuid   BIGINT,
//     category_id     BIGINT DEFAULT 0,
//     is_green_tag    BOOLEAN,
//     product_name    TEXT,
//     product_category TEXT,
//     unit            TEXT,
//     normal_price    NUMERIC,
//     sale_price      NUMERIC,
//     discount        NUMERIC,
//     quantity        NUMERIC,
//     created_at      TIMESTAMPTZ DEFAULT NOW()
// );

// Product is a catalog record. Personalization keys on ID and ProductCategory;
// eligibility rules may read any field.
type Product struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID       uint64    `gorm:"column:product_id" json:"product_id"`
	ProductSKUID    uint64    `gorm:"column:product_skuid" json:"product_skuid"`
	CategoryID      uint64    `gorm:"column:category_id;default:0" json:"category_id"`
	IsGreenTag      bool      `gorm:"column:is_green_tag;default:false" json:"is_green_tag"`
	ProductName     string    `gorm:"column:product_name;type:text" json:"product_name"`
	ProductCategory string    `gorm:"column:product_category;type:text" json:"product_category"`
	Unit            string    `gorm:"column:unit;type:text" json:"unit"`
	NormalPrice     float64   `gorm:"column:normal_price;type:numeric" json:"normal_price"`
	SalePrice       float64   `gorm:"column:sale_price;type:numeric" json:"sale_price"`
	Discount        float64   `gorm:"column:discount;type:numeric" json:"discount"`
	Quantity        float64   `gorm:"column:quantity;type:numeric" json:"quantity"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Product) TableName() string {
	return "products"
}

// Key is the string id used by browsing events and relevance scores.
func (p Product) Key() string {
	return strconv.FormatUint(p.ID, 10)
}
