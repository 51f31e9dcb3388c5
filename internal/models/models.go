package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"                json:"id"`
	Name        string          `gorm:"not null"                            json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null;check:price >= 0" json:"price"`
	Stock       int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	ImageURL    string          `json:"imageUrl"`
	CreatedAt   time.Time       `gorm:"index"                               json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// User doubles as the account record: IsBlocked and CancelledOrdersCount
// are written only by the cancellation workflow.
type User struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"      json:"id"`
	Email                string    `gorm:"uniqueIndex;not null"      json:"email"`
	PasswordHash         string    `gorm:"not null"                  json:"-"`
	Role                 Role      `gorm:"type:varchar(16);not null" json:"role"`
	FirstName            string    `json:"firstName,omitempty"`
	LastName             string    `json:"lastName,omitempty"`
	IsBlocked            bool      `gorm:"not null;default:false"    json:"isBlocked"`
	CancelledOrdersCount int       `gorm:"not null;default:0;check:cancelled_orders_count >= 0" json:"cancelledOrdersCount"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"-"`
}

type Cart struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"       json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"userId"`
	Items     []CartItem `gorm:"foreignKey:CartID"          json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"                                   json:"id"`
	CartID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_product;not null"        json:"cartId"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_product;not null"        json:"productId"`
	Quantity  int       `gorm:"not null;default:1;check:quantity > 0"                  json:"quantity"`
	Product   *Product  `gorm:"foreignKey:ProductID"                                   json:"product,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Order struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"          json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;index;not null"      json:"userId"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"   json:"totalAmount"`
	Status      OrderStatus     `gorm:"type:varchar(16);index;not null" json:"status"`
	Items       []OrderItem     `gorm:"foreignKey:OrderID"            json:"orderItems"`
	CreatedAt   time.Time       `gorm:"index"                         json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// OrderItem is immutable once written; Price is the unit price at purchase time.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"               json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null"           json:"orderId"`
	ProductID uuid.UUID       `gorm:"type:uuid;index;not null"           json:"productId"`
	Quantity  int             `gorm:"not null;check:quantity > 0"        json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"        json:"price"`
	Product   *Product        `gorm:"foreignKey:ProductID"               json:"product,omitempty"`
}

type RevokedToken struct {
	JTI       string    `gorm:"primaryKey"      json:"jti"`
	UserID    uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	ExpiresAt time.Time `gorm:"index;not null"  json:"expiresAt"`
}

func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (p *Product) BeforeCreate(tx *gorm.DB) error   { newID(&p.ID); return nil }
func (u *User) BeforeCreate(tx *gorm.DB) error      { newID(&u.ID); return nil }
func (c *Cart) BeforeCreate(tx *gorm.DB) error      { newID(&c.ID); return nil }
func (c *CartItem) BeforeCreate(tx *gorm.DB) error  { newID(&c.ID); return nil }
func (o *Order) BeforeCreate(tx *gorm.DB) error     { newID(&o.ID); return nil }
func (o *OrderItem) BeforeCreate(tx *gorm.DB) error { newID(&o.ID); return nil }

// All lists every persistent model in migration order.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&RevokedToken{},
	}
}
