package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email           string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash    string    `gorm:"not null"                 json:"-"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Role            Role      `gorm:"type:text;not null;default:'user'" json:"role"`
	IsEmailVerified bool      `gorm:"default:false"            json:"is_email_verified"`
	IsActive        bool      `gorm:"default:true"             json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"       json:"id"`
	Name        string    `gorm:"not null;index"                 json:"name"`
	Description string    `json:"description"`
	Category    string    `gorm:"index"                          json:"category"`
	Price       float64   `gorm:"not null;check:price >= 0"      json:"price"`
	Stock       int       `gorm:"not null;check:stock >= 0"      json:"stock"`
	Rating      float64   `gorm:"default:0"                      json:"rating"`
	Images      string    `json:"images"`
	Active      bool      `gorm:"default:true;index"             json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CartItem keeps the price the product had when it entered the cart.
// One row per (user, product); duplicate adds bump the quantity.
type CartItem struct {
	ID        uint      `gorm:"primaryKey"                                     json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:ux_cart_user_product"      json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:ux_cart_user_product"      json:"product_id"`
	Quantity  int       `gorm:"not null;check:quantity > 0"                    json:"quantity"`
	Price     float64   `gorm:"not null"                                       json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentDetails is embedded into Order and mutated only by the
// payment handlers (intent creation, webhook dispatch, refunds).
type PaymentDetails struct {
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
	ClientSecret    string     `json:"client_secret,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	Error           string     `json:"error,omitempty"`
	RefundID        string     `json:"refund_id,omitempty"`
	RefundStatus    string     `json:"refund_status,omitempty"`
	RefundReason    string     `json:"refund_reason,omitempty"`
	RefundedAt      *time.Time `json:"refunded_at,omitempty"`
}

type Order struct {
	ID            uint           `gorm:"primaryKey;autoIncrement"                     json:"id"`
	UserID        uint           `gorm:"not null;index"                               json:"user_id"`
	TotalAmount   float64        `gorm:"not null"                                     json:"total_amount"`
	Status        OrderStatus    `gorm:"type:text;not null;default:'pending';index"   json:"status"`
	PaymentStatus PaymentStatus  `gorm:"type:text;not null;default:'pending'"         json:"payment_status"`
	PaymentMethod string         `json:"payment_method"`
	Payment       PaymentDetails `gorm:"embedded;embeddedPrefix:payment_"             json:"payment_details"`

	ShippingStreet  string `json:"shipping_street"`
	ShippingCity    string `json:"shipping_city"`
	ShippingZip     string `json:"shipping_zip"`
	ShippingCountry string `json:"shipping_country"`

	Items   []OrderItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	History []OrderStatusEvent `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"history,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderItem snapshots the product at order time; later catalog price
// changes never touch it.
type OrderItem struct {
	ID          uint    `gorm:"primaryKey"                                      json:"id"`
	OrderID     uint    `gorm:"not null;index;uniqueIndex:ux_order_product"     json:"order_id"`
	ProductID   uint    `gorm:"not null;uniqueIndex:ux_order_product"           json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `gorm:"not null;check:quantity > 0"                     json:"quantity"`
	Price       float64 `gorm:"not null"                                        json:"price"`
}

// OrderStatusEvent is the append-only transition log. Rows are only
// ever inserted, one per applied transition.
type OrderStatusEvent struct {
	ID        uint        `gorm:"primaryKey"     json:"id"`
	OrderID   uint        `gorm:"not null;index" json:"order_id"`
	From      OrderStatus `gorm:"type:text"      json:"from"`
	To        OrderStatus `gorm:"type:text"      json:"to"`
	CreatedAt time.Time   `json:"created_at"`
}

type Review struct {
	ID        uint      `gorm:"primaryKey"                                      json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:ux_review_user_product"     json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:ux_review_user_product"     json:"product_id"`
	Rating    int       `gorm:"not null;check:rating >= 1 AND rating <= 5"      json:"rating"`
	Comment   string    `json:"comment"`
	Images    string    `json:"images"`
	CreatedAt time.Time `json:"created_at"`
}

type WishlistItem struct {
	ID        uint      `gorm:"primaryKey"                                      json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:ux_wishlist_user_product"   json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:ux_wishlist_user_product"   json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}
