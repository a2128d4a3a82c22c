package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCanceled   OrderStatus = "canceled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCanceled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCanceled},
	OrderStatusDelivered:  nil,
	OrderStatusCanceled:   nil,
}

// OrderStatuses lists every recognized status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCanceled,
	}
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

// CanTransitionTo reports whether next is a legal move from s. Staying in
// the same status is always allowed and is treated as a no-op.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	for _, to := range orderTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Address is stored inline on the order with a delivery_ column prefix.
type Address struct {
	Street       string `gorm:"type:varchar(200);not null" json:"street"`
	Number       string `gorm:"type:varchar(20);not null" json:"number"`
	Complement   string `gorm:"type:varchar(100)" json:"complement,omitempty"`
	Neighborhood string `gorm:"type:varchar(100);not null" json:"neighborhood"`
	City         string `gorm:"type:varchar(100);not null" json:"city"`
	State        string `gorm:"type:varchar(50);not null" json:"state"`
	PostalCode   string `gorm:"type:varchar(20);not null" json:"postal_code"`
}

// MissingFields returns the json names of required fields that are blank.
func (a Address) MissingFields() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("street", a.Street)
	check("number", a.Number)
	check("neighborhood", a.Neighborhood)
	check("city", a.City)
	check("state", a.State)
	check("postal_code", a.PostalCode)
	return missing
}

type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	DeliveryAddress Address         `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery_address"`
	OrderedAt       time.Time       `gorm:"not null;index" json:"ordered_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"items"`
	// RESTRICT keeps order history: a user with orders cannot be deleted.
	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"user,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// ItemsTotal recomputes the total from the stored line items.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range o.Items {
		total = total.Add(o.Items[i].Subtotal())
	}
	return total
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	Quantity  int             `gorm:"not null;check:chk_order_items_quantity,quantity >= 1" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"product,omitempty"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
