package gateway

import (
	"time"

	"github.com/example/icecreamshop/pkg/models"
	"github.com/example/icecreamshop/pkg/service"
	"github.com/shopspring/decimal"
)

// Money is rendered as a fixed two decimal string.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type userView struct {
	ID        uint        `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

func newUserView(u *models.User) userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type productView struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProductView(p *models.Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money(p.Price),
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type productDetailView struct {
	productView
	Reviews []reviewView `json:"reviews"`
}

func newProductDetailView(p *models.Product) productDetailView {
	reviews := make([]reviewView, 0, len(p.Reviews))
	for i := range p.Reviews {
		reviews = append(reviews, newReviewView(&p.Reviews[i]))
	}
	return productDetailView{productView: newProductView(p), Reviews: reviews}
}

type productPageView struct {
	TotalItems  int64         `json:"totalItems"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Products    []productView `json:"products"`
}

func newProductPageView(page service.Page[models.Product]) productPageView {
	products := make([]productView, 0, len(page.Items))
	for i := range page.Items {
		products = append(products, newProductView(&page.Items[i]))
	}
	return productPageView{
		TotalItems:  page.TotalItems,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		Products:    products,
	}
}

type reviewerView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type reviewView struct {
	ID        uint          `json:"id"`
	ProductID uint          `json:"product_id"`
	Rating    int           `json:"rating"`
	Comment   *string       `json:"comment"`
	CreatedAt time.Time     `json:"created_at"`
	User      *reviewerView `json:"user,omitempty"`
}

func newReviewView(r *models.Review) reviewView {
	v := reviewView{
		ID:        r.ID,
		ProductID: r.ProductID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
	if r.User != nil {
		v.User = &reviewerView{ID: r.User.ID, Name: r.User.Name}
	}
	return v
}

type reviewPageView struct {
	TotalItems  int64        `json:"totalItems"`
	TotalPages  int          `json:"totalPages"`
	CurrentPage int          `json:"currentPage"`
	Reviews     []reviewView `json:"reviews"`
}

func newReviewPageView(page service.Page[models.Review]) reviewPageView {
	reviews := make([]reviewView, 0, len(page.Items))
	for i := range page.Items {
		reviews = append(reviews, newReviewView(&page.Items[i]))
	}
	return reviewPageView{
		TotalItems:  page.TotalItems,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		Reviews:     reviews,
	}
}

type productSummary struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price,omitempty"`
	ImageURL string `json:"image_url"`
}

type cartItemView struct {
	ID        uint            `json:"id"`
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice string          `json:"unit_price"`
	Subtotal  string          `json:"subtotal"`
	Product   *productSummary `json:"product,omitempty"`
}

type cartView struct {
	ID     uint           `json:"id"`
	UserID uint           `json:"user_id"`
	Items  []cartItemView `json:"items"`
	Total  string         `json:"total"`
}

func newCartView(cart *models.Cart) cartView {
	items := make([]cartItemView, 0, len(cart.Items))
	for i := range cart.Items {
		item := &cart.Items[i]
		v := cartItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: money(item.UnitPrice),
			Subtotal:  money(item.Subtotal()),
		}
		if item.Product != nil {
			v.Product = &productSummary{
				ID:       item.Product.ID,
				Name:     item.Product.Name,
				Price:    money(item.Product.Price),
				ImageURL: item.Product.ImageURL,
			}
		}
		items = append(items, v)
	}
	return cartView{ID: cart.ID, UserID: cart.UserID, Items: items, Total: money(cart.Total())}
}

type orderItemView struct {
	ID        uint            `json:"id"`
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice string          `json:"unit_price"`
	Subtotal  string          `json:"subtotal"`
	Product   *productSummary `json:"product,omitempty"`
}

type orderOwnerView struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type orderView struct {
	ID              uint               `json:"id"`
	UserID          uint               `json:"user_id"`
	Status          models.OrderStatus `json:"status"`
	Total           string             `json:"total"`
	DeliveryAddress models.Address     `json:"delivery_address"`
	OrderedAt       time.Time          `json:"ordered_at"`
	Items           []orderItemView    `json:"items"`
	User            *orderOwnerView    `json:"user,omitempty"`
}

func newOrderView(o *models.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for i := range o.Items {
		item := &o.Items[i]
		v := orderItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: money(item.UnitPrice),
			Subtotal:  money(item.Subtotal()),
		}
		if item.Product != nil {
			v.Product = &productSummary{
				ID:       item.Product.ID,
				Name:     item.Product.Name,
				ImageURL: item.Product.ImageURL,
			}
		}
		items = append(items, v)
	}

	v := orderView{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		Total:           money(o.Total),
		DeliveryAddress: o.DeliveryAddress,
		OrderedAt:       o.OrderedAt,
		Items:           items,
	}
	if o.User != nil {
		v.User = &orderOwnerView{ID: o.User.ID, Name: o.User.Name, Email: o.User.Email}
	}
	return v
}

type orderPageView struct {
	TotalItems  int64       `json:"totalItems"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	Orders      []orderView `json:"orders"`
}

func newOrderPageView(page service.Page[models.Order]) orderPageView {
	orders := make([]orderView, 0, len(page.Items))
	for i := range page.Items {
		orders = append(orders, newOrderView(&page.Items[i]))
	}
	return orderPageView{
		TotalItems:  page.TotalItems,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		Orders:      orders,
	}
}
