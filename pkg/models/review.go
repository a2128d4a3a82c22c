package models

import (
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reviews_user_product" json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_reviews_user_product;index" json:"product_id"`
	Rating    int       `gorm:"not null;check:chk_reviews_rating,rating BETWEEN 1 AND 5" json:"rating"`
	Comment   *string   `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user,omitempty"`
}

func (Review) TableName() string {
	return "reviews"
}
