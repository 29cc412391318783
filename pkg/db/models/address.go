package models

import (
	"time"

	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

// Address is a Cambodian postal address owned by a user.
type Address struct {
	ID          int64             `gorm:"column:id;primaryKey;autoIncrement"`
	UserID      int64             `gorm:"column:user_id;not null;index"`
	Type        enums.AddressType `gorm:"column:type;not null"`
	FirstName   string            `gorm:"column:first_name;not null"`
	LastName    string            `gorm:"column:last_name;not null"`
	Phone       string            `gorm:"column:phone;not null"`
	HouseNumber *string           `gorm:"column:house_number"`
	Street      *string           `gorm:"column:street"`
	Commune     string            `gorm:"column:commune;not null"`
	District    string            `gorm:"column:district;not null"`
	Province    string            `gorm:"column:province;not null"`
	PostalCode  *string           `gorm:"column:postal_code"`
	IsDefault   bool              `gorm:"column:is_default;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Address) TableName() string { return "addresses" }
