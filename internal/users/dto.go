package users

import (
	"strings"
	"time"

	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
)

// UserDTO is the transport shape of a customer.
type UserDTO struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email     string
	FirstName string
	LastName  string
	Phone     *string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
	}
}

// ToModel normalizes the email and names before insert.
func (d CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Email:     strings.ToLower(strings.TrimSpace(d.Email)),
		FirstName: strings.TrimSpace(d.FirstName),
		LastName:  strings.TrimSpace(d.LastName),
		Phone:     d.Phone,
	}
}

// FullName joins first and last name, skipping blanks.
func (u UserDTO) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
