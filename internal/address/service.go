// Package address manages Cambodian shipping and billing addresses. Each
// (user, type) pair has at most one default address.
package address

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

var (
	phonePattern  = regexp.MustCompile(`^(?:\+?855|0)[1-9][0-9]{7,8}$`)
	postalPattern = regexp.MustCompile(`^[0-9]{5,6}$`)
)

type Service interface {
	List(ctx context.Context, userID int64) ([]AddressDTO, error)
	Create(ctx context.Context, userID int64, input CreateInput) (*AddressDTO, error)
	SetDefault(ctx context.Context, userID, addressID int64) (*AddressDTO, error)
	Delete(ctx context.Context, userID, addressID int64) error
}

// CreateInput is a new address. The first address of a type becomes the
// default regardless of IsDefault.
type CreateInput struct {
	Type        enums.AddressType
	FirstName   string
	LastName    string
	Phone       string
	HouseNumber *string
	Street      *string
	Commune     string
	District    string
	Province    string
	PostalCode  *string
	IsDefault   bool
}

type AddressDTO struct {
	ID          int64             `json:"id"`
	Type        enums.AddressType `json:"type"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Phone       string            `json:"phone"`
	HouseNumber *string           `json:"house_number,omitempty"`
	Street      *string           `json:"street,omitempty"`
	Commune     string            `json:"commune"`
	District    string            `json:"district"`
	Province    string            `json:"province"`
	PostalCode  *string           `json:"postal_code,omitempty"`
	IsDefault   bool              `json:"is_default"`
}

func newAddressDTO(row models.Address) AddressDTO {
	return AddressDTO{
		ID:          row.ID,
		Type:        row.Type,
		FirstName:   row.FirstName,
		LastName:    row.LastName,
		Phone:       row.Phone,
		HouseNumber: row.HouseNumber,
		Street:      row.Street,
		Commune:     row.Commune,
		District:    row.District,
		Province:    row.Province,
		PostalCode:  row.PostalCode,
		IsDefault:   row.IsDefault,
	}
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	logg     *logger.Logger
}

func NewService(repo *Repository, dbClient *db.Client, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, dbClient: dbClient, logg: logg}, nil
}

func (s *service) List(ctx context.Context, userID int64) ([]AddressDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, newAddressDTO(row))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, userID int64, input CreateInput) (*AddressDTO, error) {
	row, err := normalize(userID, input)
	if err != nil {
		return nil, err
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.LockByUserAndType(ctx, userID, row.Type)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock addresses")
		}
		row.IsDefault = input.IsDefault || len(existing) == 0
		if row.IsDefault {
			if err := repo.ClearDefault(ctx, userID, row.Type, 0); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
			}
		}
		if err := repo.Create(ctx, row); err != nil {
			return translateWriteError(err, "create address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := newAddressDTO(*row)
	return &dto, nil
}

// SetDefault makes addressID the default for its type. The old default is
// cleared in the same transaction.
func (s *service) SetDefault(ctx context.Context, userID, addressID int64) (*AddressDTO, error) {
	var target *models.Address
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		target, err = repo.FindOwned(ctx, userID, addressID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
		}
		if _, err := repo.LockByUserAndType(ctx, userID, target.Type); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock addresses")
		}
		if err := repo.ClearDefault(ctx, userID, target.Type, target.ID); err != nil {
			return translateWriteError(err, "clear default address")
		}
		if err := repo.MarkDefault(ctx, target.ID); err != nil {
			return translateWriteError(err, "set default address")
		}
		target.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"address_id": addressID, "address_type": string(target.Type)})
	s.logg.Info(logCtx, "default address changed")
	dto := newAddressDTO(*target)
	return &dto, nil
}

// Delete removes the address. When it was the default, the remaining address
// of that type with the lowest id takes over.
func (s *service) Delete(ctx context.Context, userID, addressID int64) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		target, err := repo.FindOwned(ctx, userID, addressID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
		}
		remaining, err := repo.LockByUserAndType(ctx, userID, target.Type)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock addresses")
		}
		if err := repo.Delete(ctx, target.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
		}
		if !target.IsDefault {
			return nil
		}
		for _, candidate := range remaining {
			if candidate.ID == target.ID {
				continue
			}
			if err := repo.MarkDefault(ctx, candidate.ID); err != nil {
				return translateWriteError(err, "promote default address")
			}
			break
		}
		return nil
	})
}

func normalize(userID int64, input CreateInput) (*models.Address, error) {
	details := map[string]string{}
	if !input.Type.IsValid() {
		details["type"] = "must be shipping or billing"
	}
	row := &models.Address{
		UserID:      userID,
		Type:        input.Type,
		FirstName:   strings.TrimSpace(input.FirstName),
		LastName:    strings.TrimSpace(input.LastName),
		Phone:       normalizePhone(input.Phone),
		HouseNumber: trimmedOrNil(input.HouseNumber),
		Street:      trimmedOrNil(input.Street),
		Commune:     strings.TrimSpace(input.Commune),
		District:    strings.TrimSpace(input.District),
		PostalCode:  trimmedOrNil(input.PostalCode),
	}
	if row.FirstName == "" {
		details["first_name"] = "required"
	}
	if row.LastName == "" {
		details["last_name"] = "required"
	}
	if !phonePattern.MatchString(row.Phone) {
		details["phone"] = "must be a Cambodian phone number"
	}
	if row.Commune == "" {
		details["commune"] = "required"
	}
	if row.District == "" {
		details["district"] = "required"
	}
	if province, ok := CanonicalProvince(input.Province); ok {
		row.Province = province
	} else if strings.TrimSpace(input.Province) == "" {
		details["province"] = "required"
	} else {
		details["province"] = "unknown province"
	}
	if row.PostalCode != nil && !postalPattern.MatchString(*row.PostalCode) {
		details["postal_code"] = "must be 5 or 6 digits"
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid address").WithDetails(details)
	}
	return row, nil
}

func normalizePhone(raw string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func translateWriteError(err error, msg string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "default address changed concurrently; retry")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
