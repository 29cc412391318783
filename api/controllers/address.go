package controllers

import (
	"net/http"

	"github.com/angelmondragon/angkor-storefront/api/middleware"
	"github.com/angelmondragon/angkor-storefront/api/responses"
	"github.com/angelmondragon/angkor-storefront/api/validators"
	"github.com/angelmondragon/angkor-storefront/internal/address"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

type createAddressRequest struct {
	Type        string  `json:"type" validate:"required,oneof=shipping billing"`
	FirstName   string  `json:"first_name" validate:"required,max=100"`
	LastName    string  `json:"last_name" validate:"required,max=100"`
	Phone       string  `json:"phone" validate:"required,max=32"`
	HouseNumber *string `json:"house_number" validate:"omitempty,max=50"`
	Street      *string `json:"street" validate:"omitempty,max=255"`
	Commune     string  `json:"commune" validate:"required,max=100"`
	District    string  `json:"district" validate:"required,max=100"`
	Province    string  `json:"province" validate:"required,max=100"`
	PostalCode  *string `json:"postal_code" validate:"omitempty,max=20"`
	IsDefault   bool    `json:"is_default"`
}

func ListAddresses(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		list, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"addresses": list})
	}
}

func CreateAddress(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var body createAddressRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Create(r.Context(), userID, address.CreateInput{
			Type:        enums.AddressType(body.Type),
			FirstName:   validators.SanitizeString(body.FirstName, 100),
			LastName:    validators.SanitizeString(body.LastName, 100),
			Phone:       validators.SanitizeString(body.Phone, 32),
			HouseNumber: validators.SanitizeOptional(body.HouseNumber, 50),
			Street:      validators.SanitizeOptional(body.Street, 255),
			Commune:     validators.SanitizeString(body.Commune, 100),
			District:    validators.SanitizeString(body.District, 100),
			Province:    validators.SanitizeString(body.Province, 100),
			PostalCode:  validators.SanitizeOptional(body.PostalCode, 20),
			IsDefault:   body.IsDefault,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func SetDefaultAddress(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		addressID, err := validators.ParseIDParam(r, "addressId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.SetDefault(r.Context(), userID, addressID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func DeleteAddress(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		addressID, err := validators.ParseIDParam(r, "addressId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), userID, addressID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func requireUser(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (int64, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID <= 0 {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return 0, false
	}
	return userID, true
}
