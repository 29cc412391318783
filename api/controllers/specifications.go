package controllers

import (
	"net/http"

	"github.com/angelmondragon/angkor-storefront/api/responses"
	"github.com/angelmondragon/angkor-storefront/api/validators"
	"github.com/angelmondragon/angkor-storefront/internal/specifications"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

type createAttributeRequest struct {
	Name          string   `json:"name" validate:"required,max=100"`
	Code          string   `json:"code" validate:"required,max=64"`
	Unit          *string  `json:"unit" validate:"omitempty,max=32"`
	DataType      string   `json:"data_type" validate:"required,oneof=text number enum"`
	AllowedValues []string `json:"allowed_values" validate:"omitempty,dive,required,max=100"`
	IsFilterable  bool     `json:"is_filterable"`
	SortOrder     int      `json:"sort_order"`
}

type upsertSpecificationRequest struct {
	Value string `json:"value" validate:"required,max=500"`
}

func ListSpecificationAttributes(svc specifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attrs, err := svc.ListAttributes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"attributes": attrs})
	}
}

func AdminCreateSpecificationAttribute(svc specifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createAttributeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		attr, err := svc.CreateAttribute(r.Context(), specifications.CreateAttributeInput{
			Name:          validators.SanitizeString(body.Name, 100),
			Code:          validators.SanitizeString(body.Code, 64),
			Unit:          validators.SanitizeOptional(body.Unit, 32),
			DataType:      enums.SpecDataType(body.DataType),
			AllowedValues: body.AllowedValues,
			IsFilterable:  body.IsFilterable,
			SortOrder:     body.SortOrder,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, attr)
	}
}

// ProductSpecifications returns the effective set: variant values override
// product values attribute by attribute when variant_id is given.
func ProductSpecifications(svc specifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantID, err := validators.ParseOptionalQueryID(r, "variant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		specs, err := svc.Effective(r.Context(), productID, variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"specifications": specs})
	}
}

func AdminUpsertSpecification(svc specifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, attributeID, variantID, err := specificationTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body upsertSpecificationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		spec, err := svc.Upsert(r.Context(), specifications.UpsertInput{
			ProductID:   productID,
			VariantID:   variantID,
			AttributeID: attributeID,
			Value:       body.Value,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, spec)
	}
}

func AdminDeleteSpecification(svc specifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, attributeID, variantID, err := specificationTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), productID, variantID, attributeID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func specificationTarget(r *http.Request) (int64, int64, *int64, error) {
	productID, err := validators.ParseIDParam(r, "productId")
	if err != nil {
		return 0, 0, nil, err
	}
	attributeID, err := validators.ParseIDParam(r, "attributeId")
	if err != nil {
		return 0, 0, nil, err
	}
	variantID, err := validators.ParseOptionalQueryID(r, "variant_id")
	if err != nil {
		return 0, 0, nil, err
	}
	return productID, attributeID, variantID, nil
}
