package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/carelink/healthcare-identity/internal/domain"
	apperrors "github.com/carelink/healthcare-identity/pkg/util/errorutil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind parses the JSON body into dst and validates its tags. The first failing
// field is reported as a domain.FieldError.
func bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return validateStruct(dst)
}

func validateStruct(dst interface{}) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return domain.NewFieldError(verrs[0].Field(), describe(verrs[0]))
	}
	return apperrors.NewValidationError("invalid payload", nil)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "numeric":
		return "must contain digits only"
	case "datetime":
		return "must be a date formatted as " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

// ok writes a success envelope merged with fields.
func ok(c *fiber.Ctx, message string, fields fiber.Map) error {
	body := fiber.Map{"success": true, "message": message}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(body)
}

func parseKind(raw string) (domain.IdentityKind, error) {
	kind, valid := domain.ParseIdentityKind(raw)
	if !valid {
		return "", domain.NewFieldError("kind", "must be one of PATIENT, DOCTOR, ADMIN")
	}
	return kind, nil
}
