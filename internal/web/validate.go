// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package web

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/samber/oops"
)

// requestValidator adapts validator/v10 to echo.Validator.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return oops.Code(CodeValidationFailed).
				With("fields", fields).
				Errorf("missing or invalid fields: %s", strings.Join(fields, ", "))
		}
		return oops.Code(CodeValidationFailed).Wrap(err)
	}
	return nil
}

// bindAndValidate decodes the request body into dst and validates it. The
// decoder's error is kept out of the chain so its text never reaches the
// client.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return oops.Code(CodeBadRequest).With("cause", err.Error()).Errorf("malformed request body")
	}
	return c.Validate(dst)
}

var _ echo.Validator = (*requestValidator)(nil)
