// Package validation wraps go-playground/validator with the rules shared by
// the catalog and orders request bodies.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/joao-fontenele/caicara-stock/internal/domain"
)

// Scalar holds the raw text of a JSON string or number, so "9,90", "9.90"
// and 9.9 all reach the price rule unchanged.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	*s = Scalar(data)
	return nil
}

type Validator struct {
	v *validatorv10.Validate
}

func New() *Validator {
	v := validatorv10.New(validatorv10.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)

	must(v.RegisterValidation("price", validatePrice))
	must(v.RegisterValidation("quantity", validateQuantity))
	must(v.RegisterValidation("order_status", validateOrderStatus))
	must(v.RegisterValidation("date", validateDate))

	return &Validator{v: v}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Struct validates s and returns a *domain.ValidationError keyed by json
// field path (e.g. "items[0].quantity") when any rule fails.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validatorv10.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	ve := &domain.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		ve.Fields[fieldPath(fe)] = message(fe)
	}
	return ve
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	default:
		return name
	}
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validatorv10.FieldError) string {
	if _, path, ok := strings.Cut(fe.Namespace(), "."); ok {
		return path
	}
	return fe.Field()
}

func message(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + fe.Param()
	case "price":
		return "must be a non-negative number below 100000000"
	case "quantity":
		return "must be a non-negative integer"
	case "order_status":
		return "must be one of pending, completed, cancelled"
	case "date":
		return "must be a date formatted YYYY-MM-DD or DD/MM/YY"
	default:
		return "failed the " + fe.Tag() + " rule"
	}
}

func validatePrice(fl validatorv10.FieldLevel) bool {
	_, err := domain.ParsePrice(fl.Field().String())
	return err == nil
}

func validateQuantity(fl validatorv10.FieldLevel) bool {
	_, err := domain.ParseQuantity(fl.Field().String())
	return err == nil
}

func validateOrderStatus(fl validatorv10.FieldLevel) bool {
	_, err := domain.ParseOrderStatus(fl.Field().String())
	return err == nil
}

func validateDate(fl validatorv10.FieldLevel) bool {
	_, err := domain.ParseDate(fl.Field().String())
	return err == nil
}
