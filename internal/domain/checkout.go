package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type CheckoutData struct {
	CustomerName    string         `json:"customer_name" validate:"required,max=255"`
	CustomerEmail   string         `json:"customer_email" validate:"required,email,max=255"`
	CustomerPhone   string         `json:"customer_phone" validate:"required,max=32"`
	DeliveryAddress string         `json:"delivery_address" validate:"required_unless=DeliveryMethod pickup,max=1000"`
	DeliveryMethod  DeliveryMethod `json:"delivery_method" validate:"required,oneof=pickup courier post"`
	PaymentMethod   PaymentMethod  `json:"payment_method" validate:"required,oneof=cash card online"`
	Notes           string         `json:"notes" validate:"max=1000"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Normalize trims surrounding whitespace and lower-cases the enum fields.
func (d *CheckoutData) Normalize() {
	d.CustomerName = strings.TrimSpace(d.CustomerName)
	d.CustomerEmail = strings.ToLower(strings.TrimSpace(d.CustomerEmail))
	d.CustomerPhone = strings.TrimSpace(d.CustomerPhone)
	d.DeliveryAddress = strings.TrimSpace(d.DeliveryAddress)
	d.DeliveryMethod = DeliveryMethod(strings.ToLower(strings.TrimSpace(string(d.DeliveryMethod))))
	d.PaymentMethod = PaymentMethod(strings.ToLower(strings.TrimSpace(string(d.PaymentMethod))))
	d.Notes = strings.TrimSpace(d.Notes)
}

func (d *CheckoutData) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("could not validate checkout data: %w", err)
	}
	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields[fe.Field()] = describeFieldError(fe)
	}
	return verr
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_unless":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}
