package docs

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidContext wraps every validation failure returned by [Context.Validate].
var ErrInvalidContext = errors.New("invalid context")

// NipLength is the number of digits in a Polish tax id.
const NipLength = 10

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func contextValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return strings.ToLower(f.Name)
			}

			return name
		})

		_ = v.RegisterValidation("nip", func(fl validator.FieldLevel) bool {
			return IsNip(fl.Field().String())
		})

		_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
			_, err := ParseAmount(fl.Field().String())
			return err == nil
		})

		validate = v
	})

	return validate
}

// IsNip reports whether s is a tax id: ten digits, optionally grouped with
// dashes or spaces.
func IsNip(s string) bool {
	return len(NipDigits(s)) == NipLength && strings.Trim(s, "0123456789- ") == ""
}

// NipDigits strips everything but digits.
func NipDigits(s string) string {
	var b strings.Builder

	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Validate checks that the snapshot carries everything a document needs:
// both parties, the business date and at least one line item. Offers also need
// a unit price on every line.
func (c *Context) Validate(kind Kind) error {
	err := contextValidator().Struct(c)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrInvalidContext, describeValidation(verrs))
		}

		return fmt.Errorf("%w: %w", ErrInvalidContext, err)
	}

	_, err = c.BusinessDate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContext, err)
	}

	if kind == KindOffer {
		for _, p := range c.Products {
			if p.UnitPrice == "" {
				return fmt.Errorf("%w: products[%s]: unit price required on offers", ErrInvalidContext, p.LP)
			}
		}
	}

	return nil
}

func describeValidation(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))

	for _, fe := range verrs {
		ns := fe.Namespace()
		if _, after, ok := strings.Cut(ns, "."); ok {
			ns = after
		}

		parts = append(parts, ns+": "+fe.Tag())
	}

	return strings.Join(parts, ", ")
}
