package handler

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	monthRegex       = regexp.MustCompile(`^(?:[1-9]|1[0-2])$`)
	positiveIntRegex = regexp.MustCompile(`^[1-9][0-9]*$`)
	postalCodeRegex  = regexp.MustCompile(`^[0-9]{5}$`)

	registerOnce sync.Once
)

// RegisterValidators installs the custom rules on gin's validator engine
// and makes violations report JSON field names. Safe to call repeatedly.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		_ = v.RegisterValidation("frpostalcode", func(fl validator.FieldLevel) bool {
			return postalCodeRegex.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("month", func(fl validator.FieldLevel) bool {
			m := fl.Field().Int()
			return m >= 1 && m <= 12
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
}

// validateStruct runs the same engine on a struct populated outside
// ShouldBindJSON (partial updates)
func validateStruct(obj interface{}) error {
	return binding.Validator.ValidateStruct(obj)
}

// ValidateNewUser applies the POST /api/user rules to an account created
// elsewhere, such as the CLI. It returns the per-field messages, or nil.
func ValidateNewUser(req CreateUserRequest) map[string]interface{} {
	RegisterValidators()
	err := validateStruct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return validationDetails(verrs)
	}
	return map[string]interface{}{"": err.Error()}
}
