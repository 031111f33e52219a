package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// unitKindPattern - допустимые имена типов единиц (используются в именах файлов и ключах)
var unitKindPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

// indicatorPattern - допустимые имена индикаторов
var indicatorPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]{0,127}$`)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("unitkind", func(fl validator.FieldLevel) bool {
		return unitKindPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("indicator", func(fl validator.FieldLevel) bool {
		return indicatorPattern.MatchString(fl.Field().String())
	})
}

// Validate - валидация структуры
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// ValidateVar - валидация отдельного значения по тегу
func ValidateVar(v interface{}, tag string) error {
	return validate.Var(v, tag)
}
