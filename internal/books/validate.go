package books

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"bookhub/pkg/domain"
)

// Form messages reported by ValidateInput.
const (
	MsgRequiredFields = "Please fill in all required fields"
	MsgInvalidYear    = "Please enter a valid year"
	MsgInvalidGenre   = "Please select a valid genre"

	minPublishedYear = 1000
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	_ = validate.RegisterValidation("bookyear", validateBookYear)
	_ = validate.RegisterValidation("genre", validateGenre)
}

// validateBookYear accepts 1000 through next year.
func validateBookYear(fl validator.FieldLevel) bool {
	year := fl.Field().Int()
	return year >= minPublishedYear && year <= int64(time.Now().Year()+1)
}

func validateGenre(fl validator.FieldLevel) bool {
	return domain.IsGenre(fl.Field().String())
}

// ValidateInput checks form data before it reaches a Store and returns the
// message for the first failing rule. Missing fields win over a bad year,
// which wins over a bad genre.
func ValidateInput(in domain.BookInput) (string, bool) {
	err := validate.Struct(in)
	if err == nil {
		return "", true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return MsgRequiredFields, false
	}
	msg := ""
	rank := 0
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			return MsgRequiredFields, false
		case "bookyear":
			if rank < 2 {
				msg, rank = MsgInvalidYear, 2
			}
		case "genre":
			if rank < 1 {
				msg, rank = MsgInvalidGenre, 1
			}
		}
	}
	if msg == "" {
		msg = MsgRequiredFields
	}
	return msg, false
}
