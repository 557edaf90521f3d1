// Package validate checks tagged structs, reporting failures per field
// under the field's json (or, failing that, yaml) name.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   = validator.New(validator.WithRequiredStructEnabled())
	translator ut.Translator
)

// messages override the stock English translation for the tags users of
// the download form actually hit.
var messages = map[string]func(validator.FieldError) (string, bool){
	"required": func(validator.FieldError) (string, bool) {
		return "This field is required", true
	},
	"min": func(fe validator.FieldError) (string, bool) {
		if fe.Kind() != reflect.Int {
			return "", false
		}
		return "Must be a valid number (at least " + fe.Param() + ")", true
	},
	"oneof": func(fe validator.FieldError) (string, bool) {
		return "Must be one of: " + strings.Join(strings.Fields(fe.Param()), ", "), true
	},
}

func init() {
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("validate: failed to get 'en' translator")
	}
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(fieldName)
}

func fieldName(fld reflect.StructField) string {
	for _, key := range []string{"json", "yaml"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return fld.Name
}

// Check validates val against its tags. Failures come back as
// FieldErrors; any other problem, such as val not being a struct, is
// returned unchanged.
func Check(val any) error {
	err := validate.Struct(val)
	if err == nil {
		return nil
	}

	verrs, ok := errors.AsType[validator.ValidationErrors](err)
	if !ok {
		return err
	}

	fields := make(FieldErrors, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{Field: fe.Field(), Err: message(fe)}
	}
	return fields
}

func message(fe validator.FieldError) string {
	if custom, ok := messages[fe.Tag()]; ok {
		if msg, ok := custom(fe); ok {
			return msg
		}
	}
	return fe.Translate(translator)
}

// FieldError is one field that failed validation.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors lists every field that failed. It marshals as a JSON array.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

// Fields maps field names to their messages.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, f := range fe {
		m[f.Field] = f.Err
	}
	return m
}

// IsFieldErrors reports whether err's chain holds FieldErrors.
func IsFieldErrors(err error) bool {
	_, ok := errors.AsType[FieldErrors](err)
	return ok
}

// GetFieldErrors returns the FieldErrors in err's chain, or nil.
func GetFieldErrors(err error) FieldErrors {
	fe, _ := errors.AsType[FieldErrors](err)
	return fe
}
