package constants

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

type ContextKey string

const (
	TxKey   ContextKey = "tx"
	PoolKey ContextKey = "pool"
)

// Validate is the shared validator instance; validator caches struct metadata per instance.
var Validate = validator.New(validator.WithRequiredStructEnabled())

// Translator renders validator field errors as English sentences.
var Translator = newTranslator()

func newTranslator() ut.Translator {
	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator(locale.Locale())
	if err := entranslations.RegisterDefaultTranslations(Validate, trans); err != nil {
		panic(err)
	}
	return trans
}

// ValidationMessage joins the translated field errors of err in field order.
// Errors that did not come from the validator render as err.Error().
func ValidationMessage(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err.Error()
	}
	translated := fields.Translate(Translator)
	keys := make([]string, 0, len(translated))
	for k := range translated {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, translated[k])
	}
	return strings.Join(msgs, "; ")
}
