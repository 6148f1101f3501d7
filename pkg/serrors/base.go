package serrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// BaseError is a coded error. TemplateData carries the details rendered
// after the message as sorted key=value pairs.
type BaseError struct {
	Code         string
	Message      string
	TemplateData map[string]string
}

func NewError(code, message string) *BaseError {
	return &BaseError{
		Code:    code,
		Message: message,
	}
}

func (e *BaseError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if len(e.TemplateData) == 0 {
		return msg
	}
	keys := make([]string, 0, len(e.TemplateData))
	for k := range e.TemplateData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+e.TemplateData[k])
	}
	return fmt.Sprintf("%s (%s)", msg, strings.Join(pairs, " "))
}

// Is matches any BaseError carrying the same code, so wrapped copies created
// through WithTemplateData still satisfy errors.Is against the sentinel.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	clone := *e
	clone.TemplateData = make(map[string]string, len(data))
	for k, v := range data {
		clone.TemplateData[k] = v
	}
	return &clone
}

// IsCode reports whether err wraps a BaseError with the given code.
func IsCode(err error, code string) bool {
	var be *BaseError
	if !errors.As(err, &be) {
		return false
	}
	return be.Code == code
}
