package models

import (
	"sort"
	"strings"
)

// ValidationErrors maps a field name (or an aggregate key such as "answers" or
// "visaFieldsFilledIn") to the reasons that field failed. It satisfies error so
// it can travel from model validation up to the handler layer, which renders it
// as a 422 response.
type ValidationErrors map[string][]string

func (v ValidationErrors) Add(field, message string) {
	v[field] = append(v[field], message)
}

func (v ValidationErrors) Merge(other ValidationErrors) {
	for field, messages := range other {
		v[field] = append(v[field], messages...)
	}
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(v))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(v[field], "; "))
	}
	return strings.Join(parts, ", ")
}

// OrNil returns nil when no errors were collected, so callers can write
// `return errs.OrNil()`.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
