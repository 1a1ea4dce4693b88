package template

import "fmt"

// NoIndex marks a violation that is not attached to a track row.
const NoIndex = -1

type Code string

const (
	CodeRequired     Code = "required"
	CodeOutOfRange   Code = "out_of_range"
	CodeInvalidColor Code = "invalid_color"
	CodeInvalidRange Code = "invalid_range"
)

// Violation is a single user-fixable problem. Kind and Index locate the
// offending track row; template-level problems leave Kind empty.
type Violation struct {
	Kind    Kind   `json:"kind,omitempty"`
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Kind == "" {
		return fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return fmt.Sprintf("%s[%d].%s: %s", v.Kind, v.Index, v.Field, v.Message)
}

type violations struct {
	kind Kind
	list []Violation
}

func (vs *violations) add(field string, code Code, format string, args ...any) {
	vs.list = append(vs.list, Violation{
		Kind:    vs.kind,
		Index:   NoIndex,
		Field:   field,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}
