package draft

import "fmt"

type Code string

const (
	CodeMissingDraftFolder Code = "MissingDraftFolder"
	CodeMissingVideoDir    Code = "MissingVideoDir"
	CodeMissingAudioDir    Code = "MissingAudioDir"
	CodeInvalidCropRegion  Code = "InvalidCropRegion"
	CodeInvalidPath        Code = "InvalidPath"
)

// Surface tells the UI where the user fixes a violation.
type Surface string

const (
	SurfaceSettings Surface = "settings"
	SurfaceForm     Surface = "form"
)

type Violation struct {
	Code    Code   `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Surface returns SurfaceSettings for problems with the draft folder, which is
// a one-time app setting rather than a per-request selection.
func (v Violation) Surface() Surface {
	if v.Field == FieldDraftFolder {
		return SurfaceSettings
	}
	return SurfaceForm
}

func (v Violation) String() string {
	return fmt.Sprintf("%s (%s): %s", v.Code, v.Field, v.Message)
}

// Has reports whether any violation carries code.
func Has(vs []Violation, code Code) bool {
	for _, v := range vs {
		if v.Code == code {
			return true
		}
	}
	return false
}
