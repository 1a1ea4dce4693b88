// Package draft assembles the batch draft generation request sent to the
// backend. Building is pure: it never performs I/O and either returns a fully
// populated Request or every problem found.
package draft

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/draftdesk/draftdesk-agent/internal/crop"
)

const (
	FieldDraftFolder = "draft_folder"
	FieldVideoDir    = "video_dir"
	FieldAudioDir    = "audio_dir"
	FieldCrop        = "image_crop_settings"
)

// Input is what the user selected for one generation.
type Input struct {
	VideoDir    string          `json:"video_dir"`
	AudioDir    string          `json:"audio_dir"`
	DraftFolder string          `json:"draft_folder"`
	DraftName   string          `json:"draft_name,omitempty"`
	ImageDir    string          `json:"image_dir,omitempty"`
	TemplateID  string          `json:"template_id,omitempty"`
	Crop        *crop.Rectangle `json:"crop,omitempty"`
}

// Request is the body of POST /generate_batch_draft. Optional fields are nil
// when not provided; the backend applies defaults only to absent fields.
type Request struct {
	VideoDir          string        `json:"video_dir"`
	AudioDir          string        `json:"audio_dir"`
	DraftFolder       string        `json:"draft_folder"`
	DraftName         *string       `json:"draft_name,omitempty"`
	ImageDir          *string       `json:"image_dir,omitempty"`
	TemplateID        *string       `json:"template_id,omitempty"`
	ImageCropSettings *crop.Corners `json:"image_crop_settings,omitempty"`
}

// Result is the output of a successful generation.
type Result struct {
	DraftID string `json:"draft_id"`
}

// Build validates in and assembles a Request. All rules are evaluated so the
// caller can report every problem at once.
func Build(in Input) (Request, []Violation) {
	var vs []Violation

	if isBlank(in.DraftFolder) {
		vs = append(vs, Violation{
			Code:    CodeMissingDraftFolder,
			Field:   FieldDraftFolder,
			Message: "draft folder is not configured; set it in settings",
		})
	} else if err := checkDir(in.DraftFolder); err != nil {
		vs = append(vs, pathViolation(FieldDraftFolder, err))
	}

	if isBlank(in.VideoDir) {
		vs = append(vs, Violation{Code: CodeMissingVideoDir, Field: FieldVideoDir, Message: "select a video directory"})
	} else if err := checkDir(in.VideoDir); err != nil {
		vs = append(vs, pathViolation(FieldVideoDir, err))
	}

	if isBlank(in.AudioDir) {
		vs = append(vs, Violation{Code: CodeMissingAudioDir, Field: FieldAudioDir, Message: "select an audio directory"})
	} else if err := checkDir(in.AudioDir); err != nil {
		vs = append(vs, pathViolation(FieldAudioDir, err))
	}

	var corners *crop.Corners
	if in.Crop != nil && in.Crop.Selected() {
		c, err := crop.Normalize(*in.Crop)
		if err != nil {
			vs = append(vs, Violation{Code: CodeInvalidCropRegion, Field: FieldCrop, Message: err.Error()})
		} else {
			corners = &c
		}
	}

	if len(vs) > 0 {
		return Request{}, vs
	}

	return Request{
		VideoDir:          in.VideoDir,
		AudioDir:          in.AudioDir,
		DraftFolder:       in.DraftFolder,
		DraftName:         optional(in.DraftName),
		ImageDir:          optional(in.ImageDir),
		TemplateID:        optional(in.TemplateID),
		ImageCropSettings: corners,
	}, nil
}

func pathViolation(field string, err error) Violation {
	return Violation{Code: CodeInvalidPath, Field: field, Message: err.Error()}
}

// checkDir requires an absolute path without traversal segments.
func checkDir(dir string) error {
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("%s cannot contain path traversal", dir)
		}
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("%s is not an absolute path", dir)
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func optional(s string) *string {
	if isBlank(s) {
		return nil
	}
	return &s
}
