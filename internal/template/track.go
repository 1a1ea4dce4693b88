package template

import (
	"fmt"
	"regexp"
	"strings"
)

type Kind string

const (
	KindText   Kind = "text"
	KindEffect Kind = "effect"
	KindFilter Kind = "filter"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindText, KindEffect, KindFilter:
		return k, nil
	default:
		return "", fmt.Errorf("unknown track kind %q", s)
	}
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Track is implemented by the three overlay types.
type Track interface {
	Kind() Kind
	Range() TimeRange
	Validate() []Violation
}

// TimeRange is measured in seconds. When IsFullDuration is set, Start and End
// are advisory and the backend stretches the overlay over the host clip.
type TimeRange struct {
	Start          float64 `json:"start" yaml:"start"`
	End            float64 `json:"end" yaml:"end"`
	IsFullDuration bool    `json:"is_full_duration,omitempty" yaml:"is_full_duration,omitempty"`
}

func (r TimeRange) Range() TimeRange {
	return r
}

func (r TimeRange) validate(vs *violations) {
	if !(r.Start >= 0) {
		vs.add("start", CodeOutOfRange, "start must be >= 0, got %g", r.Start)
	}
	if !r.IsFullDuration && !(r.End > r.Start) {
		vs.add("end", CodeInvalidRange, "end (%g) must be greater than start (%g)", r.End, r.Start)
	}
}

// TextTrack is a timed text overlay. TransformX/TransformY are offsets from the
// viewport centre as a fraction of its size, not pixels.
type TextTrack struct {
	TimeRange  `yaml:",inline"`
	Text       string   `json:"text" yaml:"text"`
	FontFamily string   `json:"font,omitempty" yaml:"font,omitempty"`
	FontSize   float64  `json:"font_size" yaml:"font_size"`
	FontColor  string   `json:"font_color" yaml:"font_color"`
	FontAlpha  *float64 `json:"font_alpha,omitempty" yaml:"font_alpha,omitempty"`
	Bold       bool     `json:"bold,omitempty" yaml:"bold,omitempty"`
	Italic     bool     `json:"italic,omitempty" yaml:"italic,omitempty"`
	Underline  bool     `json:"underline,omitempty" yaml:"underline,omitempty"`
	TransformX *float64 `json:"transform_x,omitempty" yaml:"transform_x,omitempty"`
	TransformY *float64 `json:"transform_y,omitempty" yaml:"transform_y,omitempty"`
	Vertical   bool     `json:"vertical,omitempty" yaml:"vertical,omitempty"`
}

func (TextTrack) Kind() Kind { return KindText }

// Validate reports every violated field at once.
func (t TextTrack) Validate() []Violation {
	vs := &violations{kind: KindText}
	t.TimeRange.validate(vs)

	if strings.TrimSpace(t.Text) == "" {
		vs.add("text", CodeRequired, "text is required")
	}
	if !(t.FontSize > 0) {
		vs.add("font_size", CodeOutOfRange, "font size must be positive, got %g", t.FontSize)
	}
	switch {
	case t.FontColor == "":
		vs.add("font_color", CodeRequired, "font color is required")
	case !hexColor.MatchString(t.FontColor):
		vs.add("font_color", CodeInvalidColor, "font color %q is not #RRGGBB", t.FontColor)
	}
	if t.FontAlpha != nil && !inRange(*t.FontAlpha, 0, 1) {
		vs.add("font_alpha", CodeOutOfRange, "font alpha must be within [0,1], got %g", *t.FontAlpha)
	}
	if t.TransformX != nil && !inRange(*t.TransformX, -1, 1) {
		vs.add("transform_x", CodeOutOfRange, "transform x must be within [-1,1], got %g", *t.TransformX)
	}
	if t.TransformY != nil && !inRange(*t.TransformY, -1, 1) {
		vs.add("transform_y", CodeOutOfRange, "transform y must be within [-1,1], got %g", *t.TransformY)
	}
	return vs.list
}

func (t TextTrack) clone() TextTrack {
	c := t
	c.FontAlpha = cloneFloat(t.FontAlpha)
	c.TransformX = cloneFloat(t.TransformX)
	c.TransformY = cloneFloat(t.TransformY)
	return c
}

// EffectTrack applies a named backend effect. TrackName is an optional layer
// grouping hint.
type EffectTrack struct {
	TimeRange  `yaml:",inline"`
	EffectType string `json:"effect_type" yaml:"effect_type"`
	TrackName  string `json:"track_name,omitempty" yaml:"track_name,omitempty"`
}

func (EffectTrack) Kind() Kind { return KindEffect }

func (t EffectTrack) Validate() []Violation {
	return validateOverlay(KindEffect, t.TimeRange, t.EffectType)
}

// FilterTrack has the same shape as EffectTrack but the backend applies it
// through its filter pipeline.
type FilterTrack struct {
	TimeRange  `yaml:",inline"`
	EffectType string `json:"effect_type" yaml:"effect_type"`
	TrackName  string `json:"track_name,omitempty" yaml:"track_name,omitempty"`
}

func (FilterTrack) Kind() Kind { return KindFilter }

func (t FilterTrack) Validate() []Violation {
	return validateOverlay(KindFilter, t.TimeRange, t.EffectType)
}

func validateOverlay(kind Kind, r TimeRange, effectType string) []Violation {
	vs := &violations{kind: kind}
	r.validate(vs)
	if strings.TrimSpace(effectType) == "" {
		vs.add("effect_type", CodeRequired, "%s type is required", kind)
	}
	return vs.list
}

// Defaults for a freshly added row in the editor.

func DefaultTextTrack() TextTrack {
	return TextTrack{
		TimeRange:  TimeRange{Start: 0, End: 5, IsFullDuration: true},
		Text:       "新文本",
		FontSize:   8.0,
		FontColor:  "#FFFFFF",
		FontAlpha:  floatPtr(1.0),
		TransformX: floatPtr(0),
		TransformY: floatPtr(0),
	}
}

func DefaultEffectTrack() EffectTrack {
	return EffectTrack{
		TimeRange:  TimeRange{Start: 0, End: 5, IsFullDuration: true},
		EffectType: "圣诞星光",
	}
}

func DefaultFilterTrack() FilterTrack {
	return FilterTrack{
		TimeRange:  TimeRange{Start: 0, End: 5, IsFullDuration: true},
		EffectType: "高清",
	}
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func floatPtr(v float64) *float64 {
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
