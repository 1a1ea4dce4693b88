// Package template models reusable editing templates: named bundles of timed
// text, effect and filter overlays that the backend applies when it generates
// a draft.
//
// Every transform in this package returns a new Template and leaves its input
// untouched, so an editor can undo by discarding the newer value.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrIndexOutOfRange = errors.New("track index out of range")
	ErrKindMismatch    = errors.New("track does not match kind")
)

type Tracks struct {
	Texts   []TextTrack   `json:"texts" yaml:"texts"`
	Effects []EffectTrack `json:"effects" yaml:"effects"`
	Filters []FilterTrack `json:"filters" yaml:"filters"`
}

// Clone deep-copies the three sequences. Nil sequences come back empty.
func (tr Tracks) Clone() Tracks {
	texts := make([]TextTrack, len(tr.Texts))
	for i, t := range tr.Texts {
		texts[i] = t.clone()
	}
	effects := make([]EffectTrack, len(tr.Effects))
	copy(effects, tr.Effects)
	filters := make([]FilterTrack, len(tr.Filters))
	copy(filters, tr.Filters)
	return Tracks{Texts: texts, Effects: effects, Filters: filters}
}

func (tr Tracks) Len(kind Kind) int {
	switch kind {
	case KindText:
		return len(tr.Texts)
	case KindEffect:
		return len(tr.Effects)
	case KindFilter:
		return len(tr.Filters)
	}
	return 0
}

// Template is identified by ID once the repository has stored it. An empty ID
// marks a draft that has never been saved.
type Template struct {
	ID        string
	Name      string
	Tracks    Tracks
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDraft returns an unsaved template with no tracks.
func NewDraft(name string) Template {
	return Template{Name: name, Tracks: Tracks{}.Clone()}
}

func (t Template) IsDraft() bool {
	return t.ID == ""
}

func (t Template) Clone() Template {
	c := t
	c.Tracks = t.Tracks.Clone()
	return c
}

// Rename returns a copy with a new name.
func (t Template) Rename(name string) Template {
	c := t.Clone()
	c.Name = name
	return c
}

// AddTrack appends track to the sequence matching kind.
func AddTrack(t Template, kind Kind, track Track) (Template, error) {
	if isNilTrack(track) || track.Kind() != kind {
		return t, fmt.Errorf("%w: %s", ErrKindMismatch, kind)
	}

	c := t.Clone()
	switch v := track.(type) {
	case TextTrack:
		c.Tracks.Texts = append(c.Tracks.Texts, v.clone())
	case *TextTrack:
		c.Tracks.Texts = append(c.Tracks.Texts, v.clone())
	case EffectTrack:
		c.Tracks.Effects = append(c.Tracks.Effects, v)
	case *EffectTrack:
		c.Tracks.Effects = append(c.Tracks.Effects, *v)
	case FilterTrack:
		c.Tracks.Filters = append(c.Tracks.Filters, v)
	case *FilterTrack:
		c.Tracks.Filters = append(c.Tracks.Filters, *v)
	default:
		return t, fmt.Errorf("%w: unsupported track type %T", ErrKindMismatch, track)
	}
	return c, nil
}

func isNilTrack(track Track) bool {
	switch v := track.(type) {
	case nil:
		return true
	case *TextTrack:
		return v == nil
	case *EffectTrack:
		return v == nil
	case *FilterTrack:
		return v == nil
	}
	return false
}

// RemoveTrack drops the track at index from the sequence matching kind.
func RemoveTrack(t Template, kind Kind, index int) (Template, error) {
	n := t.Tracks.Len(kind)
	if index < 0 || index >= n {
		return t, fmt.Errorf("%w: %s[%d], have %d", ErrIndexOutOfRange, kind, index, n)
	}

	c := t.Clone()
	switch kind {
	case KindText:
		c.Tracks.Texts = append(c.Tracks.Texts[:index], c.Tracks.Texts[index+1:]...)
	case KindEffect:
		c.Tracks.Effects = append(c.Tracks.Effects[:index], c.Tracks.Effects[index+1:]...)
	case KindFilter:
		c.Tracks.Filters = append(c.Tracks.Filters[:index], c.Tracks.Filters[index+1:]...)
	}
	return c, nil
}

// Validate collects the template's own problems and those of every track,
// each tagged with the track kind and row index.
func Validate(t Template) []Violation {
	var out []Violation
	if strings.TrimSpace(t.Name) == "" {
		out = append(out, Violation{
			Index:   NoIndex,
			Field:   "name",
			Code:    CodeRequired,
			Message: "template name is required",
		})
	}

	for i, tr := range t.Tracks.Texts {
		out = appendIndexed(out, tr.Validate(), i)
	}
	for i, tr := range t.Tracks.Effects {
		out = appendIndexed(out, tr.Validate(), i)
	}
	for i, tr := range t.Tracks.Filters {
		out = appendIndexed(out, tr.Validate(), i)
	}
	return out
}

func appendIndexed(dst, src []Violation, index int) []Violation {
	for _, v := range src {
		v.Index = index
		dst = append(dst, v)
	}
	return dst
}

type Summary struct {
	Texts   int `json:"texts"`
	Effects int `json:"effects"`
	Filters int `json:"filters"`
}

func (t Template) Summary() Summary {
	return Summary{
		Texts:   len(t.Tracks.Texts),
		Effects: len(t.Tracks.Effects),
		Filters: len(t.Tracks.Filters),
	}
}

// wireTemplate is the backend representation; timestamps are epoch millis.
type wireTemplate struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Tracks    Tracks `json:"tracks"`
	CreatedAt int64  `json:"created_at,omitempty"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

func (t Template) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTemplate{
		ID:        t.ID,
		Name:      t.Name,
		Tracks:    t.Tracks.Clone(),
		CreatedAt: toMillis(t.CreatedAt),
		UpdatedAt: toMillis(t.UpdatedAt),
	})
}

func (t *Template) UnmarshalJSON(data []byte) error {
	var w wireTemplate
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Template{
		ID:        w.ID,
		Name:      w.Name,
		Tracks:    w.Tracks.Clone(),
		CreatedAt: fromMillis(w.CreatedAt),
		UpdatedAt: fromMillis(w.UpdatedAt),
	}
	return nil
}

func toMillis(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
