// Package crop converts a crop rectangle drawn over an image preview into the
// four-corner relative coordinates used by the backend's image placement.
package crop

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidRectangle = errors.New("invalid crop rectangle")

// Rectangle is expressed in percent of the displayed image, origin top-left.
type Rectangle struct {
	XPct      float64 `json:"x"`
	YPct      float64 `json:"y"`
	WidthPct  float64 `json:"width"`
	HeightPct float64 `json:"height"`
}

// Selected reports whether the rectangle encloses any area. Callers treat an
// unselected rectangle as "no crop" and must not normalize it.
func (r Rectangle) Selected() bool {
	return r.WidthPct > 0 && r.HeightPct > 0
}

func (r Rectangle) Validate() error {
	if !r.Selected() {
		return fmt.Errorf("%w: width and height must be positive (got %gx%g)", ErrInvalidRectangle, r.WidthPct, r.HeightPct)
	}
	fields := []struct {
		name string
		v    float64
	}{
		{"x", r.XPct}, {"y", r.YPct}, {"width", r.WidthPct}, {"height", r.HeightPct},
	}
	for _, f := range fields {
		if !(f.v >= 0 && f.v <= 100) {
			return fmt.Errorf("%w: %s=%g outside [0,100]", ErrInvalidRectangle, f.name, f.v)
		}
	}
	if r.XPct >= 100 || r.YPct >= 100 {
		return fmt.Errorf("%w: origin (%g,%g) leaves no area inside the image", ErrInvalidRectangle, r.XPct, r.YPct)
	}
	return nil
}

// Corners are fractions of the image size, one pair per rectangle corner.
type Corners struct {
	UpperLeftX  float64 `json:"upper_left_x"`
	UpperLeftY  float64 `json:"upper_left_y"`
	UpperRightX float64 `json:"upper_right_x"`
	UpperRightY float64 `json:"upper_right_y"`
	LowerLeftX  float64 `json:"lower_left_x"`
	LowerLeftY  float64 `json:"lower_left_y"`
	LowerRightX float64 `json:"lower_right_x"`
	LowerRightY float64 `json:"lower_right_y"`
}

// Normalize maps r to corner coordinates. The far edges are clipped to the
// image border, so every coordinate lies in [0,1].
func Normalize(r Rectangle) (Corners, error) {
	if err := r.Validate(); err != nil {
		return Corners{}, err
	}

	left := r.XPct / 100
	top := r.YPct / 100
	right := math.Min(left+r.WidthPct/100, 1)
	bottom := math.Min(top+r.HeightPct/100, 1)

	return Corners{
		UpperLeftX:  left,
		UpperLeftY:  top,
		UpperRightX: right,
		UpperRightY: top,
		LowerLeftX:  left,
		LowerLeftY:  bottom,
		LowerRightX: right,
		LowerRightY: bottom,
	}, nil
}

// AxisAligned reports whether the corners describe an unrotated rectangle.
func (c Corners) AxisAligned() bool {
	return c.UpperLeftX == c.LowerLeftX &&
		c.UpperRightX == c.LowerRightX &&
		c.UpperLeftY == c.UpperRightY &&
		c.LowerLeftY == c.LowerRightY
}

// Rectangle maps corners back to UI space.
func (c Corners) Rectangle() Rectangle {
	return Rectangle{
		XPct:      c.UpperLeftX * 100,
		YPct:      c.UpperLeftY * 100,
		WidthPct:  (c.UpperRightX - c.UpperLeftX) * 100,
		HeightPct: (c.LowerLeftY - c.UpperLeftY) * 100,
	}
}
