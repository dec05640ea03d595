package metadata

import (
	"strconv"
	"strings"

	"acquifer-go/internal/stage"
)

const rowLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Decoder reads metadata tokens from the filenames of one IM variant.
// A Decoder holds no mutable state and is safe for concurrent use.
type Decoder struct {
	variant Variant
	layout  *layout
}

func NewDecoder(v Variant) (*Decoder, error) {
	l, ok := layouts[v]
	if !ok {
		return nil, ErrUnknownVariant
	}
	return &Decoder{variant: v, layout: l}, nil
}

func (d *Decoder) Variant() Variant {
	return d.variant
}

// WellID returns the well name, e.g. "A003".
func (d *Decoder) WellID(name string) (string, error) {
	return d.token(name, FieldWellID)
}

// WellColumn returns the plate column (1-12 on a 96-well plate).
func (d *Decoder) WellColumn(name string) (int, error) {
	return d.integer(name, FieldWellColumn)
}

// WellRow returns the plate row as the 1-based position of its letter in the alphabet.
func (d *Decoder) WellRow(name string) (int, error) {
	letter, err := d.token(name, FieldWellRow)
	if err != nil {
		return 0, err
	}
	idx := strings.Index(rowLetters, letter)
	if idx < 0 {
		return 0, d.parseError(FieldWellRow, letter, ErrBadRowLetter)
	}
	return idx + 1, nil
}

// WellSubPosition returns the index of the imaged position inside the well.
func (d *Decoder) WellSubPosition(name string) (int, error) {
	return d.integer(name, FieldWellSubPosition)
}

// WellIndex returns the acquisition order of the well (snake pattern).
func (d *Decoder) WellIndex(name string) (int, error) {
	return d.integer(name, FieldWellIndex)
}

// LoopIteration returns the timepoint index.
func (d *Decoder) LoopIteration(name string) (int, error) {
	return d.integer(name, FieldLoopIteration)
}

// ChannelIndex returns the channel token. By convention 1 is DAPI, 3 FITC
// and 5 TRITC; see ChannelName.
func (d *Decoder) ChannelIndex(name string) (int, error) {
	return d.integer(name, FieldChannel)
}

// ZSlice returns the slice number within the Z-stack.
func (d *Decoder) ZSlice(name string) (int, error) {
	return d.integer(name, FieldZSlice)
}

// PixelSize returns the pixel size in um.
func (d *Decoder) PixelSize(name string) (float64, error) {
	code, err := d.integer(name, FieldPixelSize)
	if err != nil {
		return 0, err
	}
	return float64(code) / 1e4, nil
}

func (d *Decoder) ObjectiveMagnification(name string) (int, error) {
	um, err := d.PixelSize(name)
	if err != nil {
		return 0, err
	}
	return MagnificationForPixelSize(um)
}

func (d *Decoder) ObjectiveNA(name string) (float64, error) {
	um, err := d.PixelSize(name)
	if err != nil {
		return 0, err
	}
	return NAForPixelSize(um)
}

// LightPower returns the relative light source power in percent.
func (d *Decoder) LightPower(name string) (int, error) {
	return d.integer(name, FieldLightPower)
}

// LightExposure returns the exposure time in ms.
func (d *Decoder) LightExposure(name string) (int, error) {
	return d.integer(name, FieldLightExposure)
}

// Temperature returns the probe temperature in degrees Celsius.
func (d *Decoder) Temperature(name string) (float64, error) {
	return d.float(name, FieldTemperature, 10)
}

// XYPosition returns the stage position of the image center in mm.
func (d *Decoder) XYPosition(name string) (stage.Coordinate, error) {
	x, err := d.integer(name, FieldStageX)
	if err != nil {
		return stage.Coordinate{}, err
	}
	y, err := d.integer(name, FieldStageY)
	if err != nil {
		return stage.Coordinate{}, err
	}
	return stage.Coordinate{X: stage.Round3(float64(x) / 1000), Y: stage.Round3(float64(y) / 1000)}, nil
}

// ZPosition returns the stage Z position in um.
func (d *Decoder) ZPosition(name string) (float64, error) {
	return d.float(name, FieldStageZ, 10)
}

// Time returns the acquisition time as unix seconds.
func (d *Decoder) Time(name string) (int64, error) {
	s, err := d.token(name, FieldTime)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, d.parseError(FieldTime, s, err)
	}
	return n, nil
}

func (d *Decoder) token(name string, f Field) (string, error) {
	sp := d.layout[f]
	start, end := sp.start, sp.end
	if sp.fromEnd {
		start += len(name)
		end += len(name)
	}
	if start < 0 || end > len(name) {
		return "", d.parseError(f, name, ErrTooShort)
	}
	return name[start:end], nil
}

func (d *Decoder) integer(name string, f Field) (int, error) {
	s, err := d.token(name, f)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, d.parseError(f, s, err)
	}
	return n, nil
}

func (d *Decoder) float(name string, f Field, divisor float64) (float64, error) {
	s, err := d.token(name, f)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, d.parseError(f, s, err)
	}
	return v / divisor, nil
}

func (d *Decoder) parseError(f Field, value string, err error) error {
	return &ParseError{Variant: d.variant, Field: f, Value: value, Err: err}
}
