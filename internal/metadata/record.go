package metadata

import (
	"errors"
	"fmt"
	"math"
	"time"

	"acquifer-go/internal/stage"
)

// Record holds every field decoded from one filename.
type Record struct {
	Filename          string           `json:"filename" cbor:"filename"`
	Variant           string           `json:"variant" cbor:"variant"`
	WellID            string           `json:"well_id" cbor:"well_id"`
	WellRow           int              `json:"well_row" cbor:"well_row"`
	WellColumn        int              `json:"well_column" cbor:"well_column"`
	WellSubPosition   int              `json:"well_sub_position" cbor:"well_sub_position"`
	WellIndex         int              `json:"well_index" cbor:"well_index"`
	LoopIteration     int              `json:"loop_iteration" cbor:"loop_iteration"`
	ChannelIndex      int              `json:"channel_index" cbor:"channel_index"`
	ZSlice            int              `json:"z_slice" cbor:"z_slice"`
	PixelSizeUm       float64          `json:"pixel_size_um" cbor:"pixel_size_um"`
	// Zero when the pixel size has no objective table entry.
	Magnification     int              `json:"magnification" cbor:"magnification"`
	NumericalAperture float64          `json:"numerical_aperture" cbor:"numerical_aperture"`
	LightPowerPct     int              `json:"light_power_pct" cbor:"light_power_pct"`
	ExposureMs        int              `json:"exposure_ms" cbor:"exposure_ms"`
	TemperatureC      float64          `json:"temperature_c" cbor:"temperature_c"`
	Stage             stage.Coordinate `json:"stage" cbor:"stage"`
	StageZUm          float64          `json:"stage_z_um" cbor:"stage_z_um"`
	Time              int64            `json:"time" cbor:"time"`
}

func (r Record) AcquiredAt() time.Time {
	return time.Unix(r.Time, 0)
}

func (r Record) Objective() Objective {
	return Objective{Magnification: r.Magnification, NumericalAperture: r.NumericalAperture}
}

// Decode reads all fields of name. The first failing field aborts decoding,
// except the objective: a pixel size without a table entry leaves
// Magnification and NumericalAperture zero.
func (d *Decoder) Decode(name string) (Record, error) {
	rec := Record{Filename: name, Variant: d.variant.String()}
	var err error

	ints := []struct {
		dst *int
		fn  func(string) (int, error)
	}{
		{&rec.WellRow, d.WellRow},
		{&rec.WellColumn, d.WellColumn},
		{&rec.WellSubPosition, d.WellSubPosition},
		{&rec.WellIndex, d.WellIndex},
		{&rec.LoopIteration, d.LoopIteration},
		{&rec.ChannelIndex, d.ChannelIndex},
		{&rec.ZSlice, d.ZSlice},
		{&rec.LightPowerPct, d.LightPower},
		{&rec.ExposureMs, d.LightExposure},
	}
	if rec.WellID, err = d.WellID(name); err != nil {
		return Record{}, err
	}
	for _, f := range ints {
		if *f.dst, err = f.fn(name); err != nil {
			return Record{}, err
		}
	}
	if rec.PixelSizeUm, err = d.PixelSize(name); err != nil {
		return Record{}, err
	}
	obj, err := ObjectiveForPixelSize(rec.PixelSizeUm)
	var lookup *LookupError
	if err != nil && !errors.As(err, &lookup) {
		return Record{}, err
	}
	rec.Magnification = obj.Magnification
	rec.NumericalAperture = obj.NumericalAperture
	if rec.TemperatureC, err = d.Temperature(name); err != nil {
		return Record{}, err
	}
	if rec.Stage, err = d.XYPosition(name); err != nil {
		return Record{}, err
	}
	if rec.StageZUm, err = d.ZPosition(name); err != nil {
		return Record{}, err
	}
	if rec.Time, err = d.Time(name); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Decode decodes name with the variant detected from its prefix.
func Decode(name string) (Record, error) {
	v, err := DetectVariant(name)
	if err != nil {
		return Record{}, err
	}
	d, err := NewDecoder(v)
	if err != nil {
		return Record{}, err
	}
	return d.Decode(name)
}

// Format builds the filename the IM would write for r. The well name is
// derived from WellRow and WellColumn; Filename, Variant, WellID and the
// objective fields of r are ignored.
func Format(v Variant, r Record) (string, error) {
	tmpl, ok := templates[v]
	if !ok {
		return "", ErrUnknownVariant
	}
	well, err := WellName(r.WellRow, r.WellColumn)
	if err != nil {
		return "", err
	}
	code, ok := pixelCode(r.PixelSizeUm)
	if !ok {
		return "", fmt.Errorf("pixel size %v um is not a multiple of 1e-4 um", r.PixelSizeUm)
	}

	fields := []struct {
		name  Field
		value int64
		width int
	}{
		{FieldWellIndex, int64(r.WellIndex), 5},
		{FieldWellSubPosition, int64(r.WellSubPosition), 2},
		{FieldLoopIteration, int64(r.LoopIteration), 3},
		{FieldChannel, int64(r.ChannelIndex), 1},
		{FieldZSlice, int64(r.ZSlice), 3},
		{FieldPixelSize, int64(code), 5},
		{FieldLightPower, int64(r.LightPowerPct), 4},
		{FieldLightExposure, int64(r.ExposureMs), 4},
		{FieldTemperature, round(r.TemperatureC * 10), 3},
		{FieldStageX, round(r.Stage.X * 1000), 6},
		{FieldStageY, round(r.Stage.Y * 1000), 6},
		{FieldStageZ, round(r.StageZUm * 10), 6},
		{FieldTime, r.Time, 10},
	}
	vals := make(map[Field]int64, len(fields))
	for _, f := range fields {
		if f.value < 0 || f.value >= pow10(f.width) {
			return "", fmt.Errorf("%s %d does not fit %d digits", f.name, f.value, f.width)
		}
		vals[f.name] = f.value
	}

	common := []any{
		well,
		vals[FieldWellSubPosition],
		vals[FieldLoopIteration],
		vals[FieldChannel],
		vals[FieldZSlice],
		vals[FieldPixelSize],
		vals[FieldLightPower],
		vals[FieldLightExposure],
		vals[FieldTemperature],
		vals[FieldStageX],
		vals[FieldStageY],
		vals[FieldStageZ],
		vals[FieldTime],
	}
	switch v {
	case IM03:
		return fmt.Sprintf(tmpl, append([]any{vals[FieldWellIndex]}, common...)...), nil
	default:
		return fmt.Sprintf(tmpl, append(common, vals[FieldWellIndex])...), nil
	}
}

// WellName formats a well as its row letter and zero padded column, e.g. "B012".
func WellName(row, col int) (string, error) {
	if row < 1 || row > len(rowLetters) {
		return "", fmt.Errorf("well row %d out of range 1-%d", row, len(rowLetters))
	}
	if col < 0 || col > 999 {
		return "", fmt.Errorf("well column %d out of range 0-999", col)
	}
	return fmt.Sprintf("%c%03d", rowLetters[row-1], col), nil
}

// SnakeIndex returns the 1-based acquisition order of a well on a plate with
// cols columns: odd rows run left to right, even rows right to left.
// It returns 0 for a well outside the plate.
func SnakeIndex(row, col, cols int) int {
	if cols <= 0 || row < 1 || col < 1 || col > cols {
		return 0
	}
	if row%2 == 1 {
		return (row-1)*cols + col
	}
	return (row-1)*cols + cols - col + 1
}

// SnakeWell is the inverse of SnakeIndex. It returns 0, 0 for an index
// below 1 or a plate without columns.
func SnakeWell(index, cols int) (row, col int) {
	if cols <= 0 || index < 1 {
		return 0, 0
	}
	row = (index-1)/cols + 1
	pos := (index-1)%cols + 1
	if row%2 == 1 {
		return row, pos
	}
	return row, cols - pos + 1
}

func round(v float64) int64 {
	return int64(math.Round(v))
}

func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
