package metadata

import (
	"fmt"
	"strings"
)

// Variant is the IM model that produced a filename.
type Variant int

const (
	// IM03 names look like
	// WE00003---A003--PO01--LO001--CO6--SL010--PX16250--PW0040--IN0020--TM246--X032281--Y010963--Z211825--T1375404533.tif
	IM03 Variant = iota + 1
	// IM04 names look like
	// -A001--PO01--LO001--CO6--SL001--PX32500--PW0080--IN0020--TM244--X014580--Y011262--Z209501--T1374031802--WE00001.tif
	IM04
)

func (v Variant) String() string {
	switch v {
	case IM03:
		return "IM03"
	case IM04:
		return "IM04"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

func ParseVariant(s string) (Variant, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IM03", "A":
		return IM03, nil
	case "IM04", "B":
		return IM04, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownVariant, s)
	}
}

// DetectVariant guesses the variant from the leading characters of a name.
func DetectVariant(name string) (Variant, error) {
	switch {
	case strings.HasPrefix(name, "WE"):
		return IM03, nil
	case strings.HasPrefix(name, "-"):
		return IM04, nil
	default:
		return 0, fmt.Errorf("%w for filename %q", ErrUnknownVariant, name)
	}
}

// Field identifies one positional token of a filename.
type Field int

const (
	FieldWellID Field = iota
	FieldWellColumn
	FieldWellRow
	FieldWellSubPosition
	FieldWellIndex
	FieldLoopIteration
	FieldChannel
	FieldZSlice
	FieldPixelSize
	FieldLightPower
	FieldLightExposure
	FieldTemperature
	FieldStageX
	FieldStageY
	FieldStageZ
	FieldTime
	numFields
)

var fieldNames = [numFields]string{
	FieldWellID:          "well id",
	FieldWellColumn:      "well column",
	FieldWellRow:         "well row",
	FieldWellSubPosition: "well sub-position",
	FieldWellIndex:       "well index",
	FieldLoopIteration:   "loop iteration",
	FieldChannel:         "channel index",
	FieldZSlice:          "z slice",
	FieldPixelSize:       "pixel size",
	FieldLightPower:      "light power",
	FieldLightExposure:   "light exposure",
	FieldTemperature:     "temperature",
	FieldStageX:          "stage x",
	FieldStageY:          "stage y",
	FieldStageZ:          "stage z",
	FieldTime:            "time",
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// span is a half-open byte range. When fromEnd is set both bounds are
// offsets from the end of the name and are negative.
type span struct {
	start   int
	end     int
	fromEnd bool
}

type layout [numFields]span

var layouts = map[Variant]*layout{
	IM03: {
		FieldWellIndex:       {start: 2, end: 7},
		FieldWellID:          {start: 10, end: 14},
		FieldWellRow:         {start: 10, end: 11},
		FieldWellColumn:      {start: 11, end: 14},
		FieldWellSubPosition: {start: 18, end: 20},
		FieldLoopIteration:   {start: 24, end: 27},
		FieldChannel:         {start: 31, end: 32},
		FieldZSlice:          {start: 36, end: 39},
		FieldPixelSize:       {start: 43, end: 48},
		FieldLightPower:      {start: 52, end: 56},
		FieldLightExposure:   {start: 60, end: 64},
		FieldTemperature:     {start: 68, end: 71},
		FieldStageX:          {start: 74, end: 80},
		FieldStageY:          {start: 83, end: 89},
		FieldStageZ:          {start: 92, end: 98},
		FieldTime:            {start: -14, end: -4, fromEnd: true},
	},
	IM04: {
		FieldWellID:          {start: 1, end: 5},
		FieldWellRow:         {start: 1, end: 2},
		FieldWellColumn:      {start: 2, end: 5},
		FieldWellSubPosition: {start: 9, end: 11},
		FieldLoopIteration:   {start: 15, end: 18},
		FieldChannel:         {start: 22, end: 23},
		FieldZSlice:          {start: 27, end: 30},
		FieldPixelSize:       {start: 34, end: 39},
		FieldLightPower:      {start: 43, end: 47},
		FieldLightExposure:   {start: 51, end: 55},
		FieldTemperature:     {start: 59, end: 62},
		FieldStageX:          {start: 65, end: 71},
		FieldStageY:          {start: 74, end: 80},
		FieldStageZ:          {start: 83, end: 89},
		FieldTime:            {start: 92, end: 102},
		FieldWellIndex:       {start: 106, end: 111},
	},
}

// Name templates used by Format. Token widths match the layouts above.
var templates = map[Variant]string{
	IM03: "WE%05d---%s--PO%02d--LO%03d--CO%d--SL%03d--PX%05d--PW%04d--IN%04d--TM%03d--X%06d--Y%06d--Z%06d--T%010d.tif",
	IM04: "-%s--PO%02d--LO%03d--CO%d--SL%03d--PX%05d--PW%04d--IN%04d--TM%03d--X%06d--Y%06d--Z%06d--T%010d--WE%05d.tif",
}
