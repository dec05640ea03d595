package metadata

import "math"

// Objective tables. Pixel sizes are keyed on their 1e-4 um code, which is the
// resolution the filenames carry, so lookups never depend on float equality.
var (
	pixelSizeToMag = map[int]int{
		32500: 2,
		16250: 4,
		6500:  10,
		3250:  20,
	}
	pixelSizeToNA = map[int]float64{
		32500: 0.06,
		16250: 0.13,
		6500:  0.3,
		3250:  0.45,
	}
	// 40x has no pixel size entry, so it is only reachable by magnification.
	magToNA = map[int]float64{
		2:  0.06,
		4:  0.13,
		10: 0.3,
		20: 0.45,
		40: 0.6,
	}
)

const (
	tablePixelSizeToMag = "pixel size to magnification"
	tablePixelSizeToNA  = "pixel size to numerical aperture"
	tableMagToNA        = "magnification to numerical aperture"
)

// Objective is the microscope objective implied by a pixel size.
type Objective struct {
	Magnification     int     `json:"magnification" cbor:"magnification"`
	NumericalAperture float64 `json:"numerical_aperture" cbor:"numerical_aperture"`
}

// pixelCode returns the 1e-4 um code of um. Values that are not a whole
// number of codes, like 1.62504, have none.
func pixelCode(um float64) (int, bool) {
	scaled := um * 1e4
	code := math.Round(scaled)
	if math.Abs(scaled-code) > 1e-9*math.Max(1, math.Abs(scaled)) {
		return 0, false
	}
	return int(code), true
}

// MagnificationForPixelSize returns the objective magnification for a pixel size in um.
func MagnificationForPixelSize(um float64) (int, error) {
	code, ok := pixelCode(um)
	mag, found := pixelSizeToMag[code]
	if !ok || !found {
		return 0, &LookupError{Table: tablePixelSizeToMag, Key: um}
	}
	return mag, nil
}

// NAForPixelSize returns the objective numerical aperture for a pixel size in um.
func NAForPixelSize(um float64) (float64, error) {
	code, ok := pixelCode(um)
	na, found := pixelSizeToNA[code]
	if !ok || !found {
		return 0, &LookupError{Table: tablePixelSizeToNA, Key: um}
	}
	return na, nil
}

func NAForMagnification(mag int) (float64, error) {
	na, ok := magToNA[mag]
	if !ok {
		return 0, &LookupError{Table: tableMagToNA, Key: float64(mag)}
	}
	return na, nil
}

func ObjectiveForPixelSize(um float64) (Objective, error) {
	mag, err := MagnificationForPixelSize(um)
	if err != nil {
		return Objective{}, err
	}
	na, err := NAForPixelSize(um)
	if err != nil {
		return Objective{}, err
	}
	return Objective{Magnification: mag, NumericalAperture: na}, nil
}

var channelNames = map[int]string{
	1: "DAPI",
	3: "FITC",
	5: "TRITC",
}

// ChannelName names the filter set of a channel index: 1 DAPI (385 nm),
// 3 FITC (GFP), 5 TRITC (mCherry). Other indexes are valid but unnamed.
func ChannelName(index int) (string, bool) {
	name, ok := channelNames[index]
	return name, ok
}
