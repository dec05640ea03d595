package stage

import "strconv"

const (
	DefaultImageWidth  = 2048
	DefaultImageHeight = 2048
)

// Coordinate is a stage position in millimeters.
type Coordinate struct {
	X float64 `json:"x_mm" cbor:"x_mm"`
	Y float64 `json:"y_mm" cbor:"y_mm"`
}

// Converter maps pixel positions of an image to stage coordinates.
// Width and height are the image dimensions in pixels after binning.
type Converter struct {
	ImageWidth  int
	ImageHeight int
}

func NewConverter() Converter {
	return Converter{ImageWidth: DefaultImageWidth, ImageHeight: DefaultImageHeight}
}

// PixelToStage converts a pixel position using the unbinned 2048x2048 sensor.
func PixelToStage(xPix, yPix, pixelSizeUm float64, center Coordinate) Coordinate {
	return NewConverter().PixelToStage(xPix, yPix, pixelSizeUm, center)
}

// PixelToStage returns the stage coordinate of pixel (xPix, yPix) in an image
// whose center sits at center. Image rows grow downward while stage Y grows
// upward, so the Y offset is measured from the bottom edge.
func (c Converter) PixelToStage(xPix, yPix, pixelSizeUm float64, center Coordinate) Coordinate {
	w := float64(c.ImageWidth)
	h := float64(c.ImageHeight)

	x := center.X + (xPix-w/2)*pixelSizeUm*1e-3
	y := center.Y + (h-yPix-h/2)*pixelSizeUm*1e-3
	return Coordinate{X: Round3(x), Y: Round3(y)}
}

// Round3 rounds to the 3 decimals accepted by IM job files. Rounding works on
// the exact binary value: 0.0455 is stored just below the half and becomes
// 0.045.
func Round3(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 3, 64), 64)
	if err != nil {
		return v
	}
	return r
}
