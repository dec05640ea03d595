package stage

import (
	"math"
	"testing"
)

func TestPixelToStageImageCenterIsStageCenter(t *testing.T) {
	centers := []Coordinate{
		{X: 32.281, Y: 10.963},
		{X: 0, Y: 0},
		{X: 14.58, Y: 11.262},
		{X: 101.123456, Y: 7.0004},
	}
	for _, pixel := range []float64{3.25, 1.625, 0.65, 0.325} {
		for _, center := range centers {
			got := PixelToStage(1024, 1024, pixel, center)
			want := Coordinate{X: Round3(center.X), Y: Round3(center.Y)}
			if got != want {
				t.Fatalf("PixelToStage(center, %v, %+v) = %+v, want %+v", pixel, center, got, want)
			}
		}
	}
}

func TestPixelToStageInvertsY(t *testing.T) {
	center := Coordinate{X: 32.281, Y: 10.963}
	got := PixelToStage(100, 300, 0.65, center)
	want := Coordinate{X: 31.68, Y: 11.434}
	if got != want {
		t.Fatalf("PixelToStage = %+v, want %+v", got, want)
	}

	top := PixelToStage(1024, 0, 1.625, center)
	bottom := PixelToStage(1024, 2048, 1.625, center)
	if top.Y <= center.Y || bottom.Y >= center.Y {
		t.Fatalf("row 0 should be above center and last row below: top=%v bottom=%v", top.Y, bottom.Y)
	}
}

func TestConverterBinnedImage(t *testing.T) {
	c := Converter{ImageWidth: 1024, ImageHeight: 512}
	center := Coordinate{X: 5, Y: 5}
	if got := c.PixelToStage(512, 256, 3.25, center); got != center {
		t.Fatalf("binned center = %+v, want %+v", got, center)
	}
	got := c.PixelToStage(0, 0, 3.25, center)
	want := Coordinate{X: 3.336, Y: 5.832}
	if got != want {
		t.Fatalf("binned corner = %+v, want %+v", got, want)
	}
}

func TestPixelToStageRoundsToThreeDecimals(t *testing.T) {
	got := PixelToStage(1000.123, 777.777, 0.325, Coordinate{X: 1.23456789, Y: 9.87654321})
	for _, v := range []float64{got.X, got.Y} {
		scaled := v * 1000
		if math.Abs(scaled-math.Round(scaled)) > 1e-6 {
			t.Fatalf("value %v has more than 3 decimals", v)
		}
	}
}

func TestPixelToStageHalfwayValues(t *testing.T) {
	cases := []struct {
		x, y, pixel float64
		center      Coordinate
		want        Coordinate
	}{
		{1010, 1010, 3.25, Coordinate{}, Coordinate{X: -0.045, Y: 0.045}},
		{1002, 1002, 3.25, Coordinate{X: 32.281, Y: 32.281}, Coordinate{X: 32.209, Y: 32.352}},
		{1030, 1018, 3.25, Coordinate{X: 1, Y: 2}, Coordinate{X: 1.02, Y: 2.019}},
		{1002, 1046, 3.25, Coordinate{}, Coordinate{X: -0.072, Y: -0.072}},
	}
	for _, tc := range cases {
		got := PixelToStage(tc.x, tc.y, tc.pixel, tc.center)
		if got != tc.want {
			t.Fatalf("PixelToStage(%v, %v, %v, %+v) = %+v, want %+v", tc.x, tc.y, tc.pixel, tc.center, got, tc.want)
		}
	}
}

func TestRound3(t *testing.T) {
	cases := map[float64]float64{
		0.0455:  0.045,
		-0.0715: -0.071,
		32.2815: 32.282,
		1.0005:  1,
		14.58:   14.58,
	}
	for in, want := range cases {
		if got := Round3(in); got != want {
			t.Fatalf("Round3(%v) = %v, want %v", in, got, want)
		}
	}
}
