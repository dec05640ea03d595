package simulator

import (
	"context"
	"math"
	"math/rand"
	"time"

	"acquifer-go/internal/metadata"
	"acquifer-go/internal/stage"
)

const (
	plateRows = 8
	plateCols = 12

	// Well pitch of a 96-well plate.
	wellPitchMM = 9.0
)

var channels = []int{1, 3, 5}

// Filenames emits synthetic acquisition filenames at rate per second. The
// plate is walked well by well in snake order; every well gets one image per
// channel. The channel is closed when ctx is done.
func Filenames(ctx context.Context, v metadata.Variant, rate float64) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)

		if rate <= 0 {
			rate = 1
		}
		ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
		defer ticker.Stop()

		seq := 0
		loop := 1
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			rec := Record(seq, loop, time.Now())
			name, err := metadata.Format(v, rec)
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- name:
			}

			seq++
			if seq >= plateRows*plateCols*len(channels) {
				seq = 0
				loop++
			}
		}
	}()
	return out
}

// Record builds the metadata for image seq of a plate pass.
func Record(seq, loop int, at time.Time) metadata.Record {
	wellIndex := seq/len(channels) + 1
	row, col := metadata.SnakeWell(wellIndex, plateCols)

	pixel := 1.625
	temp := 24 + 0.1*float64(rand.Intn(10))
	return metadata.Record{
		WellRow:         row,
		WellColumn:      col,
		WellSubPosition: 1,
		WellIndex:       wellIndex,
		LoopIteration:   loop % 1000,
		ChannelIndex:    channels[seq%len(channels)],
		ZSlice:          1,
		PixelSizeUm:     pixel,
		LightPowerPct:   40,
		ExposureMs:      20,
		TemperatureC:    math.Round(temp*10) / 10,
		Stage: stage.Coordinate{
			X: 14.38 + float64(col-1)*wellPitchMM,
			Y: 11.24 + float64(row-1)*wellPitchMM,
		},
		StageZUm: 20950.1,
		Time:     at.Unix(),
	}
}
