package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"acquifer-go/internal/metadata"
	"acquifer-go/internal/stage"
)

type output struct {
	metadata.Record
	PixelStage *stage.Coordinate `json:"pixel_stage,omitempty" cbor:"pixel_stage,omitempty"`
}

type pixelFlag struct {
	set  bool
	x, y float64
}

func (p *pixelFlag) String() string {
	if !p.set {
		return ""
	}
	return fmt.Sprintf("%g,%g", p.x, p.y)
}

func (p *pixelFlag) Set(value string) error {
	xs, ys, ok := strings.Cut(value, ",")
	if !ok {
		return fmt.Errorf("expected x,y")
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return err
	}
	p.x, p.y, p.set = x, y, true
	return nil
}

func main() {
	var pixel pixelFlag
	format := flag.String("format", "json", "Output format: json or cbor (hex encoded)")
	variant := flag.String("variant", "auto", "Filename layout: auto, IM03 or IM04")
	flag.Var(&pixel, "pixel", "Also convert pixel x,y of the image to stage coordinates")
	flag.Parse()
	log.SetFlags(0)

	if *format != "json" && *format != "cbor" {
		log.Fatalf("unknown format %q", *format)
	}
	var decoder *metadata.Decoder
	if !strings.EqualFold(*variant, "auto") {
		v, err := metadata.ParseVariant(*variant)
		if err != nil {
			log.Fatal(err)
		}
		if decoder, err = metadata.NewDecoder(v); err != nil {
			log.Fatal(err)
		}
	}

	names := flag.Args()
	if len(names) == 0 {
		var err error
		if names, err = readLines(os.Stdin); err != nil {
			log.Fatalf("read stdin: %v", err)
		}
	}

	failed := 0
	for _, name := range names {
		out, err := decode(decoder, name, pixel)
		if err != nil {
			log.Printf("%s: %v", name, err)
			failed++
			continue
		}
		if err := write(os.Stdout, *format, out); err != nil {
			log.Fatalf("write: %v", err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func decode(d *metadata.Decoder, name string, pixel pixelFlag) (output, error) {
	var (
		rec metadata.Record
		err error
	)
	if d != nil {
		rec, err = d.Decode(name)
	} else {
		rec, err = metadata.Decode(name)
	}
	if err != nil {
		return output{}, err
	}
	out := output{Record: rec}
	if pixel.set {
		c := stage.PixelToStage(pixel.x, pixel.y, rec.PixelSizeUm, rec.Stage)
		out.PixelStage = &c
	}
	return out, nil
}

func write(w io.Writer, format string, out output) error {
	if format == "cbor" {
		payload, err := cbor.Marshal(out)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, hex.EncodeToString(payload))
		return err
	}
	return json.NewEncoder(w).Encode(out)
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
