package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"acquifer-go/internal/imtcp"
	"acquifer-go/internal/ingest"
	"acquifer-go/internal/rawlog"
)

type dumped struct {
	Index int    `json:"index"`
	At    string `json:"at"`
	Size  int    `json:"size"`
	Kind  string `json:"kind"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func main() {
	var (
		path  = flag.String("path", "", "Path to rawlog .bin file")
		limit = flag.Int("limit", 0, "Number of records to dump, 0 for all")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}
	defer f.Close()

	if err := dump(os.Stdout, rawlog.NewReader(f), *limit); err != nil {
		log.Fatal(err)
	}
}

func dump(w io.Writer, r *rawlog.Reader, limit int) error {
	enc := json.NewEncoder(w)
	for count := 0; limit <= 0 || count < limit; count++ {
		entry, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(describe(count, entry)); err != nil {
			return err
		}
	}
	return nil
}

func describe(index int, entry rawlog.Entry) dumped {
	out := dumped{
		Index: index,
		At:    entry.At.Format(time.RFC3339Nano),
		Size:  len(entry.Payload),
	}
	if len(entry.Payload) == 0 {
		out.Kind = "empty"
		return out
	}

	if ex, err := imtcp.DecodeExchange(entry.Payload); err == nil && ex.Command != "" {
		out.Kind = "im_exchange"
		out.Value = map[string]any{
			"command":  ex.Command,
			"request":  fmt.Sprintf("%q", ex.Request),
			"response": fmt.Sprintf("%q", ex.Response),
			"error":    ex.Error,
			"at":       time.Unix(0, ex.AtNanos).Format(time.RFC3339Nano),
		}
		return out
	}

	var msg ingest.Message
	if err := cbor.Unmarshal(entry.Payload, &msg); err == nil && msg.Type != "" {
		out.Kind = "ingest_message"
		if ev, err := ingest.Decode(entry.Payload, 0); err == nil {
			out.Value = ev.Record
		} else {
			out.Value = msg
			out.Error = err.Error()
		}
		return out
	}

	var decoded any
	if err := cbor.Unmarshal(entry.Payload, &decoded); err != nil {
		out.Kind = "invalid"
		out.Error = err.Error()
		return out
	}
	out.Kind = "cbor"
	out.Value = normalize(decoded)
	return out
}

// normalize converts CBOR maps with arbitrary keys into JSON encodable ones.
func normalize(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case []byte:
		return fmt.Sprintf("%x", t)
	default:
		return v
	}
}
