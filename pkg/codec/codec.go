/*
Copyright 2024 The Streambatch Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package codec parses source objects into typed records and serializes
// windowed records back into the sink file format. Both sides are JSON
// lines, one record per line.
package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
)

// ErrMalformedRecord is returned by the decoder for a line that cannot be
// parsed into a Record, including lines over maxLineSize. The transform
// engine skips and counts these unless failOnDecodeError is configured.
var ErrMalformedRecord = errors.New("malformed record")

// ProcessingStatus is stamped on every record that went through the engine.
const ProcessingStatus = "processed"

// maxLineSize caps a single record line. Longer lines are consumed to the
// next newline and reported as malformed, so one oversized record cannot
// wedge its file.
const maxLineSize = 1024 * 1024

// Record is one logical unit decoded from a source object. Name is the
// partition key for windowing, Timestamp the ordering key.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Value     int64     `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// PartitionKey returns the key the windowed analytic is computed over.
func (r *Record) PartitionKey() string {
	return r.Name
}

// WindowedRecord is a Record augmented with its rank within its partition
// and the enrichment columns carried to the sink.
type WindowedRecord struct {
	Record
	Rank             int64     `json:"rank"`
	ProcessedAt      time.Time `json:"processed_at"`
	ProcessingStatus string    `json:"processing_status"`
	Year             string    `json:"year"`
	Month            string    `json:"month"`
	Day              string    `json:"day"`
}

// NewWindowedRecord builds the sink-side record, deriving the date
// partition columns from the event timestamp.
func NewWindowedRecord(r Record, rank int64, processedAt time.Time) WindowedRecord {
	return WindowedRecord{
		Record:           r,
		Rank:             rank,
		ProcessedAt:      processedAt,
		ProcessingStatus: ProcessingStatus,
		Year:             r.Timestamp.Format("2006"),
		Month:            r.Timestamp.Format("01"),
		Day:              r.Timestamp.Format("02"),
	}
}

// Decoder reads records from a JSON lines stream one at a time, so a file
// never has to be materialized as a whole before its records are routed
// to partition workers.
type Decoder struct {
	r    *bufio.Reader
	line int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next record. It returns io.EOF when the stream is
// exhausted, and an ErrMalformedRecord wrapped error for an unparseable
// or oversized line. Decoding may continue after a malformed line.
func (d *Decoder) Next() (Record, error) {
	for {
		raw, tooLong, err := d.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return Record{}, err
		}
		atEOF := errors.Is(err, io.EOF)
		if len(raw) == 0 && !tooLong {
			if atEOF {
				return Record{}, io.EOF
			}
			d.line++
			continue
		}
		d.line++
		if tooLong {
			return Record{}, fmt.Errorf("%w: line %d: exceeds %d bytes", ErrMalformedRecord, d.line, maxLineSize)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Record{}, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, d.line, err)
		}
		return rec, nil
	}
}

// readLine reads up to the next newline. A line over maxLineSize is
// consumed in full so the decoder stays aligned, but reported oversized
// instead of being returned.
func (d *Decoder) readLine() (line []byte, tooLong bool, err error) {
	for {
		frag, ferr := d.r.ReadSlice('\n')
		if !tooLong {
			line = append(line, frag...)
			if len(line) > maxLineSize {
				line = nil
				tooLong = true
			}
		}
		if ferr == bufio.ErrBufferFull {
			continue
		}
		return bytes.TrimSuffix(line, []byte{'\n'}), tooLong, ferr
	}
}

// Encoder writes windowed records as JSON lines.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode appends one record line.
func (e *Encoder) Encode(rec *WindowedRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %q: %w", rec.ID, err)
	}
	if _, err := e.w.Write(raw); err != nil {
		return err
	}
	return e.w.WriteByte('\n')
}

// Flush flushes buffered lines to the underlying writer.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}
