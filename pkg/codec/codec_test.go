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

package codec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecoderNext(t *testing.T) {
	input := `{"id":"r1","name":"alpha","value":10,"timestamp":"2024-03-01T10:00:00Z"}

{"id":"r2","name":"beta","value":20,"timestamp":"2024-03-01T11:00:00Z"}
`
	dec := NewDecoder(strings.NewReader(input))

	rec, err := dec.Next()
	assert.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
	assert.Equal(t, "alpha", rec.PartitionKey())
	assert.Equal(t, int64(10), rec.Value)

	rec, err = dec.Next()
	assert.NoError(t, err)
	assert.Equal(t, "r2", rec.ID)

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderMalformedLine(t *testing.T) {
	input := `{"id":"r1","name":"alpha","value":1,"timestamp":"2024-03-01T10:00:00Z"}
not json at all
{"id":"r3","name":"alpha","value":3,"timestamp":"2024-03-01T12:00:00Z"}
`
	dec := NewDecoder(strings.NewReader(input))

	rec, err := dec.Next()
	assert.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)

	_, err = dec.Next()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRecord))
	assert.Contains(t, err.Error(), "line 2")

	// the decoder can continue past a malformed line
	rec, err = dec.Next()
	assert.NoError(t, err)
	assert.Equal(t, "r3", rec.ID)

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderOversizedLine(t *testing.T) {
	input := `{"id":"r1","name":"alpha","value":1,"timestamp":"2024-03-01T10:00:00Z"}` + "\n" +
		strings.Repeat("x", 2*1024*1024) + "\n" +
		`{"id":"r3","name":"alpha","value":3,"timestamp":"2024-03-01T12:00:00Z"}` + "\n"
	dec := NewDecoder(strings.NewReader(input))

	rec, err := dec.Next()
	assert.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)

	_, err = dec.Next()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRecord))
	assert.Contains(t, err.Error(), "exceeds")

	// the decoder realigns on the next line
	rec, err = dec.Next()
	assert.NoError(t, err)
	assert.Equal(t, "r3", rec.ID)

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderOversizedLastLineWithoutNewline(t *testing.T) {
	dec := NewDecoder(strings.NewReader(strings.Repeat("x", 2*1024*1024)))
	_, err := dec.Next()
	assert.True(t, errors.Is(err, ErrMalformedRecord))
	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderEmptyStream(t *testing.T) {
	dec := NewDecoder(strings.NewReader(""))
	_, err := dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestNewWindowedRecord(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 30, 0, 0, time.UTC)
	processedAt := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	wr := NewWindowedRecord(Record{ID: "r1", Name: "alpha", Value: 5, Timestamp: ts}, 3, processedAt)
	assert.Equal(t, int64(3), wr.Rank)
	assert.Equal(t, ProcessingStatus, wr.ProcessingStatus)
	assert.Equal(t, processedAt, wr.ProcessedAt)
	assert.Equal(t, "2024", wr.Year)
	assert.Equal(t, "03", wr.Month)
	assert.Equal(t, "07", wr.Day)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 30, 0, 0, time.UTC)
	wr := NewWindowedRecord(Record{ID: "r1", Name: "alpha", Value: 5, Timestamp: ts}, 1, ts)

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	assert.NoError(t, enc.Encode(&wr))
	assert.NoError(t, enc.Flush())

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, `"rank":1`)
	assert.Contains(t, line, `"processing_status":"processed"`)
	assert.Contains(t, line, `"year":"2024"`)

	// sink files are valid decoder input for the Record subset
	dec := NewDecoder(strings.NewReader(line))
	rec, err := dec.Next()
	assert.NoError(t, err)
	assert.Equal(t, wr.ID, rec.ID)
	assert.Equal(t, wr.Value, rec.Value)
}
