package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ReadSheetTimeout bounds one shift-sheet call.
const ReadSheetTimeout = 30 * time.Second

// ErrReadSheetTimeout indicates the shift-sheet call timed out.
var ErrReadSheetTimeout = errors.New("shift sheet reading timed out")

// ErrNoSheetData indicates no usable counter was found in the photo.
var ErrNoSheetData = errors.New("no usable data extracted from shift sheet")

// ShiftSheet holds the counters read from a photo of a productivity sheet.
type ShiftSheet struct {
	Points     int
	Boxes      int
	Errors     int
	Confidence float64
}

// HasPoints reports whether the day's total was found.
func (s *ShiftSheet) HasPoints() bool {
	return s.Points > 0
}

// IsEmpty reports whether nothing usable was found.
func (s *ShiftSheet) IsEmpty() bool {
	return s.Points == 0 && s.Boxes == 0 && s.Errors == 0
}

// Observation renders the box and error counters as a note the observation
// interpreter understands. It is empty when both are zero.
func (s *ShiftSheet) Observation() string {
	var parts []string
	if s.Boxes > 0 {
		parts = append(parts, "caixas ("+strconv.Itoa(s.Boxes)+")")
	}
	if s.Errors > 0 {
		parts = append(parts, "erros ("+strconv.Itoa(s.Errors)+")")
	}
	return strings.Join(parts, " ")
}

type shiftSheetResponse struct {
	Points     json.Number `json:"points"`
	Boxes      json.Number `json:"boxes"`
	Errors     json.Number `json:"errors"`
	Confidence float64     `json:"confidence"`
}

// ReadShiftSheet extracts the day's counters from a sheet photo.
func (c *Client) ReadShiftSheet(ctx context.Context, image []byte, mimeType string) (*ShiftSheet, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image data is required")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	text, err := c.generateJSON(ctx, "gemini.ReadShiftSheet", ReadSheetTimeout, ErrReadSheetTimeout,
		&genai.Blob{MIMEType: mimeType, Data: image}, sheetPrompt)
	if err != nil {
		return nil, err
	}

	sheet, err := parseShiftSheetResponse(text)
	if err != nil {
		return nil, err
	}
	if sheet.IsEmpty() {
		return nil, ErrNoSheetData
	}
	return sheet, nil
}

const sheetPrompt = `Analyze this photo of a warehouse picking productivity sheet or terminal screen.
Return ONLY a JSON object with no additional text or markdown formatting.

Fields:
- points: the total points produced in the shift (integer, thousands separators removed, e.g. "2.500" = 2500)
- boxes: boxes or activities handled in the shift (integer)
- errors: picking errors in the shift (integer)
- confidence: your confidence in the extraction (0.0 to 1.0)

Use 0 for any counter that is not visible.

Example response:
{"points": 2500, "boxes": 130, "errors": 1, "confidence": 0.9}`

func parseShiftSheetResponse(response string) (*ShiftSheet, error) {
	var sr shiftSheetResponse
	dec := json.NewDecoder(strings.NewReader(extractJSON(response)))
	dec.UseNumber()
	if err := dec.Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to parse shift sheet response: %w", err)
	}

	sheet := &ShiftSheet{Confidence: clampConfidence(sr.Confidence)}
	for _, f := range []struct {
		name string
		raw  json.Number
		dst  *int
	}{
		{"points", sr.Points, &sheet.Points},
		{"boxes", sr.Boxes, &sheet.Boxes},
		{"errors", sr.Errors, &sheet.Errors},
	} {
		n, err := parseCounter(f.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = n
	}
	return sheet, nil
}

// maxCounter bounds any single counter read from a photo.
const maxCounter = 1_000_000

func parseCounter(raw json.Number) (int, error) {
	if raw == "" {
		return 0, nil
	}
	f, err := raw.Float64()
	if err != nil {
		return 0, err
	}
	if f < 0 || f > maxCounter {
		return 0, fmt.Errorf("out of range")
	}
	return int(f), nil
}
