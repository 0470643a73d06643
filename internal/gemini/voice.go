package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// TranscribeTimeout bounds one voice transcription call.
const TranscribeTimeout = 15 * time.Second

// ErrTranscribeTimeout indicates the transcription call timed out.
var ErrTranscribeTimeout = errors.New("voice transcription timed out")

// ErrEmptyTranscript indicates nothing intelligible was said.
var ErrEmptyTranscript = errors.New("no speech found in voice note")

// VoiceNote is the result of transcribing a voice message.
type VoiceNote struct {
	// Transcript is the spoken note, ready for the observation interpreter.
	Transcript string
	// Points is the daily total the worker dictated, zero when none.
	Points     int
	Confidence float64
}

type voiceNoteResponse struct {
	Transcript string  `json:"transcript"`
	Points     int     `json:"points"`
	Confidence float64 `json:"confidence"`
}

// TranscribeVoice transcribes a worker's voice note.
func (c *Client) TranscribeVoice(ctx context.Context, audio []byte, mimeType string) (*VoiceNote, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio data is required")
	}
	if mimeType == "" {
		mimeType = "audio/ogg"
	}

	text, err := c.generateJSON(ctx, "gemini.TranscribeVoice", TranscribeTimeout, ErrTranscribeTimeout,
		&genai.Blob{MIMEType: mimeType, Data: audio}, voicePrompt)
	if err != nil {
		return nil, err
	}

	note, err := parseVoiceNoteResponse(text)
	if err != nil {
		return nil, err
	}
	if note.Transcript == "" && note.Points == 0 {
		return nil, ErrEmptyTranscript
	}
	return note, nil
}

const voicePrompt = `Listen to this voice message from a warehouse worker, usually in Brazilian Portuguese.
Transcribe it and return ONLY a JSON object with no additional text or markdown formatting.

Fields:
- transcript: the spoken words, verbatim, in the original language. Write numbers as digits and dates as DD/MM/YYYY or DD/MM. Keep counts in parentheses the way the worker's notes are written, e.g. "caixas (120)" and "erros (2)".
- points: if the worker states today's total points (e.g. "fiz 2500 pontos hoje"), that number as an integer; otherwise 0.
- confidence: your confidence in the transcription (0.0 to 1.0).

Example response:
{"transcript": "ajudei no recebimento, caixas (120) erros (1)", "points": 2500, "confidence": 0.9}`

func parseVoiceNoteResponse(response string) (*VoiceNote, error) {
	var vr voiceNoteResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &vr); err != nil {
		return nil, fmt.Errorf("failed to parse voice note response: %w", err)
	}

	note := &VoiceNote{
		Transcript: SanitizeTranscript(vr.Transcript),
		Confidence: clampConfidence(vr.Confidence),
	}
	if vr.Points > 0 {
		note.Points = vr.Points
	}
	return note, nil
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
