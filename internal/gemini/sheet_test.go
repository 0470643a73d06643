package gemini

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseShiftSheetResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     *ShiftSheet
		wantErr  bool
	}{
		{
			name:     "all counters",
			response: `{"points": 2500, "boxes": 130, "errors": 1, "confidence": 0.9}`,
			want:     &ShiftSheet{Points: 2500, Boxes: 130, Errors: 1, Confidence: 0.9},
		},
		{
			name:     "missing counters",
			response: `{"points": 1800}`,
			want:     &ShiftSheet{Points: 1800},
		},
		{
			name:     "fractional truncated",
			response: `{"points": 2500.7}`,
			want:     &ShiftSheet{Points: 2500},
		},
		{
			name:     "negative rejected",
			response: `{"points": -10}`,
			wantErr:  true,
		},
		{
			name:     "huge rejected",
			response: `{"boxes": 1e12}`,
			wantErr:  true,
		},
		{
			name:     "garbage",
			response: `{"points": }`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseShiftSheetResponse(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestShiftSheet_Observation(t *testing.T) {
	t.Parallel()

	require.Equal(t, "caixas (130) erros (2)", (&ShiftSheet{Boxes: 130, Errors: 2}).Observation())
	require.Equal(t, "erros (2)", (&ShiftSheet{Errors: 2}).Observation())
	require.Empty(t, (&ShiftSheet{Points: 10}).Observation())
	require.True(t, (&ShiftSheet{}).IsEmpty())
	require.True(t, (&ShiftSheet{Points: 1}).HasPoints())
}

func TestReadShiftSheet(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		mock := &mockGenerator{response: textResponse(`{"points": 3100, "boxes": 90, "errors": 0, "confidence": 0.8}`)}
		sheet, err := NewClientWithGenerator(mock).ReadShiftSheet(context.Background(), []byte("img"), "")
		require.NoError(t, err)
		require.Equal(t, 3100, sheet.Points)
		require.Equal(t, "image/jpeg", mock.contents[0].Parts[0].InlineData.MIMEType)
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Parallel()

		mock := &mockGenerator{response: textResponse(`{"points": 0, "boxes": 0, "errors": 0}`)}
		_, err := NewClientWithGenerator(mock).ReadShiftSheet(context.Background(), []byte("img"), "image/png")
		require.ErrorIs(t, err, ErrNoSheetData)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		_, err := NewClientWithGenerator(&mockGenerator{err: context.DeadlineExceeded}).
			ReadShiftSheet(context.Background(), []byte("img"), "image/png")
		require.ErrorIs(t, err, ErrReadSheetTimeout)
	})

	t.Run("empty image", func(t *testing.T) {
		t.Parallel()

		_, err := NewClientWithGenerator(&mockGenerator{}).ReadShiftSheet(context.Background(), nil, "")
		require.ErrorContains(t, err, "image data is required")
	})
}

func TestReadShiftSheet_Integration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	path := os.Getenv("SHIFT_SHEET_SAMPLE")
	if apiKey == "" || path == "" {
		t.Skip("GEMINI_API_KEY or SHIFT_SHEET_SAMPLE not set, skipping integration test")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, apiKey)
	require.NoError(t, err)

	image, err := os.ReadFile(path)
	require.NoError(t, err)

	sheet, err := client.ReadShiftSheet(ctx, image, "image/jpeg")
	require.NoError(t, err)
	require.False(t, sheet.IsEmpty())
}

func FuzzParseShiftSheetResponse(f *testing.F) {
	f.Add(`{"points": 2500, "boxes": 130, "errors": 1, "confidence": 0.9}`)
	f.Add("```json\n{\"points\": 10}\n```")
	f.Add(`{"points": -5}`)
	f.Add(`{"points": 1e400}`)
	f.Add(`{}`)
	f.Add(``)

	f.Fuzz(func(t *testing.T, input string) {
		sheet, err := parseShiftSheetResponse(input)
		if err != nil {
			return
		}
		for _, n := range []int{sheet.Points, sheet.Boxes, sheet.Errors} {
			if n < 0 || n > maxCounter {
				t.Errorf("counter out of range from %q: %d", input, n)
			}
		}
	})
}
