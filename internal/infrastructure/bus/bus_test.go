package bus

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vision-inspector/internal/domain/entity"
)

func TestSubjects(t *testing.T) {
	s := DefaultSubjects()
	require.Equal(t, "inspection.results.caps", s.ResultSubject("caps"))
	require.Equal(t, "inspection.preview.caps", s.PreviewSubject("caps"))
}

func TestFrameMsg_Headers(t *testing.T) {
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := FrameMsg("inspection.preview.caps", &entity.PreviewFrame{
		ProgramID: "caps", Seq: 42, Width: 320, Height: 240,
		ContentType: "image/jpeg", Data: []byte{1, 2, 3}, Timestamp: ts,
	})
	require.Equal(t, "inspection.preview.caps", msg.Subject)
	require.Equal(t, []byte{1, 2, 3}, msg.Data)
	require.Equal(t, "image/jpeg", msg.Header.Get("Content-Type"))
	require.Equal(t, "42", msg.Header.Get("Seq"))
	require.Equal(t, "320", msg.Header.Get("Width"))
	require.Equal(t, ts.Format(time.RFC3339Nano), msg.Header.Get("Timestamp"))
}

func TestSubscriber_Accept(t *testing.T) {
	s := &Subscriber{programID: func() string { return "caps" }}
	require.True(t, s.accept(nil))
	require.True(t, s.accept([]byte(`{}`)))
	require.True(t, s.accept([]byte(`{"program_id":"caps"}`)))
	require.False(t, s.accept([]byte(`{"program_id":"labels"}`)))
	require.False(t, s.accept([]byte(`not json`)))
}

func TestJPEGEncoder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(2, 2, color.RGBA{R: 255, A: 255})

	data, contentType, err := JPEGEncoder{Quality: 90}.Encode(img)
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", contentType)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestNewEncoder_FallsBackToJPEG(t *testing.T) {
	require.IsType(t, JPEGEncoder{}, NewEncoder("jpeg", 0))
	if !webpAvailable {
		require.IsType(t, JPEGEncoder{}, NewEncoder("webp", 0))
	}
}
