package inspection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/vision"
)

// noiseFrame кадр с псевдослучайной серой текстурой
func noiseFrame(w, h int, seed uint32) *entity.Frame {
	f := entity.NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			seed = seed*1664525 + 1013904223
			v := uint8(seed >> 24)
			f.SetRGB(x, y, v, v, v)
		}
	}
	return f
}

// shiftFrame сдвигает содержимое кадра на (dx, dy), открывшиеся края чёрные
func shiftFrame(src *entity.Frame, dx, dy int) *entity.Frame {
	out := entity.NewFrame(src.Width, src.Height)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			sx, sy := x-dx, y-dy
			if sx < 0 || sy < 0 || sx >= src.Width || sy >= src.Height {
				continue
			}
			r, g, b := src.RGB(sx, sy)
			out.SetRGB(x, y, r, g, b)
		}
	}
	return out
}

func register(t *testing.T, ref *entity.Frame, tools ...entity.ToolConfig) *Snapshot {
	t.Helper()
	snap, err := NewFeatureStore(nil).Register("p1", ref, tools)
	require.NoError(t, err)
	return snap
}

func process(t *testing.T, snap *Snapshot, frame *entity.Frame, tool entity.ToolConfig) entity.ToolResult {
	t.Helper()
	master, ok := snap.Get(tool.ID)
	require.True(t, ok)
	return Process(frame, tool.ROI, tool, master)
}

func TestArea_HalfWhiteRoi(t *testing.T) {
	ref := entity.NewFrame(20, 20)
	ref.Fill(entity.ROI{X: 0, Y: 5, W: 20, H: 5}, 255, 255, 255)
	tool := entity.ToolConfig{ID: "a", Kind: entity.ToolArea, ROI: entity.ROI{X: 0, Y: 0, W: 20, H: 10}, Threshold: 40}
	snap := register(t, ref, tool)

	res := process(t, snap, ref.Clone(), tool)
	require.Equal(t, entity.StatusOK, res.Status)
	require.InDelta(t, 50.0, res.MatchingRate, 1e-9)
	require.InDelta(t, 100.0, res.Confidence, 1e-9)
	require.Empty(t, res.Error)
}

func TestArea_AllBlackIsNG(t *testing.T) {
	ref := entity.NewFrame(20, 20)
	ref.Fill(entity.ROI{X: 0, Y: 5, W: 20, H: 5}, 255, 255, 255)
	tool := entity.ToolConfig{ID: "a", Kind: entity.ToolArea, ROI: entity.ROI{X: 0, Y: 0, W: 20, H: 10}, Threshold: 40}
	snap := register(t, ref, tool)

	res := process(t, snap, entity.NewFrame(20, 20), tool)
	require.Equal(t, entity.StatusNG, res.Status)
	require.Zero(t, res.MatchingRate)
	require.InDelta(t, 50.0, res.Confidence, 1e-9)
}

func TestArea_UpperLimit(t *testing.T) {
	ref := entity.NewFrame(10, 10)
	ref.Fill(entity.ROI{X: 0, Y: 0, W: 10, H: 5}, 255, 255, 255)
	upper := 45.0
	tool := entity.ToolConfig{ID: "a", Kind: entity.ToolArea, ROI: entity.ROI{W: 10, H: 10}, Threshold: 10, UpperLimit: &upper}
	snap := register(t, ref, tool)

	res := process(t, snap, ref, tool)
	require.Equal(t, entity.StatusNG, res.Status)
	require.InDelta(t, 50.0, res.MatchingRate, 1e-9)
}

func TestOutline_SameShapeMatches(t *testing.T) {
	ref := entity.NewFrame(40, 40)
	ref.Fill(entity.ROI{X: 10, Y: 10, W: 12, H: 8}, 255, 255, 255)
	tool := entity.ToolConfig{ID: "o", Kind: entity.ToolOutline, ROI: entity.ROI{X: 5, Y: 5, W: 30, H: 30}, Threshold: 90}
	snap := register(t, ref, tool)

	moved := entity.NewFrame(40, 40)
	moved.Fill(entity.ROI{X: 14, Y: 16, W: 12, H: 8}, 255, 255, 255)

	res := process(t, snap, moved, tool)
	require.Equal(t, entity.StatusOK, res.Status)
	require.InDelta(t, 100.0, res.MatchingRate, 1e-6)
	require.InDelta(t, 100.0, res.Confidence, 1e-9)
}

func TestOutline_NoForeground(t *testing.T) {
	ref := entity.NewFrame(40, 40)
	ref.Fill(entity.ROI{X: 10, Y: 10, W: 12, H: 8}, 255, 255, 255)
	tool := entity.ToolConfig{ID: "o", Kind: entity.ToolOutline, ROI: entity.ROI{X: 5, Y: 5, W: 30, H: 30}, Threshold: 0}
	snap := register(t, ref, tool)

	res := process(t, snap, entity.NewFrame(40, 40), tool)
	require.Equal(t, entity.StatusNG, res.Status)
	require.Zero(t, res.MatchingRate)
	require.Zero(t, res.Confidence)
}

func TestOutline_EmptyMasterIsInvalidReference(t *testing.T) {
	tool := entity.ToolConfig{ID: "o", Kind: entity.ToolOutline, ROI: entity.ROI{W: 10, H: 10}}
	_, err := NewFeatureStore(nil).Register("p1", entity.NewFrame(20, 20), []entity.ToolConfig{tool})
	require.ErrorIs(t, err, entity.ErrInvalidReference)
}

func TestColorArea_MatchesMasterColor(t *testing.T) {
	ref := entity.NewFrame(20, 20)
	ref.Fill(entity.ROI{W: 10, H: 10}, 255, 0, 0)
	tool := entity.ToolConfig{ID: "c", Kind: entity.ToolColorArea, ROI: entity.ROI{W: 10, H: 10}, Threshold: 50}
	snap := register(t, ref, tool)

	res := process(t, snap, ref, tool)
	require.Equal(t, entity.StatusOK, res.Status)
	require.InDelta(t, 100.0, res.MatchingRate, 1e-9)

	blue := entity.NewFrame(20, 20)
	blue.Fill(entity.ROI{W: 10, H: 10}, 0, 0, 255)
	res = process(t, snap, blue, tool)
	require.Equal(t, entity.StatusNG, res.Status)
	require.Zero(t, res.MatchingRate)
	require.Zero(t, res.Confidence)
}

func TestColorArea_SamplePoints(t *testing.T) {
	ref := entity.NewFrame(10, 10)
	ref.Fill(entity.ROI{W: 10, H: 3}, 0, 255, 0)
	ref.Fill(entity.ROI{Y: 3, W: 10, H: 7}, 0, 0, 255)
	tool := entity.ToolConfig{
		ID: "c", Kind: entity.ToolColorArea, ROI: entity.ROI{W: 10, H: 10},
		Params: entity.ToolParams{ColorSamples: []entity.Point{{X: 1, Y: 1}}},
	}
	snap := register(t, ref, tool)

	res := process(t, snap, ref, tool)
	require.InDelta(t, 30.0, res.MatchingRate, 1e-9)
}

func TestColorArea_RedAcrossHueWrap(t *testing.T) {
	// левая половина тон 179, правая тон 1
	ref := entity.NewFrame(10, 10)
	ref.Fill(entity.ROI{W: 5, H: 10}, 255, 0, 8)
	ref.Fill(entity.ROI{X: 5, W: 5, H: 10}, 255, 8, 0)
	tool := entity.ToolConfig{
		ID: "c", Kind: entity.ToolColorArea, ROI: entity.ROI{W: 10, H: 10}, Threshold: 50,
		Params: entity.ToolParams{ColorSamples: []entity.Point{{X: 1, Y: 1}, {X: 8, Y: 1}}},
	}
	snap := register(t, ref, tool)
	master, ok := snap.Get("c")
	require.True(t, ok)
	require.Equal(t, vision.HSV{H: 0, S: 255, V: 255}, master.Band.Center)

	res := process(t, snap, ref, tool)
	require.Equal(t, entity.StatusOK, res.Status)
	require.InDelta(t, 100.0, res.MatchingRate, 1e-9)

	green := entity.NewFrame(10, 10)
	green.Fill(entity.ROI{W: 10, H: 10}, 0, 255, 0)
	res = process(t, snap, green, tool)
	require.Equal(t, entity.StatusNG, res.Status)
	require.Zero(t, res.MatchingRate)
}

func TestColorArea_SampleSaturationIsRounded(t *testing.T) {
	// S образцов 255 и 254, среднее 254.5 округляется до 255
	ref := entity.NewFrame(4, 1)
	ref.Fill(entity.ROI{W: 2, H: 1}, 255, 0, 0)
	ref.Fill(entity.ROI{X: 2, W: 2, H: 1}, 255, 1, 1)
	tool := entity.ToolConfig{
		ID: "c", Kind: entity.ToolColorArea, ROI: entity.ROI{W: 4, H: 1},
		Params: entity.ToolParams{ColorSamples: []entity.Point{{X: 0, Y: 0}, {X: 3, Y: 0}}},
	}
	require.Equal(t, uint8(254), vision.ToHSV(255, 1, 1).S)
	snap := register(t, ref, tool)
	master, _ := snap.Get("c")
	require.Equal(t, uint8(255), master.Band.Center.S)
	require.Equal(t, uint8(255), master.Band.Center.V)
}

func TestEdgeDetection_DensityAgainstMaster(t *testing.T) {
	ref := entity.NewFrame(40, 20)
	ref.Fill(entity.ROI{X: 10, W: 30, H: 20}, 255, 255, 255)
	tool := entity.ToolConfig{ID: "e", Kind: entity.ToolEdgeDetection, ROI: entity.ROI{W: 40, H: 20}, Threshold: 80}
	snap := register(t, ref, tool)

	res := process(t, snap, ref, tool)
	require.Equal(t, entity.StatusOK, res.Status)
	require.InDelta(t, 100.0, res.MatchingRate, 1e-9)
	require.Equal(t, res.MatchingRate, res.Confidence)

	res = process(t, snap, entity.NewFrame(40, 20), tool)
	require.Equal(t, entity.StatusNG, res.Status)
	require.Zero(t, res.MatchingRate)
}

func TestProcess_RoiOutOfBounds(t *testing.T) {
	ref := entity.NewFrame(20, 20)
	ref.Fill(entity.ROI{W: 20, H: 10}, 255, 255, 255)
	tool := entity.ToolConfig{ID: "a", Kind: entity.ToolArea, ROI: entity.ROI{W: 20, H: 20}}
	snap := register(t, ref, tool)
	master, _ := snap.Get("a")

	res := Process(ref, entity.ROI{X: 5, W: 20, H: 20}, tool, master)
	require.Equal(t, entity.StatusNG, res.Status)
	require.Contains(t, res.Error, entity.ErrRoiOutOfBounds.Error())
}

func TestProcess_Deterministic(t *testing.T) {
	ref := noiseFrame(60, 60, 3)
	tools := []entity.ToolConfig{
		{ID: "a", Kind: entity.ToolArea, ROI: entity.ROI{X: 5, Y: 5, W: 20, H: 20}},
		{ID: "c", Kind: entity.ToolColorArea, ROI: entity.ROI{X: 30, Y: 5, W: 20, H: 20}},
		{ID: "e", Kind: entity.ToolEdgeDetection, ROI: entity.ROI{X: 5, Y: 30, W: 20, H: 20}},
	}
	snap := register(t, ref, tools...)
	frame := noiseFrame(60, 60, 9)

	for _, tool := range tools {
		first := process(t, snap, frame, tool)
		second := process(t, snap, frame, tool)
		require.Equal(t, first, second)
		require.GreaterOrEqual(t, first.MatchingRate, 0.0)
		require.LessOrEqual(t, first.MatchingRate, 100.0)
		require.GreaterOrEqual(t, first.Confidence, 0.0)
		require.LessOrEqual(t, first.Confidence, 100.0)
	}
}

func TestProcess_RatesStayInRange(t *testing.T) {
	ref := noiseFrame(30, 30, 5)
	roi := entity.ROI{X: 5, Y: 5, W: 20, H: 20}
	tools := []entity.ToolConfig{
		{ID: "a", Kind: entity.ToolArea, ROI: roi, Threshold: 50},
		{ID: "c", Kind: entity.ToolColorArea, ROI: roi, Threshold: 50},
		{ID: "e", Kind: entity.ToolEdgeDetection, ROI: roi, Threshold: 50},
	}
	snap := register(t, ref, tools...)

	white := entity.NewFrame(30, 30)
	white.Fill(entity.ROI{W: 30, H: 30}, 255, 255, 255)
	frames := map[string]*entity.Frame{
		"black": entity.NewFrame(30, 30),
		"white": white,
		"noise": noiseFrame(30, 30, 77),
	}
	for name, frame := range frames {
		for _, tool := range tools {
			res := process(t, snap, frame, tool)
			for _, v := range []float64{res.MatchingRate, res.Confidence} {
				require.False(t, math.IsNaN(v), "%s/%s", name, tool.ID)
				require.GreaterOrEqual(t, v, 0.0, "%s/%s", name, tool.ID)
				require.LessOrEqual(t, v, 100.0, "%s/%s", name, tool.ID)
			}
			require.Contains(t, []entity.Status{entity.StatusOK, entity.StatusNG}, res.Status)
		}
	}
}

func TestProcess_PanicBecomesNG(t *testing.T) {
	ref := noiseFrame(20, 20, 1)
	tool := entity.ToolConfig{ID: "a", Kind: entity.ToolArea, ROI: entity.ROI{W: 10, H: 10}}
	snap := register(t, ref, tool)
	master, _ := snap.Get("a")

	var res entity.ToolResult
	require.NotPanics(t, func() { res = Process(nil, tool.ROI, tool, master) })
	require.Equal(t, entity.StatusNG, res.Status)
	require.Equal(t, "a", res.ToolID)
	require.Contains(t, res.Error, "tool panicked")
	require.Zero(t, res.MatchingRate)
}

func TestCompensate_PanicBecomesNG(t *testing.T) {
	tool := entity.ToolConfig{ID: "p", Kind: entity.ToolPositionAdjust, ROI: entity.ROI{X: 4, Y: 4, W: 6, H: 6}}
	snap := register(t, noiseFrame(20, 20, 2), tool)
	master, _ := snap.Get("p")

	var (
		res    entity.ToolResult
		offset *entity.Offset
	)
	require.NotPanics(t, func() { res, offset = Compensate(nil, tool, master) })
	require.Equal(t, entity.StatusNG, res.Status)
	require.Contains(t, res.Error, "tool panicked")
	require.Nil(t, offset)

	// шаблон короче своих размеров
	master.Template = &vision.Gray{W: 4, H: 4, Pix: []uint8{0, 255}}
	require.NotPanics(t, func() { res, offset = Compensate(noiseFrame(20, 20, 2), tool, master) })
	require.Equal(t, entity.StatusNG, res.Status)
	require.NotEmpty(t, res.Error)
	require.Nil(t, offset)

	require.NotPanics(t, func() { res = Process(noiseFrame(20, 20, 2), tool.ROI, tool, master) })
	require.Equal(t, entity.StatusNG, res.Status)
	require.NotEmpty(t, res.Error)
}
