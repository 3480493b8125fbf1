package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func validProgram() *Program {
	return &Program{
		ID:        "caps",
		Trigger:   Trigger{Mode: TriggerInternal, IntervalMS: 500},
		Reference: "caps.png",
		Tools: []ToolConfig{
			{ID: "pos", Kind: ToolPositionAdjust, ROI: ROI{X: 10, Y: 10, W: 20, H: 20}, Threshold: 60},
			{ID: "area", Kind: ToolArea, ROI: ROI{W: 10, H: 10}, Threshold: 40, Order: 2},
			{ID: "edge", Kind: ToolEdgeDetection, ROI: ROI{W: 10, H: 10}, Threshold: 40, Order: 1},
		},
		Outputs: OutputMap{4: OutputOnOK, 8: OutputAlwaysOn},
	}
}

func TestProgramValidate(t *testing.T) {
	require.NoError(t, validProgram().Validate())

	upper := 30.0
	cases := []struct {
		name   string
		mutate func(p *Program)
		field  string
	}{
		{"missing id", func(p *Program) { p.ID = "" }, "id"},
		{"interval too long", func(p *Program) { p.Trigger.IntervalMS = 10001 }, "trigger.interval_ms"},
		{"interval zero", func(p *Program) { p.Trigger.IntervalMS = 0 }, "trigger.interval_ms"},
		{"delay too long", func(p *Program) { p.Trigger = Trigger{Mode: TriggerExternal, DelayMS: 1001} }, "trigger.delay_ms"},
		{"unknown trigger", func(p *Program) { p.Trigger.Mode = "manual" }, "trigger.mode"},
		{"brightness", func(p *Program) { p.Capture.Brightness = "night" }, "capture.brightness"},
		{"focus", func(p *Program) { p.Capture.Focus = 101 }, "capture.focus"},
		{"reference", func(p *Program) { p.Reference = "" }, "reference"},
		{"empty roi", func(p *Program) { p.Tools[1].ROI.W = 0 }, "tools[1].roi"},
		{"threshold", func(p *Program) { p.Tools[1].Threshold = 101 }, "tools[1].threshold"},
		{"upper below threshold", func(p *Program) { p.Tools[1].UpperLimit = &upper }, "tools[1].upper_limit"},
		{"unknown kind", func(p *Program) { p.Tools[2].Kind = "ocr" }, "tools[2].kind"},
		{"duplicate id", func(p *Program) { p.Tools[2].ID = "area" }, "tools[2].id"},
		{"two position tools", func(p *Program) { p.Tools[2].Kind = ToolPositionAdjust }, "tools"},
		{"reserved channel", func(p *Program) { p.Outputs[2] = OutputOnOK }, "outputs"},
		{"channel out of range", func(p *Program) { p.Outputs[9] = OutputOnOK }, "outputs"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validProgram()
			tc.mutate(p)
			err := p.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrConfig))
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestProgramValidate_TooManyTools(t *testing.T) {
	p := validProgram()
	p.Tools = nil
	for i := 0; i <= MaxTools; i++ {
		p.Tools = append(p.Tools, ToolConfig{ID: string(rune('a' + i)), Kind: ToolArea, ROI: ROI{W: 1, H: 1}})
	}
	var cfgErr *ConfigError
	require.ErrorAs(t, p.Validate(), &cfgErr)
	require.Equal(t, "tools", cfgErr.Field)
}

func TestOrderedTools_Stable(t *testing.T) {
	p := validProgram()
	ids := []string{}
	for _, tool := range p.OrderedTools() {
		ids = append(ids, tool.ID)
	}
	require.Equal(t, []string{"pos", "edge", "area"}, ids)
	require.Equal(t, "pos", p.Tools[0].ID)
	require.Equal(t, "area", p.Tools[1].ID)

	pos, ok := p.PositionTool()
	require.True(t, ok)
	require.Equal(t, "pos", pos.ID)
}

func TestToolJudge(t *testing.T) {
	upper := 80.0
	tool := ToolConfig{Threshold: 40, UpperLimit: &upper}
	require.Equal(t, StatusNG, tool.Judge(39.9))
	require.Equal(t, StatusOK, tool.Judge(40))
	require.Equal(t, StatusOK, tool.Judge(80))
	require.Equal(t, StatusNG, tool.Judge(80.1))
}

func TestOutputMapCondition(t *testing.T) {
	m := OutputMap{4: OutputOnNG}
	require.Equal(t, OutputOnNG, m.Condition(4))
	require.Equal(t, OutputUnused, m.Condition(5))
}

func TestAggregate(t *testing.T) {
	status, conf := Aggregate([]ToolResult{
		{Status: StatusOK, Confidence: 90},
		{Status: StatusOK, Confidence: 70},
	})
	require.Equal(t, StatusOK, status)
	require.InDelta(t, 80, conf, 1e-9)

	status, conf = Aggregate([]ToolResult{
		{Status: StatusOK, Confidence: 100},
		{Status: StatusNG, Confidence: 40},
	})
	require.Equal(t, StatusNG, status)
	require.InDelta(t, 70, conf, 1e-9)

	status, conf = Aggregate(nil)
	require.Equal(t, StatusOK, status)
	require.Zero(t, conf)
}

func TestROI(t *testing.T) {
	r := ROI{X: 5, Y: 5, W: 10, H: 10}
	require.Equal(t, 100, r.Area())
	require.Equal(t, ROI{X: 8, Y: 3, W: 10, H: 10}, r.Shift(Offset{DX: 3, DY: -2}))
	require.Equal(t, ROI{X: 3, Y: 3, W: 14, H: 14}, r.Expand(2))
	require.True(t, r.Inside(15, 15))
	require.False(t, r.Inside(14, 15))
	require.Equal(t, ROI{X: 5, Y: 5, W: 5, H: 5}, ROI{X: 5, Y: 5, W: 20, H: 20}.Clamp(10, 10))
	require.Equal(t, 0, ROI{X: 20, Y: 20, W: 5, H: 5}.Clamp(10, 10).Area())
}

func TestFrame(t *testing.T) {
	f := NewFrame(4, 3)
	require.False(t, f.Empty())
	require.True(t, (&Frame{Width: 2, Height: 2}).Empty())

	f.Fill(ROI{X: 1, Y: 1, W: 10, H: 10}, 10, 20, 30)
	r, g, b := f.RGB(3, 2)
	require.Equal(t, []uint8{10, 20, 30}, []uint8{r, g, b})
	r, _, _ = f.RGB(0, 0)
	require.Zero(t, r)

	c := f.Clone()
	require.Equal(t, f.Checksum(), c.Checksum())
	c.SetRGB(0, 0, 1, 1, 1)
	require.NotEqual(t, f.Checksum(), c.Checksum())
}
