package container

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	app "vision-inspector/internal/application"
	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/infrastructure/gpio"
	"vision-inspector/internal/infrastructure/notify"
	"vision-inspector/internal/infrastructure/storage"
)

type staticCamera struct{ frame *entity.Frame }

func (c staticCamera) Capture(context.Context, entity.CaptureHints) (*entity.Frame, error) {
	return c.frame.Clone(), nil
}

func (c staticCamera) LoadReference(context.Context, string) (*entity.Frame, error) {
	return c.frame, nil
}

func TestBuild_WiresEngineAndServices(t *testing.T) {
	frame := entity.NewFrame(10, 10)
	frame.Fill(entity.ROI{X: 0, Y: 5, W: 10, H: 5}, 255, 255, 255)
	cam := staticCamera{frame: frame}
	mem := storage.NewMemoryRepository(10)
	require.NoError(t, mem.SaveProgram(context.Background(), &entity.Program{
		ID:        "caps",
		Trigger:   entity.Trigger{Mode: entity.TriggerInternal, IntervalMS: 10000},
		Reference: "ref",
		Tools: []entity.ToolConfig{
			{ID: "area", Kind: entity.ToolArea, ROI: entity.ROI{W: 10, H: 10}, Threshold: 40},
		},
	}))

	c := &Container{}
	Build(c, Adapters{
		Camera:    cam,
		Loader:    cam,
		Outputs:   gpio.NewSimulatedDriver(nil),
		Programs:  mem,
		Sink:      mem,
		Results:   mem,
		Operators: storage.NewMemoryOperatorRepository(),
		Notifier:  notify.NewLogNotifier(nil),
	}, app.DefaultAlertRules(), app.PreviewConfig{}, 300*time.Millisecond, nil)
	defer c.Close()

	require.Empty(t, c.currentProgram())
	_, err := c.InspectionService.StartProgram(context.Background(), "caps")
	require.NoError(t, err)
	require.Equal(t, "caps", c.currentProgram())

	require.NoError(t, c.InspectionService.Trigger())
	require.Eventually(t, func() bool {
		list, _ := mem.ListResults(context.Background(), "caps", 1)
		return len(list) == 1 && list[0].Status == entity.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	c.Close()
	require.Equal(t, entity.StateStopped, c.Engine.State())
	c.Close()
}
