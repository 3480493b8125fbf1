package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vision-inspector/internal/domain/entity"
)

func TestOutputs_PulseLastsAtLeastPulseWidth(t *testing.T) {
	drv := &recordingDriver{}
	c := NewOutputController(drv, nil, 0)

	c.Pulse(entity.ChannelOkPulse)
	require.True(t, drv.level(entity.ChannelOkPulse))

	require.Eventually(t, func() bool { return !drv.level(entity.ChannelOkPulse) }, 2*time.Second, 10*time.Millisecond)
	h := drv.history(entity.ChannelOkPulse)
	require.Len(t, h, 2)
	require.GreaterOrEqual(t, h[1].at.Sub(h[0].at), PulseWidth)
}

func TestOutputs_PulseRestartsWindow(t *testing.T) {
	drv := &recordingDriver{}
	c := NewOutputController(drv, nil, 100*time.Millisecond)

	c.Pulse(entity.ChannelNgPulse)
	time.Sleep(60 * time.Millisecond)
	second := time.Now()
	c.Pulse(entity.ChannelNgPulse)

	require.Eventually(t, func() bool { return !drv.level(entity.ChannelNgPulse) }, time.Second, 5*time.Millisecond)
	h := drv.history(entity.ChannelNgPulse)
	require.Equal(t, 1, drv.count(entity.ChannelNgPulse, false))
	require.GreaterOrEqual(t, h[len(h)-1].at.Sub(second), 100*time.Millisecond)
}

func TestOutputs_BusyOffOnce(t *testing.T) {
	drv := &recordingDriver{}
	c := NewOutputController(drv, nil, 0)

	c.BusyOn()
	c.BusyOff()
	c.BusyOff()

	require.Equal(t, 1, drv.count(entity.ChannelBusy, true))
	require.Equal(t, 1, drv.count(entity.ChannelBusy, false))
}

func TestOutputs_StopAlwaysWritesBusyOff(t *testing.T) {
	drv := &recordingDriver{}
	c := NewOutputController(drv, nil, 0)

	// линия могла остаться включённой после прошлого запуска
	c.Stop()
	require.Equal(t, 1, drv.count(entity.ChannelBusy, false))
	require.False(t, drv.level(entity.ChannelBusy))

	c.BusyOn()
	c.BusyOff()
	c.Stop()
	require.Equal(t, 3, drv.count(entity.ChannelBusy, false))
	require.False(t, drv.level(entity.ChannelBusy))
}

func TestOutputs_StopCancelsPulses(t *testing.T) {
	drv := &recordingDriver{}
	c := NewOutputController(drv, nil, 50*time.Millisecond)

	c.BusyOn()
	c.Pulse(entity.ChannelOkPulse)
	c.Stop()
	require.False(t, drv.level(entity.ChannelOkPulse))
	require.False(t, drv.level(entity.ChannelBusy))

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, drv.count(entity.ChannelOkPulse, false))
}

func TestOutputs_UserChannels(t *testing.T) {
	drv := &recordingDriver{}
	c := NewOutputController(drv, nil, 10*time.Millisecond)
	c.Load(entity.OutputMap{4: entity.OutputOnOK, 5: entity.OutputOnNG, 6: entity.OutputAlwaysOn, 7: entity.OutputAlwaysOff})

	require.True(t, drv.level(6))
	require.False(t, drv.level(7))

	c.Publish(entity.StatusOK)
	require.True(t, drv.level(4))
	require.False(t, drv.level(5))

	c.Publish(entity.StatusNG)
	require.False(t, drv.level(4))
	require.True(t, drv.level(5))

	require.Len(t, drv.history(6), 1)
	require.Len(t, drv.history(7), 1)
}

func TestOutputs_SelfTestPulsesEveryChannel(t *testing.T) {
	drv := &recordingDriver{}
	c := NewOutputController(drv, nil, 5*time.Millisecond)

	require.NoError(t, c.SelfTest(context.Background()))
	for ch := 1; ch <= entity.OutputChannels; ch++ {
		require.Equal(t, 1, drv.count(ch, true), "channel %d", ch)
	}
}
