package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vision-inspector/internal/domain/entity"
)

func TestAlerts_NGStreakWithCooldown(t *testing.T) {
	n := &recordingNotifier{}
	m := NewAlertMonitor(n, AlertRules{NGStreak: 3, Cooldown: time.Minute}, nil)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	ng := &entity.InspectionResult{ProgramID: "p1", Status: entity.StatusNG}
	for i := 0; i < 5; i++ {
		m.Observe(ctx, ng, entity.Statistics{})
	}
	require.Equal(t, []string{RuleNGStreak}, n.rules())

	now = now.Add(2 * time.Minute)
	m.Observe(ctx, ng, entity.Statistics{})
	require.Equal(t, []string{RuleNGStreak, RuleNGStreak}, n.rules())
}

func TestAlerts_OKResetsStreak(t *testing.T) {
	n := &recordingNotifier{}
	m := NewAlertMonitor(n, AlertRules{NGStreak: 2}, nil)
	ctx := context.Background()

	m.Observe(ctx, &entity.InspectionResult{Status: entity.StatusNG}, entity.Statistics{})
	m.Observe(ctx, &entity.InspectionResult{Status: entity.StatusOK}, entity.Statistics{})
	m.Observe(ctx, &entity.InspectionResult{Status: entity.StatusNG}, entity.Statistics{})
	require.Empty(t, n.rules())
}

func TestAlerts_PassRateNeedsSamples(t *testing.T) {
	n := &recordingNotifier{}
	m := NewAlertMonitor(n, AlertRules{MinPassRate: 90, MinSamples: 10}, nil)
	ctx := context.Background()
	ok := &entity.InspectionResult{Status: entity.StatusOK}

	m.Observe(ctx, ok, entity.Statistics{Total: 5, PassRate: 40})
	require.Empty(t, n.rules())

	m.Observe(ctx, ok, entity.Statistics{Total: 10, PassRate: 80})
	require.Equal(t, []string{RulePassRate}, n.rules())
}

func TestAlerts_PositionLockFailure(t *testing.T) {
	n := &recordingNotifier{}
	m := NewAlertMonitor(n, AlertRules{}, nil)

	r := &entity.InspectionResult{
		Status: entity.StatusNG,
		Tools: []entity.ToolResult{
			{ToolID: "pos", Name: "pos", Kind: entity.ToolPositionAdjust, Status: entity.StatusNG, Error: entity.ErrPositionLock.Error()},
		},
	}
	m.Observe(context.Background(), r, entity.Statistics{})
	require.Equal(t, []string{RulePositionLock}, n.rules())
}
