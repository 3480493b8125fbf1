package gpio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
)

// DefaultBase каталог sysfs GPIO
const DefaultBase = "/sys/class/gpio"

// DefaultPins номера BCM для каналов 1..8
var DefaultPins = [entity.OutputChannels]int{17, 18, 27, 22, 23, 24, 25, 8}

// SysfsDriver управляет выходами через /sys/class/gpio
type SysfsDriver struct {
	base string
	pins [entity.OutputChannels]int
}

// NewSysfsDriver экспортирует пины и настраивает их на выход
func NewSysfsDriver(base string, pins [entity.OutputChannels]int) (*SysfsDriver, error) {
	if base == "" {
		base = DefaultBase
	}
	d := &SysfsDriver{base: base, pins: pins}
	for _, pin := range pins {
		if err := export(base, pin, "out"); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Write выставляет уровень канала 1..8
func (d *SysfsDriver) Write(channel int, active bool) error {
	if channel < 1 || channel > entity.OutputChannels {
		return fmt.Errorf("%w: channel %d out of range", entity.ErrOutputWrite, channel)
	}
	value := "0"
	if active {
		value = "1"
	}
	path := filepath.Join(d.base, fmt.Sprintf("gpio%d", d.pins[channel-1]), "value")
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("%w: channel %d: %v", entity.ErrOutputWrite, channel, err)
	}
	return nil
}

// export делает пин доступным через sysfs и задаёт направление
func export(base string, pin int, direction string) error {
	dir := filepath.Join(base, fmt.Sprintf("gpio%d", pin))
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(base, "export"), []byte(strconv.Itoa(pin)), 0o200); err != nil {
			return fmt.Errorf("export gpio%d: %w", pin, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "direction"), []byte(direction), 0o644); err != nil {
		return fmt.Errorf("set gpio%d direction: %w", pin, err)
	}
	return nil
}

// EdgeWatcher опрашивает входной пин и сообщает о передних фронтах.
type EdgeWatcher struct {
	base     string
	pin      int
	interval time.Duration
	logger   *slog.Logger
}

// NewEdgeWatcher настраивает пин на вход. interval <= 0 означает 1 мс.
func NewEdgeWatcher(base string, pin int, interval time.Duration, logger *slog.Logger) (*EdgeWatcher, error) {
	if base == "" {
		base = DefaultBase
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := export(base, pin, "in"); err != nil {
		return nil, err
	}
	return &EdgeWatcher{base: base, pin: pin, interval: interval, logger: logger}, nil
}

// Edges запускает опрос; канал закрывается при отмене ctx
func (w *EdgeWatcher) Edges(ctx context.Context) (<-chan time.Time, error) {
	path := filepath.Join(w.base, fmt.Sprintf("gpio%d", w.pin), "value")
	prev, err := readLevel(path)
	if err != nil {
		return nil, err
	}

	out := make(chan time.Time, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			level, err := readLevel(path)
			if err != nil {
				w.logger.Warn("trigger input read failed", slog.Int("pin", w.pin), slog.Any("error", err))
				continue
			}
			if level && !prev {
				select {
				case out <- time.Now():
				default:
				}
			}
			prev = level
		}
	}()
	return out, nil
}

func readLevel(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

var (
	_ port.OutputDriver  = (*SysfsDriver)(nil)
	_ port.TriggerSource = (*EdgeWatcher)(nil)
)
