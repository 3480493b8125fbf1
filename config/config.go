package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Режимы камеры и выходов
const (
	CameraDevice = "device"
	CameraReplay = "replay"

	GPIOSimulated = "simulated"
	GPIOSysfs     = "sysfs"
)

type Config struct {
	LogLevel      slog.Level
	TelegramToken string
	AlertChats    []int64

	HTTPAddr    string
	HTTPTimeout time.Duration

	CameraMode   string
	CameraDevice string
	ReplayDir    string
	FrameWidth   int
	FrameHeight  int

	ReferenceDir string
	ProgramDir   string
	DatabaseURL  string
	ResultLimit  int

	NATSURL        string
	ResultsSubject string
	PreviewSubject string
	TriggerSubject string
	RemoteTrigger  bool

	GPIOMode    string
	GPIOBase    string
	TriggerPin  int
	TriggerPoll time.Duration
	Pulse       time.Duration

	PreviewFPS     int
	PreviewMaxSide int
	PreviewFormat  string
	PreviewQuality int

	AlertNGStreak    int
	AlertMinPassRate float64
	AlertMinSamples  int
	AlertCooldown    time.Duration

	AutostartProgram string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	level, err := parseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	chats, err := parseChats(os.Getenv("TELEGRAM_ALERT_CHATS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:      level,
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		AlertChats:    chats,

		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		HTTPTimeout: getenvDuration("HTTP_TIMEOUT", 10*time.Second),

		CameraMode:   getenv("CAMERA_MODE", CameraDevice),
		CameraDevice: getenv("CAMERA_DEVICE", "0"),
		ReplayDir:    os.Getenv("CAMERA_REPLAY_DIR"),
		FrameWidth:   getenvInt("CAMERA_WIDTH", 1280),
		FrameHeight:  getenvInt("CAMERA_HEIGHT", 720),

		ReferenceDir: getenv("REFERENCE_DIR", "references"),
		ProgramDir:   getenv("PROGRAM_DIR", "programs"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		ResultLimit:  getenvInt("RESULT_LOG_LIMIT", 1000),

		NATSURL:        os.Getenv("NATS_URL"),
		ResultsSubject: getenv("NATS_RESULTS_SUBJECT", "inspection.results"),
		PreviewSubject: getenv("NATS_PREVIEW_SUBJECT", "inspection.preview"),
		TriggerSubject: getenv("NATS_TRIGGER_SUBJECT", "inspection.trigger"),
		RemoteTrigger:  getenvBool("NATS_REMOTE_TRIGGER", false),

		GPIOMode:    getenv("GPIO_MODE", GPIOSimulated),
		GPIOBase:    getenv("GPIO_BASE", "/sys/class/gpio"),
		TriggerPin:  getenvInt("GPIO_TRIGGER_PIN", 4),
		TriggerPoll: getenvDuration("GPIO_TRIGGER_POLL", 2*time.Millisecond),
		Pulse:       getenvDuration("OUTPUT_PULSE", 300*time.Millisecond),

		PreviewFPS:     getenvInt("PREVIEW_FPS", 0),
		PreviewMaxSide: getenvInt("PREVIEW_MAX_SIDE", 640),
		PreviewFormat:  getenv("PREVIEW_FORMAT", "jpeg"),
		PreviewQuality: getenvInt("PREVIEW_QUALITY", 75),

		AlertNGStreak:    getenvInt("ALERT_NG_STREAK", 5),
		AlertMinPassRate: getenvFloat("ALERT_MIN_PASS_RATE", 90),
		AlertMinSamples:  getenvInt("ALERT_MIN_SAMPLES", 20),
		AlertCooldown:    getenvDuration("ALERT_COOLDOWN", 5*time.Minute),

		AutostartProgram: os.Getenv("AUTOSTART_PROGRAM"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CameraMode {
	case CameraDevice:
	case CameraReplay:
		if c.ReplayDir == "" {
			return fmt.Errorf("CAMERA_REPLAY_DIR is required for replay camera")
		}
	default:
		return fmt.Errorf("unknown CAMERA_MODE %q", c.CameraMode)
	}
	switch c.GPIOMode {
	case GPIOSimulated, GPIOSysfs:
	default:
		return fmt.Errorf("unknown GPIO_MODE %q", c.GPIOMode)
	}
	switch c.PreviewFormat {
	case "jpeg", "webp":
	default:
		return fmt.Errorf("unknown PREVIEW_FORMAT %q", c.PreviewFormat)
	}
	if c.PreviewFPS < 0 || c.PreviewFPS > 60 {
		return fmt.Errorf("PREVIEW_FPS must be 0-60, got %d", c.PreviewFPS)
	}
	if c.Pulse < 300*time.Millisecond {
		return fmt.Errorf("OUTPUT_PULSE must be at least 300ms, got %s", c.Pulse)
	}
	return nil
}

func getenv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getenvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

// parseChats разбирает список ID чатов через запятую
func parseChats(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALERT_CHATS entry %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}
