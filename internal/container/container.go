package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vision-inspector/config"
	"vision-inspector/internal/api/telegram"
	app "vision-inspector/internal/application"
	"vision-inspector/internal/domain/port"
	"vision-inspector/internal/infrastructure/bus"
	"vision-inspector/internal/infrastructure/camera"
	"vision-inspector/internal/infrastructure/gpio"
	"vision-inspector/internal/infrastructure/imagefile"
	"vision-inspector/internal/infrastructure/notify"
	"vision-inspector/internal/infrastructure/storage"
)

type Container struct {
	Engine            *app.Engine
	OperatorService   *app.OperatorService
	InspectionService *app.InspectionService
	Bot               *telegram.Bot

	closers []func()
}

// Adapters внешние зависимости движка, собранные по конфигурации
type Adapters struct {
	Camera    port.Camera
	Loader    port.ReferenceLoader
	Outputs   port.OutputDriver
	Triggers  port.TriggerSource
	Programs  port.ProgramRepository
	Sink      port.ResultSink
	Results   port.ResultReader
	Operators port.OperatorRepository
	Transport port.LiveTransport
	Encoder   port.PreviewEncoder
	Notifier  port.Notifier
}

// New поднимает адаптеры по конфигурации и собирает сервисы приложения
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{}
	ad, bot, err := c.adapters(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	rules := app.AlertRules{
		NGStreak:    cfg.AlertNGStreak,
		MinPassRate: cfg.AlertMinPassRate,
		MinSamples:  uint64(max(cfg.AlertMinSamples, 0)),
		Cooldown:    cfg.AlertCooldown,
	}
	preview := app.PreviewConfig{FPS: cfg.PreviewFPS, MaxSide: cfg.PreviewMaxSide}
	Build(c, ad, rules, preview, cfg.Pulse, logger)

	if bot != nil {
		c.Bot = telegram.NewBot(bot, c.OperatorService, c.InspectionService, logger)
	}
	return c, nil
}

// Build собирает движок и сервисы поверх готовых адаптеров
func Build(c *Container, ad Adapters, rules app.AlertRules, preview app.PreviewConfig, pulse time.Duration, logger *slog.Logger) {
	var producer *app.PreviewProducer
	if ad.Transport != nil && preview.FPS > 0 {
		producer = app.NewPreviewProducer(ad.Encoder, ad.Transport, preview, logger)
	}
	var alerts *app.AlertMonitor
	if ad.Notifier != nil {
		alerts = app.NewAlertMonitor(ad.Notifier, rules, logger)
	}

	c.Engine = app.NewEngine(app.Deps{
		Camera:    ad.Camera,
		Loader:    ad.Loader,
		Outputs:   ad.Outputs,
		Triggers:  ad.Triggers,
		Sink:      ad.Sink,
		Transport: ad.Transport,
		Preview:   producer,
		Alerts:    alerts,
		Logger:    logger,
		Pulse:     pulse,
	})
	c.OperatorService = app.NewOperatorService(ad.Operators)
	c.InspectionService = app.NewInspectionService(c.Engine, ad.Programs, ad.Results)
}

func (c *Container) adapters(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Adapters, *tgbotapi.BotAPI, error) {
	var ad Adapters

	// Камера
	switch cfg.CameraMode {
	case config.CameraReplay:
		cam, err := camera.NewReplayCamera(cfg.ReplayDir)
		if err != nil {
			return ad, nil, err
		}
		ad.Camera = cam
	default:
		cam, err := camera.NewGoCVCamera(cfg.CameraDevice, cfg.FrameWidth, cfg.FrameHeight)
		if err != nil {
			return ad, nil, err
		}
		c.closers = append(c.closers, func() { _ = cam.Close() })
		ad.Camera = cam
	}
	ad.Loader = imagefile.NewLoader(cfg.ReferenceDir)

	// Выходы и внешний запуск
	if cfg.GPIOMode == config.GPIOSysfs {
		drv, err := gpio.NewSysfsDriver(cfg.GPIOBase, gpio.DefaultPins)
		if err != nil {
			return ad, nil, err
		}
		ad.Outputs = drv
		watcher, err := gpio.NewEdgeWatcher(cfg.GPIOBase, cfg.TriggerPin, cfg.TriggerPoll, logger)
		if err != nil {
			return ad, nil, err
		}
		ad.Triggers = watcher
	} else {
		ad.Outputs = gpio.NewSimulatedDriver(logger)
	}

	// Хранилище
	if cfg.DatabaseURL != "" {
		store, err := storage.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return ad, nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			return ad, nil, err
		}
		repo := storage.NewRepository(store)
		ad.Programs, ad.Sink, ad.Results = repo, repo, repo
		logger.Info("using postgres storage")
	} else {
		programs, err := storage.NewYAMLProgramStore(cfg.ProgramDir)
		if err != nil {
			return ad, nil, err
		}
		mem := storage.NewMemoryRepository(cfg.ResultLimit)
		ad.Programs, ad.Sink, ad.Results = programs, mem, mem
		logger.Info("using yaml program store", slog.String("dir", cfg.ProgramDir))
	}
	ad.Operators = storage.NewMemoryOperatorRepository()

	// NATS
	if cfg.NATSURL != "" {
		subjects := bus.Subjects{Results: cfg.ResultsSubject, Preview: cfg.PreviewSubject, Trigger: cfg.TriggerSubject}
		pub, err := bus.NewPublisher(cfg.NATSURL, subjects)
		if err != nil {
			return ad, nil, fmt.Errorf("connect nats: %w", err)
		}
		c.closers = append(c.closers, pub.Close)
		ad.Transport = pub
		ad.Encoder = bus.NewEncoder(cfg.PreviewFormat, cfg.PreviewQuality)

		if cfg.RemoteTrigger && ad.Triggers == nil {
			sub, err := bus.NewSubscriber(cfg.NATSURL, cfg.TriggerSubject, c.currentProgram)
			if err != nil {
				return ad, nil, fmt.Errorf("connect nats trigger: %w", err)
			}
			c.closers = append(c.closers, sub.Close)
			ad.Triggers = sub
		}
	}

	// Оповещения
	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	var bot *tgbotapi.BotAPI
	if cfg.TelegramToken != "" {
		api, err := telegram.NewAPI(cfg.TelegramToken, logger)
		if err != nil {
			return ad, nil, err
		}
		bot = api
		notifiers = append(notifiers, notify.NewTelegramNotifier(api, ad.Operators, cfg.AlertChats))
	}
	ad.Notifier = notifiers

	return ad, bot, nil
}

// currentProgram ID программы текущего прогона для фильтра удалённых запусков
func (c *Container) currentProgram() string {
	if c.Engine == nil {
		return ""
	}
	if p := c.Engine.Program(); p != nil {
		return p.ID
	}
	return ""
}

// Close закрывает движок и внешние подключения в обратном порядке
func (c *Container) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
