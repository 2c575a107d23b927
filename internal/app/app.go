// -----------------------------------------------------------------------
// Last Modified: Friday, 16th October 2026 2:40:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/setwatch/internal/common"
	"github.com/ternarybob/setwatch/internal/httpclient"
	"github.com/ternarybob/setwatch/internal/interfaces"
	"github.com/ternarybob/setwatch/internal/models"
	"github.com/ternarybob/setwatch/internal/services/browser"
	"github.com/ternarybob/setwatch/internal/services/extractor"
	"github.com/ternarybob/setwatch/internal/services/mailer"
	"github.com/ternarybob/setwatch/internal/services/news"
	"github.com/ternarybob/setwatch/internal/services/notifier"
	"github.com/ternarybob/setwatch/internal/services/scheduler"
	"github.com/ternarybob/setwatch/internal/services/state"
	"github.com/ternarybob/setwatch/internal/services/transform"
	"github.com/ternarybob/setwatch/internal/services/watcher"
	"github.com/ternarybob/setwatch/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Transport
	HTTPClient *httpclient.Client
	Renderer   *browser.Renderer // nil unless source.render_javascript is set

	// State
	StateStorage interfaces.StateStorage
	StateService *state.Service

	// Pipeline services
	NewsService      *news.SETProvider
	TransformService *transform.Service
	ExtractorService *extractor.Service
	MailerService    *mailer.Service
	NotifierService  *notifier.Service
	WatcherService   *watcher.Service
	SchedulerService *scheduler.Service

	// stopWatch ends Watch with a cause; set only while Watch runs
	stopWatch context.CancelCauseFunc
}

// New initializes the application. cfg must already be validated.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, err
	}

	logger.Debug().
		Str("symbol", cfg.Watch.Symbol).
		Str("state", app.StateStorage.Location()).
		Bool("render_javascript", cfg.Source.RenderJavaScript).
		Msg("Application initialized")

	return app, nil
}

func (a *App) initStorage() error {
	stateStorage, err := storage.NewStateStorage(a.Logger, a.Config)
	if err != nil {
		return models.StorageError(models.PhaseLoad, fmt.Errorf("failed to initialize state storage: %w", err))
	}
	a.StateStorage = stateStorage
	a.StateService = state.NewService(stateStorage, a.Logger, a.Config.Watch.Symbol)
	return nil
}

func (a *App) initServices() error {
	source := a.Config.Source

	client, err := httpclient.New(
		httpclient.WithTimeout(source.Timeout()),
		httpclient.WithUserAgent(source.UserAgent),
		httpclient.WithMaxBodySize(source.MaxBodySize),
		httpclient.WithRequestInterval(source.Interval()),
		httpclient.WithLogger(a.Logger),
	)
	if err != nil {
		return models.ConfigError(fmt.Errorf("failed to create HTTP client: %w", err))
	}
	a.HTTPClient = client

	// Detail pages come from the plain client unless they need scripts to render
	var pages interfaces.PageFetcher = client
	if source.RenderJavaScript {
		a.Renderer = browser.NewRenderer(a.Logger, source.UserAgent, source.RenderWait(), source.Timeout()).
			WithAcceptLanguage(news.AcceptLanguage)
		pages = a.Renderer
	}

	a.NewsService = news.NewSETProvider(a.Logger, client, source.BaseURL, source.DebugJSON)
	a.TransformService = transform.NewService(a.Logger)
	a.ExtractorService = extractor.NewService(pages, a.TransformService, a.Logger, news.Bangkok)
	a.MailerService = mailer.NewService(a.Config.SMTP, a.Logger)
	a.NotifierService = notifier.NewService(a.MailerService, a.Config, news.Bangkok, a.Logger)
	a.WatcherService = watcher.NewService(
		a.Config,
		a.NewsService,
		a.ExtractorService,
		a.NotifierService,
		a.StateService,
		a.Logger,
	)
	a.SchedulerService = scheduler.NewService(a.runJob, news.Bangkok, a.Logger)

	return nil
}

// Run executes one watcher pass
func (a *App) Run(ctx context.Context) (*models.RunSummary, error) {
	return a.WatcherService.Run(ctx)
}

// runJob adapts Run to the scheduler. Corrupt state ends watch mode, since every
// later run would fail the same way.
func (a *App) runJob(ctx context.Context) error {
	_, err := a.Run(ctx)
	if errors.Is(err, models.ErrStateCorrupt) && a.stopWatch != nil {
		a.stopWatch(err)
	}
	return err
}

// SendTestEmail checks the SMTP settings by sending a short message
func (a *App) SendTestEmail(ctx context.Context) error {
	if err := a.MailerService.SendTestEmail(ctx, a.Config.Watch.Symbol); err != nil {
		return models.DeliveryError(err)
	}
	a.Logger.Info().Strs("to", a.Config.SMTP.To).Msg("SMTP test email sent")
	return nil
}

// Watch runs once immediately, then on the configured schedule until ctx is cancelled.
// Failed runs are logged and do not stop the schedule; state corruption, on any run, does.
func (a *App) Watch(ctx context.Context) error {
	if err := a.Config.ValidateSchedule(); err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	a.stopWatch = cancel
	defer func() { a.stopWatch = nil }()

	if err := a.SchedulerService.RunNow(watchCtx); errors.Is(err, models.ErrStateCorrupt) {
		return err
	}

	if err := a.SchedulerService.Start(watchCtx, a.Config.Schedule.Cron); err != nil {
		return models.ConfigError(err)
	}
	defer a.SchedulerService.Stop()

	a.Logger.Info().
		Str("cron", a.Config.Schedule.Cron).
		Msg("Watching for announcements - Press Ctrl+C to stop")

	<-watchCtx.Done()
	if cause := context.Cause(watchCtx); errors.Is(cause, models.ErrStateCorrupt) {
		a.Logger.Error().Err(cause).Msg("Watch stopped: seen state is corrupt")
		return cause
	}
	a.Logger.Info().Msg("Watch stopped")
	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	var errs []error

	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.Renderer != nil {
		if err := a.Renderer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close renderer: %w", err))
		}
	}

	if a.StateStorage != nil {
		if err := a.StateStorage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close state storage: %w", err))
		}
		a.Logger.Debug().Msg("State storage closed")
	}

	return errors.Join(errs...)
}
