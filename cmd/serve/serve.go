// Package serve implements the command that runs the HTTP API.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/krishisahay/krishisahay-go/internal/advisory"
	"github.com/krishisahay/krishisahay-go/internal/api"
	"github.com/krishisahay/krishisahay-go/internal/buildinfo"
	"github.com/krishisahay/krishisahay-go/internal/classifier"
	"github.com/krishisahay/krishisahay-go/internal/conf"
	"github.com/krishisahay/krishisahay-go/internal/datastore"
	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/httpclient"
	"github.com/krishisahay/krishisahay-go/internal/imageprep"
	"github.com/krishisahay/krishisahay-go/internal/logger"
	"github.com/krishisahay/krishisahay-go/internal/lookup"
	"github.com/krishisahay/krishisahay-go/internal/observability"
	"github.com/krishisahay/krishisahay-go/internal/scraper"
	"github.com/krishisahay/krishisahay-go/internal/session"
	"github.com/krishisahay/krishisahay-go/internal/speech"
	"github.com/krishisahay/krishisahay-go/internal/uploads"
)

const sentryFlushTimeout = 2 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var (
		listen    string
		modelPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Load the disease model, connect the upstream services and database, and serve the HTTP API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				settings.Server.Listen = listen
			}
			if cmd.Flags().Changed("model") {
				settings.Model.Path = modelPath
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings, build)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address, overrides server.listen")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Path to the .tflite disease model, overrides model.path")

	return cmd
}

// Run builds every service from settings and serves until ctx is cancelled.
func Run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	log := logger.Global().Module("serve")
	log.Info("starting KrishiSahay",
		logger.String("version", build.GetVersion()),
		logger.String("build_date", build.GetBuildDate()),
		logger.String("config_file", settings.ConfigFile))

	if settings.Sentry.DSN != "" {
		if err := initSentry(settings, build); err != nil {
			log.Warn("error telemetry disabled", logger.Error(err))
		} else {
			defer sentry.Flush(sentryFlushTimeout)
		}
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	clientCfg := httpclient.DefaultConfig()
	clientCfg.UserAgent = "KrishiSahay/" + build.GetVersion()
	client := httpclient.New(&clientCfg)
	client.SetAfterResponseHook(m.Upstream.HTTPClientHook())
	defer client.Close()

	cls, err := classifier.New(classifier.Config{
		ModelPath:  settings.Model.Path,
		LabelsPath: settings.Model.LabelsPath,
		Threads:    settings.Model.Threads,
	}, m.Classifier)
	if err != nil {
		return err
	}
	defer cls.Close()

	var gen advisory.Generator
	gemini, err := advisory.NewGeminiGenerator(ctx, settings.Gemini.APIKey, settings.Gemini.Model)
	switch {
	case errors.Is(err, advisory.ErrNotConfigured):
		log.Warn("gemini.apikey not set, advisory endpoints will fail")
	case err != nil:
		return err
	default:
		defer func() { _ = gemini.Close() }()
		gen = gemini
	}
	advisor := advisory.NewService(gen, settings.Gemini.Timeout, m.Upstream)

	bridge, err := speech.NewBridge(ctx, speechConfig(settings), m.Upstream, googleAuth(settings, log)...)
	if err != nil {
		return err
	}

	places := lookup.NewPlaces(lookup.PlacesConfig{
		APIKey:          settings.Places.APIKey,
		SearchEndpoint:  settings.Places.SearchEndpoint,
		DetailsEndpoint: settings.Places.DetailsEndpoint,
		DefaultQuery:    settings.Places.DefaultQuery,
		CacheTTL:        settings.Places.CacheTTL,
	}, client, m.Lookup)

	weather := lookup.NewWeather(lookup.WeatherConfig{
		APIKey:   settings.OpenWeather.APIKey,
		Endpoint: settings.OpenWeather.Endpoint,
		Units:    settings.OpenWeather.Units,
		Rules:    crisisRules(settings.Crisis),
	}, client, m.Lookup)

	schemes, err := newSchemeService(settings.Scraper, m)
	if err != nil {
		return err
	}
	defer func() { _ = schemes.Close() }()

	store, err := datastore.New(&settings.Database)
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sessionStore, closeSessions, err := newSessionStore(ctx, settings.Session, store)
	if err != nil {
		return err
	}
	defer closeSessions()

	sessions, err := session.NewManager(session.Config{
		CookieName: settings.Session.CookieName,
		Secret:     settings.Session.Secret,
		MaxAge:     settings.Session.MaxAge,
		Secure:     settings.Session.Secure,
	}, sessionStore)
	if err != nil {
		return err
	}
	go sessions.RunSweeper(ctx, settings.Session.SweepInterval)

	photos, err := uploads.New(settings.Uploads.Path, settings.Uploads.MaxSize)
	if err != nil {
		return err
	}
	defer func() { _ = photos.Close() }()

	deps := api.Dependencies{
		Classifier:  cls,
		Images:      imageprep.New(settings.Model.InputSize),
		Advisor:     advisor,
		Speech:      bridge,
		Stores:      places,
		Weather:     weather,
		Schemes:     schemes,
		Store:       store,
		Sessions:    sessions,
		Uploads:     photos,
		HTTPMetrics: m.HTTP,
	}
	if settings.Metrics.Enabled {
		deps.Metrics = m.Handler()
	}

	server, err := api.New(api.ConfigFromSettings(settings, build.GetVersion()), deps)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

func initSentry(settings *conf.Settings, build *buildinfo.Context) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		Environment:      settings.Sentry.Environment,
		Release:          build.Release(),
		AttachStacktrace: false,
		ServerName:       "",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			event.Message = errors.ScrubMessage(event.Message)
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	return nil
}

func speechConfig(settings *conf.Settings) speech.Config {
	return speech.Config{
		FFmpegPath:       settings.Speech.FFmpegPath,
		SampleRate:       settings.Speech.SampleRate,
		DefaultLanguage:  settings.Speech.DefaultLanguage,
		SilenceThreshold: settings.Speech.SilenceThreshold,
		Timeout:          settings.Speech.Timeout,
		SpeechEndpoint:   settings.Speech.SpeechEndpoint,
		TTSEndpoint:      settings.Speech.TTSEndpoint,
	}
}

// googleAuth returns the client options for the speech APIs. Without a key
// the clients are created unauthenticated and every call fails upstream.
func googleAuth(settings *conf.Settings, log logger.Logger) []option.ClientOption {
	if settings.Google.APIKey == "" {
		log.Warn("google.apikey not set, speech endpoints will fail")
		return []option.ClientOption{option.WithoutAuthentication()}
	}
	return []option.ClientOption{option.WithAPIKey(settings.Google.APIKey)}
}

func crisisRules(c conf.CrisisSettings) lookup.CrisisRules {
	return lookup.CrisisRules{
		HeavyRainMM:     c.HeavyRainMM,
		HeatC:           c.HeatC,
		ColdC:           c.ColdC,
		WindMS:          c.WindMS,
		DustWindMS:      c.DustWindMS,
		StormConditions: c.StormConditions,
		DustConditions:  c.DustConditions,
	}
}

func newSchemeService(cfg conf.ScraperSettings, m *observability.Metrics) (*scraper.Service, error) {
	parser, err := scraper.NewParser(scraper.Selectors{
		Card:        cfg.Selectors.Card,
		Title:       cfg.Selectors.Title,
		Link:        cfg.Selectors.Link,
		Ministry:    cfg.Selectors.Ministry,
		Description: cfg.Selectors.Description,
		Pagination:  cfg.Selectors.Pagination,
	}, cfg.URL)
	if err != nil {
		return nil, err
	}
	renderer := scraper.NewBrowserRenderer(scraper.BrowserConfig{
		URL:               cfg.URL,
		Headless:          cfg.Headless,
		NavigationTimeout: cfg.NavigationTimeout,
		SettleTime:        cfg.SettleTime,
		Pagination:        cfg.Selectors.Pagination,
	})
	return scraper.NewService(renderer, parser, m.Upstream), nil
}

// newSessionStore returns the configured session backend and a function
// releasing it.
func newSessionStore(ctx context.Context, cfg conf.SessionSettings, store datastore.Interface) (session.Store, func(), error) {
	if cfg.Backend != "redis" {
		return session.NewDBStore(store.DB()), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	rs := session.NewRedisStore(client)
	if err := rs.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return rs, func() { _ = client.Close() }, nil
}
