package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"listing-scraper-service/internal/adapters/httpfetcher"
	"listing-scraper-service/internal/adapters/listingscraper"
	logger_adapter "listing-scraper-service/internal/adapters/logger"
	rabbitmq_adapter "listing-scraper-service/internal/adapters/rabbitmq"
	"listing-scraper-service/internal/adapters/rest"
	"listing-scraper-service/internal/adapters/searchcrawler"
	"listing-scraper-service/internal/configs"
	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/contracts"
	"listing-scraper-service/internal/core/port"
	"listing-scraper-service/internal/core/usecase"
	fluentlogger "listing-scraper-service/pkg/fluent_logger"
	"listing-scraper-service/pkg/rabbitmq/rabbitmq_common"
	"listing-scraper-service/pkg/rabbitmq/rabbitmq_consumer"
	"listing-scraper-service/pkg/rabbitmq/rabbitmq_producer"

	"github.com/fluent/fluent-logger-golang/fluent"
)

const shutdownTimeout = 15 * time.Second

// App – структура приложения
type App struct {
	config        *configs.AppConfig
	connManager   *rabbitmq_common.ConnectionManager
	eventProducer *rabbitmq_producer.Publisher
	fluentClient  *fluent.Fluent
	logger        port.LoggerPort

	httpServer *rest.Server

	// слушатели очередей; пусто, если RabbitMQ выключен
	listeners map[string]port.EventListenerPort
}

// NewApp - composition root: здесь создаются и связываются все зависимости
func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. ЛОГГЕРЫ ---
	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		UseColor: true,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
			Async:     true,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			_ = fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{"service_name": appConfig.AppName})
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	if err := contracts.Load(); err != nil {
		appLogger.Error("Failed to compile event schemas", err, nil)
		return nil, fmt.Errorf("failed to compile event schemas: %w", err)
	}

	// --- 2. ЗАГРУЗЧИКИ, АДАПТЕРЫ САЙТОВ, КРАУЛЕРЫ ---
	fetcher := httpfetcher.New(httpfetcher.DefaultConfig())
	strictFetcher := httpfetcher.New(httpfetcher.StrictConfig())

	factory := listingscraper.NewFactory(fetcher, strictFetcher)
	crawlers := []port.SearchCrawlerPort{
		searchcrawler.NewImmobiliareCrawler(fetcher),
		searchcrawler.NewRealtorCrawler(strictFetcher),
	}
	appLogger.Info("Site adapters initialized", port.Fields{"domains": factory.SupportedDomains()})

	// --- 3. USE CASES ---
	scrapeUC := usecase.NewScrapeListingUseCase(factory)
	searchUC := usecase.NewSearchListingsUseCase(crawlers...)

	application := &App{
		config:       appConfig,
		fluentClient: fluentClient,
		logger:       appLogger,
		listeners:    make(map[string]port.EventListenerPort),
	}

	// --- 4. RABBITMQ (необязательно) ---
	if appConfig.RabbitMQ.Enabled {
		if err := application.initMessaging(baseLogger, scrapeUC, searchUC); err != nil {
			application.closeResources()
			if fluentClient != nil {
				_ = fluentClient.Close()
			}
			return nil, err
		}
	} else {
		appLogger.Info("RabbitMQ disabled, only REST API will be served", nil)
	}

	// --- 5. REST ---
	handlers := rest.NewListingHandlers(scrapeUC, searchUC, factory)
	application.httpServer = rest.NewServer(rest.ServerConfig{
		Port:           appConfig.HTTP.Port,
		RequestTimeout: appConfig.HTTP.RequestTimeout,
		AllowedOrigins: appConfig.HTTP.AllowedOrigins,
	}, handlers, baseLogger)

	return application, nil
}

// initMessaging создает соединение, издателя, адаптеры очередей и слушателей
func (a *App) initMessaging(baseLogger port.LoggerPort, scrapeUC *usecase.ScrapeListingUseCase, searchUC *usecase.SearchListingsUseCase) error {
	rabbitURL := a.config.RabbitMQ.URL

	connManagerBridge := rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"}))
	connManager, err := rabbitmq_common.GetManager(rabbitURL, connManagerBridge)
	if err != nil {
		a.logger.Error("Failed to create connection manager", err, nil)
		return fmt.Errorf("failed to create connection manager: %w", err)
	}
	a.connManager = connManager

	producer, err := rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
		Config:                   rabbitmq_common.Config{URL: rabbitURL},
		ExchangeName:             constants.ScraperExchange,
		ExchangeType:             constants.ScraperExchangeType,
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		Logger:                   rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})),
	}, connManager)
	if err != nil {
		a.logger.Error("Failed to create RabbitMQ producer", err, nil)
		return fmt.Errorf("failed to create RabbitMQ producer: %w", err)
	}
	a.eventProducer = producer

	scrapeQueue, err := rabbitmq_adapter.NewScrapeTaskQueueAdapter(producer, constants.RoutingKeyScrapeTasks)
	if err != nil {
		return err
	}
	resultsQueue, err := rabbitmq_adapter.NewListingResultsAdapter(producer, constants.RoutingKeyListingResults)
	if err != nil {
		return err
	}
	reporter, err := rabbitmq_adapter.NewSearchReporterAdapter(producer, constants.RoutingKeySearchResults)
	if err != nil {
		return err
	}

	processScrapeUC := usecase.NewProcessScrapeTaskUseCase(scrapeUC, resultsQueue)
	processSearchUC := usecase.NewProcessSearchTaskUseCase(searchUC, scrapeQueue, reporter)

	scrapeListener, err := rabbitmq_adapter.NewScrapeTasksConsumerAdapter(
		consumerConfig(rabbitURL, constants.QueueScrapeTasks, constants.RoutingKeyScrapeTasks, "scrape-tasks-processor", 5,
			constants.FinalDLXExchange, constants.FinalDLQ, constants.FinalDLQRoutingKey),
		processScrapeUC, baseLogger, connManager)
	if err != nil {
		a.logger.Error("Failed to initialize scrape tasks listener", err, nil)
		return err
	}
	a.listeners["Scrape Tasks Listener"] = scrapeListener

	// обход выдачи долгий и идет с паузами: по одной задаче за раз
	searchListener, err := rabbitmq_adapter.NewSearchTasksConsumerAdapter(
		consumerConfig(rabbitURL, constants.QueueSearchTasks, constants.RoutingKeySearchTasks, "search-tasks-processor", 1,
			constants.FinalDLXExchangeForSearchTasks, constants.FinalDLQForSearchTasks, constants.FinalDLQRoutingKeyForSearchTasks),
		processSearchUC, baseLogger, connManager)
	if err != nil {
		a.logger.Error("Failed to initialize search tasks listener", err, nil)
		return err
	}
	a.listeners["Search Tasks Listener"] = searchListener

	a.logger.Info("RabbitMQ listeners initialized", port.Fields{"listeners": len(a.listeners)})
	return nil
}

func consumerConfig(url, queue, routingKey, tag string, prefetch int, dlx, dlq, dlqKey string) rabbitmq_consumer.ConsumerConfig {
	return rabbitmq_consumer.ConsumerConfig{
		Config:              rabbitmq_common.Config{URL: url},
		QueueName:           queue,
		DeclareQueue:        true,
		DurableQueue:        true,
		ExchangeNameForBind: constants.ScraperExchange,
		RoutingKeyForBind:   routingKey,
		PrefetchCount:       prefetch,
		ConsumerTag:         tag,

		EnableRetryMechanism: true,
		RetryExchange:        queue + "_retry_ex",
		RetryQueue:           queue + "_retry_wait_10s",
		RetryTTL:             constants.RetryTTLMillis,
		FinalDLXExchange:     dlx,
		FinalDLQ:             dlq,
		FinalDLQRoutingKey:   dlqKey,
		MaxRetries:           constants.MaxRetries,
	}
}

// Run запускает HTTP-сервер и слушателей и ждет сигнала или падения компонента
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	var wg sync.WaitGroup
	componentErrors := make(chan error, len(a.listeners)+1)

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("Error stopping REST API server", err, nil)
		}

		cancelApp()
		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()

		a.closeResources()
		a.logger.Info("Application shut down gracefully.", nil)

		if a.fluentClient != nil {
			if err := a.fluentClient.Close(); err != nil {
				log.Printf("App: Error closing fluent client: %v\n", err)
			}
		}
	}()

	a.logger.Info("Application is starting...", port.Fields{"http_port": a.config.HTTP.Port})

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.httpServer.Start(); err != nil {
			componentErrors <- fmt.Errorf("rest server: %w", err)
		}
	}()

	for name, listener := range a.listeners {
		wg.Add(1)
		go func(name string, listener port.EventListenerPort) {
			defer wg.Done()
			listenerLogger := a.logger.WithFields(port.Fields{"listener_name": name})
			listenerLogger.Info("Starting listener...", nil)

			if err := listener.Start(appCtx); err != nil {
				listenerLogger.Error("Listener stopped with an unexpected error", err, nil)
				componentErrors <- fmt.Errorf("%s error: %w", name, err)
				return
			}
			listenerLogger.Info("Listener stopped gracefully", nil)
		}(name, listener)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	a.logger.Info("Application running. Waiting for signals or component error...", nil)

	var runErr error
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received signal, shutting down", port.Fields{"signal": receivedSignal.String()})
	case err := <-componentErrors:
		a.logger.Error("A critical component failed, shutting down", err, nil)
		runErr = err
	}
	return runErr
}

// closeResources закрывает слушателей, издателя и соединение в обратном порядке создания
func (a *App) closeResources() {
	var errs []error
	for name, listener := range a.listeners {
		if err := listener.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if a.eventProducer != nil {
		if err := a.eventProducer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event producer: %w", err))
		}
	}
	if a.connManager != nil {
		if err := a.connManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("connection manager: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("Errors while closing resources", err, nil)
	}
}

func parseLogLevel(levelStr string) slog.Level {
	level, ok := logger_adapter.ParseLevel(levelStr)
	if !ok {
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
	}
	return level
}
