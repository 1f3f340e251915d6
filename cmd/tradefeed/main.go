package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"tradeflow/capture"
	"tradeflow/config"
	"tradeflow/internal/channel/events"
	"tradeflow/logger"
	"tradeflow/models"
	"tradeflow/stream"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	}).Info("starting tradefeed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Logging.MetricsNamespace != "" {
		logger.InitCloudWatch(cfg.Capture.S3.Region, cfg.Logging.MetricsNamespace)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	channels := events.NewChannels[models.MarketDataEvent](cfg.Stream.EventBuffer)

	var recorder *capture.Recorder
	if cfg.Capture.Enabled {
		recorder, err = capture.NewRecorder(cfg, channels.Out)
		if err != nil {
			log.WithError(err).Error("failed to create capture recorder")
			os.Exit(1)
		}
		if err := recorder.Start(ctx); err != nil {
			log.WithError(err).Error("failed to start capture recorder")
			os.Exit(1)
		}
	} else {
		go logConsumer(ctx, channels.Out, log)
	}

	streamCfg := stream.Config{
		Endpoint:         cfg.Stream.BaseURL,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout,
	}
	if cfg.Stream.RateLimit.RequestsPerSecond > 0 {
		burst := cfg.Stream.RateLimit.BurstSize
		if burst <= 0 {
			burst = 1
		}
		streamCfg.Limiter = rate.NewLimiter(rate.Limit(cfg.Stream.RateLimit.RequestsPerSecond), burst)
	}
	session := stream.NewSessionWithConfig[models.MarketDataEvent](channels.Out, streamCfg)

	subs := subscriptions(cfg.Stream.Channels, cfg.Stream.Symbols)
	if len(subs) == 0 {
		log.Error("no subscriptions configured; set stream.channels and stream.symbols")
		os.Exit(1)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runFeed(ctx, cfg, session, subs, log)
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	channels.Close()
	if recorder != nil {
		log.Info("stopping capture recorder")
		recorder.Stop()
	}

	log.Info("tradefeed stopped")
}

// subscriptions builds one subscription argument per channel and symbol pair.
func subscriptions(channels, symbols []string) []models.SubscriptionArg {
	args := make([]models.SubscriptionArg, 0, len(channels)*len(symbols))
	for _, ch := range channels {
		for _, sym := range symbols {
			args = append(args, models.SubscriptionArg{Channel: ch, InstID: sym})
		}
	}
	return args
}

// runFeed keeps one session connected and subscribed until the context is
// cancelled. The session itself never reconnects, so every stream end comes
// back here: clean ends reconnect immediately, failures back off
// exponentially up to 30 seconds.
func runFeed(ctx context.Context, cfg *config.Config, session *stream.Session[models.MarketDataEvent, *models.MarketDataEvent], subs []models.SubscriptionArg, log *logger.Log) {
	entry := log.WithComponent("feed")
	backoff := time.Second

	for ctx.Err() == nil {
		if err := session.Connect(ctx, cfg.Stream.PublicEndpoint); err != nil {
			entry.WithError(err).Warn("connect failed")
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		if err := session.Subscribe(ctx, subs); err != nil {
			entry.WithError(err).Warn("subscribe failed")
			session.Disconnect()
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		err := session.Run(ctx)
		if session.Connected() {
			session.Disconnect()
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			entry.WithError(err).Warn("stream ended with error")
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		entry.Info("stream ended, reconnecting")
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		next = 30 * time.Second
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// logConsumer drains events when capture is disabled so the session's
// consumer channel never fills up.
func logConsumer(ctx context.Context, out <-chan models.MarketDataEvent, log *logger.Log) {
	entry := log.WithComponent("consumer")
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-out:
			if !ok {
				return
			}
			entry.WithFields(logger.Fields{
				"channel": event.Arg.Channel,
				"symbol":  event.Arg.InstID,
				"items":   len(event.Data),
			}).Debug("event")
		}
	}
}
