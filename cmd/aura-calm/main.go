package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/sjawhar/aura-calm/internal/analysis"
	"github.com/sjawhar/aura-calm/internal/audio"
	"github.com/sjawhar/aura-calm/internal/calm"
	"github.com/sjawhar/aura-calm/internal/capture"
	"github.com/sjawhar/aura-calm/internal/config"
	"github.com/sjawhar/aura-calm/internal/eventlog"
	"github.com/sjawhar/aura-calm/internal/llm"
	"github.com/sjawhar/aura-calm/internal/observe"
	"github.com/sjawhar/aura-calm/internal/server"
	"github.com/sjawhar/aura-calm/internal/session"
	"github.com/sjawhar/aura-calm/internal/storage"
)

//go:embed static/*
var staticFiles embed.FS

const micFramesPerBuffer = 1024

func main() {
	log.Println("aura-calm: starting")

	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "aura-calm"})
	if err != nil {
		log.Fatalf("metrics init failed: %v", err)
	}
	metrics, err := observe.NewMetrics(provider.MeterProvider)
	if err != nil {
		log.Fatalf("metrics init failed: %v", err)
	}

	catalog, closeCatalog := openCatalog(ctx, cfg.DBPath)
	defer closeCatalog()

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("static assets init failed: %v", err)
	}

	factory := llm.NewFactory(cfg.APIKeys())
	events := eventlog.New(cfg.EventLogCapacity)
	hub := server.NewHub(cfg.AmbientAudioURL, metrics)

	gate := audio.NewGate(nil)
	mic, rate, micClose := openMic(cfg.SampleRateCandidates())
	defer micClose()
	if rate > 0 {
		cfg.MicSampleRate = rate
	}

	var recognizer session.Recognizer
	var permission session.PermissionGate
	var dgStop func()
	if mic != nil {
		permission = &micPermission{ctx: ctx, mic: mic, sink: gate}
		dg := capture.NewDeepgram(gate, cfg.ParsedNoSpeechTimeout())
		if stopFn, err := connectDeepgram(ctx, cfg, dg, gate); err != nil {
			log.Printf("warning: %v", err)
		} else {
			dgStop = stopFn
		}
		// Unconnected, Start reports the service as unavailable.
		recognizer = dg
	}

	pipeline := session.New(session.Config{
		Threshold:         cfg.Threshold(),
		HapticPattern:     cfg.HapticPattern,
		AnalysisTimeout:   cfg.ParsedAnalysisTimeout(),
		EnrichmentTimeout: cfg.ParsedEnrichmentTimeout(),
	}, session.Deps{
		Events:     events,
		Gate:       permission,
		Recognizer: recognizer,
		Analyzer:   analysis.NewStressAnalyzer(modelClient(factory, cfg.Model("analysis")), events),
		Insight:    analysis.NewInsightGenerator(modelClient(factory, cfg.Model("insight"))),
		Guidelines: analysis.NewGuidelineGenerator(modelClient(factory, cfg.Model("guidelines")), analysis.DefaultGuidelineCount),
		Haptics:    hub,
		Audio:      hub,
		Notifier:   hub,
		Metrics:    metrics,
	})
	pipeline.State.Subscribe(hub.BroadcastState)

	opts := server.Options{
		Controls:        pipeline.Controller,
		State:           pipeline.State,
		Catalog:         catalog,
		AmbientAudioURL: cfg.AmbientAudioURL,
		Warnings:        func() []string { return warnings },
		Metrics:         provider.Handler,
		Middleware:      observe.Middleware(metrics),
	}
	if videoClient, err := factory(cfg.Model("video")); err != nil {
		log.Printf("warning: video finder disabled: %v", err)
	} else {
		opts.Finder = calm.NewVideoFinder(videoClient, catalog)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx, cfg.ListenAddr, assets, hub, opts)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Printf("http server error: %v", err)
		}
		stop()
	}

	log.Println("aura-calm: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pipeline.Controller.Stop(shutdownCtx); err != nil && !errors.Is(err, session.ErrNotListening) {
		log.Printf("warning: stop monitoring failed: %v", err)
	}
	waitWithTimeout(pipeline.Controller.Wait, 5*time.Second)

	if dgStop != nil {
		dgStop()
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: metrics shutdown failed: %v", err)
	}
}

// openCatalog prefers the SQLite catalog and falls back to the built-in
// content when the database cannot be opened or seeded.
func openCatalog(ctx context.Context, dbPath string) (calm.Catalog, func()) {
	fallback := calm.NewStaticCatalog(calm.DefaultVideos, calm.DefaultTips)

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Printf("warning: catalog store unavailable, using built-in content: %v", err)
		return fallback, func() {}
	}
	seeded, err := store.SeedIfEmpty(ctx, calm.DefaultVideos, calm.DefaultTips)
	if err != nil {
		log.Printf("warning: catalog seed failed, using built-in content: %v", err)
		_ = store.Close()
		return fallback, func() {}
	}
	if seeded {
		log.Printf("seeded calm catalog at %s", dbPath)
	}
	return store, func() { _ = store.Close() }
}

// openMic tries each candidate sample rate until the default input device
// accepts one. A nil mic means capture is unavailable.
func openMic(rates []int) (*audio.Mic, int, func()) {
	if err := audio.Init(); err != nil {
		log.Printf("warning: audio unavailable, running API/UI only: %v", err)
		return nil, 0, func() {}
	}

	for _, rate := range rates {
		mic, err := audio.NewMic(rate, micFramesPerBuffer)
		if err != nil {
			log.Printf("warning: microphone open failed at %d Hz: %v", rate, err)
			continue
		}
		log.Printf("microphone opened at %d Hz", rate)
		return mic, rate, func() {
			_ = mic.Close()
			audio.Terminate()
		}
	}

	log.Printf("warning: microphone unavailable, running API/UI only")
	audio.Terminate()
	return nil, 0, func() {}
}

func connectDeepgram(ctx context.Context, cfg config.Config, dg *capture.Deepgram, gate *audio.Gate) (func(), error) {
	if cfg.DeepgramAPIKey == "" {
		return nil, errors.New("deepgram API key missing, speech capture unavailable")
	}

	client.Init(client.InitLib{LogLevel: client.LogLevelDefault})

	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          cfg.DeepgramModel,
		Language:       cfg.Language,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		VadEvents:      true,
		UtteranceEndMs: strconv.Itoa(cfg.UtteranceEndMs),
		Encoding:       "linear16",
		SampleRate:     cfg.MicSampleRate,
		Channels:       1,
	}

	dgClient, err := client.NewWSUsingCallback(ctx, cfg.DeepgramAPIKey, cOptions, tOptions, dg)
	if err != nil {
		return nil, fmt.Errorf("deepgram client unavailable: %w", err)
	}
	if ok := dgClient.Connect(); !ok {
		return nil, errors.New("deepgram connect failed")
	}

	gate.SetDestination(dgClient)
	dg.SetConnected(true)
	return func() { dgClient.Stop() }, nil
}

func modelClient(factory llm.Factory, model string) llm.Client {
	c, err := factory(model)
	if err != nil {
		log.Printf("warning: model %q unavailable: %v", model, err)
		return unavailableClient{err: err}
	}
	return c
}

// unavailableClient fails every call so the pipeline reports AI failures
// through its normal paths instead of refusing to start.
type unavailableClient struct {
	err error
}

func (c unavailableClient) Complete(context.Context, llm.Request) (string, error) {
	return "", c.err
}

type micDevice interface {
	Request(ctx context.Context) error
	Stream(writer io.Writer) error
}

// micPermission starts the capture loop the first time the device is granted.
type micPermission struct {
	ctx  context.Context
	mic  micDevice
	sink io.Writer

	once sync.Once
}

func (p *micPermission) Request(ctx context.Context) error {
	if err := p.mic.Request(ctx); err != nil {
		return err
	}
	p.once.Do(func() {
		go streamMicWithRetry(p.ctx, p.mic, p.sink, time.Sleep, log.Printf)
	})
	return nil
}

func waitWithTimeout(wait func(), timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("warning: timed out waiting for in-flight analysis")
	}
}

type micStreamer interface {
	Stream(writer io.Writer) error
}

func streamMicWithRetry(
	ctx context.Context,
	streamer micStreamer,
	writer io.Writer,
	wait func(time.Duration),
	logf func(string, ...any),
) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := streamer.Stream(writer)
		if err == nil || ctx.Err() != nil {
			return
		}

		if strings.Contains(strings.ToLower(err.Error()), "overflow") {
			logf("warning: mic input overflow, restarting stream")
			wait(250 * time.Millisecond)
			continue
		}

		logf("mic stream error: %v", err)
		return
	}
}
