package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cultivationworld.ai/internal/api"
	"cultivationworld.ai/internal/audio"
	"cultivationworld.ai/internal/boot"
	"cultivationworld.ai/internal/config"
	"cultivationworld.ai/internal/i18n"
	"cultivationworld.ai/internal/notify"
	"cultivationworld.ai/internal/protocol"
	"cultivationworld.ai/internal/recording"
	"cultivationworld.ai/internal/router"
	"cultivationworld.ai/internal/settings"
	"cultivationworld.ai/internal/store/avatar"
	"cultivationworld.ai/internal/store/event"
	"cultivationworld.ai/internal/store/mapstore"
	"cultivationworld.ai/internal/store/system"
	"cultivationworld.ai/internal/store/ui"
	"cultivationworld.ai/internal/store/world"
	"cultivationworld.ai/internal/tasks"
	"cultivationworld.ai/internal/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/client.yaml", "client config path (missing file uses defaults)")
		baseURL    = flag.String("base_url", "", "backend http base url (overrides config)")
		wsURL      = flag.String("ws_url", "", "backend websocket url (overrides config)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		record     = flag.Bool("record", false, "record inbound frames under <data>/frames")
		noAudio    = flag.Bool("no_audio", false, "disable the background music scheduler")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)

	cfg := config.Defaults()
	if _, err := os.Stat(*configPath); err == nil {
		c, err := config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
		cfg = c
	}
	if *baseURL != "" {
		cfg.Server.BaseURL = *baseURL
	}
	if *wsURL != "" {
		cfg.Server.WSURL = *wsURL
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}
	if *record {
		cfg.Data.Record = true
	}
	if *noAudio {
		cfg.Audio.Enabled = false
	}
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	prefs, err := settings.Open(filepath.Join(cfg.Data.Dir, "settings.db"))
	if err != nil {
		logger.Fatalf("open settings: %v", err)
	}
	defer prefs.Close()

	locale, err := i18n.New(prefs)
	if err != nil {
		logger.Fatalf("locale: %v", err)
	}
	logger.Printf("locale=%s lang=%s", locale.Current(), locale.DocumentLang())

	client := api.New(api.Config{BaseURL: cfg.Server.BaseURL, Timeout: cfg.HTTPTimeout()})

	var rec *recording.Recorder
	var stateAPI world.API = client
	if cfg.Data.Record {
		rec = recording.NewRecorder(filepath.Join(cfg.Data.Dir, "frames"))
		defer rec.Close()
		stateAPI = recordingAPI{Client: client, rec: rec, log: logger}
		logger.Printf("recording session=%s", rec.Session())
	}

	runner := tasks.NewRunner(ctx, log.New(os.Stdout, "[task] ", log.LstdFlags|log.Lmicroseconds))

	maps := mapstore.NewStore(client, log.New(os.Stdout, "[map] ", log.LstdFlags|log.Lmicroseconds))
	avatars := avatar.NewStore(stateAPI)
	events := event.NewStore(client, cfg.Events.PageLimit, log.New(os.Stdout, "[events] ", log.LstdFlags|log.Lmicroseconds))
	worldStore := world.New(stateAPI, maps, avatars, events, log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))
	sys := system.NewStore(client, log.New(os.Stdout, "[system] ", log.LstdFlags|log.Lmicroseconds))
	uiStore := ui.NewStore(client, notify.NewTerminal(os.Stdout))

	socket := ws.NewSocket(ws.Options{
		URL:                  cfg.Server.WSURL,
		ReconnectInterval:    cfg.ReconnectInterval(),
		MaxReconnectAttempts: cfg.Socket.MaxReconnectAttempts,
		Logger:               log.New(os.Stdout, "[socket] ", log.LstdFlags|log.Lmicroseconds),
	})
	defer socket.Disconnect()

	deps := router.Deps{
		World:  worldStore,
		UI:     uiStore,
		Locale: locale,
		Tasks:  runner,
		Log:    log.New(os.Stdout, "[router] ", log.LstdFlags|log.Lmicroseconds),
	}
	socket.On(func(msg protocol.Message) {
		if rec != nil {
			if err := rec.RecordFrame(msg); err != nil {
				logger.Printf("WARN record frame: %v", err)
			}
		}
		router.Route(msg, deps)
	})
	socket.OnStatusChange(func(connected bool) {
		logger.Printf("socket connected=%v", connected)
	})

	var music *audio.Scheduler
	if cfg.Audio.Enabled {
		music = audio.NewScheduler(audio.Options{
			Playlist: audio.Playlist{Splash: cfg.Audio.Splash, Map: cfg.Audio.Map},
			BaseURL:  cfg.Audio.BaseURL,
			Fade:     cfg.Audio.Fade(),
			StopFade: cfg.Audio.StopFade(),
			NewTrack: func() audio.Track { return audio.NewSimTrack(cfg.Audio.TrackLength()) },
			Volume:   prefs,
			Gestures: audio.NewLineGestures(os.Stdin),
			Logger:   log.New(os.Stdout, "[audio] ", log.LstdFlags|log.Lmicroseconds),
		})
		music.Init()
		defer music.Close()
		playMusic(ctx, music, audio.KindSplash, logger)
	}

	poller := boot.NewPoller(worldStore, sys, socket, runner, boot.Options{
		Interval: cfg.PollInterval(),
		Logger:   log.New(os.Stdout, "[boot] ", log.LstdFlags|log.Lmicroseconds),
		OnIdle: func() {
			logger.Printf("backend idle; waiting for a game to start")
			if music != nil {
				playMusic(ctx, music, audio.KindSplash, logger)
			}
		},
		OnReady: func(ctx context.Context) {
			year, month := worldStore.Time()
			logger.Printf("world ready: year=%d month=%d avatars=%d events=%d",
				year, month, len(worldStore.AvatarList()), len(worldStore.Events()))
			if music != nil {
				playMusic(ctx, music, audio.KindMap, logger)
			}
		},
	})

	logger.Printf("client starting base=%s ws=%s", cfg.Server.BaseURL, cfg.Server.WSURL)
	go poller.Run(ctx)
	go reportLoop(ctx, worldStore, logger)

	<-ctx.Done()
	logger.Printf("shutting down")
	if music != nil {
		music.Stop()
	}
	runner.Wait()
}

func playMusic(ctx context.Context, s *audio.Scheduler, kind audio.Kind, logger *log.Logger) {
	go func() {
		if err := s.Play(ctx, kind); err != nil {
			logger.Printf("WARN play %s: %v", kind, err)
		}
	}()
}

// reportLoop logs a one-line world summary every 30s while the world is loaded.
func reportLoop(ctx context.Context, w *world.Store, logger *log.Logger) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !w.Loaded() {
				continue
			}
			year, month := w.Time()
			phen := "-"
			if p := w.CurrentPhenomenon(); p != nil {
				phen = p.Name
			}
			logger.Printf("year=%d month=%d avatars=%d events=%d domains=%d phenomenon=%s",
				year, month, len(w.AvatarList()), len(w.Events()), len(w.ActiveDomains()), phen)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
