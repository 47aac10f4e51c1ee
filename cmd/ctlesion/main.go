package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/kardianos/osext"
	"github.com/sirupsen/logrus"

	"github.com/carbocation/ctlesion/chat"
	"github.com/carbocation/ctlesion/compileinfo"
	"github.com/carbocation/ctlesion/config"
	"github.com/carbocation/ctlesion/findings"
	"github.com/carbocation/ctlesion/mesh"
	"github.com/carbocation/ctlesion/patient"
	"github.com/carbocation/ctlesion/segment"
	"github.com/carbocation/ctlesion/session"
	"github.com/carbocation/ctlesion/volume"
)

var global *Global

func main() {
	errors := make(chan error, 1)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig,
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGUSR1,
	)

	var configPath, dataDir, provider string
	var port int
	var debug bool
	flag.StringVar(&configPath, "config", "ctlesion.yaml", "(Optional) YAML configuration file. Defaults are used if it does not exist.")
	flag.StringVar(&dataDir, "data", "", "(Optional) Dataset folder holding ct_scans/ and the metadata CSVs. May be a gs:// URL. Overrides the config file.")
	flag.StringVar(&provider, "chat", "", "(Optional) Chat provider: none, openai or gemini. Overrides the config file.")
	flag.IntVar(&port, "port", 0, "(Optional) Port for HTTP server. Overrides the config file.")
	flag.BoolVar(&debug, "debug", false, "Verbose, human readable logs.")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if dataDir != "" {
		cfg.Data.DatasetDir = dataDir
	}
	if provider != "" {
		cfg.Chat.Provider = provider
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	cfg.Server.Debug = cfg.Server.Debug || debug
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := initLogger(cfg.Server.Debug)
	log.WithFields(compileinfo.Get().Fields()).Infoln("Starting ctlesion")

	folder, err := osext.ExecutableFolder()
	if err != nil {
		log.Fatalln(err)
	}
	cfg.Data.DatasetDir = resolve(folder, strings.TrimSuffix(cfg.Data.DatasetDir, "/"))
	cfg.Data.DefaultImage = resolve(folder, cfg.Data.DefaultImage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sclient *storage.Client
	if strings.HasPrefix(cfg.Data.DatasetDir, "gs://") || strings.HasPrefix(cfg.Data.DefaultImage, "gs://") {
		sclient, err = storage.NewClient(ctx)
		if err != nil {
			log.Fatalln(err)
		}
		defer sclient.Close()
	}

	registry, err := patient.Load(ctx, patient.LoadOptions{
		DemographicsPath: resolve(cfg.Data.DatasetDir, cfg.Data.Demographics),
		DiagnosisPath:    resolve(cfg.Data.DatasetDir, cfg.Data.Diagnosis),
		StorageClient:    sclient,
		Log:              log,
	})
	if err != nil {
		log.Fatalln(err)
	}

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		log.Fatalln(err)
	}

	env := &session.Env{
		Log:           log,
		DatasetDir:    cfg.Data.DatasetDir,
		DefaultImage:  cfg.Data.DefaultImage,
		StorageClient: sclient,
		Registry:      registry,
		Workers:       cfg.Processing.NumCores,
		Smoothing:     footprint(cfg.Processing.SmoothingFootprint),
		Window:        volume.Window{Level: cfg.Processing.WindowLevel, Width: cfg.Processing.WindowWidth},
		Bins:          cfg.Processing.HistogramBins,

		OverviewLevel:   cfg.Mesh.OverviewLevel,
		OverviewStep:    cfg.Mesh.OverviewStep,
		LesionStep:      cfg.Mesh.LesionStep,
		LesionSmoothing: footprint(cfg.Mesh.LesionSmoothing),

		Engine: &segment.Engine{Log: log},
		Meshes: &mesh.Extractor{Log: log, Workers: cfg.Processing.NumCores},
		Assistant: &chat.Assistant{
			Backend:      backend,
			HistoryTurns: cfg.Chat.HistoryTurn,
			Timeout:      cfg.Chat.Timeout,
			Log:          log,
		},
	}

	var store *findings.Store
	if cfg.Findings.Path != "" {
		store, err = findings.Open(resolve(folder, cfg.Findings.Path))
		if err != nil {
			log.WithError(err).Warnln("Findings log disabled")
		} else {
			defer store.Close()
			// Assigned only when open, so the interface is never a typed nil.
			env.Findings = store
		}
	}

	global = &Global{
		Site:          "CT Lesion Viewer",
		Company:       "ctlesion",
		log:           log,
		entry:         log,
		storageClient: sclient,

		Config:   cfg,
		Sessions: session.NewManager(env, cfg.Server.SessionIdle),
		Findings: store,
		registry: registry,
	}
	cases := global.RefreshCases()
	log.WithField("cases", len(cases)).WithField("dataset", cfg.Data.DatasetDir).Infoln("Cataloged scans")

	go global.Sessions.Run(ctx, time.Minute)

	go func() {
		log.Infoln("Starting HTTP server on port", cfg.Server.Port)

		routing, err := router(global)
		if err != nil {
			errors <- err
			sig <- syscall.SIGTERM
			return
		}

		if err := http.ListenAndServe(fmt.Sprintf(`:%d`, cfg.Server.Port), routing); err != nil {
			errors <- err
			sig <- syscall.SIGTERM
			return
		}
	}()

Outer:
	for {
		select {
		case sigl := <-sig:
			if sigl == syscall.SIGUSR1 {
				SigStatus()
				continue
			}

			// By default, exit
			log.Printf("Exit: %s\n", sigl.String())

			break Outer

		case err := <-errors:
			if err == nil {
				log.Println("Finished")
				break Outer
			}

			// Return a status code indicating failure
			log.Println("Exiting due to error", err)
			os.Exit(1)
		}
	}
}

func SigStatus() {
	global.log.Println("There are", runtime.NumGoroutine(), "goroutines running,", global.Sessions.Len(), "sessions open")
}

func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}

// newBackend builds the configured chat backend. A missing key is not fatal:
// the assistant then answers from its local rules.
func newBackend(ctx context.Context, cfg *config.Config) (chat.Backend, error) {
	switch cfg.Chat.Provider {
	case config.ProviderOpenAI:
		return chat.NewOpenAI(chat.OpenAIConfig{
			APIKey:      cfg.APIKey(),
			BaseURL:     cfg.Chat.BaseURL,
			Model:       cfg.Chat.Model,
			MaxTokens:   cfg.Chat.MaxTokens,
			Temperature: cfg.Chat.Temperature,
			Timeout:     cfg.Chat.Timeout,
		}), nil
	case config.ProviderGemini:
		g, err := chat.NewGemini(ctx, chat.GeminiConfig{
			APIKey:      cfg.APIKey(),
			Model:       cfg.Chat.Model,
			MaxTokens:   cfg.Chat.MaxTokens,
			Temperature: cfg.Chat.Temperature,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	}

	return nil, nil
}

func footprint(v [3]int) volume.Footprint {
	return volume.Footprint{Z: v[0], Y: v[1], X: v[2]}
}

// resolve joins a relative path onto base. Absolute and gs:// paths are kept.
func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "gs://") {
		return p
	}
	if strings.HasPrefix(base, "gs://") {
		return base + "/" + p
	}
	return filepath.Join(base, p)
}
