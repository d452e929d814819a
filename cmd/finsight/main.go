package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"finsight/internal/config"
	"finsight/internal/domain"
	"finsight/internal/httpapi"
	"finsight/internal/pdf"
	"finsight/internal/service"
	"finsight/internal/tui"
	"finsight/internal/watch"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath  string
		serve    bool
		watchDir string
		indexDir string
		saveDir  string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/finsight/config.yaml if not provided)")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP API instead of the terminal UI")
	flag.StringVar(&watchDir, "watch", "", "Ingest PDFs dropped into this directory")
	flag.StringVar(&indexDir, "index", "", "Load a saved index from this directory instead of a PDF")
	flag.StringVar(&saveDir, "save", "", "Save the index to this directory after ingesting")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if watchDir != "" {
		cfg.Watch.Dir = watchDir
	}

	inputs := flag.Args()
	if !serve && len(inputs) == 0 && indexDir == "" && cfg.Watch.Dir == "" {
		fmt.Println("Usage: finsight [--config=config.yaml] [--save=dir] report.pdf")
		fmt.Println("       finsight [--config=config.yaml] --index=dir")
		fmt.Println("       finsight [--config=config.yaml] --serve [--watch=dir]")
		os.Exit(1)
	}

	logger, closeLog, err := newLogger(cfg.Log, !serve)
	if err != nil {
		log.Fatalf("failed to open log: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	sess, err := buildSession(cfg, logger)
	if err != nil {
		log.Fatalf("failed to assemble session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serve {
		if err := runServer(ctx, cfg, sess, logger); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := runTUI(ctx, cfg, sess, inputs, indexDir, saveDir, logger); err != nil {
		log.Fatal(err)
	}
}

func runServer(ctx context.Context, cfg *config.AppConfig, sess *service.Session, logger *slog.Logger) error {
	indexDir := ""
	if cfg.Index.Autosave {
		indexDir = cfg.Index.Dir
	}
	api := httpapi.NewServer(sess, pdf.Extractor{}, httpapi.Config{
		UploadDir:      cfg.Server.UploadDir,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		GroqAvailable:  groqAvailable(cfg),
		StaticDir:      cfg.Server.StaticDir,
		IndexDir:       indexDir,
	}, logger)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr, "groq", groqAvailable(cfg))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Watch.Dir != "" {
		inbox := newInbox(cfg, sess, logger, nil)
		g.Go(func() error { return inbox.Run(ctx) })
	}
	return g.Wait()
}

func runTUI(ctx context.Context, cfg *config.AppConfig, sess *service.Session, inputs []string, indexDir, saveDir string, logger *slog.Logger) error {
	title := "(no document)"
	switch {
	case indexDir != "":
		if err := sess.Load(indexDir); err != nil {
			return fmt.Errorf("load index: %w", err)
		}
		title = indexDir
	case len(inputs) > 0:
		path := inputs[0]
		pages, err := pdf.Extractor{}.Extract(path)
		if err != nil {
			return fmt.Errorf("extract %s: %w", path, err)
		}
		if _, err := sess.Ingest(ctx, pages); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		title = filepath.Base(path)
	}
	if saveDir != "" {
		if err := sess.Save(saveDir); err != nil {
			return fmt.Errorf("save index: %w", err)
		}
		logger.Info("index saved", "dir", saveDir)
	}

	p := tea.NewProgram(tui.New(sess, title), tea.WithAltScreen(), tea.WithContext(ctx))
	if cfg.Watch.Dir != "" {
		inbox := newInbox(cfg, sess, logger, func(path string, res domain.IngestResult) {
			p.Send(tui.IngestedMsg{Name: filepath.Base(path), Result: res})
		})
		go func() {
			if err := inbox.Run(ctx); err != nil {
				logger.Error("inbox stopped", "err", err)
			}
		}()
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func newInbox(cfg *config.AppConfig, sess *service.Session, logger *slog.Logger, notify func(string, domain.IngestResult)) *watch.Inbox {
	return &watch.Inbox{
		Dir:       cfg.Watch.Dir,
		Debounce:  time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond,
		Extractor: pdf.Extractor{},
		Ingester:  sess,
		Logger:    logger,
		OnIngest: func(path string, res domain.IngestResult) {
			if cfg.Index.Autosave {
				if err := sess.Save(cfg.Index.Dir); err != nil {
					logger.Warn("autosave failed", "dir", cfg.Index.Dir, "err", err)
				}
			}
			if notify != nil {
				notify(path, res)
			}
		},
	}
}
