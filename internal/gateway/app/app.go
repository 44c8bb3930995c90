package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"nbcache/internal/archive"
	"nbcache/internal/docs"
	"nbcache/internal/events"
	"nbcache/internal/gateway/config"
	"nbcache/internal/gateway/handler"
	"nbcache/internal/gateway/server"
	"nbcache/internal/output"
)

// App owns the output cache components for the lifetime of the process.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Resolver  *output.Resolver
	Tracker   *output.Tracker
	Store     *output.Store
	Publisher *output.Publisher
	Hub       *events.Hub
	Archive   *archive.S3Archive
	Documents docs.Writer

	server  *server.Server
	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	registry, err := a.initRegistry(ctx)
	if err != nil {
		return nil, err
	}

	contextID := cfg.ContextID
	a.Resolver = output.NewResolver(output.NewDirLayout(cfg.Root), registry, func() string { return contextID }, logger)
	a.Tracker = output.NewTrackerFor(a.Resolver, logger)
	a.Store = output.NewStore(a.Resolver, a.Tracker, logger)
	a.Hub = events.NewHub(0)
	serializer := output.NewSerializer(a.Resolver, logger)
	a.Publisher = output.NewPublisher(serializer, a.Hub, logger)

	arch, err := archive.NewS3Archive(archive.Config{
		Endpoint:  cfg.Archive.Endpoint,
		Region:    cfg.Archive.Region,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Bucket:    cfg.Archive.Bucket,
		UseSSL:    cfg.Archive.UseSSL,
	}, a.Resolver.Layout(), logger)
	switch {
	case err == nil:
		a.Archive = arch
		logger.Info("archive enabled", zap.String("endpoint", cfg.Archive.Endpoint), zap.String("bucket", cfg.Archive.Bucket))
	case errors.Is(err, archive.ErrDisabled):
	default:
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}

	content := handler.NewContentHandler(a.Resolver, cfg.Mode == config.ModeServer, logger)
	eventsHandler := handler.NewEventsHandler(a.Hub, a.Publisher, a.Resolver, logger)
	a.server = server.New(cfg.Port, server.NewMux(content, eventsHandler, logger), logger)
	return a, nil
}

func (a *App) initRegistry(ctx context.Context) (output.DocumentPaths, error) {
	cfg := a.Config.Docs
	var origin docs.Registry
	switch {
	case strings.TrimSpace(cfg.DSN) != "":
		pg, err := docs.OpenPostgresRegistry(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open document registry: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		origin = pg
		a.Logger.Info("document registry: postgres")
	case strings.TrimSpace(cfg.File) != "":
		origin = docs.NewFileRegistry(cfg.File)
		a.Logger.Info("document registry: file", zap.String("path", cfg.File))
	default:
		mem := docs.NewMemoryRegistry()
		a.Documents = mem
		return mem, nil
	}
	cached, err := docs.NewCachedRegistry(origin, cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	a.Documents = cached
	return cached, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close releases resources when the server was never started.
func (a *App) Close() error {
	var err error
	for _, c := range a.closers {
		if cerr := c(); cerr != nil && err == nil {
			err = cerr
		}
	}
	a.closers = nil
	return err
}

// WriteOutput stores a plot, HTML or error output in the live context and pushes it to
// subscribed viewers. A failed push is logged; the stored path is still returned.
func (a *App) WriteOutput(ctx context.Context, key output.UnitKey, kind output.Kind, content []byte) (string, error) {
	path, err := a.Store.WriteOutput(ctx, key, kind, content)
	if err != nil {
		return "", err
	}
	a.publishOutput(ctx, key, path)
	return path, nil
}

// AppendConsole appends a console event and pushes the unit's updated text output.
func (a *App) AppendConsole(ctx context.Context, key output.UnitKey, kind int, text string) (string, error) {
	path, err := a.Store.AppendConsole(ctx, key, kind, text)
	if err != nil {
		return "", err
	}
	if kind != output.ConsoleInput {
		a.publishOutput(ctx, key, path)
	}
	return path, nil
}

// ClearOutputs removes a unit's live outputs and pushes the resulting listing so viewers
// drop what they show.
func (a *App) ClearOutputs(ctx context.Context, key output.UnitKey, preserveDirectory bool) error {
	if err := a.Store.Clear(ctx, key, preserveDirectory); err != nil {
		return err
	}
	docPath := a.Resolver.DocumentPath(ctx, key.DocumentID)
	if err := a.Publisher.PublishListing(ctx, docPath, key.DocumentID, key.UnitID, a.Resolver.ContextID(), ""); err != nil {
		a.Logger.Warn("publish listing failed", zap.String("doc_id", key.DocumentID), zap.Error(err))
	}
	return nil
}

// RestoreArchive downloads a document's archived outputs into its saved context. Cached
// ordinals of the document are dropped so a live context named "saved" rescans disk.
func (a *App) RestoreArchive(ctx context.Context, docID string) (int, error) {
	if a.Archive == nil {
		return 0, archive.ErrDisabled
	}
	n, err := a.Archive.Pull(ctx, a.Resolver.DocumentPath(ctx, docID), docID)
	a.Tracker.ForgetDocument(docID)
	return n, err
}

func (a *App) publishOutput(ctx context.Context, key output.UnitKey, path string) {
	if err := a.Publisher.PublishOutput(ctx, key.DocumentID, key.UnitID, a.Resolver.ContextID(), path); err != nil {
		a.Logger.Warn("publish output failed",
			zap.String("doc_id", key.DocumentID),
			zap.String("unit_id", key.UnitID),
			zap.Error(err))
	}
}
