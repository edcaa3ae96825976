package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/viper"

	"ftr/internal/config"
	"ftr/internal/discovery"
	"ftr/internal/execution"
	"ftr/internal/logger"
	"ftr/internal/migration"
	"ftr/internal/parser"
	"ftr/internal/storage"
	"ftr/internal/tree"
	"ftr/internal/ui"
)

// Deps are the components shared by every command. They are built once the
// configuration is loaded, after flag parsing.
type Deps struct {
	Config     *config.Config
	Logger     *slog.Logger
	Controller *execution.Controller
	Filter     *discovery.Filter
	Storage    storage.Storage
	Formatter  *ui.Formatter
	Viewer     *ui.ErrorViewer
	Out        io.Writer

	closer io.Closer
}

// Init loads the configuration from v and wires every component
func (d *Deps) Init(v *viper.Viper, flags config.Flags, out io.Writer) error {
	cfg, err := config.Load(v, flags)
	if err != nil {
		return err
	}
	log, closer := logger.New(logger.Options{Level: cfg.LogLevel, Filename: cfg.LogFilename, Debug: flags.Debug})
	slog.SetDefault(log)

	scanner := discovery.NewScanner(cfg.PathsToIgnore, cfg.TestPattern)
	testParser := discovery.NewParser(discovery.NewExclusions(cfg.ExcludeContracts, cfg.ExcludeTests))
	builder := tree.NewBuilder(scanner, testParser, tree.Options{
		KeepEmpty:    cfg.EmptyFiles == config.EmptyKeep,
		CompositeIDs: cfg.IDStyle == config.IDComposite,
	}, log)
	controller := execution.NewController(
		cfg,
		tree.NewForest(cfg.ProjectPath),
		builder,
		execution.NewRunner(log),
		parser.NewForgeParser(log),
		parser.NewCorrelator(log),
		log,
	)
	jsonStorage := storage.NewJSONStorage(cfg)

	*d = Deps{
		Config:     cfg,
		Logger:     log,
		Controller: controller,
		Filter:     discovery.NewFilter(),
		Storage:    jsonStorage,
		Formatter:  ui.NewFormatter(cfg, out),
		Viewer:     ui.NewErrorViewer(jsonStorage, out),
		Out:        out,
		closer:     closer,
	}
	log.Debug("configuration loaded", "project", cfg.ProjectPath, "tests", cfg.GetTestPath(), "store", cfg.StoreDriver)
	return nil
}

// Close releases the log file
func (d *Deps) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// HasHistory reports whether runs are recorded in a database
func (d *Deps) HasHistory() bool {
	return d.Config.StoreDriver != config.StoreJSON
}

// OpenHistoryDB creates and migrates the history database, reporting each
// schema step to progress when it is not nil.
func (d *Deps) OpenHistoryDB(ctx context.Context, progress migration.Progress) (*sql.DB, int, error) {
	created, err := migration.NewDatabaseManager(d.Config).EnsureDatabase(ctx)
	if err != nil {
		return nil, 0, err
	}
	if created {
		d.Logger.Info("history database created", "driver", d.Config.StoreDriver)
	}

	db, err := storage.OpenSQL(d.Config.StoreDriver, d.Config.GetStoreDSN())
	if err != nil {
		return nil, 0, err
	}
	applied, err := migration.NewSchemaMigrator(db, d.Config.StoreDriver, progress, d.Logger).Run(ctx)
	if err != nil {
		db.Close()
		return nil, applied, fmt.Errorf("migrate history: %w", err)
	}
	return db, applied, nil
}

// OpenHistory returns the run history store
func (d *Deps) OpenHistory(ctx context.Context) (storage.History, error) {
	if !d.HasHistory() {
		return nil, fmt.Errorf("run history needs %s set to %s or %s", config.KeyStoreDriver, config.StoreSQLite, config.StoreMySQL)
	}
	db, _, err := d.OpenHistoryDB(ctx, nil)
	if err != nil {
		return nil, err
	}
	return storage.NewSQLStore(db), nil
}
