package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/bryanwahyu/roundsiq/internal/application"
	appanalysis "github.com/bryanwahyu/roundsiq/internal/application/analysis"
	"github.com/bryanwahyu/roundsiq/internal/config"
	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
	"github.com/bryanwahyu/roundsiq/internal/infra/ai/openai"
	"github.com/bryanwahyu/roundsiq/internal/infra/aiservice"
	"github.com/bryanwahyu/roundsiq/internal/infra/db/mysql"
	"github.com/bryanwahyu/roundsiq/internal/infra/db/postgres"
	"github.com/bryanwahyu/roundsiq/internal/infra/db/sqlite"
	"github.com/bryanwahyu/roundsiq/internal/infra/db/sqlstore"
	"github.com/bryanwahyu/roundsiq/internal/infra/storage"
	"github.com/bryanwahyu/roundsiq/internal/middleware"
)

// App holds every wired component of the service.
type App struct {
	Config       *config.Config
	DB           *sql.DB
	Cases        *sqlstore.CaseRepository
	Results      *sqlstore.ResultRepository
	JobErrors    *sqlstore.JobErrorRepository
	Blob         *storage.MinioStore
	Client       *aiservice.Client
	Orchestrator *appanalysis.Orchestrator
	Reanalyzer   *appanalysis.Reanalyzer
	Metrics      *middleware.Metrics
	Log          *slog.Logger
}

// OpenDB connects to the configured database and applies the schema where
// the driver needs it.
func OpenDB(ctx context.Context, cfg *config.Config) (*sql.DB, sqlstore.Dialect, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, sqlstore.Dialect{}, fmt.Errorf("postgres connect: %w", err)
		}
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, sqlstore.Dialect{}, err
			}
		}
		return db, sqlstore.Postgres, nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, sqlstore.Dialect{}, fmt.Errorf("sqlite open: %w", err)
		}
		return db, sqlstore.SQLite, nil
	default:
		db, err := mysql.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, sqlstore.Dialect{}, fmt.Errorf("mysql connect: %w", err)
		}
		if cfg.Database.Migrate {
			if err := mysql.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, sqlstore.Dialect{}, err
			}
		}
		return db, sqlstore.MySQL, nil
	}
}

// New builds the application from cfg. The caller owns Close.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	db, dialect, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:    cfg,
		DB:        db,
		Cases:     sqlstore.NewCaseRepository(db, dialect),
		Results:   sqlstore.NewResultRepository(db, dialect),
		JobErrors: sqlstore.NewJobErrorRepository(db, dialect),
		Metrics:   middleware.NewMetrics(),
		Log:       log,
	}

	resolver := &storage.Resolver{Local: storage.NewLocal(cfg.Attachments.UploadDir)}
	if cfg.Minio.Enabled {
		blob, err := storage.NewMinio(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("minio init: %w", err)
		}
		app.Blob = blob
		resolver.Blob = blob
	}

	loader := appanalysis.NewAttachmentLoader(resolver, log)
	loader.MaxCount = cfg.Attachments.MaxCount
	loader.MaxBytes = cfg.Attachments.MaxBytes

	app.Client = aiservice.New(aiservice.Options{
		BaseURL:        cfg.AnalysisService.BaseURL,
		APIKey:         cfg.AnalysisService.APIKey,
		RequestTimeout: cfg.AnalysisService.RequestTimeout.Std(),
		Logger:         log,
	})

	clock := application.SystemClock{}
	persister := appanalysis.NewPersister(app.Results, clock)
	errlog := appanalysis.NewErrorLog(app.JobErrors, log)

	app.Orchestrator = appanalysis.NewOrchestrator(appanalysis.Dependencies{
		Client:      app.Client,
		Cases:       app.Cases,
		Attachments: loader,
		Tracker:     appanalysis.NewTracker(clock, log),
		Persister:   persister,
		ErrorLog:    errlog,
		Observer:    app.Metrics,
		Logger:      log,
	}, appanalysis.PollPolicy{
		Interval:             cfg.Polling.Interval.Std(),
		MaxPolls:             cfg.Polling.MaxPolls,
		MaxConsecutiveErrors: cfg.Polling.MaxConsecutiveErrors,
		MaxBackoff:           cfg.Polling.MaxBackoff.Std(),
	})

	var analyzer domain.Analyzer = app.Client
	if cfg.Reanalysis.Backend == "openai" {
		analyzer = openai.NewClient(openai.Options{
			APIKey:    cfg.OpenAI.APIKey,
			Model:     cfg.OpenAI.Model,
			BaseURL:   cfg.OpenAI.BaseURL,
			Modifiers: cfg.OpenAI.Modifiers,
		})
	}
	app.Reanalyzer = &appanalysis.Reanalyzer{
		Analyzer:    analyzer,
		Cases:       app.Cases,
		Attachments: loader,
		Persister:   persister,
		ErrorLog:    errlog,
		Timeout:     cfg.Reanalysis.Timeout.Std(),
		Logger:      log,
	}
	return app, nil
}

// Clinicians converts the configured API keys into identities.
func Clinicians(cfg *config.Config) map[string]domain.Clinician {
	out := make(map[string]domain.Clinician, len(cfg.Auth.Clinicians))
	for key, c := range cfg.Auth.Clinicians {
		out[key] = domain.Clinician{ID: c.ID, Name: c.Name, Specialty: c.Specialty}
	}
	return out
}

// Clinician looks up one identity by id, for tools that act on behalf of a
// configured clinician.
func Clinician(cfg *config.Config, id string) (domain.Clinician, error) {
	for _, c := range cfg.Auth.Clinicians {
		if c.ID == id {
			return domain.Clinician{ID: c.ID, Name: c.Name, Specialty: c.Specialty}, nil
		}
	}
	if id == "" {
		return domain.Clinician{}, fmt.Errorf("a clinician id is required")
	}
	return domain.Clinician{ID: id}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
