package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/CodeWithJuber/ai-painting-generator/internal/config"
	"github.com/CodeWithJuber/ai-painting-generator/internal/db"
	"github.com/CodeWithJuber/ai-painting-generator/internal/provider/openai"
	"github.com/CodeWithJuber/ai-painting-generator/internal/provider/openrouter"
	"github.com/CodeWithJuber/ai-painting-generator/internal/repository"
	"github.com/CodeWithJuber/ai-painting-generator/internal/service"
	"github.com/CodeWithJuber/ai-painting-generator/internal/storage"
)

type App struct {
	Cfg            *config.Config
	DB             *sqlx.DB
	Store          storage.ImageStore
	UserRepository repository.UserRepository

	AuthService       *service.AuthService
	TitleService      *service.TitleService
	ReferenceService  *service.ReferenceService
	GenerationService *service.GenerationService
	StatusService     *service.StatusService
}

func New(cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	titleRepository := repository.NewTitleRepository(database)
	referenceRepository := repository.NewReferenceRepository(database)
	ideaRepository := repository.NewIdeaRepository(database)
	paintingRepository := repository.NewPaintingRepository(database)

	// Storage for rendered images
	imageStore, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	// Provider clients
	conceptClient := openrouter.New(cfg.OpenRouterAPIKey, cfg.OpenRouterURL, cfg.ConceptModel)
	renderClient := openai.New(
		cfg.OpenAIAPIKey,
		cfg.OpenAIURL,
		cfg.VisionModel,
		cfg.RenderModel,
		cfg.ProviderPacing,
		cfg.RenderConcurrency,
	)

	// Services
	authService := service.NewAuthService(userRepository, cfg.JWTSecret, cfg.JWTExpiry)
	titleService := service.NewTitleService(titleRepository)
	referenceService := service.NewReferenceService(referenceRepository, titleRepository)
	conceptService := service.NewConceptService(ideaRepository, conceptClient, cfg.ConceptTimeout)
	renderService := service.NewRenderService(
		paintingRepository,
		imageStore,
		renderClient,
		cfg.AnalyzeTimeout,
		cfg.RenderTimeout,
	)
	generationService := service.NewGenerationService(
		titleRepository,
		paintingRepository,
		ideaRepository,
		referenceRepository,
		conceptService,
		renderService,
		service.GenerationConfig{
			QuantityMin: cfg.QuantityMin,
			QuantityMax: cfg.QuantityMax,
			Concurrency: cfg.RenderConcurrency,
			MaxAttempts: cfg.RenderMaxAttempts,
			BackoffBase: cfg.RenderBackoffBase,
			BatchPause:  cfg.BatchPause,
		},
	)
	statusService := service.NewStatusService(titleRepository, paintingRepository, referenceRepository)

	// Batches do not survive a restart. Fail their paintings now so clients
	// stop polling them.
	err = generationService.SweepInterrupted()
	if err != nil {
		return nil, err
	}

	return &App{
		Cfg:               cfg,
		DB:                database,
		Store:             imageStore,
		UserRepository:    userRepository,
		AuthService:       authService,
		TitleService:      titleService,
		ReferenceService:  referenceService,
		GenerationService: generationService,
		StatusService:     statusService,
	}, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
