package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/taskhive/apiserver/config"
	"github.com/taskhive/apiserver/internal/db"
	"github.com/taskhive/apiserver/internal/events"
	"github.com/taskhive/apiserver/internal/handlers"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/storage"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/internal/web"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  *events.Publisher
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(cfg.JWTSecret)
	if jwtSecret == "" {
		jwtSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	}
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	publisher, err := newEventPublisher(ctx, cfg, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	objectStorage, err := newObjectStorage(ctx, cfg, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	projectRepo := store.NewProjectRepository(dbConn)
	taskRepo := store.NewTaskRepository(dbConn)
	commentRepo := store.NewCommentRepository(dbConn)
	attachmentRepo := store.NewAttachmentRepository(dbConn)

	userService := services.NewUserService(userRepo)
	projectService := services.NewProjectService(projectRepo, publisher, logger)
	taskService := services.NewTaskService(taskRepo, projectRepo, publisher, logger)
	commentService := services.NewCommentService(commentRepo, taskRepo)

	var attachmentService *services.AttachmentService
	if objectStorage != nil {
		attachmentService = services.NewAttachmentService(attachmentRepo, taskRepo, objectStorage, logger)
	}

	authMiddleware := handlers.RequireAuth(jwtSecret)
	authHandler := handlers.NewAuthHandler(userService, jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, jwtSecret)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, authMiddleware)
	})
	router.Route("/projects", func(r chi.Router) {
		handlers.ProjectRouter(r, projectService, taskService, userService, authMiddleware)
	})
	router.Route("/tasks", func(r chi.Router) {
		handlers.TaskRouter(r, taskService, commentService, attachmentService, userService, authMiddleware)
	})
	router.Route("/comments", func(r chi.Router) {
		handlers.CommentRouter(r, commentService, userService, authMiddleware)
	})

	pages, err := web.New(authHandler, userService, projectService, taskService, commentService, jwtSecret)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	router.Route("/app", func(r chi.Router) {
		pages.Router(r)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}
	logger.Info("server configured",
		"port", port,
		"storage_backend", cfg.Storage.Backend,
		"events_backend", cfg.Events.Backend,
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		publisher:  publisher,
	}, nil
}

// newEventPublisher selects the configured broker backend. With no backend
// configured the returned publisher drops every event.
func newEventPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger) (*events.Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Events.Backend)) {
	case "":
		return events.NewPublisher(nil), nil
	case "rabbitmq":
		backend, err := events.NewRabbitMQClient(cfg.Events.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq backend: %w", err)
		}
		logger.Info("event publishing enabled", "backend", "rabbitmq")
		return events.NewPublisher(backend), nil
	case "pubsub":
		backend, err := events.NewPubSubClient(ctx, cfg.Events.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub backend: %w", err)
		}
		logger.Info("event publishing enabled", "backend", "pubsub")
		return events.NewPublisher(backend), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
}

// newObjectStorage selects the configured attachment storage backend. With
// no backend configured attachments are disabled and their routes are not
// mounted.
func newObjectStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage.Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "":
		return nil, nil
	case "minio":
		backend, err := storage.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			return nil, fmt.Errorf("minio backend: %w", err)
		}
		objectStorage := storage.NewStorage(backend)
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("minio bucket: %w", err)
		}
		logger.Info("attachments enabled", "backend", "minio", "bucket", objectStorage.Bucket())
		return objectStorage, nil
	case "gcs":
		backend, err := storage.NewGCSClient(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, fmt.Errorf("gcs backend: %w", err)
		}
		objectStorage := storage.NewStorage(backend)
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("gcs bucket: %w", err)
		}
		logger.Info("attachments enabled", "backend", "gcs", "bucket", objectStorage.Bucket())
		return objectStorage, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
