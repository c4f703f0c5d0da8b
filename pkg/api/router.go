package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/api/handlers"
	"github.com/shelfd/shelfd/pkg/api/middleware"
	"github.com/shelfd/shelfd/pkg/realtime"
)

// Deps carries everything the router wires into handlers.
//
// The service fields are the narrow interfaces the handlers consume;
// one *library.Service satisfies all five library-side slots.
type Deps struct {
	Libraries     handlers.LibraryService
	Directories   handlers.DirectoryService
	Files         handlers.FileService
	Uploads       handlers.UploadService
	Trash         handlers.TrashService
	Shares        handlers.ShareService
	Notifications handlers.NotificationService
	Audit         handlers.AuditQuerier
	Bus           *realtime.Bus

	// Auth authenticates every /v1 route except the public share
	// access endpoint and the agent mount.
	Auth *middleware.Authenticator

	// AgentRoutes is the agent tool surface, mounted at /v1/agent.
	// Nil disables the mount.
	AgentRoutes http.Handler

	// HealthChecks feed the readiness probe.
	HealthChecks map[string]handlers.HealthCheck

	// RequestTimeout bounds non-streaming requests. Zero defaults to
	// 60 seconds. SSE routes are exempt.
	RequestTimeout time.Duration

	// Share link lifetime clamps in days.
	ShareDefaultExpiryDays int
	ShareMaxExpiryDays     int

	// SSEHeartbeat is the keep-alive interval for event streams.
	SSEHeartbeat time.Duration
}

// NewRouter creates and configures the chi router with all middleware
// and routes.
//
// Middleware order: request id, real client IP, correlation id (which
// seeds the logging context), request logging, panic recovery. The
// request timeout applies inside the versioned group so event streams
// can outlive it.
func NewRouter(deps Deps) http.Handler {
	requestTimeout := deps.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	libraries := handlers.NewLibraryHandler(deps.Libraries)
	directories := handlers.NewDirectoryHandler(deps.Directories)
	files := handlers.NewFileHandler(deps.Files)
	uploads := handlers.NewUploadHandler(deps.Uploads)
	trash := handlers.NewTrashHandler(deps.Trash)
	shares := handlers.NewShareHandler(deps.Shares, deps.ShareDefaultExpiryDays, deps.ShareMaxExpiryDays)
	notifications := handlers.NewNotificationHandler(deps.Notifications)
	auditLog := handlers.NewAuditHandler(deps.Audit)
	events := handlers.NewEventsHandler(deps.Bus, deps.SSEHeartbeat)
	health := handlers.NewHealthHandler(deps.HealthChecks)

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", health.Liveness)
		r.Get("/ready", health.Readiness)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireVersion)

		// Public share access: the share token is the credential.
		r.With(chimw.Timeout(requestTimeout)).Post("/shares/access", shares.Access)

		// Agent tool surface with its own identity and rate limits.
		if deps.AgentRoutes != nil {
			r.Mount("/agent", deps.AgentRoutes)
		}

		// Authenticated API
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.Authenticate)

			// Event streams stay outside the request timeout.
			r.Get("/events", events.User)
			r.Get("/libraries/{libraryID}/events", events.Library)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(requestTimeout))

				r.Route("/libraries", func(r chi.Router) {
					r.Get("/", libraries.List)
					r.Post("/", libraries.Create)

					r.Route("/{libraryID}", func(r chi.Router) {
						r.Get("/", libraries.Get)
						r.Patch("/", libraries.Update)
						r.Delete("/", libraries.Delete)

						r.Get("/directories", directories.List)
						r.Post("/directories", directories.Create)

						r.Get("/files", files.List)
						r.Get("/files/search", files.Search)

						r.Post("/uploads", uploads.Init)

						r.Route("/trash", func(r chi.Router) {
							r.Get("/", trash.List)
							r.Delete("/", trash.Empty)
							r.Post("/restore", trash.Restore)
							r.Delete("/{itemType}/{itemID}", trash.PermanentDelete)
						})

						r.Get("/shares", shares.List)
						r.Post("/shares", shares.Create)
					})
				})

				r.Route("/directories/{directoryID}", func(r chi.Router) {
					r.Get("/", directories.Get)
					r.Patch("/", directories.Rename)
					r.Post("/move", directories.Move)
					r.Delete("/", directories.Delete)
				})

				r.Route("/files/{fileID}", func(r chi.Router) {
					r.Get("/", files.Get)
					r.Patch("/", files.Rename)
					r.Post("/move", files.Move)
					r.Delete("/", files.Delete)
					r.Get("/versions", files.Versions)
					r.Get("/download", files.Download)
					r.Get("/versions/{version}/download", files.DownloadVersion)
				})

				r.Route("/uploads/{uploadID}", func(r chi.Router) {
					r.Put("/parts/{partNumber}", uploads.Part)
					r.Post("/complete", uploads.Complete)
					r.Delete("/", uploads.Abort)
				})

				r.Route("/shares", func(r chi.Router) {
					r.Get("/", shares.ListMine)
					r.Get("/{shareID}", shares.Get)
					r.Post("/{shareID}/revoke", shares.Revoke)
					r.Delete("/{shareID}", shares.Delete)
				})

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", notifications.List)
					r.Get("/count", notifications.CountUnread)
					r.Post("/read-all", notifications.MarkAllRead)
					r.Post("/{notificationID}/read", notifications.MarkRead)
					r.Delete("/{notificationID}", notifications.Delete)
				})

				r.Route("/audit", func(r chi.Router) {
					r.Get("/correlations/{correlationID}", auditLog.ByCorrelation)
					r.Get("/libraries/{libraryID}", auditLog.ByLibrary)
					r.Get("/actors/{auditActorID}", auditLog.ByActor)
					r.Get("/targets/{targetType}/{targetID}", auditLog.ByTarget)
				})
			})
		})
	})

	return r
}

// requestLogger logs request start at DEBUG and completion at INFO,
// with health probes kept at DEBUG to avoid log noise.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger.DebugCtx(r.Context(), "API request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logFn := logger.InfoCtx
		if strings.HasPrefix(r.URL.Path, "/health") {
			logFn = logger.DebugCtx
		}
		logFn(r.Context(), "API request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		)
	})
}
