package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"coursehub/internal/account"
	"coursehub/internal/auth"
	"coursehub/internal/blob"
	"coursehub/internal/catalog"
	"coursehub/internal/chat"
	"coursehub/internal/config"
	"coursehub/internal/db"
	"coursehub/internal/models"
	"coursehub/internal/payment"
	"coursehub/internal/progress"
	"coursehub/internal/ws"
)

const jsonBodyLimitBytes = 1 << 20

type Server struct {
	router *chi.Mux
	config *config.Config
	hub    *ws.Hub
}

func NewServer(
	cfg *config.Config,
	database *db.DB,
	mailer account.Mailer,
	blobs *blob.Service,
	gateway payment.Gateway,
) (*Server, error) {
	clientIPResolver, err := NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("configuring trusted proxies: %w", err)
	}

	userRepo := db.NewUserRepository(database)
	courseRepo := db.NewCourseRepository(database)
	purchaseRepo := db.NewPurchaseRepository(database)
	progressRepo := db.NewProgressRepository(database)
	messageRepo := db.NewMessageRepository(database)

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	otpService := auth.NewOTPService(cfg.Auth.OTPTTL)

	accounts := account.NewService(userRepo, mailer, jwtService, otpService, cfg.Operators, cfg.Auth.UserLoginPolicy)
	courses := catalog.NewService(courseRepo, userRepo, blobs, cfg.Storage.ImageMaxEdge)
	payments := payment.NewService(gateway, purchaseRepo, cfg.Payment.Currency, cfg.Payment.Razorpay.KeySecret)
	tracker := progress.NewTracker(progressRepo, userRepo, courseRepo)

	hub := ws.NewHub()
	relay := chat.NewRelay(messageRepo, hub)
	hub.SetMessageSink(relay)
	go hub.Run()

	authHandler := NewAuthHandler(accounts)
	courseHandler := NewCourseHandler(courses)
	uploadHandler := NewUploadHandler(courses, blobs.MaxUploadBytes())
	userHandler := NewUserHandler(userRepo)
	paymentHandler := NewPaymentHandler(payments)
	progressHandler := NewProgressHandler(tracker)
	messageHandler := NewMessageHandler(relay)
	mediaHandler := NewMediaHandler(blobs)
	wsHandler := NewWebSocketHandler(hub, jwtService, userRepo, cfg.Server.AllowedOrigins)
	serverInfoHandler := NewServerInfoHandler(cfg.Server.Name, cfg.Payment.Razorpay.KeyID, cfg.Payment.Currency, blobs.MaxUploadBytes())
	healthHandler := NewHealthHandler(database)

	authMiddleware := NewAuthMiddleware(jwtService)
	adminOnly := RequireRole(models.RoleAdmin)
	canSubmit := RequireRole(models.RoleInstructor, models.RoleAdmin)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)
	r.Get("/uploads/*", mediaHandler.Serve)
	r.With(rateLimit(clientIPResolver, 10, time.Minute)).Get("/ws", wsHandler.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(maxBodySizeMiddleware(jsonBodyLimitBytes))

		r.Get("/server/info", serverInfoHandler.GetInfo)
		r.Post("/register", authHandler.Register)
		r.With(rateLimit(clientIPResolver, 5, time.Minute)).Post("/login", authHandler.Login)
		r.With(rateLimit(clientIPResolver, 5, time.Minute)).Post("/verify-otp", authHandler.VerifyOTP)

		r.Get("/courses", courseHandler.ListApproved)
		r.Get("/selectedCourses", courseHandler.Featured)
		r.Get("/courses/{id}", courseHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)

			r.Get("/coursespurchase/{id}", courseHandler.ListPurchasable)
			r.Get("/user/{id}", userHandler.GetProfile)
			r.Get("/user-courses/{id}", courseHandler.ListPurchased)

			r.Post("/create-order", paymentHandler.CreateOrder)
			r.Post("/verify-payment", paymentHandler.VerifyPayment)
			r.Post("/updateProgress", progressHandler.Update)
			r.Get("/userProgress", progressHandler.Get)

			r.Post("/send_message", messageHandler.Send)
			r.Get("/get_messages", messageHandler.List)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/allcourses", courseHandler.ListAll)
				r.Get("/pendingcourses", courseHandler.ListPending)
				r.Put("/approvecourse/{id}", courseHandler.Approve)
				r.Put("/rejectcourse/{id}", courseHandler.Reject)
				r.Get("/revenue", courseHandler.Revenue)
				r.Get("/students-with-progress", courseHandler.StudentsWithProgress)
				r.Delete("/delete_messages", messageHandler.Clear)
			})
		})
	})

	// Uploads carry their own, larger body limit.
	r.With(authMiddleware.RequireAuth, canSubmit).Post("/addcourse", uploadHandler.AddCourse)

	return &Server{
		router: r,
		config: cfg,
		hub:    hub,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Shutdown() {
	s.hub.Shutdown()
}

// corsMiddleware answers browsers from configured or loopback origins and
// rejects the rest. Requests without an Origin header pass through.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !isOriginAllowed(origin, allowedOrigins) {
				writeError(w, http.StatusForbidden, ErrCodeInvalidRequest, "Origin not allowed")
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+chatSessionHeader)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if isLoopbackOrigin(origin) {
		return true
	}
	for _, allowed := range allowedOrigins {
		if originMatchesAllowed(origin, allowed) {
			return true
		}
	}
	return false
}

// originMatchesAllowed supports exact origins and prefix patterns ending in *.
func originMatchesAllowed(origin, allowed string) bool {
	allowed = strings.TrimRight(strings.TrimSpace(allowed), "/")
	if allowed == "" {
		return false
	}
	if prefix, ok := strings.CutSuffix(allowed, "*"); ok {
		return strings.HasPrefix(origin, prefix)
	}
	return origin == allowed
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
