package httpapi

import (
	"net/http"

	"keeper-notes/internal/api/http/middleware"
	"keeper-notes/internal/api/swagger"
	"keeper-notes/internal/config"
	"keeper-notes/internal/repository/memory"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Handler HTTP обработчики REST API заметок
type Handler struct {
	accounts *memory.Accounts
	log      zerolog.Logger
}

// NewHandler создает обработчики поверх хранилища пользователей
func NewHandler(accounts *memory.Accounts, log zerolog.Logger) *Handler {
	return &Handler{accounts: accounts, log: log}
}

// Routes регистрирует маршруты API
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/signup", h.signup).Methods(http.MethodPost)
	r.HandleFunc("/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/google", h.googleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/send-otp", h.sendOTP).Methods(http.MethodPost)
	r.HandleFunc("/auth/phone", h.phoneLogin).Methods(http.MethodPost)
	r.HandleFunc("/shared/{id}", h.sharedNote).Methods(http.MethodGet)

	private := r.NewRoute().Subrouter()
	private.Use(h.RequireAuth)
	private.HandleFunc("/verify", h.verify).Methods(http.MethodPost, http.MethodGet)
	private.HandleFunc("/profile", h.updateProfile).Methods(http.MethodPut)
	private.HandleFunc("/notes", h.listNotes).Methods(http.MethodGet)
	private.HandleFunc("/notes", h.createNote).Methods(http.MethodPost)
	private.HandleFunc("/notes/{id}", h.getNote).Methods(http.MethodGet)
	private.HandleFunc("/notes/{id}", h.updateNote).Methods(http.MethodPut)
	private.HandleFunc("/notes/{id}", h.deleteNote).Methods(http.MethodDelete)
	private.HandleFunc("/notes/{id}/favorite", h.toggleFavorite).Methods(http.MethodPatch)
	private.HandleFunc("/notes/{id}/share", h.shareNote).Methods(http.MethodPost)
}

// NewRouter собирает маршрутизатор и цепочку middleware
func NewRouter(h *Handler, cfg *config.ConfigGateway, log zerolog.Logger) http.Handler {
	r := mux.NewRouter().UseEncodedPath()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	h.Routes(r)
	swagger.Routes(r, log)

	// Применение middleware (в обратном порядке выполнения):
	// 1. CORS (самый внешний слой)
	// 2. Logging (логирует все запросы)
	// 3. Rate Limiting (ограничивает количество запросов)
	var handler http.Handler = r
	handler = middleware.RateLimit(handler, cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	handler = middleware.Logging(handler, log)
	handler = middleware.CORS(handler, cfg.CORSAllowedOrigins, cfg.CORSMaxAge)
	return handler
}
