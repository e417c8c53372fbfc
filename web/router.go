package web

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"subsv/config"
	"subsv/gateway"
	"subsv/kafka"
	"subsv/mqtt"
	"subsv/valkey"
)

// Managers gives the web server access to a gateway's shared state
// without binding it to the concrete *gateway.Gateway type.
type Managers interface {
	GetConfig() *config.Config
	GetConfigPath() string
	GetMQTTMgr() *mqtt.Manager
	GetKafkaMgr() *kafka.Manager
	GetValkeyMgr() *valkey.Manager
	BreakerNames() []string
	ProtectionNames() []string
	BreakerSnapshots() []gateway.BreakerSnapshot
	ProtectionSnapshots() []gateway.ProtectionSnapshot
	FindBreakerSnapshot(name string) (gateway.BreakerSnapshot, error)
	FindProtectionSnapshot(name string) (gateway.ProtectionSnapshot, error)
}

// handlers holds the web server's login, dashboard, and API handlers.
type handlers struct {
	cfg      *config.WebUIConfig
	managers Managers
	sessions *sessionStore
	tmpl     *template.Template
}

func newHandlers(cfg *config.WebUIConfig, managers Managers) *handlers {
	return &handlers{
		cfg:      cfg,
		managers: managers,
		sessions: newSessionStore(cfg.SessionSecret),
		tmpl:     parseTemplates(),
	}
}

// NewRouter builds the chi router serving the status dashboard (login,
// change-password, overview page) and the JSON status API.
func NewRouter(cfg *config.WebConfig, managers Managers) chi.Router {
	h := newHandlers(&cfg.UI, managers)

	r := chi.NewRouter()

	if cfg.UI.Enabled {
		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLoginSubmit)
		r.Post("/logout", h.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware)

			r.Get("/change-password", h.handleChangePasswordPage)
			r.Post("/change-password", h.handleChangePasswordSubmit)

			r.Group(func(r chi.Router) {
				r.Use(h.requirePasswordChanged)
				r.Get("/", h.handleDashboard)
				r.Get("/breakers/{name}", h.handleBreakerPage)
				r.Get("/protection/{name}", h.handleProtectionPage)
			})
		})
	}

	if cfg.API.Enabled {
		r.Route("/api", func(r chi.Router) {
			r.Get("/status", h.handleAPIStatus)
			r.Get("/breaker/{name}", h.handleAPIBreaker)
			r.Get("/protection/{name}", h.handleAPIProtection)
		})
	}

	return r
}

// authMiddleware requires a valid session, redirecting to /login otherwise.
func (h *handlers) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, _, ok := h.sessions.getUser(r)
		if !ok || username == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if h.managers.GetConfig().FindWebUser(username) == nil {
			h.sessions.clear(w, r)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requirePasswordChanged forces a redirect to /change-password for
// accounts flagged MustChangePassword, so a freshly provisioned default
// account can't be used past the login screen until its password is set.
func (h *handlers) requirePasswordChanged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, _, _ := h.sessions.getUser(r)
		user := h.managers.GetConfig().FindWebUser(username)
		if user != nil && user.MustChangePassword {
			http.Redirect(w, r, "/change-password", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) adminOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, role, ok := h.sessions.getUser(r)
		if !ok || !isAdmin(role) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) renderTemplate(w http.ResponseWriter, name string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *handlers) getUserInfo(r *http.Request) map[string]interface{} {
	username, role, _ := h.sessions.getUser(r)
	return map[string]interface{}{
		"Username": username,
		"Role":     role,
		"IsAdmin":  isAdmin(role),
	}
}
