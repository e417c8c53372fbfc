package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *handlers) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if username, _, ok := h.sessions.getUser(r); ok && username != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderTemplate(w, "login.html", nil)
}

func (h *handlers) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	if username == "" || password == "" {
		h.renderTemplate(w, "login.html", map[string]interface{}{"Error": "Username and password are required"})
		return
	}

	user := h.managers.GetConfig().FindWebUser(username)
	if user == nil || !checkPassword(password, user.PasswordHash) {
		h.renderTemplate(w, "login.html", map[string]interface{}{"Error": "Invalid username or password"})
		return
	}

	if err := h.sessions.setUser(w, r, user.Username, user.Role); err != nil {
		h.renderTemplate(w, "login.html", map[string]interface{}{"Error": "Session error: " + err.Error()})
		return
	}

	if user.MustChangePassword {
		http.Redirect(w, r, "/change-password", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.clear(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *handlers) handleChangePasswordPage(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, "change-password.html", nil)
}

func (h *handlers) handleChangePasswordSubmit(w http.ResponseWriter, r *http.Request) {
	username, _, _ := h.sessions.getUser(r)
	password := r.FormValue("password")
	confirm := r.FormValue("confirm")

	if password == "" || password != confirm {
		h.renderTemplate(w, "change-password.html", map[string]interface{}{"Error": "Passwords must match and not be empty"})
		return
	}

	hash, err := hashPassword(password)
	if err != nil {
		h.renderTemplate(w, "change-password.html", map[string]interface{}{"Error": "Failed to hash password"})
		return
	}

	cfg := h.managers.GetConfig()
	cfg.Lock()
	user := cfg.FindWebUser(username)
	if user == nil {
		cfg.Unlock()
		http.Error(w, "user not found", http.StatusInternalServerError)
		return
	}
	user.PasswordHash = hash
	user.MustChangePassword = false
	if err := cfg.UnlockAndSave(h.managers.GetConfigPath()); err != nil {
		http.Error(w, "failed to save: "+err.Error(), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := h.getUserInfo(r)
	data["Breakers"] = h.managers.BreakerSnapshots()
	data["Protection"] = h.managers.ProtectionSnapshots()
	h.renderTemplate(w, "dashboard.html", data)
}

func (h *handlers) handleBreakerPage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := h.managers.FindBreakerSnapshot(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.renderTemplate(w, "breaker.html", map[string]interface{}{
		"Name": snap.Name, "State": snap.State, "CurrentA": snap.CurrentA,
		"Overloaded": snap.Overloaded, "Locked": snap.Locked,
	})
}

func (h *handlers) handleProtectionPage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := h.managers.FindProtectionSnapshot(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.renderTemplate(w, "protection.html", map[string]interface{}{
		"Name": snap.Name, "Kind": snap.Kind, "Enabled": snap.Enabled,
	})
}
