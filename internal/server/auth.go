package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/eventinvite/eventinvite-go/internal/api"
)

// Capability names one admin action class.
type Capability string

const (
	CapEventsRead        Capability = "events:read"
	CapEventsWrite       Capability = "events:write"
	CapGuestsRead        Capability = "guests:read"
	CapGuestsWrite       Capability = "guests:write"
	CapInvitationsRead   Capability = "invitations:read"
	CapInvitationsManage Capability = "invitations:manage"
	CapStatsRead         Capability = "stats:read"
)

// policyRule binds a method plus path shape to the capability it requires.
// An empty suffix matches any path under the prefix. Rules are evaluated in
// order; first match wins.
type policyRule struct {
	method     string
	prefix     string
	suffix     string
	capability Capability
}

// policy is the single capability table for the admin surface. Handlers never
// run their own permission checks.
var policy = []policyRule{
	{http.MethodGet, "/api/events/", "/stats", CapStatsRead},
	{http.MethodGet, "/api/events/", "/rsvps", CapStatsRead},
	{http.MethodGet, "/api/events/", "/invitations", CapInvitationsRead},
	{http.MethodPost, "/api/events/", "/invitations", CapInvitationsManage},
	{http.MethodGet, "/api/events", "", CapEventsRead},
	{http.MethodPost, "/api/events", "", CapEventsWrite},
	{http.MethodPut, "/api/events/", "", CapEventsWrite},
	{http.MethodDelete, "/api/events/", "", CapEventsWrite},

	{http.MethodGet, "/api/guests/", "/invitations", CapInvitationsRead},
	{http.MethodGet, "/api/guests", "", CapGuestsRead},
	{http.MethodPost, "/api/guests", "", CapGuestsWrite},
	{http.MethodPut, "/api/guests/", "", CapGuestsWrite},
	{http.MethodDelete, "/api/guests/", "", CapGuestsWrite},

	{http.MethodGet, "/api/invitations/", "", CapInvitationsRead},
	{http.MethodPost, "/api/invitations", "", CapInvitationsManage},
	{http.MethodDelete, "/api/invitations/", "", CapInvitationsManage},
}

// requiredCapability returns the capability guarding a request, or false when
// no rule covers it (the request is then refused).
func requiredCapability(method, path string) (Capability, bool) {
	for _, rule := range policy {
		if rule.method != method {
			continue
		}
		if path != strings.TrimSuffix(rule.prefix, "/") && !strings.HasPrefix(path, rule.prefix) {
			continue
		}
		if rule.suffix != "" && !strings.HasSuffix(path, rule.suffix) {
			continue
		}
		return rule.capability, true
	}
	return "", false
}

// adminCapabilities is the full set granted to the configured admin account.
var adminCapabilities = map[Capability]bool{
	CapEventsRead:        true,
	CapEventsWrite:       true,
	CapGuestsRead:        true,
	CapGuestsWrite:       true,
	CapInvitationsRead:   true,
	CapInvitationsManage: true,
	CapStatsRead:         true,
}

// authGate guards the admin surface with basic auth. The password hash is
// computed once at startup so the plaintext is never held by the gate.
type authGate struct {
	username     string
	passwordHash []byte
}

// newAuthGate hashes the configured admin password.
func newAuthGate(username, password string) (*authGate, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &authGate{username: username, passwordHash: hash}, nil
}

// Middleware authenticates the request and checks the capability table.
func (g *authGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !g.authenticate(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="eventinvite admin"`)
			api.WriteError(w, http.StatusUnauthorized, api.ReasonUnauthenticated, "authentication required")
			return
		}

		capability, covered := requiredCapability(r.Method, r.URL.Path)
		if !covered || !adminCapabilities[capability] {
			api.WriteError(w, http.StatusForbidden, api.ReasonUnauthorized, "not permitted")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *authGate) authenticate(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(g.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(pass)) == nil
	return userOK && passOK
}
