// Package guard gates entry to protected areas using only locally-held
// token validity. It never talks to the backend, which keeps route gating
// synchronous; server-side revocation is only noticed when the next
// authorized request fails.
package guard

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/thevaultgame/vault-auth-client/credentials"
	"github.com/thevaultgame/vault-auth-client/token"
)

const defaultLoginPath = "/auth/login"

// Decision is the outcome of a gate check: either entry is allowed, or the
// caller should redirect to RedirectTo.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

type Guard struct {
	store     credentials.Store
	inspector *token.Inspector
	loginPath string
	log       zerolog.Logger
}

type Option func(*Guard)

// WithLoginPath overrides where denied entries are redirected.
func WithLoginPath(path string) Option {
	return func(g *Guard) {
		g.loginPath = path
	}
}

func WithInspector(inspector *token.Inspector) Option {
	return func(g *Guard) {
		g.inspector = inspector
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(g *Guard) {
		g.log = log
	}
}

func New(store credentials.Store, options ...Option) *Guard {
	g := &Guard{
		store:     store,
		inspector: token.NewInspector(),
		loginPath: defaultLoginPath,
		log:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// CanEnter allows entry if and only if an access token exists and is not
// expired. On denial, any stale credentials are cleared before redirecting;
// clearing an already-empty store is a no-op.
func (g *Guard) CanEnter() Decision {
	session, err := g.store.Load()
	if err != nil {
		g.log.Debug().Err(err).Msg("credential read failed, denying entry")
	}

	if session.AccessToken != "" && g.inspector.IsValid(session.AccessToken) {
		return Decision{Allowed: true}
	}

	if err := g.store.Clear(); err != nil {
		g.log.Debug().Err(err).Msg("failed to clear stale credentials")
	}
	return Decision{Allowed: false, RedirectTo: g.loginPath}
}

// Middleware is the http flavor of the gate for server-rendered apps:
// denied requests are redirected to the login path.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.CanEnter()
		if !decision.Allowed {
			http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
