package gitlab

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gopkg.d7z.net/gitlab-drive/pkg/utils"
)

// The implicit grant delivers the token in the URL fragment, which never
// reaches the server. The /callback page relays the fragment back as a
// query string to /token, where it can actually be read.

//go:embed callback.html.tmpl
var relayPage string

//go:embed result.html.tmpl
var resultPage string

var (
	relayTmpl  = utils.MustTemplate(relayPage)
	resultTmpl = utils.MustTemplate(resultPage)
)

func (a *Authenticator) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/callback", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := relayTmpl.Execute(w, nil); err != nil {
			zap.L().Error("render relay page", zap.Error(err))
		}
	})
	r.Get("/token", a.handleToken)
	return r
}

func (a *Authenticator) handleToken(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	if !a.stateMatch(q.Get("state")) {
		zap.L().Warn("authorization state mismatch")
		a.renderResult(w, http.StatusBadRequest, "Sign-in failed", "The authorization response did not match this request.")
		return
	}
	token := q.Get("access_token")
	if token == "" || q.Get("error") != "" {
		a.deliver(authResult{err: newRequestError(ErrAccessDenied, 0, "access denied", true)})
		a.renderResult(w, http.StatusOK, "Access denied", "The authorization request was denied. You can close this window.")
		return
	}
	if a.deliver(authResult{token: token}) {
		a.renderResult(w, http.StatusOK, "Signed in", "Authorization complete. You can close this window.")
	} else {
		// the flow already resolved, e.g. after a cancel
		a.renderResult(w, http.StatusOK, "Nothing to do", "This sign-in attempt is no longer active. You can close this window.")
	}
}

func (a *Authenticator) stateMatch(state string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return state != "" && state == a.state
}

func (a *Authenticator) renderResult(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := resultTmpl.Execute(w, map[string]any{
		"Title":   title,
		"Message": message,
	}); err != nil {
		zap.L().Error("render result page", zap.Error(err))
	}
}
