package gitlab

import (
	"context"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type authResult struct {
	token string
	err   error
}

// Authenticator drives the implicit-grant handshake: it opens the
// authorization URL in the system browser and waits for the loopback
// callback server to hand the token back. Only one handshake may be in
// flight; the armed slot enforces that.
type Authenticator struct {
	cfg     oauth2.Config
	listen  string
	openURL func(url string) error

	mu    sync.Mutex
	slot  chan authResult
	state string
}

func newAuthenticator(base string, opts Options) (*Authenticator, error) {
	a := &Authenticator{
		cfg: oauth2.Config{
			ClientID: opts.ClientID,
			Scopes:   strings.Fields(opts.Scopes),
			Endpoint: oauth2.Endpoint{
				AuthURL: base + "/oauth/authorize",
			},
		},
		listen:  opts.ListenAddr,
		openURL: opts.OpenURL,
	}
	if a.listen == "" {
		a.listen = "127.0.0.1:8934"
	}
	if a.openURL == nil {
		a.openURL = openBrowser
	}
	return a, nil
}

// Authenticate resolves to a token or an error from the taxonomy. A call
// while another handshake is pending fails immediately with ErrBusy and
// does not open a second browser window.
func (a *Authenticator) Authenticate(ctx context.Context) (string, error) {
	slot, state, err := a.arm()
	if err != nil {
		return "", err
	}
	defer a.disarm()

	ln, err := net.Listen("tcp", a.listen)
	if err != nil {
		return "", newRequestError(ErrUnavailable, 0, "callback server: "+err.Error(), true)
	}
	srv := &http.Server{Handler: a.routes()}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Close() }()

	cfg := a.cfg
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/callback"
	authURL := cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("response_type", "token"))
	zap.L().Debug("open authorization url", zap.String("url", authURL))
	if err := a.openURL(authURL); err != nil {
		return "", newRequestError(ErrUnavailable, 0, "service unavailable or blocked: "+err.Error(), true)
	}

	select {
	case res := <-slot:
		if res.err != nil {
			return "", res.err
		}
		return res.token, nil
	case <-ctx.Done():
		return "", newRequestError(ErrAccessDenied, 0, "authorization canceled", true)
	}
}

func (a *Authenticator) arm() (chan authResult, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.slot != nil {
		return nil, "", newRequestError(ErrBusy, 0, "authentication already in progress", false)
	}
	a.slot = make(chan authResult, 1)
	a.state = uuid.NewString()
	return a.slot, a.state, nil
}

func (a *Authenticator) disarm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slot = nil
}

// deliver hands the handshake outcome to the waiting flow. Exactly one
// delivery wins; anything after the slot is disarmed is dropped, which
// covers a redirect firing after the flow was already resolved.
func (a *Authenticator) deliver(res authResult) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.slot == nil {
		return false
	}
	a.slot <- res
	a.slot = nil
	return true
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
