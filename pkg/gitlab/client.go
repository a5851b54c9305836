package gitlab

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/units"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://gitlab.com"
	// DefaultScopes is what the editor needs: API access plus repository
	// read/write.
	DefaultScopes = "api read_repository write_repository"

	defaultTimeout     = 25 * time.Second
	defaultMaxFileSize = units.Base2Bytes(1000000) // REST API limit
)

type Options struct {
	// BaseURL of the GitLab instance, without the /api/v4 suffix.
	BaseURL string

	// OAuth application credentials.
	ClientID string
	Scopes   string

	// ListenAddr is where the OAuth callback server binds; it must match
	// the redirect URI registered for the application.
	ListenAddr string

	// OpenURL launches the authorization URL in a browser. Defaults to
	// the platform opener.
	OpenURL func(url string) error

	// Remember persists tokens through Store after each handshake.
	Remember bool
	Store    TokenStore

	// PNGExport renders diagram XML as a PNG with the model embedded.
	// Optional; without it .png saves fall back to plain base64 XML.
	PNGExport PNGExporter

	Timeout     time.Duration
	MaxFileSize units.Base2Bytes
	HTTPClient  *http.Client
}

type authenticator interface {
	Authenticate(ctx context.Context) (string, error)
}

// Client talks to one GitLab instance on behalf of the editor. It holds
// exactly one live token and the identity fetched with it.
type Client struct {
	apiBase     string
	webBase     string
	timeout     time.Duration
	maxFileSize int64
	http        *http.Client

	auth      authenticator
	store     TokenStore
	remember  bool
	pngExport PNGExporter

	mu    sync.Mutex
	token string
	user  *User
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Scopes == "" {
		opts.Scopes = DefaultScopes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Store == nil {
		opts.Store = NopTokenStore{}
	}
	base := strings.TrimSuffix(opts.BaseURL, "/")
	c := &Client{
		apiBase:     base + "/api/v4",
		webBase:     base,
		timeout:     opts.Timeout,
		maxFileSize: int64(opts.MaxFileSize),
		http:        opts.HTTPClient,
		store:       opts.Store,
		remember:    opts.Remember,
		pngExport:   opts.PNGExport,
	}
	auth, err := newAuthenticator(base, opts)
	if err != nil {
		return nil, errors.Wrap(err, "init authenticator")
	}
	c.auth = auth
	return c, nil
}

// Token returns the live token, empty when signed out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetToken installs a previously persisted token. The user identity is
// refetched on the next call.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.user = nil
}

// User returns the cached identity, nil before the first authenticated call.
func (c *Client) User() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Client) setUser(u *User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = u
}

// Logout drops the live token and identity and clears the persisted copy.
func (c *Client) Logout() {
	if err := c.store.Clear(); err != nil {
		zap.L().Warn("clear persisted token", zap.Error(err))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.user = nil
}

// Login drives the OAuth handshake and installs the resulting token.
func (c *Client) Login(ctx context.Context) error {
	token, err := c.auth.Authenticate(ctx)
	if err != nil {
		return err
	}
	c.SetToken(token)
	if c.remember {
		if err := c.store.Save(token); err != nil {
			zap.L().Warn("persist token", zap.Error(err))
		}
	}
	return nil
}
