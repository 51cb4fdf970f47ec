// Package browser talks to a remote Chrome over the DevTools protocol.
package browser

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"
	log "github.com/sirupsen/logrus"
)

// Connector opens short-lived connections to a remote browser. It never
// closes the browser itself, only the tabs and sockets it opened.
type Connector struct {
	APIKey      string
	PageTimeout time.Duration
	PingTimeout time.Duration

	// HTTP serves /json/version discovery. Requests carry the caller's ctx.
	HTTP *http.Client
}

func New(apiKey string, pageTimeout, pingTimeout time.Duration) *Connector {
	if pageTimeout <= 0 {
		pageTimeout = 30 * time.Second
	}
	if pingTimeout <= 0 {
		pingTimeout = 10 * time.Second
	}
	return &Connector{
		APIKey:      apiKey,
		PageTimeout: pageTimeout,
		PingTimeout: pingTimeout,
		HTTP:        &http.Client{Timeout: pingTimeout},
	}
}

// Ping connects to remoteURL and asks the browser for its version.
func (c *Connector) Ping(ctx context.Context, remoteURL string) error {
	ctx, cancel := context.WithTimeout(ctx, c.PingTimeout)
	defer cancel()

	b, release, err := c.connect(ctx, remoteURL)
	if err != nil {
		return err
	}
	defer release()

	v, err := b.Version()
	if err != nil {
		return fmt.Errorf("browser version: %w", err)
	}
	log.Debugf("[browser] connected product=%q protocol=%s", v.Product, v.ProtocolVersion)
	return nil
}

// Render loads pageURL in a new tab of the remote browser and returns the
// resulting document HTML.
func (c *Connector) Render(ctx context.Context, remoteURL, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.PageTimeout)
	defer cancel()

	b, release, err := c.connect(ctx, remoteURL)
	if err != nil {
		return "", err
	}
	defer release()

	page, err := b.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", fmt.Errorf("open tab %s: %w", pageURL, err)
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load %s: %w", pageURL, err)
	}
	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read html %s: %w", pageURL, err)
	}
	return html, nil
}

// connect dials the DevTools socket itself so it can be closed: release
// closes it, and so does ctx ending, handshake included. Closing the socket
// leaves the remote browser running.
func (c *Connector) connect(ctx context.Context, remoteURL string) (*rod.Browser, func(), error) {
	wsURL, err := c.ControlURL(ctx, remoteURL)
	if err != nil {
		return nil, nil, err
	}

	d := &connDialer{tls: strings.HasPrefix(strings.ToLower(wsURL), "wss")}
	stop := context.AfterFunc(ctx, d.close)
	release := func() {
		stop()
		d.close()
	}

	ws := &cdp.WebSocket{Dialer: d}
	if err := ws.Connect(ctx, wsURL, nil); err != nil {
		release()
		return nil, nil, fmt.Errorf("connect %s: %w", Redact(wsURL), ctxErr(ctx, err))
	}

	b := rod.New().Client(cdp.New().Start(ws)).Context(ctx)
	if err := b.Connect(); err != nil {
		release()
		return nil, nil, fmt.Errorf("connect %s: %w", Redact(wsURL), ctxErr(ctx, err))
	}
	return b, release, nil
}

// ctxErr prefers the context's error over the closed-socket error it caused.
func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}

// connDialer keeps the one connection it dials. After close, a late dial is
// closed as soon as it lands.
type connDialer struct {
	tls bool

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

func (d *connDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		port := "80"
		if d.tls {
			port = "443"
		}
		address = net.JoinHostPort(address, port)
	}

	var conn net.Conn
	var err error
	if d.tls {
		conn, err = (&tls.Dialer{}).DialContext(ctx, network, address)
	} else {
		conn, err = (&net.Dialer{}).DialContext(ctx, network, address)
	}
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		_ = conn.Close()
		return nil, net.ErrClosed
	}
	d.conn = conn
	return conn, nil
}

func (d *connDialer) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.conn != nil {
		_ = d.conn.Close()
	}
}

// ControlURL turns remoteURL into a DevTools websocket URL. http(s) URLs are
// resolved through the /json/version discovery endpoint; the API key, when
// set, rides along as the token query parameter.
func (c *Connector) ControlURL(ctx context.Context, remoteURL string) (string, error) {
	raw := strings.TrimSpace(remoteURL)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid remote url %q", remoteURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	case "http", "https":
		if u, err = c.discover(ctx, u); err != nil {
			return "", fmt.Errorf("resolve %s: %w", Redact(raw), err)
		}
	default:
		return "", fmt.Errorf("unsupported remote url scheme %q", u.Scheme)
	}

	if c.APIKey != "" {
		q := u.Query()
		if q.Get("token") == "" {
			q.Set("token", c.APIKey)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

type versionInfo struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// discover asks an http(s) DevTools endpoint for its browser websocket. The
// answer names the browser's own host, so the caller's host is kept.
func (c *Connector) discover(ctx context.Context, base *url.URL) (*url.URL, error) {
	endpoint := *base
	endpoint.Path = "/json/version"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: c.PingTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read discovery: %w", err)
	}
	var v versionInfo
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode discovery: %w", err)
	}
	if v.WebSocketDebuggerURL == "" {
		return nil, errors.New("discovery has no webSocketDebuggerUrl")
	}

	ws, err := url.Parse(v.WebSocketDebuggerURL)
	if err != nil {
		return nil, fmt.Errorf("discovery url %q: %w", v.WebSocketDebuggerURL, err)
	}
	ws.Host = base.Host
	if strings.EqualFold(base.Scheme, "https") {
		ws.Scheme = "wss"
	} else {
		ws.Scheme = "ws"
	}
	if q := base.Query(); len(q) > 0 && ws.RawQuery == "" {
		ws.RawQuery = base.RawQuery
	}
	return ws, nil
}

// Redact hides the token query parameter for logs and errors.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("token") != "" {
		q.Set("token", "xxx")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
