// Package nubapp talks to the Resasports social portal and the Nubapp booking
// API on behalf of one user.
package nubapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/example/sport-scheduler/internal/domain/booking"
)

const (
	DefaultTimeout = 20 * time.Second
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

	pathLoginPopup  = "/popup/login"
	pathLoginCheck  = "/popup/login_check"
	pathCentres     = "/ajax/applications/bounds/"
	pathCredRequest = "/ajax/application/%s/book/request"

	pathNubappLogin = "/web/resources/login_from_social.php"
	pathActivities  = "/api/v4/activities/getActivities.php"
	pathSlots       = "/api/v4/activities/getActivitiesCalendar.php"
	pathBook        = "/api/v4/activities/bookActivityCalendar.php"
	pathCancel      = "/api/v4/activities/leaveActivityCalendar.php"
)

type Options struct {
	SiteBaseURL string
	APIBaseURL  string
	Timeout     time.Duration
	Logger      *logrus.Entry
}

// Client implements booking.Session. It keeps the portal and API cookies in
// its own jar and is not safe for concurrent use.
type Client struct {
	http   *http.Client
	site   string
	api    string
	log    *logrus.Entry
	idUser string
	appID  string
}

var _ booking.Session = (*Client)(nil)

func New(opts Options) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	for _, raw := range []string{opts.SiteBaseURL, opts.APIBaseURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("invalid base url %q: %w", raw, err)
		}
	}
	return &Client{
		http: &http.Client{Jar: jar, Timeout: timeout},
		site: strings.TrimRight(opts.SiteBaseURL, "/"),
		api:  strings.TrimRight(opts.APIBaseURL, "/"),
		log:  log.WithField("component", "nubapp"),
	}, nil
}

// UserID is the Nubapp user id obtained at login, empty before.
func (c *Client) UserID() string { return c.idUser }

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	return req, nil
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values) (*http.Response, error) {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req)
}

func (c *Client) postJSON(ctx context.Context, rawURL string, payload any) (*http.Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, rawURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	c.log.Debugf("%s %s", req.Method, req.URL.Path)
	res, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, booking.TransientError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	return res, nil
}

// checkStatus maps non-200 responses to typed errors and closes the body
// when it returns one.
func checkStatus(op string, res *http.Response) error {
	if res.StatusCode == http.StatusOK {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	res.Body.Close()
	err := fmt.Errorf("unexpected status %d: %s", res.StatusCode, strings.TrimSpace(string(snippet)))
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		err = fmt.Errorf("%w: %v", booking.ErrNoSession, err)
	}
	return booking.TransientError{Op: op, Err: err}
}

func decodeJSON(op string, res *http.Response, v any) error {
	defer res.Body.Close()
	if err := checkStatus(op, res); err != nil {
		return err
	}
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return booking.TransientError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) requireSession() error {
	if c.idUser == "" {
		return booking.TransientError{Op: "session", Err: booking.ErrNoSession}
	}
	return nil
}

// flexString accepts JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts JSON numbers, numeric strings and booleans.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	switch s := strings.Trim(string(b), `"`); s {
	case "", "null", "false":
		*f = 0
		return nil
	case "true":
		*f = 1
		return nil
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("not an integer: %s", b)
		}
		*f = flexInt(n)
		return nil
	}
}
