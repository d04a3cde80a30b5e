package trackimo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrAuthFailed marks any failure inside the login handshake. Callers map it
// to a 401 outcome; every other client error is a precondition failure.
var ErrAuthFailed = errors.New("trackimo authentication failed")

// OAuth scope requested during the handshake (mirrors the upstream contract).
const oauthScope = "locations,notifications,devices,accounts,settings,geozones"

// Credentials holds the environment-sourced Trackimo configuration. It is
// loaded once per process and validated eagerly.
type Credentials struct {
	Username     string
	Password     string
	ServerURL    string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Whitelabel   string
}

// Validate fails fast when any required credential is missing.
func (c Credentials) Validate() error {
	missing := []string{}
	for k, v := range map[string]string{
		"TRACKIMO_USERNAME":      c.Username,
		"TRACKIMO_PASSWORD":      c.Password,
		"TRACKIMO_SERVER_URL":    c.ServerURL,
		"TRACKIMO_CLIENT_ID":     c.ClientID,
		"TRACKIMO_CLIENT_SECRET": c.ClientSecret,
		"TRACKIMO_REDIRECT_URI":  c.RedirectURI,
	} {
		if v == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required Trackimo configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// UserDetails is the authenticated account returned by GET /api/v3/user.
type UserDetails struct {
	AccountID int64  `json:"account_id"`
	Email     string `json:"email"`
}

// Descendant is one sub-account (a tracked user) under the root account.
type Descendant struct {
	Name      string           `json:"name"`
	AccountID int64            `json:"account_id"`
	Email     string           `json:"email"`
	Devices   []map[string]any `json:"devices"`
}

// DescendantsResponse wraps the descendant snapshot.
type DescendantsResponse struct {
	Descendants []Descendant `json:"descendants"`
}

// Client talks to the Trackimo REST API. Every call is attempted exactly
// once; there are no built-in retries.
type Client struct {
	creds Credentials
	http  *http.Client
}

// NewClient builds a client for the given credentials. The internal HTTP
// client never follows redirects: the OAuth authorize step must observe the
// 302 carrying the authorization code.
func NewClient(creds Credentials) *Client {
	return &Client{
		creds: creds,
		http: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Login performs the three-step handshake: password login (collecting the
// session cookies), OAuth2 authorize (expecting a 302 whose Location carries
// the code), and the code-for-token exchange. Any failure is ErrAuthFailed.
func (c *Client) Login(ctx context.Context) (string, error) {
	whitelabel := c.creds.Whitelabel
	if whitelabel == "" {
		whitelabel = "FIDELIDADE"
	}
	body, _ := json.Marshal(map[string]string{
		"username":   c.creds.Username,
		"password":   c.creds.Password,
		"whitelabel": whitelabel,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.creds.ServerURL+"/api/internal/v2/user/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: login request: %v", ErrAuthFailed, err)
	}
	cookies := resp.Cookies()
	drain(resp)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: login status %d", ErrAuthFailed, resp.StatusCode)
	}

	code, err := c.authorize(ctx, cookies)
	if err != nil {
		return "", err
	}
	return c.exchangeCode(ctx, cookies, code)
}

// authorize requests the OAuth2 authorization endpoint and extracts the code
// from the redirect Location.
func (c *Client) authorize(ctx context.Context, cookies []*http.Cookie) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.creds.ServerURL+"/api/v3/oauth2/auth", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	q := url.Values{}
	q.Set("client_id", c.creds.ClientID)
	q.Set("redirect_uri", c.creds.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", oauthScope)
	req.URL.RawQuery = q.Encode()
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: authorize request: %v", ErrAuthFailed, err)
	}
	drain(resp)
	if resp.StatusCode != http.StatusFound {
		return "", fmt.Errorf("%w: authorize status %d", ErrAuthFailed, resp.StatusCode)
	}
	location := resp.Header.Get("Location")
	code := codeFromLocation(location)
	if code == "" {
		return "", fmt.Errorf("%w: no code in redirect location %q", ErrAuthFailed, location)
	}
	return code, nil
}

func (c *Client) exchangeCode(ctx context.Context, cookies []*http.Cookie, code string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"client_id":     c.creds.ClientID,
		"client_secret": c.creds.ClientSecret,
		"code":          code,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.creds.ServerURL+"/api/v3/oauth2/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token status %d", ErrAuthFailed, resp.StatusCode)
	}
	var tr struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrAuthFailed, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuthFailed)
	}
	return tr.AccessToken, nil
}

// UserDetails fetches the authenticated root account.
func (c *Client) UserDetails(ctx context.Context, accessToken string) (*UserDetails, error) {
	var ud UserDetails
	if _, err := c.getJSON(ctx, accessToken, "/api/v3/user", &ud); err != nil {
		return nil, fmt.Errorf("get user details: %w", err)
	}
	return &ud, nil
}

// Descendants fetches the sub-account snapshot for the given account. The
// raw response body is returned alongside the decoded form so the caller can
// audit-log it verbatim.
func (c *Client) Descendants(ctx context.Context, accessToken string, accountID int64) (*DescendantsResponse, []byte, error) {
	var dr DescendantsResponse
	raw, err := c.getJSON(ctx, accessToken, fmt.Sprintf("/api/v4/accounts/%d/descendants", accountID), &dr)
	if err != nil {
		return nil, nil, fmt.Errorf("get descendants: %w", err)
	}
	return &dr, raw, nil
}

func (c *Client) getJSON(ctx context.Context, accessToken, path string, out any) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.creds.ServerURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return raw, nil
}

// codeFromLocation extracts the authorization code from a redirect URL,
// tolerating the bare "uri=code" shape some deployments return.
func codeFromLocation(location string) string {
	if location == "" {
		return ""
	}
	if u, err := url.Parse(location); err == nil {
		if code := u.Query().Get("code"); code != "" {
			return code
		}
	}
	if i := strings.LastIndex(location, "="); i >= 0 && i+1 < len(location) {
		return location[i+1:]
	}
	return ""
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
