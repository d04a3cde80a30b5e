package trackimo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds(serverURL string) Credentials {
	return Credentials{
		Username:     "svc@petpath.pt",
		Password:     "pw",
		ServerURL:    serverURL,
		ClientID:     "cid",
		ClientSecret: "csecret",
		RedirectURI:  "https://petpath.pt/cb",
	}
}

// fakeTrackimo implements the three handshake endpoints plus the data calls.
func fakeTrackimo(t *testing.T, loginStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/internal/v2/user/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["whitelabel"] == "" {
			t.Errorf("login request missing whitelabel")
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc123"})
		w.WriteHeader(loginStatus)
	})
	mux.HandleFunc("/api/v3/oauth2/auth", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("JSESSIONID"); err != nil || c.Value != "abc123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Location", r.URL.Query().Get("redirect_uri")+"?code=the-code")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/api/v3/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["code"] != "the-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	})
	mux.HandleFunc("/api/v3/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"account_id": 99, "email": "root@petpath.pt"})
	})
	mux.HandleFunc("/api/v4/accounts/99/descendants", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"descendants": []map[string]any{
			{"name": "Ana NIF123456789", "account_id": 101, "email": "ana@x.pt", "devices": []map[string]any{{"device_id": 7}}},
		}})
	})
	return httptest.NewServer(mux)
}

func TestLoginHandshake(t *testing.T) {
	srv := fakeTrackimo(t, http.StatusOK)
	defer srv.Close()

	c := NewClient(testCreds(srv.URL))
	tok, err := c.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
}

func TestLoginFailureIsAuthError(t *testing.T) {
	srv := fakeTrackimo(t, http.StatusUnauthorized)
	defer srv.Close()

	c := NewClient(testCreds(srv.URL))
	_, err := c.Login(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailed), "want ErrAuthFailed, got %v", err)
}

func TestUserDetailsAndDescendants(t *testing.T) {
	srv := fakeTrackimo(t, http.StatusOK)
	defer srv.Close()

	c := NewClient(testCreds(srv.URL))
	ctx := context.Background()
	tok, err := c.Login(ctx)
	require.NoError(t, err)

	ud, err := c.UserDetails(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, int64(99), ud.AccountID)

	dr, raw, err := c.Descendants(ctx, tok, ud.AccountID)
	require.NoError(t, err)
	require.Len(t, dr.Descendants, 1)
	assert.Equal(t, "Ana NIF123456789", dr.Descendants[0].Name)
	assert.Equal(t, int64(101), dr.Descendants[0].AccountID)
	assert.Contains(t, string(raw), "descendants")
}

func TestCredentialsValidate(t *testing.T) {
	c := testCreds("https://app.trackimo.example")
	require.NoError(t, c.Validate())

	c.ClientSecret = ""
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRACKIMO_CLIENT_SECRET")
}

func TestCodeFromLocation(t *testing.T) {
	assert.Equal(t, "xyz", codeFromLocation("https://petpath.pt/cb?code=xyz"))
	assert.Equal(t, "xyz", codeFromLocation("https://petpath.pt/cb#code=xyz"))
	assert.Equal(t, "", codeFromLocation(""))
	assert.Equal(t, "", codeFromLocation("https://petpath.pt/cb"))
}
