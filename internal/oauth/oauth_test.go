package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestParseProvider(t *testing.T) {
	for _, p := range Providers() {
		got, err := ParseProvider(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseProvider("facebook")
	assert.Error(t, err)
	_, err = ParseProvider("")
	assert.Error(t, err)
}

func TestParseAccountShapes(t *testing.T) {
	tests := []struct {
		name string
		p    Provider
		body string
		want Account
	}{
		{
			name: "google",
			p:    Google,
			body: `{"sub":"108234","name":"Alice","picture":"https://g/a.png"}`,
			want: Account{ID: "108234", DisplayName: "Alice", Avatar: "https://g/a.png"},
		},
		{
			name: "github",
			p:    GitHub,
			body: `{"id":42,"name":"Alice","login":"alice","avatar_url":"https://gh/a.png"}`,
			want: Account{ID: "42", DisplayName: "Alice", Avatar: "https://gh/a.png"},
		},
		{
			name: "github falls back to login",
			p:    GitHub,
			body: `{"id":42,"login":"alice"}`,
			want: Account{ID: "42", DisplayName: "alice"},
		},
		{
			name: "twitter",
			p:    Twitter,
			body: `{"data":{"id":"7731","name":"Alice","profile_image_url":"https://t/a.png"}}`,
			want: Account{ID: "7731", DisplayName: "Alice", Avatar: "https://t/a.png"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAccount(tt.p, []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAccountMalformed(t *testing.T) {
	tests := []struct {
		name string
		p    Provider
		body string
	}{
		{"google missing sub", Google, `{"name":"Alice"}`},
		{"github missing id", GitHub, `{"login":"alice"}`},
		{"twitter missing id", Twitter, `{"data":{"name":"Alice"}}`},
		{"not json", Google, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAccount(tt.p, []byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestAuthCodeURLCarriesState(t *testing.T) {
	c := NewClient(map[Provider]Credentials{
		GitHub: {ClientID: "cid", ClientSecret: "secret"},
	}, "https://vault.test/auth/link-provider/callback")

	u := c.AuthCodeURL(GitHub, "B1.nonce")
	assert.Contains(t, u, "github.com/login/oauth/authorize")
	assert.Contains(t, u, "state=B1.nonce")
	assert.Contains(t, u, "client_id=cid")
}

func TestExchangeAgainstFakeProvider(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "code123", r.FormValue("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-abc","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":42,"login":"alice","avatar_url":"https://gh/a.png"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(map[Provider]Credentials{
		GitHub: {ClientID: "cid", ClientSecret: "secret"},
	}, "https://vault.test/callback")
	c.SetEndpoints(GitHub, oauth2.Endpoint{
		AuthURL:  srv.URL + "/authorize",
		TokenURL: srv.URL + "/token",
	}, srv.URL+"/user")

	acct, err := c.Exchange(context.Background(), GitHub, "code123")
	require.NoError(t, err)
	assert.Equal(t, Account{ID: "42", DisplayName: "alice", Avatar: "https://gh/a.png"}, acct)
}

func TestExchangeUserinfoFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-abc","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(map[Provider]Credentials{GitHub: {}}, "https://vault.test/callback")
	c.SetEndpoints(GitHub, oauth2.Endpoint{
		AuthURL:  srv.URL + "/authorize",
		TokenURL: srv.URL + "/token",
	}, srv.URL+"/user")

	_, err := c.Exchange(context.Background(), GitHub, "code123")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "userinfo"))
}
