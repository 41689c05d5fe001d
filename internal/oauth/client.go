package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
)

// Account is what the linking flow needs from a provider: a stable account
// ID, plus profile fields used only for opportunistic backfill.
type Account struct {
	ID          string
	DisplayName string
	Avatar      string
}

// Client exchanges authorization codes for provider account IDs. The
// provider is a "find my account ID" oracle here, never an identity source.
type Client struct {
	configs   map[Provider]*oauth2.Config
	userInfo  map[Provider]string
	transport *http.Client
}

// NewClient builds a Client from per-provider credentials. redirectURL is the
// public callback URL registered with every provider.
func NewClient(creds map[Provider]Credentials, redirectURL string) *Client {
	eps := defaultEndpoints()
	c := &Client{
		configs:   make(map[Provider]*oauth2.Config),
		userInfo:  make(map[Provider]string),
		transport: http.DefaultClient,
	}
	for p, ep := range eps {
		cred := creds[p]
		c.configs[p] = &oauth2.Config{
			ClientID:     cred.ClientID,
			ClientSecret: cred.ClientSecret,
			Endpoint:     ep.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       ep.Scopes,
		}
		c.userInfo[p] = ep.UserInfoURL
	}
	return c
}

// SetEndpoints points one provider at alternate protocol addresses. Tests
// use it to aim at an httptest server.
func (c *Client) SetEndpoints(p Provider, ep oauth2.Endpoint, userInfoURL string) {
	c.configs[p].Endpoint = ep
	c.userInfo[p] = userInfoURL
}

// AuthCodeURL returns the provider authorize URL embedding the CSRF state.
func (c *Client) AuthCodeURL(p Provider, state string) string {
	return c.configs[p].AuthCodeURL(state)
}

// Exchange swaps an authorization code for the provider account. The access
// token is used once, for the userinfo call, and discarded.
func (c *Client) Exchange(ctx context.Context, p Provider, code string) (Account, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.transport)
	tok, err := c.configs[p].Exchange(ctx, code)
	if err != nil {
		return Account{}, fmt.Errorf("%s code exchange: %w", p, err)
	}
	return c.fetchAccount(ctx, p, tok)
}

func (c *Client) fetchAccount(ctx context.Context, p Provider, tok *oauth2.Token) (Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfo[p], nil)
	if err != nil {
		return Account{}, err
	}
	tok.SetAuthHeader(req)
	resp, err := c.transport.Do(req)
	if err != nil {
		return Account{}, fmt.Errorf("%s userinfo: %w", p, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Account{}, fmt.Errorf("%s userinfo: status %d", p, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Account{}, err
	}
	return parseAccount(p, body)
}

// parseAccount decodes each provider's userinfo shape into the common form.
func parseAccount(p Provider, body []byte) (Account, error) {
	switch p {
	case Google:
		var v struct {
			Sub     string `json:"sub"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}
		if err := json.Unmarshal(body, &v); err != nil || v.Sub == "" {
			return Account{}, fmt.Errorf("google userinfo: malformed response")
		}
		return Account{ID: v.Sub, DisplayName: v.Name, Avatar: v.Picture}, nil
	case GitHub:
		var v struct {
			ID        int64  `json:"id"`
			Name      string `json:"name"`
			Login     string `json:"login"`
			AvatarURL string `json:"avatar_url"`
		}
		if err := json.Unmarshal(body, &v); err != nil || v.ID == 0 {
			return Account{}, fmt.Errorf("github userinfo: malformed response")
		}
		name := v.Name
		if name == "" {
			name = v.Login
		}
		return Account{ID: strconv.FormatInt(v.ID, 10), DisplayName: name, Avatar: v.AvatarURL}, nil
	case Twitter:
		var v struct {
			Data struct {
				ID              string `json:"id"`
				Name            string `json:"name"`
				ProfileImageURL string `json:"profile_image_url"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &v); err != nil || v.Data.ID == "" {
			return Account{}, fmt.Errorf("twitter userinfo: malformed response")
		}
		return Account{ID: v.Data.ID, DisplayName: v.Data.Name, Avatar: v.Data.ProfileImageURL}, nil
	}
	return Account{}, fmt.Errorf("unknown provider %d", p)
}
