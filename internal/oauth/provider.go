// Package oauth talks to the supported OAuth providers. Providers are a
// closed set: adding one means extending the enum and its tables, and the
// compiler finds every switch that needs a new arm.
package oauth

import (
	"fmt"

	"golang.org/x/oauth2"
)

// Provider is the closed set of supported OAuth providers.
type Provider int

const (
	Google Provider = iota
	GitHub
	Twitter
)

var providerNames = map[Provider]string{
	Google:  "google",
	GitHub:  "github",
	Twitter: "twitter",
}

func (p Provider) String() string { return providerNames[p] }

// Providers lists every supported provider, for iteration and validation.
func Providers() []Provider { return []Provider{Google, GitHub, Twitter} }

// ParseProvider maps a wire name onto the enum.
func ParseProvider(name string) (Provider, error) {
	for p, n := range providerNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown provider %q", name)
}

// endpoints holds the per-provider protocol addresses. Overridable in tests.
type endpoints struct {
	oauth2.Endpoint
	UserInfoURL string
	Scopes      []string
}

func defaultEndpoints() map[Provider]endpoints {
	return map[Provider]endpoints{
		Google: {
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
			Scopes:      []string{"openid", "profile"},
		},
		GitHub: {
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://github.com/login/oauth/authorize",
				TokenURL: "https://github.com/login/oauth/access_token",
			},
			UserInfoURL: "https://api.github.com/user",
			Scopes:      []string{"read:user"},
		},
		Twitter: {
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://twitter.com/i/oauth2/authorize",
				TokenURL: "https://api.twitter.com/2/oauth2/token",
			},
			UserInfoURL: "https://api.twitter.com/2/users/me",
			Scopes:      []string{"users.read", "tweet.read"},
		},
	}
}

// Credentials are the app's registration with one provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
}
