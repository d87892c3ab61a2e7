package facebook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/debapps/WebAuthSecurity/internal/auth"
	"github.com/debapps/WebAuthSecurity/internal/logger"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const (
	providerName    = "facebook"
	DefaultGraphURL = "https://graph.facebook.com/v19.0/me"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	GraphURL     string
}

// Provider implements the Facebook OAuth2 login. The profile is read from
// the Graph API since Facebook issues no id_token on this flow.
type Provider struct {
	oauthConfig *oauth2.Config
	graphURL    string
	appSecret   string
}

func New(cfg Config) (*Provider, error) {
	return newWithEndpoint(cfg, facebook.Endpoint)
}

func newWithEndpoint(cfg Config, endpoint oauth2.Endpoint) (*Provider, error) {

	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("facebook oauth config missing required fields")
	}

	graphURL := cfg.GraphURL
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	if _, err := url.Parse(graphURL); err != nil {
		return nil, fmt.Errorf("facebook graph url: %w", err)
	}

	return &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"public_profile"},
		},
		graphURL:  graphURL,
		appSecret: cfg.ClientSecret,
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state string, codeVerifier string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.S256ChallengeOption(codeVerifier),
	)
}

func (p *Provider) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.Profile, error) {

	token, err := p.oauthConfig.Exchange(
		ctx,
		code,
		oauth2.VerifierOption(codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("facebook: %w: %w", auth.ErrTokenExchangeFailed, err)
	}

	me, err := p.fetchProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("facebook: %w: %w", auth.ErrProviderError, err)
	}

	if me.ID == "" {
		return nil, fmt.Errorf("facebook: %w: graph profile has no id", auth.ErrProviderError)
	}

	logger.Debug("facebook profile fetched", map[string]any{
		"name_present": me.Name != "",
	})

	return &auth.Profile{
		Provider: providerName,
		Subject:  me.ID,
		Name:     me.Name,
	}, nil
}

type graphProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p *Provider) fetchProfile(ctx context.Context, token *oauth2.Token) (*graphProfile, error) {
	u, err := url.Parse(p.graphURL)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	q.Set("fields", "id,name")
	q.Set("appsecret_proof", appSecretProof(token.AccessToken, p.appSecret))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.oauthConfig.Client(ctx, token).Do(req)
	if err != nil {
		// *url.Error carries the request URL, appsecret_proof included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("graph response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph returned status %d", resp.StatusCode)
	}

	var me graphProfile
	if err := json.Unmarshal(body, &me); err != nil {
		return nil, fmt.Errorf("graph response: %w", err)
	}

	return &me, nil
}

// appSecretProof is the HMAC-SHA256 of the access token keyed by the app
// secret, as required by apps with "Require App Secret" enabled.
func appSecretProof(accessToken, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}
