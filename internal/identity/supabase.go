package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/google/uuid"
)

type SupabaseProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type supabaseUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	AppMetadata struct {
		Provider string `json:"provider"`
	} `json:"app_metadata"`
}

type supabaseSession struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int           `json:"expires_in"`
	User         *supabaseUser `json:"user"`

	// sign-up without a session answers with the bare user
	supabaseUser
}

func NewSupabaseProvider(baseURL, apiKey string) *SupabaseProvider {
	return &SupabaseProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (p *SupabaseProvider) SignUp(ctx context.Context, creds Credentials, captchaToken string) (*Session, error) {
	const op = "identity.SignUp"

	if strings.TrimSpace(captchaToken) == "" {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrCaptchaRequired)
	}

	payload := map[string]any{
		"email":    creds.Email,
		"password": creds.Password,
		"gotrue_meta_security": map[string]string{
			"captcha_token": captchaToken,
		},
	}

	var out supabaseSession
	if err := p.post(ctx, "/auth/v1/signup", "", payload, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out.session()
}

func (p *SupabaseProvider) SignIn(ctx context.Context, creds Credentials) (*Session, error) {
	const op = "identity.SignIn"

	payload := map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}

	var out supabaseSession
	if err := p.post(ctx, "/auth/v1/token?grant_type=password", "", payload, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%s: empty access token: %w", op, errs.ErrUpstream)
	}
	return out.session()
}

func (p *SupabaseProvider) SignOut(ctx context.Context, accessToken string) error {
	if err := p.post(ctx, "/auth/v1/logout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("identity.SignOut: %w", err)
	}
	return nil
}

func (p *SupabaseProvider) User(ctx context.Context, accessToken string) (*User, error) {
	const op = "identity.User"

	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrUnauthenticated)
	}

	var u supabaseUser
	if err := p.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &u); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := u.user()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// AuthorizeURL builds the address a browser is sent to for a federated sign-in.
func (p *SupabaseProvider) AuthorizeURL(provider, redirectTo string) (string, error) {
	if p.baseURL == "" {
		return "", fmt.Errorf("identity.AuthorizeURL: identity url is not configured")
	}
	if provider != ProviderGoogle {
		return "", fmt.Errorf("identity.AuthorizeURL: unsupported provider %q: %w", provider, errs.ErrInvalidInput)
	}

	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return p.baseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

func (p *SupabaseProvider) post(ctx context.Context, path, token string, payload, out any) error {
	return p.do(ctx, http.MethodPost, path, token, payload, out)
}

func (p *SupabaseProvider) do(ctx context.Context, method, path, token string, payload, out any) error {
	if p.baseURL == "" {
		return fmt.Errorf("identity url is not configured")
	}
	if p.apiKey == "" {
		return fmt.Errorf("identity api key is not configured")
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", statusError(resp.StatusCode), resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errs.ErrUnauthenticated
	case code == http.StatusBadRequest:
		// the token endpoint answers 400 for wrong credentials
		return errs.ErrUnauthenticated
	case code == http.StatusUnprocessableEntity:
		return errs.ErrInvalidInput
	case code == http.StatusTooManyRequests || code >= 500:
		return errs.ErrUpstream
	default:
		return errs.ErrInvalidInput
	}
}

func (s supabaseSession) session() (*Session, error) {
	u := s.User
	if u == nil {
		u = &s.supabaseUser
	}
	user, err := u.user()
	if err != nil {
		return nil, err
	}

	return &Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    s.ExpiresIn,
		User:         user,
	}, nil
}

func (u supabaseUser) user() (User, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return User{}, fmt.Errorf("invalid user id %q: %w", u.ID, errs.ErrUpstream)
	}

	provider := u.AppMetadata.Provider
	if provider == "" {
		provider = ProviderEmail
	}
	return User{ID: id, Email: u.Email, Provider: provider}, nil
}
