// Package docusign provides a minimal DocuSign eSignature client using the
// JWT grant flow: an RS256 assertion is exchanged for a cached access token,
// and envelopes are created from a server-side template.
package docusign

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

// Client defines the DocuSign operations used by the intake API.
type Client interface {
	// CreateEnvelope sends the configured template to one recipient and
	// returns the envelope id.
	CreateEnvelope(ctx context.Context, recipientName, recipientEmail string) (string, error)
}

// Config holds JWT grant credentials and the template to send.
type Config struct {
	BaseURL        string // e.g. https://demo.docusign.net/restapi
	OAuthBaseURL   string // e.g. https://account-d.docusign.com
	IntegrationKey string
	UserID         string
	AccountID      string
	PrivateKeyPath string // PEM-encoded RSA private key
	TemplateID     string
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	cfg        Config
	privateKey *rsa.PrivateKey
	http       *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a DocuSign client, loading and parsing the RSA private
// key up front so credential problems surface at startup.
func NewClient(cfg Config, opts ...Option) (Client, error) {
	pem, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "docusign: read private key")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, eris.Wrap(err, "docusign: parse private key")
	}

	c := &httpClient{
		cfg:        cfg,
		privateKey: key,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// accessToken returns a cached token, exchanging a fresh JWT assertion when
// the cache is empty or within a minute of expiry.
func (c *httpClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.token, nil
	}

	oauthURL, err := url.Parse(c.cfg.OAuthBaseURL)
	if err != nil {
		return "", eris.Wrap(err, "docusign: parse oauth base url")
	}

	now := time.Now()
	assertion := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   c.cfg.IntegrationKey,
		"sub":   c.cfg.UserID,
		"aud":   oauthURL.Host,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"scope": "signature impersonation",
	})
	signed, err := assertion.SignedString(c.privateKey)
	if err != nil {
		return "", eris.Wrap(err, "docusign: sign assertion")
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {signed},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.OAuthBaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "docusign: build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "docusign: token exchange")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", eris.Errorf("docusign: token exchange returned %d: %s", resp.StatusCode, body)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", eris.Wrap(err, "docusign: decode token response")
	}
	if tok.AccessToken == "" {
		return "", eris.New("docusign: empty access token")
	}

	c.token = tok.AccessToken
	c.tokenExpiry = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

// envelopeRequest is the template-role envelope creation body.
type envelopeRequest struct {
	TemplateID    string         `json:"templateId"`
	TemplateRoles []templateRole `json:"templateRoles"`
	Status        string         `json:"status"`
}

type templateRole struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	RoleName string `json:"roleName"`
}

// CreateEnvelope sends the configured template to the recipient and returns
// the new envelope's id.
func (c *httpClient) CreateEnvelope(ctx context.Context, recipientName, recipientEmail string) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(envelopeRequest{
		TemplateID: c.cfg.TemplateID,
		TemplateRoles: []templateRole{
			{Email: recipientEmail, Name: recipientName, RoleName: "signer"},
		},
		Status: "sent",
	})
	if err != nil {
		return "", eris.Wrap(err, "docusign: marshal envelope request")
	}

	endpoint := fmt.Sprintf("%s/v2.1/accounts/%s/envelopes", c.cfg.BaseURL, c.cfg.AccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "docusign: build envelope request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "docusign: create envelope")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", eris.Errorf("docusign: create envelope returned %d: %s", resp.StatusCode, respBody)
	}

	var created struct {
		EnvelopeID string `json:"envelopeId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", eris.Wrap(err, "docusign: decode envelope response")
	}
	if created.EnvelopeID == "" {
		return "", eris.New("docusign: response missing envelopeId")
	}
	return created.EnvelopeID, nil
}
