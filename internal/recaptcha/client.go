package recaptcha

import (
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

const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

var (
	ErrMissingSecret = errors.New("recaptcha secret not configured")
	ErrMissingToken  = errors.New("recaptcha token missing")
)

// Verifier decide si un token de reCAPTCHA corresponde a un humano.
type Verifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// HTTPClient verifica tokens contra el endpoint siteverify.
type HTTPClient struct {
	verifyURL string
	secret    string
	minScore  float64
	client    *http.Client
}

func NewHTTPClient(verifyURL, secret string, minScore float64) *HTTPClient {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if minScore <= 0 {
		minScore = 0.5
	}
	return &HTTPClient{
		verifyURL: verifyURL,
		secret:    strings.TrimSpace(secret),
		minScore:  minScore,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify devuelve false si el proveedor rechaza el token o el score es bajo.
// Un error indica falla de configuracion o del proveedor.
func (c *HTTPClient) Verify(ctx context.Context, token string) (bool, error) {
	if c.secret == "" {
		return false, ErrMissingSecret
	}
	if strings.TrimSpace(token) == "" {
		return false, ErrMissingToken
	}

	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("siteverify status %d", resp.StatusCode)
	}

	var parsed verifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return parsed.Success && parsed.Score >= c.minScore, nil
}
