package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPResolver asks the identity service who the token belongs to.
type HTTPResolver struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/me", nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: identity lookup: %v", ErrInvalidToken, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: identity service returned %d", ErrInvalidToken, resp.StatusCode)
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("%w: decode identity: %v", ErrInvalidToken, err)
	}
	if u.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: identity service returned no user id", ErrInvalidToken)
	}
	return &u, nil
}
