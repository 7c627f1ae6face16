// services/membership_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// MembershipLookup resolves a user's current membership tier.
type MembershipLookup interface {
	GetTier(ctx context.Context, userID string) (MembershipTier, error)
}

// MembershipLookupFunc adapts a plain function to MembershipLookup.
type MembershipLookupFunc func(ctx context.Context, userID string) (MembershipTier, error)

func (f MembershipLookupFunc) GetTier(ctx context.Context, userID string) (MembershipTier, error) {
	return f(ctx, userID)
}

// MembershipClient reads tiers from the membership service over HTTP.
type MembershipClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type membershipResponse struct {
	UserID      string `json:"user_id"`
	CurrentTier string `json:"current_tier"`
}

func NewMembershipClient(baseURL, token string) *MembershipClient {
	return &MembershipClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetTier calls GET /api/v1/internal/memberships/{userID}. A 404 or an empty
// tier means the user has no membership and maps to DefaultTier. Unknown tier
// names are passed through unchanged.
func (c *MembershipClient) GetTier(ctx context.Context, userID string) (MembershipTier, error) {
	endpoint := fmt.Sprintf("%s/api/v1/internal/memberships/%s", c.BaseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return DefaultTier, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return DefaultTier, fmt.Errorf("membership lookup for %s: %w", userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return DefaultTier, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("MembershipService returned %d for %s: %s", resp.StatusCode, userID, string(body))
		return DefaultTier, fmt.Errorf("membership lookup failed: %d", resp.StatusCode)
	}

	var out membershipResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return DefaultTier, fmt.Errorf("decode membership response: %w", err)
	}
	return ParseMembershipTier(out.CurrentTier), nil
}
