package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// DefaultGraphBaseURL is the Microsoft Graph endpoint.
const DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// MSGraphClient fetches transitive group memberships from Microsoft
// Graph using the caller-presented access token.
type MSGraphClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewMSGraphClient creates a Graph client with sane timeouts.
func NewMSGraphClient() *MSGraphClient {
	return &MSGraphClient{
		BaseURL: DefaultGraphBaseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type graphGroupsResponse struct {
	Value []struct {
		DisplayName string `json:"displayName"`
	} `json:"value"`
}

// UserGroups returns the display names of the user's transitive group
// memberships.
func (g *MSGraphClient) UserGroups(ctx context.Context, accessToken, objectID string) ([]string, error) {
	url := fmt.Sprintf(
		"%s/users/%s/transitiveMemberOf/microsoft.graph.group?$select=displayName",
		g.BaseURL, objectID,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build Graph request")
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "Graph request failed")
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Graph request returned status %d", resp.StatusCode)
	}

	var parsed graphGroupsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode Graph response")
	}

	names := make([]string, 0, len(parsed.Value))
	for _, group := range parsed.Value {
		if group.DisplayName != "" {
			names = append(names, group.DisplayName)
		}
	}

	return names, nil
}
