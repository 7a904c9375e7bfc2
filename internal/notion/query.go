package notion

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

type queryResponse struct {
	Results []interface{} `json:"results"`
	HasMore bool          `json:"has_more"`
}

type page struct {
	ID string `mapstructure:"id"`
}

// FindByKey looks up an existing candidate record by the normalized
// (name, email) natural key. It returns the page ID of the first match, or
// empty when no record exists. Either half of the key may be empty; the
// filter then matches on the other half alone.
func (c *Client) FindByKey(ctx context.Context, name, email string) (string, error) {
	var filters []map[string]interface{}

	if name = strings.TrimSpace(name); name != "" {
		filters = append(filters, map[string]interface{}{
			"property": "Name",
			"title":    map[string]interface{}{"equals": name},
		})
	}

	if email = strings.TrimSpace(email); email != "" {
		filters = append(filters, map[string]interface{}{
			"property": "Email",
			"email":    map[string]interface{}{"equals": email},
		})
	}

	if len(filters) == 0 {
		return "", fmt.Errorf("natural key is empty")
	}

	payload := map[string]interface{}{
		"filter":    map[string]interface{}{"and": filters},
		"page_size": 1,
	}

	var response queryResponse
	url := fmt.Sprintf("%s/v1/databases/%s/query", c.APIURL, c.databaseID)
	if err := c.postJSON(ctx, url, payload, &response); err != nil {
		return "", fmt.Errorf("querying candidate database: %w", err)
	}

	if len(response.Results) == 0 {
		return "", nil
	}

	var match page
	if err := mapstructure.Decode(response.Results[0], &match); err != nil {
		return "", fmt.Errorf("decoding query result: %w", err)
	}

	c.logger.Debug("found existing candidate record",
		zap.String("page_id", match.ID),
		zap.String("name", name),
	)

	return match.ID, nil
}
