package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// PageSize is the number of pages requested per query.
const PageSize = 100

// ErrListTruncated means enumeration stopped before the last page. The ids
// returned alongside it are valid but incomplete.
var ErrListTruncated = errors.New("notion: listing truncated")

type queryRequest struct {
	PageSize    int    `json:"page_size"`
	StartCursor string `json:"start_cursor,omitempty"`
}

// ListExistingIDs pages through the database and collects the VoiceInk ID of
// every page that has one. On a mid-listing failure it returns what it has
// gathered together with an error wrapping ErrListTruncated.
func (c *Client) ListExistingIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	cursor := ""

	for {
		body, err := c.do(ctx, http.MethodPost, "/databases/"+c.databaseID+"/query",
			queryRequest{PageSize: PageSize, StartCursor: cursor})
		if err != nil {
			return ids, fmt.Errorf("%w after %d ids: %w", ErrListTruncated, len(ids), err)
		}

		for _, page := range gjson.GetBytes(body, "results").Array() {
			prop, ok := page.Get("properties").Map()[PropVoiceInkID]
			if !ok {
				continue
			}
			id := prop.Get("rich_text.0.plain_text").String()
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}

		next := gjson.GetBytes(body, "next_cursor").String()
		if !gjson.GetBytes(body, "has_more").Bool() || next == "" {
			break
		}
		cursor = next
	}

	c.logger.Debug("Listed existing Notion pages", "ids", len(ids))
	return ids, nil
}
