package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// RequiredProperties lists the columns a sync database needs besides its title.
var RequiredProperties = []string{propText, propTimestamp, propDuration, PropVoiceInkID}

var propertyDefinitions = map[string]json.RawMessage{
	propText:       json.RawMessage(`{"rich_text":{}}`),
	propTimestamp:  json.RawMessage(`{"date":{}}`),
	propDuration:   json.RawMessage(`{"number":{"format":"number"}}`),
	PropVoiceInkID: json.RawMessage(`{"rich_text":{}}`),
}

// ConnectionResult describes the database reached by TestConnection.
type ConnectionResult struct {
	DatabaseName string
}

// SchemaResult reports which required properties a database is missing.
type SchemaResult struct {
	Valid         bool
	Missing       []string
	TitleProperty string
}

// TestConnection fetches the database to confirm the key and id are usable.
func (c *Client) TestConnection(ctx context.Context) (*ConnectionResult, error) {
	body, err := c.do(ctx, http.MethodGet, "/databases/"+c.databaseID, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve database: %w", err)
	}
	name := gjson.GetBytes(body, "title.0.plain_text").String()
	if name == "" {
		name = "Untitled"
	}
	return &ConnectionResult{DatabaseName: name}, nil
}

// CheckSchema inspects the database properties. It also records the name of
// the title property, which uploads write to.
func (c *Client) CheckSchema(ctx context.Context) (*SchemaResult, error) {
	body, err := c.do(ctx, http.MethodGet, "/databases/"+c.databaseID, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve database: %w", err)
	}

	props := gjson.GetBytes(body, "properties").Map()
	res := &SchemaResult{TitleProperty: c.TitleProperty()}
	for name, p := range props {
		if p.Get("type").String() == "title" {
			res.TitleProperty = name
			break
		}
	}
	c.setTitleProperty(res.TitleProperty)

	for _, name := range RequiredProperties {
		if _, ok := props[name]; !ok {
			res.Missing = append(res.Missing, name)
		}
	}
	res.Valid = len(res.Missing) == 0
	return res, nil
}

// SetupSchema adds any missing required properties to the database.
func (c *Client) SetupSchema(ctx context.Context) error {
	res, err := c.CheckSchema(ctx)
	if err != nil {
		return err
	}
	if res.Valid {
		return nil
	}

	update := struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}{Properties: make(map[string]json.RawMessage, len(res.Missing))}
	for _, name := range res.Missing {
		update.Properties[name] = propertyDefinitions[name]
	}

	if _, err := c.do(ctx, http.MethodPatch, "/databases/"+c.databaseID, update); err != nil {
		return fmt.Errorf("update database schema: %w", err)
	}
	c.logger.Info("Added missing Notion properties", "properties", res.Missing)
	return nil
}
