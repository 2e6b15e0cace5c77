package notion

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rcliao/voiceink-notion/internal/chunker"
	"github.com/rcliao/voiceink-notion/internal/model"
)

const (
	// TitleMaxLen is how much of the transcription is used as the page title.
	TitleMaxLen = 100

	propText      = "Text"
	propTimestamp = "Timestamp"
	propDuration  = "Duration"
	// PropVoiceInkID holds the transcription id used for de-duplication.
	PropVoiceInkID = "VoiceInk ID"

	enhancedHeading = "Enhanced Version"
)

type textContent struct {
	Content string `json:"content"`
}

type richText struct {
	Type string      `json:"type,omitempty"`
	Text textContent `json:"text"`
}

type dateValue struct {
	Start string `json:"start"`
}

type propertyValue struct {
	Title    []richText `json:"title,omitempty"`
	RichText []richText `json:"rich_text,omitempty"`
	Date     *dateValue `json:"date,omitempty"`
	Number   *float64   `json:"number,omitempty"`
}

type blockText struct {
	RichText []richText `json:"rich_text"`
}

type block struct {
	Object    string     `json:"object"`
	Type      string     `json:"type"`
	Paragraph *blockText `json:"paragraph,omitempty"`
	Heading2  *blockText `json:"heading_2,omitempty"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type pageRequest struct {
	Parent     parent                   `json:"parent"`
	Properties map[string]propertyValue `json:"properties"`
	Children   []block                  `json:"children,omitempty"`
}

func plain(s string) []richText {
	return []richText{{Text: textContent{Content: s}}}
}

func typed(s string) []richText {
	return []richText{{Type: "text", Text: textContent{Content: s}}}
}

// Upload creates a page for t. If Notion rejects the full property set, it
// retries once with only the title and body so databases missing optional
// columns still receive the transcription.
func (c *Client) Upload(ctx context.Context, t model.Transcription) error {
	_, err := c.do(ctx, http.MethodPost, "/pages", c.pageRequest(t, true))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.logger.Debug("Full page create failed, retrying with minimal properties", "id", t.ID, "error", err)

	if _, minErr := c.do(ctx, http.MethodPost, "/pages", c.pageRequest(t, false)); minErr != nil {
		return fmt.Errorf("create page for %s: %w", t.ID, minErr)
	}
	return nil
}

func (c *Client) pageRequest(t model.Transcription, full bool) pageRequest {
	props := map[string]propertyValue{
		c.TitleProperty(): {Title: plain(chunker.Title(t.Text, TitleMaxLen))},
	}

	if full {
		duration := math.Round(t.Duration*100) / 100
		props[propText] = propertyValue{RichText: plain(chunker.Truncate(t.Text, chunker.DefaultMaxSize))}
		props[propTimestamp] = propertyValue{Date: &dateValue{Start: t.CreatedAt.Local().Format(time.RFC3339)}}
		props[propDuration] = propertyValue{Number: &duration}
		if t.ID != "" {
			props[PropVoiceInkID] = propertyValue{RichText: plain(t.ID)}
		}
	}

	return pageRequest{
		Parent:     parent{DatabaseID: c.databaseID},
		Properties: props,
		Children:   pageBlocks(t),
	}
}

// pageBlocks renders the transcription body, followed by the enhanced text
// under its own heading, within Notion's per-request child limit.
func pageBlocks(t model.Transcription) []block {
	opts := chunker.DefaultOptions()

	var blocks []block
	for _, chunk := range chunker.Chunk(t.Text, opts) {
		blocks = append(blocks, paragraph(chunk))
	}

	if t.EnhancedText != "" {
		blocks = append(blocks, block{
			Object:   "block",
			Type:     "heading_2",
			Heading2: &blockText{RichText: typed(enhancedHeading)},
		})
		for _, chunk := range chunker.Chunk(t.EnhancedText, opts) {
			blocks = append(blocks, paragraph(chunk))
		}
	}

	if len(blocks) > opts.MaxChunks {
		blocks = blocks[:opts.MaxChunks]
	}
	return blocks
}

func paragraph(s string) block {
	return block{
		Object:    "block",
		Type:      "paragraph",
		Paragraph: &blockText{RichText: typed(s)},
	}
}
