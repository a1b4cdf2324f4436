package netlife

import (
	"context"
	"encoding/json"
)

// pageEnvelope matches the page shapes portals emit: a {data:[...]} or
// {results:[...]} envelope with an optional continuation link in meta.next
// or next.
type pageEnvelope struct {
	Data    []json.RawMessage `json:"data"`
	Results []json.RawMessage `json:"results"`
	Next    string            `json:"next"`
	Meta    struct {
		Next string `json:"next"`
	} `json:"meta"`
}

// pageRows flattens one page into its rows. A bare JSON array is a page of
// rows; unknown shapes count as empty.
func pageRows(page json.RawMessage) []json.RawMessage {
	var bare []json.RawMessage
	if err := json.Unmarshal(page, &bare); err == nil {
		return bare
	}

	var env pageEnvelope
	if err := json.Unmarshal(page, &env); err != nil {
		return nil
	}
	if env.Data != nil {
		return env.Data
	}
	return env.Results
}

// nextLink returns the continuation URL of a page, or "" when pagination is
// done. meta.next wins over a top-level next.
func nextLink(page json.RawMessage) string {
	var env pageEnvelope
	if err := json.Unmarshal(page, &env); err != nil {
		return ""
	}
	if env.Meta.Next != "" {
		return env.Meta.Next
	}
	return env.Next
}

// Paginate follows the continuation links of a first page and flattens all
// pages into a single row sequence, preserving server page order. A page
// returning a non-success status stops pagination silently and the rows
// accumulated so far are returned; this is a best-effort enumeration, not a
// transactional read.
func (c *Client) Paginate(ctx context.Context, first json.RawMessage) []json.RawMessage {
	rows := pageRows(first)
	next := nextLink(first)

	for next != "" {
		page, status, err := c.GetURL(ctx, next)
		if err != nil || status != 200 {
			break
		}
		rows = append(rows, pageRows(page)...)
		next = nextLink(page)
	}
	return rows
}
