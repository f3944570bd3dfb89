// ABOUTME: RAG collection endpoints and collection membership
// ABOUTME: Wraps /api/collections

package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ListCollections returns all visible collections.
func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	var out []Collection
	if err := c.do(ctx, http.MethodGet, "/api/collections", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCollection creates a collection.
func (c *Client) CreateCollection(ctx context.Context, in CollectionInput) (*Collection, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	var col Collection
	if err := c.do(ctx, http.MethodPost, "/api/collections", nil, in, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// GetCollection returns one collection.
func (c *Client) GetCollection(ctx context.Context, id string) (*Collection, error) {
	var col Collection
	if err := c.do(ctx, http.MethodGet, "/api/collections/"+pathEscape(id), nil, nil, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// UpdateCollection replaces a collection's fields.
func (c *Client) UpdateCollection(ctx context.Context, id string, in CollectionInput) (*Collection, error) {
	var col Collection
	if err := c.do(ctx, http.MethodPut, "/api/collections/"+pathEscape(id), nil, in, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// DeleteCollection removes a collection.
func (c *Client) DeleteCollection(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/collections/"+pathEscape(id), nil, nil, nil)
}

// CollectionDocuments lists the documents in a collection.
func (c *Client) CollectionDocuments(ctx context.Context, id string) ([]Document, error) {
	var docs []Document
	if err := c.do(ctx, http.MethodGet, "/api/collections/"+pathEscape(id)+"/documents", nil, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// AddCollectionDocument adds a document to a collection.
func (c *Client) AddCollectionDocument(ctx context.Context, id, docID string) error {
	body := map[string]string{"document_id": docID}
	return c.do(ctx, http.MethodPost, "/api/collections/"+pathEscape(id)+"/documents", nil, body, nil)
}

// RemoveCollectionDocument removes a document from a collection.
func (c *Client) RemoveCollectionDocument(ctx context.Context, id, docID string) error {
	return c.do(ctx, http.MethodDelete, "/api/collections/"+pathEscape(id)+"/documents/"+pathEscape(docID), nil, nil, nil)
}
