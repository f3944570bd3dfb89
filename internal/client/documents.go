// ABOUTME: Document endpoints including multipart upload and the approval workflow
// ABOUTME: Wraps /api/documents

package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
)

// Upload describes a file to upload.
type Upload struct {
	Filename     string
	Content      io.Reader
	Title        string
	CollectionID string
}

// ListDocuments returns documents matching the filter.
func (c *Client) ListDocuments(ctx context.Context, f DocumentFilter) ([]Document, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.CollectionID != "" {
		q.Set("collection_id", f.CollectionID)
	}
	var docs []Document
	if err := c.do(ctx, http.MethodGet, "/api/documents", q, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// PendingDocuments returns documents awaiting approval.
func (c *Client) PendingDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := c.do(ctx, http.MethodGet, "/api/documents/pending", nil, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetDocument returns one document.
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	var d Document
	if err := c.do(ctx, http.MethodGet, "/api/documents/"+pathEscape(id), nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// UploadDocument sends a file as multipart/form-data. The body is streamed through a pipe.
func (c *Client) UploadDocument(ctx context.Context, up Upload) (*Document, error) {
	if up.Content == nil {
		return nil, fmt.Errorf("upload has no content")
	}
	name := filepath.Base(strings.TrimSpace(up.Filename))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("upload needs a filename")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeUpload(mw, name, up)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var d Document
	err := c.doRaw(ctx, http.MethodPost, "/api/documents/upload", nil, pr, mw.FormDataContentType(), &d)
	// Unblock the writer if the request ended before reading the whole body
	_ = pr.Close()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func writeUpload(mw *multipart.Writer, name string, up Upload) error {
	if up.Title != "" {
		if err := mw.WriteField("title", up.Title); err != nil {
			return err
		}
	}
	if up.CollectionID != "" {
		if err := mw.WriteField("collection_id", up.CollectionID); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, up.Content)
	return err
}

// UpdateDocument applies a partial update.
func (c *Client) UpdateDocument(ctx context.Context, id string, upd DocumentUpdate) (*Document, error) {
	var d Document
	if err := c.do(ctx, http.MethodPut, "/api/documents/"+pathEscape(id), nil, upd, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/documents/"+pathEscape(id), nil, nil, nil)
}

// ApproveDocument marks a pending document approved.
func (c *Client) ApproveDocument(ctx context.Context, id string) (*Document, error) {
	var d Document
	if err := c.do(ctx, http.MethodPost, "/api/documents/"+pathEscape(id)+"/approve", nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// RejectDocument marks a pending document rejected with a reason.
func (c *Client) RejectDocument(ctx context.Context, id, reason string) (*Document, error) {
	var d Document
	body := map[string]string{"reason": reason}
	if err := c.do(ctx, http.MethodPost, "/api/documents/"+pathEscape(id)+"/reject", nil, body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
