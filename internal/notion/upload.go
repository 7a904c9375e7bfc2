package notion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

type fileUploadResponse struct {
	ID string `json:"id"`
}

// UploadFile pushes a local CV file into Notion's file storage and returns
// the upload ID to reference from a page's CV File property. The upload is a
// two-step exchange: register the upload, then send the bytes.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	payload := map[string]interface{}{
		"filename":     filepath.Base(path),
		"content_type": contentTypeFor(path),
	}

	var created fileUploadResponse
	if err := c.postJSON(ctx, c.APIURL+"/v1/file_uploads", payload, &created); err != nil {
		return "", fmt.Errorf("registering file upload: %w", err)
	}

	if err := c.sendFile(ctx, created.ID, path); err != nil {
		return "", fmt.Errorf("sending file content: %w", err)
	}

	c.logger.Debug("uploaded cv file",
		zap.String("file", filepath.Base(path)),
		zap.String("upload_id", created.ID),
		zap.Int64("size", info.Size()),
	)

	return created.ID, nil
}

func (c *Client) sendFile(ctx context.Context, uploadID, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}

	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	w.Close()

	url := fmt.Sprintf("%s/v1/file_uploads/%s/send", c.APIURL, uploadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &b)
	if err != nil {
		return err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(req, nil)
}

// contentTypeFor matches the extractor's case-insensitive extension
// dispatch, so an uppercase "resume.PDF" still registers as a PDF.
func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
