package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"docai-gateway/api/internal/ingest"
	"docai-gateway/api/internal/util"
)

// Downloader pulls files from Telegram storage into ingestible form.
type Downloader struct {
	client   *http.Client
	maxBytes int64
}

func NewDownloader(client *http.Client, maxBytes int64) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = ingest.DefaultMaxBytes
	}
	return &Downloader{client: client, maxBytes: maxBytes}
}

// Fetch resolves fileID and downloads it. At most one byte over the limit is
// read so that the ingestor can reject oversize files.
func (d *Downloader) Fetch(ctx context.Context, bot Bot, fileID, name, contentType string) (*ingest.File, error) {
	link, err := bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	if name == "" {
		if u, err := url.Parse(link); err == nil {
			name = path.Base(u.Path)
		}
	}
	if contentType == "" {
		contentType = util.SniffMIME(data)
	}
	return &ingest.File{Name: name, ContentType: contentType, Data: data}, nil
}
