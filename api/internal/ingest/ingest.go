// Package ingest turns an uploaded file or a remote image URL into a
// validated image payload.
package ingest

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"docai-gateway/api/internal/util"
)

const (
	DefaultMaxBytes        = 10 << 20
	DefaultDownloadTimeout = 30 * time.Second

	// Decoding is refused above this many pixels.
	maxPixels = 80_000_000
)

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tiff": true, ".tif": true,
}

var allowedMIMETypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/bmp",
	"image/tiff",
}

// File is an uploaded document together with its declared metadata.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Source names where the image comes from. Exactly one of File and URL must
// be set; a URL of only whitespace counts as unset.
type Source struct {
	File *File
	URL  string
}

// Kind is "file", "url" or "" depending on which input is set.
func (s Source) Kind() string {
	hasFile, hasURL := s.File != nil, strings.TrimSpace(s.URL) != ""
	switch {
	case hasFile && !hasURL:
		return "file"
	case hasURL && !hasFile:
		return "url"
	}
	return ""
}

// Payload is image data that passed every ingestion check.
type Payload struct {
	Data []byte
	// ContentType is the sniffed media type of Data.
	ContentType string
	// Format is the name of the decoder that accepted Data.
	Format string
	Width  int
	Height int
}

type Options struct {
	DownloadTimeout    time.Duration
	InsecureSkipVerify bool
	MaxBytes           int64
	// HTTPClient overrides the download client. Timeout and TLS options are
	// ignored when it is set.
	HTTPClient *http.Client
}

type Ingestor struct {
	httpc    *http.Client
	maxBytes int64
}

func New(opts Options) *Ingestor {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		if opts.DownloadTimeout <= 0 {
			opts.DownloadTimeout = DefaultDownloadTimeout
		}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureSkipVerify {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpc = &http.Client{Timeout: opts.DownloadTimeout, Transport: tr}
	}
	return &Ingestor{httpc: httpc, maxBytes: opts.MaxBytes}
}

func (in *Ingestor) MaxBytes() int64 { return in.maxBytes }

// Ingest validates src and returns its image payload. The exactly-one-of
// check runs before any network or decode work.
func (in *Ingestor) Ingest(ctx context.Context, src Source) (*Payload, error) {
	var (
		data []byte
		err  error
	)
	switch src.Kind() {
	case "file":
		data, err = in.fromFile(src.File)
	case "url":
		data, err = in.fromURL(ctx, strings.TrimSpace(src.URL))
	default:
		return nil, ErrAmbiguousInput
	}
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > in.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(data), in.maxBytes)
	}

	p, err := decode(data)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().
		Str("source", src.Kind()).
		Str("format", p.Format).
		Int("bytes", len(data)).
		Msg("image ingested")
	return p, nil
}

func (in *Ingestor) fromFile(f *File) ([]byte, error) {
	if f.Name != "" {
		ext := strings.ToLower(path.Ext(f.Name))
		if !allowedExtensions[ext] {
			return nil, fmt.Errorf("%w: extension %q, supported: .jpg, .jpeg, .png, .gif, .bmp, .tiff, .tif", ErrUnsupportedFormat, ext)
		}
	}
	mt, _, err := mime.ParseMediaType(f.ContentType)
	if err != nil || !allowedMIME(mt) {
		return nil, fmt.Errorf("%w: content type %q", ErrUnsupportedFormat, f.ContentType)
	}
	return f.Data, nil
}

func (in *Ingestor) fromURL(ctx context.Context, raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid url", ErrDownloadFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	resp, err := in.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !containsAllowedMIME(ct) {
		return nil, fmt.Errorf("%w: url returned %q", ErrUnsupportedFormat, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, in.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return data, nil
}

func decode(data []byte) (*Payload, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrCorruptImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrPayloadTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	b := img.Bounds()
	return &Payload{
		Data:        data,
		ContentType: util.SniffMIME(data),
		Format:      format,
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

// OCRData returns the payload in a format text recognition accepts.
// GIF, BMP and TIFF images are re-encoded as PNG.
func (p *Payload) OCRData() ([]byte, error) {
	switch p.Format {
	case "jpeg", "png":
		return p.Data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func allowedMIME(mt string) bool {
	for _, m := range allowedMIMETypes {
		if mt == m {
			return true
		}
	}
	return false
}

func containsAllowedMIME(ct string) bool {
	for _, m := range allowedMIMETypes {
		if strings.Contains(ct, m) {
			return true
		}
	}
	return false
}
