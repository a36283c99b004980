// Package fetch downloads documents and extracts their page text.
package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ziadkadry99/doc-qa/internal/chunker"
)

var (
	// ErrDownload covers bad statuses, timeouts, oversize payloads and
	// network failures.
	ErrDownload = errors.New("document download failed")
	// ErrExtraction is returned when no text can be extracted.
	ErrExtraction = errors.New("document text extraction failed")
	// ErrUnsupportedURL is returned for schemes other than http and https,
	// and for local paths unless the Fetcher allows them.
	ErrUnsupportedURL = errors.New("unsupported document url")
)

// DocumentInfo describes a fetched document.
type DocumentInfo struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"file_size"`
	MIMEType string `json:"mime_type"`
}

// Fetcher downloads documents with a hard timeout and size cap.
type Fetcher struct {
	Client  *http.Client
	Timeout time.Duration
	MaxSize int64
	// AllowLocal lets file:// URLs and bare paths read from disk. Leave it
	// off for fetchers that serve network clients.
	AllowLocal bool
}

// New returns a Fetcher with the given limits.
func New(timeout time.Duration, maxSize int64) *Fetcher {
	return &Fetcher{
		Client:  &http.Client{},
		Timeout: timeout,
		MaxSize: maxSize,
	}
}

// DocumentID derives a stable document id from its URL: the first 16 hex
// characters of the URL's MD5 digest.
func DocumentID(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:16]
}

// FetchAndExtract downloads the document at rawURL and returns its pages.
func (f *Fetcher) FetchAndExtract(ctx context.Context, rawURL string) ([]chunker.Page, *DocumentInfo, error) {
	data, info, err := f.Download(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	pages, err := ExtractPages(data)
	if err != nil {
		return nil, info, err
	}
	return pages, info, nil
}

// Download fetches rawURL. http(s) URLs are fetched over the network;
// file:// URLs and bare paths are read from disk when AllowLocal is set.
// Both honour MaxSize.
func (f *Fetcher) Download(ctx context.Context, rawURL string) ([]byte, *DocumentInfo, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	switch u.Scheme {
	case "http", "https":
		return f.downloadHTTP(ctx, rawURL, u)
	case "file", "":
		if !f.AllowLocal {
			return nil, nil, fmt.Errorf("%w: local files are not allowed, use an http or https url", ErrUnsupportedURL)
		}
		p := u.Path
		if u.Scheme == "" {
			p = rawURL
		}
		return f.readFile(rawURL, p)
	default:
		return nil, nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, u.Scheme)
	}
}

func (f *Fetcher) downloadHTTP(ctx context.Context, rawURL string, u *url.URL) ([]byte, *DocumentInfo, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("%w: %s returned status %d", ErrDownload, u.Host, resp.StatusCode)
	}
	if f.MaxSize > 0 && resp.ContentLength > f.MaxSize {
		return nil, nil, fmt.Errorf("%w: document size %d exceeds maximum allowed size (%d bytes)", ErrDownload, resp.ContentLength, f.MaxSize)
	}

	data, err := f.readLimited(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return data, &DocumentInfo{
		URL:      rawURL,
		Filename: filenameFromPath(u.Path),
		Size:     int64(len(data)),
		MIMEType: mimeType(resp.Header.Get("Content-Type"), data),
	}, nil
}

func (f *Fetcher) readFile(rawURL, p string) ([]byte, *DocumentInfo, error) {
	file, err := os.Open(p)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer file.Close()

	if fi, err := file.Stat(); err == nil && f.MaxSize > 0 && fi.Size() > f.MaxSize {
		return nil, nil, fmt.Errorf("%w: document size %d exceeds maximum allowed size (%d bytes)", ErrDownload, fi.Size(), f.MaxSize)
	}
	data, err := f.readLimited(file)
	if err != nil {
		return nil, nil, err
	}
	return data, &DocumentInfo{
		URL:      rawURL,
		Filename: filepath.Base(p),
		Size:     int64(len(data)),
		MIMEType: mimeType(mime.TypeByExtension(filepath.Ext(p)), data),
	}, nil
}

// readLimited reads at most MaxSize bytes and fails if more remain, so a
// missing or wrong Content-Length cannot bypass the cap.
func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	if f.MaxSize <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDownload, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, f.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if int64(len(data)) > f.MaxSize {
		return nil, fmt.Errorf("%w: document exceeds maximum allowed size (%d bytes)", ErrDownload, f.MaxSize)
	}
	return data, nil
}

func filenameFromPath(p string) string {
	base := path.Base(p)
	if base == "." || base == "/" || base == "" {
		return "document.pdf"
	}
	return base
}

func mimeType(header string, data []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	return strings.SplitN(http.DetectContentType(data), ";", 2)[0]
}
