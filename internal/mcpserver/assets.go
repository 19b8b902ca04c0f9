package mcpserver

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/insighthink/internal/apperr"
	"github.com/starford/insighthink/internal/ingest"
)

var safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// loadAsset turns a data URI or http(s) URL into an upload for field. Type
// and size checks happen later in the content service, like for any upload.
func loadAsset(ctx context.Context, field, source string) (*ingest.File, error) {
	if strings.HasPrefix(source, "data:") {
		return ingest.FileFromDataURI(field, source)
	}
	data, contentType, err := fetchHTTP(ctx, source)
	if err != nil {
		return nil, err
	}
	name := sanitizeFilename(filenameFromURL(source))
	return ingest.NewFile(field, name, contentType, data), nil
}

// fetchHTTP downloads a file from an HTTP/HTTPS URL with security checks.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", apperr.Validation("invalid URL: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", apperr.Validation("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", apperr.Validation("invalid URL: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", apperr.Validation("download failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", apperr.Validation("download failed: HTTP %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, ingest.MaxAssetSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", apperr.Validation("read body failed: %v", err)
	}
	if len(data) > ingest.MaxAssetSize {
		return nil, "", apperr.Validation("file too large: exceeds %d bytes", ingest.MaxAssetSize)
	}

	contentType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// checkBlockedHost rejects loopback, private and cloud metadata addresses.
// A name is blocked when any address it resolves to is.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return apperr.Validation("blocked host: %s", host)
	}

	ips := []net.IP{net.ParseIP(host)}
	if ips[0] == nil {
		resolved, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(resolved) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ips = resolved
	}
	return checkBlockedIPs(host, ips)
}

func checkBlockedIPs(host string, ips []net.IP) error {
	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsUnspecified() {
			return apperr.Validation("blocked host: loopback address %s (%s)", host, ip)
		}
		if ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			// Covers the 169.254.169.254 metadata endpoint of AWS, GCP and Azure.
			return apperr.Validation("blocked host: private address %s (%s)", host, ip)
		}
	}
	return nil
}

// filenameFromURL takes the last path segment of a URL, falling back to a UUID.
func filenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err == nil {
		base := path.Base(parsed.Path)
		if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
			return base
		}
	}
	return uuid.New().String()
}

// sanitizeFilename strips path separators and unsafe characters.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = safeFilenameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." {
		name = uuid.New().String()
	}
	return name
}
