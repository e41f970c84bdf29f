package images

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"
)

// MaxFetchBytes caps remote image downloads
const MaxFetchBytes = 20 * 1024 * 1024

const maxRedirects = 5

// ErrBlockedAddress is returned when a public fetcher is pointed at a
// loopback, private or link-local address
var ErrBlockedAddress = errors.New("address not allowed")

// carrier-grade NAT space is not covered by netip's IsPrivate
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Fetcher downloads shelf photos from URLs
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewPublicFetcher creates a fetcher for URLs supplied by remote callers.
// Every connection, redirects included, must go to a public address.
func NewPublicFetcher() *Fetcher {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: rejectInternal,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout:       30 * time.Second,
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
	}
}

func rejectInternal(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || !IsPublicAddr(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// IsPublicAddr reports whether ip is a globally routable unicast address
func IsPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() &&
		!ip.IsPrivate() &&
		!sharedAddressSpace.Contains(ip)
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
	}
	return nil
}

// IsURL reports whether source should be fetched rather than read from disk
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Fetch downloads and decodes the image at imageURL
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) (image.Image, error) {
	data, err := f.FetchBytes(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data)
}

// FetchBytes downloads the raw image bytes at imageURL
func (f *Fetcher) FetchBytes(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxFetchBytes {
		return nil, fmt.Errorf("image too large (max %d bytes)", MaxFetchBytes)
	}

	slog.Debug("Downloaded image", "url", imageURL, "bytes", len(data))
	return data, nil
}

// Load reads a shelf photo from a local path or a URL
func (f *Fetcher) Load(ctx context.Context, source string) (image.Image, error) {
	if IsURL(source) {
		return f.Fetch(ctx, source)
	}
	return Open(source)
}
