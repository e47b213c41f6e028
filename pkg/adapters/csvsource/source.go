// Package csvsource turns a CSV file or URL into a domain.Ingestion: the header row
// plus a short preview of data rows.
package csvsource

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/quarry/pkg/domain"
)

// PreviewRows is the number of data rows kept after the header.
const PreviewRows = 3

// remoteChunk is how much of a remote file is requested; headers live at the top.
const remoteChunk = 2048

// ErrHTML is returned when a URL serves a web page instead of CSV.
var ErrHTML = errors.New("the URL returned HTML instead of CSV data")

// ErrSourceNotAllowed is returned by a Sandbox for paths outside its root and
// for URLs whose host is not allowed.
var ErrSourceNotAllowed = errors.New("dataset source not allowed")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Read parses the header and up to PreviewRows rows from r.
// A malformed row after the header ends the preview rather than failing it,
// since remote reads may cut the last row short.
func Read(r io.Reader, label, ref string) (domain.Ingestion, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Ingestion{}, domain.ErrNoHeaders
		}
		return domain.Ingestion{}, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	if len(headers) > 0 {
		headers[0] = string(bytes.TrimPrefix([]byte(headers[0]), utf8BOM))
	}
	cleaned := make([]string, 0, len(headers))
	for _, h := range headers {
		if h = strings.TrimSpace(h); h != "" {
			cleaned = append(cleaned, h)
		}
	}
	if len(cleaned) == 0 {
		return domain.Ingestion{}, domain.ErrNoHeaders
	}

	var rows [][]string
	for len(rows) < PreviewRows {
		rec, err := reader.Read()
		if err != nil {
			break
		}
		rows = append(rows, rec)
	}

	return domain.Ingestion{
		SourceLabel:   label,
		FileReference: ref,
		Headers:       cleaned,
		SampleRows:    rows,
	}, nil
}

// Open reads a local CSV file. The label is the file's base name.
func Open(name string) (domain.Ingestion, error) {
	f, err := os.Open(name)
	if err != nil {
		return domain.Ingestion{}, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ref := name
	if abs, err := filepath.Abs(name); err == nil {
		ref = abs
	}
	return Read(f, filepath.Base(name), ref)
}

// Fetch reads the first bytes of a remote CSV with a Range request.
func Fetch(ctx context.Context, client *http.Client, rawURL string) (domain.Ingestion, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.Ingestion{}, fmt.Errorf("invalid dataset URL: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", remoteChunk-1))

	resp, err := client.Do(req)
	if err != nil {
		return domain.Ingestion{}, fmt.Errorf("failed to fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return domain.Ingestion{}, fmt.Errorf("HTTP error! status: %d", resp.StatusCode)
	}

	chunk, err := io.ReadAll(io.LimitReader(resp.Body, remoteChunk))
	if err != nil {
		return domain.Ingestion{}, fmt.Errorf("failed to read dataset: %w", err)
	}
	head := strings.ToLower(strings.TrimSpace(string(chunk)))
	if strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html") {
		return domain.Ingestion{}, ErrHTML
	}

	return Read(bytes.NewReader(chunk), labelFromURL(rawURL), rawURL)
}

// Load reads ref as a URL when it has an http(s) scheme, else as a local path.
// It trusts ref; network-facing callers use a Sandbox instead.
func Load(ctx context.Context, ref string) (domain.Ingestion, error) {
	if isURL(ref) {
		return Fetch(ctx, nil, ref)
	}
	return Open(ref)
}

// Sandbox loads datasets named by untrusted callers. Local paths must be
// relative and stay under Root, symlinks included. URLs are fetched only
// when their host is listed in AllowedHosts, and redirects are held to the
// same list. The zero value reads from the working directory and never
// touches the network.
type Sandbox struct {
	Root         string
	AllowedHosts []string
	Client       *http.Client
}

// Load implements runner.DatasetLoader.
func (sb Sandbox) Load(ctx context.Context, ref string) (domain.Ingestion, error) {
	if isURL(ref) {
		return sb.fetch(ctx, ref)
	}
	return sb.open(ref)
}

func (sb Sandbox) open(name string) (domain.Ingestion, error) {
	if !filepath.IsLocal(name) {
		return domain.Ingestion{}, fmt.Errorf("%w: %q is not a path inside the dataset root", ErrSourceNotAllowed, name)
	}
	dir := sb.Root
	if dir == "" {
		dir = "."
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return domain.Ingestion{}, fmt.Errorf("failed to open dataset root: %w", err)
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		return domain.Ingestion{}, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ref := filepath.Join(dir, name)
	if abs, err := filepath.Abs(ref); err == nil {
		ref = abs
	}
	return Read(f, filepath.Base(name), ref)
}

func (sb Sandbox) fetch(ctx context.Context, rawURL string) (domain.Ingestion, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.Ingestion{}, fmt.Errorf("invalid dataset URL: %w", err)
	}
	if !sb.allowed(u) {
		return domain.Ingestion{}, fmt.Errorf("%w: host %q", ErrSourceNotAllowed, u.Host)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	if sb.Client != nil {
		c := *sb.Client
		client = &c
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		if !sb.allowed(req.URL) {
			return fmt.Errorf("%w: redirect to host %q", ErrSourceNotAllowed, req.URL.Host)
		}
		return nil
	}
	return Fetch(ctx, client, rawURL)
}

// allowed matches either the bare hostname or host:port.
func (sb Sandbox) allowed(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return slices.ContainsFunc(sb.AllowedHosts, func(h string) bool {
		return strings.EqualFold(h, u.Hostname()) || strings.EqualFold(h, u.Host)
	})
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func labelFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			return base
		}
	}
	return "remote-file.csv"
}
