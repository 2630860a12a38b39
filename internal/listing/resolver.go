// Package listing resolves the most recently generated artifact from the
// printer's directory-index page.
//
// The page is matched with narrow regular expressions scoped to the one known
// listing shape: table rows, a folder anchor per row, the modification time
// carried in a td "name" attribute. If the firmware ever changes the page
// layout, this parser is the piece that breaks.
package listing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/printforge/timelapse-exporter/internal/errors"
)

// ArtifactExt is the media extension of generated artifacts.
const ArtifactExt = ".mp4"

const fetchTimeout = 10 * time.Second

var (
	rowRe     = regexp.MustCompile(`(?is)<tr\b[^>]*>(.*?)</tr>`)
	anchorRe  = regexp.MustCompile(`(?is)<a[^>]*\bhref="([^"]+)"[^>]*>(.*?)</a>`)
	ordinalRe = regexp.MustCompile(`(?i)<td[^>]*\bname\s*=\s*"?(-?\d+)"?[^>]*>`)
	tagRe     = regexp.MustCompile(`<[^>]*>`)
)

// Entry is one usable row of the listing document.
type Entry struct {
	Name     string // human-facing display name
	Href     string // link reference, absolute or relative to the listing path
	Modified int64  // modification-time ordinal; greater is newer
}

type Resolver struct {
	host   string
	client *http.Client
	log    *slog.Logger
}

func NewResolver(host string, log *slog.Logger) *Resolver {
	return &Resolver{
		host:   host,
		client: &http.Client{Timeout: fetchTimeout},
		log:    log,
	}
}

// Latest fetches the listing at listPath and returns its most recently
// modified entry.
func (r *Resolver) Latest(ctx context.Context, listPath string) (Entry, error) {
	pageURL := "http://" + r.host + ensureSlash(listPath)
	r.log.Debug("listing.fetch", slog.String("url", pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Entry{}, errors.Resolution("building listing request failed", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Entry{}, errors.Resolution(fmt.Sprintf("listing %s unreachable", pageURL), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Entry{}, errors.Resolution(fmt.Sprintf("listing %s returned status %d", pageURL, resp.StatusCode), nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, errors.Resolution("reading listing body failed", err)
	}

	latest, ok := parseLatest(string(body))
	if !ok {
		return Entry{}, errors.Resolution(fmt.Sprintf("no usable entries on listing %s", pageURL), nil)
	}
	r.log.Debug("listing.latest_entry",
		slog.String("name", latest.Name),
		slog.String("href", latest.Href),
		slog.Int64("modified", latest.Modified),
		slog.String("modified_utc", time.Unix(latest.Modified, 0).UTC().Format(time.RFC3339)),
	)
	return latest, nil
}

// LatestArtifact resolves the artifact path of the latest entry.
func (r *Resolver) LatestArtifact(ctx context.Context, listPath string) (string, error) {
	latest, err := r.Latest(ctx, listPath)
	if err != nil {
		return "", err
	}
	p := ArtifactPath(latest.Href, listPath)
	r.log.Debug("listing.artifact_path", slog.String("path", p))
	return p, nil
}

// parseLatest reduces the rows to the one with the maximum modification
// ordinal. Exact ties keep the earliest row, so the reduce is stable.
func parseLatest(html string) (Entry, bool) {
	var latest Entry
	found := false
	for _, row := range rowRe.FindAllStringSubmatch(html, -1) {
		entry, ok := parseRow(row[1])
		if !ok {
			continue
		}
		if !found || entry.Modified > latest.Modified {
			latest = entry
			found = true
		}
	}
	return latest, found
}

// parseRow extracts the folder anchor and the modification ordinal from one
// row. Anchors pointing straight at a rendered artifact are skipped; the
// human-facing folder link is the one carrying the entry name. Rows without
// a parseable ordinal are discarded.
func parseRow(row string) (Entry, bool) {
	var href, name string
	for _, a := range anchorRe.FindAllStringSubmatch(row, -1) {
		if strings.HasSuffix(a[1], ArtifactExt) {
			continue
		}
		href = a[1]
		name = strings.TrimSpace(tagRe.ReplaceAllString(a[2], ""))
		break
	}
	if href == "" {
		return Entry{}, false
	}
	if name == "" {
		name = href
	}

	m := ordinalRe.FindStringSubmatch(row)
	if m == nil {
		return Entry{}, false
	}
	modified, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Name: name, Href: href, Modified: modified}, true
}

// ArtifactPath normalizes href into an absolute artifact path: a relative
// href is joined to listPath, one trailing slash is stripped, and the
// artifact extension appended unless already present.
func ArtifactPath(href, listPath string) string {
	base := href
	if !strings.HasPrefix(href, "/") {
		base = path.Join(strings.TrimSuffix(listPath, "/"), href)
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, ArtifactExt) {
		return base
	}
	return base + ArtifactExt
}

func ensureSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
