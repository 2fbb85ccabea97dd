// Package archive talks to the KB digital newspaper archive: resolving
// IIIF-style manifests into page-image URLs and building search URLs
// for the navigation layer.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/aspenlund/kbharvest/pkg/data"
)

const (
	DefaultBaseURL = "https://tidningar.kb.se"
	DefaultAPIBase = "https://data.kb.se"

	// Dagens Nyheter, the default title filter for searches.
	DefaultPaperID = "https://libris.kb.se/m5z2w4lz3m2zxpk#it"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

	assetExtension = ".jp2"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDate reports whether s is a YYYY-MM-DD date argument.
func ValidDate(s string) bool {
	return dateRe.MatchString(s)
}

// KB is a client for the archive's manifest endpoint. The archive
// rejects requests without browser-looking User-Agent and Referer
// headers, so the client always sends them.
type KB struct {
	http    *resty.Client
	baseURL string
	apiBase string
}

func NewKB(baseURL, apiBase string) *KB {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", "application/json, text/plain, */*")
	client.SetHeader("Referer", baseURL+"/")
	return &KB{http: client, baseURL: baseURL, apiBase: apiBase}
}

// manifest is the nested canvas/annotation-page/annotation/body tree.
// Every level's child key may be absent; absent keys simply decode to
// empty slices.
type manifest struct {
	Items []struct {
		Items []struct {
			Items []struct {
				Body struct {
					ID string `json:"id"`
				} `json:"body"`
			} `json:"items"`
		} `json:"items"`
	} `json:"items"`
}

// Resolve fetches {apiBase}/{manifestID}/manifest and returns the
// referenced page images in document order. Network errors, non-2xx
// responses and malformed documents all collapse to an empty result.
func (k *KB) Resolve(ctx context.Context, manifestID string) []data.AssetRef {
	manifestURL := fmt.Sprintf("%s/%s/manifest", k.apiBase, manifestID)

	var doc manifest
	resp, err := k.http.R().
		SetContext(ctx).
		SetResult(&doc).
		Get(manifestURL)
	if err != nil {
		slog.Warn("fetch manifest", "url", manifestURL, "err", err)
		return nil
	}
	if !resp.IsSuccess() {
		slog.Warn("fetch manifest", "url", manifestURL, "status", resp.StatusCode())
		return nil
	}

	var assets []data.AssetRef
	for _, canvas := range doc.Items {
		for _, page := range canvas.Items {
			for _, annotation := range page.Items {
				id := annotation.Body.ID
				if !strings.HasSuffix(id, assetExtension) {
					continue
				}
				assets = append(assets, data.AssetRef{
					URL:      id,
					Filename: assetFilename(id),
				})
			}
		}
	}
	if len(assets) == 0 {
		slog.Warn("manifest references no page images", "manifest", manifestID)
	}
	return assets
}

// assetFilename derives the local filename: the URL-decoded basename.
func assetFilename(assetURL string) string {
	decoded, err := url.PathUnescape(assetURL)
	if err != nil {
		decoded = assetURL
	}
	return path.Base(decoded)
}

// SearchURL builds the archive search URL for a date range and an
// optional title filter. Both dates must be YYYY-MM-DD.
func (k *KB) SearchURL(from, to, paperID string) (string, error) {
	if !ValidDate(from) || !ValidDate(to) {
		return "", fmt.Errorf("invalid date range %q to %q, want YYYY-MM-DD", from, to)
	}
	if paperID == "" {
		paperID = DefaultPaperID
	}
	params := url.Values{}
	params.Set("q", "*")
	params.Set("from", from)
	params.Set("to", to)
	params.Set("isPartOf.@id", paperID)
	return k.baseURL + "/search?" + params.Encode(), nil
}
