// Package transfer downloads asset binaries to the local staging
// directory with bounded retry.
package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/aspenlund/kbharvest/pkg/data"
	"github.com/aspenlund/kbharvest/pkg/utils"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// slashEscapes undoes the backslash-escaped slashes the manifest
// source sometimes emits.
var slashEscapes = strings.NewReplacer(`\\`, "/", `\/`, "/")

// Engine fetches remote binaries to local paths. Fetch is idempotent
// on the destination path: an existing file is success without a
// request.
type Engine struct {
	http   *resty.Client
	policy utils.RetryPolicy
}

func NewEngine(referer string, policy utils.RetryPolicy) *Engine {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetDoNotParseResponse(true)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", "image/jpeg, image/png, image/jp2, */*")
	if referer != "" {
		client.SetHeader("Referer", referer)
	}
	return &Engine{http: client, policy: policy}
}

// Fetch ensures the asset's bytes exist at dest. Attempts counts the
// network fetches performed; it is zero when the file already existed.
// The last attempt's error is returned after the retry budget is
// exhausted.
func (e *Engine) Fetch(ctx context.Context, asset data.AssetRef, dest string) (data.TransferOutcome, error) {
	outcome := data.TransferOutcome{Asset: asset, LocalPath: dest}

	if _, err := os.Stat(dest); err == nil {
		slog.Info("file already downloaded", "path", dest)
		outcome.Success = true
		return outcome, nil
	}

	cleanURL := slashEscapes.Replace(asset.URL)

	attempts, err := e.policy.Do(ctx, func() error {
		return e.fetchOnce(ctx, cleanURL, dest)
	})
	outcome.Attempts = attempts
	if err != nil {
		return outcome, fmt.Errorf("download %s: %w", cleanURL, err)
	}
	outcome.Success = true
	return outcome, nil
}

func (e *Engine) fetchOnce(ctx context.Context, url, dest string) error {
	resp, err := e.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		// A truncated file must not satisfy a later existence check.
		os.Remove(dest)
		return err
	}
	return f.Close()
}
