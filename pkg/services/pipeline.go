// Package services wires the extractor, resolver, transfer engine and
// sync layer into the per-issue harvest pipeline.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aspenlund/kbharvest/pkg/archive"
	"github.com/aspenlund/kbharvest/pkg/data"
	"github.com/aspenlund/kbharvest/pkg/extract"
)

// Fragment is one raw search result handed over by the navigation
// layer: the element's inner HTML plus whatever title/date text was
// directly readable.
type Fragment struct {
	HTML  string
	Title string
	Date  string
}

// Fetcher downloads one asset to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, asset data.AssetRef, dest string) (data.TransferOutcome, error)
}

// Syncer mirrors local files into the remote hierarchy.
type Syncer interface {
	EnsureFolder(ctx context.Context, segments ...string) (string, error)
	Exists(ctx context.Context, folderID, name string) (bool, error)
	SyncFile(ctx context.Context, localPath, name, folderID string) error
}

// Ledger records per-issue outcomes; nil disables recording.
type Ledger interface {
	RecordIssue(rec data.IssueRecord) error
}

// Progress is one pipeline status update, consumed by the CLI.
type Progress struct {
	Issue  string
	Asset  string
	Index  int
	Total  int
	Status string // "resolving", "skipped", "synced", "failed"
	Err    error
}

// Summary aggregates one run.
type Summary struct {
	Processed int
	Succeeded int
}

// Pipeline processes search-result fragments one at a time, assets one
// at a time, in discovery order. A failed issue never aborts the run.
type Pipeline struct {
	archive     archive.Archive
	fetcher     Fetcher
	syncer      Syncer
	ledger      Ledger
	downloadDir string
	progress    chan Progress
}

func NewPipeline(a archive.Archive, f Fetcher, s Syncer, ledger Ledger, downloadDir string) *Pipeline {
	return &Pipeline{
		archive:     a,
		fetcher:     f,
		syncer:      s,
		ledger:      ledger,
		downloadDir: downloadDir,
		progress:    make(chan Progress, 100),
	}
}

// Progress returns the channel of status updates.
func (p *Pipeline) Progress() <-chan Progress {
	return p.progress
}

// Close releases the progress channel once no more fragments will be
// processed.
func (p *Pipeline) Close() {
	close(p.progress)
}

// sendProgress never blocks; a full channel drops the update.
func (p *Pipeline) sendProgress(progress Progress) {
	select {
	case p.progress <- progress:
	default:
	}
}

// Run processes fragments sequentially and reports the aggregate.
func (p *Pipeline) Run(ctx context.Context, fragments []Fragment) Summary {
	var summary Summary
	for i, frag := range fragments {
		slog.Info("processing search result", "index", i+1, "total", len(fragments))
		summary.Processed++
		if p.ProcessFragment(ctx, frag) {
			summary.Succeeded++
		}
	}
	return summary
}

// ProcessFragment runs one fragment through extract → resolve →
// transfer → sync. The issue succeeds only if every resolved asset
// succeeded; failed extraction or an empty manifest fail the issue.
func (p *Pipeline) ProcessFragment(ctx context.Context, frag Fragment) bool {
	issue := extract.IssueFrom(frag.HTML, frag.Title, frag.Date)
	if issue == nil {
		return false
	}
	label := issue.Title + " " + issue.Date
	slog.Info("processing issue", "title", issue.Title, "date", issue.Date, "manifest", issue.ManifestID)

	p.sendProgress(Progress{Issue: label, Status: "resolving"})
	assets := p.archive.Resolve(ctx, issue.ManifestID)
	if len(assets) == 0 {
		slog.Warn("no assets resolved", "manifest", issue.ManifestID)
		p.record(*issue, 0, 0, false)
		return false
	}

	synced := 0
	for i, asset := range assets {
		if err := p.processAsset(ctx, issue, asset, i, len(assets)); err != nil {
			slog.Error("asset failed", "issue", label, "asset", asset.Filename, "err", err)
			p.sendProgress(Progress{Issue: label, Asset: asset.Filename, Index: i + 1, Total: len(assets), Status: "failed", Err: err})
			continue
		}
		synced++
	}

	success := synced == len(assets)
	p.record(*issue, len(assets), synced, success)
	if !success {
		slog.Warn("issue incomplete", "issue", label, "synced", synced, "assets", len(assets))
	}
	return success
}

func (p *Pipeline) processAsset(ctx context.Context, issue *data.Issue, asset data.AssetRef, index, total int) error {
	label := issue.Title + " " + issue.Date

	folderID, err := p.syncer.EnsureFolder(ctx, issue.Title, issue.Date)
	if err != nil {
		return fmt.Errorf("resolve remote folder: %w", err)
	}

	// Already mirrored: skip the download entirely.
	exists, err := p.syncer.Exists(ctx, folderID, asset.Filename)
	if err != nil {
		return err
	}
	if exists {
		slog.Info("already synced", "asset", asset.Filename)
		p.sendProgress(Progress{Issue: label, Asset: asset.Filename, Index: index + 1, Total: total, Status: "skipped"})
		return nil
	}

	dest := filepath.Join(p.downloadDir, issue.Title, issue.Date, asset.Filename)
	if _, err := p.fetcher.Fetch(ctx, asset, dest); err != nil {
		return err
	}

	if err := p.syncer.SyncFile(ctx, dest, asset.Filename, folderID); err != nil {
		return err
	}
	p.sendProgress(Progress{Issue: label, Asset: asset.Filename, Index: index + 1, Total: total, Status: "synced"})
	return nil
}

func (p *Pipeline) record(issue data.Issue, assets, synced int, success bool) {
	if p.ledger == nil {
		return
	}
	err := p.ledger.RecordIssue(data.IssueRecord{
		Title:       issue.Title,
		Date:        issue.Date,
		ManifestID:  issue.ManifestID,
		Assets:      assets,
		Synced:      synced,
		Success:     success,
		CompletedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("record issue in ledger", "manifest", issue.ManifestID, "err", err)
	}
}
