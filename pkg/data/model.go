package data

import "time"

// Issue is one dated edition of a newspaper title, the unit of work
// for the pipeline. Title and Date are already sanitized for use as
// path segments; ManifestID is never empty on a constructed Issue.
type Issue struct {
	Title      string
	Date       string
	ManifestID string
	Filenames  []string
}

// AssetRef points at one page-image binary referenced by a manifest.
type AssetRef struct {
	URL      string
	Filename string
}

// TransferOutcome reports what the transfer engine did for one asset.
type TransferOutcome struct {
	Asset     AssetRef
	LocalPath string
	Success   bool
	Attempts  int
}

// IssueRecord is the per-issue row persisted to the harvest ledger.
type IssueRecord struct {
	Title       string
	Date        string
	ManifestID  string
	Assets      int
	Synced      int
	Success     bool
	CompletedAt time.Time
}
