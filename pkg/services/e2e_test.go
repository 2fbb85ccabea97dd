package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspenlund/kbharvest/pkg/archive"
	"github.com/aspenlund/kbharvest/pkg/drive"
	"github.com/aspenlund/kbharvest/pkg/transfer"
	"github.com/aspenlund/kbharvest/pkg/utils"
)

// End-to-end test of the full harvest pipeline against an in-memory
// remote store and a local HTTP archive.

type memStore struct {
	folders map[string]string // parentID:name -> id
	files   map[string]string // parentID:name -> id
	nextID  int

	folderCreates int
	uploads       int
	corruptMD5    bool
}

func newMemStore() *memStore {
	return &memStore{folders: map[string]string{}, files: map[string]string{}}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	m.folderCreates++
	id := m.id("folder")
	m.folders[parentID+":"+name] = id
	return id, nil
}

func (m *memStore) FindFolder(_ context.Context, name, parentID string) (string, error) {
	return m.folders[parentID+":"+name], nil
}

func (m *memStore) FindFile(_ context.Context, name, parentID string) (string, error) {
	return m.files[parentID+":"+name], nil
}

func (m *memStore) Upload(_ context.Context, name, parentID string, r io.Reader) (drive.UploadResult, error) {
	m.uploads++
	sum := md5.New()
	if _, err := io.Copy(sum, r); err != nil {
		return drive.UploadResult{}, err
	}
	checksum := hex.EncodeToString(sum.Sum(nil))
	if m.corruptMD5 {
		checksum = "corrupted"
	}
	id := m.id("file")
	m.files[parentID+":"+name] = id
	return drive.UploadResult{ID: id, MD5: checksum}, nil
}

func (m *memStore) ListPermissions(_ context.Context, fileID string) ([]drive.Permission, error) {
	return nil, nil
}

func (m *memStore) GrantPermission(_ context.Context, fileID, email, role string) error {
	return nil
}

const e2eAsset = "bib13991099_18650102_0_1_0001.jp2"

// archiveServer serves the manifest and the single page image.
func archiveServer(t *testing.T, downloads *int) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bib13991099/manifest":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"items":[{"items":[{"items":[{"body":{"id":"%s/%s"}}]}]}]}`, server.URL, e2eAsset)
		case "/" + e2eAsset:
			*downloads++
			w.Write([]byte("jp2 image bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	return server
}

func e2ePolicy() utils.RetryPolicy {
	return utils.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: func(time.Duration) {}}
}

func e2eFragment() Fragment {
	return Fragment{HTML: `
		<div class="search-result-item-title">Dagens Nyheter!</div>
		<p class="search-result-item-date">1865-01-02</p>
		<img data-src="https://data.kb.se/iiif/3/bib13991099/full/200,/0/default.jpg">`}
}

func TestE2E_FragmentToVerifiedUpload(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	downloads := 0
	server := archiveServer(t, &downloads)
	defer server.Close()

	store := newMemStore()
	session, err := drive.NewSession(context.Background(), store, "KB_Newspapers", e2ePolicy())
	require.NoError(t, err)

	downloadDir := t.TempDir()
	kb := archive.NewKB("", server.URL)
	engine := transfer.NewEngine("", e2ePolicy())
	pipeline := NewPipeline(kb, engine, session, nil, downloadDir)

	ok := pipeline.ProcessFragment(context.Background(), e2eFragment())

	assert.True(t, ok)
	assert.Equal(t, 1, downloads)
	assert.Equal(t, 1, store.uploads)
	// Root + title + date folders.
	assert.Equal(t, 3, store.folderCreates)

	// Verified upload removes the staged local copy.
	local := filepath.Join(downloadDir, "Dagens Nyheter", "1865-01-02", e2eAsset)
	_, statErr := os.Stat(local)
	assert.True(t, os.IsNotExist(statErr))
}

func TestE2E_SecondRunSkipsSyncedAssets(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	downloads := 0
	server := archiveServer(t, &downloads)
	defer server.Close()

	store := newMemStore()
	session, err := drive.NewSession(context.Background(), store, "KB_Newspapers", e2ePolicy())
	require.NoError(t, err)

	kb := archive.NewKB("", server.URL)
	engine := transfer.NewEngine("", e2ePolicy())
	pipeline := NewPipeline(kb, engine, session, nil, t.TempDir())

	require.True(t, pipeline.ProcessFragment(context.Background(), e2eFragment()))
	require.True(t, pipeline.ProcessFragment(context.Background(), e2eFragment()))

	assert.Equal(t, 1, downloads, "second run must not re-download")
	assert.Equal(t, 1, store.uploads, "second run must not re-upload")
	assert.Equal(t, 3, store.folderCreates, "folders resolve from the session cache")
}

func TestE2E_ChecksumMismatchFailsIssue(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	downloads := 0
	server := archiveServer(t, &downloads)
	defer server.Close()

	store := newMemStore()
	store.corruptMD5 = true
	session, err := drive.NewSession(context.Background(), store, "KB_Newspapers", e2ePolicy())
	require.NoError(t, err)

	kb := archive.NewKB("", server.URL)
	engine := transfer.NewEngine("", e2ePolicy())
	pipeline := NewPipeline(kb, engine, session, nil, t.TempDir())

	ok := pipeline.ProcessFragment(context.Background(), e2eFragment())

	assert.False(t, ok)
	assert.Equal(t, 3, store.uploads, "mismatch is retried up to the budget")
}
