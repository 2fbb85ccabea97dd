package drive

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aspenlund/kbharvest/pkg/utils"
)

// ErrChecksumMismatch marks an upload whose store-reported checksum
// does not match the local file. It counts as a failed attempt and is
// retried like a transient network error.
var ErrChecksumMismatch = errors.New("uploaded checksum does not match local file")

// Session mirrors files into the remote hierarchy. It owns the folder
// cache for one run; there is no process-wide state. Not safe for
// concurrent use: getOrCreate's query-before-create is not atomic, so
// concurrent callers racing on the same (parent, name) could create
// duplicate folders.
type Session struct {
	store  Store
	policy utils.RetryPolicy

	rootName string
	rootID   string

	// (parentID, name) -> folder id, for the lifetime of the session.
	cache  map[string]string
	shared bool
}

// NewSession resolves (or creates) the root folder and returns a
// session rooted there. A failure here is fatal to the run.
func NewSession(ctx context.Context, store Store, rootName string, policy utils.RetryPolicy) (*Session, error) {
	s := &Session{
		store:    store,
		policy:   policy,
		rootName: rootName,
		cache:    make(map[string]string),
	}
	rootID, err := s.getOrCreate(ctx, rootName, "")
	if err != nil {
		return nil, fmt.Errorf("initialize root folder %q: %w", rootName, err)
	}
	s.rootID = rootID
	return s, nil
}

func (s *Session) RootID() string {
	return s.rootID
}

func (s *Session) getOrCreate(ctx context.Context, name, parentID string) (string, error) {
	key := parentID + ":" + name
	if id, ok := s.cache[key]; ok {
		return id, nil
	}

	id, err := s.store.FindFolder(ctx, name, parentID)
	if err != nil {
		return "", fmt.Errorf("find folder %q: %w", name, err)
	}
	if id == "" {
		id, err = s.store.CreateFolder(ctx, name, parentID)
		if err != nil {
			return "", fmt.Errorf("create folder %q: %w", name, err)
		}
		slog.Info("created remote folder", "name", name, "id", id)
	}

	s.cache[key] = id
	return id, nil
}

// EnsureFolder walks segments below the root, creating what is
// missing, and returns the deepest folder's id.
func (s *Session) EnsureFolder(ctx context.Context, segments ...string) (string, error) {
	parentID := s.rootID
	for _, name := range segments {
		id, err := s.getOrCreate(ctx, name, parentID)
		if err != nil {
			return "", err
		}
		parentID = id
	}
	return parentID, nil
}

// Exists reports whether a file of that name is already present in the
// folder. A hit means the asset is treated as synced and neither
// downloaded nor uploaded again.
func (s *Session) Exists(ctx context.Context, folderID, name string) (bool, error) {
	id, err := s.store.FindFile(ctx, name, folderID)
	if err != nil {
		return false, fmt.Errorf("check remote file %q: %w", name, err)
	}
	return id != "", nil
}

// SyncFile uploads localPath into folderID under name, verifies the
// store-reported checksum against the local bytes, and deletes the
// local copy once verified. Uploads share the download retry budget;
// a checksum mismatch is just another failed attempt.
func (s *Session) SyncFile(ctx context.Context, localPath, name, folderID string) error {
	localSum, err := fileMD5(localPath)
	if err != nil {
		return fmt.Errorf("checksum %s: %w", localPath, err)
	}

	_, err = s.policy.Do(ctx, func() error {
		f, err := s.openLocal(localPath)
		if err != nil {
			return err
		}
		defer f.Close()

		res, err := s.store.Upload(ctx, name, folderID, f)
		if err != nil {
			return err
		}
		if res.MD5 != localSum {
			// The remote copy stays in place; the attempt still fails.
			return fmt.Errorf("%w: local %s, remote %s", ErrChecksumMismatch, localSum, res.MD5)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}

	// The pipeline is a relay, not a local archive: drop the staged
	// copy once the remote one is verified.
	if err := os.Remove(localPath); err != nil {
		slog.Warn("remove synced local file", "path", localPath, "err", err)
	}
	return nil
}

func (s *Session) openLocal(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open local file: %w", err)
	}
	return f, nil
}

// ShareRoot grants role on the root folder to email, once per
// session. Existing grants are checked first, so re-runs do not stack
// duplicate permissions.
func (s *Session) ShareRoot(ctx context.Context, email, role string) error {
	if email == "" || s.shared {
		return nil
	}

	perms, err := s.store.ListPermissions(ctx, s.rootID)
	if err != nil {
		return fmt.Errorf("list root permissions: %w", err)
	}
	for _, p := range perms {
		if strings.EqualFold(p.Email, email) {
			slog.Info("root folder already shared", "email", email)
			s.shared = true
			return nil
		}
	}

	if err := s.store.GrantPermission(ctx, s.rootID, email, role); err != nil {
		return fmt.Errorf("share root folder: %w", err)
	}
	slog.Info("shared root folder", "folder", s.rootName, "email", email, "role", role)
	s.shared = true
	return nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
