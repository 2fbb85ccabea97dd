package drive

import (
	"context"
	"io"
)

// UploadResult is what the remote store reports for a stored object.
// MD5 is the store-computed content checksum used for verification.
type UploadResult struct {
	ID  string
	MD5 string
}

// Permission is one grant on a remote object.
type Permission struct {
	Email string
	Role  string
}

// Store is the authenticated remote-store collaborator. An empty id
// from the Find operations means "not present", not an error.
type Store interface {
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	FindFolder(ctx context.Context, name, parentID string) (string, error)
	FindFile(ctx context.Context, name, parentID string) (string, error)
	Upload(ctx context.Context, name, parentID string, r io.Reader) (UploadResult, error)
	ListPermissions(ctx context.Context, fileID string) ([]Permission, error)
	GrantPermission(ctx context.Context, fileID, email, role string) error
}
