// Package drive mirrors local assets into a Google Drive folder
// hierarchy: folder resolution with a session cache, checksum-verified
// uploads and one-time permission sharing.
package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultAPIBase    = "https://www.googleapis.com/drive/v3"
	defaultUploadBase = "https://www.googleapis.com/upload/drive/v3"

	folderMimeType = "application/vnd.google-apps.folder"
)

// Client implements Store against the Drive v3 REST API. Token
// acquisition happens outside; the client just sends what it is given.
type Client struct {
	http       *resty.Client
	apiBase    string
	uploadBase string
}

func NewClient(token string) *Client {
	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetAuthToken(token)
	return &Client{
		http:       client,
		apiBase:    defaultAPIBase,
		uploadBase: defaultUploadBase,
	}
}

type fileResource struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	MD5Checksum string `json:"md5Checksum,omitempty"`
}

type fileList struct {
	Files []fileResource `json:"files"`
}

// escapeName escapes single quotes for use inside a Drive query.
func escapeName(name string) string {
	return strings.ReplaceAll(name, `'`, `\'`)
}

func (c *Client) findOne(ctx context.Context, query string) (string, error) {
	var list fileList
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      query,
			"spaces": "drive",
			"fields": "files(id, name)",
		}).
		SetResult(&list).
		Get(c.apiBase + "/files")
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("list files: status %d", resp.StatusCode())
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].ID, nil
}

func (c *Client) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeName(name), folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}
	return c.findOne(ctx, query)
}

func (c *Client) FindFile(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", escapeName(name), parentID)
	return c.findOne(ctx, query)
}

func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	body := map[string]any{
		"name":     name,
		"mimeType": folderMimeType,
	}
	if parentID != "" {
		body["parents"] = []string{parentID}
	}
	var created fileResource
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("fields", "id").
		SetBody(body).
		SetResult(&created).
		Post(c.apiBase + "/files")
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("create folder %q: status %d", name, resp.StatusCode())
	}
	return created.ID, nil
}

func (c *Client) Upload(ctx context.Context, name, parentID string, r io.Reader) (UploadResult, error) {
	metadata, err := json.Marshal(map[string]any{
		"name":    name,
		"parents": []string{parentID},
	})
	if err != nil {
		return UploadResult{}, err
	}

	var uploaded fileResource
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"uploadType": "multipart",
			"fields":     "id, md5Checksum",
		}).
		SetMultipartField("metadata", "", "application/json; charset=UTF-8", strings.NewReader(string(metadata))).
		SetMultipartField("file", name, "application/octet-stream", r).
		SetResult(&uploaded).
		Post(c.uploadBase + "/files")
	if err != nil {
		return UploadResult{}, err
	}
	if !resp.IsSuccess() {
		return UploadResult{}, fmt.Errorf("upload %q: status %d", name, resp.StatusCode())
	}
	return UploadResult{ID: uploaded.ID, MD5: uploaded.MD5Checksum}, nil
}

type permissionList struct {
	Permissions []struct {
		EmailAddress string `json:"emailAddress"`
		Role         string `json:"role"`
	} `json:"permissions"`
}

func (c *Client) ListPermissions(ctx context.Context, fileID string) ([]Permission, error) {
	var list permissionList
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("fields", "permissions(emailAddress, role)").
		SetResult(&list).
		Get(fmt.Sprintf("%s/files/%s/permissions", c.apiBase, fileID))
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("list permissions: status %d", resp.StatusCode())
	}
	out := make([]Permission, len(list.Permissions))
	for i, p := range list.Permissions {
		out[i] = Permission{Email: p.EmailAddress, Role: p.Role}
	}
	return out, nil
}

func (c *Client) GrantPermission(ctx context.Context, fileID, email, role string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"type":         "user",
			"role":         role,
			"emailAddress": email,
		}).
		Post(fmt.Sprintf("%s/files/%s/permissions", c.apiBase, fileID))
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("grant permission to %s: status %d", email, resp.StatusCode())
	}
	return nil
}
