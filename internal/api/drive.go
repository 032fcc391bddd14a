package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/internxt/drivectl/internal/models"
	"github.com/internxt/drivectl/internal/ratelimit"
)

// Usage gets the storage used by the current user.
func (c *Client) Usage(ctx context.Context) (*models.Usage, error) {
	var usage models.Usage
	if err := c.call(ctx, nethttp.MethodGet, c.driveURL, "/users/usage", nil, nil, &usage); err != nil {
		return nil, err
	}
	return &usage, nil
}

// Limit gets the current user's storage quota.
func (c *Client) Limit(ctx context.Context) (*models.Limit, error) {
	var limit models.Limit
	if err := c.call(ctx, nethttp.MethodGet, c.driveURL, "/users/limit", nil, nil, &limit); err != nil {
		return nil, err
	}
	return &limit, nil
}

// RecentFiles lists the most recently modified files. A limit <= 0 uses the
// server default.
func (c *Client) RecentFiles(ctx context.Context, limit int) ([]models.DriveFile, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var files []models.DriveFile
	if err := c.call(ctx, nethttp.MethodGet, c.driveURL, "/files/recents", query, nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// FolderFiles lists one page of files directly inside a folder.
func (c *Client) FolderFiles(ctx context.Context, folderUUID string, offset, limit int) ([]models.DriveFile, error) {
	if folderUUID == "" {
		return nil, fmt.Errorf("folder uuid is required")
	}
	query := url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
	var page models.FolderFiles
	path := "/folders/content/" + url.PathEscape(folderUUID) + "/files"
	if err := c.call(ctx, nethttp.MethodGet, c.driveURL, path, query, nil, &page); err != nil {
		return nil, err
	}
	return page.Files, nil
}

// BucketFileInfo gets storage metadata for a file on the Network API.
func (c *Client) BucketFileInfo(ctx context.Context, bucketID, fileID string) (*models.BucketFileInfo, error) {
	var info models.BucketFileInfo
	path := "/buckets/" + url.PathEscape(bucketID) + "/files/" + url.PathEscape(fileID) + "/info"
	if err := c.call(ctx, nethttp.MethodGet, c.networkURL, path, nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// StartUpload announces the parts of an upload and returns where to send them.
func (c *Client) StartUpload(ctx context.Context, bucketID string, parts []models.UploadPart) (*models.StartUploadResponse, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("at least one upload part is required")
	}
	var out models.StartUploadResponse
	path := "/buckets/" + url.PathEscape(bucketID) + "/files/start"
	query := url.Values{"multiparts": {strconv.Itoa(len(parts))}}
	if err := c.call(ctx, nethttp.MethodPost, c.networkURL, path, query, models.StartUploadRequest{Uploads: parts}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FinishUpload commits the uploaded shards as a file.
func (c *Client) FinishUpload(ctx context.Context, bucketID string, req models.FinishUploadRequest) (*models.FinishUploadResponse, error) {
	var out models.FinishUploadResponse
	path := "/buckets/" + url.PathEscape(bucketID) + "/files/finish"
	if err := c.call(ctx, nethttp.MethodPost, c.networkURL, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadPart PUTs one part to a presigned storage URL and returns its ETag.
//
// Presigned URLs point at the storage provider, not the gateway, so these
// requests skip the rate-limit transport. A 429 from storage still surfaces as
// *Error, and the whole PUT is retried with ratelimit.WithRetry.
func (c *Client) UploadPart(ctx context.Context, presignedURL string, data []byte) (string, error) {
	key := ratelimit.EndpointKey(ratelimit.Endpoint{URL: presignedURL})

	return ratelimit.WithRetry(ctx, c.limiter, "file-upload", key, func(ctx context.Context) (string, error) {
		req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPut, presignedURL, bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("failed to create upload request: %w", err)
		}
		req.ContentLength = int64(len(data))

		resp, err := c.rawClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("upload part failed: %w", err)
		}
		defer resp.Body.Close()

		c.limiter.UpdateFromHeaders(resp.Header, key)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return "", newError(resp, body)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return strings.Trim(resp.Header.Get("ETag"), `"`), nil
	})
}

// Get performs an authenticated GET of path against the Drive API, or the
// Network API when network is set. A JSON response is decoded into out when
// out is non-nil.
func (c *Client) Get(ctx context.Context, network bool, path string, query url.Values, out interface{}) error {
	base := c.driveURL
	if network {
		base = c.networkURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.call(ctx, nethttp.MethodGet, base, path, query, nil, out)
}
