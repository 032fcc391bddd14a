// Package models defines the Drive and Network API payloads used by drivectl.
package models

import "time"

// Usage is returned by GET /users/usage. Sizes are in bytes.
type Usage struct {
	Drive   int64 `json:"drive"`
	Backups int64 `json:"backups"`
	Total   int64 `json:"total"`
}

// Limit is returned by GET /users/limit.
type Limit struct {
	MaxSpaceBytes int64 `json:"maxSpaceBytes"`
}

// DriveFile is a file entry as listed by the Drive API
type DriveFile struct {
	ID         int64     `json:"id"`
	UUID       string    `json:"uuid"`
	FileID     string    `json:"fileId"`
	Name       string    `json:"plainName"`
	Type       string    `json:"type,omitempty"`
	Size       string    `json:"size"` // decimal string, may exceed 2^53
	Bucket     string    `json:"bucket"`
	FolderUUID string    `json:"folderUuid"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// FolderFiles is returned by GET /folders/content/{uuid}/files.
type FolderFiles struct {
	Files []DriveFile `json:"files"`
}

// BucketFileInfo is returned by GET /buckets/{bucket}/files/{id}/info on the Network API.
type BucketFileInfo struct {
	ID       string    `json:"id"`
	Bucket   string    `json:"bucket"`
	Index    string    `json:"index"`
	Size     int64     `json:"size"`
	Version  int       `json:"version"`
	Filename string    `json:"filename"`
	Mimetype string    `json:"mimetype"`
	Created  time.Time `json:"created"`
	Shards   []Shard   `json:"shards,omitempty"`
}

// Shard is one stored piece of a file.
type Shard struct {
	Index int    `json:"index"`
	Hash  string `json:"hash"`
	UUID  string `json:"uuid"`
	URL   string `json:"url,omitempty"`
}

// UploadPart describes one part announced in StartUploadRequest.
type UploadPart struct {
	Index int   `json:"index"`
	Size  int64 `json:"size"`
}

// StartUploadRequest is the body of POST /buckets/{bucket}/files/start.
type StartUploadRequest struct {
	Uploads []UploadPart `json:"uploads"`
}

// UploadSlot tells the client where to PUT one part.
type UploadSlot struct {
	Index int      `json:"index"`
	UUID  string   `json:"uuid"`
	URL   string   `json:"url,omitempty"`
	URLs  []string `json:"urls,omitempty"`
}

// StartUploadResponse is returned by POST /buckets/{bucket}/files/start.
type StartUploadResponse struct {
	Uploads []UploadSlot `json:"uploads"`
}

// FinishUploadRequest is the body of POST /buckets/{bucket}/files/finish.
type FinishUploadRequest struct {
	Index  string       `json:"index"`
	Shards []ShardProof `json:"shards"`
}

// ShardProof links an uploaded part to its content hash.
type ShardProof struct {
	Hash string `json:"hash"`
	UUID string `json:"uuid"`
}

// FinishUploadResponse is the stored file entry after finishing an upload.
type FinishUploadResponse struct {
	ID      string    `json:"id"`
	Bucket  string    `json:"bucket"`
	Index   string    `json:"index"`
	Size    int64     `json:"size"`
	Version int       `json:"version"`
	Created time.Time `json:"created"`
}
