package adapter

import (
	"math"
	"strconv"
	"strings"

	"github.com/weavesync/weavesync/models"
)

// SortOrder selects the order records come back from a collection fetch.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
	SortIndex  SortOrder = "index"
)

// CollectionRequest describes a GET against a collection. Zero values mean
// "not set" and are omitted from the query string.
type CollectionRequest struct {
	Collection string
	Full       bool
	IDs        []models.Guid
	Limit      int
	Newer      *models.ServerTimestamp
	Older      *models.ServerTimestamp
	Sort       SortOrder
}

// NewCollectionRequest starts a full-record request against a collection.
// The chainable With* methods refine it.
func NewCollectionRequest(collection string) CollectionRequest {
	return CollectionRequest{Collection: collection, Full: true}
}

func (r CollectionRequest) WithNewer(ts models.ServerTimestamp) CollectionRequest {
	r.Newer = &ts
	return r
}

func (r CollectionRequest) WithOlder(ts models.ServerTimestamp) CollectionRequest {
	r.Older = &ts
	return r
}

func (r CollectionRequest) WithLimit(n int) CollectionRequest {
	r.Limit = n
	return r
}

func (r CollectionRequest) WithSort(s SortOrder) CollectionRequest {
	r.Sort = s
	return r
}

func (r CollectionRequest) WithIDs(ids ...models.Guid) CollectionRequest {
	r.IDs = ids
	return r
}

// queryParams renders the request into query-string values.
func (r CollectionRequest) queryParams() map[string]string {
	q := map[string]string{}
	if r.Full {
		q["full"] = "1"
	}
	if len(r.IDs) > 0 {
		parts := make([]string, len(r.IDs))
		for i, id := range r.IDs {
			parts[i] = string(id)
		}
		q["ids"] = strings.Join(parts, ",")
	}
	if r.Limit > 0 {
		q["limit"] = strconv.Itoa(r.Limit)
	}
	if r.Newer != nil {
		q["newer"] = r.Newer.String()
	}
	if r.Older != nil {
		q["older"] = r.Older.String()
	}
	if r.Sort != "" {
		q["sort"] = string(r.Sort)
	}
	return q
}

// InfoConfiguration mirrors the server's info/configuration response. Fields
// the server leaves out keep their default; servers without the endpoint at
// all get DefaultInfoConfiguration.
type InfoConfiguration struct {
	MaxRequestBytes       int `json:"max_request_bytes"`
	MaxRecordPayloadBytes int `json:"max_record_payload_bytes"`
	MaxPostRecords        int `json:"max_post_records"`
	MaxPostBytes          int `json:"max_post_bytes"`
	MaxTotalRecords       int `json:"max_total_records"`
	MaxTotalBytes         int `json:"max_total_bytes"`
}

func DefaultInfoConfiguration() InfoConfiguration {
	return InfoConfiguration{
		MaxRequestBytes:       260 * 1024,
		MaxRecordPayloadBytes: 256 * 1024,
		MaxPostRecords:        math.MaxInt,
		MaxPostBytes:          math.MaxInt,
		MaxTotalRecords:       math.MaxInt,
		MaxTotalBytes:         math.MaxInt,
	}
}

// normalize replaces absent (zero) limits with their defaults.
func (c InfoConfiguration) normalize() InfoConfiguration {
	def := DefaultInfoConfiguration()
	if c.MaxRequestBytes == 0 {
		c.MaxRequestBytes = def.MaxRequestBytes
	}
	if c.MaxRecordPayloadBytes == 0 {
		c.MaxRecordPayloadBytes = def.MaxRecordPayloadBytes
	}
	if c.MaxPostRecords == 0 {
		c.MaxPostRecords = def.MaxPostRecords
	}
	if c.MaxPostBytes == 0 {
		c.MaxPostBytes = def.MaxPostBytes
	}
	if c.MaxTotalRecords == 0 {
		c.MaxTotalRecords = def.MaxTotalRecords
	}
	if c.MaxTotalBytes == 0 {
		c.MaxTotalBytes = def.MaxTotalBytes
	}
	return c
}

// MetaGlobalEngine is one engine entry inside meta/global.
type MetaGlobalEngine struct {
	Version int    `json:"version"`
	SyncID  string `json:"syncID"`
}

// MetaGlobalRecord is the cleartext meta/global record: the global sync id,
// the storage format version, the engine table, and the engines this account
// has declined.
type MetaGlobalRecord struct {
	SyncID         string                      `json:"syncID"`
	StorageVersion int                         `json:"storageVersion"`
	Engines        map[string]MetaGlobalEngine `json:"engines"`
	Declined       []string                    `json:"declined"`
}

// StorageVersion5 is the only storage format this client speaks.
const StorageVersion5 = 5

// UploadResult is the body of a successful POST to a collection.
type UploadResult struct {
	Batch   *string                `json:"batch,omitempty"`
	Success []models.Guid          `json:"success"`
	Failed  map[models.Guid]string `json:"failed"`
}

// PostResponse carries the pieces of a collection POST the upload queue
// cares about: status, parsed body, and the X-Last-Modified header.
type PostResponse struct {
	Status       int
	Result       UploadResult
	LastModified models.ServerTimestamp
}

func (r PostResponse) Ok() bool {
	return r.Status >= 200 && r.Status < 300
}
