package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/weavesync/weavesync/internal/bso"
	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

const (
	headerIfUnmodifiedSince = "X-If-Unmodified-Since"
	headerLastModified      = "X-Last-Modified"
	headerWeaveTimestamp    = "X-Weave-Timestamp"
	headerWeaveBackoff      = "X-Weave-Backoff"
	headerRetryAfter        = "Retry-After"
)

// ClientConfig configures the HTTP storage client. BaseURL is the node
// assigned by the token server, e.g. "https://sync.example.com/1.5/12345".
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenProvider
}

type storageClient struct {
	client *resty.Client
	tokens TokenProvider
	logger *logger.Logger

	mu           sync.Mutex
	backoffUntil time.Time
}

// NewStorageClient constructs the resty-based [StorageClient].
func NewStorageClient(cfg ClientConfig, log *logger.Logger) (StorageClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("storage client: empty base url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("storage client: nil token provider")
	}
	if log == nil {
		log = logger.Nop()
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &storageClient{client: cli, tokens: cfg.Tokens, logger: log}, nil
}

func (s *storageClient) authedRequest(ctx context.Context) (*resty.Request, error) {
	auth, err := s.tokens.Authorization(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", auth), nil
}

func (s *storageClient) FetchInfoCollections(ctx context.Context) (map[string]models.ServerTimestamp, error) {
	req, err := s.authedRequest(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := req.Get("/info/collections")
	if err != nil {
		return nil, fmt.Errorf("info/collections request: %w", err)
	}
	s.noteBackoff(resp)
	if err = mapStorageError(resp, "info/collections"); err != nil {
		return nil, err
	}

	collections := map[string]models.ServerTimestamp{}
	if err = json.Unmarshal(resp.Body(), &collections); err != nil {
		return nil, fmt.Errorf("decode info/collections: %w", err)
	}
	return collections, nil
}

func (s *storageClient) FetchInfoConfiguration(ctx context.Context) (InfoConfiguration, error) {
	req, err := s.authedRequest(ctx)
	if err != nil {
		return InfoConfiguration{}, err
	}
	resp, err := req.Get("/info/configuration")
	if err != nil {
		return InfoConfiguration{}, fmt.Errorf("info/configuration request: %w", err)
	}
	s.noteBackoff(resp)
	// Older servers do not implement the endpoint.
	if resp.StatusCode() == http.StatusNotFound {
		return DefaultInfoConfiguration(), nil
	}
	if err = mapStorageError(resp, "info/configuration"); err != nil {
		return InfoConfiguration{}, err
	}

	var config InfoConfiguration
	if err = json.Unmarshal(resp.Body(), &config); err != nil {
		return InfoConfiguration{}, fmt.Errorf("decode info/configuration: %w", err)
	}
	return config.normalize(), nil
}

func (s *storageClient) FetchMetaGlobal(ctx context.Context) (MetaGlobalRecord, models.ServerTimestamp, error) {
	req, err := s.authedRequest(ctx)
	if err != nil {
		return MetaGlobalRecord{}, 0, err
	}
	resp, err := req.Get("/storage/meta/global")
	if err != nil {
		return MetaGlobalRecord{}, 0, fmt.Errorf("meta/global request: %w", err)
	}
	s.noteBackoff(resp)
	if err = mapStorageError(resp, "meta/global"); err != nil {
		return MetaGlobalRecord{}, 0, err
	}

	var env bso.Envelope
	if err = json.Unmarshal(resp.Body(), &env); err != nil {
		return MetaGlobalRecord{}, 0, fmt.Errorf("decode meta/global envelope: %w", err)
	}
	// meta/global is a cleartext BSO: the double-serialized payload parses
	// straight into the record, no decryption involved.
	var global MetaGlobalRecord
	if err = json.Unmarshal([]byte(env.Payload), &global); err != nil {
		return MetaGlobalRecord{}, 0, fmt.Errorf("decode meta/global payload: %w", err)
	}
	return global, env.Modified, nil
}

func (s *storageClient) PutMetaGlobal(ctx context.Context, global MetaGlobalRecord, xius models.ServerTimestamp) (models.ServerTimestamp, error) {
	payload, err := json.Marshal(global)
	if err != nil {
		return 0, fmt.Errorf("marshal meta/global: %w", err)
	}
	env := bso.Envelope{ID: "global", Payload: string(payload)}
	return s.putEnvelope(ctx, "/storage/meta/global", env, xius)
}

func (s *storageClient) FetchCryptoKeys(ctx context.Context) (bso.Envelope, error) {
	req, err := s.authedRequest(ctx)
	if err != nil {
		return bso.Envelope{}, err
	}
	resp, err := req.Get("/storage/crypto/keys")
	if err != nil {
		return bso.Envelope{}, fmt.Errorf("crypto/keys request: %w", err)
	}
	s.noteBackoff(resp)
	if err = mapStorageError(resp, "crypto/keys"); err != nil {
		return bso.Envelope{}, err
	}

	var env bso.Envelope
	if err = json.Unmarshal(resp.Body(), &env); err != nil {
		return bso.Envelope{}, fmt.Errorf("decode crypto/keys envelope: %w", err)
	}
	return env, nil
}

func (s *storageClient) PutCryptoKeys(ctx context.Context, env bso.Envelope, xius models.ServerTimestamp) (models.ServerTimestamp, error) {
	return s.putEnvelope(ctx, "/storage/crypto/keys", env, xius)
}

func (s *storageClient) putEnvelope(ctx context.Context, path string, env bso.Envelope, xius models.ServerTimestamp) (models.ServerTimestamp, error) {
	req, err := s.authedRequest(ctx)
	if err != nil {
		return 0, err
	}
	req.SetHeader("Content-Type", "application/json").SetBody(env)
	if xius > 0 {
		req.SetHeader(headerIfUnmodifiedSince, xius.String())
	}
	resp, err := req.Put(path)
	if err != nil {
		return 0, fmt.Errorf("put %s request: %w", path, err)
	}
	s.noteBackoff(resp)
	if err = mapStorageError(resp, path); err != nil {
		return 0, err
	}
	return responseTimestamp(resp)
}

func (s *storageClient) FetchCollection(ctx context.Context, colReq CollectionRequest) ([]bso.Envelope, models.ServerTimestamp, error) {
	req, err := s.authedRequest(ctx)
	if err != nil {
		return nil, 0, err
	}
	path := "/storage/" + colReq.Collection
	resp, err := req.SetQueryParams(colReq.queryParams()).Get(path)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s request: %w", colReq.Collection, err)
	}
	s.noteBackoff(resp)
	if err = mapStorageError(resp, path); err != nil {
		return nil, 0, err
	}

	var envelopes []bso.Envelope
	if err = json.Unmarshal(resp.Body(), &envelopes); err != nil {
		return nil, 0, fmt.Errorf("decode %s records: %w", colReq.Collection, err)
	}
	modified, err := responseTimestamp(resp)
	if err != nil {
		return nil, 0, err
	}
	return envelopes, modified, nil
}

func (s *storageClient) Post(ctx context.Context, collection string, body []byte, xius models.ServerTimestamp, batch *string, commit bool) (PostResponse, error) {
	req, err := s.authedRequest(ctx)
	if err != nil {
		return PostResponse{}, err
	}
	req.SetHeader("Content-Type", "application/json").
		SetHeader(headerIfUnmodifiedSince, xius.String()).
		SetBody(body)
	if batch != nil {
		req.SetQueryParam("batch", *batch)
	}
	if commit {
		req.SetQueryParam("commit", "true")
	}
	resp, err := req.Post("/storage/" + collection)
	if err != nil {
		return PostResponse{}, fmt.Errorf("post %s request: %w", collection, err)
	}
	s.noteBackoff(resp)

	out := PostResponse{Status: resp.StatusCode()}
	if out.Ok() {
		if err = json.Unmarshal(resp.Body(), &out.Result); err != nil {
			return PostResponse{}, fmt.Errorf("decode %s upload result: %w", collection, err)
		}
	}
	if ts, tsErr := responseTimestamp(resp); tsErr == nil {
		out.LastModified = ts
	}
	return out, nil
}

func (s *storageClient) DeleteCollection(ctx context.Context, collection string) error {
	req, err := s.authedRequest(ctx)
	if err != nil {
		return err
	}
	path := "/storage/" + collection
	resp, err := req.Delete(path)
	if err != nil {
		return fmt.Errorf("delete %s request: %w", collection, err)
	}
	s.noteBackoff(resp)
	return mapStorageError(resp, path)
}

func (s *storageClient) WipeServer(ctx context.Context) error {
	req, err := s.authedRequest(ctx)
	if err != nil {
		return err
	}
	resp, err := req.Delete("/storage")
	if err != nil {
		return fmt.Errorf("wipe server request: %w", err)
	}
	s.noteBackoff(resp)
	return mapStorageError(resp, "storage")
}

func (s *storageClient) BackoffUntil() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backoffUntil
}

// noteBackoff records X-Weave-Backoff / Retry-After hints. The longest
// deadline seen wins; callers read it through BackoffUntil.
func (s *storageClient) noteBackoff(resp *resty.Response) {
	secs := 0
	for _, header := range []string{headerWeaveBackoff, headerRetryAfter} {
		if v := resp.Header().Get(header); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > secs {
				secs = n
			}
		}
	}
	if secs == 0 {
		return
	}
	until := time.Now().Add(time.Duration(secs) * time.Second)
	s.mu.Lock()
	if until.After(s.backoffUntil) {
		s.backoffUntil = until
	}
	s.mu.Unlock()
	s.logger.Warn().Int("seconds", secs).Msg("storage server requested backoff")
}

// responseTimestamp reads X-Last-Modified, falling back to
// X-Weave-Timestamp, which every response carries.
func responseTimestamp(resp *resty.Response) (models.ServerTimestamp, error) {
	for _, header := range []string{headerLastModified, headerWeaveTimestamp} {
		if v := resp.Header().Get(header); v != "" {
			return models.ParseServerTimestamp(v)
		}
	}
	return 0, fmt.Errorf("response carries no server timestamp header")
}
