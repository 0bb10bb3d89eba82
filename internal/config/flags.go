package config

import (
	"errors"
	"flag"
	"net/url"
	"time"
)

// SyncURL holds a validated storage-server base URL.
// It implements the flag.Value interface.
type SyncURL struct {
	URL string
}

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a storage server base URL (e.g. "https://sync.example.com/1.5/12345")
//	-d local database DSN (SQLite file path)
//	-c/-config json file path with configs
//	-sync-key base64url-encoded root sync key
//	-authorization Authorization header value for storage requests
//	-device-name device name reported to the server
//	-request-timeout request timeout (e.g., "30s", "1m")
//	-sync-interval background sync interval (e.g., "5m", "1h")
func ParseFlags() *StructuredConfig {
	var baseURL SyncURL
	var databaseDSN string
	var jsonConfigPath string
	var syncKey string
	var authorization string
	var deviceName string
	var requestTimeout time.Duration
	var syncInterval time.Duration

	flag.Var(&baseURL, "a", "Storage server base URL")
	flag.StringVar(&databaseDSN, "d", "", "Local database DSN")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.StringVar(&syncKey, "sync-key", "", "Root sync key (base64url)")
	flag.StringVar(&authorization, "authorization", "", "Authorization header value")
	flag.StringVar(&deviceName, "device-name", "", "Device name")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Background sync interval (e.g., 5m, 1h)")

	flag.Parse()

	return &StructuredConfig{
		App: App{
			SyncKey:    syncKey,
			DeviceName: deviceName,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Sync: Sync{
			BaseURL:        baseURL.String(),
			Authorization:  authorization,
			RequestTimeout: requestTimeout,
		},
		Workers: Workers{
			SyncInterval: syncInterval,
		},
		JSONFilePath: jsonConfigPath,
	}
}

// String returns the validated base URL, or the empty string when unset.
func (u *SyncURL) String() string {
	return u.URL
}

// Set parses the input string as an absolute http(s) URL and populates the
// SyncURL. It returns an error if the scheme is missing or not http/https.
func (u *SyncURL) Set(s string) error {
	parsed, err := url.Parse(s)
	if err != nil {
		return err
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("need an absolute http(s) URL")
	}

	if parsed.Host == "" {
		return errors.New("URL is missing a host")
	}

	u.URL = s
	return nil
}
