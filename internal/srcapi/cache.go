package srcapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"speedrun-rescue/internal/runstore"
)

// ErrNotFound marks a resource the API reported as absent. The cache stores
// it as a zero-byte entry so the absence is never re-queried.
var ErrNotFound = errors.New("resource not found")

// ResponseCache memoizes raw API responses on disk, one file per
// (endpoint, parameter set). Keys are deterministic: url.Values.Encode
// sorts parameters, so request order never affects hits.
type ResponseCache struct {
	dir string
}

func NewResponseCache(dir string) *ResponseCache {
	return &ResponseCache{dir: dir}
}

func (c *ResponseCache) entryPath(endpoint string, params url.Values) string {
	name := url.QueryEscape(endpoint) + "_q_" + params.Encode() + ".json"
	return filepath.Join(c.dir, name)
}

// GetOrFetch returns the stored response for (endpoint, params) if present,
// otherwise invokes fetch, stores its result, and returns it. A zero-byte
// entry is a cached "not found" and is returned as ErrNotFound without
// touching the network. Fetch failures other than ErrNotFound propagate
// uncached. A stored entry that is not valid JSON is treated as a miss and
// rewritten, never served as data.
func (c *ResponseCache) GetOrFetch(endpoint string, params url.Values, fetch func() ([]byte, error)) ([]byte, error) {
	path := c.entryPath(endpoint, params)

	if data, err := os.ReadFile(path); err == nil {
		if len(data) == 0 {
			return nil, ErrNotFound
		}
		if json.Valid(data) {
			return data, nil
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read cache entry %s: %w", path, err)
	}

	data, err := fetch()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if writeErr := runstore.WriteBytes(path, []byte{}); writeErr != nil {
				return nil, writeErr
			}
			return nil, err
		}
		return nil, err
	}

	if err := runstore.WriteBytes(path, data); err != nil {
		return nil, err
	}
	return data, nil
}
