package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HeaderCacheGeneration marks responses that were served from the offline
// cache instead of the network. Its value is the generation that held it.
const HeaderCacheGeneration = "X-Tripwire-Cache"

// ResponseToEntry converts an HTTP response to a CacheEntry.
// The response body is restored after reading.
func ResponseToEntry(resp *http.Response) (*CacheEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &CacheEntry{
		Data:       body,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		CachedAt:   time.Now(),
	}, nil
}

// EntryToResponse rebuilds an HTTP response for req from a cache entry.
func EntryToResponse(entry *CacheEntry, req *http.Request) *http.Response {
	if entry == nil {
		return nil
	}

	header := entry.Headers.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(HeaderCacheGeneration, entry.Generation)
	header.Set("Age", strconv.Itoa(int(entry.Age().Seconds())))

	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
		Request:       req,
	}
}
