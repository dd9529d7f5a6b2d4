package supabase

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Upload stores an object. Existing keys are rejected by the backend.
func (c *Client) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/storage/v1/object/" + objectPath(bucket, key),
		raw:    body,
		ctype:  contentType,
		header: http.Header{"Cache-Control": {"max-age=3600"}, "X-Upsert": {"false"}},
		token:  c.accessToken(ctx),
	}, nil)
}

// PublicURL returns the address of an object in a public bucket.
func (c *Client) PublicURL(bucket, key string) string {
	return c.baseURL + "/storage/v1/object/public/" + objectPath(bucket, key)
}

func objectPath(bucket, key string) string {
	segs := strings.Split(strings.Trim(key, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(segs, "/")
}
