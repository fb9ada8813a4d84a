package rest

import (
	"context"
	"fmt"
	"net/http"
)

// Upload stores an object through the platform's storage API. The object is
// publicly readable afterwards; buckets are provisioned server-side.
func (c *Client) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	url := c.baseURL + "/storage/v1/object/" + bucket + "/" + name
	resp, err := c.doWith(ctx, http.MethodPost, url, data, contentType, "")
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, name, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return fmt.Errorf("upload %s/%s: %w", bucket, name, statusError(resp))
	}
	drain(resp)
	c.log.Debug(ctx, "object stored", "bucket", bucket, "name", name, "bytes", len(data))
	return nil
}

// PublicURL returns the unauthenticated download URL for an uploaded object.
func (c *Client) PublicURL(bucket, name string) string {
	return c.baseURL + "/storage/v1/object/public/" + bucket + "/" + name
}
