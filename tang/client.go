// Package tang implements the TangClient: an HTTP/1.1 client for a Tang
// server's /rec recovery endpoint. It POSTs a blinded EC public key and
// classifies the response as success, a permanent failure, or a transient
// one, leaving retry policy to the caller (the AssetSource unseal loop).
package tang

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"sync"

	"github.com/nearedge/latchy/errs"
)

// Client is a TangClient. The zero value is not usable; construct with
// New. A Client is safe for concurrent use and lazily resolves its CA
// bundle exactly once, on the first Recover call.
type Client struct {
	once       sync.Once
	httpc      *http.Client
	initErr    error
	caPaths    []string
	Compatible bool
}

// New returns a Client that will probe the standard CA bundle paths.
func New() *Client {
	return &Client{caPaths: caBundlePaths}
}

// NewWithCABundlePaths returns a Client that probes a caller-supplied
// ordered list of CA bundle paths instead of the standard one. Tests use
// this to exercise the "no CA bundle found" permanent failure without
// depending on the host's actual trust store.
func NewWithCABundlePaths(paths []string) *Client {
	return &Client{caPaths: paths}
}

func (c *Client) init() {
	pool, err := loadCABundle(c.caPaths)
	if err != nil {
		c.initErr = err
		return
	}
	c.httpc = &http.Client{Transport: transportWithRoots(pool)}
}

// Recover POSTs keyJSON to {url}/rec/{kid}[?query] and classifies the
// response. A 200 (or, when Compatible is set, any 2xx) returns its body;
// 406/418 are permanent failures; anything else, including a transport
// error or a cancelled context, is a transient failure that the caller
// may retry.
func (c *Client) Recover(ctx context.Context, url, kid string, keyJSON []byte, query string) ([]byte, error) {
	c.once.Do(c.init)
	if c.initErr != nil {
		return nil, c.initErr
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.NewTransientTangFailure(url, "cancelled before request: %v", err)
	}

	endpoint := url + "/rec/" + kid
	if query != "" {
		endpoint += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(keyJSON))
	if err != nil {
		return nil, errs.NewTransientTangFailure(url, "error building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/jwk+json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.NewTransientTangFailure(url, "cancelled: %v", ctx.Err())
		}
		return nil, errs.NewTransientTangFailure(url, "%v", err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewTransientTangFailure(url, "error reading response body: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case c.Compatible && resp.StatusCode >= 200 && resp.StatusCode < 300:
		// --compatible: some Tang server versions return other 2xx codes
		// (e.g. 201) from /rec; treat the whole family as success.
		return body, nil
	case resp.StatusCode == http.StatusNotAcceptable, resp.StatusCode == http.StatusTeapot: // 406, 418
		return nil, errs.NewPermanentTangFailure(url, "http status %d: %s", resp.StatusCode, body)
	default:
		return nil, errs.NewTransientTangFailure(url, "http status %d", resp.StatusCode)
	}
}
