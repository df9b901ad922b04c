package tang

import (
	"context"
	"encoding/pem"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nearedge/latchy/errs"
)

// newTestServer starts a TLS test server and writes its certificate to a
// temp CA bundle file, returning a Client configured to trust only it.
func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewTLSServer(handler)

	dir := t.TempDir()
	bundle := filepath.Join(dir, "ca-bundle.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, ioutil.WriteFile(bundle, pemBytes, 0o600))

	return srv, NewWithCABundlePaths([]string{bundle})
}

func TestRecoverSuccess(t *testing.T) {
	srv, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rec/kid1", r.URL.Path)
		require.Equal(t, "id=abc", r.URL.RawQuery)
		require.Equal(t, "application/jwk+json", r.Header.Get("Content-Type"))
		body, _ := ioutil.ReadAll(r.Body)
		require.Equal(t, "the-key", string(body))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("recovered"))
	})
	defer srv.Close()

	got, err := client.Recover(context.Background(), srv.URL, "kid1", []byte("the-key"), "id=abc")
	require.NoError(t, err)
	require.Equal(t, "recovered", string(got))
}

func TestRecoverPermanentFailureOn406(t *testing.T) {
	srv, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotAcceptable)
	})
	defer srv.Close()

	_, err := client.Recover(context.Background(), srv.URL, "kid1", []byte("x"), "")
	require.Error(t, err)
	require.IsType(t, &errs.PermanentTangFailure{}, err)
}

func TestRecoverPermanentFailureOn418(t *testing.T) {
	srv, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	defer srv.Close()

	_, err := client.Recover(context.Background(), srv.URL, "kid1", []byte("x"), "")
	require.Error(t, err)
	require.IsType(t, &errs.PermanentTangFailure{}, err)
}

func TestRecoverTransientFailureOnServerError(t *testing.T) {
	srv, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer srv.Close()

	_, err := client.Recover(context.Background(), srv.URL, "kid1", []byte("x"), "")
	require.Error(t, err)
	require.IsType(t, &errs.TransientTangFailure{}, err)
}

func TestRecoverTransientFailureOnTransportError(t *testing.T) {
	srv, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // close immediately: any request now fails at the transport

	_, err := client.Recover(context.Background(), srv.URL, "kid1", []byte("x"), "")
	require.Error(t, err)
	require.IsType(t, &errs.TransientTangFailure{}, err)
}

func TestRecoverTransientFailureOnCancelledContext(t *testing.T) {
	srv, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Recover(ctx, srv.URL, "kid1", []byte("x"), "")
	require.Error(t, err)
	require.IsType(t, &errs.TransientTangFailure{}, err)
}

func TestRecoverPermanentFailureOnMissingCABundle(t *testing.T) {
	client := NewWithCABundlePaths([]string{filepath.Join(os.TempDir(), "does-not-exist.pem")})
	_, err := client.Recover(context.Background(), "https://tang.example", "kid1", []byte("x"), "")
	require.Error(t, err)
	require.IsType(t, &errs.PermanentTangFailure{}, err)
}
