package tang

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"net/http"

	"github.com/nearedge/latchy/errs"
)

// caBundlePaths is the fixed, ordered list of distribution-specific CA
// bundle locations probed on first use. The first readable, parseable one
// wins.
var caBundlePaths = []string{
	"/etc/pki/tls/certs/ca-bundle.crt",
	"/etc/ssl/certs/ca-certificates.crt",
	"/etc/ssl/ca-bundle.pem",
	"/etc/ssl/cert.pem",
	"/usr/local/share/certs/ca-root-nss.crt",
	"/etc/pki/ca-trust/extracted/pem/tls-ca-bundle.pem",
}

// loadCABundle returns a pool built from the first path in paths that
// exists and contains at least one parseable PEM certificate. If none do,
// it returns a
// *errs.PermanentTangFailure: a missing trust store is never worth
// retrying.
func loadCABundle(paths []string) (*x509.CertPool, error) {
	for _, path := range paths {
		pemBytes, err := ioutil.ReadFile(path)
		if err != nil {
			continue
		}
		pool := x509.NewCertPool()
		if pool.AppendCertsFromPEM(pemBytes) {
			return pool, nil
		}
	}
	return nil, errs.NewPermanentTangFailure("", "no CA certificates")
}

func transportWithRoots(pool *x509.CertPool) *http.Transport {
	return &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: pool},
	}
}
