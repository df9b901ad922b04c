package assets

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nearedge/latchy/errs"
	"github.com/nearedge/latchy/fingerprint"
	"github.com/nearedge/latchy/jose"
)

// defaultRequestInterval is the nominal sleep between Tang retry attempts.
const defaultRequestInterval = 15 * time.Second

// defaultGiveUpAfter is the wall-clock deadline after which recovery gives
// up and fails with SourceUnavailable.
const defaultGiveUpAfter = 5 * time.Hour

// tangRecoverer is the subset of *tang.Client the unsealer depends on.
// Depending on the interface rather than the concrete type lets tests
// drive the retry/give-up state machine with a stub that never makes a
// real network call.
type tangRecoverer interface {
	Recover(ctx context.Context, url, kid string, keyJSON []byte, query string) ([]byte, error)
}

// ClevisFile is the Clevis/Tang unsealer: it turns a Clevis-bound JWE into
// plaintext by driving the McCallum-Relyea blind-recovery exchange against
// a Tang server, then decrypting the payload with the recovered key.
type ClevisFile struct {
	env    *jose.Envelope
	client tangRecoverer

	requestInterval time.Duration
	giveUpAfter     time.Duration

	once      sync.Once
	done      chan struct{}
	buf       *SecretBuffer
	err       error
	cancelled atomic.Bool
}

// NewClevisFile reads the ingress bytes, parses and validates the JWE
// structure, and returns a ClevisFile ready to unseal it. Construction
// itself fails with SourceUnavailable if the input cannot be read or does
// not decompose into a valid Clevis envelope — the background unseal
// activity starts only once construction succeeds, and only if autostart
// is true.
func NewClevisFile(iMethod, path string, client tangRecoverer, autostart bool) (*ClevisFile, error) {
	data, err := readIngress(iMethod, path)
	if err != nil {
		return nil, err
	}
	return NewClevisFileFromBytes(data, client, autostart)
}

// NewClevisFileFromBytes builds a ClevisFile directly from an
// already-read JWE, for the implicit-mode case where the CLI has already
// consumed stdin to sniff its first byte and cannot hand ClevisFile a
// path to re-read it from.
func NewClevisFileFromBytes(data []byte, client tangRecoverer, autostart bool) (*ClevisFile, error) {
	env, err := jose.ParseJWE(data)
	if err != nil {
		return nil, errs.NewSourceUnavailable("%v", err)
	}

	cf := &ClevisFile{
		env:             env,
		client:          client,
		requestInterval: defaultRequestInterval,
		giveUpAfter:     defaultGiveUpAfter,
		done:            make(chan struct{}),
	}
	if autostart {
		cf.Start()
	}
	return cf, nil
}

// SetRetryPolicy overrides the default retry interval and give-up
// deadline. It must be called before Start; tests use it to exercise the
// retry-monotonicity and give-up properties without waiting hours.
func (c *ClevisFile) SetRetryPolicy(interval, giveUpAfter time.Duration) {
	c.requestInterval = interval
	c.giveUpAfter = giveUpAfter
}

// Start begins the background unseal activity if it has not already
// started.
func (c *ClevisFile) Start() {
	c.once.Do(func() {
		go c.unseal()
	})
}

func (c *ClevisFile) unseal() {
	defer close(c.done)

	plaintext, err := c.recover()
	if err != nil {
		c.err = err
		return
	}
	c.buf = NewSecretBuffer(plaintext)
}

// recover implements the unseal protocol of the same name in the
// original Clevis unsealer: generate an ephemeral key, blind it against
// the server's EPK, recover the server's contribution over Tang under the
// retry/give-up policy, unblind, and decrypt.
func (c *ClevisFile) recover() ([]byte, error) {
	curveName, err := jose.CurveName(c.env.EPKCurve)
	if err != nil {
		return nil, errs.NewSourceUnavailable("%v", err)
	}

	// Step 1: ephemeral keypair E.
	e, err := jose.GenerateEphemeralEC(curveName)
	if err != nil {
		return nil, errs.NewSourceUnavailable("error generating ephemeral key: %v", err)
	}
	defer jose.StripPrivate(e)

	// Step 2: X = ecdh(EPK, E).
	x, err := jose.Ecdh(c.env.EPK, e, false)
	if err != nil {
		return nil, errs.NewSourceUnavailable("error computing blinded point: %v", err)
	}

	xJSON, err := jose.MarshalPublic(x)
	if err != nil {
		return nil, errs.NewSourceUnavailable("error marshaling blinded point: %v", err)
	}

	query := ""
	if composed := fingerprint.Collect().Composed(); composed != "" {
		query = "id=" + composed
	}

	// Step 3-4: recover R from Tang, with retry/give-up.
	rBytes, err := c.recoverFromTang(xJSON, query)
	if err != nil {
		return nil, err
	}

	// Step 5: decode R, strip private components.
	r, err := jose.UnmarshalJWK(rBytes)
	if err != nil {
		return nil, errs.NewSourceUnavailable("error unmarshaling recovered key: %v", err)
	}
	jose.StripPrivate(r)

	// Step 6: Y = ecdh(E, active_server_key).
	y, err := jose.Ecdh(e, c.env.ActiveServerKey, false)
	if err != nil {
		return nil, errs.NewSourceUnavailable("error computing Y: %v", err)
	}

	// Step 7: UK = ecdh(R, Y, subtract=true).
	uk, err := jose.Ecdh(r, y, true)
	if err != nil {
		return nil, errs.NewSourceUnavailable("error computing unwrapping key: %v", err)
	}

	// Step 8: decrypt.
	plaintext, err := jose.DecryptPayload(uk, c.env)
	if err != nil {
		return nil, errs.NewSourceUnavailable("%v", err)
	}

	return plaintext, nil
}

func (c *ClevisFile) recoverFromTang(keyJSON []byte, query string) ([]byte, error) {
	deadline := time.Now().Add(c.giveUpAfter)

	for {
		if c.cancelled.Load() {
			return nil, errs.NewSourceUnavailable("cancelled during tang recovery")
		}

		ctx, cancel := context.WithCancel(context.Background())
		body, err := c.client.Recover(ctx, c.env.TangURL, c.env.KID, keyJSON, query)
		cancel()
		if err == nil {
			return body, nil
		}

		if _, ok := err.(*errs.PermanentTangFailure); ok {
			return nil, err
		}

		if time.Now().After(deadline) {
			return nil, errs.NewSourceUnavailable("waited too long")
		}

		time.Sleep(c.requestInterval)
	}
}

func (c *ClevisFile) IsReady() (bool, error) {
	select {
	case <-c.done:
		err := c.err
		c.err = nil
		return true, err
	default:
		return false, nil
	}
}

func (c *ClevisFile) GetAsset() (*SecretBuffer, error) {
	select {
	case <-c.done:
		err := c.err
		c.err = nil
		return c.buf, err
	default:
		return nil, nil
	}
}

func (c *ClevisFile) Destroy() {
	if c.buf != nil {
		c.buf.Destroy()
	}
}

func (c *ClevisFile) Cancel() {
	c.cancelled.Store(true)
}

func (c *ClevisFile) DumpInfo() string {
	return fmt.Sprintf(
		"ClevisFile(alg=%s enc=%s kid=%s url=%s epk=%s)",
		c.env.Alg, c.env.Enc, c.env.KID, c.env.TangURL, jose.PrettyPrint(c.env.EPK),
	)
}
