// Package config parses the AssetConfig schema: the JSON description of
// the secrets latchy is asked to unseal and deliver. It accepts a single
// secret object, a bare array of secrets, or the full {"secrets":[...]}
// shape, and normalizes all three into a canonical []AssetConfig.
package config

import (
	"encoding/json"
	"strings"

	"github.com/nearedge/latchy/errs"
)

// Ingress methods.
const (
	IngressStdin  = "STDIN"
	IngressFile   = "IFILE"
	IngressPipe   = "IPIPE"
	IngressEnvVar = "IENVVAR"
)

// Egress methods.
const (
	EgressStdout = "STDOUT"
	EgressFile   = "FILE"
	EgressPipe   = "PIPE"
)

// LockingClevis is the only supported locking method.
const LockingClevis = "CLEVIS"

// AssetConfig is one secret's worth of configuration: where its ciphertext
// comes from, how it is unsealed, and where its plaintext goes.
type AssetConfig struct {
	IMethod       string `json:"iMethod"`
	LockingMethod string `json:"lockingMethod"`
	In            string `json:"in"`
	EMethod       string `json:"eMethod"`
	Out           string `json:"out"`
	OutCount      int    `json:"outCount"`
}

type wrapped struct {
	Secrets []AssetConfig `json:"secrets"`
}

// Parse accepts a single secret object, a bare array of secrets, or the
// full {"secrets":[...]} shape and returns the normalized, validated list.
func Parse(data []byte) ([]AssetConfig, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errs.NewConfigInvalid("configuration is empty")
	}

	var list []AssetConfig
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, errs.NewConfigInvalid("invalid secrets array: %v", err)
		}
	case '{':
		var w wrapped
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, errs.NewConfigInvalid("invalid configuration object: %v", err)
		}
		if w.Secrets != nil {
			list = w.Secrets
		} else {
			var single AssetConfig
			if err := json.Unmarshal(data, &single); err != nil {
				return nil, errs.NewConfigInvalid("invalid secret object: %v", err)
			}
			list = []AssetConfig{single}
		}
	default:
		return nil, errs.NewConfigInvalid("configuration must start with '{' or '['")
	}

	for i := range list {
		if err := normalize(&list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func normalize(c *AssetConfig) error {
	switch c.IMethod {
	case IngressStdin, IngressFile, IngressPipe:
	case IngressEnvVar:
		// Accepted but not yet implemented: readIngress routes it to
		// errs.Unimplemented at build time rather than rejecting it here,
		// so it is distinguishable from a typo'd iMethod.
	default:
		return errs.NewConfigInvalid("unknown iMethod %q", c.IMethod)
	}

	switch c.LockingMethod {
	case LockingClevis:
	case "":
		c.LockingMethod = LockingClevis
	default:
		return errs.NewConfigInvalid("unknown lockingMethod %q", c.LockingMethod)
	}

	switch c.EMethod {
	case EgressStdout, EgressFile, EgressPipe:
	default:
		return errs.NewConfigInvalid("unknown eMethod %q", c.EMethod)
	}

	if c.IMethod != IngressStdin && c.In == "" {
		return errs.NewConfigInvalid("iMethod %q requires in", c.IMethod)
	}
	if c.EMethod != EgressStdout && c.Out == "" {
		return errs.NewConfigInvalid("eMethod %q requires out", c.EMethod)
	}

	if c.OutCount == 0 {
		c.OutCount = 1
	}
	if c.OutCount < 0 {
		return errs.NewConfigInvalid("outCount must be >= 0, got %d", c.OutCount)
	}
	return nil
}

// Implicit is the configuration used when stdin carries a JWE directly
// rather than a JSON configuration: a single CLEVIS secret read from
// stdin and written to stdout.
func Implicit() []AssetConfig {
	return []AssetConfig{{
		IMethod:       IngressStdin,
		LockingMethod: LockingClevis,
		EMethod:       EgressStdout,
		OutCount:      1,
	}}
}
