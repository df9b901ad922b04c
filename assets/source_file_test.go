package assets

import (
	"os"
	"testing"
	"time"

	"github.com/nearedge/latchy/config"
	"github.com/nearedge/latchy/errs"
	"github.com/stretchr/testify/require"
)

func waitPlainFile(t *testing.T, f *PlainFile, timeout time.Duration) (*SecretBuffer, error) {
	t.Helper()
	select {
	case <-f.done:
		return f.GetAsset()
	case <-time.After(timeout):
		t.Fatal("plain file did not finish within timeout")
		return nil, nil
	}
}

func TestPlainFileTrimsTrailingNewlines(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/secret.txt"
	require.NoError(t, os.WriteFile(path, []byte("s3cr3t\n\n"), 0o600))

	f := NewPlainFile(config.IngressFile, path, true)
	buf, err := waitPlainFile(t, f, time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte("s3cr3t"), buf.Bytes())
}

func TestPlainFileNoTrailingNewlineUnaffected(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/secret.txt"
	require.NoError(t, os.WriteFile(path, []byte("s3cr3t"), 0o600))

	f := NewPlainFile(config.IngressFile, path, true)
	buf, err := waitPlainFile(t, f, time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte("s3cr3t"), buf.Bytes())
}

func TestPlainFileMissingPathFails(t *testing.T) {
	dir := t.TempDir()
	f := NewPlainFile(config.IngressFile, dir+"/does-not-exist", true)
	_, err := waitPlainFile(t, f, time.Second)
	require.Error(t, err)
}

func TestPlainFileCancelBeforeStart(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/secret.txt"
	require.NoError(t, os.WriteFile(path, []byte("s3cr3t"), 0o600))

	f := NewPlainFile(config.IngressFile, path, false)
	f.Cancel()
	f.Start()

	_, err := waitPlainFile(t, f, time.Second)
	require.Error(t, err)
}

func TestPlainFileEnvVarIMethodIsUnimplemented(t *testing.T) {
	f := NewPlainFile(config.IngressEnvVar, "SOME_VAR", true)
	_, err := waitPlainFile(t, f, time.Second)
	require.Error(t, err)
	require.IsType(t, &errs.Unimplemented{}, err)
}

func TestPlainFileDestroyIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/secret.txt"
	require.NoError(t, os.WriteFile(path, []byte("s3cr3t"), 0o600))

	f := NewPlainFile(config.IngressFile, path, true)
	buf, err := waitPlainFile(t, f, time.Second)
	require.NoError(t, err)

	f.Destroy()
	require.True(t, buf.Destroyed())
	require.NotPanics(t, f.Destroy)
}
