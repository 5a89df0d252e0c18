package rendezvous

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "info.txt")

	secret, err := NewSecret()
	require.NoError(t, err)

	h, err := Write(path, Info{Port: 54321, Secret: secret})
	require.NoError(t, err)
	defer h.Close()

	got, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, 54321, got.Port)
	require.Equal(t, secret, got.Secret)
}

func TestRead_AcceptsHexWithAndWithoutPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "info.txt")

	content := "7\n0x01 02 0xAB cd 00 00 00 00 00 00 00 00 00 00 00 00\n"
	require.NoError(t, writeRaw(path, content))

	info, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, 7, info.Port)
	require.Equal(t, []byte{0x01, 0x02, 0xAB, 0xCD, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, info.Secret)
}

func TestRead_WrongSecretLengthFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "info.txt")
	require.NoError(t, writeRaw(path, "1\n01 02 03\n"))

	_, err := Read(path)
	require.Error(t, err)
}

func TestHandleClose_RemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "info.txt")
	secret, err := NewSecret()
	require.NoError(t, err)

	h, err := Write(path, Info{Port: 1, Secret: secret})
	require.NoError(t, err)

	_, err = Read(path)
	require.NoError(t, err)

	require.NoError(t, h.Close())
	_, err = Read(path)
	require.Error(t, err)

	// closing twice is a no-op, mirroring best-effort delete-on-close
	require.NoError(t, h.Close())
}

func TestTrigger_CreatesThenDeletes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "info.txt")
	require.NoError(t, Trigger(path))

	_, err := Read(path + TriggerSuffix)
	require.Error(t, err) // gone by the time we look
}

func TestWatcher_ObservesTrigger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "info.txt")

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, Trigger(path))

	select {
	case <-w.Ready():
	case err := <-w.Errors():
		t.Fatalf("watcher error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trigger notification")
	}
}

func writeRaw(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
