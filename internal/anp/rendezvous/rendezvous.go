// Package rendezvous reads and writes the local discovery file a server
// worker deposits so a client worker on the same host can find its port and
// shared secret without any prior configuration.
package rendezvous

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SecretLen is the fixed length in bytes of the shared secret.
const SecretLen = 16

// TriggerSuffix names the sibling file created-then-deleted to announce
// that the rendezvous file is ready to be read.
const TriggerSuffix = ".trigger"

// Info is the parsed contents of a rendezvous file.
type Info struct {
	Port   int
	Secret []byte
}

// NewSecret generates a cryptographically random SecretLen-byte secret.
func NewSecret() ([]byte, error) {
	b := make([]byte, SecretLen)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("rendezvous: generating secret: %w", err)
	}
	return b, nil
}

// Handle represents ownership of a written rendezvous file. Go has no
// portable delete-on-close/share-delete primitive, so this emulates it
// best-effort: the file is written with owner-only permissions and Close
// removes it. The residual race (a crash between Write and Close leaves the
// file behind) is the same one the source's delete-on-close semantics only
// mitigate, not eliminate.
type Handle struct {
	path string
}

// Path returns the rendezvous file's location.
func (h *Handle) Path() string { return h.path }

// Close removes the rendezvous file. Best-effort: a missing file is not an
// error, since another process or a prior crash-cleanup may have removed it.
func (h *Handle) Close() error {
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Write atomically deposits the rendezvous file at path (port decimal on
// line 1, space-separated hex secret tokens on line 2) and returns a Handle
// whose Close removes it. "Atomically" means write-to-temp-then-rename
// within the same directory, so a concurrent reader never observes a
// partial file.
func Write(path string, info Info) (*Handle, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("rendezvous: creating directory: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d\n", info.Port)
	tokens := make([]string, len(info.Secret))
	for i, b := range info.Secret {
		tokens[i] = fmt.Sprintf("%02x", b)
	}
	sb.WriteString(strings.Join(tokens, " "))
	sb.WriteByte('\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o600); err != nil {
		return nil, fmt.Errorf("rendezvous: writing file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("rendezvous: installing file: %w", err)
	}
	return &Handle{path: path}, nil
}

// Trigger creates then immediately deletes path's sibling trigger file, to
// signal readiness to anything watching the directory.
func Trigger(path string) error {
	tp := path + TriggerSuffix
	f, err := os.OpenFile(tp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("rendezvous: creating trigger file: %w", err)
	}
	f.Close()
	if err := os.Remove(tp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rendezvous: removing trigger file: %w", err)
	}
	return nil
}

// Read parses the rendezvous file at path. Both "0xNN" and "NN" hex token
// forms are accepted on line 2.
func Read(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("rendezvous: opening file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return Info{}, fmt.Errorf("rendezvous: missing port line")
	}
	port, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		return Info{}, fmt.Errorf("rendezvous: malformed port: %w", err)
	}

	if !sc.Scan() {
		return Info{}, fmt.Errorf("rendezvous: missing secret line")
	}
	fields := strings.Fields(sc.Text())
	if len(fields) != SecretLen {
		return Info{}, fmt.Errorf("rendezvous: expected %d secret bytes, got %d", SecretLen, len(fields))
	}
	secret := make([]byte, SecretLen)
	for i, tok := range fields {
		tok = strings.TrimPrefix(strings.ToLower(tok), "0x")
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return Info{}, fmt.Errorf("rendezvous: malformed secret token %q: %w", fields[i], err)
		}
		secret[i] = byte(v)
	}

	if err := sc.Err(); err != nil {
		return Info{}, fmt.Errorf("rendezvous: reading file: %w", err)
	}
	return Info{Port: port, Secret: secret}, nil
}
