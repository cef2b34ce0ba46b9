package sshconn

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

func TestBaseArgsIncludesFixedBundle(t *testing.T) {
	opts := Options{User: "dev", Host: "203.0.113.10", KeyPath: "/home/dev/.ssh/spuff"}
	args := opts.baseArgs()
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"StrictHostKeyChecking=accept-new",
		"UserKnownHostsFile=/dev/null",
		"LogLevel=ERROR",
		"BatchMode=yes",
		"-p 22",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected base args to contain %q, got %q", want, joined)
		}
	}
}

func TestOptionsDefaultsPortTo22(t *testing.T) {
	opts := Options{}
	if opts.port() != 22 {
		t.Errorf("expected default port 22, got %d", opts.port())
	}
	opts.Port = 2222
	if opts.port() != 2222 {
		t.Errorf("expected explicit port 2222, got %d", opts.port())
	}
}

func TestTargetFormatsUserAtHost(t *testing.T) {
	opts := Options{User: "dev", Host: "203.0.113.10"}
	if got := opts.target(); got != "dev@203.0.113.10" {
		t.Errorf("target() = %q", got)
	}
}

func TestMapErrorDetectsPassphraseNeeded(t *testing.T) {
	stderr := "Permission denied (publickey).\nload pubkey: passphrase required"
	err := mapError(errors.New("exit status 255"), stderr)
	var pe *PassphraseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PassphraseError, got %T: %v", err, err)
	}
}

func TestMapErrorOtherFailuresIncludeStderrTail(t *testing.T) {
	stderr := "line1\nline2\nconnection refused"
	err := mapError(errors.New("exit status 1"), stderr)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected stderr tail in error, got %v", err)
	}
}

func TestMapErrorNilIsNil(t *testing.T) {
	if mapError(nil, "") != nil {
		t.Error("expected nil error to stay nil")
	}
}

func TestLastLinesTruncates(t *testing.T) {
	s := "a\nb\nc\nd\ne\n"
	got := lastLines(s, 2)
	if got != "d\ne" {
		t.Errorf("lastLines() = %q", got)
	}
}

func TestLastLinesShorterThanLimit(t *testing.T) {
	s := "only one line"
	if got := lastLines(s, 5); got != s {
		t.Errorf("lastLines() = %q, want %q", got, s)
	}
}

func TestWaitTCPSucceedsAgainstOpenListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	err = WaitTCP(context.Background(), "127.0.0.1", addr.Port, 5*time.Second)
	if err != nil {
		t.Fatalf("WaitTCP() error = %v", err)
	}
}

func TestWaitTCPTimesOutWhenNothingListens(t *testing.T) {
	err := WaitTCP(context.Background(), "127.0.0.1", 1, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected WaitTCP to time out against a closed port")
	}
}

func TestKeyNeedsPassphraseDetectsEncryptedKey(t *testing.T) {
	dir := t.TempDir()

	plainPath := filepath.Join(dir, "plain")
	writeTestKey(t, plainPath, "")
	needs, err := KeyNeedsPassphrase(plainPath)
	if err != nil {
		t.Fatalf("KeyNeedsPassphrase(plain) error = %v", err)
	}
	if needs {
		t.Error("expected unencrypted key to not need a passphrase")
	}

	encPath := filepath.Join(dir, "enc")
	writeTestKey(t, encPath, "correct horse battery staple")
	needs, err = KeyNeedsPassphrase(encPath)
	if err != nil {
		t.Fatalf("KeyNeedsPassphrase(encrypted) error = %v", err)
	}
	if !needs {
		t.Error("expected encrypted key to need a passphrase")
	}
}

// writeTestKey generates a throwaway ed25519 key, optionally encrypting it
// with passphrase, and writes the PEM-encoded private key to path.
func writeTestKey(t *testing.T, path, passphrase string) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("write key: %v", err)
	}
}
