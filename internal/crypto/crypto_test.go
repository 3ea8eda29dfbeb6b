package crypto

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func newKeyHex(t *testing.T) string {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	return hex.EncodeToString(ethcrypto.FromECDSA(key))
}

func TestEncryptDecryptKey(t *testing.T) {
	keyHex := newKeyHex(t)

	blob, err := EncryptKey("0x"+keyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	var kf keyFile
	if err := json.Unmarshal(blob, &kf); err != nil {
		t.Fatal(err)
	}
	wantAddr, _ := AddressOf(keyHex)
	if kf.Address != wantAddr {
		t.Errorf("stored address = %s, want %s", kf.Address, wantAddr)
	}
	if strings.Contains(string(blob), keyHex) {
		t.Fatal("key file leaks the plaintext key")
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != keyHex {
		t.Errorf("got %s, want %s", got, keyHex)
	}

	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Error("wrong password must fail")
	}
}

func TestEncryptKeyRejects(t *testing.T) {
	if _, err := EncryptKey(newKeyHex(t), ""); err == nil {
		t.Error("empty password accepted")
	}
	if _, err := EncryptKey("zz", "pw"); err == nil {
		t.Error("bad hex accepted")
	}
}

func TestLoadKey(t *testing.T) {
	keyHex := newKeyHex(t)

	got, err := LoadKey(KeySource{RawKey: "0x" + keyHex, KeyFile: "/does/not/exist"})
	if err != nil || got != keyHex {
		t.Errorf("raw key: got %q, %v", got, err)
	}

	blob, err := EncryptKey(keyHex, "pw")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "wallet.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = LoadKey(KeySource{KeyFile: path, Password: "pw"})
	if err != nil || got != keyHex {
		t.Errorf("key file: got %q, %v", got, err)
	}

	if _, err := LoadKey(KeySource{}); !errors.Is(err, ErrNoKey) {
		t.Errorf("empty source: got %v, want ErrNoKey", err)
	}
}

func TestRequestSignerVector(t *testing.T) {
	s := NewRequestSigner("secret", 0)
	h := s.HeadersAt("POST", "/api/markets", []byte(`{"marketId":1}`), 1_700_000_000)

	if h[HeaderTimestamp] != "1700000000" {
		t.Errorf("timestamp = %s", h[HeaderTimestamp])
	}
	if want := "YxXt7a4T9Ue5ugYm42kNgNnjn7zs/zSIEUETQCNjLrg="; h[HeaderSignature] != want {
		t.Errorf("signature = %s, want %s", h[HeaderSignature], want)
	}
}

func TestRequestSignerVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewRequestSigner("secret", time.Minute)
	s.now = func() time.Time { return now }

	body := []byte(`{"marketId":1}`)
	h := s.Headers("POST", "/api/markets", body)
	ts, sig := h[HeaderTimestamp], h[HeaderSignature]

	tests := []struct {
		name    string
		body    []byte
		ts, sig string
		at      time.Time
		want    error
	}{
		{"valid", body, ts, sig, now, nil},
		{"small drift", body, ts, sig, now.Add(30 * time.Second), nil},
		{"missing", body, "", "", now, ErrMissingSignature},
		{"stale", body, ts, sig, now.Add(2 * time.Minute), ErrStaleSignature},
		{"future", body, ts, sig, now.Add(-2 * time.Minute), ErrStaleSignature},
		{"garbled timestamp", body, "abc", sig, now, ErrStaleSignature},
		{"tampered body", []byte(`{"marketId":2}`), ts, sig, now, ErrBadSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.now = func() time.Time { return tt.at }
			err := s.Verify("POST", "/api/markets", tt.body, tt.ts, tt.sig)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRequestSignerStringRedacts(t *testing.T) {
	for _, secret := range []string{"supersecretvalue", "s3cre", "ab"} {
		s := NewRequestSigner(secret, 0)
		got := fmt.Sprint(s)
		if got != "RequestSigner{secret=****}" {
			t.Errorf("String = %s", got)
		}
		if strings.Contains(got, secret[:2]) {
			t.Errorf("String leaks part of %q: %s", secret, got)
		}
	}
}
