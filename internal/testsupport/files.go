package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const clientSecretsJSON = `{"installed":{"client_id":"test-client.apps.googleusercontent.com","client_secret":"test-secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`

// WriteFile creates path, and its parent directories, holding size filler
// bytes. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	writeBytes(t, path, bytes.Repeat([]byte{0x42}, int(size)), 0o644)
}

// WriteClientSecrets writes an installed-app OAuth client secrets file.
func WriteClientSecrets(t testing.TB, path string) {
	t.Helper()
	writeBytes(t, path, []byte(clientSecretsJSON), 0o600)
}

// WriteToken writes a stored YouTube token that carries a refresh token.
func WriteToken(t testing.TB, path string) {
	t.Helper()
	writeBytes(t, path, []byte(`{"access_token":"abc","token_type":"Bearer","refresh_token":"def"}`), 0o600)
}

func writeBytes(t testing.TB, path string, data []byte, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
