package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/savesync/internal/remote"
	"github.com/TheMichaelB/savesync/test/testutil"
)

type fakeTransport struct {
	response map[string]interface{}
	err      error

	lastPath    string
	lastPayload interface{}
	token       string
}

func (f *fakeTransport) PostJSON(ctx context.Context, path string, payload interface{}) (map[string]interface{}, error) {
	f.lastPath = path
	f.lastPayload = payload
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeTransport) SetToken(token string) { f.token = token }

func newAuthService(t *testing.T, transport *fakeTransport) (*Service, *remote.Gate, string) {
	t.Helper()

	tokenFile := filepath.Join(t.TempDir(), "token.json")
	gate := remote.NewGate()
	svc := NewService(transport, gate, tokenFile, testutil.NewTestLogger())
	return svc, gate, tokenFile
}

func TestLogin(t *testing.T) {
	transport := &fakeTransport{response: map[string]interface{}{
		"token":      "session-abc",
		"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
	}}
	svc, gate, tokenFile := newAuthService(t, transport)

	require.NoError(t, svc.Login(context.Background(), "player@example.com", "hunter2"))

	assert.Equal(t, "/api/v1/auth/login", transport.lastPath)
	assert.Equal(t, "session-abc", transport.token)
	assert.Equal(t, "session-abc", svc.Token())
	assert.True(t, svc.Authenticated())
	assert.True(t, gate.Ready())

	// Token persisted with owner-only permissions.
	info, err := os.Stat(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoginRequiresCredentials(t *testing.T) {
	svc, _, _ := newAuthService(t, &fakeTransport{})

	assert.Error(t, svc.Login(context.Background(), "", "pw"))
	assert.Error(t, svc.Login(context.Background(), "a@b.c", ""))
}

func TestLoginMissingToken(t *testing.T) {
	transport := &fakeTransport{response: map[string]interface{}{"ok": true}}
	svc, gate, _ := newAuthService(t, transport)

	assert.Error(t, svc.Login(context.Background(), "a@b.c", "pw"))
	assert.False(t, gate.Ready())
}

func TestLoginTransportError(t *testing.T) {
	transport := &fakeTransport{err: errors.New("connection refused")}
	svc, gate, _ := newAuthService(t, transport)

	assert.Error(t, svc.Login(context.Background(), "a@b.c", "pw"))
	assert.False(t, gate.Ready())
	assert.False(t, svc.Authenticated())
}

func TestRestoreSavedToken(t *testing.T) {
	transport := &fakeTransport{response: map[string]interface{}{
		"token":      "session-xyz",
		"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
	}}
	svc, _, tokenFile := newAuthService(t, transport)
	require.NoError(t, svc.Login(context.Background(), "player@example.com", "hunter2"))

	// A fresh service over the same token file resumes the session.
	freshTransport := &fakeTransport{}
	gate := remote.NewGate()
	fresh := NewService(freshTransport, gate, tokenFile, testutil.NewTestLogger())

	assert.True(t, fresh.Authenticated())
	assert.Equal(t, "session-xyz", freshTransport.token)
	assert.True(t, gate.Ready())
}

func TestExpiredTokenNotRestored(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(tokenFile, []byte(`{
		"token": "stale",
		"email": "player@example.com",
		"expires_at": "2020-01-01T00:00:00Z"
	}`), 0600))

	gate := remote.NewGate()
	svc := NewService(&fakeTransport{}, gate, tokenFile, testutil.NewTestLogger())

	assert.False(t, svc.Authenticated())
	assert.Empty(t, svc.Token())
	assert.False(t, gate.Ready())
}

func TestLogout(t *testing.T) {
	transport := &fakeTransport{response: map[string]interface{}{"token": "session-abc"}}
	svc, gate, tokenFile := newAuthService(t, transport)
	require.NoError(t, svc.Login(context.Background(), "player@example.com", "hunter2"))

	require.NoError(t, svc.Logout())

	assert.False(t, svc.Authenticated())
	assert.False(t, gate.Ready())
	assert.Empty(t, transport.token)

	_, err := os.Stat(tokenFile)
	assert.True(t, os.IsNotExist(err))

	// Logging out twice is fine.
	assert.NoError(t, svc.Logout())
}
