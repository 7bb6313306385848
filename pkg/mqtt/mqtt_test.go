package mqtt

import (
	"path/filepath"
	"testing"

	"github.com/benmeehan/pin-locator/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_RequiresBroker(t *testing.T) {
	s := NewMqttService(file.NewFileService())
	assert.Error(t, s.Initialize(Config{ClientID: "pinlog"}))
	assert.False(t, s.IsConnected())
	s.Disconnect(0)
}

func TestTLSConfig(t *testing.T) {
	fs := file.NewFileService()
	s := NewMqttService(fs)

	_, err := s.tlsConfig(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, fs.WriteFileRaw(bad, []byte("not a certificate")))
	_, err = s.tlsConfig(bad)
	assert.Error(t, err)
}
