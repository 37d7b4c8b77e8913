package preference

import (
	"os"
	"path/filepath"
	"testing"

	"astroremote/backend/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndPersist(t *testing.T) {
	dir := t.TempDir()

	s, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), s.Settings())
	assert.Len(t, s.JwtSecret(), 64)
	_, ok := s.PairedDevice()
	assert.False(t, ok)

	require.NoError(t, s.SavePairedDevice(model.PairedDevice{Address: "AA:BB:CC:DD:EE:FF", Name: "ILCE-7M4"}))
	require.NoError(t, s.SetAutoConnect(false))
	require.NoError(t, s.SetBrightness(40))

	reloaded, err := Load(dir, "")
	require.NoError(t, err)
	d, ok := reloaded.PairedDevice()
	require.True(t, ok)
	assert.Equal(t, "ILCE-7M4", d.Name)
	assert.False(t, reloaded.AutoConnect())
	assert.Equal(t, uint8(40), reloaded.Brightness())
	assert.Equal(t, s.JwtSecret(), reloaded.JwtSecret())

	require.NoError(t, reloaded.ClearPairedDevice())
	_, ok = reloaded.PairedDevice()
	assert.False(t, ok)
}

func TestLoadUsesSecretFile(t *testing.T) {
	dir := t.TempDir()
	secretFile := filepath.Join(dir, "jwt.secret")
	require.NoError(t, os.WriteFile(secretFile, []byte("s3cret\n"), 0o600))

	s, err := Load(dir, secretFile)
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), s.JwtSecret())
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("{"), 0o600))

	_, err := Load(dir, "")
	assert.Error(t, err)
}

func TestFailedSaveKeepsPreviousSettings(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir, "")
	require.NoError(t, err)
	require.NoError(t, s.SavePairedDevice(model.PairedDevice{Address: "AA:BB:CC:DD:EE:FF"}))

	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	s.dir = filepath.Join(blocker, "config")

	assert.Error(t, s.SetAutoConnect(false))
	assert.Error(t, s.SetBrightness(7))
	assert.Error(t, s.SavePairedDevice(model.PairedDevice{Address: "11:22:33:44:55:66"}))
	assert.Error(t, s.ClearPairedDevice())

	assert.True(t, s.AutoConnect())
	assert.Equal(t, model.DefaultBrightness, s.Brightness())
	d, ok := s.PairedDevice()
	require.True(t, ok)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", d.Address)
}
