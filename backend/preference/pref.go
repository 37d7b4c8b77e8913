package preference

import (
	"crypto/rand"
	b64 "encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"astroremote/backend/model"

	log "github.com/sirupsen/logrus"
)

const fileName = "settings.json"

func randomJwtSecret(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("can't read random bytes: %v", err)
	}
	return b
}

// Store is the settings collaborator: paired device, auto-connect flag and
// display brightness, persisted as JSON in the config directory.
type Store struct {
	mu   sync.Mutex
	dir  string
	conf model.ApplicationConfig
}

// Load reads <dir>/settings.json, falling back to defaults when it is
// missing. A JWT secret is generated and saved on first use unless one is
// read from jwtSecretFile.
func Load(dir string, jwtSecretFile string) (*Store, error) {
	s := &Store{dir: dir, conf: model.ApplicationConfig{Settings: model.DefaultSettings()}}

	raw, err := os.ReadFile(s.path())
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &s.conf); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
		log.Infof("no settings file in %s, using defaults", dir)
	default:
		return nil, err
	}

	if len(jwtSecretFile) > 0 {
		secret, err := os.ReadFile(jwtSecretFile)
		if err != nil {
			return nil, err
		}
		s.conf.JwtData = []byte(strings.TrimSpace(string(secret)))
		return s, nil
	}
	if len(s.conf.JwtSecretData) == 0 {
		s.conf.JwtData = randomJwtSecret(64)
		return s, s.save()
	}
	s.conf.JwtData, err = b64.StdEncoding.DecodeString(s.conf.JwtSecretData)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) path() string {
	return filepath.Join(s.dir, fileName)
}

func (s *Store) save() error {
	s.conf.JwtSecretData = b64.StdEncoding.EncodeToString(s.conf.JwtData)
	raw, err := json.MarshalIndent(s.conf, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path())
}

// updateLocked applies fn and saves, restoring the previous settings when
// the file can't be written.
func (s *Store) updateLocked(fn func(settings *model.Settings)) error {
	previous := s.conf.Settings
	fn(&s.conf.Settings)
	if err := s.save(); err != nil {
		s.conf.Settings = previous
		return err
	}
	return nil
}

func (s *Store) Settings() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conf.Settings
}

func (s *Store) JwtSecret() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conf.JwtData
}

func (s *Store) PairedDevice() (model.PairedDevice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := model.PairedDevice{Address: s.conf.DeviceAddress, Name: s.conf.DeviceName}
	return d, len(d.Address) > 0
}

func (s *Store) SavePairedDevice(d model.PairedDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conf.DeviceAddress == d.Address && s.conf.DeviceName == d.Name {
		return nil
	}
	return s.updateLocked(func(settings *model.Settings) {
		settings.DeviceAddress = d.Address
		settings.DeviceName = d.Name
	})
}

func (s *Store) ClearPairedDevice() error {
	return s.SavePairedDevice(model.PairedDevice{})
}

func (s *Store) AutoConnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conf.AutoConnect
}

func (s *Store) SetAutoConnect(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(func(settings *model.Settings) { settings.AutoConnect = enabled })
}

func (s *Store) Brightness() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conf.Brightness
}

func (s *Store) SetBrightness(v uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(func(settings *model.Settings) { settings.Brightness = v })
}
