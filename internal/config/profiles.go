package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Nano112/db-clone-tool/internal/postgres"
)

// ProfilePair is one named source/target combination in the profiles file.
type ProfilePair struct {
	Source postgres.Profile `yaml:"source"`
	Target postgres.Profile `yaml:"target"`
	SSH    SSHSettings      `yaml:"ssh,omitempty"`
}

// ProfilesFile is the on-disk layout of profiles.yaml.
type ProfilesFile struct {
	Profiles map[string]ProfilePair `yaml:"profiles"`
}

// DefaultProfilesPath resolves to <user config dir>/dbclone/profiles.yaml,
// which on Linux is ~/.config/dbclone/profiles.yaml.
func DefaultProfilesPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dbclone", "profiles.yaml"), nil
}

// LoadProfiles reads and parses a profiles file.
func LoadProfiles(path string) (*ProfilesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf ProfilesFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &pf, nil
}

// Lookup returns the named pair; the error lists what is available.
func (pf *ProfilesFile) Lookup(name string) (ProfilePair, error) {
	p, ok := pf.Profiles[name]
	if !ok {
		names := make([]string, 0, len(pf.Profiles))
		for n := range pf.Profiles {
			names = append(names, n)
		}
		sort.Strings(names)
		return ProfilePair{}, fmt.Errorf("profile %q not found (have: %s)", name, strings.Join(names, ", "))
	}
	return p, nil
}

// Apply overlays the pair onto s. Only fields still empty in s are filled,
// so the environment always wins over the profiles file.
func (s *Settings) Apply(p ProfilePair) {
	overlayProfile(&s.Source, p.Source)
	overlayProfile(&s.Target, p.Target)
	if s.SSH.Host == "" {
		s.SSH.Host = p.SSH.Host
	}
	if s.SSH.Port == 0 {
		s.SSH.Port = p.SSH.Port
	}
	if s.SSH.User == "" {
		s.SSH.User = p.SSH.User
	}
	if s.SSH.KeyPath == "" {
		s.SSH.KeyPath = p.SSH.KeyPath
	}
	s.SSH.Insecure = s.SSH.Insecure || p.SSH.Insecure
}

func overlayProfile(dst *postgres.Profile, src postgres.Profile) {
	if dst.Host == "" {
		dst.Host = src.Host
	}
	if dst.Port == 0 {
		dst.Port = src.Port
	}
	if dst.Database == "" {
		dst.Database = src.Database
	}
	if dst.Username == "" {
		dst.Username = src.Username
	}
	if dst.Password == "" {
		dst.Password = src.Password
	}
	dst.SSL = dst.SSL || src.SSL
}

const profilesTemplate = `# dbclone connection profiles.
# Select one with: dbclone --profile <name>
# Environment variables override anything set here.
profiles:
  staging:
    source:
      host: prod.example.com
      port: 5432
      database: app
      username: readonly
      password: ""
      ssl: true
    target:
      host: localhost
      port: 5432
      database: app_staging
      username: postgres
      password: ""
    # ssh:
    #   host: bastion.example.com
    #   user: deploy
    #   key: ~/.ssh/id_ed25519
`

// InitProfiles writes a starter profiles file with owner-only permissions.
// Refuses to overwrite an existing file.
func InitProfiles(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists", path)
		}
		return err
	}
	if _, err := f.WriteString(profilesTemplate); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
