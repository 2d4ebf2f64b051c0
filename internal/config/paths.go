package config

import (
	"os"
	"path/filepath"
)

// Paths are the on-disk locations ragrelay reads and writes.
type Paths struct {
	Base   string
	Config string
	Logs   string
	Data   string
}

// ResolvePaths roots everything under $RAGRELAY_HOME, or ~/.ragrelay
// when that is unset.
func ResolvePaths() (Paths, error) {
	base, ok := os.LookupEnv("RAGRELAY_HOME")
	if !ok || base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, ".ragrelay")
	}
	return pathsUnder(base), nil
}

func pathsUnder(base string) Paths {
	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Logs:   filepath.Join(base, "logs"),
		Data:   filepath.Join(base, "data"),
	}
}

// EnsureDirs creates the base, log and data directories.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Logs, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// SQLitePath returns the session database location. A configured path wins.
func (p Paths) SQLitePath(cfg SQLiteConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return filepath.Join(p.Data, "ragrelay.db")
}
