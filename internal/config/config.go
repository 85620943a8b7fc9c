// Package config resolves the target emails and runtime settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"
)

// TargetEmailsKey is the configuration key holding the comma-separated
// target email list.
const TargetEmailsKey = "TARGET_EMAILS"

// ErrConfiguration is returned when a required configuration value is unset.
var ErrConfiguration = errors.New("configuration error")

// Source looks up raw configuration values by key.
type Source interface {
	Lookup(key string) (string, bool)
}

// EnvSource reads values from the process environment.
type EnvSource struct{}

func (EnvSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// FileSource is a flat key/value YAML document.
type FileSource map[string]string

// LoadFile reads a FileSource from a YAML file.
func LoadFile(path string) (FileSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var src FileSource
	if err := yaml.Unmarshal(b, &src); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return src, nil
}

func (f FileSource) Lookup(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

// Chain returns the value from the first source that has the key.
type Chain []Source

func (c Chain) Lookup(key string) (string, bool) {
	for _, s := range c {
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// Reader reads the target emails from a Source.
type Reader struct {
	Source Source
}

// NewReader creates a Reader over src.
func NewReader(src Source) *Reader {
	return &Reader{Source: src}
}

// TargetEmails returns the configured target emails in order. All whitespace is
// removed before splitting on commas; entries are neither deduplicated nor
// validated.
func (r *Reader) TargetEmails() ([]string, error) {
	v, ok := r.Source.Lookup(TargetEmailsKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not set", ErrConfiguration, TargetEmailsKey)
	}
	return strings.Split(stripSpace(v), ","), nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Settings holds the runtime settings read from the environment.
type Settings struct {
	CalendarID         string `env:"CALENDAR_ID" envDefault:"primary"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleAccount      string `env:"GOOGLE_ACCOUNT" envDefault:"default"`
	GoogleTokenFile    string `env:"GOOGLE_TOKEN_FILE"`
	StateBackend       string `env:"STATE_BACKEND" envDefault:"sqlite"`
	StatePath          string `env:"STATE_PATH" envDefault:"calmirror.db"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadSettings parses Settings from the environment.
func LoadSettings() (*Settings, error) {
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("error parsing environment variables: %w", err)
	}
	switch s.StateBackend {
	case "sqlite", "file":
	default:
		return nil, fmt.Errorf("%w: unknown STATE_BACKEND %q", ErrConfiguration, s.StateBackend)
	}
	return s, nil
}

// TokenFile returns the OAuth token file for the configured account.
func (s *Settings) TokenFile() string {
	if s.GoogleTokenFile != "" {
		return s.GoogleTokenFile
	}
	return "token-" + s.GoogleAccount + ".json"
}
