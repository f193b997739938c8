package envpath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// PathKey is the environment variable the manager edits.
const PathKey = "PATH"

// EnvStore reads and writes environment variables in one scope.
type EnvStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// ProcessEnv is the environment of the running process.
type ProcessEnv struct{}

// Get implements EnvStore.
func (ProcessEnv) Get(key string) (string, error) {
	return os.Getenv(key), nil
}

// Set implements EnvStore.
func (ProcessEnv) Set(key, value string) error {
	return os.Setenv(key, value)
}

// FileEnvStore persists the user environment in a YAML file. After every
// write it regenerates a POSIX shell script that shell profiles source:
//
//	. ~/.devstack/env.sh
type FileEnvStore struct {
	Path       string
	ScriptPath string
}

type envFile struct {
	Vars map[string]string `yaml:"vars"`
}

func (s *FileEnvStore) load() (envFile, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return envFile{Vars: map[string]string{}}, nil
		}
		return envFile{}, fmt.Errorf("read env: %w", err)
	}
	var f envFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return envFile{}, fmt.Errorf("parse env %s: %w", s.Path, err)
	}
	if f.Vars == nil {
		f.Vars = map[string]string{}
	}
	return f, nil
}

// Get implements EnvStore. A variable that was never set is empty.
func (s *FileEnvStore) Get(key string) (string, error) {
	f, err := s.load()
	if err != nil {
		return "", err
	}
	return f.Vars[key], nil
}

// Set implements EnvStore. An empty value removes the variable.
func (s *FileEnvStore) Set(key, value string) error {
	f, err := s.load()
	if err != nil {
		return err
	}
	if value == "" {
		delete(f.Vars, key)
	} else {
		f.Vars[key] = value
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal env: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("prepare env dir: %w", err)
	}
	if err := renameio.WriteFile(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("write env: %w", err)
	}
	if s.ScriptPath == "" {
		return nil
	}
	if err := renameio.WriteFile(s.ScriptPath, []byte(shellScript(f.Vars)), 0o644); err != nil {
		return fmt.Errorf("write env script: %w", err)
	}
	return nil
}

// shellScript exports every stored variable. PATH entries are prepended to
// the inherited PATH instead of replacing it.
func shellScript(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("# generated by devstack; do not edit\n")
	for _, k := range keys {
		v := shellQuote(vars[k])
		if k == PathKey {
			fmt.Fprintf(&b, "export PATH=\"%s${PATH:+:$PATH}\"\n", v)
			continue
		}
		fmt.Fprintf(&b, "export %s=\"%s\"\n", k, v)
	}
	return b.String()
}

func shellQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return r.Replace(s)
}
