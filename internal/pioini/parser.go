// Package pioini reads the build environments declared in platformio.ini.
package pioini

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"glowlight/tools/setup/internal/glowerr"
)

const envPrefix = "env:"

// Environment is one [env:NAME] section.
type Environment struct {
	Name    string
	Options map[string]string
}

// Option returns the value of key, or "" if unset.
func (e Environment) Option(key string) string {
	return e.Options[key]
}

// File is a parsed platformio.ini.
type File struct {
	envs        []Environment
	defaultEnvs []string
}

// ParseFile reads path.
func ParseFile(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open platformio.ini: %w", err)
	}
	defer file.Close()

	f := &File{}
	var section string
	var current *Environment
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			current = nil
			if name, ok := strings.CutPrefix(section, envPrefix); ok && name != "" {
				f.envs = append(f.envs, Environment{Name: name, Options: map[string]string{}})
				current = &f.envs[len(f.envs)-1]
			}
			continue
		}

		// Indented lines continue the previous option's value
		if raw[0] == ' ' || raw[0] == '\t' {
			continue
		}

		key, value, ok := parseOption(line)
		if !ok {
			continue // Skip malformed lines
		}

		switch {
		case current != nil:
			current.Options[key] = value
		case section == "platformio" && key == "default_envs":
			f.defaultEnvs = splitList(value)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan platformio.ini: %w", err)
	}

	return f, nil
}

// Environments returns the declared environments in file order.
func (f *File) Environments() []Environment {
	return f.envs
}

// Names returns the environment names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.envs))
	for i, e := range f.envs {
		names[i] = e.Name
	}
	return names
}

// Find returns the environment called name.
func (f *File) Find(name string) (*Environment, error) {
	for i := range f.envs {
		if f.envs[i].Name == name {
			return &f.envs[i], nil
		}
	}
	return nil, glowerr.Errorf(glowerr.KindNotFound, "environment %q not found in platformio.ini", name)
}

// Default returns the first of default_envs that exists, else the first environment.
func (f *File) Default() (*Environment, error) {
	for _, name := range f.defaultEnvs {
		if env, err := f.Find(name); err == nil {
			return env, nil
		}
	}
	if len(f.envs) == 0 {
		return nil, glowerr.Errorf(glowerr.KindNotFound, "no environments in platformio.ini")
	}
	return &f.envs[0], nil
}

func parseOption(line string) (string, string, bool) {
	// Format: key = value [; comment]
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	if i := strings.Index(value, " ;"); i >= 0 {
		value = value[:i]
	}
	return key, strings.TrimSpace(value), true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
