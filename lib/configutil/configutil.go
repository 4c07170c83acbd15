package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalName returns the name of the override file of `name`,
// ex. "conf/config.json5" -> "conf/config.local.json5".
func LocalName(name string) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s.local%s", strings.TrimSuffix(name, ext), ext)
}

func readFile[T any](path string) (out T, found bool, err error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(contents) == 0 {
		return out, false, nil
	}
	err = json5.Unmarshal(contents, &out)
	if err != nil {
		return out, false, fmt.Errorf("%s: %w", path, err)
	}
	return out, true, nil
}

// ReadConfig reads a json5 configuration file and merges the values of
// `<name>.local.<ext>` over it when that file exists. Only the zero values
// of the local file are ignored. If neither file exists it returns
// os.ErrNotExist.
func ReadConfig[T any](name string) (T, error) {
	out, found, err := readFile[T](name)
	if err != nil {
		return out, err
	}

	localName := LocalName(name)
	override, foundLocal, err := readFile[T](localName)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localName)
	}

	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively is ReadConfig, but it walks up from the working directory
// to the filesystem root looking for `name`.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	current, err := os.Getwd()
	if err != nil {
		return zero, err
	}
	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if err == nil {
			return config, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return zero, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return zero, os.ErrNotExist
		}
		current = parent
	}
}
