// Package configpaths resolves the candidate configuration file locations.
package configpaths

import (
	"os"
	"path/filepath"
)

const appDir = "fraucheky"

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDir), nil
}

// ConfigCandidatePaths returns the configuration file candidates per format,
// lowest priority first. userCfg, when non-empty, is appended last so an
// explicitly given file wins regardless of its extension.
func ConfigCandidatePaths(userCfg string) (jsonPaths, yamlPaths, tomlPaths []string) {
	var dirs []string
	if d, err := DefaultConfigDir(); err == nil {
		dirs = append(dirs, d)
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}

	for _, d := range dirs {
		jsonPaths = append(jsonPaths, filepath.Join(d, "fraucheky.json"))
		yamlPaths = append(yamlPaths,
			filepath.Join(d, "fraucheky.yaml"),
			filepath.Join(d, "fraucheky.yml"))
		tomlPaths = append(tomlPaths, filepath.Join(d, "fraucheky.toml"))
	}

	if userCfg != "" {
		switch filepath.Ext(userCfg) {
		case ".yaml", ".yml":
			yamlPaths = append(yamlPaths, userCfg)
		case ".toml":
			tomlPaths = append(tomlPaths, userCfg)
		default:
			jsonPaths = append(jsonPaths, userCfg)
		}
	}
	return jsonPaths, yamlPaths, tomlPaths
}
