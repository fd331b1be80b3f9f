package utils

import (
	"fmt"
	"math"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// LoadTOMLFile decodes a tripserve.toml style file into v. Keys that match no
// field are logged and otherwise ignored so older files keep loading.
func LoadTOMLFile(path string, v any) error {
	meta, err := toml.DecodeFile(path, v)
	if err != nil {
		log.Warnf("Config %s does not decode cleanly: %v", path, err)
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Debugf("Config %s has unknown keys: %v", path, undecoded)
	}
	return nil
}

// ParseTOMLWithRecovery reads path as a loose table so that the readable
// sections of a config with mistyped values can still be salvaged.
func ParseTOMLWithRecovery(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	table := make(map[string]any)
	if _, err := toml.Decode(string(data), &table); err != nil {
		log.Warnf("Config %s is not valid TOML: %v", path, err)
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return table, nil
}

// ExtractSection returns the [name] table of a loosely parsed config.
func ExtractSection(table map[string]any, name string) (map[string]any, bool) {
	section, ok := table[name].(map[string]any)
	return section, ok
}

// ExtractInt64 returns key as an int when it holds a TOML integer that fits.
func ExtractInt64(section map[string]any, key string) (int, bool) {
	val, ok := section[key].(int64)
	if !ok || val > math.MaxInt || val < math.MinInt {
		return 0, false
	}
	return int(val), true
}

func ExtractBool(section map[string]any, key string) (bool, bool) {
	val, ok := section[key].(bool)
	return val, ok
}

func ExtractString(section map[string]any, key string) (string, bool) {
	val, ok := section[key].(string)
	return val, ok
}
