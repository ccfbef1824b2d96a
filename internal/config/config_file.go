package config

import (
	"strings"

	"gopkg.in/ini.v1"
)

// fileSection holds service keys; keys outside any section are read too so
// flat files keep working.
const fileSection = "service"

// LoadFileValues reads an INI file into a flat key/value map. Keys from the
// [service] section override keys of the same name outside any section.
func LoadFileValues(path string) (map[string]string, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, name := range []string{ini.DefaultSection, fileSection} {
		sec, err := f.GetSection(name)
		if err != nil {
			continue
		}
		for _, key := range sec.Keys() {
			out[strings.ToLower(strings.TrimSpace(key.Name()))] = key.String()
		}
	}
	return out, nil
}
