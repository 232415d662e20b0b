package project

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"refsync/internal/logging"
)

type tomlFile struct {
	Header struct {
		Version int `toml:"version"`
	} `toml:"header"`
	Defaults struct {
		Repos Defaults `toml:"repos"`
	} `toml:"defaults"`
	Repos map[string]Entry `toml:"repos"`
}

// parseTOML decodes into a map and recovers declaration order from the
// metadata key list.
func parseTOML(data []byte) (*File, error) {
	var tf tomlFile
	md, err := toml.Decode(string(data), &tf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse toml: %w", err)
	}

	for _, key := range md.Undecoded() {
		if len(key) == 3 && key[0] == "repos" {
			if ignoredRepoKeys[key[2]] {
				continue
			}
			return nil, fmt.Errorf("repository %q: unknown key %q", key[1], key[2])
		}
		if len(key) == 1 {
			logging.Debug("Ignoring project key", "key", key.String())
		}
	}

	f := &File{Version: tf.Header.Version, Defaults: tf.Defaults.Repos}
	seen := make(map[string]bool, len(tf.Repos))
	for _, key := range md.Keys() {
		if len(key) != 2 || key[0] != "repos" || seen[key[1]] {
			continue
		}
		name := key[1]
		seen[name] = true
		entry := tf.Repos[name]
		entry.Name = name
		f.Repos = append(f.Repos, entry)
	}
	if len(f.Repos) != len(tf.Repos) {
		var missing []string
		for name := range tf.Repos {
			if !seen[name] {
				missing = append(missing, name)
			}
		}
		return nil, fmt.Errorf("cannot determine order of repositories %s", strings.Join(missing, ", "))
	}
	return f, nil
}
