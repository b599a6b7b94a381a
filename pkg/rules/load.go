package rules

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sentinelgraph/sentinel/pkg/causerr"
	"github.com/sentinelgraph/sentinel/pkg/log"
	"gopkg.in/yaml.v3"
)

// parseErrorThrottle rate-limits repeated malformed-rule-file logging so a
// directory full of bad YAML doesn't flood the log on every reload.
var parseErrorThrottle = log.NewThrottled(10 * time.Second)

// LoadDir loads every *.yaml/*.yml file in dir as a Rule, one rule per
// file (spec §4.4/§6). Malformed files are skipped, counted, and logged at
// a throttled rate rather than aborting the whole load. The result is
// sorted by priority descending.
func LoadDir(dir string) ([]Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, causerr.IoError("read rule directory", err)
	}

	l := log.WithComponent("rules")
	var out []Rule
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			perr := causerr.ParseError("read rule file "+entry.Name(), readErr)
			if parseErrorThrottle.Allow(path) {
				l.Warn().Err(perr).Str("file", path).Msg("skipping unreadable rule file")
			}
			continue
		}

		var r Rule
		if err := yaml.Unmarshal(data, &r); err != nil {
			perr := causerr.ParseError("parse rule file "+entry.Name(), err)
			if parseErrorThrottle.Allow(path) {
				l.Warn().Err(perr).Str("file", path).Msg("skipping malformed rule file")
			}
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}
