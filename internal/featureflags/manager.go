// Package featureflags evaluates runtime switches configured through FEATURE_FLAGS.
package featureflags

import (
	"hash/fnv"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"isupipe/internal/middleware"
)

// ModerationBackout makes banned-word purges also subtract the purged comments'
// tips and counts from the livestream and owner aggregates. It is a plain
// switch: counters must agree across every livestream.
const ModerationBackout = "moderation_backout"

// Flag describes a flag the application reads. Only flags with Rollout set
// accept a percentage; the rest are on/off switches.
type Flag struct {
	Name    string
	Default bool
	Rollout bool
}

// Known lists the flags with their values when FEATURE_FLAGS omits them.
var Known = []Flag{
	{Name: ModerationBackout, Default: true},
}

// rule is a parsed flag value: fully on, fully off, or a percentage of users.
type rule struct {
	percent int
}

func (r rule) absolute() bool {
	return r.percent <= 0 || r.percent >= 100
}

func (r rule) enabledFor(name string, userID uint) bool {
	switch {
	case r.percent <= 0:
		return false
	case r.percent >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < r.percent
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "moderation_backout=on,new_ranking=25%"
type Manager struct {
	rules    map[string]rule
	defaults map[string]bool
	switches map[string]struct{}
}

// NewManager creates a feature-flag manager from a comma-separated config string.
// Malformed pairs are logged and skipped.
func NewManager(raw string) *Manager {
	m := &Manager{
		rules:    make(map[string]rule),
		defaults: make(map[string]bool, len(Known)),
		switches: make(map[string]struct{}, len(Known)),
	}
	for _, f := range Known {
		m.defaults[f.Name] = f.Default
		if !f.Rollout {
			m.switches[f.Name] = struct{}{}
		}
	}

	for _, pair := range strings.Split(raw, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = normalize(key)
		r, ok := parseRule(normalize(value))
		if key == "" || !ok {
			middleware.Logger.Warn("ignoring malformed feature flag", slog.String("pair", pair))
			continue
		}
		if _, isSwitch := m.switches[key]; isSwitch && !r.absolute() {
			middleware.Logger.Warn("ignoring percentage for on/off feature flag", slog.String("pair", pair))
			continue
		}
		m.rules[key] = r
	}
	return m
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{percent: 100}, true
	case "off", "false", "0":
		return rule{percent: 0}, true
	}
	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return rule{}, false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil {
		return rule{}, false
	}
	return rule{percent: pct}, true
}

// Enabled returns whether a flag is enabled for a given user. Configured
// flags win; known flags fall back to their default; anything else is off.
// Percentages are deterministic per user and off for anonymous callers.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	name = normalize(name)
	if r, ok := m.rules[name]; ok {
		return r.enabledFor(name, userID)
	}
	return m.defaults[name]
}

// On reports an on/off switch, independent of any user.
func (m *Manager) On(name string) bool {
	return m.Enabled(name, 0)
}

// Snapshot returns evaluated flag status for one user, known flags included.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.rules)+len(m.defaults))
	for name := range m.defaults {
		out[name] = m.Enabled(name, userID)
	}
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

// Names lists every known or configured flag, sorted.
func (m *Manager) Names() []string {
	snap := m.Snapshot(0)
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
