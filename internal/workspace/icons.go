package workspace

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/asheshgoplani/piow/internal/config"
	"github.com/asheshgoplani/piow/internal/logging"
)

var iconLog = logging.ForComponent(logging.CompWorkspace)

// Icons maps every identifier to an icon and returns the sorted, duplicate
// free result. Identifiers without a matching key get the default icon and
// are reported as icon_missing warnings.
func Icons(identifiers []string, cfg *config.IconConfig) []string {
	if len(identifiers) == 0 {
		return nil
	}
	icons := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		icon, ok := cfg.Lookup(id)
		if !ok {
			warnMissing(id, cfg)
			icon = cfg.DefaultIcon()
		}
		icons = append(icons, icon)
	}
	slices.Sort(icons)
	return slices.Compact(icons)
}

// ResolveIcons returns Icons joined by the configured separator.
func ResolveIcons(identifiers []string, cfg *config.IconConfig) string {
	return strings.Join(Icons(identifiers, cfg), cfg.Separator())
}

func warnMissing(id string, cfg *config.IconConfig) {
	attrs := []any{slog.String("app", id)}
	if hint := ClosestKey(id, cfg); hint != "" {
		attrs = append(attrs, slog.String("closest_key", hint))
	}
	iconLog.Warn("icon_missing", attrs...)
}

// ClosestKey returns the configured key that fuzzily matches id best, or ""
// when none does. Keys longer than the identifier never match by substring,
// so this is mostly a hint for that mistake.
func ClosestKey(id string, cfg *config.IconConfig) string {
	keys := cfg.Keys()
	if len(keys) == 0 || id == "" {
		return ""
	}
	matches := fuzzy.Find(strings.ToLower(id), keys)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
