package qiime

import (
	"context"
	"sort"
	"strings"

	"ampliflow/internal/services"
)

// Info describes a QIIME 2 installation as reported by `qiime info`.
type Info struct {
	Release string
	Version string
	Python  string
	Plugins map[string]string
}

// HasPlugin reports whether the named plugin is installed. Names compare
// with dashes and underscores treated alike.
func (i Info) HasPlugin(name string) bool {
	_, ok := i.Plugins[normalizePlugin(name)]
	return ok
}

// MissingPlugins returns the sorted subset of names that are not installed.
func (i Info) MissingPlugins(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !i.HasPlugin(name) {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Info runs `qiime info` and parses the installation summary.
func (c *Client) Info(ctx context.Context) (Info, error) {
	var lines []string
	if err := c.exec.Run(ctx, c.binary, []string{"info"}, func(line string) {
		lines = append(lines, line)
	}); err != nil {
		return Info{}, services.Wrap(services.ErrExternalTool, "", "qiime info", "qiime info failed", err)
	}
	info := ParseInfo(lines)
	if info.Version == "" && info.Release == "" {
		return info, services.Wrap(services.ErrExternalTool, "", "qiime info", "unrecognised qiime info output", nil)
	}
	return info, nil
}

// ParseInfo parses `qiime info` output lines.
func ParseInfo(lines []string) Info {
	info := Info{Plugins: make(map[string]string)}
	inPlugins := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			inPlugins = false
			continue
		case strings.EqualFold(line, "Installed plugins"):
			inPlugins = true
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if inPlugins {
			info.Plugins[normalizePlugin(key)] = value
			continue
		}
		switch key {
		case "QIIME 2 release":
			info.Release = value
		case "QIIME 2 version":
			info.Version = value
		case "Python version":
			info.Python = value
		}
	}
	return info
}

func normalizePlugin(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}
