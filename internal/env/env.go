// Package env composes the environment handed to control plane commands.
package env

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Vars map[string]string

// Parse reads "KEY=VALUE" entries. Entries without '=' or with an empty key
// are rejected.
func Parse(pairs []string) (Vars, error) {
	out := make(Vars, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid env entry %q, want KEY=VALUE", kv)
		}
		out[k] = v
	}
	return out, nil
}

// ReadFile parses a .env file: KEY=VALUE per line, blank lines and lines
// starting with # skipped, no quoting or export keyword. Malformed lines
// are ignored.
func ReadFile(path string) (Vars, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	out := make(Vars)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if k = strings.TrimSpace(k); ok && k != "" {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out, nil
}

// Compose overlays layers onto base (a "K=V" list such as os.Environ) in
// order, so later layers win. ${NAME} references in a layer's values are
// expanded against base and the layers before it; unknown names expand to
// "". The result is sorted by key.
func Compose(base []string, layers ...Vars) []string {
	m := make(Vars, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			m[k] = v
		}
	}
	for _, l := range layers {
		next := make(Vars, len(l))
		for k, v := range l {
			if k != "" {
				next[k] = expand(v, m)
			}
		}
		for k, v := range next {
			m[k] = v
		}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}

func expand(s string, m Vars) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			break
		}
		b.WriteString(s[:i])
		b.WriteString(m[s[i+2:i+2+j]])
		s = s[i+3+j:]
	}
	b.WriteString(s)
	return b.String()
}
