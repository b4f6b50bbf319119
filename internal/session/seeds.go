package session

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Default category names used when no seed files are present.
var (
	DefaultFixed    = []string{"Housing", "Utilities", "Insurance", "Transportation", "Debt payments"}
	DefaultVariable = []string{"Groceries", "Clothes", "Subscriptions", "Fun"}
)

// DefaultSeeds returns a copy of the built-in category names.
func DefaultSeeds() Seeds {
	return Seeds{
		Fixed:    append([]string(nil), DefaultFixed...),
		Variable: append([]string(nil), DefaultVariable...),
	}
}

// LoadSeeds reads seed_fixed.txt and seed_variable.txt from dir, one name
// per line, '#' comments allowed. A missing or empty file keeps the default
// for that ledger.
func LoadSeeds(dir string) Seeds {
	seeds := DefaultSeeds()
	if dir == "" {
		return seeds
	}
	if names := readLines(filepath.Join(dir, "seed_fixed.txt")); len(names) > 0 {
		seeds.Fixed = names
	}
	if names := readLines(filepath.Join(dir, "seed_variable.txt")); len(names) > 0 {
		seeds.Variable = names
	}
	return seeds
}

// Merge overlays non-empty lists from other onto s.
func (s Seeds) Merge(other Seeds) Seeds {
	if len(other.Fixed) > 0 {
		s.Fixed = dedupe(other.Fixed)
	}
	if len(other.Variable) > 0 {
		s.Variable = dedupe(other.Variable)
	}
	return s
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
