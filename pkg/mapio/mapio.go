// Package mapio reads and writes the plain-text map files used by the
// bibliographic tools, one key=value pair per line. Equals signs and
// backslashes inside keys or values are backslash-escaped.
package mapio

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

func escape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '=' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func splitLine(line string) (string, string, error) {
	var key strings.Builder
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
			if i == len(line) {
				return "", "", fmt.Errorf("trailing backslash")
			}
			key.WriteByte(line[i])
		case '=':
			return key.String(), unescape(line[i+1:]), nil
		default:
			key.WriteByte(line[i])
		}
	}
	return "", "", fmt.Errorf("missing '=' separator")
}

func unescape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// DeserializeMap reads a map file. Later occurrences of a key win.
func DeserializeMap(path string) (map[string]string, error) {
	m := make(map[string]string)
	err := eachEntry(path, func(key, value string) {
		m[key] = value
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// DeserializeMultiMap reads a map file where keys may repeat; all values for
// a key are collected in file order.
func DeserializeMultiMap(path string) (map[string][]string, error) {
	m := make(map[string][]string)
	err := eachEntry(path, func(key, value string) {
		m[key] = append(m[key], value)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func eachEntry(path string, visit func(key, value string)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open map file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := splitLine(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		visit(key, value)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// SerializeMap writes a map file with keys in sorted order so output is
// reproducible.
func SerializeMap(path string, m map[string]string) error {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create map file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, key := range keys {
		if _, err := fmt.Fprintf(w, "%s=%s\n", escape(key), escape(m[key])); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return w.Flush()
}
