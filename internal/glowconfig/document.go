// Package glowconfig manages GlowConfig.h: the template it is created from, the
// #define patches applied to it and the validation rules for pin and mesh settings.
package glowconfig

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DirectivePrefix starts every configuration directive.
const DirectivePrefix = "#define"

// Document is the raw text of a configuration header.
type Document string

// Quoted is a value rendered as a double-quoted C string literal.
type Quoted string

// Directive is one "#define KEY VALUE" line.
type Directive struct {
	Key   string
	Value string
	Line  int // zero-based line index
}

var directiveRe = regexp.MustCompile(`^` + DirectivePrefix + `[ \t]+(\S+)[ \t]+(.*)$`)

// keyPattern matches the directive head for key. Separators never cross a line break.
func keyPattern(key string) string {
	return `(?m)^` + DirectivePrefix + `[ \t]+` + regexp.QuoteMeta(key) + `[ \t]+`
}

// Render formats value the way it is written into a directive.
func Render(value any) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case Quoted:
		return `"` + string(v) + `"`
	default:
		return fmt.Sprint(v)
	}
}

// Patch replaces the value of every directive for key. Other lines are left untouched
// and a key without a directive leaves the document unchanged.
func Patch(doc Document, key string, value any) Document {
	re := regexp.MustCompile(`(` + keyPattern(key) + `)[^\r\n]*`)
	rendered := Render(value)
	out := re.ReplaceAllStringFunc(string(doc), func(line string) string {
		m := re.FindStringSubmatch(line)
		return m[1] + rendered
	})
	return Document(out)
}

// Extract returns the integer value of the first directive for key.
func Extract(doc Document, key string) (int, bool) {
	re := regexp.MustCompile(keyPattern(key) + `(\d+)`)
	m := re.FindStringSubmatch(string(doc))
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// Lookup returns the raw value of the first directive for key.
func Lookup(doc Document, key string) (string, bool) {
	re := regexp.MustCompile(keyPattern(key) + `([^\r\n]+)`)
	m := re.FindStringSubmatch(string(doc))
	if len(m) < 2 {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Directives lists every directive with a value, in document order.
func Directives(doc Document) []Directive {
	var out []Directive
	for i, line := range strings.Split(string(doc), "\n") {
		m := directiveRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil || strings.TrimSpace(m[2]) == "" {
			continue
		}
		out = append(out, Directive{Key: m[1], Value: strings.TrimSpace(m[2]), Line: i})
	}
	return out
}

// MissingKeys returns the keys from want that have no directive in doc.
func MissingKeys(doc Document, want []string) []string {
	have := make(map[string]bool)
	for _, d := range Directives(doc) {
		have[d.Key] = true
	}
	var missing []string
	for _, k := range want {
		if !have[k] {
			missing = append(missing, k)
		}
	}
	return missing
}

// Unquote strips surrounding double quotes from a directive value.
func Unquote(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		return v[1 : len(v)-1]
	}
	return v
}
