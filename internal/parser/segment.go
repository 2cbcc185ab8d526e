package parser

import (
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// !!!!Text!x:370.0!y:150.0!width:300.0!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!
	elementHeaderRe   = regexp.MustCompile(`(?i)^!{3,}(text|line|rectangle|rect)(?:!+\w+:[^!]+)*!{3,}\s*$`)
	elementPropertyRe = regexp.MustCompile(`!+(\w+):([^!]+)`)
)

// precursor is one element located in the file but not yet built
type precursor struct {
	kind   string
	props  map[string]string
	header int // line index of the header, -1 for the implicit leading box
	start  int // first body line
	end    int // last body line, inclusive; end < start means an empty body
}

// splitLines splits on '\n' without dropping '\r', so bodies stay verbatim.
// A trailing newline does not produce a final empty line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// segment finds every element header and slices the file between them.
// Content before the first header becomes an implicit text box.
func segment(lines []string) []precursor {
	var out []precursor

	if len(lines) == 0 || !elementHeaderRe.MatchString(lines[0]) {
		out = append(out, precursor{
			kind:   "text",
			props:  map[string]string{},
			header: -1,
			start:  0,
		})
	}

	for i, line := range lines {
		m := elementHeaderRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if n := len(out); n > 0 {
			out[n-1].end = i - 1
		}
		out = append(out, precursor{
			kind:   strings.ToLower(m[1]),
			props:  headerProperties(line),
			header: i,
			start:  i + 1,
		})
	}

	out[len(out)-1].end = len(lines) - 1
	return out
}

func headerProperties(line string) map[string]string {
	props := make(map[string]string)
	for _, m := range elementPropertyRe.FindAllStringSubmatch(line, -1) {
		props[strings.ToLower(m[1])] = m[2]
	}
	return props
}

// body joins the element's lines, each terminated by a newline
func (p precursor) body(lines []string) string {
	var b strings.Builder
	for i := p.start; i <= p.end && i < len(lines); i++ {
		b.WriteString(lines[i])
		b.WriteByte('\n')
	}
	return b.String()
}

// key is "{index}_{hash}" where the hash covers position, type and
// properties, so unrelated edits elsewhere keep it stable
func (p precursor) key(index int) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d\x00%d\x00%s\x00", p.start, p.end, p.kind)

	names := make([]string, 0, len(p.props))
	for name := range p.props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "%s=%s\x00", name, p.props[name])
	}

	return fmt.Sprintf("%d_%x", index, h.Sum64())
}

// propertyReader does typed property access, keeping the first error
type propertyReader struct {
	props map[string]string
	err   error
}

func (r *propertyReader) lookup(name string) (string, bool) {
	v, ok := r.props[name]
	return strings.TrimSpace(v), ok
}

func (r *propertyReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *propertyReader) floatProp(name string, def float64) float64 {
	v, ok := r.lookup(name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		r.fail(fmt.Errorf("%w: %s=%q", ErrInvalidPropertyValue, name, v))
		return def
	}
	return f
}

func (r *propertyReader) requiredFloat(name string) float64 {
	if _, ok := r.props[name]; !ok {
		r.fail(fmt.Errorf("%w: %s", ErrMissingProperty, name))
		return 0
	}
	return r.floatProp(name, 0)
}

func (r *propertyReader) intProp(name string, def int) int {
	v, ok := r.lookup(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(fmt.Errorf("%w: %s=%q", ErrInvalidPropertyValue, name, v))
		return def
	}
	return n
}

func (r *propertyReader) stringProp(name, def string) string {
	v, ok := r.lookup(name)
	if !ok {
		return def
	}
	return v
}
