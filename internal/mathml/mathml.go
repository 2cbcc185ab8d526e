// Package mathml renders the TeX math used in canvas text boxes to
// presentation MathML, keeping the TeX source as an annotation.
package mathml

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wyatt915/treeblood"
)

// ErrSyntax is wrapped by every render failure
var ErrSyntax = errors.New("math syntax error")

// Error reports where in the source a render failed. Pos is -1 when the
// renderer gave no position.
type Error struct {
	Pos int
	Msg string
}

func (e *Error) Error() string {
	if e.Pos < 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s at position %d", e.Msg, e.Pos)
}

func (e *Error) Unwrap() error { return ErrSyntax }

const (
	namespace      = "http://www.w3.org/1998/Math/MathML"
	annotationOpen = `<annotation encoding="application/x-tex">`
)

// Render converts tex to a <math> element. Display mode renders a block
// equation, otherwise the result is inline.
func Render(tex string, display bool) (out string, err error) {
	if err := checkGroups(tex); err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = "", &Error{Pos: -1, Msg: fmt.Sprint(r)}
		}
	}()

	render := treeblood.InlineStyle
	if display {
		render = treeblood.DisplayStyle
	}
	rendered, err := render(tex, nil)
	if err != nil {
		return "", &Error{Pos: -1, Msg: err.Error()}
	}

	var b strings.Builder
	b.WriteString(`<math xmlns="` + namespace + `"`)
	if display {
		b.WriteString(` display="block"`)
	}
	b.WriteString("><semantics><mrow>")
	b.WriteString(body(rendered))
	b.WriteString("</mrow>" + annotationOpen)
	b.WriteString(html.EscapeString(tex))
	b.WriteString("</annotation></semantics></math>")
	return b.String(), nil
}

// body strips the <math> element and any semantics wrapper treeblood puts
// around the presentation markup
func body(rendered string) string {
	s := strings.TrimSpace(rendered)
	if strings.HasPrefix(s, "<math") {
		if i := strings.IndexByte(s, '>'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "</math>")
	}
	if strings.HasPrefix(s, "<semantics>") {
		s = strings.TrimPrefix(s, "<semantics>")
		if i := strings.LastIndex(s, "<annotation"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSuffix(s, "</semantics>")
	}
	return strings.TrimSpace(s)
}

// checkGroups rejects unbalanced braces, which no TeX renderer accepts
func checkGroups(tex string) error {
	depth := 0
	for i := 0; i < len(tex); i++ {
		switch tex[i] {
		case '\\':
			if i == len(tex)-1 {
				return &Error{Pos: i, Msg: "trailing backslash"}
			}
			i++
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return &Error{Pos: i, Msg: "unmatched }"}
			}
			depth--
		}
	}
	if depth > 0 {
		return &Error{Pos: len(tex), Msg: "expected }"}
	}
	return nil
}

// Source recovers the TeX a rendered element was built from
func Source(markup string) (string, bool) {
	start := strings.Index(markup, annotationOpen)
	if start < 0 {
		return "", false
	}
	rest := markup[start+len(annotationOpen):]
	end := strings.Index(rest, "</annotation>")
	if end < 0 {
		return "", false
	}
	return html.UnescapeString(rest[:end]), true
}
