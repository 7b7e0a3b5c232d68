// Package pysrc is a static, line-oriented scanner for Python source files.
//
// It does not evaluate or fully parse Python. It recovers the structure the
// client analyzer and the project validator need: the module docstring,
// import statements, top-level classes with their methods and annotated
// fields. Comments and string literals are blanked before statements are
// inspected, and bracketed continuation lines are joined into one logical
// statement.
package pysrc

import (
	"errors"
	"fmt"
	"strings"
)

// File is the scanned structure of one Python module.
type File struct {
	Docstring string
	Imports   []Import
	Classes   []Class
}

// Import is one import statement. Level counts the leading dots of a
// relative import; Module is empty for "from . import x".
type Import struct {
	Module string
	Names  []string
	Level  int
	Line   int
}

// Class is a top-level class definition.
type Class struct {
	Name    string
	Bases   []string
	Line    int
	Methods []Func
	Fields  []Field
}

// Func is a def statement directly inside a class body.
type Func struct {
	Name   string
	Params []Param
	Line   int
}

// Param is one parameter of a def signature.
type Param struct {
	Name       string
	Annotation string
	Default    string
	HasDefault bool
	Star       int // 1 for *args, 2 for **kwargs
}

// Field is an annotated assignment directly inside a class body.
type Field struct {
	Name       string
	Annotation string
	Default    string
	HasDefault bool
}

// Method returns the named method of c.
func (c Class) Method(name string) (Func, bool) {
	for _, m := range c.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Func{}, false
}

// ErrUnbalanced is returned for input whose brackets or triple-quoted
// strings never close.
var ErrUnbalanced = errors.New("unbalanced brackets or unterminated string")

type statement struct {
	text   string // code with comments removed and string bodies blanked
	raw    string // original joined text
	indent int
	line   int
}

// Scan extracts the structure of a Python module.
func Scan(src string) (*File, error) {
	stmts, err := statements(src)
	if err != nil {
		return nil, err
	}
	f := &File{}
	if len(stmts) > 0 && stmts[0].indent == 0 {
		if doc, ok := stringLiteral(stmts[0].raw); ok {
			f.Docstring = doc
		}
	}

	var (
		cur        *Class
		bodyIndent = -1
	)
	for _, st := range stmts {
		if st.indent == 0 {
			cur, bodyIndent = nil, -1
			switch {
			case strings.HasPrefix(st.text, "class "):
				cls := parseClass(st)
				f.Classes = append(f.Classes, cls)
				cur = &f.Classes[len(f.Classes)-1]
			case strings.HasPrefix(st.text, "import "), strings.HasPrefix(st.text, "from "):
				f.Imports = append(f.Imports, parseImports(st)...)
			}
			continue
		}
		if cur == nil {
			continue
		}
		if bodyIndent < 0 {
			bodyIndent = st.indent
		}
		if st.indent != bodyIndent {
			continue
		}
		text := strings.TrimPrefix(st.text, "async ")
		switch {
		case strings.HasPrefix(text, "def "):
			if fn, ok := parseFunc(st); ok {
				cur.Methods = append(cur.Methods, fn)
			}
		default:
			if fld, ok := parseField(st); ok {
				cur.Fields = append(cur.Fields, fld)
			}
		}
	}
	return f, nil
}

// statements splits src into logical statements. A statement spans physical
// lines while brackets are open or a triple-quoted string is unterminated.
func statements(src string) ([]statement, error) {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	var (
		out      []statement
		code     strings.Builder
		raw      strings.Builder
		depth    int
		indent   int
		inTriple string
	)
	start := -1
	flush := func() {
		text := strings.TrimSpace(code.String())
		if text != "" {
			out = append(out, statement{text: text, raw: strings.TrimSpace(raw.String()), indent: indent, line: start + 1})
		}
		code.Reset()
		raw.Reset()
		start = -1
	}
	for i, line := range lines {
		if start < 0 {
			if strings.TrimSpace(line) == "" {
				continue
			}
			start = i
			indent = indentOf(line)
		} else {
			code.WriteByte(' ')
			raw.WriteByte('\n')
		}
		raw.WriteString(line)
		cont := false
		j := 0
		for j < len(line) {
			ch := line[j]
			if inTriple != "" {
				if strings.HasPrefix(line[j:], inTriple) {
					code.WriteString(inTriple)
					j += 3
					inTriple = ""
					continue
				}
				j++
				continue
			}
			switch {
			case ch == '#':
				j = len(line)
				continue
			case strings.HasPrefix(line[j:], `"""`) || strings.HasPrefix(line[j:], `'''`):
				inTriple = line[j : j+3]
				code.WriteString(inTriple)
				j += 3
				continue
			case ch == '"' || ch == '\'':
				end := closingQuote(line, j)
				code.WriteByte(ch)
				code.WriteByte(ch)
				j = end + 1
				continue
			case ch == '(' || ch == '[' || ch == '{':
				depth++
			case ch == ')' || ch == ']' || ch == '}':
				if depth > 0 {
					depth--
				}
			case ch == '\\' && j == len(line)-1:
				cont = true
				j++
				continue
			}
			code.WriteByte(ch)
			j++
		}
		if depth == 0 && inTriple == "" && !cont {
			flush()
		}
	}
	if depth != 0 || inTriple != "" {
		return out, fmt.Errorf("pysrc: %w", ErrUnbalanced)
	}
	flush()
	return out, nil
}

func closingQuote(line string, start int) int {
	q := line[start]
	for k := start + 1; k < len(line); k++ {
		switch line[k] {
		case '\\':
			k++
		case q:
			return k
		}
	}
	return len(line) - 1
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 8 - n%8
		default:
			return n
		}
	}
	return n
}

// stringLiteral reports whether raw is a lone (possibly prefixed) string
// literal and returns its trimmed body.
func stringLiteral(raw string) (string, bool) {
	s := strings.TrimLeft(raw, "rRuUbB")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)]), true
		}
	}
	return "", false
}

func parseClass(st statement) Class {
	rest := strings.TrimSpace(strings.TrimPrefix(st.raw, "class "))
	rest = stripComment(rest)
	cls := Class{Line: st.line}
	end := strings.IndexAny(rest, "(:")
	if end < 0 {
		cls.Name = strings.TrimSpace(rest)
		return cls
	}
	cls.Name = strings.TrimSpace(rest[:end])
	if rest[end] == '(' {
		if inner, ok := bracketed(rest[end:]); ok {
			for _, b := range splitTopLevel(inner) {
				if b = strings.TrimSpace(b); b != "" {
					cls.Bases = append(cls.Bases, b)
				}
			}
		}
	}
	return cls
}

func parseFunc(st statement) (Func, bool) {
	rest := strings.TrimPrefix(strings.TrimSpace(st.raw), "async ")
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "def "))
	open := strings.IndexByte(rest, '(')
	if open <= 0 {
		return Func{}, false
	}
	fn := Func{Name: strings.TrimSpace(rest[:open]), Line: st.line}
	inner, ok := bracketed(rest[open:])
	if !ok {
		return Func{}, false
	}
	for _, part := range splitTopLevel(inner) {
		part = strings.TrimSpace(stripCommentLines(part))
		if part == "" || part == "*" || part == "/" {
			continue
		}
		fn.Params = append(fn.Params, parseParam(part))
	}
	return fn, true
}

func parseParam(part string) Param {
	var p Param
	switch {
	case strings.HasPrefix(part, "**"):
		p.Star, part = 2, part[2:]
	case strings.HasPrefix(part, "*"):
		p.Star, part = 1, part[1:]
	}
	if i := topLevelIndex(part, '='); i >= 0 {
		p.HasDefault = true
		p.Default = strings.TrimSpace(part[i+1:])
		part = part[:i]
	}
	if i := topLevelIndex(part, ':'); i >= 0 {
		p.Annotation = strings.TrimSpace(part[i+1:])
		part = part[:i]
	}
	p.Name = strings.TrimSpace(part)
	return p
}

func parseField(st statement) (Field, bool) {
	if strings.HasPrefix(st.text, `"`) || strings.HasPrefix(st.text, "'") || strings.HasPrefix(st.text, "@") {
		return Field{}, false
	}
	raw := stripComment(strings.TrimSpace(st.raw))
	colon := topLevelIndex(raw, ':')
	if colon <= 0 {
		return Field{}, false
	}
	name := strings.TrimSpace(raw[:colon])
	if !isIdentifier(name) {
		return Field{}, false
	}
	rest := raw[colon+1:]
	fld := Field{Name: name}
	if i := topLevelIndex(rest, '='); i >= 0 {
		fld.HasDefault = true
		fld.Default = strings.TrimSpace(rest[i+1:])
		rest = rest[:i]
	}
	fld.Annotation = strings.TrimSpace(rest)
	if fld.Annotation == "" {
		return Field{}, false
	}
	return fld, true
}

func parseImports(st statement) []Import {
	text := stripComment(strings.TrimSpace(st.raw))
	if rest, ok := strings.CutPrefix(text, "import "); ok {
		var out []Import
		for _, part := range strings.Split(rest, ",") {
			mod := strings.TrimSpace(part)
			if i := strings.Index(mod, " as "); i >= 0 {
				mod = strings.TrimSpace(mod[:i])
			}
			if mod != "" {
				out = append(out, Import{Module: mod, Line: st.line})
			}
		}
		return out
	}
	rest := strings.TrimSpace(strings.TrimPrefix(text, "from "))
	i := strings.Index(rest, " import ")
	if i < 0 {
		return nil
	}
	mod := strings.TrimSpace(rest[:i])
	names := strings.Trim(strings.TrimSpace(rest[i+len(" import "):]), "()")
	imp := Import{Line: st.line}
	for strings.HasPrefix(mod, ".") {
		imp.Level++
		mod = mod[1:]
	}
	imp.Module = mod
	for _, n := range strings.Split(names, ",") {
		n = strings.TrimSpace(stripCommentLines(n))
		if j := strings.Index(n, " as "); j >= 0 {
			n = strings.TrimSpace(n[:j])
		}
		if n != "" {
			imp.Names = append(imp.Names, n)
		}
	}
	return []Import{imp}
}

// bracketed returns the text between the opening bracket at s[0] and its
// matching close.
func bracketed(s string) (string, bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			i = closingQuote(s, i)
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return s[1:i], true
			}
		}
	}
	return "", false
}

func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		last  int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			i = closingQuote(s, i)
		case '#':
			if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(s) - 1
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

func topLevelIndex(s string, target byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'':
			i = closingQuote(s, i)
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if c == target && depth == 0 {
				if target == '=' && i+1 < len(s) && s[i+1] == '=' {
					i++
					continue
				}
				return i
			}
		}
	}
	return -1
}

func stripComment(s string) string {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			i = closingQuote(s, i)
		case '#':
			return strings.TrimSpace(s[:i])
		}
	}
	return s
}

func stripCommentLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = stripComment(l)
	}
	return strings.Join(lines, " ")
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
