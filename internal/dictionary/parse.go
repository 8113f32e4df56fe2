package dictionary

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const nullRipple = "NULL"

// LoadFields parses an RDMFieldDictionary stream. name is only used in errors.
func (d *Dictionary) LoadFields(name string, r io.Reader) error {
	var pending []*Field
	err := scanLines(r, d.fieldTags, func(line int, _ string, tokens []string) error {
		f, err := parseField(tokens)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", name, line, err)
		}
		if _, dup := d.fields[f.FID]; dup {
			return fmt.Errorf("%s:%d: %w: %d", name, line, ErrDuplicateFID, f.FID)
		}
		d.fields[f.FID] = f
		d.byName[f.Acronym] = f
		pending = append(pending, f)
		return nil
	})
	if err != nil {
		return err
	}
	// Ripple targets may be defined further down the file.
	for _, f := range pending {
		if f.rippleTo == "" {
			continue
		}
		if to, ok := d.byName[f.rippleTo]; ok {
			f.Ripple = to.FID
		}
	}
	return nil
}

// LoadEnums parses an enumtype.def stream. Each table starts with one or more
// "ACRONYM FID" lines followed by "VALUE DISPLAY MEANING" lines.
func (d *Dictionary) LoadEnums(name string, r io.Reader) error {
	var cur *EnumTable
	inValues := false
	finish := func() {
		if cur == nil {
			return
		}
		d.enums = append(d.enums, cur)
		for _, fid := range cur.FIDs {
			d.enumByFID[fid] = cur
		}
	}

	err := scanLines(r, d.enumTags, func(line int, text string, tokens []string) error {
		if isNumber(tokens[0]) {
			if cur == nil {
				return fmt.Errorf("%s:%d: %w: value before any FID", name, line, ErrSyntax)
			}
			v, err := parseEnumValue(text)
			if err != nil {
				return fmt.Errorf("%s:%d: %w", name, line, err)
			}
			cur.Values = append(cur.Values, v)
			inValues = true
			return nil
		}

		if len(tokens) < 2 {
			return fmt.Errorf("%s:%d: %w: expected acronym and FID", name, line, ErrSyntax)
		}
		fid, err := strconv.ParseInt(tokens[1], 10, 16)
		if err != nil {
			return fmt.Errorf("%s:%d: %w: bad FID %q", name, line, ErrSyntax, tokens[1])
		}
		if cur == nil || inValues {
			finish()
			cur = &EnumTable{}
			inValues = false
		}
		cur.FIDs = append(cur.FIDs, int16(fid))
		return nil
	})
	if err != nil {
		return err
	}
	finish()
	return nil
}

// scanLines feeds every non comment line, tokenized, to fn. "!tag" headers go
// into tags.
func scanLines(r io.Reader, tags map[string]string, fn func(line int, text string, tokens []string) error) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "!") {
			if rest, ok := strings.CutPrefix(text, "!tag"); ok {
				key, value, _ := strings.Cut(strings.TrimSpace(rest), " ")
				if key != "" {
					tags[key] = strings.TrimSpace(value)
				}
			}
			continue
		}
		tokens, err := tokenize(text)
		if err != nil {
			// a stray quote in free text such as an enum meaning
			tokens = strings.Fields(text)
		}
		if err := fn(n, text, tokens); err != nil {
			return err
		}
	}
	return sc.Err()
}

// tokenize splits on blanks. Double quoted strings are one token without the
// quotes; parentheses are tokens of their own.
func tokenize(s string) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '"':
			end := strings.IndexByte(s[i+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated quote", ErrSyntax)
			}
			tokens = append(tokens, s[i+1:i+1+end])
			i += end + 2
		case c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		default:
			j := i
			for j < len(s) && s[j] != ' ' && s[j] != '\t' && s[j] != '(' && s[j] != ')' {
				j++
			}
			tokens = append(tokens, s[i:j])
			i = j
		}
	}
	return tokens, nil
}

func parseField(tokens []string) (*Field, error) {
	// ACRONYM DDE FID RIPPLE TYPE LENGTH [( ENUMLEN )] RWFTYPE RWFLEN
	if len(tokens) < 8 {
		return nil, fmt.Errorf("%w: expected at least 8 columns, got %d", ErrSyntax, len(tokens))
	}
	f := &Field{Acronym: tokens[0], DDEAcronym: tokens[1], Type: tokens[4]}

	fid, err := strconv.ParseInt(tokens[2], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: bad FID %q", ErrSyntax, tokens[2])
	}
	f.FID = int16(fid)
	if tokens[3] != nullRipple {
		f.rippleTo = tokens[3]
	}

	length, err := strconv.ParseUint(tokens[5], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: bad length %q", ErrSyntax, tokens[5])
	}
	f.Length = uint16(length)

	rest := tokens[6:]
	if len(rest) > 0 && rest[0] == "(" {
		if len(rest) < 3 || rest[2] != ")" {
			return nil, fmt.Errorf("%w: bad enum length", ErrSyntax)
		}
		el, err := strconv.ParseUint(rest[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: bad enum length %q", ErrSyntax, rest[1])
		}
		f.EnumLength = uint8(el)
		rest = rest[3:]
	}
	if len(rest) < 2 {
		return nil, fmt.Errorf("%w: missing RWF type or length", ErrSyntax)
	}
	f.RWFType = rest[0]
	rwfLen, err := strconv.ParseUint(rest[1], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: bad RWF length %q", ErrSyntax, rest[1])
	}
	f.RWFLen = uint16(rwfLen)
	return f, nil
}

// parseEnumValue reads `VALUE DISPLAY MEANING`. DISPLAY is quoted text or
// #hex#; MEANING is the rest of the line as written.
func parseEnumValue(text string) (EnumValue, error) {
	num, rest := text, ""
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		num, rest = text[:i], text[i:]
	}
	v, err := strconv.ParseUint(strings.TrimSpace(num), 10, 16)
	if err != nil {
		return EnumValue{}, fmt.Errorf("%w: bad enum value %q", ErrSyntax, num)
	}
	rest = strings.TrimSpace(rest)

	var display string
	switch {
	case strings.HasPrefix(rest, `"`):
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return EnumValue{}, fmt.Errorf("%w: unterminated display", ErrSyntax)
		}
		display = rest[1 : end+1]
		rest = rest[end+2:]
	case strings.HasPrefix(rest, "#"):
		end := strings.IndexByte(rest[1:], '#')
		if end < 0 {
			return EnumValue{}, fmt.Errorf("%w: unterminated hex display", ErrSyntax)
		}
		b, err := hex.DecodeString(rest[1 : end+1])
		if err != nil {
			return EnumValue{}, fmt.Errorf("%w: bad hex display %q", ErrSyntax, rest[:end+2])
		}
		display = string(b)
		rest = rest[end+2:]
	default:
		return EnumValue{}, fmt.Errorf("%w: expected display after value", ErrSyntax)
	}
	return EnumValue{
		Value:   uint16(v),
		Display: display,
		Meaning: strings.TrimSpace(rest),
	}, nil
}

func isNumber(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
