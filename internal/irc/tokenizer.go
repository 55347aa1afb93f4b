// Package irc tokenizes IRCv3-style protocol lines as they arrive off the
// capture feed: optional @-introduced tag block, optional :-introduced
// prefix, then command, middle params and an optional :trailing part.
//
// Tokenize is total. Whatever bytes come in, it returns a (possibly partial)
// Frame and never panics; unterminated blocks simply consume the rest of the
// line.
package irc

import "strings"

// Frame is one tokenized protocol line. Frames are built fresh per line,
// consumed by the owning adapter and discarded; nothing retains them.
type Frame struct {
	Raw      string
	Tags     map[string]string
	Prefix   string
	Command  string
	Params   []string
	Trailing string
	// HasTrailing distinguishes an empty trailing part (": " marker present,
	// nothing after it) from no trailing marker at all.
	HasTrailing bool
}

// Tokenize splits a single protocol line into its frame parts.
func Tokenize(line string) Frame {
	f := Frame{Raw: line}
	rest := strings.TrimRight(line, "\r\n")

	if strings.HasPrefix(rest, "@") {
		block := rest[1:]
		if i := strings.IndexByte(block, ' '); i >= 0 {
			f.Tags = parseTags(block[:i])
			rest = strings.TrimLeft(block[i:], " ")
		} else {
			// Unterminated tag block: the whole line is tags.
			f.Tags = parseTags(block)
			rest = ""
		}
	}

	if strings.HasPrefix(rest, ":") {
		block := rest[1:]
		if i := strings.IndexByte(block, ' '); i >= 0 {
			f.Prefix = block[:i]
			rest = strings.TrimLeft(block[i:], " ")
		} else {
			f.Prefix = block
			rest = ""
		}
	}

	if rest == "" {
		return f
	}

	if strings.HasPrefix(rest, ":") {
		// Degenerate: a trailing marker with no command.
		f.Trailing = rest[1:]
		f.HasTrailing = true
		return f
	}

	var middle string
	if i := strings.Index(rest, " :"); i >= 0 {
		middle = rest[:i]
		f.Trailing = rest[i+2:]
		f.HasTrailing = true
	} else {
		middle = rest
	}

	fields := strings.Fields(middle)
	if len(fields) > 0 {
		f.Command = fields[0]
		f.Params = fields[1:]
	}
	return f
}

// Nick returns the nickname portion of the prefix (everything before the
// first '!'), or the whole prefix when it carries no user/host part.
func (f Frame) Nick() string {
	nick, _, _ := strings.Cut(f.Prefix, "!")
	return nick
}

// String re-serializes the frame. Tag order is unspecified, so a round trip
// preserves command, params and trailing but not tag ordering.
func (f Frame) String() string {
	var b strings.Builder
	if len(f.Tags) > 0 {
		b.WriteByte('@')
		first := true
		for k, v := range f.Tags {
			if !first {
				b.WriteByte(';')
			}
			first = false
			b.WriteString(k)
			if v != "" {
				b.WriteByte('=')
				b.WriteString(escapeTagValue(v))
			}
		}
		b.WriteByte(' ')
	}
	if f.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(f.Prefix)
		b.WriteByte(' ')
	}
	b.WriteString(f.Command)
	for _, p := range f.Params {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	if f.HasTrailing {
		b.WriteString(" :")
		b.WriteString(f.Trailing)
	}
	return b.String()
}

func parseTags(block string) map[string]string {
	tags := make(map[string]string)
	for _, pair := range strings.Split(block, ";") {
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			tags[key] = ""
			continue
		}
		tags[key] = unescapeTagValue(value)
	}
	return tags
}

// unescapeTagValue applies the tag-value escape table in one left-to-right
// pass. A backslash produced by \\ is a literal and must not be re-examined,
// which is why this cannot be done with sequential Replace calls.
func unescapeTagValue(v string) string {
	if !strings.ContainsRune(v, '\\') {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		if v[i] != '\\' {
			b.WriteByte(v[i])
			continue
		}
		i++
		if i >= len(v) {
			// Dangling backslash at end of value: dropped.
			break
		}
		switch v[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case '\\':
			b.WriteByte('\\')
		default:
			// Unknown escape: keep the escaped character as-is.
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

func escapeTagValue(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case ';':
			b.WriteString(`\:`)
		case ' ':
			b.WriteString(`\s`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}
