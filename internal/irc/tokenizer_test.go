package irc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantTags     map[string]string
		wantPrefix   string
		wantCommand  string
		wantParams   []string
		wantTrailing string
		hasTrailing  bool
	}{
		{
			name:         "full frame",
			input:        "@id=abc;mod=1 :nick!user@host PRIVMSG #chan :Hello chat!",
			wantTags:     map[string]string{"id": "abc", "mod": "1"},
			wantPrefix:   "nick!user@host",
			wantCommand:  "PRIVMSG",
			wantParams:   []string{"#chan"},
			wantTrailing: "Hello chat!",
			hasTrailing:  true,
		},
		{
			name:        "no tags no prefix",
			input:       "PING",
			wantCommand: "PING",
		},
		{
			name:         "no trailing marker",
			input:        "JOIN #chan",
			wantCommand:  "JOIN",
			wantParams:   []string{"#chan"},
			wantTrailing: "",
		},
		{
			name:     "bare tag key carries empty value",
			input:    "@flag;id=x CAP",
			wantTags: map[string]string{"flag": "", "id": "x"},

			wantCommand: "CAP",
		},
		{
			name:     "tag value unescaping",
			input:    `@msg=hello\sworld\:and\\more CMD`,
			wantTags: map[string]string{"msg": "hello world;and\\more"},

			wantCommand: "CMD",
		},
		{
			name:     "no double unescape of produced backslash",
			input:    `@v=a\\sb CMD`,
			wantTags: map[string]string{"v": `a\sb`},

			wantCommand: "CMD",
		},
		{
			name:     "unterminated tag block",
			input:    "@id=abc;mod=1",
			wantTags: map[string]string{"id": "abc", "mod": "1"},
		},
		{
			name:       "unterminated prefix",
			input:      ":lonely.prefix",
			wantPrefix: "lonely.prefix",
		},
		{
			name:  "empty input",
			input: "",
		},
		{
			name:         "empty trailing",
			input:        "PRIVMSG #chan :",
			wantCommand:  "PRIVMSG",
			wantParams:   []string{"#chan"},
			wantTrailing: "",
			hasTrailing:  true,
		},
		{
			name:         "unicode",
			input:        "@name=ヤッホー PRIVMSG #チャンネル :こんにちは 👋",
			wantTags:     map[string]string{"name": "ヤッホー"},
			wantCommand:  "PRIVMSG",
			wantParams:   []string{"#チャンネル"},
			wantTrailing: "こんにちは 👋",
			hasTrailing:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Tokenize(tt.input)
			if tt.wantTags == nil {
				assert.Empty(t, f.Tags)
			} else {
				assert.Equal(t, tt.wantTags, f.Tags)
			}
			assert.Equal(t, tt.wantPrefix, f.Prefix)
			assert.Equal(t, tt.wantCommand, f.Command)
			if tt.wantParams == nil {
				assert.Empty(t, f.Params)
			} else {
				assert.Equal(t, tt.wantParams, f.Params)
			}
			assert.Equal(t, tt.wantTrailing, f.Trailing)
			assert.Equal(t, tt.hasTrailing, f.HasTrailing)
		})
	}
}

func TestTokenizeNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"@",
		":",
		"@;;;===",
		"@ :",
		strings.Repeat("@a=b;", 10000),
		strings.Repeat("x", 200000),
		"@k=" + strings.Repeat(`\`, 9999) + " CMD",
		"\x00\x01\x02\xff\xfe",
		string([]byte{0xed, 0xa0, 0x80}), // lone surrogate half, invalid UTF-8
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Tokenize(in) })
	}
}

func TestTokenizeRoundTrip(t *testing.T) {
	frames := []string{
		"@id=abc;display-name=TestUser :nick!u@h PRIVMSG #chan :Hello chat!",
		"PING :tmi.example.com",
		"JOIN #somewhere",
		"@badges=moderator/1,subscriber/24 PRIVMSG #chan :msg",
	}
	for _, raw := range frames {
		first := Tokenize(raw)
		second := Tokenize(first.String())
		require.Equal(t, first.Command, second.Command, raw)
		require.Equal(t, first.Params, second.Params, raw)
		require.Equal(t, first.Trailing, second.Trailing, raw)
		require.Equal(t, first.Tags, second.Tags, raw)
	}
}

func TestNick(t *testing.T) {
	assert.Equal(t, "nick", Frame{Prefix: "nick!user@host"}.Nick())
	assert.Equal(t, "server.example", Frame{Prefix: "server.example"}.Nick())
	assert.Equal(t, "", Frame{}.Nick())
}
