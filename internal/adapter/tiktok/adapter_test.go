package tiktok

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRecorder struct {
	platform  string
	artifacts []string
}

func (m *memoryRecorder) RecordArtifact(platform, artifact string) error {
	m.platform = platform
	m.artifacts = append(m.artifacts, artifact)
	return nil
}

func TestPrepareMessagesEmitsNothing(t *testing.T) {
	rec := &memoryRecorder{}
	a := New(nil, rec)

	msgs := a.PrepareMessages([]byte{0x08, 0x01, 0x12, 0x05, 'h', 'e', 'l', 'l', 'o'})
	assert.Empty(t, msgs, "discovery adapter never produces messages")
	require.Len(t, rec.artifacts, 1, "but always leaves an artifact")
	assert.Equal(t, "tiktok", rec.platform)
}

func TestPrepareMessagesEmptyFrame(t *testing.T) {
	rec := &memoryRecorder{}
	a := New(nil, rec)
	assert.Empty(t, a.PrepareMessages(nil))
	assert.Empty(t, rec.artifacts)
}

func TestDumpFormat(t *testing.T) {
	dump := Dump([]byte("hello, world!\x00\x01\x02ABCDEF"))

	lines := strings.Split(strings.TrimRight(dump, "\n"), "\n")
	require.Len(t, lines, 2, "22 bytes span two 16-byte rows")
	assert.True(t, strings.HasPrefix(lines[0], "00000000  "))
	assert.True(t, strings.HasPrefix(lines[1], "00000010  "))
	assert.Contains(t, lines[0], "|hello, world!...|", "non-printable bytes dotted")
	assert.Contains(t, lines[1], "|ABCDEF|")
}

func TestPrepareMessagesNeverPanics(t *testing.T) {
	a := New(nil, nil) // no recorder wired
	inputs := [][]byte{
		nil,
		{0x00},
		[]byte(strings.Repeat("\xff", 100000)),
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { a.PrepareMessages(in) })
	}
}
