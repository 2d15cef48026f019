package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUnparseableLevelFallsBackToInfo(t *testing.T) {
	l := New(Config{Level: "bogus", Format: "text"})
	assert.Equal(t, "info", l.GetLevel().String())
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json"})
	l.SetOutput(&buf)
	l.WithField("disk", "sda").Info("allocated")
	assert.Contains(t, buf.String(), `"disk":"sda"`)
}

func TestNewDefaultStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefault("bandwidth")
	l.SetOutput(&buf)
	l.Info("tick")
	assert.True(t, strings.Contains(buf.String(), "component=bandwidth"))
}
