package logging

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"INFO":    logrus.InfoLevel,
		"":        logrus.InfoLevel,
		"Warning": logrus.WarnLevel,
		"WARN":    logrus.WarnLevel,
		" error ": logrus.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("TRACE")
	assert.Error(t, err)
}

func TestNewStampsInZone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	var buf bytes.Buffer
	l, err := New(&buf, "WARNING", loc)
	require.NoError(t, err)

	l.Info("[SCHEDULER] hidden")
	assert.Empty(t, buf.String())

	at := time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)
	l.WithTime(at).WithField("plan", "p1").Warn("[SCHEDULER] shown")
	out := buf.String()
	assert.Contains(t, out, "2025-01-15 10:00:00 CET")
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "plan=p1")
}
