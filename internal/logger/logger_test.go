package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestPrettyFormatter_FieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)
	log.SetFormatter(&PrettyFormatter{NoColor: true})

	log.WithFields(logrus.Fields{"peer": "12345", "component": "registry"}).Info("connected")

	line := buf.String()
	if !strings.Contains(line, "INFO  connected") {
		t.Errorf("expected level and message, got %q", line)
	}
	if strings.Index(line, "component=registry") > strings.Index(line, "peer=12345") {
		t.Errorf("expected fields sorted by key, got %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("expected trailing newline")
	}
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer

	log := New(&buf, false)
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be suppressed, got %q", buf.String())
	}

	log = New(&buf, true)
	log.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected debug output, got %q", buf.String())
	}
}
