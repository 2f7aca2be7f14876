package util_test

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/downfa11-org/shmlog/util"
	"gopkg.in/yaml.v3"
)

func TestLogLevelUnmarshalYAML(t *testing.T) {
	tests := []struct {
		doc  string
		want util.LogLevel
	}{
		{"level: debug", util.LogLevelDebug},
		{"level: WARNING", util.LogLevelWarn},
		{"level: error", util.LogLevelError},
		{"level: bogus", util.LogLevelInfo},
		{"level: 3", util.LogLevelError},
		{"level: 0", util.LogLevelDebug},
		{"level: \"2\"", util.LogLevelInfo},
	}

	for _, tt := range tests {
		var v struct {
			Level util.LogLevel `yaml:"level"`
		}
		if err := yaml.Unmarshal([]byte(tt.doc), &v); err != nil {
			t.Fatalf("yaml.Unmarshal(%q): %v", tt.doc, err)
		}
		if v.Level != tt.want {
			t.Errorf("yaml %q = %v; want %v", tt.doc, v.Level, tt.want)
		}
	}
}

func TestLogLevelUnmarshalYAMLRejectsSequence(t *testing.T) {
	var v struct {
		Level util.LogLevel `yaml:"level"`
	}
	if err := yaml.Unmarshal([]byte("level: [1]"), &v); err == nil {
		t.Errorf("expected error for sequence level")
	}
}

func TestLogLevelUnmarshalJSON(t *testing.T) {
	var v struct {
		Level util.LogLevel `json:"level"`
	}
	if err := json.Unmarshal([]byte(`{"level":"debug"}`), &v); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if v.Level != util.LogLevelDebug {
		t.Errorf("got %v; want debug", v.Level)
	}
	if err := json.Unmarshal([]byte(`{"level":[1]}`), &v); err == nil {
		t.Errorf("expected error for array level")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	util.SetOutput(&buf)
	prev := util.Level()
	defer func() {
		util.SetLevel(prev)
		util.SetOutput(os.Stderr)
	}()

	util.SetLevel(util.LogLevelWarn)
	util.Debug("hidden %d", 1)
	util.Info("hidden %d", 2)
	util.Warn("shown %d", 3)
	util.Error("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 3") || !strings.Contains(out, "[ERROR] shown 4") {
		t.Errorf("missing warn/error output: %q", out)
	}
}
