package logger

import "testing"

func TestLogger_BasicLevels(t *testing.T) {
	l := New("debug")
	if l == nil {
		t.Fatalf("logger nil")
	}
	l.Debug("dbg", "k", 1)
	l.Info("info")
	l.Warn("warn")
	l.Error("err")
}

func TestParseLevel_UnknownFallsBackToInfo(t *testing.T) {
	for _, level := range []string{"", "verbose", "INFO"} {
		if got := parseLevel(level); got.String() != "info" {
			t.Fatalf("parseLevel(%q) = %s, want info", level, got)
		}
	}
	if got := parseLevel("error"); got.String() != "error" {
		t.Fatalf("parseLevel(error) = %s", got)
	}
}

func TestLogger_Nop(t *testing.T) {
	l := NewNop()
	l.Info("discarded", "k", "v")
}
