package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...any) { called = true })
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogfWriter(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var lines []string
	SetLogger(func(format string, v ...any) { lines = append(lines, fmt.Sprintf(format, v...)) })

	w := LogfWriter{Prefix: "ops: "}
	n, err := w.Write([]byte("roi rejected\n"))
	if err != nil || n != len("roi rejected\n") {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if len(lines) != 1 || lines[0] != "ops: roi rejected" {
		t.Errorf("lines = %q", lines)
	}
}
