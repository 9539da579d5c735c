package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerCapturesOutput(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})

	Logf("filled %d of %d grids", 3, 4)

	if len(got) != 1 {
		t.Fatalf("expected 1 captured line, got %d", len(got))
	}
	if got[0] != "filled 3 of 4 grids" {
		t.Errorf("captured %q", got[0])
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	SetLogger(nil)

	// Must neither panic nor reach the previously installed logger.
	Logf("dropped %s", "line")
	if called {
		t.Error("muted logger still forwarded output")
	}
}

func TestLogfDefaultNotNil(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should default to a usable logger")
	}
}
