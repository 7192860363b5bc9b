package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan struct{})
	var buf bytes.Buffer
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	<-done
	return buf.String(), fnErr
}

// assertJSON checks that output is valid JSON and decodes it into v
func assertJSON(t *testing.T, output string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(output), v); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, output)
	}
}

// resetFlags restores global flags after a test changes them
func resetFlags(t *testing.T) {
	t.Helper()
	saved := []any{verbose, quiet, jsonOut, logLevel}
	t.Cleanup(func() {
		verbose = saved[0].(bool)
		quiet = saved[1].(bool)
		jsonOut = saved[2].(bool)
		logLevel = saved[3].(string)
	})
}
