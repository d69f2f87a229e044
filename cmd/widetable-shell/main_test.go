package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func testConfig(stdin string) (config, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return config{
		stdin:  strings.NewReader(stdin),
		stdout: &stdout,
		stderr: &stderr,
		exit:   func(int) {},
	}, &stdout, &stderr
}

func writeSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.json")
	schema := `{"person": {"d": {"max_versions": 2}}}`
	if err := os.WriteFile(path, []byte(schema), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("Bad output line %q: %v", line, err)
		}
		lines = append(lines, m)
	}
	return lines
}

func TestRunStdin(t *testing.T) {
	input := strings.Join([]string{
		"-- seed",
		"INSERT INTO person (rowkey, `d:name`) VALUES ('tina', 'Tina');",
		"",
		"SELECT * FROM person",
	}, "\n")
	cfg, stdout, stderr := testConfig(input)

	if rc := run([]string{"--schema", writeSchema(t)}, cfg); rc != 0 {
		t.Fatalf("Want rc 0, got %d (stderr %s)", rc, stderr)
	}

	lines := decodeLines(t, stdout.String())
	if len(lines) != 2 {
		t.Fatalf("Want 2 results, got %v", lines)
	}
	if lines[0]["affected"] != float64(1) {
		t.Errorf("Insert result: %v", lines[0])
	}
	rows := lines[1]["rows"].([]any)
	row := rows[0].(map[string]any)
	if row["key"] != "tina" || row["columns"].(map[string]any)["d:name"] != "Tina" {
		t.Errorf("Select result: %v", lines[1])
	}
	if !strings.Contains(stderr.String(), "created table person") {
		t.Errorf("Missing lifecycle log in %q", stderr)
	}
}

func TestRunExecFlags(t *testing.T) {
	cfg, stdout, _ := testConfig("")

	rc := run([]string{
		"-s", writeSchema(t),
		"-e", "SELECT * FROM missing",
		"-e", "SELECT * FROM person",
	}, cfg)
	if rc != 1 {
		t.Errorf("Want rc 1 after a failed statement, got %d", rc)
	}

	lines := decodeLines(t, stdout.String())
	if len(lines) != 2 {
		t.Fatalf("Want 2 results, got %v", lines)
	}
	if _, ok := lines[0]["error"]; !ok {
		t.Errorf("Want error line, got %v", lines[0])
	}
	if lines[1]["affected"] != float64(0) {
		t.Errorf("Empty select: %v", lines[1])
	}
}

func TestRunTablePrefix(t *testing.T) {
	cfg, stdout, _ := testConfig("")

	rc := run([]string{
		"--schema", writeSchema(t),
		"--table-prefix", "app",
		"-e", "INSERT INTO person (rowkey, `d:n`) VALUES ('k', 'v')",
	}, cfg)
	if rc != 0 {
		t.Fatalf("Want rc 0, got %d: %s", rc, stdout)
	}
}

func TestRunBadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	os.WriteFile(path, []byte(`{"person": {}}`), 0o644)
	cfg, _, stderr := testConfig("")

	if rc := run([]string{"--schema", path}, cfg); rc != 1 {
		t.Errorf("Want rc 1, got %d", rc)
	}
	if !strings.Contains(stderr.String(), "loading schema") {
		t.Errorf("Missing schema error in %q", stderr)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunMetricsLogsToStderr(t *testing.T) {
	cfg, _, _ := testConfig("")
	stderr := &lockedBuffer{}
	cfg.stderr = stderr

	if rc := run([]string{"--metrics-addr", "127.0.0.1:0", "-s", writeSchema(t), "-e", "SELECT * FROM person"}, cfg); rc != 0 {
		t.Fatalf("Want rc 0, got %d", rc)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(stderr.String(), "Serving metrics on 127.0.0.1:0") {
		if time.Now().After(deadline) {
			t.Fatalf("Metrics log line not written to stderr: %q", stderr.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
