package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const minimalSpecYAML = "" +
	"openapi: 3.0.0\n" +
	"info:\n" +
	"  title: Test API\n" +
	"  version: '1.0.0'\n" +
	"  description: A small test API\n" +
	"servers:\n" +
	"  - url: https://api.example.com/v1\n" +
	"paths:\n" +
	"  /hello:\n" +
	"    get:\n" +
	"      operationId: sayHello\n" +
	"      summary: Hello\n" +
	"      tags: [greetings]\n" +
	"      parameters:\n" +
	"        - name: who\n" +
	"          in: query\n" +
	"          schema:\n" +
	"            type: string\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n" +
	"  /admin/reset:\n" +
	"    post:\n" +
	"      operationId: resetAll\n" +
	"      summary: Reset everything\n" +
	"      tags: [admin]\n" +
	"      responses:\n" +
	"        '204':\n" +
	"          description: reset\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func writeSpec(t *testing.T) string {
	t.Helper()
	return writeFile(t, "spec.yaml", minimalSpecYAML)
}

// execute runs the root command and returns what it wrote to stdout and
// stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
