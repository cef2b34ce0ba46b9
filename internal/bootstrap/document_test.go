package bootstrap

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spuff-dev/spuff/internal/schema"
)

func testInput() Input {
	return Input{
		AdminUser:  "dev",
		PublicKey:  "ssh-ed25519 AAAAexample dev@workstation",
		AgentToken: "tok-123",
		AgentURL:   "https://example.invalid/spuffd",
		ProjectSpec: schema.ProjectSpec{
			Name:     "myapp",
			Bundles:  []schema.Bundle{schema.BundleRust, schema.BundleNode},
			Packages: []string{"postgresql-client"},
			Ports:    []int{3000, 5432},
		},
	}
}

func TestRenderIsPure(t *testing.T) {
	in := testInput()
	a, err := Render(in)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	b, err := Render(in)
	if err != nil {
		t.Fatalf("Render() second call error = %v", err)
	}
	if a != b {
		t.Fatal("expected identical inputs to produce byte-identical documents")
	}
}

func TestRenderEmbedsProjectSpecJSON(t *testing.T) {
	in := testInput()
	doc, err := Render(in)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	embedded, err := extractEmbeddedProjectJSON(doc)
	if err != nil {
		t.Fatalf("extractEmbeddedProjectJSON() error = %v", err)
	}

	var spec schema.ProjectSpec
	if err := json.Unmarshal([]byte(embedded), &spec); err != nil {
		t.Fatalf("decode embedded spec: %v", err)
	}
	if spec.Name != in.ProjectSpec.Name {
		t.Errorf("round-tripped Name = %q, want %q", spec.Name, in.ProjectSpec.Name)
	}
	if len(spec.Bundles) != len(in.ProjectSpec.Bundles) {
		t.Errorf("round-tripped Bundles length = %d, want %d", len(spec.Bundles), len(in.ProjectSpec.Bundles))
	}
}

func TestRenderStaysUnderSizeLimit(t *testing.T) {
	in := testInput()
	doc, err := Render(in)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(doc) > MaxDocumentSize {
		t.Errorf("document is %d bytes, over the %d byte limit", len(doc), MaxDocumentSize)
	}
}

func TestRenderIncludesAdminUserAndKey(t *testing.T) {
	in := testInput()
	doc, err := Render(in)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(doc, "name: dev") {
		t.Error("expected admin user name in document")
	}
	if !strings.Contains(doc, in.PublicKey) {
		t.Error("expected public key in document")
	}
	if !strings.Contains(doc, "disable_root: true") {
		t.Error("expected root login disabled")
	}
}

// extractEmbeddedProjectJSON finds the write_files entry for
// /opt/spuff/project.json and base64-decodes its content, exercising the
// same round trip a real Agent performs.
func extractEmbeddedProjectJSON(doc string) (string, error) {
	lines := strings.Split(doc, "\n")
	for i, line := range lines {
		if strings.Contains(line, "/opt/spuff/project.json") {
			for j := i; j < len(lines) && j < i+4; j++ {
				if strings.Contains(lines[j], "content:") {
					b64 := strings.TrimSpace(strings.SplitN(lines[j], "content:", 2)[1])
					decoded, err := base64.StdEncoding.DecodeString(b64)
					if err != nil {
						return "", err
					}
					return string(decoded), nil
				}
			}
		}
	}
	return "", errNotFound
}

var errNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "project.json entry not found in document" }
