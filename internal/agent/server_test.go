package agent

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/spuff-dev/spuff/internal/schema"
)

func TestAgent(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Agent HTTP Suite")
}

func newTestAgent(t GinkgoTInterface) (*Agent, string) {
	dir := t.TempDir()

	specPath := filepath.Join(dir, "project.json")
	spec := schema.ProjectSpec{Name: "demo"}
	data, err := json.Marshal(spec)
	Expect(err).NotTo(HaveOccurred())
	Expect(os.WriteFile(specPath, data, 0644)).To(Succeed())

	bootstrapPath := filepath.Join(dir, "bootstrap.status")
	Expect(os.WriteFile(bootstrapPath, []byte(schema.BootstrapReady), 0644)).To(Succeed())

	const token = "test-token"
	cfg := Config{
		ListenAddr:          "127.0.0.1:0",
		Token:               token,
		AdminUser:           "dev",
		ProjectSpecPath:     specPath,
		StatusPath:          filepath.Join(dir, "status.json"),
		BootstrapStatusPath: bootstrapPath,
		ScriptLogDir:        filepath.Join(dir, "scripts"),
		Version:             "test",
	}

	a, err := New(cfg, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())
	return a, token
}

var _ = Describe("HTTP surface", func() {
	var (
		agent *Agent
		token string
		srv   *httptest.Server
	)

	BeforeEach(func() {
		agent, token = newTestAgent(GinkgoT())
		srv = httptest.NewServer(agent.router())
		DeferCleanup(srv.Close)
	})

	It("serves /health without a token", func() {
		resp, err := http.Get(srv.URL + "/health")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("rejects authenticated endpoints with no token", func() {
		resp, err := http.Get(srv.URL + "/status")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

		var body schema.ErrorResponse
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body.Error).To(Equal("unauthorized"))
	})

	It("rejects authenticated endpoints with the wrong token", func() {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/status", nil)
		req.Header.Set("X-Spuff-Token", "wrong")
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

		var body schema.ErrorResponse
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body.Error).To(Equal("unauthorized"))
	})

	It("serves /status with a valid token", func() {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/status", nil)
		req.Header.Set("X-Spuff-Token", token)
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var st schema.StatusResponse
		Expect(json.NewDecoder(resp.Body).Decode(&st)).To(Succeed())
		Expect(st.BootstrapReady).To(BeTrue())
	})

	It("treats /project/setup as idempotent across repeated calls", func() {
		req := func() *http.Request {
			r, _ := http.NewRequest(http.MethodPost, srv.URL+"/project/setup", bytes.NewReader(nil))
			r.Header.Set("X-Spuff-Token", token)
			return r
		}

		first, err := http.DefaultClient.Do(req())
		Expect(err).NotTo(HaveOccurred())
		defer first.Body.Close()
		Expect(first.StatusCode).To(Equal(http.StatusAccepted))

		second, err := http.DefaultClient.Do(req())
		Expect(err).NotTo(HaveOccurred())
		defer second.Body.Close()
		Expect(second.StatusCode).To(Equal(http.StatusOK))

		var body schema.SetupResponse
		Expect(json.NewDecoder(second.Body).Decode(&body)).To(Succeed())
		Expect(body.Status).To(Or(Equal("in_progress"), Equal("complete")))
	})

	It("runs /exec and reports the exit code", func() {
		payload, _ := json.Marshal(schema.ExecRequest{Command: "exit 7", TimeoutSecs: 5})
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/exec", bytes.NewReader(payload))
		req.Header.Set("X-Spuff-Token", token)

		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var out schema.ExecResponse
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		Expect(out.ExitCode).To(Equal(7))
	})

	It("rejects /logs requests for files outside the whitelist", func() {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/logs?file=/etc/passwd", nil)
		req.Header.Set("X-Spuff-Token", token)
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})
})
