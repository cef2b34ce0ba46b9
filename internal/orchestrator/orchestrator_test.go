package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spuff-dev/spuff/internal/provider"
	_ "github.com/spuff-dev/spuff/internal/provider/mock"
	"github.com/spuff-dev/spuff/internal/schema"
	"github.com/spuff-dev/spuff/internal/store"
	"github.com/spuff-dev/spuff/internal/volume"
)

func TestOrchestrator(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Orchestrator Suite")
}

func newHarness(t GinkgoTInterface) (*Orchestrator, *store.Store, *volume.State) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "instances.json"))
	Expect(err).NotTo(HaveOccurred())
	vs, err := volume.OpenState(filepath.Join(dir, "volumes.json"))
	Expect(err).NotTo(HaveOccurred())

	prov, err := provider.New("mock", "unused", schema.DefaultTimeouts())
	Expect(err).NotTo(HaveOccurred())

	o := &Orchestrator{
		Provider: prov,
		Store:    st,
		Volumes:  vs,
		Config: Config{
			AdminUser: "dev",
			PublicKey: "ssh-ed25519 AAAAexample dev@workstation",
			Region:    "nyc3",
			Size:      "s-2vcpu-4gb",
			Image:     schema.UbuntuImage("22.04"),
			DataDir:   dir,
			Timeouts:  schema.DefaultTimeouts(),
			NoConnect: true,
		},
	}
	return o, st, vs
}

var _ = Describe("Up", func() {
	It("refuses to provision a second instance while one is active", func() {
		o, st, _ := newHarness(GinkgoT())

		Expect(st.Save(schema.LocalInstance{ID: "existing-1", Name: "spuff-existing"}, false)).To(Succeed())

		_, err := o.Up(context.Background(), schema.ProjectSpec{Name: "demo"})
		Expect(err).To(HaveOccurred())

		var stageErr *StageError
		Expect(asStageError(err, &stageErr)).To(BeTrue())
		Expect(stageErr.State).To(Equal(StateStart))
	})

	It("persists a store row before probing SSH, so a partial provision is recoverable", func() {
		o, st, _ := newHarness(GinkgoT())

		// NoConnect is set, but WaitTCP against 203.0.113.10:22 (the mock
		// provider's fixed IP, a TEST-NET-3 address per RFC 5737) will
		// never complete a handshake; cancel the context up front so the
		// probe fails on its first attempt instead of actually waiting
		// out o.Config.Timeouts.SSHConnect, and assert the row still
		// exists despite the later failure.
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := o.Up(ctx, schema.ProjectSpec{Name: "demo"})
		Expect(err).To(HaveOccurred())

		active, ok, err := st.GetActive()
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(active.Name).To(HavePrefix("spuff-"))
	})
})

var _ = Describe("Down", func() {
	It("fails with no active instance", func() {
		o, _, _ := newHarness(GinkgoT())
		err := o.Down(context.Background(), schema.ProjectSpec{}, DownOptions{})
		Expect(err).To(HaveOccurred())
	})

	It("force-unmounts every recorded volume and clears both stores even with an unreachable VM", func() {
		o, st, vs := newHarness(GinkgoT())

		inst, err := o.Provider.CreateInstance(context.Background(), schema.InstanceRequest{Name: "spuff-abcd1234"})
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Save(schema.LocalInstance{ID: inst.ID, Name: "spuff-abcd1234", IP: "203.0.113.10"}, false)).To(Succeed())

		mountPoint := filepath.Join(GinkgoT().TempDir(), "mnt")
		Expect(vs.Add(schema.VolumeMount{MountPoint: mountPoint, RemotePath: "~/p/src", InstanceName: "spuff-abcd1234"})).To(Succeed())

		err = o.Down(context.Background(), schema.ProjectSpec{}, DownOptions{Force: true})
		Expect(err).NotTo(HaveOccurred())

		_, ok, err := st.GetActive()
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		mounts, err := vs.ForInstance("spuff-abcd1234")
		Expect(err).NotTo(HaveOccurred())
		Expect(mounts).To(BeEmpty())

		_, found, err := o.Provider.GetInstance(context.Background(), inst.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})
})

func asStageError(err error, target **StageError) bool {
	for err != nil {
		if se, ok := err.(*StageError); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
