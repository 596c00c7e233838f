package watchcmder_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	watchcmder "github.com/papercomputeco/mdpilot/cmd/mdpilot/watch"
	"github.com/papercomputeco/mdpilot/pkg/logger"
)

var _ = Describe("NewWatchCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := watchcmder.NewWatchCmd()
		Expect(cmd.Use).To(Equal("watch <files...>"))
	})

	It("has --prompt and --debounce flags", func() {
		cmd := watchcmder.NewWatchCmd()
		Expect(cmd.Flags().Lookup("prompt")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("debounce").DefValue).To(Equal("500ms"))
	})

	It("requires a file", func() {
		cmd := watchcmder.NewWatchCmd()
		cmd.SetArgs([]string{"-p", "x"})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		Expect(cmd.Execute()).To(HaveOccurred())
	})
})

var _ = Describe("Watch", func() {
	var (
		dir    string
		ctx    context.Context
		cancel context.CancelFunc
		mu     sync.Mutex
		seen   []string
		done   chan error
	)

	changes := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), seen...)
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		ctx, cancel = context.WithCancel(context.Background())
		seen = nil
		done = make(chan error, 1)
	})

	AfterEach(func() {
		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	// Writes are retried slower than the 20ms debounce, so a retry never
	// restarts a pending timer.
	start := func(paths ...string) {
		go func() {
			done <- watchcmder.Watch(ctx, paths, 20*time.Millisecond, logger.Nop(), func(p string) {
				mu.Lock()
				seen = append(seen, p)
				mu.Unlock()
			})
		}()
	}

	It("reports writes to watched files only", func() {
		watched := filepath.Join(dir, "a.md")
		other := filepath.Join(dir, "b.md")
		Expect(os.WriteFile(watched, []byte("# A"), 0o644)).To(Succeed())
		start(watched)

		Eventually(func() []string {
			Expect(os.WriteFile(other, []byte("# B"), 0o644)).To(Succeed())
			Expect(os.WriteFile(watched, []byte("# A2"), 0o644)).To(Succeed())
			return changes()
		}).WithPolling(100 * time.Millisecond).WithTimeout(3 * time.Second).Should(ContainElement(watched))
		Expect(changes()).NotTo(ContainElement(other))
	})

	It("fires once for a single write", func() {
		watched := filepath.Join(dir, "a.md")
		Expect(os.WriteFile(watched, []byte("# A"), 0o644)).To(Succeed())
		start(watched)
		time.Sleep(200 * time.Millisecond)

		Expect(os.WriteFile(watched, []byte("# A2"), 0o644)).To(Succeed())
		Eventually(func() int { return len(changes()) }).Should(Equal(1))
		Consistently(func() int { return len(changes()) }, 100*time.Millisecond).Should(Equal(1))
	})

	It("coalesces bursts of writes", func() {
		watched := filepath.Join(dir, "a.md")
		Expect(os.WriteFile(watched, []byte("# A"), 0o644)).To(Succeed())
		start(watched)

		Eventually(func() []string {
			Expect(os.WriteFile(watched, []byte("# ready"), 0o644)).To(Succeed())
			return changes()
		}).WithPolling(100 * time.Millisecond).WithTimeout(3 * time.Second).ShouldNot(BeEmpty())
		time.Sleep(100 * time.Millisecond)
		before := len(changes())

		for i := range 5 {
			Expect(os.WriteFile(watched, []byte(fmt.Sprintf("# A%d", i)), 0o644)).To(Succeed())
		}

		Eventually(func() int { return len(changes()) }).WithTimeout(time.Second).Should(Equal(before + 1))
		Consistently(func() int { return len(changes()) }, 100*time.Millisecond).Should(Equal(before + 1))
	})
})

var _ = Describe("Watch command execution", func() {
	It("sends the prompt with the changed file", func() {
		configDir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(configDir, "config.toml"),
			[]byte("[api]\nkey = \"pplx-test\"\n"), 0o600)).To(Succeed())

		var (
			mu     sync.Mutex
			bodies []string
		)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(data))
			mu.Unlock()
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n\n")
		}))
		defer server.Close()

		doc := filepath.Join(GinkgoT().TempDir(), "draft.md")
		Expect(os.WriteFile(doc, []byte("# Draft"), 0o644)).To(Succeed())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() {
			root := &cobra.Command{Use: "mdpilot", SilenceUsage: true, SilenceErrors: true}
			root.PersistentFlags().Bool("debug", false, "")
			root.PersistentFlags().String("config-dir", configDir, "")
			root.AddCommand(watchcmder.NewWatchCmd())
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs([]string{"watch", "--endpoint", server.URL, "--debounce", "20ms", "-p", "review", doc})
			done <- root.ExecuteContext(ctx)
		}()

		Eventually(func() int {
			Expect(os.WriteFile(doc, []byte("# Draft v2"), 0o644)).To(Succeed())
			mu.Lock()
			defer mu.Unlock()
			return len(bodies)
		}).WithPolling(200 * time.Millisecond).WithTimeout(5 * time.Second).Should(BeNumerically(">=", 1))

		cancel()
		Eventually(done).Should(Receive(BeNil()))

		mu.Lock()
		defer mu.Unlock()
		Expect(bodies[0]).To(ContainSubstring("review"))
		Expect(bodies[0]).To(ContainSubstring("draft.md"))
	})
})
