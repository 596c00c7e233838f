package askcmder_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/mdpilot/cmd/mdpilot/ask"
)

var _ = Describe("NewAskCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := askcmder.NewAskCmd()
		Expect(cmd.Use).To(Equal("ask [files...]"))
	})

	It("has a repeatable --prompt flag", func() {
		cmd := askcmder.NewAskCmd()
		flag := cmd.Flags().Lookup("prompt")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("p"))
		Expect(flag.Value.Type()).To(Equal("stringArray"))
	})

	It("registers the shared registry flags with config defaults", func() {
		cmd := askcmder.NewAskCmd()
		Expect(cmd.Flags().Lookup("model").DefValue).To(Equal("sonar"))
		Expect(cmd.Flags().Lookup("cooldown").DefValue).To(Equal("20s"))
		Expect(cmd.Flags().Lookup("output").Shorthand).To(Equal("o"))
		Expect(cmd.Flags().Lookup("auto-save")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("history")).NotTo(BeNil())
	})
})

var _ = Describe("Ask command execution", func() {
	var (
		configDir string
		server    *httptest.Server
		answer    string
		mu        sync.Mutex
		bodies    []map[string]any
		out       *bytes.Buffer
		errOut    *bytes.Buffer
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
		errOut = &bytes.Buffer{}
		bodies = nil
		answer = "Hi there"

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			var body map[string]any
			_ = json.Unmarshal(data, &body)
			mu.Lock()
			bodies = append(bodies, body)
			mu.Unlock()

			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", answer)
			fmt.Fprint(w, "data: [DONE]\n\n")
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	writeKey := func() {
		Expect(os.WriteFile(filepath.Join(configDir, "config.toml"),
			[]byte("[api]\nkey = \"pplx-test\"\n"), 0o600)).To(Succeed())
	}

	run := func(stdin string, args ...string) error {
		root := &cobra.Command{Use: "mdpilot", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().Bool("debug", false, "")
		root.PersistentFlags().String("config-dir", configDir, "")
		root.AddCommand(askcmder.NewAskCmd())
		root.SetIn(strings.NewReader(stdin))
		root.SetOut(out)
		root.SetErr(errOut)
		root.SetArgs(append([]string{"ask", "--endpoint", server.URL, "--cooldown", "0s"}, args...))
		return root.Execute()
	}

	It("fails without an API key", func() {
		err := run("", "-p", "hello", "--language", "en")
		Expect(err).To(MatchError(ContainSubstring("No API key")))
	})

	It("streams the answer for a single prompt", func() {
		writeKey()
		Expect(run("", "-p", "hello")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Hi there"))
		Expect(bodies).To(HaveLen(1))
		Expect(bodies[0]["stream"]).To(BeTrue())
		Expect(bodies[0]["model"]).To(Equal("sonar"))
	})

	It("reads the prompt from stdin", func() {
		writeKey()
		Expect(run("What is CommonMark?\n")).To(Succeed())
		Expect(bodies).To(HaveLen(1))

		msgs := bodies[0]["messages"].([]any)
		last := msgs[len(msgs)-1].(map[string]any)
		Expect(last["content"]).To(ContainSubstring("What is CommonMark?"))
	})

	It("requires a prompt", func() {
		writeKey()
		Expect(run("")).To(MatchError(ContainSubstring("no prompt given")))
	})

	It("runs every prompt for every file and saves documents", func() {
		writeKey()
		docs := GinkgoT().TempDir()
		a := filepath.Join(docs, "a.md")
		b := filepath.Join(docs, "b.md")
		Expect(os.WriteFile(a, []byte("# A"), 0o644)).To(Succeed())
		Expect(os.WriteFile(b, []byte("# B"), 0o644)).To(Succeed())
		outDir := filepath.Join(docs, "out")
		answer = "Done.\n==== fixed.md ====\n# Fixed\n==== koniec ===="

		Expect(run("", "-p", "fix", "-p", "shorten", "--auto-save", "-o", outDir, "--language", "en", a, b)).To(Succeed())
		Expect(bodies).To(HaveLen(4))
		Expect(out.String()).To(ContainSubstring("File 1/2: a.md"))
		Expect(out.String()).To(ContainSubstring("File 2/2: b.md"))
		Expect(out.String()).To(ContainSubstring("Done: 4 succeeded, 0 failed, 4 files saved"))
		Expect(out.String()).NotTo(ContainSubstring("\x1b["))

		data, err := os.ReadFile(filepath.Join(outDir, "fixed.md"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("# Fixed"))
	})

	It("rejects non-Markdown files", func() {
		writeKey()
		txt := filepath.Join(GinkgoT().TempDir(), "notes.txt")
		Expect(os.WriteFile(txt, []byte("x"), 0o644)).To(Succeed())
		Expect(run("", "-p", "hello", txt)).To(HaveOccurred())
	})
})
