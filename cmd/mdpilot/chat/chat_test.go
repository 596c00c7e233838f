package chatcmder_test

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

	chatcmder "github.com/papercomputeco/mdpilot/cmd/mdpilot/chat"
	"github.com/papercomputeco/mdpilot/pkg/llm"
)

var _ = Describe("NewChatCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
	})

	It("has a repeatable --file flag", func() {
		cmd := chatcmder.NewChatCmd()
		flag := cmd.Flags().Lookup("file")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("f"))
	})

	It("has --model and --history flags", func() {
		cmd := chatcmder.NewChatCmd()
		model := cmd.Flags().Lookup("model")
		Expect(model).NotTo(BeNil())
		Expect(model.Shorthand).To(Equal("m"))
		Expect(model.DefValue).To(Equal("sonar"))
		Expect(cmd.Flags().Lookup("history").DefValue).To(Equal("false"))
	})
})

var _ = Describe("Chat session", func() {
	var (
		configDir string
		server    *httptest.Server
		mu        sync.Mutex
		requests  []llm.ChatRequest
		out       *bytes.Buffer
		errOut    *bytes.Buffer
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(configDir, "config.toml"),
			[]byte("[api]\nkey = \"pplx-test\"\n\n[chat]\nlanguage = \"en\"\n"), 0o600)).To(Succeed())

		out = &bytes.Buffer{}
		errOut = &bytes.Buffer{}
		requests = nil

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			var req llm.ChatRequest
			_ = json.Unmarshal(data, &req)
			mu.Lock()
			requests = append(requests, req)
			n := len(requests)
			mu.Unlock()

			answer := fmt.Sprintf("answer %d\n==== note%d.md ====\n# Note %d\n==== koniec ====", n, n, n)
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", answer)
			fmt.Fprint(w, "data: [DONE]\n\n")
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	run := func(stdin string, args ...string) error {
		root := &cobra.Command{Use: "mdpilot", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().Bool("debug", false, "")
		root.PersistentFlags().String("config-dir", configDir, "")
		root.AddCommand(chatcmder.NewChatCmd())
		root.SetIn(strings.NewReader(stdin))
		root.SetOut(out)
		root.SetErr(errOut)
		root.SetArgs(append([]string{"chat", "--endpoint", server.URL, "--cooldown", "0s"}, args...))
		return root.Execute()
	}

	It("answers each line and stops at /quit", func() {
		Expect(run("hello\n\n/quit\nignored\n")).To(Succeed())
		Expect(requests).To(HaveLen(1))
		Expect(out.String()).To(ContainSubstring("answer 1"))
	})

	It("sends history only once enabled", func() {
		Expect(run("first\nsecond\n/history on\nthird\n")).To(Succeed())
		Expect(requests).To(HaveLen(3))

		// system prompt + user
		Expect(requests[0].Messages).To(HaveLen(2))
		Expect(requests[1].Messages).To(HaveLen(2))
		// system prompt + two complete pairs + user
		Expect(requests[2].Messages).To(HaveLen(6))
		Expect(out.String()).To(ContainSubstring("History will be sent with requests"))
	})

	It("forgets history after /clear", func() {
		Expect(run("first\n/clear\nsecond\n", "--history")).To(Succeed())
		Expect(requests).To(HaveLen(2))
		Expect(requests[1].Messages).To(HaveLen(2))
	})

	It("saves the documents of the last answer", func() {
		outDir := filepath.Join(GinkgoT().TempDir(), "out")
		Expect(run("/save\nhello\n/save\n", "-o", outDir)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("The last answer has no documents to save"))

		data, err := os.ReadFile(filepath.Join(outDir, "note1.md"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("# Note 1"))
	})

	It("attaches files and queries each one", func() {
		dir := GinkgoT().TempDir()
		a := filepath.Join(dir, "a.md")
		b := filepath.Join(dir, "b.md")
		Expect(os.WriteFile(a, []byte("# Alpha"), 0o644)).To(Succeed())
		Expect(os.WriteFile(b, []byte("# Beta"), 0o644)).To(Succeed())

		Expect(run("/attach "+b+"\n/files\nsummarize\n", "--file", a)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Attached: b.md"))
		Expect(requests).To(HaveLen(2))
		Expect(requests[0].Messages[1].Content).To(ContainSubstring("# Alpha"))
		Expect(requests[1].Messages[1].Content).To(ContainSubstring("# Beta"))
	})

	It("reports unknown commands and bad attachments", func() {
		Expect(run("/nope\n/attach missing.md\n")).To(Succeed())
		Expect(errOut.String()).To(ContainSubstring("Unknown command: /nope"))
		Expect(requests).To(BeEmpty())
	})
})
