package sse_test

import (
	"iter"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mdpilot/pkg/sse"
)

func collect[T any](seq iter.Seq[T]) []T {
	var out []T
	for v := range seq {
		out = append(out, v)
	}
	return out
}

var _ = Describe("Decoder", func() {
	It("classifies lines in stream order", func() {
		d := sse.NewDecoder()
		lines := collect(d.Feed([]byte(": ping\ndata: {\"a\":1}\n\ndata: [DONE]\n")))

		Expect(lines).To(Equal([]sse.Line{
			{Kind: sse.KindIgnore},
			{Kind: sse.KindData, Payload: `{"a":1}`},
			{Kind: sse.KindIgnore},
			{Kind: sse.KindTerminator},
		}))
	})

	It("yields the same classified lines regardless of chunking", func() {
		input := "data: one\ndata: two\nda"
		rest := "ta: three\n"

		d1 := sse.NewDecoder()
		split := append(collect(d1.Feed([]byte(input))), collect(d1.Feed([]byte(rest)))...)

		d2 := sse.NewDecoder()
		combined := collect(d2.Feed([]byte(input + rest)))

		Expect(split).To(HaveLen(3))
		Expect(split).To(Equal(combined))
		Expect(split[2]).To(Equal(sse.Line{Kind: sse.KindData, Payload: "three"}))
	})

	It("reports the pending partial line", func() {
		d := sse.NewDecoder()
		Expect(collect(d.Feed([]byte("data: par")))).To(BeEmpty())
		Expect(d.Pending()).To(Equal(9))
		Expect(d.Remainder()).To(Equal("data: par"))
	})
})
