package dialect_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/deepbridge/pkg/dialect"
)

var _ = Describe("ParseDelta", func() {
	It("reads the identifier, timestamp and first delta", func() {
		d, err := dialect.ParseDelta([]byte(`{"id":"x","created":1,"model":"up","choices":[{"delta":{"content":"hi"}}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(d.ID).To(Equal("x"))
		Expect(d.Created).To(Equal(int64(1)))
		Expect(d.Model).To(Equal("up"))
		Expect(d.HasChoice).To(BeTrue())
		Expect(string(d.Delta)).To(Equal(`{"content":"hi"}`))
		Expect(d.FinishReason).To(BeNil())
		Expect(d.Usage).To(BeNil())
	})

	It("reads the finish reason and usage", func() {
		d, err := dialect.ParseDelta([]byte(`{"id":"x","choices":[{"delta":{},"finish_reason":"length"}],"usage":{"prompt_tokens":3,"completion_tokens":5,"total_tokens":8}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(d.FinishReason).NotTo(BeNil())
		Expect(*d.FinishReason).To(Equal("length"))
		Expect(d.Usage).To(Equal(&dialect.Usage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8}))
	})

	It("treats null and empty finish reasons as absent", func() {
		d, err := dialect.ParseDelta([]byte(`{"choices":[{"delta":{},"finish_reason":null}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(d.FinishReason).To(BeNil())

		d, err = dialect.ParseDelta([]byte(`{"choices":[{"delta":{},"finish_reason":""}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(d.FinishReason).To(BeNil())
	})

	It("marks usage-only chunks as having no choice", func() {
		d, err := dialect.ParseDelta([]byte(`{"id":"x","choices":[],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(d.HasChoice).To(BeFalse())
		Expect(d.Usage.TotalTokens).To(Equal(3))
	})

	It("leaves a null delta unset", func() {
		d, err := dialect.ParseDelta([]byte(`{"choices":[{"delta":null}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(d.HasChoice).To(BeTrue())
		Expect(d.Delta).To(BeNil())
	})

	It("rejects malformed json", func() {
		_, err := dialect.ParseDelta([]byte(`{"id":`))
		Expect(err).To(MatchError(dialect.ErrInvalidJSON))
	})

	It("rejects payloads that are not objects", func() {
		_, err := dialect.ParseDelta([]byte(`[1,2]`))
		Expect(err).To(MatchError(dialect.ErrNotObject))

		_, err = dialect.ParseDelta([]byte(`"keep-alive"`))
		Expect(err).To(MatchError(dialect.ErrNotObject))
	})
})

var _ = Describe("ParseResponse", func() {
	It("reads a complete response", func() {
		r, err := dialect.ParseResponse([]byte(`{
			"id":"cmpl-1","created":42,"model":"up",
			"choices":[{"message":{"role":"assistant","content":"hello","reasoning_content":"thinking"},"finish_reason":"length"}],
			"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}
		}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(r.ID).To(Equal("cmpl-1"))
		Expect(r.Created).To(Equal(int64(42)))
		Expect(r.Content).To(Equal("hello"))
		Expect(r.ReasoningContent).To(Equal("thinking"))
		Expect(r.FinishReason).To(Equal("length"))
		Expect(r.Usage).To(Equal(&dialect.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}))
	})

	It("defaults every field when the shape is wrong", func() {
		r, err := dialect.ParseResponse([]byte(`{"choices":"nope"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Content).To(BeEmpty())
		Expect(r.FinishReason).To(BeEmpty())
		Expect(r.Usage).To(BeNil())

		r, err = dialect.ParseResponse([]byte(`[]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(*r).To(Equal(dialect.UpstreamResponse{}))
	})

	It("rejects a body that is not json", func() {
		_, err := dialect.ParseResponse([]byte(`<html>bad gateway</html>`))
		Expect(err).To(MatchError(dialect.ErrInvalidJSON))
	})
})
