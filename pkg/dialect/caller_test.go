package dialect_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/deepbridge/pkg/dialect"
)

var _ = Describe("ParseChatRequest", func() {
	It("reads every supported field", func() {
		req, err := dialect.ParseChatRequest([]byte(`{
			"model":"google/gemma-3-4b-it",
			"messages":[{"role":"user","content":"hi"}],
			"stream":true,
			"max_tokens":64,
			"temperature":0.2,
			"stream_options":{"include_usage":true}
		}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Model).To(Equal("google/gemma-3-4b-it"))
		Expect(string(req.Messages)).To(MatchJSON(`[{"role":"user","content":"hi"}]`))
		Expect(req.Stream).To(BeTrue())
		Expect(*req.MaxTokens).To(Equal(64))
		Expect(*req.Temperature).To(BeNumerically("~", 0.2))
		Expect(req.IncludeUsage).To(BeTrue())
	})

	It("only streams for a literal true", func() {
		req, err := dialect.ParseChatRequest([]byte(`{"stream":"true","messages":[]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Stream).To(BeFalse())
	})

	It("leaves optional fields unset", func() {
		req, err := dialect.ParseChatRequest([]byte(`{"messages":[]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Model).To(BeEmpty())
		Expect(req.MaxTokens).To(BeNil())
		Expect(req.Temperature).To(BeNil())
		Expect(req.IncludeUsage).To(BeFalse())
	})

	It("flags a model of the wrong type", func() {
		for _, model := range []string{`123`, `0`, `{}`, `true`, `[]`} {
			req, err := dialect.ParseChatRequest([]byte(`{"model":` + model + `,"messages":[]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(req.InvalidModel).To(BeTrue(), model)
			Expect(req.Model).To(BeEmpty(), model)
		}
	})

	It("treats null, false and empty models as absent", func() {
		for _, model := range []string{`null`, `false`, `""`} {
			req, err := dialect.ParseChatRequest([]byte(`{"model":` + model + `,"messages":[]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(req.InvalidModel).To(BeFalse(), model)
			Expect(req.Model).To(BeEmpty(), model)
		}
	})

	It("rejects a body that is not a json object", func() {
		_, err := dialect.ParseChatRequest([]byte(`not json`))
		Expect(err).To(MatchError(dialect.ErrInvalidJSON))

		_, err = dialect.ParseChatRequest([]byte(`[]`))
		Expect(err).To(MatchError(dialect.ErrNotObject))
	})
})

var _ = Describe("NewUpstreamRequest", func() {
	It("always requests usage accounting", func() {
		req, err := dialect.ParseChatRequest([]byte(`{"messages":[{"role":"user","content":"hi"}],"max_tokens":5}`))
		Expect(err).NotTo(HaveOccurred())

		out, err := json.Marshal(dialect.NewUpstreamRequest(req, "microsoft/phi-4"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchJSON(`{
			"model":"microsoft/phi-4",
			"messages":[{"role":"user","content":"hi"}],
			"stream":false,
			"max_tokens":5,
			"stream_options":{"include_usage":true,"continuous_usage_stats":true}
		}`))
	})
})

var _ = Describe("ModelList", func() {
	It("stamps every descriptor with the same metadata", func() {
		list := dialect.NewModelList([]string{"a", "b"}, "deepinfra", 1700000000)
		Expect(list.Object).To(Equal(dialect.ObjectList))
		Expect(list.Data).To(HaveLen(2))
		for _, m := range list.Data {
			Expect(m.Object).To(Equal(dialect.ObjectModel))
			Expect(m.OwnedBy).To(Equal("deepinfra"))
			Expect(m.Created).To(Equal(int64(1700000000)))
		}
	})

	It("finds a descriptor by id", func() {
		list := dialect.NewModelList([]string{"a", "b"}, "deepinfra", 1)

		m, ok := list.Find("b")
		Expect(ok).To(BeTrue())
		Expect(m.ID).To(Equal("b"))

		_, ok = list.Find("c")
		Expect(ok).To(BeFalse())
	})
})
