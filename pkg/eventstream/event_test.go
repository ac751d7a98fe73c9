package eventstream_test

import (
	"encoding/json"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/deepbridge/pkg/dialect"
	"github.com/papercomputeco/deepbridge/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals CompletionEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.NewCompletionEvent(
			eventstream.EventSource{Service: "deepbridge", Upstream: "https://api.deepinfra.com/v1/openai"},
			eventstream.RequestMeta{
				RequestID:   "req-1",
				Path:        "/v1/chat/completions",
				StartedAt:   now.Add(-2 * time.Second),
				CompletedAt: now,
				DurationMs:  2000,
				Streaming:   true,
				HTTPStatus:  200,
			},
			eventstream.CompletionMeta{
				Model:        "microsoft/phi-4",
				FinishReason: "stop",
				Usage:        &dialect.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
				Frames:       4,
			},
		)

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("request_meta"))
		Expect(got).To(HaveKey("completion"))
	})

	It("stamps the envelope", func() {
		a := eventstream.NewCompletionEvent(eventstream.EventSource{}, eventstream.RequestMeta{}, eventstream.CompletionMeta{})
		b := eventstream.NewCompletionEvent(eventstream.EventSource{}, eventstream.RequestMeta{}, eventstream.CompletionMeta{})

		Expect(a.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(a.EventType).To(Equal(eventstream.EventTypeCompletionFinished))
		Expect(strings.HasPrefix(a.EventID, "evt_")).To(BeTrue())
		Expect(a.EventID).NotTo(Equal(b.EventID))
		Expect(a.EmittedAt).NotTo(BeZero())
	})

	It("provides ErrNilEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilEvent).To(MatchError("nil completion event"))
	})
})
