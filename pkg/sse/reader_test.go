package sse

import (
	"errors"
	"io"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// chunkedReader returns one chunk per Read call, mimicking network reads
// that carry no semantic boundaries.
type chunkedReader struct {
	chunks []string
	err    error
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}

	n := copy(p, c.chunks[0])
	if n < len(c.chunks[0]) {
		c.chunks[0] = c.chunks[0][n:]
	} else {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

// drain collects every event data payload until the reader ends.
func drain(r *Reader) ([]string, error) {
	var out []string
	for {
		ev, err := r.Next()
		if err != nil {
			return out, err
		}
		if ev == nil {
			return out, nil
		}
		out = append(out, ev.Data)
	}
}

const fixture = "data: {\"id\":\"x\",\"created\":1,\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n" +
	": keep-alive\n\n" +
	"\n\n" +
	"data: {\"id\":\"x\",\"choices\":[{\"delta\":{\"content\":\"héllo wörld ✓\"}}]}\n\n" +
	"event: ping\n\n" +
	"data: {\"id\":\"x\",\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n" +
	"data: [DONE]\n\n"

var _ = Describe("Reader", func() {
	Describe("Next", func() {
		It("parses a single event", func() {
			r := NewReader(strings.NewReader("data: hello world\n\n"))

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal("hello world"))

			ev, err = r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("returns every event found in a single chunk in order", func() {
			r := NewReader(strings.NewReader("data: first\n\ndata: second\n\ndata: third\n\n"))

			events, err := drain(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]string{"first", "second", "third"}))
		})

		It("discards blank segments and comment-only keep-alives", func() {
			r := NewReader(strings.NewReader("\n\n: keep-alive\n\n   \n\ndata: hello\n\n"))

			events, err := drain(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]string{"hello"}))
		})

		It("accepts a data field without the optional space", func() {
			r := NewReader(strings.NewReader("data:{\"a\":1}\n\n"))

			events, err := drain(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]string{`{"a":1}`}))
		})

		It("joins multiple data lines with newline and ignores other fields", func() {
			r := NewReader(strings.NewReader("event: message\nid: 7\ndata: line one\ndata: line two\n\n"))

			events, err := drain(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]string{"line one\nline two"}))
		})

		It("does not emit an event before its blank-line terminator arrives", func() {
			src := &chunkedReader{chunks: []string{
				"data: {\"id\":\"x\",\"created\":1,\"choices\":[{\"del",
				"ta\":{\"content\":\"hi\"}}]}\n",
				"\n",
			}}
			r := NewReader(src)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal(`{"id":"x","created":1,"choices":[{"delta":{"content":"hi"}}]}`))
			Expect(src.chunks).To(BeEmpty())
			Expect(r.Buffered()).To(Equal(0))
		})

		It("keeps the trailing partial segment buffered", func() {
			src := &chunkedReader{chunks: []string{"data: one\n\ndata: tw"}}
			r := NewReader(src)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal("one"))
			Expect(r.Buffered()).To(Equal(len("data: tw")))
		})

		It("stops at the terminal sentinel and ignores trailing bytes", func() {
			src := &chunkedReader{chunks: []string{
				"data: {\"a\":1}\n\ndata: [DONE]\n\ndata: {\"b\":2}\n\n",
				"data: {\"c\":3}\n\n",
			}}
			r := NewReader(src)

			events, err := drain(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]string{`{"a":1}`, DoneSentinel}))
			Expect(src.chunks).To(HaveLen(1), "reader must not read past the sentinel")
		})

		It("reports the sentinel through IsDone", func() {
			r := NewReader(strings.NewReader("data: [DONE]\n\n"))

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.IsDone()).To(BeTrue())
		})
	})

	Describe("end of input", func() {
		It("flushes an unterminated trailing event", func() {
			r := NewReader(strings.NewReader("data: first\n\ndata: {\"last\":true}"))

			events, err := drain(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]string{"first", `{"last":true}`}))
		})

		It("flushes a trailing payload that has no data field verbatim", func() {
			r := NewReader(strings.NewReader("data: first\n\n{\"bare\":1}\n"))

			events, err := drain(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]string{"first", `{"bare":1}`}))
		})

		It("ignores a whitespace-only trailing buffer", func() {
			r := NewReader(strings.NewReader("data: first\n\n \n"))

			events, err := drain(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]string{"first"}))
		})

		It("returns nil for an empty source", func() {
			r := NewReader(strings.NewReader(""))

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})
	})

	Describe("transport faults", func() {
		It("returns complete events before surfacing a read error", func() {
			boom := errors.New("connection reset")
			src := &chunkedReader{chunks: []string{"data: one\n\ndata: partial"}, err: boom}
			r := NewReader(src)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal("one"))

			ev, err = r.Next()
			Expect(err).To(MatchError(boom))
			Expect(ev).To(BeNil())

			ev, err = r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("fails when a single event outgrows the buffer limit", func() {
			big := "data: " + strings.Repeat("x", MaxEventSize+1)
			r := NewReader(strings.NewReader(big))

			_, err := r.Next()
			Expect(err).To(MatchError(ErrEventTooLarge))
		})
	})

	Describe("chunk-boundary invariance", func() {
		var want []string

		BeforeEach(func() {
			var err error
			want, err = drain(NewReader(strings.NewReader(fixture)))
			Expect(err).NotTo(HaveOccurred())
			Expect(want).To(HaveLen(4))
		})

		It("yields the same events for every two-way split", func() {
			for i := 0; i <= len(fixture); i++ {
				src := &chunkedReader{chunks: []string{fixture[:i], fixture[i:]}}
				got, err := drain(NewReader(src))
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want), "split at byte offset %d", i)
			}
		})

		It("yields the same events when fed one byte at a time", func() {
			got, err := drain(NewReader(iotest.OneByteReader(strings.NewReader(fixture))))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		})

		It("reassembles multi-byte characters split across reads", func() {
			input := "data: {\"content\":\"✓\"}\n\n"
			mid := strings.Index(input, "✓") + 1

			src := &chunkedReader{chunks: []string{input[:mid], input[mid:]}}
			got, err := drain(NewReader(src))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]string{`{"content":"✓"}`}))
		})
	})
})
