package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/deepbridge/pkg/dialect"
	"github.com/papercomputeco/deepbridge/proxy/header"
	"github.com/papercomputeco/deepbridge/proxy/upstream"
)

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		gotReq   *http.Request
		gotBody  []byte
		client   *upstream.Client
		chatReq  *dialect.UpstreamRequest
		maxToken = 64
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x"}`))
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotReq = r
			gotBody, _ = io.ReadAll(r.Body)
			handler(w, r)
		}))

		var err error
		client, err = upstream.New(upstream.Config{
			BaseURL: server.URL + "/v1/openai/",
			Headers: header.NewHandler(header.Config{Source: "web-page"}),
		})
		Expect(err).NotTo(HaveOccurred())

		chatReq = &dialect.UpstreamRequest{
			Model:     "google/gemma-3-4b-it",
			Messages:  json.RawMessage(`[{"role":"user","content":"hi"}]`),
			Stream:    true,
			MaxTokens: &maxToken,
			StreamOptions: dialect.UpstreamStreamOptions{
				IncludeUsage:         true,
				ContinuousUsageStats: true,
			},
		}
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires a base URL", func() {
		_, err := upstream.New(upstream.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("posts the translated body to the chat completions endpoint", func() {
		resp, err := client.ChatCompletions(context.Background(), chatReq)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()

		Expect(client.Endpoint()).To(Equal(server.URL + "/v1/openai/chat/completions"))
		Expect(gotReq.Method).To(Equal(http.MethodPost))
		Expect(gotReq.URL.Path).To(Equal("/v1/openai/chat/completions"))
		Expect(gotReq.Header.Get("Accept")).To(Equal("text/event-stream"))
		Expect(gotReq.Header.Get(header.SourceHeader)).To(Equal("web-page"))
		Expect(gotBody).To(MatchJSON(`{
			"model": "google/gemma-3-4b-it",
			"messages": [{"role":"user","content":"hi"}],
			"stream": true,
			"max_tokens": 64,
			"stream_options": {"include_usage": true, "continuous_usage_stats": true}
		}`))
	})

	It("returns a StatusError for non-2xx answers", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"detail":"slow down"}`))
		}

		resp, err := client.ChatCompletions(context.Background(), chatReq)
		Expect(resp).To(BeNil())
		Expect(errors.Is(err, upstream.ErrStatus)).To(BeTrue())

		var statusErr *upstream.StatusError
		Expect(errors.As(err, &statusErr)).To(BeTrue())
		Expect(statusErr.StatusCode).To(Equal(http.StatusTooManyRequests))
		Expect(statusErr.StatusText()).To(Equal("Too Many Requests"))
		Expect(string(statusErr.Body)).To(ContainSubstring("slow down"))
		Expect(err.Error()).To(Equal("DeepInfra API error: Too Many Requests"))
	})

	It("wraps transport failures", func() {
		server.Close()

		_, err := client.ChatCompletions(context.Background(), chatReq)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, upstream.ErrStatus)).To(BeFalse())
		Expect(err.Error()).To(ContainSubstring("upstream request failed"))
	})

	Context("with a short timeout", func() {
		BeforeEach(func() {
			var err error
			client, err = upstream.New(upstream.Config{
				BaseURL: server.URL,
				Timeout: 200 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps a steady stream open past the timeout", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				flusher := w.(http.Flusher)
				for range 6 {
					_, _ = io.WriteString(w, "data: {}\n\n")
					flusher.Flush()
					time.Sleep(60 * time.Millisecond)
				}
			}

			resp, err := client.ChatCompletions(context.Background(), chatReq)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Count(string(body), "data: {}")).To(Equal(6))
		})

		It("fails a read that stalls past the timeout", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "data: {}\n\n")
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			}

			resp, err := client.ChatCompletions(context.Background(), chatReq)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			Expect(errors.Is(err, upstream.ErrIdleTimeout)).To(BeTrue())
			Expect(string(body)).To(Equal("data: {}\n\n"))
		})
	})

	It("honors context cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.ChatCompletions(ctx, chatReq)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})
