package worker

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/deepbridge/pkg/eventstream"
	"github.com/papercomputeco/deepbridge/pkg/logger"
)

// recordingPublisher collects published events. When block is set, every
// publish signals started and then waits for release.
type recordingPublisher struct {
	mu      sync.Mutex
	events  []*eventstream.CompletionEvent
	err     error
	block   bool
	started chan struct{}
	release chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (r *recordingPublisher) PublishCompletion(_ context.Context, event *eventstream.CompletionEvent) error {
	if r.block {
		r.started <- struct{}{}
		<-r.release
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) published() []*eventstream.CompletionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.CompletionEvent(nil), r.events...)
}

func newJob(model string) Job {
	return Job{Event: eventstream.NewCompletionEvent(
		eventstream.EventSource{Service: "deepbridge"},
		eventstream.RequestMeta{RequestID: "req-" + model},
		eventstream.CompletionMeta{Model: model},
	)}
}

var _ = Describe("Worker Pool", func() {
	var pub *recordingPublisher

	BeforeEach(func() {
		pub = newRecordingPublisher()
	})

	It("requires a publisher", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(HaveOccurred())
	})

	It("applies defaults", func() {
		cfg := &Config{Publisher: pub}
		wp, err := NewPool(cfg)
		Expect(err).NotTo(HaveOccurred())
		defer wp.Close()

		Expect(cfg.NumWorkers).To(Equal(defaultNumWorkers))
		Expect(cfg.QueueSize).To(Equal(defaultJobQueueSize))
	})

	Describe("Enqueue", func() {
		It("publishes every queued job before Close returns", func() {
			wp, err := NewPool(&Config{Publisher: pub, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			for _, model := range []string{"a", "b", "c"} {
				Expect(wp.Enqueue(newJob(model))).To(BeTrue())
			}
			wp.Close()

			models := []string{}
			for _, ev := range pub.published() {
				models = append(models, ev.Completion.Model)
			}
			Expect(models).To(ConsistOf("a", "b", "c"))
		})

		It("drops jobs when the queue is full", func() {
			pub.block = true

			var dropped []Job
			wp, err := NewPool(&Config{
				Publisher:  pub,
				NumWorkers: 1,
				QueueSize:  1,
				OnDrop:     func(j Job) { dropped = append(dropped, j) },
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(wp.Enqueue(newJob("first"))).To(BeTrue())
			Eventually(pub.started).Should(Receive())

			Expect(wp.Enqueue(newJob("second"))).To(BeTrue())
			Expect(wp.Enqueue(newJob("third"))).To(BeFalse())
			Expect(dropped).To(HaveLen(1))
			Expect(dropped[0].Event.Completion.Model).To(Equal("third"))

			close(pub.release)
			wp.Close()
			Expect(pub.published()).To(HaveLen(2))
		})
	})

	It("keeps working after a publish failure", func() {
		pub.err = errors.New("broker down")

		wp, err := NewPool(&Config{Publisher: pub, NumWorkers: 1})
		Expect(err).NotTo(HaveOccurred())

		Expect(wp.Enqueue(newJob("a"))).To(BeTrue())
		Expect(wp.Enqueue(newJob("b"))).To(BeTrue())
		wp.Close()

		Expect(pub.published()).To(HaveLen(2))
	})

	It("tolerates repeated Close calls", func() {
		wp, err := NewPool(&Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		wp.Close()
		Expect(wp.Close).NotTo(Panic())
	})
})
