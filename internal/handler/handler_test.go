package handler_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angeloszaimis/health-router/internal/endpoint"
	"github.com/angeloszaimis/health-router/internal/handler"
	"github.com/angeloszaimis/health-router/internal/router"
	"github.com/angeloszaimis/health-router/pkg/logger"
)

func newRouter(urls map[string]string, order ...string) *router.Router {
	var eps []*endpoint.Endpoint
	for _, name := range order {
		ep, err := endpoint.Parse(name, urls[name])
		Expect(err).NotTo(HaveOccurred())
		eps = append(eps, ep)
	}
	r, err := router.New(eps, router.Options{ProxyTimeout: time.Second}, logger.Discard())
	Expect(err).NotTo(HaveOccurred())
	return r
}

type brokenWriter struct {
	header http.Header
	code   int
}

func (b *brokenWriter) Header() http.Header {
	if b.header == nil {
		b.header = http.Header{}
	}
	return b.header
}

func (b *brokenWriter) WriteHeader(code int) { b.code = code }

func (b *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func markDown(r *router.Router, name string) {
	_, _, err := r.Registry().Observe(name, endpoint.ProbeResult{
		Status:    endpoint.StatusUnreachable,
		CheckedAt: time.Now(),
	})
	Expect(err).NotTo(HaveOccurred())
}

var _ = Describe("ProxyHandler", func() {
	var (
		h       *handler.ProxyHandler
		rt      *router.Router
		server1 *httptest.Server
		server2 *httptest.Server
		hits1   atomic.Int64
		hits2   atomic.Int64
	)

	BeforeEach(func() {
		hits1.Store(0)
		hits2.Store(0)

		server1 = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits1.Add(1)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("X"))
		}))
		server2 = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits2.Add(1)
			w.Write([]byte("server2"))
		}))

		rt = newRouter(map[string]string{"server1": server1.URL, "server2": server2.URL}, "server1", "server2")
		h = handler.NewProxyHandler(logger.Discard(), rt)
	})

	AfterEach(func() {
		server1.Close()
		server2.Close()
	})

	It("should pass the endpoint response through", func() {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/items", nil))

		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(w.Body.String()).To(Equal("X"))
	})

	It("should alternate between healthy endpoints", func() {
		for i := 0; i < 4; i++ {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		}
		Expect(hits1.Load()).To(Equal(int64(2)))
		Expect(hits2.Load()).To(Equal(int64(2)))
	})

	It("should record one metric per forwarded request", func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/a", nil))

		all := rt.Collector().All()
		Expect(all).To(HaveLen(1))
		Expect(all[0].Service).To(Equal(router.DefaultService))
		Expect(all[0].Endpoint).To(Equal("server1"))
		Expect(all[0].Method).To(Equal(http.MethodPut))
		Expect(all[0].StatusCode).To(Equal(http.StatusCreated))
	})

	It("should skip an unreachable endpoint", func() {
		markDown(rt, "server1")

		for i := 0; i < 5; i++ {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(w.Body.String()).To(Equal("server2"))
		}
		Expect(hits1.Load()).To(BeZero())
	})

	Context("with no healthy endpoints", func() {
		BeforeEach(func() {
			markDown(rt, "server1")
			markDown(rt, "server2")
		})

		It("should answer the 503 envelope without forwarding", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(w.Body.String()).To(MatchJSON(`{"status":"error","message":"service unavailable"}`))
			Expect(hits1.Load() + hits2.Load()).To(BeZero())
			Expect(rt.Collector().Len()).To(BeZero())
		})

		It("should tolerate a client that cannot be written to", func() {
			w := &brokenWriter{}
			Expect(func() {
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
			}).NotTo(Panic())
			Expect(w.code).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Context("when the endpoint stalls after the first chunk", func() {
		var (
			stalled *httptest.Server
			front   *httptest.Server
		)

		BeforeEach(func() {
			stalled = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("partial"))
				w.(http.Flusher).Flush()
				select {
				case <-r.Context().Done():
				case <-time.After(5 * time.Second):
				}
			}))

			rt = newRouter(map[string]string{"stalled": stalled.URL}, "stalled")
			front = httptest.NewServer(handler.NewProxyHandler(logger.Discard(), rt))
		})

		AfterEach(func() {
			front.Close()
			stalled.Close()
		})

		It("should cut the client response and still record the failure", func() {
			res, err := http.Get(front.URL + "/download")
			Expect(err).NotTo(HaveOccurred())
			defer res.Body.Close()

			Expect(res.StatusCode).To(Equal(http.StatusOK))
			_, err = io.ReadAll(res.Body)
			Expect(err).To(HaveOccurred())

			Eventually(rt.Collector().Len).Should(Equal(1))
			all := rt.Collector().All()
			Expect(all[0].Endpoint).To(Equal("stalled"))
			Expect(all[0].StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(testutil.ToFloat64(rt.Exporter().ForwardFailures.WithLabelValues("stalled"))).To(Equal(1.0))
		})
	})

	Context("when the endpoint refuses connections", func() {
		BeforeEach(func() {
			server1.Close()
			markDown(rt, "server2")
		})

		It("should answer 503 and record the failure", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
			body, _ := io.ReadAll(w.Body)
			var env map[string]any
			Expect(json.Unmarshal(body, &env)).To(Succeed())
			Expect(env).To(HaveKeyWithValue("message", "service unavailable"))

			all := rt.Collector().All()
			Expect(all).To(HaveLen(1))
			Expect(all[0].StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})
})
