package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angeloszaimis/health-router/internal/handler"
	"github.com/angeloszaimis/health-router/internal/metrics"
	"github.com/angeloszaimis/health-router/internal/router"
	"github.com/angeloszaimis/health-router/pkg/logger"
)

type envelopeBody struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type selfHealthBody struct {
	Status           string `json:"status"`
	Strategy         string `json:"strategy"`
	HealthyEndpoints int    `json:"healthy_endpoints"`
	TotalEndpoints   int    `json:"total_endpoints"`
}

func decode(w *httptest.ResponseRecorder) envelopeBody {
	var env envelopeBody
	Expect(json.Unmarshal(w.Body.Bytes(), &env)).To(Succeed())
	return env
}

var _ = Describe("APIHandler", func() {
	var (
		api *handler.APIHandler
		rt  *router.Router
	)

	BeforeEach(func() {
		rt = newRouter(map[string]string{
			"server1": "http://127.0.0.1:1",
			"server2": "http://127.0.0.1:2",
		}, "server1", "server2")
		api = handler.NewAPIHandler(logger.Discard(), rt)
	})

	Describe("Health", func() {
		It("should report every endpoint", func() {
			w := httptest.NewRecorder()
			api.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			env := decode(w)
			Expect(env.Status).To(Equal("success"))

			var self selfHealthBody
			Expect(json.Unmarshal(env.Data, &self)).To(Succeed())
			Expect(self.Status).To(Equal(handler.SelfHealthy))
			Expect(self.TotalEndpoints).To(Equal(2))
			Expect(self.HealthyEndpoints).To(Equal(2))
			Expect(self.Strategy).To(Equal("health-aware"))
		})

		It("should report degraded when nothing is routable", func() {
			markDown(rt, "server1")
			markDown(rt, "server2")

			w := httptest.NewRecorder()
			api.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			var self selfHealthBody
			Expect(json.Unmarshal(decode(w).Data, &self)).To(Succeed())
			Expect(self.Status).To(Equal(handler.SelfDegraded))
			Expect(self.HealthyEndpoints).To(BeZero())
		})
	})

	Describe("EndpointHealth", func() {
		It("should return the named record", func() {
			markDown(rt, "server2")

			req := httptest.NewRequest(http.MethodGet, "/health/server2", nil)
			req.SetPathValue("name", "server2")
			w := httptest.NewRecorder()
			api.EndpointHealth(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var rec map[string]any
			Expect(json.Unmarshal(decode(w).Data, &rec)).To(Succeed())
			Expect(rec).To(HaveKeyWithValue("status", "unreachable"))
			Expect(rec).To(HaveKeyWithValue("consecutive_failures", BeNumerically("==", 1)))
		})

		It("should answer 404 for an unknown endpoint", func() {
			req := httptest.NewRequest(http.MethodGet, "/health/nope", nil)
			req.SetPathValue("name", "nope")
			w := httptest.NewRecorder()
			api.EndpointHealth(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
			env := decode(w)
			Expect(env.Status).To(Equal("error"))
			Expect(env.Message).To(Equal("endpoint not found: nope"))
		})
	})

	Describe("IngestMetric", func() {
		post := func(body string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			api.IngestMetric(w, httptest.NewRequest(http.MethodPost, "/metrics", strings.NewReader(body)))
			return w
		}

		It("should acknowledge and record a valid metric", func() {
			w := post(`{"service":"api_gateway","endpoint":"/items","method":"GET","status_code":200,"latency_seconds":0.25,"timestamp":"2026-01-02T03:04:05Z"}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`{"status":"success","message":"metric recorded"}`))

			all := rt.Collector().All()
			Expect(all).To(HaveLen(1))
			Expect(all[0].Service).To(Equal("api_gateway"))
			Expect(all[0].Latency).To(Equal(250 * time.Millisecond))
			Expect(all[0].Timestamp).To(Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
		})

		It("should stamp metrics sent without a timestamp", func() {
			before := time.Now()
			post(`{"service":"s","endpoint":"/","method":"GET","status_code":500,"latency_seconds":0}`)

			all := rt.Collector().All()
			Expect(all).To(HaveLen(1))
			Expect(all[0].Timestamp).To(BeTemporally(">=", before))
		})

		It("should keep ingested metrics out of the Prometheus exporter", func() {
			for i := range 20 {
				w := post(fmt.Sprintf(`{"service":"svc-%d","endpoint":"/e/%d","method":"GET","status_code":200,"latency_seconds":0.1}`, i, i))
				Expect(w.Code).To(Equal(http.StatusOK))
			}

			Expect(rt.Collector().Len()).To(Equal(20))
			Expect(testutil.CollectAndCount(rt.Exporter().RequestsTotal)).To(Equal(0))
		})

		DescribeTable("rejects invalid bodies",
			func(body string) {
				w := post(body)
				Expect(w.Code).To(Equal(http.StatusBadRequest))
				Expect(decode(w).Status).To(Equal("error"))
				Expect(rt.Collector().Len()).To(BeZero())
			},
			Entry("malformed JSON", `{"service":`),
			Entry("missing service", `{"endpoint":"/","method":"GET","status_code":200,"latency_seconds":1}`),
			Entry("lower case method", `{"service":"s","endpoint":"/","method":"get","status_code":200,"latency_seconds":1}`),
			Entry("status out of range", `{"service":"s","endpoint":"/","method":"GET","status_code":700,"latency_seconds":1}`),
			Entry("missing latency", `{"service":"s","endpoint":"/","method":"GET","status_code":200}`),
			Entry("negative latency", `{"service":"s","endpoint":"/","method":"GET","status_code":200,"latency_seconds":-1}`),
		)
	})

	Describe("QueryMetrics", func() {
		BeforeEach(func() {
			now := time.Now()
			for i := 0; i < 5; i++ {
				rt.Collector().Record(metrics.Metric{Service: "a", Endpoint: "/x", Method: "GET", StatusCode: 200, Timestamp: now})
			}
			rt.Collector().Record(metrics.Metric{Service: "b", Endpoint: "/y", Method: "GET", StatusCode: 500, Timestamp: now})
		})

		query := func(target string) (*httptest.ResponseRecorder, metrics.QueryResult) {
			w := httptest.NewRecorder()
			api.QueryMetrics(w, httptest.NewRequest(http.MethodGet, target, nil))
			var res metrics.QueryResult
			if w.Code == http.StatusOK {
				Expect(json.Unmarshal(decode(w).Data, &res)).To(Succeed())
			}
			return w, res
		}

		It("should filter by service and apply the limit", func() {
			w, res := query("/metrics?service=a&limit=2")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(res.Total).To(Equal(5))
			Expect(res.Returned).To(Equal(2))
			Expect(res.Metrics).To(HaveLen(2))
		})

		It("should filter by endpoint", func() {
			_, res := query("/metrics?endpoint=/y")
			Expect(res.Total).To(Equal(1))
			Expect(res.Metrics[0].Service).To(Equal("b"))
		})

		DescribeTable("rejects bad limits",
			func(limit string) {
				w, _ := query("/metrics?limit=" + limit)
				Expect(w.Code).To(Equal(http.StatusBadRequest))
			},
			Entry("zero", "0"),
			Entry("negative", "-3"),
			Entry("not a number", "ten"),
		)
	})

	Describe("Summary", func() {
		It("should summarize recorded metrics", func() {
			rt.Collector().Record(metrics.Metric{Service: "a", StatusCode: 200, Latency: time.Second, Timestamp: time.Now()})
			rt.Collector().Record(metrics.Metric{Service: "a", StatusCode: 503, Latency: time.Second, Timestamp: time.Now()})

			w := httptest.NewRecorder()
			api.Summary(w, httptest.NewRequest(http.MethodGet, "/metrics/summary", nil))

			var s metrics.Summary
			Expect(json.Unmarshal(decode(w).Data, &s)).To(Succeed())
			Expect(s.TotalRequests).To(Equal(int64(2)))
			Expect(s.TotalErrors).To(Equal(int64(1)))
			Expect(s.ErrorRate).To(BeNumerically("~", 50.0))
		})
	})

	Describe("Alerts", func() {
		It("should list an alert per unhealthy endpoint", func() {
			markDown(rt, "server1")

			w := httptest.NewRecorder()
			api.Alerts(w, httptest.NewRequest(http.MethodGet, "/alerts", nil))

			var view map[string]any
			Expect(json.Unmarshal(decode(w).Data, &view)).To(Succeed())
			Expect(view).To(HaveKeyWithValue("total_alerts", BeNumerically("==", 1)))
		})
	})

	Describe("Dashboard", func() {
		It("should compose health, summary and alerts", func() {
			w := httptest.NewRecorder()
			api.Dashboard(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			var view map[string]json.RawMessage
			Expect(json.Unmarshal(decode(w).Data, &view)).To(Succeed())
			Expect(view).To(HaveKey("health"))
			Expect(view).To(HaveKey("summary"))
			Expect(view).To(HaveKey("alerts"))
			Expect(view).To(HaveKey("timestamp"))
		})
	})
})
