package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/health-router/config"
)

const validConfig = `
server:
  address: ":8001"
  admin_address: ":8005"
  environment: "dev"

health_check:
  interval: "10s"
  timeout: "2s"
  path: "/saude"

strategy:
  type: "health-aware"

proxy:
  timeout: "15s"

metrics:
  capacity: 50
  service_name: "gateway"

alerts:
  window: "1m"
  error_rate: 0.25
  latency: "500ms"

endpoints:
  - name: "server1"
    url: "http://localhost:8002"
  - url: "http://localhost:8003"

logging:
  level: "debug"
`

var _ = Describe("Config", func() {
	var tempDir string

	writeConfig := func(content string) string {
		path := filepath.Join(tempDir, "config.yaml")
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
		os.Unsetenv("STRATEGY_TYPE")
		os.Unsetenv("ENDPOINT_URLS")
	})

	Describe("LoadFrom", func() {
		Context("with a valid config file", func() {
			var cfg *config.Config

			BeforeEach(func() {
				var err error
				cfg, err = config.LoadFrom(writeConfig(validConfig))
				Expect(err).NotTo(HaveOccurred())
			})

			It("should parse the listeners", func() {
				Expect(cfg.Server.Address).To(Equal(":8001"))
				Expect(cfg.Server.AdminAddress).To(Equal(":8005"))
			})

			It("should parse the health check section", func() {
				Expect(cfg.HealthCheck.IntervalDuration()).To(Equal(10 * time.Second))
				Expect(cfg.HealthCheck.TimeoutDuration()).To(Equal(2 * time.Second))
				Expect(cfg.HealthCheck.Path).To(Equal("/saude"))
			})

			It("should parse proxy, metrics and alert settings", func() {
				Expect(cfg.Proxy.TimeoutDuration()).To(Equal(15 * time.Second))
				Expect(cfg.Metrics.Capacity).To(Equal(50))
				Expect(cfg.Metrics.ServiceName).To(Equal("gateway"))
				Expect(cfg.Alerts.WindowDuration()).To(Equal(time.Minute))
				Expect(cfg.Alerts.ErrorRate).To(Equal(0.25))
				Expect(cfg.Alerts.LatencyDuration()).To(Equal(500 * time.Millisecond))
			})

			It("should parse the endpoint list in order", func() {
				Expect(cfg.Endpoints).To(Equal([]config.EndpointConfig{
					{Name: "server1", URL: "http://localhost:8002"},
					{URL: "http://localhost:8003"},
				}))
			})
		})

		Context("with environment overrides", func() {
			It("should prefer the environment over the file", func() {
				os.Setenv("STRATEGY_TYPE", "naive")
				cfg, err := config.LoadFrom(writeConfig(validConfig))
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Strategy.Type).To(Equal(config.StrategyNaive))
			})

			It("should read endpoints from ENDPOINT_URLS", func() {
				os.Setenv("ENDPOINT_URLS", "a=http://localhost:9001, http://localhost:9002")
				cfg, err := config.LoadFrom(writeConfig(validConfig))
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Endpoints).To(Equal([]config.EndpointConfig{
					{Name: "a", URL: "http://localhost:9001"},
					{URL: "http://localhost:9002"},
				}))
			})
		})

		Context("with an explicit path that does not exist", func() {
			It("should return an error", func() {
				_, err := config.LoadFrom(filepath.Join(tempDir, "missing.yaml"))
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Load", func() {
		var wd string

		BeforeEach(func() {
			var err error
			wd, err = os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(tempDir)).To(Succeed())
		})

		AfterEach(func() {
			Expect(os.Chdir(wd)).To(Succeed())
		})

		It("should find config.yaml in the working directory", func() {
			writeConfig(validConfig)
			cfg, err := config.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Endpoints).To(HaveLen(2))
		})

		It("should apply defaults when the file is missing", func() {
			os.Setenv("ENDPOINT_URLS", "http://localhost:8002")
			cfg, err := config.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Strategy.Type).To(Equal(config.StrategyHealthAware))
			Expect(cfg.HealthCheck.IntervalDuration()).To(Equal(30 * time.Second))
			Expect(cfg.HealthCheck.Path).To(Equal("/health"))
			Expect(cfg.Proxy.TimeoutDuration()).To(Equal(30 * time.Second))
			Expect(cfg.Metrics.Capacity).To(Equal(1000))
			Expect(cfg.Alerts.ErrorRate).To(Equal(0.10))
		})

		It("should read variables from a .env file", func() {
			Expect(os.WriteFile(filepath.Join(tempDir, ".env"), []byte("ENDPOINT_URLS=http://localhost:9100\n"), 0644)).To(Succeed())

			cfg, err := config.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Endpoints).To(Equal([]config.EndpointConfig{{URL: "http://localhost:9100"}}))
		})

		It("should reject a configuration without endpoints", func() {
			_, err := config.Load()
			Expect(err).To(MatchError(ContainSubstring("Endpoints")))
		})
	})

	Describe("Validate", func() {
		var cfg *config.Config

		BeforeEach(func() {
			var err error
			cfg, err = config.LoadFrom(writeConfig(validConfig))
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("rejects invalid values",
			func(mutate func(*config.Config)) {
				mutate(cfg)
				Expect(cfg.Validate()).To(HaveOccurred())
			},
			Entry("unknown strategy", func(c *config.Config) { c.Strategy.Type = "least-conn" }),
			Entry("bad interval", func(c *config.Config) { c.HealthCheck.Interval = "soon" }),
			Entry("negative timeout", func(c *config.Config) { c.Proxy.Timeout = "-1s" }),
			Entry("relative health path", func(c *config.Config) { c.HealthCheck.Path = "health" }),
			Entry("zero capacity", func(c *config.Config) { c.Metrics.Capacity = 0 }),
			Entry("error rate above one", func(c *config.Config) { c.Alerts.ErrorRate = 1.5 }),
			Entry("ftp endpoint", func(c *config.Config) { c.Endpoints[0].URL = "ftp://localhost" }),
			Entry("endpoint without host", func(c *config.Config) { c.Endpoints[0].URL = "http://" }),
			Entry("duplicate endpoint name", func(c *config.Config) { c.Endpoints[1].Name = "server1" }),
			Entry("shared listener address", func(c *config.Config) { c.Server.AdminAddress = c.Server.Address }),
			Entry("bad admin address", func(c *config.Config) { c.Server.AdminAddress = "8005" }),
		)
	})
})
