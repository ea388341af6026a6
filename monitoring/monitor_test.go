package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/linecomp/linecache"
	"github.com/sarchlab/linecomp/pattern"
)

type fakeSource struct {
	name  string
	stats *pattern.Statistics
	cache linecache.Stats
}

func (s fakeSource) Name() string {
	return s.name
}

func (s fakeSource) Snapshot() *pattern.Statistics {
	return s.stats
}

func (s fakeSource) CacheStats() linecache.Stats {
	return s.cache
}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		server *httptest.Server
		stats  *pattern.Statistics
	)

	BeforeEach(func() {
		m = NewMonitor()
		server = httptest.NewServer(m.Router())

		var err error
		stats, err = pattern.NewStatistics(8)
		Expect(err).NotTo(HaveOccurred())

		zeros := make([]byte, 8)
		stats.Update(zeros, pattern.Outcome{Kind: pattern.KindZeros})
		stats.Update([]byte{1, 2, 3, 4, 5, 6, 7, 8},
			pattern.Outcome{Kind: pattern.KindNotDefined})

		key := m.RegisterSource(fakeSource{
			name:  "gpu_matmul",
			stats: stats,
			cache: linecache.Stats{Hits: 1, Misses: 3, Evictions: 2},
		})
		Expect(key).To(Equal("gpu_matmul"))
	})

	AfterEach(func() {
		server.Close()
	})

	get := func(path string) (int, []byte) {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())

		return rsp.StatusCode, body
	}

	It("should list analyzers", func() {
		code, body := get("/api/list_analyzers")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(
			`[{"key":"gpu_matmul","workload":"gpu_matmul"}]`))
	})

	It("should report progress bars", func() {
		bar := m.CreateProgressBar("gpu_matmul", 10)
		bar.IncrementFinished(4)
		bar.IncrementFinished(1)

		code, body := get("/api/progress")
		Expect(code).To(Equal(http.StatusOK))

		bars := []progressBarRsp{}
		Expect(json.Unmarshal(body, &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].ID).To(Equal(bar.ID))
		Expect(bars[0].Total).To(Equal(uint64(10)))
		Expect(bars[0].Finished).To(Equal(uint64(5)))

		m.CompleteProgressBar(bar)

		_, body = get("/api/progress")
		Expect(body).To(MatchJSON(`[]`))
	})

	It("should summarize an analyzer", func() {
		code, body := get("/api/analyzer/gpu_matmul/summary")
		Expect(code).To(Equal(http.StatusOK))

		rsp := summaryRsp{}
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp.Total).To(Equal(uint64(16)))
		Expect(rsp.Coverage).To(BeNumerically("~", 0.5, 1e-12))
		Expect(rsp.Bytes["Zeros"]).To(Equal(uint64(8)))
		Expect(rsp.Bytes["NotDefined"]).To(Equal(uint64(8)))
		Expect(rsp.Cache.Hits).To(Equal(uint64(1)))
		Expect(rsp.Cache.Misses).To(Equal(uint64(3)))
		Expect(rsp.Cache.HitRate).To(BeNumerically("~", 0.25, 1e-12))
	})

	It("should serialize an analyzer snapshot", func() {
		code, body := get("/api/analyzer/gpu_matmul")

		Expect(code).To(Equal(http.StatusOK))
		Expect(json.Valid(body)).To(BeTrue())
		Expect(string(body)).To(ContainSubstring(`"Total"`))
		Expect(string(body)).To(ContainSubstring(`"ImplicitCounts"`))
		Expect(string(body)).To(ContainSubstring(`"l":6`))
		Expect(string(body)).To(ContainSubstring(`"l":256`))
		Expect(string(body)).To(ContainSubstring(`"v":16`))
	})

	It("should return 404 for unknown analyzers", func() {
		code, _ := get("/api/analyzer/missing")

		Expect(code).To(Equal(http.StatusNotFound))
	})

	It("should export Prometheus metrics", func() {
		code, body := get("/metrics")

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(
			`linecomp_total_bytes{analyzer="gpu_matmul",workload="gpu_matmul"} 16`))
		Expect(string(body)).To(ContainSubstring(
			`linecomp_pattern_bytes{analyzer="gpu_matmul",encoding="none",pattern="Zeros",workload="gpu_matmul"} 8`))
		Expect(string(body)).To(ContainSubstring(
			`linecomp_history_lookups{analyzer="gpu_matmul",result="miss",workload="gpu_matmul"} 3`))
	})

	It("should tell apart analyzers of the same workload", func() {
		key := m.RegisterSource(fakeSource{name: "gpu_matmul", stats: stats})
		Expect(key).To(Equal("gpu_matmul-2"))

		code, body := get("/metrics")

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(
			`linecomp_total_bytes{analyzer="gpu_matmul-2",workload="gpu_matmul"} 16`))

		code, body = get("/api/analyzer/gpu_matmul-2/summary")
		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(`"workload":"gpu_matmul"`))
	})

	It("should report process resources", func() {
		code, body := get("/api/resource")

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("memory_size"))
	})

	It("should start and stop a server", func() {
		url, err := m.WithPortNumber(0).StartServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(HavePrefix("http://localhost:"))

		Expect(m.Close()).To(Succeed())
	})
})
