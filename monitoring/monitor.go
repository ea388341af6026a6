// Package monitoring serves the progress and the live statistics of a run
// over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/linecomp/linecache"
	"github.com/sarchlab/linecomp/pattern"
)

// A StatsSource publishes snapshots of the statistics of one workload.
type StatsSource interface {
	Name() string
	Snapshot() *pattern.Statistics
	CacheStats() linecache.Stats
}

type registeredSource struct {
	key string
	StatsSource
}

// Monitor turns a run into a server that reports its progress and the
// statistics of every analyzed workload.
type Monitor struct {
	portNumber int

	sourcesLock sync.Mutex
	sources     []registeredSource

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	registry *prometheus.Registry
	server   *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	m := &Monitor{
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(statsCollector{monitor: m})

	return m
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterSource adds a workload whose statistics are served and returns the
// key it is served under. The key is the workload name, suffixed with a
// counter when another source already uses that name.
func (m *Monitor) RegisterSource(s StatsSource) string {
	m.sourcesLock.Lock()
	defer m.sourcesLock.Unlock()

	key := s.Name()
	for n := 2; m.keyInUse(key); n++ {
		key = fmt.Sprintf("%s-%d", s.Name(), n)
	}

	m.sources = append(m.sources, registeredSource{key: key, StatsSource: s})

	return key
}

func (m *Monitor) keyInUse(key string) bool {
	for _, s := range m.sources {
		if s.key == key {
			return true
		}
	}

	return false
}

func (m *Monitor) registeredSources() []registeredSource {
	m.sourcesLock.Lock()
	defer m.sourcesLock.Unlock()

	sources := make([]registeredSource, len(m.sources))
	copy(sources, m.sources)

	return sources
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the reported ones.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler of every monitor endpoint.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/list_analyzers", m.listAnalyzers)
	r.HandleFunc("/api/analyzer/{name}", m.analyzerDetails)
	r.HandleFunc("/api/analyzer/{name}/summary", m.analyzerSummary)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/", m.index)

	return r
}

// StartServer starts serving on the configured port, or on a random one, and
// returns the URL of the monitor.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring analysis with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("monitor stopped: %v", err)
		}
	}()

	return url, nil
}

// OpenBrowser opens url in the default browser.
func (m *Monitor) OpenBrowser(url string) {
	if err := browser.OpenURL(url); err != nil {
		log.Printf("cannot open browser: %v", err)
	}
}

// Close stops the server.
func (m *Monitor) Close() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func (m *Monitor) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>linecomp</h1><ul>")

	for _, p := range []string{
		"/api/progress", "/api/list_analyzers", "/api/resource",
		"/api/profile", "/metrics",
	} {
		fmt.Fprintf(w, "<li><a href=\"%s\">%s</a></li>", p, p)
	}

	fmt.Fprint(w, "</ul></body></html>")
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type analyzerRsp struct {
	Key      string `json:"key"`
	Workload string `json:"workload"`
}

func (m *Monitor) listAnalyzers(w http.ResponseWriter, _ *http.Request) {
	analyzers := []analyzerRsp{}
	for _, s := range m.registeredSources() {
		analyzers = append(analyzers, analyzerRsp{Key: s.key, Workload: s.Name()})
	}

	writeJSON(w, analyzers)
}

func (m *Monitor) findSourceOr404(
	w http.ResponseWriter,
	key string,
) (registeredSource, *pattern.Statistics) {
	for _, s := range m.registeredSources() {
		if s.key != key {
			continue
		}

		if snapshot := s.Snapshot(); snapshot != nil {
			return s, snapshot
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Analyzer not found"))
	logOnErr(err)

	return registeredSource{}, nil
}

// snapshotView is the form of a snapshot handed to goseth, which walks
// slices but not arrays.
type snapshotView struct {
	Workload                  string
	LineSize                  uint64
	Total                     uint64
	Z, R, T, U                uint64
	ImplicitCounts            []uint64
	ExplicitCounts            []uint64
	SymbolCounts              []uint64
	SymbolCountsExceptTrivial []uint64
	Cache                     linecache.Stats
}

func newSnapshotView(
	s registeredSource,
	snapshot *pattern.Statistics,
) *snapshotView {
	return &snapshotView{
		Workload:                  s.Name(),
		LineSize:                  snapshot.LineSize,
		Total:                     snapshot.Total,
		Z:                         snapshot.Z,
		R:                         snapshot.R,
		T:                         snapshot.T,
		U:                         snapshot.U,
		ImplicitCounts:            snapshot.ImplicitCounts[:],
		ExplicitCounts:            snapshot.ExplicitCounts[:],
		SymbolCounts:              snapshot.SymbolCounts[:],
		SymbolCountsExceptTrivial: snapshot.SymbolCountsExceptTrivial[:],
		Cache:                     s.CacheStats(),
	}
}

func (m *Monitor) analyzerDetails(w http.ResponseWriter, r *http.Request) {
	source, snapshot := m.findSourceOr404(w, mux.Vars(r)["name"])
	if snapshot == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(newSnapshotView(source, snapshot))
	serializer.SetMaxDepth(2)

	buf := bytes.NewBuffer(nil)
	if err := serializer.Serialize(buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	_, err := w.Write(buf.Bytes())
	logOnErr(err)
}

type cacheRsp struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

type summaryRsp struct {
	Workload             string            `json:"workload"`
	Total                uint64            `json:"total"`
	Coverage             float64           `json:"coverage"`
	Entropy              float64           `json:"entropy"`
	EntropyExceptTrivial float64           `json:"entropy_except_trivial"`
	Bytes                map[string]uint64 `json:"bytes"`
	Cache                cacheRsp          `json:"cache"`
}

func (m *Monitor) analyzerSummary(w http.ResponseWriter, r *http.Request) {
	source, snapshot := m.findSourceOr404(w, mux.Vars(r)["name"])
	if snapshot == nil {
		return
	}

	cache := source.CacheStats()
	rsp := summaryRsp{
		Workload:             source.Name(),
		Total:                snapshot.Total,
		Coverage:             snapshot.Coverage(),
		Entropy:              snapshot.Entropy(),
		EntropyExceptTrivial: snapshot.EntropyExceptTrivial(),
		Bytes:                map[string]uint64{},
		Cache: cacheRsp{
			Hits:      cache.Hits,
			Misses:    cache.Misses,
			Evictions: cache.Evictions,
			HitRate:   cache.HitRate(),
		},
	}

	for s := pattern.Base8Delta1; s <= pattern.NotDefined; s++ {
		rsp.Bytes[s.String()] = snapshot.BytesOf(s)
	}

	writeJSON(w, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memorySize, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	logOnErr(err)
}

func logOnErr(err error) {
	if err != nil {
		log.Print(err)
	}
}
