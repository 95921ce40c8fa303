// Package webstatus exposes a read-only HTTP dashboard over a running
// Kernel: the scheduler/task snapshot, host resource usage, and a CPU
// profiling endpoint. It is grounded on the teacher's monitoring.Monitor
// (monitoring/monitor.go) — a gorilla/mux router serving JSON handlers over
// a process the dashboard does not otherwise control — narrowed to
// read-only views, since nothing here is the excluded console status
// printer: it is an HTTP pull surface, not a push-on-timer terminal
// redraw (see SPEC_FULL.md's note on ENABLE_VISUALIZATION).
package webstatus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	// Registers the profiling handlers under /debug/pprof/, the same
	// import-for-side-effect idiom monitoring/monitor.go uses.
	_ "net/http/pprof"
	"os"
	"runtime/pprof"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"

	"rtoskernel/internal/klog"
	"rtoskernel/kernel"
)

// Server serves the dashboard for a single Kernel. It never calls back
// into the Kernel except through its already-thread-safe Snapshot/Stats
// accessors, so it can run on its own goroutine for the life of the
// process.
type Server struct {
	k          *kernel.Kernel
	logger     klog.Logger
	portNumber int
}

// New creates a Server for k. port <= 1000 asks the OS for an ephemeral
// port, mirroring monitoring.Monitor.WithPortNumber's guard against
// well-known ports.
func New(k *kernel.Kernel, logger klog.Logger, port int) *Server {
	if logger == nil {
		logger = klog.NewNop()
	}

	return &Server{k: k, logger: logger, portNumber: port}
}

// Start binds a listener and serves the dashboard on a background
// goroutine, returning the address actually bound (useful when portNumber
// was 0 or invalid). It does not block.
func (s *Server) Start() (string, error) {
	r := mux.NewRouter()
	r.HandleFunc("/api/now", s.now)
	r.HandleFunc("/api/snapshot", s.snapshot)
	r.HandleFunc("/api/task/{name}", s.task)
	r.HandleFunc("/api/resource", s.resource)
	r.HandleFunc("/api/profile", s.profile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.HandleFunc("/", s.index)

	addr := ":0"
	if s.portNumber > 1000 {
		addr = fmt.Sprintf(":%d", s.portNumber)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	bound := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
	s.logger.Infof("webstatus: dashboard listening on %s", bound)

	go func() {
		if err := http.Serve(listener, r); err != nil {
			s.logger.Errorf("webstatus: server stopped: %v", err)
		}
	}()

	return bound, nil
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "<html><body><h1>rtoskernel dashboard</h1>"+
		"<ul>"+
		"<li><a href=\"/api/snapshot\">/api/snapshot</a></li>"+
		"<li><a href=\"/api/resource\">/api/resource</a></li>"+
		"<li><a href=\"/debug/pprof/\">/debug/pprof/</a></li>"+
		"</ul></body></html>")
}

func (s *Server) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, `{"now":%d}`, s.k.TickBase().Now())
}

func (s *Server) snapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := s.k.WriteSnapshot(w); err != nil {
		s.logger.Errorf("webstatus: snapshot serialization failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (s *Server) task(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	t := s.k.TaskByName(name)
	if t == nil {
		w.WriteHeader(http.StatusNotFound)

		return
	}

	snap := s.k.Snapshot()
	for _, ts := range snap.Tasks {
		if ts.Name == name {
			w.Header().Set("Content-Type", "application/json")

			if err := json.NewEncoder(w).Encode(ts); err != nil {
				s.logger.Errorf("webstatus: task encode failed: %v", err)
			}

			return
		}
	}

	w.WriteHeader(http.StatusNotFound)
}

type resourceResponse struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
}

// resource reports the process's own CPU/memory footprint alongside the
// kernel's simulated task stats, the same juxtaposition
// monitoring.Monitor.listResources draws between the simulator process and
// the simulation it hosts.
func (s *Server) resource(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.logger.Errorf("webstatus: resource lookup failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		s.logger.Errorf("webstatus: cpu percent failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		s.logger.Errorf("webstatus: memory info failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resourceResponse{
		CPUPercent: cpuPercent,
		MemoryRSS:  mem.RSS,
	})
}

// profile captures a one-second CPU profile and returns it as the
// google/pprof/profile JSON representation, same capture-then-reparse
// shape as monitoring.Monitor.collectProfile.
func (s *Server) profile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		s.logger.Errorf("webstatus: profile start failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	time.Sleep(time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		s.logger.Errorf("webstatus: profile parse failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(prof)
}
