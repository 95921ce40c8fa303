package webstatus

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rtoskernel/internal/klog"
	"rtoskernel/kernel"
)

var _ = Describe("Server", func() {
	var (
		k   *kernel.Kernel
		srv *Server
	)

	BeforeEach(func() {
		cfg := kernel.DefaultConfig()
		cfg.DebugLevel = klog.LevelOff

		var err error
		k, err = kernel.New(cfg, klog.NewNop())
		Expect(err).NotTo(HaveOccurred())

		srv = New(k, klog.NewNop(), 0)
	})

	It("serves the scheduler snapshot as JSON", func() {
		Expect(k.Start()).To(Succeed())

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)

		handler := http.HandlerFunc(srv.snapshot)
		handler.ServeHTTP(rr, req)

		Expect(rr.Code).To(Equal(http.StatusOK))

		body, err := io.ReadAll(rr.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).NotTo(BeEmpty())

		var snap map[string]interface{}
		Expect(json.Unmarshal(body, &snap)).To(Succeed())
	})

	It("reports the current tick from /api/now", func() {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/now", nil)

		http.HandlerFunc(srv.now).ServeHTTP(rr, req)

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(rr.Body.String()).To(Equal(`{"now":0}`))
	})
})
