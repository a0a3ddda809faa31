package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/volumetria/pipetcal/pkg/config"
	"github.com/volumetria/pipetcal/pkg/events"
	"github.com/volumetria/pipetcal/pkg/gravimetric"
)

// Server serves calibrations over HTTP. The engine is rebuilt from the
// configuration on every reload and swapped atomically, so requests in
// flight keep the constants they started with.
type Server struct {
	conf     config.Config
	engine   atomic.Pointer[gravimetric.Engine]
	registry *prometheus.Registry
	metrics  *metrics
	hub      *events.Hub
	// confMu serialises configuration writes with reloads.
	confMu sync.Mutex
}

// NewServer builds the engine from conf.
func NewServer(conf config.Config) (*Server, error) {
	s := &Server{
		conf:     conf,
		registry: prometheus.NewRegistry(),
		hub:      events.NewHub(),
	}
	s.metrics = newMetrics(s.registry)
	if err := s.rebuild(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) rebuild() error {
	settings, err := config.Settings(s.conf)
	if err != nil {
		return pkgerrors.Wrap(err, "invalid calibration settings")
	}
	e, err := gravimetric.NewEngine(settings)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to build engine")
	}
	s.engine.Store(e)
	return nil
}

// Reload re-reads the configuration. On failure the previous engine stays
// in service.
func (s *Server) Reload() error {
	s.confMu.Lock()
	defer s.confMu.Unlock()

	err := s.conf.Load()
	if err == nil {
		err = s.rebuild()
	}
	s.metrics.reloaded(err)

	ev := events.ConfigReloadedEvent{OK: err == nil, Ts: time.Now().Unix()}
	if err != nil {
		ev.Error = err.Error()
	}
	s.hub.Publish(events.ConfigReloaded, ev)
	return err
}

// Engine returns the engine currently in service.
func (s *Server) Engine() *gravimetric.Engine {
	return s.engine.Load()
}

func (s *Server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.POST("/calcular", s.calculate)
	router.GET("/constantes", s.getConstants)
	router.GET("/emt", s.getEMT)
	router.GET("/emt/:clase", s.getEMTClass)
	router.PUT("/emt/:clase", s.setEMTClass)
	router.GET("/config", s.getConfig)
	router.GET("/version", getVersion)
	router.GET("/healthz", getHealth)
	router.GET("/events", s.streamEvents)
	if s.conf.MetricsEnabled() {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	return router
}

// Handler returns the HTTP handler of s.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// listen opens addr, which is either a TCP address or "unix:" followed by a
// socket path.
func listen(addr string) (net.Listener, error) {
	if path, ok := strings.CutPrefix(addr, "unix:"); ok {
		// A stale socket from an unclean shutdown blocks the bind.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, pkgerrors.Wrapf(err, "failed to remove stale socket %s", path)
		}
		l, err := net.Listen("unix", path)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to listen on %s", path)
		}
		return l, nil
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to listen on %s", addr)
	}
	return l, nil
}

// Run serves until SIGINT or SIGTERM. listenAddr overrides the configured
// address when not empty.
func Run(configPath string, listenAddr string) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to parse config during startup")
	}
	if listenAddr != "" {
		conf.SetListen(listenAddr)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	s, err := NewServer(conf)
	if err != nil {
		return err
	}

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := s.Reload(); err != nil {
				logrus.Errorf("failed to reload config, keeping previous constants: %v", err)
				continue
			}
			if listenAddr != "" {
				conf.SetListen(listenAddr)
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Event streams never go idle on their own.
	srv.RegisterOnShutdown(s.hub.Close)

	l, err := listen(conf.Listen())
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		logrus.Infof("caught signal \"%s\": shutting down.", sig)
	case err := <-errc:
		return pkgerrors.Wrap(err, "http server failed")
	}

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}

	logrus.Info("exiting")
	return nil
}
