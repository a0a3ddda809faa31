package daemon

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/volumetria/pipetcal/pkg/api"
	"github.com/volumetria/pipetcal/pkg/config"
	"github.com/volumetria/pipetcal/pkg/events"
	"github.com/volumetria/pipetcal/pkg/gravimetric"
	"github.com/volumetria/pipetcal/pkg/version"
)

// fail writes the error envelope. Only internal failures are attached to
// the context, so the request logger reports them at error level.
func fail(c *gin.Context, err error) {
	status := api.StatusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	resp := api.NewErrorResponse(err)
	c.Set(errorKindKey, resp.Tipo)
	c.AbortWithStatusJSON(status, resp)
}

func (s *Server) calculate(c *gin.Context) {
	start := time.Now()
	res, debug, err := s.run(c)
	elapsed := time.Since(start)
	s.metrics.observe(res, err, elapsed)
	s.publishCalculation(res, err, elapsed)
	if err != nil {
		fail(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"cumple":  res.Conforms,
		"aforo1":  res.Aforos[0].Statistics.Mean,
		"aforo2":  res.Aforos[1].Statistics.Mean,
		"aforo3":  res.Aforos[2].Statistics.Mean,
		"elapsed": elapsed,
	}).Debug("calibration computed")

	c.IndentedJSON(http.StatusOK, api.NewResponse(res, debug))
}

// maxRequestBytes caps a /calcular body.
const maxRequestBytes = 1 << 20

func (s *Server) run(c *gin.Context) (*gravimetric.Result, bool, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes)
	req, err := api.Decode(c.Request.Body)
	if err != nil {
		return nil, false, err
	}
	res, err := req.Calculate(s.Engine(), s.conf.AllowRequestOverrides())
	if err != nil {
		return nil, false, err
	}
	return res, req.Debug(), nil
}

func (s *Server) publishCalculation(res *gravimetric.Result, err error, elapsed time.Duration) {
	ev := events.CalibrationComputedEvent{
		Elapsed: float64(elapsed.Microseconds()) / 1e3,
		Ts:      time.Now().Unix(),
	}
	if err != nil {
		ev.Tipo = api.NewErrorResponse(err).Tipo
	} else {
		ev.Cumple = res.Conforms
		for _, a := range res.Aforos {
			ev.Medias = append(ev.Medias, a.Statistics.Mean)
		}
	}
	s.hub.Publish(events.CalibrationComputed, ev)
}

func (s *Server) getConstants(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.Engine().Settings().Constants)
}

func (s *Server) getEMT(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.Engine().Settings().EMT)
}

func (s *Server) getEMTClass(c *gin.Context) {
	class := strings.ToLower(c.Param("clase"))
	rows, ok := s.Engine().Settings().EMT[class]
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, api.ErrorResponse{
			Error: "Clase de instrumento desconocida",
			Tipo:  string(gravimetric.KindUnsupportedRange),
			Campo: "clase",
		})
		return
	}
	c.IndentedJSON(http.StatusOK, rows)
}

func (s *Server) setEMTClass(c *gin.Context) {
	var rows []gravimetric.EMTEntry
	if err := c.ShouldBindJSON(&rows); err != nil {
		fail(c, &gravimetric.Error{Kind: gravimetric.KindMalformedInput, Detail: err.Error()})
		return
	}

	class := c.Param("clase")
	s.confMu.Lock()
	defer s.confMu.Unlock()

	if _, err := config.ValidateEMTTable(class, rows); err != nil {
		fail(c, &gravimetric.Error{Kind: gravimetric.KindMalformedInput, Field: "emt." + class, Detail: err.Error()})
		return
	}
	if err := s.conf.SaveEMTTable(class, rows); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		fail(c, err)
		return
	}
	if err := s.rebuild(); err != nil {
		fail(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"clase": class,
		"rows":  len(rows),
	}).Info("tolerance table updated")
	s.hub.Publish(events.EMTUpdated, events.EMTUpdatedEvent{
		Clase: strings.ToLower(strings.TrimSpace(class)),
		Rows:  len(rows),
		Ts:    time.Now().Unix(),
	})
	c.IndentedJSON(http.StatusCreated, s.Engine().Settings().EMT[strings.ToLower(strings.TrimSpace(class))])
}

func (s *Server) getConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"listen":                s.conf.Listen(),
		"allowRequestOverrides": s.conf.AllowRequestOverrides(),
		"metrics":               s.conf.MetricsEnabled(),
		"settings":              s.Engine().Settings(),
	})
}

// streamEvents relays hub events as server-sent events until the client
// goes away.
func (s *Server) streamEvents(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"version": version.Version,
		"commit":  version.GitCommit,
	})
}

func getHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
