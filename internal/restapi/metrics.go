package restapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sdslabs/policyctl/internal/domain"
	"github.com/sdslabs/policyctl/internal/store"
)

func metricActorAddress(name string) string { return "workload_metric:" + name }

// producerActor stands in for the backing artifact a workload metric
// descriptor names; the message-bus producer itself is out of scope
// (§1) and supplied externally, so this actor only occupies the
// address the enabled ⇔ actor-exists invariant (§3) requires.
type producerActor struct{}

func (producerActor) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// registerMetricRoutes wires both `/metrics` (descriptor CRUD) and
// `/modules/workload_metrics` (module listing and the enable/disable
// toggle that spawns/stops the backing metric actor, §6) onto the same
// WorkloadMetric store entity.
func (s *Server) registerMetricRoutes(r *gin.Engine) {
	r.GET("/metrics", s.listMetrics)
	r.GET("/metrics/:name", s.getMetricByName)
	r.POST("/metrics", s.createMetric)
	r.PUT("/metrics/:name", s.updateMetricByName)
	r.DELETE("/metrics/:name", s.deleteMetricByName)

	r.GET("/modules/workload_metrics", s.listMetrics)
	r.POST("/modules/workload_metrics", s.createMetric)
	r.GET("/modules/workload_metrics/:id", s.getMetricByID)
	r.PUT("/modules/workload_metrics/:id", s.toggleMetric)
	r.DELETE("/modules/workload_metrics/:id", s.deleteMetricByID)
}

func (s *Server) listMetrics(c *gin.Context) {
	metrics, err := s.Store.ListMetrics(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (s *Server) getMetricByName(c *gin.Context) {
	m, err := s.Store.GetMetricByName(c, c.Param("name"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) getMetricByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "metric id must be an integer")
		return
	}
	m, err := s.Store.GetMetric(c, id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) createMetric(c *gin.Context) {
	var m domain.WorkloadMetric
	if err := c.ShouldBindJSON(&m); err != nil {
		badRequest(c, err.Error())
		return
	}
	id, err := s.Store.Next(c, store.CounterMetric)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	m.ID = id
	m.Enabled = false
	if err := s.Store.PutMetric(c, m); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) updateMetricByName(c *gin.Context) {
	existing, err := s.Store.GetMetricByName(c, c.Param("name"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	var m domain.WorkloadMetric
	if err := c.ShouldBindJSON(&m); err != nil {
		badRequest(c, err.Error())
		return
	}
	m.ID = existing.ID
	m.Enabled = existing.Enabled
	if err := s.Store.PutMetric(c, m); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) deleteMetricByName(c *gin.Context) {
	m, err := s.Store.GetMetricByName(c, c.Param("name"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	s.deleteMetric(c, m)
}

func (s *Server) deleteMetricByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "metric id must be an integer")
		return
	}
	m, err := s.Store.GetMetric(c, id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	s.deleteMetric(c, m)
}

func (s *Server) deleteMetric(c *gin.Context, m domain.WorkloadMetric) {
	if m.Enabled {
		_ = s.Host.Stop(metricActorAddress(m.Name))
	}
	if err := s.Store.DeleteMetric(c, m.ID); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// toggleMetric implements the enabled ⇔ actor-exists invariant (§3):
// PUT flips Enabled and spawns or stops the metric actor to match.
func (s *Server) toggleMetric(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "metric id must be an integer")
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	m, err := s.Store.GetMetric(c, id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	address := metricActorAddress(m.Name)
	switch {
	case body.Enabled && !m.Enabled:
		if err := s.Host.Spawn(address, producerActor{}); err != nil {
			s.abortWithError(c, fmt.Errorf("enabling metric actor: %w", err))
			return
		}
	case !body.Enabled && m.Enabled:
		if err := s.Host.Stop(address); err != nil {
			s.abortWithError(c, err)
			return
		}
	}

	m.Enabled = body.Enabled
	if err := s.Store.PutMetric(c, m); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}
