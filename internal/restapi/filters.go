package restapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sdslabs/policyctl/internal/apperrors"
	"github.com/sdslabs/policyctl/internal/domain"
)

// registerFilterRoutes wires the Filter descriptor surface and the
// `/filters/dsl` dynamic-filter alias surface (§6). Filter upload/rsync
// mechanics are out of scope (§1); POST here only persists the
// descriptor a prior external upload produced.
func (s *Server) registerFilterRoutes(r *gin.Engine) {
	r.GET("/filters/:id", s.getFilter)
	r.POST("/filters", s.createFilter)
	r.PUT("/filters/:id", s.updateFilter)
	r.DELETE("/filters/:id", s.deleteFilter)

	r.GET("/filters/dsl", s.listDynamicFilters)
	r.GET("/filters/dsl/:name", s.getDynamicFilter)
	r.POST("/filters/dsl", s.createDynamicFilter)
	r.PUT("/filters/dsl/:name", s.updateDynamicFilter)
	r.DELETE("/filters/dsl/:name", s.deleteDynamicFilter)
}

func (s *Server) getFilter(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "filter id must be an integer")
		return
	}
	f, err := s.Store.GetFilter(c, id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) createFilter(c *gin.Context) {
	var f domain.Filter
	if err := c.ShouldBindJSON(&f); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.Store.PutFilter(c, f); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (s *Server) updateFilter(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "filter id must be an integer")
		return
	}
	var f domain.Filter
	if err := c.ShouldBindJSON(&f); err != nil {
		badRequest(c, err.Error())
		return
	}
	f.ID = id
	if err := s.Store.PutFilter(c, f); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (s *Server) deleteFilter(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "filter id must be an integer")
		return
	}
	refs, err := s.Store.ScanPipelinesReferencingFilter(c, id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if len(refs) > 0 {
		s.abortWithError(c, apperrors.ErrConflict)
		return
	}
	if err := s.Store.DeleteFilter(c, id); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listDynamicFilters(c *gin.Context) {
	filters, err := s.Store.ListDynamicFilters(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, filters)
}

func (s *Server) getDynamicFilter(c *gin.Context) {
	df, err := s.Store.GetDynamicFilter(c, c.Param("name"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, df)
}

func (s *Server) createDynamicFilter(c *gin.Context) {
	var df domain.DynamicFilter
	if err := c.ShouldBindJSON(&df); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.Store.PutDynamicFilter(c, df); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, df)
}

func (s *Server) updateDynamicFilter(c *gin.Context) {
	var df domain.DynamicFilter
	if err := c.ShouldBindJSON(&df); err != nil {
		badRequest(c, err.Error())
		return
	}
	df.Name = c.Param("name")
	if err := s.Store.PutDynamicFilter(c, df); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, df)
}

// deleteDynamicFilter fails 403 if any pipeline entry still references
// the aliased filter (§6, property 4).
func (s *Server) deleteDynamicFilter(c *gin.Context) {
	name := c.Param("name")
	df, err := s.Store.GetDynamicFilter(c, name)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	refs, err := s.Store.ScanPipelinesReferencingFilter(c, df.FilterID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if len(refs) > 0 {
		s.abortWithError(c, apperrors.ErrConflict)
		return
	}
	if err := s.Store.DeleteDynamicFilter(c, name); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
