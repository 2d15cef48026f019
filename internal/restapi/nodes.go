package restapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sdslabs/policyctl/internal/domain"
	"github.com/sdslabs/policyctl/internal/store"
)

// registerNodeRoutes wires the Storage Node fleet surface (§6); node
// lifecycle is independent of any pipeline (§3).
func (s *Server) registerNodeRoutes(r *gin.Engine) {
	r.GET("/nodes", s.listNodes)
	r.POST("/nodes", s.createNode)
	r.GET("/nodes/:id", s.getNode)
	r.PUT("/nodes/:id", s.updateNode)
	r.DELETE("/nodes/:id", s.deleteNode)
}

func (s *Server) listNodes(c *gin.Context) {
	nodes, err := s.Store.ListNodes(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, nodes)
}

func (s *Server) createNode(c *gin.Context) {
	var n domain.StorageNode
	if err := c.ShouldBindJSON(&n); err != nil {
		badRequest(c, err.Error())
		return
	}
	id, err := s.Store.Next(c, store.CounterNode)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	n.ID = id
	if err := s.Store.PutNode(c, n); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (s *Server) getNode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "node id must be an integer")
		return
	}
	n, err := s.Store.GetNode(c, id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) updateNode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "node id must be an integer")
		return
	}
	var n domain.StorageNode
	if err := c.ShouldBindJSON(&n); err != nil {
		badRequest(c, err.Error())
		return
	}
	n.ID = id
	if err := s.Store.PutNode(c, n); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (s *Server) deleteNode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "node id must be an integer")
		return
	}
	if err := s.Store.DeleteNode(c, id); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
