package restapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sdslabs/policyctl/internal/domain"
	"github.com/sdslabs/policyctl/internal/store"
)

// registerControllerRoutes wires the Global Controller surface (§6):
// enabling/disabling PUT toggles the controller actor through C6.
func (s *Server) registerControllerRoutes(r *gin.Engine) {
	r.GET("/controllers", s.listControllers)
	r.POST("/controllers", s.createController)
	r.GET("/controllers/:id", s.getController)
	r.PUT("/controllers/:id", s.updateController)
	r.DELETE("/controllers/:id", s.deleteController)
}

func (s *Server) listControllers(c *gin.Context) {
	controllers, err := s.Store.ListControllers(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, controllers)
}

func (s *Server) getController(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "controller id must be an integer")
		return
	}
	ctrl, err := s.Store.GetController(c, id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl)
}

func (s *Server) createController(c *gin.Context) {
	var ctrl domain.GlobalController
	if err := c.ShouldBindJSON(&ctrl); err != nil {
		badRequest(c, err.Error())
		return
	}
	id, err := s.Store.Next(c, store.CounterController)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	ctrl.ID = id
	ctrl.Enabled = false
	if err := s.Store.PutController(c, ctrl); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ctrl)
}

// updateController replaces the descriptor's static fields and, when
// the request flips Enabled, dispatches to the supervisor (C6) to
// spawn or stop the controller actor so the enabled ⇔ actor-exists
// invariant (§3) always holds after a successful response.
func (s *Server) updateController(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "controller id must be an integer")
		return
	}
	existing, err := s.Store.GetController(c, id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	var body domain.GlobalController
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	body.ID = id

	switch {
	case body.Enabled && !existing.Enabled:
		if err := s.Controllers.Enable(c, id); err != nil {
			s.abortWithError(c, err)
			return
		}
	case !body.Enabled && existing.Enabled:
		if err := s.Controllers.Disable(c, id); err != nil {
			s.abortWithError(c, err)
			return
		}
	}

	if err := s.Store.PutController(c, body); err != nil {
		s.abortWithError(c, err)
		return
	}
	ctrl, err := s.Store.GetController(c, id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ctrl)
}

func (s *Server) deleteController(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "controller id must be an integer")
		return
	}
	if err := s.Controllers.Delete(c, id); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
