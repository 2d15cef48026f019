package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerObjectTypeRoutes wires the object-type surface (§6): a name
// to a set of file extensions, atomically replaced on update.
func (s *Server) registerObjectTypeRoutes(r *gin.Engine) {
	r.GET("/object_types", s.listObjectTypes)
	r.GET("/object_types/:name", s.getObjectType)
	r.PUT("/object_types/:name", s.replaceObjectType)
	r.DELETE("/object_types/:name", s.deleteObjectType)
	r.DELETE("/object_types/:name/:ext", s.removeObjectTypeItem)
}

func (s *Server) listObjectTypes(c *gin.Context) {
	types, err := s.Store.ListObjectTypes(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

func (s *Server) getObjectType(c *gin.Context) {
	t, err := s.Store.GetObjectType(c, c.Param("name"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) replaceObjectType(c *gin.Context) {
	var body struct {
		Extensions []string `json:"extensions"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	name := c.Param("name")
	if err := s.Store.ReplaceObjectType(c, name, body.Extensions); err != nil {
		s.abortWithError(c, err)
		return
	}
	t, err := s.Store.GetObjectType(c, name)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) deleteObjectType(c *gin.Context) {
	if err := s.Store.DeleteObjectType(c, c.Param("name")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) removeObjectTypeItem(c *gin.Context) {
	if err := s.Store.RemoveObjectTypeItem(c, c.Param("name"), c.Param("ext")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
