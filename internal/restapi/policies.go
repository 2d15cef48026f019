package restapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sdslabs/policyctl/internal/apperrors"
	"github.com/sdslabs/policyctl/internal/domain"
)

// registerPolicyRoutes wires the policy listing/submission surface and
// the static/dynamic management sub-paths (§6).
func (s *Server) registerPolicyRoutes(r *gin.Engine) {
	r.GET("/policies", s.listPolicies)
	r.POST("/policies", s.submitPolicies)

	r.GET("/policies/static/:key", s.getStaticPolicy)
	r.PUT("/policies/static/:key", s.putStaticPolicy)
	r.DELETE("/policies/static/:key", s.deleteStaticPolicy)

	r.DELETE("/policies/dynamic/:id", s.deleteDynamicPolicy)
}

// staticKey is the parsed form of the `{tenant[:container]:policy_id}`
// path segment named in §6.
type staticKey struct {
	Tenant    string
	Container string
	PolicyID  int64
}

func parseStaticKey(raw string) (staticKey, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return staticKey{}, apperrors.ErrNotFound
	}
	policyID, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return staticKey{}, apperrors.ErrNotFound
	}
	key := staticKey{Tenant: parts[0], PolicyID: policyID}
	if len(parts) == 3 {
		key.Container = parts[1]
	}
	return key, nil
}

// listPolicies lists static pipeline entries sorted by execution_order
// (query ?static, the default) or dynamic policy records (?dynamic),
// per §6 and property 2.
func (s *Server) listPolicies(c *gin.Context) {
	if _, dynamic := c.GetQuery("dynamic"); dynamic {
		policies, err := s.Store.ListPolicies(c)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, policies)
		return
	}

	tenant := c.Query("tenant")
	key := domain.PipelineKey{TenantID: tenant, Container: c.Query("container")}
	entries, err := s.Store.ListPipelineEntries(c, key)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ExecutionOrder < entries[j].ExecutionOrder })
	c.JSON(http.StatusOK, s.attachTenantNames(c, tenant, entries))
}

// submitPolicies deploys every DSL line in the request body via the
// Policy Engine (C4), classifying each static vs. dynamic (§4.3).
func (s *Server) submitPolicies(c *gin.Context) {
	var body struct {
		Rules string `json:"rules"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	deployed, err := s.Engine.SubmitRules(c, body.Rules)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, deployed)
}

// staticEntryView joins a pipeline entry with its tenant's resolved
// display name, the read-side enrichment named in SPEC_FULL.md's
// supplemented-features list (project/tenant name resolution for
// listing).
type staticEntryView struct {
	domain.PipelineEntry
	TenantName string `json:"tenant_name,omitempty"`
}

func (s *Server) attachTenantNames(c *gin.Context, tenant string, entries []domain.PipelineEntry) []staticEntryView {
	views := make([]staticEntryView, len(entries))
	var name string
	if s.TenantDir != nil && tenant != "" {
		name = s.TenantDir.Name(c, tenant)
	}
	for i, e := range entries {
		views[i] = staticEntryView{PipelineEntry: e, TenantName: name}
	}
	return views
}

func (s *Server) getStaticPolicy(c *gin.Context) {
	key, err := parseStaticKey(c.Param("key"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	entries, err := s.Store.ListPipelineEntries(c, domain.PipelineKey{TenantID: key.Tenant, Container: key.Container})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	for _, e := range entries {
		if e.PolicyID == key.PolicyID {
			c.JSON(http.StatusOK, e)
			return
		}
	}
	s.abortWithError(c, apperrors.ErrNotFound)
}

func (s *Server) putStaticPolicy(c *gin.Context) {
	key, err := parseStaticKey(c.Param("key"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	var entry domain.PipelineEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		badRequest(c, err.Error())
		return
	}
	entry.PolicyID = key.PolicyID
	if err := s.Store.PutPipelineEntry(c, domain.PipelineKey{TenantID: key.Tenant, Container: key.Container}, entry); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) deleteStaticPolicy(c *gin.Context) {
	key, err := parseStaticKey(c.Param("key"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	pk := domain.PipelineKey{TenantID: key.Tenant, Container: key.Container}
	if err := s.Store.DeletePipelineEntry(c, pk, key.PolicyID); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteDynamicPolicy(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "policy id must be an integer")
		return
	}
	if err := s.Engine.DeleteDynamicPolicy(c, id); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
