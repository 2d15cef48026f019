package tenantdir

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeResolver struct {
	names map[string]string
	calls int
}

func (f *fakeResolver) TenantName(_ context.Context, tenantID string) (string, error) {
	f.calls++
	name, ok := f.names[tenantID]
	if !ok {
		return "", errors.New("unknown tenant")
	}
	return name, nil
}

func TestNameFallsBackToIDWithoutResolver(t *testing.T) {
	d := New(nil)
	assert.Equal(t, "AUTH_abc", d.Name(context.Background(), "AUTH_abc"))
}

func TestNameCachesSuccessfulResolution(t *testing.T) {
	resolver := &fakeResolver{names: map[string]string{"AUTH_abc": "Acme Corp"}}
	d := New(resolver)

	assert.Equal(t, "Acme Corp", d.Name(context.Background(), "AUTH_abc"))
	assert.Equal(t, "Acme Corp", d.Name(context.Background(), "AUTH_abc"))
	assert.Equal(t, 1, resolver.calls)
}

func TestNameFallsBackOnResolverError(t *testing.T) {
	resolver := &fakeResolver{names: map[string]string{}}
	d := New(resolver)
	assert.Equal(t, "AUTH_xyz", d.Name(context.Background(), "AUTH_xyz"))
}

func TestResolveAllPreservesInputSet(t *testing.T) {
	resolver := &fakeResolver{names: map[string]string{"AUTH_a": "A"}}
	d := New(resolver)
	out := d.ResolveAll(context.Background(), []string{"AUTH_a", "AUTH_b"})
	assert.Equal(t, map[string]string{"AUTH_a": "A", "AUTH_b": "AUTH_b"}, out)
}
