package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	basemodels "github.com/athebyme/gomarket-platform/ean-service/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterSetOrdersByPriorityThenRegistration(t *testing.T) {
	fs := NewFilterSet[string, struct{}]("test")

	appendTag := func(tag string) Filter[string, struct{}] {
		return func(_ context.Context, v string, _ struct{}) (string, error) {
			return v + tag, nil
		}
	}

	fs.Add(20, appendTag("c"))
	fs.Add(DefaultPriority, appendTag("a"))
	fs.Add(DefaultPriority, appendTag("b"))
	fs.Add(5, appendTag("0"))

	got, err := fs.Apply(context.Background(), "", struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "0abc", got)
	assert.Equal(t, 4, fs.Len())
	assert.Equal(t, "test", fs.Name())
}

func TestFilterSetStopsAtFirstError(t *testing.T) {
	fs := NewFilterSet[int, struct{}]("test")
	boom := errors.New("boom")
	calledAfter := false

	fs.Add(1, func(_ context.Context, v int, _ struct{}) (int, error) { return v + 1, nil })
	fs.Add(2, func(_ context.Context, v int, _ struct{}) (int, error) { return 0, boom })
	fs.Add(3, func(_ context.Context, v int, _ struct{}) (int, error) {
		calledAfter = true
		return v, nil
	})

	got, err := fs.Apply(context.Background(), 1, struct{}{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, got)
	assert.False(t, calledAfter)
}

func TestEmptyFilterSetReturnsValue(t *testing.T) {
	fs := NewFilterSet[string, ValueArgs](ProductGetGTIN)

	got, err := fs.Apply(context.Background(), "4250123456789", ValueArgs{})
	require.NoError(t, err)
	assert.Equal(t, "4250123456789", got)
}

func TestActionSetCallsAllHandlers(t *testing.T) {
	as := NewActionSet[models.IdentifiersEvent](IdentifiersSaved)
	var seen []int64

	as.Add(DefaultPriority, func(_ context.Context, e models.IdentifiersEvent) { seen = append(seen, e.ProductID) })
	as.Add(1, func(_ context.Context, e models.IdentifiersEvent) { seen = append(seen, -e.ProductID) })

	as.Do(context.Background(), models.IdentifiersEvent{ProductID: 7})
	assert.Equal(t, []int64{-7, 7}, seen)
}

func TestRegistrySelectsChainByProductType(t *testing.T) {
	r := NewRegistry()
	variation := &basemodels.Product{ID: 2, Type: basemodels.ProductTypeVariation}
	simple := &basemodels.Product{ID: 1, Type: basemodels.ProductTypeSimple}

	assert.Same(t, r.VariationGlobalID, r.GlobalUniqueIDFor(variation))
	assert.Same(t, r.GlobalUniqueID, r.GlobalUniqueIDFor(simple))
	assert.Same(t, r.PrepareVariation, r.PrepareFor(variation))
	assert.Same(t, r.PrepareProduct, r.PrepareFor(simple))
	assert.Same(t, r.PreInsertVariation, r.PreInsertFor(variation))
	assert.Same(t, r.PreInsertProduct, r.PreInsertFor(simple))

	described := r.Describe()
	assert.Len(t, described, 12)
	assert.Equal(t, 0, described[RestProductSchema])
}
