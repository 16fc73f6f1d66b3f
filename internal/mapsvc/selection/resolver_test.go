package selection

import (
	"testing"

	"inspection-map/internal/mapsvc/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func testBuilding() *models.Building {
	return &models.Building{
		ID:             10,
		RenovationCode: "RC-10",
		Floors: []models.Floor{
			{ID: 1, Number: 0, IsSite: true},
			{ID: 2, Number: 0},
			{ID: 3, Number: 1},
			{ID: 4, Number: 1, IsHalf: true},
			{ID: 5, Number: -1},
		},
	}
}

func TestResolveExplicitFloorWins(t *testing.T) {
	r := NewResolver(1)
	story := &models.Story{StoryIndex: 1, FloorNumber: intPtr(0)}

	floor := r.Resolve(testBuilding(), story, int64Ptr(3))
	require.NotNil(t, floor)
	assert.Equal(t, int64(3), floor.ID)
}

func TestResolveExplicitFloorCanReachHalfFloor(t *testing.T) {
	// Полуэтаж достижим только по явному floorId
	r := NewResolver(1)
	floor := r.Resolve(testBuilding(), nil, int64Ptr(4))
	require.NotNil(t, floor)
	assert.True(t, floor.IsHalf)
}

func TestResolveSiteStoryYieldsSiteFloor(t *testing.T) {
	r := NewResolver(1)
	story := &models.Story{IsSite: true, StoryKey: "10:site:0"}

	floor := r.Resolve(testBuilding(), story, nil)
	require.NotNil(t, floor)
	assert.Equal(t, int64(1), floor.ID)
	assert.True(t, floor.IsSite)
}

func TestResolveByFloorNumberSkipsHalfAndSite(t *testing.T) {
	r := NewResolver(1)
	story := &models.Story{StoryIndex: 1, FloorNumber: intPtr(0)}

	floor := r.Resolve(testBuilding(), story, nil)
	require.NotNil(t, floor)
	// Номер 0 есть и у участка, и у обычного этажа — участок не подходит
	assert.Equal(t, int64(2), floor.ID)

	story = &models.Story{StoryIndex: 2, FloorNumber: intPtr(1)}
	floor = r.Resolve(testBuilding(), story, nil)
	require.NotNil(t, floor)
	// Полуэтаж с тем же номером не подходит
	assert.Equal(t, int64(3), floor.ID)
}

func TestResolveFallbackUsesConfiguredOffset(t *testing.T) {
	story := &models.Story{StoryIndex: 2} // floor_number отсутствует

	floor := NewResolver(1).Resolve(testBuilding(), story, nil)
	require.NotNil(t, floor)
	assert.Equal(t, int64(3), floor.ID) // 2 - 1 = 1

	floor = NewResolver(3).Resolve(testBuilding(), story, nil)
	require.NotNil(t, floor)
	assert.Equal(t, int64(5), floor.ID) // 2 - 3 = -1
}

func TestResolveNoMatchReturnsNil(t *testing.T) {
	r := NewResolver(1)

	assert.Nil(t, r.Resolve(nil, &models.Story{StoryIndex: 1}, nil))
	assert.Nil(t, r.Resolve(testBuilding(), nil, nil))
	assert.Nil(t, r.Resolve(testBuilding(), &models.Story{StoryIndex: 9}, nil))
	assert.Nil(t, r.Resolve(testBuilding(), nil, int64Ptr(99)))
}

func TestResolveIsDeterministic(t *testing.T) {
	r := NewResolver(1)
	story := &models.Story{StoryIndex: 1, FloorNumber: intPtr(0)}
	b := testBuilding()

	first := r.Resolve(b, story, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.Resolve(b, story, nil))
	}
}
