package domain_test

import (
	"strings"
	"testing"

	"japan-tracker/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrackerState_AllNotMarked(t *testing.T) {
	state := domain.NewTrackerState()

	assert.Len(t, state, domain.TotalRegions, "初始状态应包含 47 项")
	assert.True(t, state.Complete())
	for _, id := range domain.RegionIDs() {
		assert.Equal(t, domain.NotMarked, state[id], "区域 %s 初始应为 not-marked", id)
	}
	// 幂等：两次调用结果相同
	assert.Empty(t, cmp.Diff(state, domain.NewTrackerState()))
}

func TestTrackerState_Cycle_ThreeStepsReturnToStart(t *testing.T) {
	state := domain.NewTrackerState()
	tokyo := domain.RegionID(13)

	require.True(t, state.Cycle(tokyo))
	assert.Equal(t, domain.ToVisit, state[tokyo])
	require.True(t, state.Cycle(tokyo))
	assert.Equal(t, domain.Visited, state[tokyo])
	require.True(t, state.Cycle(tokyo))
	assert.Equal(t, domain.NotMarked, state[tokyo], "循环长度应为 3")

	// 从任意起点开始循环 3 次都回到原状态
	for _, start := range []domain.VisitStatus{domain.NotMarked, domain.ToVisit, domain.Visited} {
		state[tokyo] = start
		for i := 0; i < 3; i++ {
			state.Cycle(tokyo)
		}
		assert.Equal(t, start, state[tokyo])
	}
}

func TestTrackerState_Cycle_UnknownRegionIsNoop(t *testing.T) {
	state := domain.NewTrackerState()
	before := state.Clone()

	assert.False(t, state.Cycle(domain.RegionID(0)))
	assert.False(t, state.Cycle(domain.RegionID(48)))
	assert.False(t, state.Cycle(domain.RegionID(255)))

	assert.Empty(t, cmp.Diff(before, state), "未知区域不应修改状态")
	assert.Len(t, state, domain.TotalRegions, "不应引入额外的键")

	var nilState domain.TrackerState
	assert.NotPanics(t, func() { nilState.Cycle(1) })
}

func TestTrackerState_CountAndPercentage(t *testing.T) {
	state := domain.NewTrackerState()
	assert.Equal(t, 0, state.CountByStatus(domain.Visited))
	assert.Equal(t, 0, state.Progress().Percentage)

	// 东京只推进一步：ToVisit 不计入已访问
	state.Cycle(13)
	assert.Equal(t, 0, state.CountByStatus(domain.Visited))
	assert.Equal(t, 1, state.CountByStatus(domain.ToVisit))
	assert.Equal(t, 0, state.Progress().Percentage)

	state.Cycle(13)
	assert.Equal(t, 1, state.CountByStatus(domain.Visited))
	assert.Equal(t, 2, state.Progress().Percentage, "round(100/47) = 2")

	state.Cycle(1)
	state.Cycle(1)
	progress := state.Progress()
	assert.Equal(t, 2, progress.Visited)
	assert.Equal(t, 4, progress.Percentage, "round(200/47) = 4")
	assert.Equal(t, 45, progress.NotMarked)
	assert.Equal(t, domain.TotalRegions, progress.Total)

	for _, id := range domain.RegionIDs() {
		state[id] = domain.Visited
	}
	assert.Equal(t, 47, state.CountByStatus(domain.Visited))
	assert.Equal(t, 100, state.Progress().Percentage)
}

func TestVisitedPercentage_RoundHalfUp(t *testing.T) {
	cases := map[int]int{
		0:  0,
		1:  2,  // 2.127...
		2:  4,  // 4.255...
		3:  6,  // 6.382...
		12: 26, // 25.531...
		24: 51, // 51.063...
		46: 98, // 97.872...
		47: 100,
	}
	for visited, want := range cases {
		assert.Equal(t, want, domain.VisitedPercentage(visited), "visited=%d", visited)
	}
}

func TestNormalize_IgnoresUnknownAndDefaultsMissing(t *testing.T) {
	raw := map[string]string{
		"JP-01": "visited",
		"JP-13": "to-visit",
		"JP-99": "visited",   // 未知区域
		"XX-01": "visited",   // 格式错误
		"JP-02": "somewhere", // 未知状态 -> NotMarked
	}

	state := domain.Normalize(raw)

	assert.True(t, state.Complete())
	assert.Equal(t, domain.Visited, state[1])
	assert.Equal(t, domain.ToVisit, state[13])
	assert.Equal(t, domain.NotMarked, state[2])
	assert.Equal(t, 1, state.CountByStatus(domain.Visited))
}

func TestParseTrackerState(t *testing.T) {
	t.Run("partial record is accepted", func(t *testing.T) {
		state, err := domain.ParseTrackerState([]byte(`{"JP-47":"visited"}`))
		require.NoError(t, err)
		assert.True(t, state.Complete())
		assert.Equal(t, domain.Visited, state[47])
	})

	t.Run("empty object is a fresh state", func(t *testing.T) {
		state, err := domain.ParseTrackerState([]byte(`{}`))
		require.NoError(t, err)
		assert.True(t, state.Equal(domain.NewTrackerState()))
	})

	malformed := []string{``, `null`, `[]`, `"JP-01"`, `{"JP-01":1}`, `{"JP-01":`, `not json`}
	for _, input := range malformed {
		_, err := domain.ParseTrackerState([]byte(input))
		assert.ErrorIs(t, err, domain.ErrMalformedState, "input %q", input)
	}
}

func TestMarshalCanonical_SortedAndComplete(t *testing.T) {
	state := domain.TrackerState{13: domain.ToVisit, 1: domain.Visited}

	data, err := state.MarshalCanonical()
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `"JP-01":"visited"`)
	assert.Contains(t, text, `"JP-13":"to-visit"`)
	assert.Contains(t, text, `"JP-47":"not-marked"`)
	assert.Less(t, strings.Index(text, "JP-02"), strings.Index(text, "JP-10"), "键应按区域代码升序")

	again, err := domain.NewTrackerState().MarshalCanonical()
	require.NoError(t, err)
	assert.NotEqual(t, text, string(again))

	parsed, err := domain.ParseTrackerState(data)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(state))
}
