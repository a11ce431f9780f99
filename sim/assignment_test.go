package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeUsers(n int) []UserSession {
	users := make([]UserSession, n)
	for i := range users {
		users[i] = UserSession{ID: fmt.Sprintf("user-%d", i+1), Type: UserMedium, StartTime: epoch}
	}
	return users
}

func podNames(n int) []Pod {
	pods := make([]Pod, n)
	for i := range pods {
		pods[i] = Pod{Name: fmt.Sprintf("pod-%d", i)}
	}
	return pods
}

func countByPod(users []UserSession) map[string]int {
	counts := make(map[string]int)
	for _, u := range users {
		counts[u.PodName]++
	}
	return counts
}

func TestDistributeUsers_ContiguousBlocks(t *testing.T) {
	// GIVEN 30 users over 3 idle pods
	got := DistributeUsers(makeUsers(30), podNames(3))

	// THEN capacity is 30/3+1 = 11 per pod, filled in input order
	assert.Equal(t, map[string]int{"pod-0": 11, "pod-1": 11, "pod-2": 8}, countByPod(got))
	assert.Equal(t, "pod-0", got[10].PodName)
	assert.Equal(t, "pod-1", got[11].PodName)
	assert.Equal(t, "pod-2", got[29].PodName)
}

func TestDistributeUsers_EveryUserAssignedOnce(t *testing.T) {
	for users := 0; users <= 40; users++ {
		for pods := 1; pods <= 7; pods++ {
			got := DistributeUsers(makeUsers(users), podNames(pods))
			require.Len(t, got, users)
			limit := users/pods + 1
			for name, n := range countByPod(got) {
				require.NotEmpty(t, name, "users=%d pods=%d left a user unassigned", users, pods)
				require.LessOrEqual(t, n, limit, "users=%d pods=%d pod %s over capacity", users, pods, name)
			}
		}
	}
}

func TestDistributeUsers_LeastLoadedPodFillsFirst(t *testing.T) {
	pods := []Pod{
		{Name: "busy", Metrics: &PodUsage{CPU: 90}},
		{Name: "idle", Metrics: &PodUsage{CPU: 5}},
		{Name: "fresh"}, // no metrics counts as 0
	}

	got := DistributeUsers(makeUsers(4), pods)

	assert.Equal(t, "fresh", got[0].PodName)
	assert.Equal(t, "fresh", got[1].PodName)
	assert.Equal(t, "idle", got[2].PodName)
	assert.Equal(t, "idle", got[3].PodName)
	assert.Equal(t, "busy", pods[0].Name, "input pods must not be reordered")
}

func TestDistributeUsers_TiesKeepInputOrder(t *testing.T) {
	pods := []Pod{
		{Name: "b", Metrics: &PodUsage{CPU: 10}},
		{Name: "a", Metrics: &PodUsage{CPU: 10}},
	}
	got := DistributeUsers(makeUsers(2), pods)
	assert.Equal(t, "b", got[0].PodName)
	assert.Equal(t, "a", got[1].PodName)
}

func TestDistributeUsers_NoPods_ClearsAssignments(t *testing.T) {
	users := makeUsers(3)
	users[0].PodName = "gone"

	got := DistributeUsers(users, nil)

	for _, u := range got {
		assert.Empty(t, u.PodName)
	}
	assert.Equal(t, "gone", users[0].PodName, "input slice must not be modified")
}

func TestDistributeUsers_ReassignsStaleAssignments(t *testing.T) {
	users := makeUsers(2)
	users[0].PodName = "removed-pod"

	got := DistributeUsers(users, podNames(1))

	assert.Equal(t, "pod-0", got[0].PodName)
	assert.Equal(t, "pod-0", got[1].PodName)
}
