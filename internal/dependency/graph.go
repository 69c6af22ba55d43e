package dependency

import (
	"fmt"
	"slices"

	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/models"
)

// Graph is an adjacency map from a job to the jobs it depends on. It is
// built fresh from storage for every check and never shared.
type Graph map[uint][]uint

// NewGraph builds a Graph from dependency rows.
func NewGraph(deps []models.JobDependency) Graph {
	g := make(Graph, len(deps))
	for _, d := range deps {
		g[d.JobID] = append(g[d.JobID], d.DependsOnJobID)
	}
	return g
}

// Reaches reports whether to is reachable from from by following
// depends-on edges. Iterative DFS, O(V+E).
func (g Graph) Reaches(from, to uint) bool {
	visited := map[uint]bool{}
	stack := []uint{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		stack = append(stack, g[cur]...)
	}
	return false
}

// WouldCycle reports whether adding job -> dependsOn closes a cycle.
func (g Graph) WouldCycle(job, dependsOn uint) bool {
	return job == dependsOn || g.Reaches(dependsOn, job)
}

// Link is one prerequisite found while walking a dependency chain.
type Link struct {
	JobID uint
	Via   uint // the job that depends on JobID
	Depth int
}

// Chain walks prerequisites of job depth-first with a visited guard and
// returns them in traversal order. Each prerequisite appears once.
func (g Graph) Chain(job uint) []Link {
	var out []Link
	visited := map[uint]bool{job: true}
	var walk func(cur uint, depth int)
	walk = func(cur uint, depth int) {
		for _, next := range g[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, Link{JobID: next, Via: cur, Depth: depth})
			walk(next, depth+1)
		}
	}
	walk(job, 1)
	return out
}

// ForPlan returns every dependency whose dependent job belongs to the plan,
// ordered by creation.
func ForPlan(db *gorm.DB, planID uint) ([]models.JobDependency, error) {
	var deps []models.JobDependency
	err := db.Model(&models.JobDependency{}).
		Select("job_dependencies.*").
		Joins("JOIN jobs ON jobs.id = job_dependencies.job_id").
		Joins("JOIN days ON days.id = jobs.day_id").
		Where("days.plan_id = ?", planID).
		Order("job_dependencies.id ASC").
		Find(&deps).Error
	if err != nil {
		return nil, fmt.Errorf("dependency: list for plan %d: %w", planID, err)
	}
	return deps, nil
}

// LoadGraph builds the dependency Graph of a plan.
func LoadGraph(db *gorm.DB, planID uint) (Graph, error) {
	deps, err := ForPlan(db, planID)
	if err != nil {
		return nil, err
	}
	g := NewGraph(deps)
	for k := range g {
		slices.Sort(g[k])
		g[k] = slices.Compact(g[k])
	}
	return g, nil
}
