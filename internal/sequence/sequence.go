// Package sequence orders solder points for short tool travel.
package sequence

import (
	"math"

	"solderbot/pkg/geometry"
)

// NearestNeighbor returns a visiting order over positions built greedily:
// start at index 0, then repeatedly take the closest unvisited position
// (3D Euclidean). Ties go to the lowest index. O(n^2).
func NearestNeighbor(positions []geometry.Point3D) []int {
	n := len(positions)
	if n == 0 {
		return nil
	}

	order := make([]int, 0, n)
	visited := make([]bool, n)
	order = append(order, 0)
	visited[0] = true

	for len(order) < n {
		last := positions[order[len(order)-1]]
		minDist := math.MaxFloat64
		next := -1
		for i, p := range positions {
			if visited[i] {
				continue
			}
			if d := p.Distance(last); d < minDist {
				minDist = d
				next = i
			}
		}
		if next == -1 {
			// Only reachable with NaN coordinates; keep input order for the rest.
			for i := range positions {
				if !visited[i] {
					visited[i] = true
					order = append(order, i)
				}
			}
			break
		}
		visited[next] = true
		order = append(order, next)
	}
	return order
}

// Reorder returns items permuted by order.
func Reorder[T any](items []T, order []int) []T {
	out := make([]T, len(order))
	for i, idx := range order {
		out[i] = items[idx]
	}
	return out
}

// PathLength returns the total travel distance visiting positions in order.
func PathLength(positions []geometry.Point3D) float64 {
	var total float64
	for i := 1; i < len(positions); i++ {
		total += positions[i].Distance(positions[i-1])
	}
	return total
}
