package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// VoxelCoords keys a cell in a voxel grid, matching the teacher pointcloud
// package's VoxelCoords shape.
type VoxelCoords struct {
	I, J, K int64
}

type voxelAccum struct {
	sum   r3.Vector
	count int
}

// voxelKey returns the grid cell a point falls into for a given leaf size.
func voxelKey(p r3.Vector, leaf float64) VoxelCoords {
	return VoxelCoords{
		I: int64(math.Floor(p.X / leaf)),
		J: int64(math.Floor(p.Y / leaf)),
		K: int64(math.Floor(p.Z / leaf)),
	}
}

// DownsampleLeaf replaces every point falling in the same leaf-sized grid
// cell with their centroid, matching the teacher's VoxelGrid centroid
// computation (pointcloud/voxel.go ComputeCenter) applied per-cell rather
// than per connected-component. leaf <= 0 returns the cloud unchanged.
func DownsampleLeaf(points []r3.Vector, leaf float64) []r3.Vector {
	if leaf <= 0 || len(points) == 0 {
		out := make([]r3.Vector, len(points))
		copy(out, points)
		return out
	}
	grid := make(map[VoxelCoords]*voxelAccum, len(points)/4+1)
	order := make([]VoxelCoords, 0, len(points)/4+1)
	for _, p := range points {
		k := voxelKey(p, leaf)
		acc, ok := grid[k]
		if !ok {
			acc = &voxelAccum{}
			grid[k] = acc
			order = append(order, k)
		}
		acc.sum = acc.sum.Add(p)
		acc.count++
	}
	out := make([]r3.Vector, len(order))
	for i, k := range order {
		acc := grid[k]
		out[i] = acc.sum.Mul(1 / float64(acc.count))
	}
	return out
}
