package main

import (
	"context"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/cluster"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
)

// Stats summarizes the clusters of one scene.
type Stats struct {
	Name      string
	Meshes    int
	Triangles int
	Clusters  int
	Valid     int

	// Full counts clusters holding exactly cluster.ClusterSize triangles.
	Full int

	// MeanConeAngle is the mean half angle in degrees over valid clusters.
	MeanConeAngle float64

	// ConeHistogram buckets valid clusters by half angle in 10 degree steps.
	ConeHistogram [9]int

	BoundsMin mgl32.Vec3
	BoundsMax mgl32.Vec3
}

// InvalidRatio returns the share of clusters that carry no usable cone.
func (s *Stats) InvalidRatio() float64 {
	if s.Clusters == 0 {
		return 0
	}
	return float64(s.Clusters-s.Valid) / float64(s.Clusters)
}

// clusterScene builds the clusters of every mesh in world space. Meshes are built concurrently
// with at most workers goroutines.
func clusterScene(ctx context.Context, imported *common.ImportedScene, workers int) ([]cluster.MeshClusters, error) {
	out := make([]cluster.MeshClusters, len(imported.Meshes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range imported.Meshes {
		mesh := &imported.Meshes[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := mesh.Validate(); err != nil {
				return fmt.Errorf("mesh %d (%s): %w", i, mesh.Name, err)
			}
			world := make([]mgl32.Vec3, len(mesh.Positions))
			for v, p := range mesh.Positions {
				world[v] = mgl32.TransformCoordinate(p, mesh.World)
			}
			mc, err := cluster.Build(world, mesh.Indices)
			if err != nil {
				return fmt.Errorf("mesh %d (%s): %w", i, mesh.Name, err)
			}
			out[i] = mc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func summarize(name string, meshes []cluster.MeshClusters) Stats {
	s := Stats{Name: name, Meshes: len(meshes)}
	first := true
	angleSum := 0.0
	for mi := range meshes {
		m := &meshes[mi]
		s.Triangles += m.TriangleCount()
		s.Clusters += len(m.Clusters)
		for ci := range m.Clusters {
			c := &m.Clusters[ci]
			if m.Compacts[ci].TriangleCount == cluster.ClusterSize {
				s.Full++
			}
			if first {
				s.BoundsMin, s.BoundsMax = c.AABBMin, c.AABBMax
				first = false
			} else {
				s.BoundsMin = mgl32.Vec3{min(s.BoundsMin[0], c.AABBMin[0]), min(s.BoundsMin[1], c.AABBMin[1]), min(s.BoundsMin[2], c.AABBMin[2])}
				s.BoundsMax = mgl32.Vec3{max(s.BoundsMax[0], c.AABBMax[0]), max(s.BoundsMax[1], c.AABBMax[1]), max(s.BoundsMax[2], c.AABBMax[2])}
			}
			if !c.Valid {
				continue
			}
			s.Valid++
			cos := math.Max(-1, math.Min(1, float64(c.ConeAngleCosine)))
			deg := math.Acos(cos) * 180 / math.Pi
			angleSum += deg
			s.ConeHistogram[min(int(deg/10), len(s.ConeHistogram)-1)]++
		}
	}
	if s.Valid > 0 {
		s.MeanConeAngle = angleSum / float64(s.Valid)
	}
	return s
}

// CullMap holds the share of triangles removed by cluster culling for camera positions sampled
// on a sphere around the scene. Rows run from the north pole (+Y) to the south pole, columns
// around the Y axis.
type CullMap struct {
	Width  int
	Height int
	Rates  []float64

	Min, Max, Mean float64
}

// At returns the cull rate of the sample in column x and row y.
func (m *CullMap) At(x, y int) float64 {
	return m.Rates[y*m.Width+x]
}

// sampleDirection maps a grid cell center to a unit direction.
func sampleDirection(x, y, width, height int) mgl32.Vec3 {
	yaw := (float64(x) + 0.5) / float64(width) * 2 * math.Pi
	pitch := math.Pi/2 - (float64(y)+0.5)/float64(height)*math.Pi
	cp := math.Cos(pitch)
	return mgl32.Vec3{
		float32(cp * math.Sin(yaw)),
		float32(math.Sin(pitch)),
		float32(cp * math.Cos(yaw)),
	}
}

// buildCullMap plans a frame for every sample position at distance times the scene radius from
// the bounds center and records how many triangles never reach the filter kernel.
func buildCullMap(ctx context.Context, meshes []cluster.MeshClusters, s Stats, width, height int, distance float32, cfg filtering.Config) (*CullMap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid cull map size %dx%d", width, height)
	}
	center := s.BoundsMin.Add(s.BoundsMax).Mul(0.5)
	radius := s.BoundsMax.Sub(s.BoundsMin).Len() * 0.5
	if radius == 0 {
		radius = 1
	}

	m := &CullMap{Width: width, Height: height, Rates: make([]float64, width*height)}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(height)
	for y := 0; y < height; y++ {
		g.Go(func() error {
			for x := 0; x < width; x++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				pos := center.Add(sampleDirection(x, y, width, height).Mul(radius * distance))
				plan, err := filtering.BuildPlan(meshes, filtering.View{CameraPosition: pos}, cfg)
				if err != nil {
					return err
				}
				rate := 0.0
				if s.Triangles > 0 {
					rate = 1 - float64(plan.Triangles())/float64(s.Triangles)
				}
				m.Rates[y*width+x] = rate
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.Min, m.Max = 1, 0
	sum := 0.0
	for _, r := range m.Rates {
		m.Min = min(m.Min, r)
		m.Max = max(m.Max, r)
		sum += r
	}
	m.Mean = sum / float64(len(m.Rates))
	return m, nil
}
