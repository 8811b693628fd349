package vmath

// ProjectionDims is the width of the display projection
const ProjectionDims = 11

// projectionStep widens each successive projected axis
const projectionStep = 0.1

// Projection is a fixed-width lift of a 3D position/velocity pair
// Display only; physics never reads it
type Projection struct {
	Pos [ProjectionDims]float64
	Vel [ProjectionDims]float64
}

// Project cycles through X, Y, Z scaling axis i by (1 + 0.1*i)
func Project(pos, vel Vec3F) Projection {
	var p Projection
	for i := 0; i < ProjectionDims; i++ {
		scale := 1 + float64(i)*projectionStep
		dim := i % 3
		p.Pos[i] = pos.Component(dim) * scale
		p.Vel[i] = vel.Component(dim) * scale
	}
	return p
}
