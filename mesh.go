/*
Copyright © 2024 the Permeation authors.
This file is part of Permeation.

Permeation is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Permeation is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Permeation.  If not, see <http://www.gnu.org/licenses/>.
*/

package permeation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// MeshFromVertices concatenates vertex sequences, e.g. one per
// material, into a single node sequence. Consecutive identical nodes,
// such as a shared interface node, are collapsed. The result is not
// validated; NewModelConfig does that.
func MeshFromVertices(parts ...[]float64) []float64 {
	var o []float64
	for _, p := range parts {
		for _, x := range p {
			if len(o) > 0 && o[len(o)-1] == x {
				continue
			}
			o = append(o, x)
		}
	}
	return o
}

// LayeredMesh returns a mesh with cells[i] uniform cells in
// materials[i]. Material boundaries are placed on nodes exactly.
// materials must be sorted and contiguous.
func LayeredMesh(materials []Material, cells []int) ([]float64, error) {
	if len(materials) != len(cells) {
		return nil, configErrorf("mesh", "%d materials but %d cell counts", len(materials), len(cells))
	}
	parts := make([][]float64, len(materials))
	for i, m := range materials {
		if cells[i] < 1 {
			return nil, configErrorf("mesh", "%v: %d cells but should be ≥1", m, cells[i])
		}
		p := make([]float64, cells[i]+1)
		floats.Span(p, m.Start, m.End)
		// Span computes interior points by interpolation; pin the ends so
		// interfaces match the material boundaries bit for bit.
		p[0], p[len(p)-1] = m.Start, m.End
		parts[i] = p
	}
	return MeshFromVertices(parts...), nil
}

// normalizeMesh collapses consecutive duplicate nodes and checks that
// the remainder is finite and strictly increasing.
func normalizeMesh(nodes []float64) ([]float64, error) {
	if len(nodes) < 2 {
		return nil, configErrorf("mesh", "%d nodes but at least 2 are required", len(nodes))
	}
	o := make([]float64, 0, len(nodes))
	for i, x := range nodes {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, configErrorf("mesh", "node %d is %g", i, x)
		}
		if len(o) > 0 {
			last := o[len(o)-1]
			if x == last {
				continue
			}
			if x < last {
				return nil, configErrorf("mesh", "node %d (%g) is less than the preceding node (%g); nodes must be increasing", i, x, last)
			}
		}
		o = append(o, x)
	}
	if len(o) < 2 {
		return nil, configErrorf("mesh", "mesh has zero length")
	}
	return o, nil
}

// checkMeshMaterials checks that the mesh spans exactly the materials'
// coverage and that every material interface is a mesh node, so that
// each cell lies wholly inside one material.
func checkMeshMaterials(nodes []float64, materials []Material) error {
	start, end := materials[0].Start, materials[len(materials)-1].End
	if nodes[0] != start || nodes[len(nodes)-1] != end {
		return configErrorf("mesh", "mesh spans [%g, %g] but materials span [%g, %g]",
			nodes[0], nodes[len(nodes)-1], start, end)
	}
	for _, m := range materials[1:] {
		if !hasNode(nodes, m.Start) {
			return configErrorf("mesh", "no node at the interface x=%g of %v; a cell would straddle two materials", m.Start, m)
		}
	}
	return nil
}

// hasNode returns whether x is one of the strictly increasing nodes.
func hasNode(nodes []float64, x float64) bool {
	i := sort.SearchFloat64s(nodes, x)
	return i < len(nodes) && nodes[i] == x
}
