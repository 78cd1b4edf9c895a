package Tin

import (
	"fmt"
)

// CoordsToPoint3D 将坐标数组转换为三维点
// 每个坐标至少含XY，第三维缺省时Z取0
func CoordsToPoint3D(coords [][]float64) ([]Point3D, error) {
	if len(coords) == 0 {
		return nil, fmt.Errorf("坐标数组为空")
	}
	points := make([]Point3D, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("第%d个坐标维度不足（至少需要2维，实际%d维）", i, len(coord))
		}
		p := Point3D{X: coord[0], Y: coord[1], Z: 0.0, ID: i}
		if len(coord) >= 3 {
			p.Z = coord[2]
		}
		points[i] = p
	}
	return points, nil
}

// TriangleCoordinates 导出活三角形的三维顶点坐标，用于GeoJSON/DXF输出
func (m *TinMesh) TriangleCoordinates() [][3][3]float64 {
	var out [][3][3]float64
	for i := range m.Tris {
		tri := &m.Tris[i]
		if !tri.Alive {
			continue
		}
		var tc [3][3]float64
		for k := 0; k < 3; k++ {
			v := &m.Verts[tri.V[k]]
			tc[k] = [3]float64{v.X, v.Y, v.Z}
		}
		out = append(out, tc)
	}
	return out
}

// EdgeCoordinates 导出一条边的两端坐标
func (m *TinMesh) EdgeCoordinates(key EdgeKey) ([2][3]float64, bool) {
	if int(key.A) >= len(m.Verts) || int(key.B) >= len(m.Verts) || key.A < 0 {
		return [2][3]float64{}, false
	}
	va, vb := &m.Verts[key.A], &m.Verts[key.B]
	return [2][3]float64{
		{va.X, va.Y, va.Z},
		{vb.X, vb.Y, vb.Z},
	}, true
}

// AliveTriangleIndexes 返回全部活三角形索引
func (m *TinMesh) AliveTriangleIndexes() []int32 {
	var out []int32
	for i := range m.Tris {
		if m.Tris[i].Alive {
			out = append(out, int32(i))
		}
	}
	return out
}
