package Tin

import (
	"fmt"
	"math"
)

// interpolateElevation 用重心坐标在三角形内插值高程
func (m *TinMesh) interpolateElevation(t int32, px, py float64) float64 {
	tri := &m.Tris[t]
	v1, v2, v3 := &m.Verts[tri.V[0]], &m.Verts[tri.V[1]], &m.Verts[tri.V[2]]

	denominator := (v2.Y-v3.Y)*(v1.X-v3.X) + (v3.X-v2.X)*(v1.Y-v3.Y)
	if math.Abs(denominator) < 1e-10 {
		// 三角形退化，返回平均高程
		return (v1.Z + v2.Z + v3.Z) / 3.0
	}

	a := ((v2.Y-v3.Y)*(px-v3.X) + (v3.X-v2.X)*(py-v3.Y)) / denominator
	b := ((v3.Y-v1.Y)*(px-v3.X) + (v1.X-v3.X)*(py-v3.Y)) / denominator
	c := 1 - a - b

	return a*v1.Z + b*v2.Z + c*v3.Z
}

// GetElevationAt 获取二维点在TIN表面上的投影高程
func (m *TinMesh) GetElevationAt(x, y float64) (float64, error) {
	t := m.locateTriangle(x, y)
	if t < 0 {
		return 0, fmt.Errorf("点(%.2f, %.2f)不在TIN覆盖范围内", x, y)
	}
	return m.interpolateElevation(t, x, y), nil
}

// GetElevationAtFrom 以指定三角形为游走起点的只读高程查询
// 不更新共享游走缓存，返回定位到的三角形供调用方作为下次起点
// 多协程并发查询时各自维护游标即可安全使用
func (m *TinMesh) GetElevationAtFrom(x, y float64, hint int32) (float64, int32, error) {
	t := m.locateTriangleFrom(hint, x, y)
	if t < 0 {
		return 0, hint, fmt.Errorf("点(%.2f, %.2f)不在TIN覆盖范围内", x, y)
	}
	return m.interpolateElevation(t, x, y), t, nil
}

// GetElevationsAt 批量获取多个点的高程
func (m *TinMesh) GetElevationsAt(points []Point2D) ([]float64, error) {
	elevations := make([]float64, len(points))
	for i, point := range points {
		elevation, err := m.GetElevationAt(point.X, point.Y)
		if err != nil {
			return nil, fmt.Errorf("第%d个点高程获取失败: %v", i, err)
		}
		elevations[i] = elevation
	}
	return elevations, nil
}

// Bounds 返回网格活顶点的平面包围盒
func (m *TinMesh) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for i := range m.Tris {
		if !m.Tris[i].Alive {
			continue
		}
		for k := 0; k < 3; k++ {
			v := &m.Verts[m.Tris[i].V[k]]
			minX = math.Min(minX, v.X)
			maxX = math.Max(maxX, v.X)
			minY = math.Min(minY, v.Y)
			maxY = math.Max(maxY, v.Y)
			ok = true
		}
	}
	return minX, minY, maxX, maxY, ok
}

// SampleGrid 将TIN表面重采样为nx×ny规则格网
// 格网节点落在TIN覆盖范围外时取NaN
func (m *TinMesh) SampleGrid(nx, ny int) (grid [][]float64, gridX, gridY []float64, err error) {
	if nx < 2 || ny < 2 {
		return nil, nil, nil, fmt.Errorf("格网尺寸至少为2×2，当前%d×%d", nx, ny)
	}
	minX, minY, maxX, maxY, ok := m.Bounds()
	if !ok {
		return nil, nil, nil, fmt.Errorf("网格为空，无法采样")
	}

	gridX = make([]float64, nx)
	gridY = make([]float64, ny)
	dx := (maxX - minX) / float64(nx-1)
	dy := (maxY - minY) / float64(ny-1)
	for i := range gridX {
		gridX[i] = minX + float64(i)*dx
	}
	for j := range gridY {
		gridY[j] = minY + float64(j)*dy
	}

	grid = make([][]float64, ny)
	for j := 0; j < ny; j++ {
		grid[j] = make([]float64, nx)
		for i := 0; i < nx; i++ {
			t := m.locateTriangle(gridX[i], gridY[j])
			if t < 0 {
				grid[j][i] = math.NaN()
			} else {
				grid[j][i] = m.interpolateElevation(t, gridX[i], gridY[j])
			}
		}
	}
	return grid, gridX, gridY, nil
}

// ComputeVolume 计算TIN表面相对基准面的填挖方量
// 返回(挖方, 填方)：表面高于基准面的柱体为挖方，低于为填方
func (m *TinMesh) ComputeVolume(datum float64) (cut, fill float64) {
	for i := range m.Tris {
		tri := &m.Tris[i]
		if !tri.Alive {
			continue
		}
		v1, v2, v3 := &m.Verts[tri.V[0]], &m.Verts[tri.V[1]], &m.Verts[tri.V[2]]
		area := math.Abs(orient2d(v1.X, v1.Y, v2.X, v2.Y, v3.X, v3.Y)) / 2.0
		meanDz := (v1.Z + v2.Z + v3.Z) / 3.0 - datum
		if meanDz > 0 {
			cut += area * meanDz
		} else {
			fill += area * (-meanDz)
		}
	}
	return cut, fill
}
