package Tin

import (
	"fmt"
	"math"
	"sort"
)

// ProgressFunc 阶段进度回调，返回false表示请求中止
type ProgressFunc func(percent float64, stage string) bool

// DelaunayTriangulation 对散点做（约束）Delaunay三角剖分
// constraints为强制边（断裂线），以输入点数组的下标对表示
func DelaunayTriangulation(points []Point3D, constraints [][2]int) (*TIN, error) {
	return DelaunayTriangulationWithProgress(points, constraints, nil)
}

// DelaunayTriangulationWithProgress 带阶段进度回调的三角剖分
// 算法：包围盒超级结构 + 空间排序逐点插入 + 显式栈边合法化，
// 最后用翻边法强制写入约束边并移除超级结构
func DelaunayTriangulationWithProgress(points []Point3D, constraints [][2]int, progress ProgressFunc) (*TIN, error) {
	valid := make([]Point3D, 0, len(points))
	origToValid := make([]int, len(points))
	for i := range origToValid {
		origToValid[i] = -1
	}
	for i, p := range points {
		if isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z) {
			origToValid[i] = len(valid)
			valid = append(valid, p)
		}
	}
	if len(valid) < 3 {
		return nil, fmt.Errorf("三角剖分至少需要3个有效点，当前%d个", len(valid))
	}

	if progress != nil && !progress(0, "indexing") {
		return nil, fmt.Errorf("任务已取消")
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range valid {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	dx := maxX - minX
	dy := maxY - minY
	deltaMax := math.Max(dx, dy)
	if deltaMax <= 0 {
		return nil, fmt.Errorf("输入点全部重合，无法构建TIN")
	}

	m := NewTinMesh()
	m.mergeEps = math.Sqrt(dx*dx+dy*dy) * 1e-9

	// 超级四边形：两个覆盖全部输入点的大三角形，避免凸包特判
	margin := 10*deltaMax + 1
	s0 := m.newVertex(Vertex{X: minX - margin, Y: minY - margin, TriangleRef: 0})
	s1 := m.newVertex(Vertex{X: maxX + margin, Y: minY - margin, TriangleRef: 0})
	s2 := m.newVertex(Vertex{X: maxX + margin, Y: maxY + margin, TriangleRef: 0})
	s3 := m.newVertex(Vertex{X: minX - margin, Y: maxY + margin, TriangleRef: 1})
	m.newTriangle(Triangle{V: [3]int32{s0, s1, s2}, N: [3]int32{-1, 1, -1}, Alive: true})
	m.newTriangle(Triangle{V: [3]int32{s0, s2, s3}, N: [3]int32{-1, -1, 0}, Alive: true})
	m.lastTri = 0

	// 按格网行列排序插入，提升游走定位的局部性
	order := spatialInsertOrder(valid, minX, minY, deltaMax)

	if progress != nil && !progress(10, "triangulating") {
		return nil, fmt.Errorf("任务已取消")
	}

	// validToVert记录每个有效点合并后的网格顶点
	validToVert := make([]int32, len(valid))
	for _, vi := range order {
		p := valid[vi]
		idx, _ := m.insertVertexAt(p.X, p.Y, p.Z)
		if idx < 0 {
			return nil, fmt.Errorf("点(%.6f, %.6f)定位失败", p.X, p.Y)
		}
		validToVert[vi] = idx
	}

	if progress != nil && !progress(70, "constraining") {
		return nil, fmt.Errorf("任务已取消")
	}

	// 强制写入约束边
	for _, c := range constraints {
		if c[0] < 0 || c[0] >= len(points) || c[1] < 0 || c[1] >= len(points) {
			continue
		}
		i0, i1 := origToValid[c[0]], origToValid[c[1]]
		if i0 < 0 || i1 < 0 {
			continue
		}
		a, b := validToVert[i0], validToVert[i1]
		if a == b {
			continue
		}
		if !m.forceEdge(a, b) {
			return nil, fmt.Errorf("约束边(%d,%d)写入失败", c[0], c[1])
		}
	}

	if progress != nil && !progress(90, "finalizing") {
		return nil, fmt.Errorf("任务已取消")
	}

	tin := m.extractTIN(4)
	if len(tin.Triangles) == 0 {
		return nil, fmt.Errorf("输入点共线，无法构建TIN")
	}
	return tin, nil
}

// spatialInsertOrder 将点按格网行蛇形排序
func spatialInsertOrder(points []Point3D, minX, minY, extent float64) []int {
	cell := extent * targetCellOccupancy / math.Sqrt(float64(len(points)))
	if cell <= 0 {
		cell = 1
	}
	type cellKey struct {
		row, col int
		idx      int
	}
	keys := make([]cellKey, len(points))
	for i, p := range points {
		row := int((p.Y - minY) / cell)
		col := int((p.X - minX) / cell)
		if row%2 == 1 {
			col = -col
		}
		keys[i] = cellKey{row: row, col: col, idx: i}
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].row != keys[b].row {
			return keys[a].row < keys[b].row
		}
		if keys[a].col != keys[b].col {
			return keys[a].col < keys[b].col
		}
		return keys[a].idx < keys[b].idx
	})
	order := make([]int, len(points))
	for i, k := range keys {
		order[i] = k.idx
	}
	return order
}

// insertVertexAt 向网格插入一个点并恢复Delaunay性质
// 与既有顶点近重复时合并，返回(顶点索引, 是否新建)
func (m *TinMesh) insertVertexAt(x, y, z float64) (int32, bool) {
	t := m.locateTriangle(x, y)
	if t < 0 {
		return -1, false
	}

	if m.Tris[t].Locked {
		return -1, false
	}

	// 近重复点直接合并到既有顶点，避免零面积三角形
	tri := &m.Tris[t]
	for k := 0; k < 3; k++ {
		v := tri.V[k]
		vv := &m.Verts[v]
		if math.Hypot(vv.X-x, vv.Y-y) <= m.mergeEps {
			return v, false
		}
	}

	vp := m.newVertex(Vertex{X: x, Y: y, Z: z, TriangleRef: t})

	// 落在某条边上时做2-4分裂，否则1-3分裂
	var work [][2]int32
	onEdge := -1
	for k := 0; k < 3; k++ {
		a := tri.V[(k+1)%3]
		b := tri.V[(k+2)%3]
		va, vb := &m.Verts[a], &m.Verts[b]
		if pointSegmentDistance(x, y, va.X, va.Y, vb.X, vb.Y) <= m.mergeEps {
			onEdge = k
			break
		}
	}
	if onEdge >= 0 {
		if o := tri.N[onEdge]; o >= 0 && m.Tris[o].Alive && m.Tris[o].Locked {
			m.Verts = m.Verts[:len(m.Verts)-1]
			return -1, false
		}
		work = m.splitEdge(t, onEdge, vp)
	} else {
		work = m.splitTriangle(t, vp)
	}
	m.legalize(work)
	return vp, true
}

// forceEdge 用翻边法将(a,b)强制写入网格并标记为约束边
// 每轮取距a端最近的可翻交叉边翻转（确定性规则），直至该边直接存在
// 遇到恰好位于线段上的共线顶点时，递归强制两个子段
func (m *TinMesh) forceEdge(a, b int32) bool {
	maxIter := len(m.Tris)*4 + 64
	for iter := 0; iter < maxIter; iter++ {
		if t, _ := m.edgeTriangles(a, b); t >= 0 {
			m.setConstrained(MakeEdgeKey(a, b), true)
			return true
		}
		crossed := m.crossedEdges(a, b)
		if len(crossed) == 0 {
			// 没有交叉边却也没有直接边：线段上必有共线顶点
			v := m.vertexOnSegment(a, b)
			if v >= 0 {
				return m.forceEdge(a, v) && m.forceEdge(v, b)
			}
			return false
		}
		flipped := false
		for _, e := range crossed {
			if m.canFlip(e[0], int(e[1])) {
				m.flipEdge(e[0], int(e[1]))
				flipped = true
				break
			}
		}
		if !flipped {
			return false
		}
	}
	return false
}

// crossedEdges 收集与线段ab严格相交的网格边，按从a到b的穿越顺序
// 返回(三角形, 局部边序号)对
func (m *TinMesh) crossedEdges(a, b int32) [][2]int32 {
	va, vb := &m.Verts[a], &m.Verts[b]

	// 在a的星形邻域中找到被射线ab穿出的第一个三角形
	var start int32 = -1
	var startEdge int
	m.forEachTriangleAround(a, func(t int32) bool {
		k := m.vertIndexIn(t, a)
		u := m.Tris[t].V[(k+1)%3]
		w := m.Tris[t].V[(k+2)%3]
		vu, vw := &m.Verts[u], &m.Verts[w]
		if segmentsCross(va.X, va.Y, vb.X, vb.Y, vu.X, vu.Y, vw.X, vw.Y) {
			start = t
			startEdge = k
			return false
		}
		return true
	})
	if start < 0 {
		return nil
	}

	var result [][2]int32
	cur := start
	curEdge := startEdge
	maxSteps := len(m.Tris) + 8
	for step := 0; step < maxSteps; step++ {
		result = append(result, [2]int32{cur, int32(curEdge)})
		next := m.Tris[cur].N[curEdge]
		if next < 0 || !m.Tris[next].Alive {
			return result
		}
		if m.vertIndexIn(next, b) >= 0 {
			return result
		}
		// 在next中找下一条被ab穿越的边（不含刚进入的那条）
		enter := -1
		for k := 0; k < 3; k++ {
			if m.Tris[next].N[k] == cur {
				enter = k
				break
			}
		}
		found := false
		for k := 0; k < 3; k++ {
			if k == enter {
				continue
			}
			u := m.Tris[next].V[(k+1)%3]
			w := m.Tris[next].V[(k+2)%3]
			vu, vw := &m.Verts[u], &m.Verts[w]
			if segmentsCross(va.X, va.Y, vb.X, vb.Y, vu.X, vu.Y, vw.X, vw.Y) {
				cur = next
				curEdge = k
				found = true
				break
			}
		}
		if !found {
			return result
		}
	}
	return result
}

// vertexOnSegment 查找位于线段ab上的顶点，取距a最近者
func (m *TinMesh) vertexOnSegment(a, b int32) int32 {
	va, vb := &m.Verts[a], &m.Verts[b]
	best := int32(-1)
	bestD := math.Inf(1)
	for i := range m.Verts {
		vi := int32(i)
		if vi == a || vi == b {
			continue
		}
		v := &m.Verts[i]
		if v.TriangleRef < 0 {
			continue
		}
		if pointSegmentDistance(v.X, v.Y, va.X, va.Y, vb.X, vb.Y) <= m.mergeEps {
			d := math.Hypot(v.X-va.X, v.Y-va.Y)
			if d > m.mergeEps && d < bestD {
				bestD = d
				best = vi
			}
		}
	}
	return best
}

// extractTIN 去除前skip个超级顶点及其关联三角形，压实索引后导出
func (m *TinMesh) extractTIN(skip int32) *TIN {
	triRemap := make([]int32, len(m.Tris))
	for i := range triRemap {
		triRemap[i] = -1
	}

	tin := &TIN{Constrained: make(map[EdgeKey]bool)}
	for i := int32(skip); i < int32(len(m.Verts)); i++ {
		v := m.Verts[i]
		v.TriangleRef = -1
		tin.Vertices = append(tin.Vertices, v)
	}

	for i := range m.Tris {
		t := m.Tris[i]
		if !t.Alive {
			continue
		}
		if t.V[0] < skip || t.V[1] < skip || t.V[2] < skip {
			continue
		}
		triRemap[i] = int32(len(tin.Triangles))
		tin.Triangles = append(tin.Triangles, t)
	}

	for i := range tin.Triangles {
		t := &tin.Triangles[i]
		for k := 0; k < 3; k++ {
			t.V[k] -= skip
			if t.N[k] >= 0 {
				t.N[k] = triRemap[t.N[k]]
			}
			// triRemap缺省-1即为边界
		}
		for k := 0; k < 3; k++ {
			tin.Vertices[t.V[k]].TriangleRef = int32(i)
		}
	}

	for key := range m.Constrained {
		if key.A >= skip && key.B >= skip {
			tin.Constrained[MakeEdgeKey(key.A-skip, key.B-skip)] = true
		}
	}
	return tin
}
