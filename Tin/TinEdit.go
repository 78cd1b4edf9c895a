package Tin

import (
	"math"
)

// 撤销历史深度上限，超出时静默丢弃最旧记录
const maxUndoDepth = 50

// editRecord 一次编辑的逆向增量记录
// 保存被触碰槽位的前像/后像与数组长度，撤销时恢复前像并截断，
// 重做时恢复后像并补齐，避免整网快照的内存开销
type editRecord struct {
	op string

	prevTris    map[int32]Triangle
	prevVerts   map[int32]Vertex
	prevConstr  map[EdgeKey]bool
	prevTriLen  int
	prevVertLen int
	prevLastTri int32

	postTris    map[int32]Triangle
	postVerts   map[int32]Vertex
	postConstr  map[EdgeKey]bool
	postTriLen  int
	postVertLen int
	postLastTri int32
}

func (r *editRecord) touchTriangle(m *TinMesh, i int32) {
	if int(i) >= r.prevTriLen {
		return
	}
	if _, ok := r.prevTris[i]; !ok {
		r.prevTris[i] = m.Tris[i]
	}
}

func (r *editRecord) touchVertex(m *TinMesh, i int32) {
	if int(i) >= r.prevVertLen {
		return
	}
	if _, ok := r.prevVerts[i]; !ok {
		r.prevVerts[i] = m.Verts[i]
	}
}

func (r *editRecord) touchConstraint(m *TinMesh, key EdgeKey) {
	if _, ok := r.prevConstr[key]; !ok {
		r.prevConstr[key] = m.Constrained[key]
	}
}

// begin 开启一次编辑事务
func (m *TinMesh) begin(op string) {
	m.rec = &editRecord{
		op:          op,
		prevTris:    make(map[int32]Triangle),
		prevVerts:   make(map[int32]Vertex),
		prevConstr:  make(map[EdgeKey]bool),
		prevTriLen:  len(m.Tris),
		prevVertLen: len(m.Verts),
		prevLastTri: m.lastTri,
	}
}

// commit 提交编辑：补全后像，入撤销栈并清空重做栈
func (m *TinMesh) commit() {
	r := m.rec
	m.rec = nil

	r.postTris = make(map[int32]Triangle, len(r.prevTris))
	r.postVerts = make(map[int32]Vertex, len(r.prevVerts))
	r.postConstr = make(map[EdgeKey]bool, len(r.prevConstr))
	for i := range r.prevTris {
		r.postTris[i] = m.Tris[i]
	}
	for i := r.prevTriLen; i < len(m.Tris); i++ {
		r.postTris[int32(i)] = m.Tris[i]
	}
	for i := range r.prevVerts {
		r.postVerts[i] = m.Verts[i]
	}
	for i := r.prevVertLen; i < len(m.Verts); i++ {
		r.postVerts[int32(i)] = m.Verts[i]
	}
	for key := range r.prevConstr {
		r.postConstr[key] = m.Constrained[key]
	}
	r.postTriLen = len(m.Tris)
	r.postVertLen = len(m.Verts)
	r.postLastTri = m.lastTri

	m.undoStack = append(m.undoStack, r)
	if len(m.undoStack) > maxUndoDepth {
		m.undoStack = m.undoStack[1:]
	}
	m.redoStack = nil
}

// abort 放弃编辑：恢复前像并截断新增槽位，网格保持原状
func (m *TinMesh) abort() {
	r := m.rec
	m.rec = nil
	m.Tris = m.Tris[:r.prevTriLen]
	m.Verts = m.Verts[:r.prevVertLen]
	for i, t := range r.prevTris {
		m.Tris[i] = t
	}
	for i, v := range r.prevVerts {
		m.Verts[i] = v
	}
	for key, present := range r.prevConstr {
		if present {
			m.Constrained[key] = true
		} else {
			delete(m.Constrained, key)
		}
	}
	m.lastTri = r.prevLastTri
}

// UndoEdit 撤销最近一次编辑
func (m *TinMesh) UndoEdit() bool {
	if len(m.undoStack) == 0 {
		return false
	}
	r := m.undoStack[len(m.undoStack)-1]
	m.undoStack = m.undoStack[:len(m.undoStack)-1]

	m.Tris = m.Tris[:r.prevTriLen]
	m.Verts = m.Verts[:r.prevVertLen]
	for i, t := range r.prevTris {
		m.Tris[i] = t
	}
	for i, v := range r.prevVerts {
		m.Verts[i] = v
	}
	for key, present := range r.prevConstr {
		if present {
			m.Constrained[key] = true
		} else {
			delete(m.Constrained, key)
		}
	}
	m.lastTri = r.prevLastTri

	m.redoStack = append(m.redoStack, r)
	return true
}

// RedoEdit 重做最近撤销的编辑
func (m *TinMesh) RedoEdit() bool {
	if len(m.redoStack) == 0 {
		return false
	}
	r := m.redoStack[len(m.redoStack)-1]
	m.redoStack = m.redoStack[:len(m.redoStack)-1]

	for len(m.Tris) < r.postTriLen {
		m.Tris = append(m.Tris, Triangle{})
	}
	for len(m.Verts) < r.postVertLen {
		m.Verts = append(m.Verts, Vertex{})
	}
	for i, t := range r.postTris {
		m.Tris[i] = t
	}
	for i, v := range r.postVerts {
		m.Verts[i] = v
	}
	for key, present := range r.postConstr {
		if present {
			m.Constrained[key] = true
		} else {
			delete(m.Constrained, key)
		}
	}
	m.lastTri = r.postLastTri

	m.undoStack = append(m.undoStack, r)
	return true
}

// CanUndo 是否存在可撤销的编辑
func (m *TinMesh) CanUndo() bool { return len(m.undoStack) > 0 }

// CanRedo 是否存在可重做的编辑
func (m *TinMesh) CanRedo() bool { return len(m.redoStack) > 0 }

// ---------- 公开编辑操作 ----------
// 所有操作以布尔值表达拒绝，失败时网格保持原状，成功时压入撤销记录

// InsertPoint 插入一个点并局部恢复Delaunay性质
// 点落在既有顶点附近时合并返回该顶点且不产生编辑记录
func (m *TinMesh) InsertPoint(x, y, z float64) (int32, bool) {
	if !isFinite(x) || !isFinite(y) || !isFinite(z) {
		return -1, false
	}
	m.begin("insert_point")
	idx, created := m.insertVertexAt(x, y, z)
	if idx < 0 {
		m.abort()
		return -1, false
	}
	if !created {
		// 合并到既有顶点，无结构变化
		m.abort()
		return idx, false
	}
	m.commit()
	return idx, true
}

// DeletePoint 删除顶点：摘除其星形邻域，耳切法重新三角化多边形空洞并合法化
// 约束边端点、锁定邻域、或删除后空洞不足3个顶点时拒绝
func (m *TinMesh) DeletePoint(v int32) bool {
	if v < 0 || int(v) >= len(m.Verts) {
		return false
	}
	for key := range m.Constrained {
		if key.A == v || key.B == v {
			return false
		}
	}

	tris, ring, _ := m.starRing(v)
	if len(tris) == 0 || len(ring) < 3 {
		return false
	}
	for _, t := range tris {
		if m.Tris[t].Locked {
			return false
		}
	}

	// 记录空洞每条外缘边对应的外侧邻接三角形
	type outerLink struct {
		outer int32
		dead  int32
	}
	outerOf := make(map[EdgeKey]outerLink)
	for _, t := range tris {
		k := m.vertIndexIn(t, v)
		u := m.Tris[t].V[(k+1)%3]
		w := m.Tris[t].V[(k+2)%3]
		outerOf[MakeEdgeKey(u, w)] = outerLink{outer: m.Tris[t].N[k], dead: t}
	}

	m.begin("delete_point")

	for _, t := range tris {
		m.modTri(t).Alive = false
	}
	m.modVert(v).TriangleRef = -1

	// 耳切法填充空洞
	newTris, ok := m.fillPolygon(ring)
	if !ok {
		m.abort()
		return false
	}

	// 接回外侧邻接并收集需要合法化的边
	var work [][2]int32
	edgeOwner := make(map[EdgeKey][2]int32)
	for _, nt := range newTris {
		for k := 0; k < 3; k++ {
			a := m.Tris[nt].V[(k+1)%3]
			b := m.Tris[nt].V[(k+2)%3]
			key := MakeEdgeKey(a, b)
			if link, isOuter := outerOf[key]; isOuter {
				m.modTri(nt).N[k] = link.outer
				if link.outer >= 0 {
					m.replaceNeighbor(link.outer, link.dead, nt)
				}
				// 空洞内侧的顶点变了，外缘边也要复查Delaunay判据
				work = append(work, [2]int32{nt, int32(k)})
				continue
			}
			if other, seen := edgeOwner[key]; seen {
				m.modTri(nt).N[k] = other[0]
				m.modTri(other[0]).N[other[1]] = nt
				work = append(work, [2]int32{nt, int32(k)})
			} else {
				edgeOwner[key] = [2]int32{nt, int32(k)}
				// 边界顶点删除后封口的边没有外侧邻接，保持-1
				m.modTri(nt).N[k] = -1
			}
		}
	}
	if m.lastTri >= 0 && (int(m.lastTri) >= len(m.Tris) || !m.Tris[m.lastTri].Alive) {
		m.lastTri = newTris[0]
	}

	m.legalize(work)
	m.commit()
	return true
}

// starRing 收集顶点v周围的活三角形及其外缘顶点环
// 返回(三角形列表, 环顶点按逆时针顺序, 是否为开链/边界顶点)
func (m *TinMesh) starRing(v int32) ([]int32, []int32, bool) {
	start := m.Verts[v].TriangleRef
	if start < 0 || int(start) >= len(m.Tris) || !m.Tris[start].Alive {
		start = m.findAnyTriangleWith(v)
		if start < 0 {
			return nil, nil, false
		}
	}

	// 先逆向旋转到边界（或绕回起点）
	limit := len(m.Tris) + 2
	t := start
	open := false
	for step := 0; step < limit; step++ {
		k := m.vertIndexIn(t, v)
		prev := m.Tris[t].N[(k+2)%3]
		if prev < 0 || !m.Tris[prev].Alive {
			open = true
			start = t
			break
		}
		if prev == start && step > 0 {
			break
		}
		t = prev
		if t == start {
			break
		}
	}

	// 正向收集
	var tris []int32
	var ring []int32
	t = start
	for step := 0; step < limit; step++ {
		k := m.vertIndexIn(t, v)
		if k < 0 {
			return nil, nil, false
		}
		u := m.Tris[t].V[(k+1)%3]
		w := m.Tris[t].V[(k+2)%3]
		if len(ring) == 0 {
			ring = append(ring, u)
		}
		ring = append(ring, w)
		tris = append(tris, t)

		next := m.Tris[t].N[(k+1)%3]
		if next < 0 || !m.Tris[next].Alive {
			return tris, ring, true
		}
		if next == start {
			// 闭环：末尾顶点与首顶点重复
			return tris, ring[:len(ring)-1], false
		}
		t = next
	}
	return nil, nil, open
}

// fillPolygon 耳切法三角化简单多边形（顶点逆时针），返回新建三角形
// 邻接关系由调用方接线
func (m *TinMesh) fillPolygon(ring []int32) ([]int32, bool) {
	poly := append([]int32(nil), ring...)
	var created []int32

	guard := 0
	maxGuard := len(poly)*len(poly) + 16
	for len(poly) > 3 {
		earFound := false
		for i := 0; i < len(poly); i++ {
			a := poly[(i+len(poly)-1)%len(poly)]
			b := poly[i]
			c := poly[(i+1)%len(poly)]
			if m.orientVerts(a, b, c) <= geoEps {
				continue
			}
			// 耳朵内不得包含其它环顶点
			blocked := false
			va, vb, vc := &m.Verts[a], &m.Verts[b], &m.Verts[c]
			for _, p := range poly {
				if p == a || p == b || p == c {
					continue
				}
				vp := &m.Verts[p]
				if orient2d(va.X, va.Y, vb.X, vb.Y, vp.X, vp.Y) > -geoEps &&
					orient2d(vb.X, vb.Y, vc.X, vc.Y, vp.X, vp.Y) > -geoEps &&
					orient2d(vc.X, vc.Y, va.X, va.Y, vp.X, vp.Y) > -geoEps {
					blocked = true
					break
				}
			}
			if blocked {
				continue
			}
			nt := m.newTriangle(Triangle{V: [3]int32{a, b, c}, N: [3]int32{-1, -1, -1}, Alive: true})
			created = append(created, nt)
			m.modVert(a).TriangleRef = nt
			m.modVert(b).TriangleRef = nt
			m.modVert(c).TriangleRef = nt
			poly = append(poly[:i], poly[i+1:]...)
			earFound = true
			break
		}
		if !earFound {
			return nil, false
		}
		guard++
		if guard > maxGuard {
			return nil, false
		}
	}

	if m.orientVerts(poly[0], poly[1], poly[2]) <= geoEps {
		return nil, false
	}
	nt := m.newTriangle(Triangle{V: [3]int32{poly[0], poly[1], poly[2]}, N: [3]int32{-1, -1, -1}, Alive: true})
	created = append(created, nt)
	m.modVert(poly[0]).TriangleRef = nt
	m.modVert(poly[1]).TriangleRef = nt
	m.modVert(poly[2]).TriangleRef = nt
	return created, true
}

// DeleteTriangle 墓碑删除一个三角形，形成空洞区域
func (m *TinMesh) DeleteTriangle(t int32) bool {
	if t < 0 || int(t) >= len(m.Tris) || !m.Tris[t].Alive || m.Tris[t].Locked {
		return false
	}
	m.begin("delete_triangle")
	tri := m.modTri(t)
	tri.Alive = false
	// 顶点引用转移到其它活三角形
	for k := 0; k < 3; k++ {
		v := tri.V[k]
		if m.Verts[v].TriangleRef == t {
			m.modVert(v).TriangleRef = m.findAnyTriangleWith(v)
		}
	}
	if m.lastTri == t {
		m.lastTri = -1
	}
	m.commit()
	return true
}

// SwapEdge 翻转(v0,v1)与两侧三角形构成的四边形对角线
// 约束边、边界边、锁定三角形、非凸四边形时拒绝
func (m *TinMesh) SwapEdge(v0, v1 int32) bool {
	t, k, ok := m.swapTarget(v0, v1)
	if !ok {
		return false
	}
	m.begin("swap_edge")
	m.flipEdge(t, k)
	m.commit()
	return true
}

// GetSwapPreview 返回翻转后将形成的新对角线顶点对，不修改网格
func (m *TinMesh) GetSwapPreview(v0, v1 int32) (int32, int32, bool) {
	t, k, ok := m.swapTarget(v0, v1)
	if !ok {
		return -1, -1, false
	}
	p := m.Tris[t].V[k]
	o := m.Tris[t].N[k]
	ko := 0
	for ; ko < 3; ko++ {
		if m.Tris[o].V[ko] != v0 && m.Tris[o].V[ko] != v1 {
			break
		}
	}
	return p, m.Tris[o].V[ko], true
}

func (m *TinMesh) swapTarget(v0, v1 int32) (int32, int, bool) {
	if v0 == v1 || v0 < 0 || v1 < 0 || int(v0) >= len(m.Verts) || int(v1) >= len(m.Verts) {
		return -1, -1, false
	}
	if m.Constrained[MakeEdgeKey(v0, v1)] {
		return -1, -1, false
	}
	t1, t2 := m.edgeTriangles(v0, v1)
	if t1 < 0 || t2 < 0 {
		return -1, -1, false
	}
	k := 0
	for ; k < 3; k++ {
		if m.Tris[t1].V[k] != v0 && m.Tris[t1].V[k] != v1 {
			break
		}
	}
	if !m.canFlip(t1, k) {
		return -1, -1, false
	}
	return t1, k, true
}

// FlattenTriangle 将三角形三个顶点的高程取平均拉平
// 顶点为共享数据，此操作会影响所有关联三角形（文档化的副作用）
func (m *TinMesh) FlattenTriangle(t int32) bool {
	if t < 0 || int(t) >= len(m.Tris) || !m.Tris[t].Alive || m.Tris[t].Locked {
		return false
	}
	tri := &m.Tris[t]
	avg := (m.Verts[tri.V[0]].Z + m.Verts[tri.V[1]].Z + m.Verts[tri.V[2]].Z) / 3.0
	m.begin("flatten_triangle")
	for k := 0; k < 3; k++ {
		m.modVert(tri.V[k]).Z = avg
	}
	m.commit()
	return true
}

// ModifyVertexZ 直接修改顶点高程，任一关联三角形被锁定时拒绝
func (m *TinMesh) ModifyVertexZ(v int32, z float64) bool {
	if v < 0 || int(v) >= len(m.Verts) || !isFinite(z) {
		return false
	}
	locked := false
	m.forEachTriangleAround(v, func(t int32) bool {
		if m.Tris[t].Locked {
			locked = true
			return false
		}
		return true
	})
	if locked {
		return false
	}
	m.begin("modify_vertex_z")
	m.modVert(v).Z = z
	m.commit()
	return true
}

// LockTriangle 设置三角形锁定状态，锁定的三角形拒绝一切结构与数值编辑
func (m *TinMesh) LockTriangle(t int32, locked bool) bool {
	if t < 0 || int(t) >= len(m.Tris) || !m.Tris[t].Alive {
		return false
	}
	if m.Tris[t].Locked == locked {
		return false
	}
	m.begin("lock_triangle")
	m.modTri(t).Locked = locked
	m.commit()
	return true
}

// AddBreakline 在两个既有顶点间强制一条断裂线边
func (m *TinMesh) AddBreakline(v0, v1 int32) bool {
	if v0 == v1 || v0 < 0 || v1 < 0 || int(v0) >= len(m.Verts) || int(v1) >= len(m.Verts) {
		return false
	}
	if m.Constrained[MakeEdgeKey(v0, v1)] {
		return false
	}
	m.begin("add_breakline")
	if !m.forceEdge(v0, v1) {
		m.abort()
		return false
	}
	m.commit()
	return true
}

// ---------- 查询 ----------

// FindTriangleAt 返回包含(x,y)的活三角形索引，未命中返回-1
func (m *TinMesh) FindTriangleAt(x, y float64) int32 {
	return m.locateTriangle(x, y)
}

// FindVertexAt 返回距(x,y)最近且在容差内的顶点索引，未命中返回-1
func (m *TinMesh) FindVertexAt(x, y, tolerance float64) int32 {
	best := int32(-1)
	bestD := tolerance
	for i := range m.Verts {
		v := &m.Verts[i]
		if v.TriangleRef < 0 {
			continue
		}
		d := math.Hypot(v.X-x, v.Y-y)
		if d <= bestD {
			bestD = d
			best = int32(i)
		}
	}
	return best
}

// FindEdgeAt 返回距(x,y)最近且在容差内的网格边
func (m *TinMesh) FindEdgeAt(x, y, tolerance float64) (EdgeKey, bool) {
	bestKey := EdgeKey{}
	bestD := tolerance
	found := false
	seen := make(map[EdgeKey]bool)
	for i := range m.Tris {
		tri := &m.Tris[i]
		if !tri.Alive {
			continue
		}
		for k := 0; k < 3; k++ {
			a := tri.V[k]
			b := tri.V[(k+1)%3]
			key := MakeEdgeKey(a, b)
			if seen[key] {
				continue
			}
			seen[key] = true
			va, vb := &m.Verts[a], &m.Verts[b]
			d := pointSegmentDistance(x, y, va.X, va.Y, vb.X, vb.Y)
			if d <= bestD {
				bestD = d
				bestKey = key
				found = true
			}
		}
	}
	return bestKey, found
}

// IsConstrainedEdge 判断(a,b)是否为约束边
func (m *TinMesh) IsConstrainedEdge(a, b int32) bool {
	return m.Constrained[MakeEdgeKey(a, b)]
}

// GetEdges 返回所有活三角形的边（去重后的规范化边键）
func (m *TinMesh) GetEdges() []EdgeKey {
	seen := make(map[EdgeKey]bool)
	var edges []EdgeKey
	for i := range m.Tris {
		tri := &m.Tris[i]
		if !tri.Alive {
			continue
		}
		for k := 0; k < 3; k++ {
			key := MakeEdgeKey(tri.V[k], tri.V[(k+1)%3])
			if !seen[key] {
				seen[key] = true
				edges = append(edges, key)
			}
		}
	}
	return edges
}

// GetMeshStats 统计网格规模与高程分布
func (m *TinMesh) GetMeshStats() MeshStats {
	stats := MeshStats{MinZ: math.Inf(1), MaxZ: math.Inf(-1)}
	usedVerts := make(map[int32]bool)
	for i := range m.Tris {
		tri := &m.Tris[i]
		if !tri.Alive {
			stats.DeadTriangles++
			continue
		}
		stats.TriangleCount++
		if tri.Locked {
			stats.LockedTriangles++
		}
		for k := 0; k < 3; k++ {
			usedVerts[tri.V[k]] = true
		}
		stats.SurfaceArea += m.triangleArea3D(int32(i))
	}
	var sumZ float64
	for v := range usedVerts {
		z := m.Verts[v].Z
		stats.MinZ = math.Min(stats.MinZ, z)
		stats.MaxZ = math.Max(stats.MaxZ, z)
		sumZ += z
	}
	stats.VertexCount = len(usedVerts)
	if stats.VertexCount > 0 {
		stats.MeanZ = sumZ / float64(stats.VertexCount)
	} else {
		stats.MinZ, stats.MaxZ = 0, 0
	}
	stats.ConstrainedEdge = len(m.Constrained)
	return stats
}

// triangleArea3D 三维表面积（叉积模长的一半）
func (m *TinMesh) triangleArea3D(t int32) float64 {
	tri := &m.Tris[t]
	p1, p2, p3 := &m.Verts[tri.V[0]], &m.Verts[tri.V[1]], &m.Verts[tri.V[2]]
	ux, uy, uz := p2.X-p1.X, p2.Y-p1.Y, p2.Z-p1.Z
	vx, vy, vz := p3.X-p1.X, p3.Y-p1.Y, p3.Z-p1.Z
	cx := uy*vz - uz*vy
	cy := uz*vx - ux*vz
	cz := ux*vy - uy*vx
	return math.Sqrt(cx*cx+cy*cy+cz*cz) / 2.0
}

// ExportMesh 导出活三角形引用的全部顶点坐标，供重新入库为散点
func (m *TinMesh) ExportMesh() (px, py, pz []float64) {
	used := make(map[int32]bool)
	for i := range m.Tris {
		if !m.Tris[i].Alive {
			continue
		}
		for k := 0; k < 3; k++ {
			used[m.Tris[i].V[k]] = true
		}
	}
	for i := range m.Verts {
		if used[int32(i)] {
			px = append(px, m.Verts[i].X)
			py = append(py, m.Verts[i].Y)
			pz = append(pz, m.Verts[i].Z)
		}
	}
	return px, py, pz
}
