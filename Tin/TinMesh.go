package Tin

import (
	"math"
)

// TinMesh 可编辑TIN网格
// 顶点和三角形存放在稠密数组中，以整数索引互相引用
// 删除采用墓碑标记，保证索引在撤销/重做和外部选择引用下保持稳定
type TinMesh struct {
	Verts       []Vertex
	Tris        []Triangle
	Constrained map[EdgeKey]bool

	// 点定位游走的起点缓存
	lastTri int32

	// 当前编辑的变更记录，非编辑期间为nil
	rec *editRecord

	undoStack []*editRecord
	redoStack []*editRecord

	// 合并近重复点的距离阈值，由构建时的包围盒对角线决定
	mergeEps float64
}

// 网格几何容差
const (
	geoEps    = 1e-12
	circleEps = 1e-10
)

// NewTinMesh 创建空网格
func NewTinMesh() *TinMesh {
	return &TinMesh{
		Constrained: make(map[EdgeKey]bool),
		lastTri:     -1,
		mergeEps:    1e-9,
	}
}

// BuildMesh 从三角剖分结果构建可编辑网格
func BuildMesh(tin *TIN) *TinMesh {
	m := NewTinMesh()
	m.Verts = append(m.Verts, tin.Vertices...)
	m.Tris = append(m.Tris, tin.Triangles...)
	for k := range tin.Constrained {
		m.Constrained[k] = true
	}
	if len(m.Tris) > 0 {
		m.lastTri = 0
	}
	m.mergeEps = m.bboxDiagonal() * 1e-9
	if m.mergeEps <= 0 {
		m.mergeEps = 1e-9
	}
	return m
}

func (m *TinMesh) bboxDiagonal() float64 {
	if len(m.Verts) == 0 {
		return 0
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := range m.Verts {
		v := &m.Verts[i]
		minX = math.Min(minX, v.X)
		maxX = math.Max(maxX, v.X)
		minY = math.Min(minY, v.Y)
		maxY = math.Max(maxY, v.Y)
	}
	dx := maxX - minX
	dy := maxY - minY
	return math.Sqrt(dx*dx + dy*dy)
}

// ---------- 几何判定 ----------

// orient2d 返回折线a->b->c的有向面积的两倍，>0为逆时针
func orient2d(ax, ay, bx, by, cx, cy float64) float64 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

func (m *TinMesh) orientVerts(a, b, c int32) float64 {
	va, vb, vc := &m.Verts[a], &m.Verts[b], &m.Verts[c]
	return orient2d(va.X, va.Y, vb.X, vb.Y, vc.X, vc.Y)
}

// inCircle 判断点d是否在逆时针三角形abc的外接圆内
// 采用提升矩阵行列式，>0表示严格在圆内
func inCircle(ax, ay, bx, by, cx, cy, dx, dy float64) float64 {
	adx := ax - dx
	ady := ay - dy
	bdx := bx - dx
	bdy := by - dy
	cdx := cx - dx
	cdy := cy - dy

	abdet := adx*bdy - bdx*ady
	bcdet := bdx*cdy - cdx*bdy
	cadet := cdx*ady - adx*cdy
	alift := adx*adx + ady*ady
	blift := bdx*bdx + bdy*bdy
	clift := cdx*cdx + cdy*cdy

	return alift*bcdet + blift*cadet + clift*abdet
}

// segmentsCross 判断线段ab与cd是否严格相交（不含端点接触）
func segmentsCross(ax, ay, bx, by, cx, cy, dx, dy float64) bool {
	d1 := orient2d(ax, ay, bx, by, cx, cy)
	d2 := orient2d(ax, ay, bx, by, dx, dy)
	d3 := orient2d(cx, cy, dx, dy, ax, ay)
	d4 := orient2d(cx, cy, dx, dy, bx, by)
	return d1*d2 < -geoEps && d3*d4 < -geoEps
}

// pointSegmentDistance 点到线段的距离
func pointSegmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx := bx - ax
	dy := by - ay
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

// ---------- 变更跟踪的写入口 ----------
// 所有结构性修改必须经由这些入口，编辑期间自动记录前像

// modTri 取得三角形的可写指针
func (m *TinMesh) modTri(i int32) *Triangle {
	if m.rec != nil {
		m.rec.touchTriangle(m, i)
	}
	return &m.Tris[i]
}

// modVert 取得顶点的可写指针
func (m *TinMesh) modVert(i int32) *Vertex {
	if m.rec != nil {
		m.rec.touchVertex(m, i)
	}
	return &m.Verts[i]
}

// newTriangle 追加三角形
func (m *TinMesh) newTriangle(t Triangle) int32 {
	m.Tris = append(m.Tris, t)
	return int32(len(m.Tris) - 1)
}

// newVertex 追加顶点
func (m *TinMesh) newVertex(v Vertex) int32 {
	m.Verts = append(m.Verts, v)
	return int32(len(m.Verts) - 1)
}

// setConstrained 修改约束边集合
func (m *TinMesh) setConstrained(key EdgeKey, on bool) {
	if m.rec != nil {
		m.rec.touchConstraint(m, key)
	}
	if on {
		m.Constrained[key] = true
	} else {
		delete(m.Constrained, key)
	}
}

// ---------- 拓扑辅助 ----------

// vertIndexIn 返回顶点v在三角形t中的局部序号，不存在返回-1
func (m *TinMesh) vertIndexIn(t int32, v int32) int {
	for k := 0; k < 3; k++ {
		if m.Tris[t].V[k] == v {
			return k
		}
	}
	return -1
}

// replaceNeighbor 将三角形t中指向old的邻接改为next
func (m *TinMesh) replaceNeighbor(t, old, next int32) {
	if t < 0 {
		return
	}
	tri := m.modTri(t)
	for k := 0; k < 3; k++ {
		if tri.N[k] == old {
			tri.N[k] = next
			return
		}
	}
}

// edgeTriangles 查找以(a,b)为边的两个三角形，单侧边界时第二个为-1
// 围绕a的关联三角形做星形游走
func (m *TinMesh) edgeTriangles(a, b int32) (int32, int32) {
	var first, second int32 = -1, -1
	m.forEachTriangleAround(a, func(t int32) bool {
		if m.vertIndexIn(t, b) >= 0 {
			if first < 0 {
				first = t
			} else if t != first {
				second = t
				return false
			}
		}
		return true
	})
	return first, second
}

// forEachTriangleAround 遍历顶点v周围的活三角形
// 先沿一个方向绕行，遇到边界后回到起点向另一方向绕行
func (m *TinMesh) forEachTriangleAround(v int32, fn func(t int32) bool) {
	start := m.Verts[v].TriangleRef
	if start < 0 || int(start) >= len(m.Tris) || !m.Tris[start].Alive {
		start = m.findAnyTriangleWith(v)
		if start < 0 {
			return
		}
	}
	limit := len(m.Tris) + 1

	// 方向一：绕顶点沿V[k]->V[k+1]侧推进
	t := start
	for step := 0; step < limit; step++ {
		if !fn(t) {
			return
		}
		k := m.vertIndexIn(t, v)
		if k < 0 {
			return
		}
		next := m.Tris[t].N[(k+1)%3]
		if next == start {
			return
		}
		if next < 0 || !m.Tris[next].Alive {
			break
		}
		t = next
	}

	// 方向二：从起点向反方向绕行（遍历被边界挡住的另一侧）
	k := m.vertIndexIn(start, v)
	t = m.Tris[start].N[(k+2)%3]
	for step := 0; step < limit && t >= 0 && m.Tris[t].Alive; step++ {
		if !fn(t) {
			return
		}
		k = m.vertIndexIn(t, v)
		if k < 0 {
			return
		}
		t = m.Tris[t].N[(k+2)%3]
	}
}

// findAnyTriangleWith 线性查找包含顶点v的活三角形，仅作为引用失效时的兜底
func (m *TinMesh) findAnyTriangleWith(v int32) int32 {
	for i := range m.Tris {
		if m.Tris[i].Alive && m.vertIndexIn(int32(i), v) >= 0 {
			return int32(i)
		}
	}
	return -1
}

// ---------- 点定位 ----------

// locateTriangle 从缓存三角形出发做有向游走，定位包含(x,y)的活三角形
// 点在网格外时返回-1
func (m *TinMesh) locateTriangle(x, y float64) int32 {
	t := m.locateTriangleFrom(m.lastTri, x, y)
	if t >= 0 {
		m.lastTri = t
	}
	return t
}

// locateTriangleFrom 以指定三角形为起点的只读游走定位
// 不读写共享游走缓存，并发只读查询各自持有游标时使用
func (m *TinMesh) locateTriangleFrom(start int32, x, y float64) int32 {
	if start < 0 || int(start) >= len(m.Tris) || !m.Tris[start].Alive {
		start = -1
		for i := range m.Tris {
			if m.Tris[i].Alive {
				start = int32(i)
				break
			}
		}
		if start < 0 {
			return -1
		}
	}

	t := start
	maxSteps := len(m.Tris)*2 + 16
	for step := 0; step < maxSteps; step++ {
		tri := &m.Tris[t]
		moved := false
		for k := 0; k < 3; k++ {
			a := tri.V[(k+1)%3]
			b := tri.V[(k+2)%3]
			va, vb := &m.Verts[a], &m.Verts[b]
			if orient2d(va.X, va.Y, vb.X, vb.Y, x, y) < -geoEps {
				next := tri.N[k]
				if next < 0 {
					return -1
				}
				// 墓碑区域视作网格洞，游走终止
				if !m.Tris[next].Alive {
					return -1
				}
				t = next
				moved = true
				break
			}
		}
		if !moved {
			return t
		}
		tri = &m.Tris[t]
	}

	// 病态情形下退化为线性扫描
	for i := range m.Tris {
		if m.Tris[i].Alive && m.triangleContains(int32(i), x, y) {
			return int32(i)
		}
	}
	return -1
}

// triangleContains 判断点是否在三角形内（含边界）
func (m *TinMesh) triangleContains(t int32, x, y float64) bool {
	tri := &m.Tris[t]
	for k := 0; k < 3; k++ {
		a := tri.V[k]
		b := tri.V[(k+1)%3]
		va, vb := &m.Verts[a], &m.Verts[b]
		if orient2d(va.X, va.Y, vb.X, vb.Y, x, y) < -geoEps {
			return false
		}
	}
	return true
}

// ---------- 基本拓扑操作：分裂与翻边 ----------

// splitTriangle 将点vp插入三角形t内部，1分裂为3
// 返回需要合法化的边(三角形,局部边序号)列表
func (m *TinMesh) splitTriangle(t int32, vp int32) [][2]int32 {
	tri := *m.modTri(t)
	a, b, c := tri.V[0], tri.V[1], tri.V[2]
	na, nb, nc := tri.N[0], tri.N[1], tri.N[2]

	// t复用为(a,b,vp)，新增(b,c,vp)和(c,a,vp)
	t1 := m.newTriangle(Triangle{V: [3]int32{b, c, vp}, Alive: true})
	t2 := m.newTriangle(Triangle{V: [3]int32{c, a, vp}, Alive: true})

	t0 := m.modTri(t)
	t0.V = [3]int32{a, b, vp}
	t0.N = [3]int32{t1, t2, nc}

	m.Tris[t1].N = [3]int32{t2, t, na}
	m.Tris[t2].N = [3]int32{t, t1, nb}

	m.replaceNeighbor(na, t, t1)
	m.replaceNeighbor(nb, t, t2)

	m.modVert(vp).TriangleRef = t
	m.modVert(a).TriangleRef = t
	m.modVert(b).TriangleRef = t
	m.modVert(c).TriangleRef = t1

	return [][2]int32{{t, 2}, {t1, 2}, {t2, 2}}
}

// splitEdge 点vp落在三角形t的第k条边上时，将两侧三角形各一分为二
// 边为约束边时拆分为两段约束边
func (m *TinMesh) splitEdge(t int32, k int, vp int32) [][2]int32 {
	tri := *m.modTri(t)
	a := tri.V[k]
	u := tri.V[(k+1)%3]
	w := tri.V[(k+2)%3]
	o := tri.N[k]
	nA := tri.N[(k+1)%3] // 跨边(w,a)
	nB := tri.N[(k+2)%3] // 跨边(a,u)

	wasConstrained := m.Constrained[MakeEdgeKey(u, w)]

	// 墓碑邻居视作边界（空洞区域）
	if o >= 0 && !m.Tris[o].Alive {
		o = -1
	}
	if o < 0 {
		// 边界边：单侧1分裂为2
		t2 := m.newTriangle(Triangle{V: [3]int32{a, vp, w}, N: [3]int32{-1, nA, t}, Alive: true})
		t0 := m.modTri(t)
		t0.V = [3]int32{a, u, vp}
		t0.N = [3]int32{-1, t2, nB}
		m.replaceNeighbor(nA, t, t2)
		m.modVert(vp).TriangleRef = t
		m.modVert(a).TriangleRef = t
		m.modVert(u).TriangleRef = t
		m.modVert(w).TriangleRef = t2
		if wasConstrained {
			m.setConstrained(MakeEdgeKey(u, w), false)
			m.setConstrained(MakeEdgeKey(u, vp), true)
			m.setConstrained(MakeEdgeKey(vp, w), true)
		}
		return [][2]int32{{t, 2}, {t2, 1}}
	}

	otri := *m.modTri(o)
	ko := 0
	for ; ko < 3; ko++ {
		if otri.V[ko] != u && otri.V[ko] != w {
			break
		}
	}
	bv := otri.V[ko]
	nC := otri.N[(ko+1)%3] // 跨边(u,b)
	nD := otri.N[(ko+2)%3] // 跨边(b,w)

	// t←(a,u,vp)，t2=(a,vp,w)，o←(b,w,vp)，o2=(b,vp,u)
	t2 := m.newTriangle(Triangle{V: [3]int32{a, vp, w}, Alive: true})
	o2 := m.newTriangle(Triangle{V: [3]int32{bv, vp, u}, Alive: true})

	t0 := m.modTri(t)
	t0.V = [3]int32{a, u, vp}
	t0.N = [3]int32{o2, t2, nB}

	to := m.modTri(o)
	to.V = [3]int32{bv, w, vp}
	to.N = [3]int32{t2, o2, nD}

	m.Tris[t2].N = [3]int32{o, nA, t}
	m.Tris[o2].N = [3]int32{t, nC, o}

	m.replaceNeighbor(nA, t, t2)
	m.replaceNeighbor(nC, o, o2)

	m.modVert(vp).TriangleRef = t
	m.modVert(a).TriangleRef = t
	m.modVert(u).TriangleRef = t
	m.modVert(w).TriangleRef = o
	m.modVert(bv).TriangleRef = o

	if wasConstrained {
		m.setConstrained(MakeEdgeKey(u, w), false)
		m.setConstrained(MakeEdgeKey(u, vp), true)
		m.setConstrained(MakeEdgeKey(vp, w), true)
	}

	return [][2]int32{{t, 2}, {t2, 1}, {o, 2}, {o2, 1}}
}

// flipEdge 翻转三角形t第k条边（即V[k]的对边）对应的对角线
// 调用方保证该边可翻：有邻接、非约束、四边形严格凸
// 返回翻转后共享新对角线的两个三角形
func (m *TinMesh) flipEdge(t int32, k int) (int32, int32) {
	tri := *m.modTri(t)
	p := tri.V[k]
	u := tri.V[(k+1)%3]
	w := tri.V[(k+2)%3]
	o := tri.N[k]
	nA := tri.N[(k+1)%3] // 跨边(w,p)
	nB := tri.N[(k+2)%3] // 跨边(p,u)

	otri := *m.modTri(o)
	ko := 0
	for ; ko < 3; ko++ {
		if otri.V[ko] != u && otri.V[ko] != w {
			break
		}
	}
	q := otri.V[ko]
	nC := otri.N[(ko+1)%3] // 跨边(u,q)
	nD := otri.N[(ko+2)%3] // 跨边(q,w)

	// 对角线(u,w)换为(p,q)：t←(p,u,q)，o←(p,q,w)
	t0 := m.modTri(t)
	t0.V = [3]int32{p, u, q}
	t0.N = [3]int32{nC, o, nB}

	o0 := m.modTri(o)
	o0.V = [3]int32{p, q, w}
	o0.N = [3]int32{nD, nA, t}

	m.replaceNeighbor(nC, o, t)
	m.replaceNeighbor(nA, t, o)

	m.modVert(p).TriangleRef = t
	m.modVert(q).TriangleRef = o
	m.modVert(u).TriangleRef = t
	m.modVert(w).TriangleRef = o

	return t, o
}

// canFlip 判断三角形t第k条边是否可翻转
func (m *TinMesh) canFlip(t int32, k int) bool {
	tri := &m.Tris[t]
	o := tri.N[k]
	if o < 0 || !m.Tris[o].Alive {
		return false
	}
	// 锁定三角形拒绝一切结构修改
	if tri.Locked || m.Tris[o].Locked {
		return false
	}
	u := tri.V[(k+1)%3]
	w := tri.V[(k+2)%3]
	if m.Constrained[MakeEdgeKey(u, w)] {
		return false
	}
	p := tri.V[k]
	ko := 0
	otri := &m.Tris[o]
	for ; ko < 3; ko++ {
		if otri.V[ko] != u && otri.V[ko] != w {
			break
		}
	}
	q := otri.V[ko]
	// 四边形p,u,q,w必须严格凸，否则翻转产生翻转/退化三角形
	if m.orientVerts(p, u, q) <= geoEps {
		return false
	}
	if m.orientVerts(q, w, p) <= geoEps {
		return false
	}
	return true
}

// legalize 对工作表中的边逐一做Delaunay判定并翻转
// 使用显式栈而非递归，避免病态输入导致的深递归
func (m *TinMesh) legalize(work [][2]int32) {
	guard := 0
	maxFlips := (len(m.Tris) + 8) * 32
	for len(work) > 0 {
		item := work[len(work)-1]
		work = work[:len(work)-1]
		t, k := item[0], int(item[1])
		if int(t) >= len(m.Tris) || !m.Tris[t].Alive {
			continue
		}
		tri := &m.Tris[t]
		o := tri.N[k]
		if o < 0 || !m.Tris[o].Alive {
			continue
		}
		u := tri.V[(k+1)%3]
		w := tri.V[(k+2)%3]
		if m.Constrained[MakeEdgeKey(u, w)] {
			continue
		}

		otri := &m.Tris[o]
		ko := 0
		for ; ko < 3; ko++ {
			if otri.V[ko] != u && otri.V[ko] != w {
				break
			}
		}
		q := otri.V[ko]
		va, vb, vc := &m.Verts[tri.V[0]], &m.Verts[tri.V[1]], &m.Verts[tri.V[2]]
		vq := &m.Verts[q]
		if inCircle(va.X, va.Y, vb.X, vb.Y, vc.X, vc.Y, vq.X, vq.Y) > circleEps {
			if !m.canFlip(t, k) {
				continue
			}
			nt, no := m.flipEdge(t, k)
			// 翻转后复查新三角形中与原顶点p相对的两条边
			p := m.Tris[nt].V[0]
			work = append(work, [2]int32{nt, int32(m.vertIndexIn(nt, p))})
			work = append(work, [2]int32{no, int32(m.vertIndexIn(no, p))})
			guard++
			if guard > maxFlips {
				return
			}
		}
	}
}
