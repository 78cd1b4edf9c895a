package Tin

import (
	"math"
)

// 等值线端点拼接时的坐标量化容差（相对于格网步长）
const stitchEpsRatio = 1e-9

// ---------- 规则格网等值线（marching squares） ----------

type segment struct {
	x1, y1, x2, y2 float64
}

// GenerateContours 用marching squares从规则格网提取等值线
// grid[j][i]对应坐标(gridX[i], gridY[j])；含NaN角点的格子对所有级别整体跳过，
// 等值线不穿越数据空洞
func GenerateContours(grid [][]float64, gridX, gridY []float64, levels []float64) []ContourLine {
	result := make([]ContourLine, 0, len(levels))
	ny := len(grid)
	if ny == 0 || len(gridX) < 2 || len(gridY) < 2 {
		for _, level := range levels {
			result = append(result, ContourLine{Level: level})
		}
		return result
	}
	nx := len(grid[0])

	// 拼接容差取格网步长的相对小量
	step := math.Min(math.Abs(gridX[1]-gridX[0]), math.Abs(gridY[1]-gridY[0]))
	eps := step * stitchEpsRatio
	if eps <= 0 {
		eps = 1e-12
	}

	for _, level := range levels {
		var segs []segment
		for j := 0; j < ny-1 && j < len(gridY)-1; j++ {
			for i := 0; i < nx-1 && i < len(gridX)-1; i++ {
				v00 := grid[j][i]
				v10 := grid[j][i+1]
				v11 := grid[j+1][i+1]
				v01 := grid[j+1][i]
				if !isFinite(v00) || !isFinite(v10) || !isFinite(v11) || !isFinite(v01) {
					continue
				}
				segs = append(segs, cellSegments(
					level,
					gridX[i], gridY[j], gridX[i+1], gridY[j+1],
					v00, v10, v11, v01)...)
			}
		}
		result = append(result, ContourLine{Level: level, Polylines: stitchSegments(segs, eps)})
	}
	return result
}

// cellSegments 单个格子的16情形判定
// 角点分类采用严格大于，恰好等于级别的角点一致视为外侧，避免同一角点被两种情形重复计入
func cellSegments(level, x0, y0, x1, y1, v00, v10, v11, v01 float64) []segment {
	code := 0
	if v00 > level {
		code |= 1
	}
	if v10 > level {
		code |= 2
	}
	if v11 > level {
		code |= 4
	}
	if v01 > level {
		code |= 8
	}
	if code == 0 || code == 15 {
		return nil
	}

	// 边序号：0=下，1=右，2=上，3=左
	cross := func(edge int) (float64, float64) {
		switch edge {
		case 0:
			t := (level - v00) / (v10 - v00)
			return x0 + t*(x1-x0), y0
		case 1:
			t := (level - v10) / (v11 - v10)
			return x1, y0 + t*(y1-y0)
		case 2:
			t := (level - v01) / (v11 - v01)
			return x0 + t*(x1-x0), y1
		default:
			t := (level - v00) / (v01 - v00)
			return x0, y0 + t*(y1-y0)
		}
	}

	var pairs [][2]int
	switch code {
	case 1, 14:
		pairs = [][2]int{{3, 0}}
	case 2, 13:
		pairs = [][2]int{{0, 1}}
	case 3, 12:
		pairs = [][2]int{{3, 1}}
	case 4, 11:
		pairs = [][2]int{{1, 2}}
	case 6, 9:
		pairs = [][2]int{{0, 2}}
	case 7, 8:
		pairs = [][2]int{{2, 3}}
	case 5, 10:
		// 鞍点情形按格子中心值消歧
		center := (v00 + v10 + v11 + v01) / 4.0
		if (center > level) == (code == 5) {
			pairs = [][2]int{{3, 2}, {0, 1}}
		} else {
			pairs = [][2]int{{3, 0}, {1, 2}}
		}
	}

	var segs []segment
	for _, p := range pairs {
		ax, ay := cross(p[0])
		bx, by := cross(p[1])
		// 角点恰好落在级别上时可能产生零长度线段，直接丢弃
		if ax == bx && ay == by {
			continue
		}
		segs = append(segs, segment{x1: ax, y1: ay, x2: bx, y2: by})
	}
	return segs
}

type stitchKey struct {
	x, y int64
}

func quantize(x, y, eps float64) stitchKey {
	return stitchKey{x: int64(math.Round(x / eps)), y: int64(math.Round(y / eps))}
}

// stitchSegments 按共享端点将离散线段拼接为连续折线
func stitchSegments(segs []segment, eps float64) []Polyline {
	if len(segs) == 0 {
		return nil
	}

	byEnd := make(map[stitchKey][]int)
	for i, s := range segs {
		byEnd[quantize(s.x1, s.y1, eps)] = append(byEnd[quantize(s.x1, s.y1, eps)], i)
		byEnd[quantize(s.x2, s.y2, eps)] = append(byEnd[quantize(s.x2, s.y2, eps)], i)
	}

	used := make([]bool, len(segs))
	var polylines []Polyline

	takeNext := func(x, y float64, exclude int) (int, bool) {
		for _, si := range byEnd[quantize(x, y, eps)] {
			if si != exclude && !used[si] {
				return si, true
			}
		}
		return -1, false
	}

	for i := range segs {
		if used[i] {
			continue
		}
		used[i] = true
		pts := [][2]float64{{segs[i].x1, segs[i].y1}, {segs[i].x2, segs[i].y2}}

		// 向前延伸
		cur := i
		for {
			tail := pts[len(pts)-1]
			next, ok := takeNext(tail[0], tail[1], cur)
			if !ok {
				break
			}
			used[next] = true
			s := segs[next]
			if quantize(s.x1, s.y1, eps) == quantize(tail[0], tail[1], eps) {
				pts = append(pts, [2]float64{s.x2, s.y2})
			} else {
				pts = append(pts, [2]float64{s.x1, s.y1})
			}
			cur = next
		}
		// 向后延伸
		cur = i
		for {
			head := pts[0]
			next, ok := takeNext(head[0], head[1], cur)
			if !ok {
				break
			}
			used[next] = true
			s := segs[next]
			var p [2]float64
			if quantize(s.x1, s.y1, eps) == quantize(head[0], head[1], eps) {
				p = [2]float64{s.x2, s.y2}
			} else {
				p = [2]float64{s.x1, s.y1}
			}
			pts = append([][2]float64{p}, pts...)
			cur = next
		}

		closed := len(pts) > 2 &&
			quantize(pts[0][0], pts[0][1], eps) == quantize(pts[len(pts)-1][0], pts[len(pts)-1][1], eps)
		polylines = append(polylines, Polyline{Points: pts, Closed: closed})
	}
	return polylines
}

// ---------- TIN等值线 ----------

// triCrossing 三角形上与级别相交的两条局部边
type triCrossing struct {
	edges [2]int
	n     int
}

// GenerateTINContours 逐三角形提取TIN等值线，沿邻接关系连接成折线
// 约束边（断裂线）两侧是真实的高程不连续，等值线在约束边处截断而非穿越
func GenerateTINContours(m *TinMesh, levels []float64) []ContourLine {
	result := make([]ContourLine, 0, len(levels))
	for _, level := range levels {
		result = append(result, ContourLine{Level: level, Polylines: m.traceLevel(level)})
	}
	return result
}

// above 顶点分类：严格大于级别为上侧
func (m *TinMesh) above(v int32, level float64) bool {
	return m.Verts[v].Z > level
}

// edgeCrossPoint 计算三角形t第k条边与级别面的交点
func (m *TinMesh) edgeCrossPoint(t int32, k int, level float64) [2]float64 {
	a := m.Tris[t].V[(k+1)%3]
	b := m.Tris[t].V[(k+2)%3]
	va, vb := &m.Verts[a], &m.Verts[b]
	tt := (level - va.Z) / (vb.Z - va.Z)
	return [2]float64{va.X + tt*(vb.X-va.X), va.Y + tt*(vb.Y-va.Y)}
}

// crossingOf 返回三角形与级别面的交叉边
func (m *TinMesh) crossingOf(t int32, level float64) triCrossing {
	var c triCrossing
	tri := &m.Tris[t]
	for k := 0; k < 3; k++ {
		a := tri.V[(k+1)%3]
		b := tri.V[(k+2)%3]
		if m.above(a, level) != m.above(b, level) {
			if c.n < 2 {
				c.edges[c.n] = k
			}
			c.n++
		}
	}
	return c
}

// isConstrainedLocalEdge 判断三角形t的第k条局部边是否为约束边
func (m *TinMesh) isConstrainedLocalEdge(t int32, k int) bool {
	a := m.Tris[t].V[(k+1)%3]
	b := m.Tris[t].V[(k+2)%3]
	return m.Constrained[MakeEdgeKey(a, b)]
}

// traceLevel 追踪单个级别的全部折线
func (m *TinMesh) traceLevel(level float64) []Polyline {
	visited := make([]bool, len(m.Tris))
	var polylines []Polyline

	// 正向走：从三角形t经边exitEdge出发，返回(点序列, 终点三角形是否回到起点)
	walk := func(start int32, exitEdge int) ([][2]float64, bool) {
		var pts [][2]float64
		t := start
		edge := exitEdge
		for steps := 0; steps <= len(m.Tris); steps++ {
			pts = append(pts, m.edgeCrossPoint(t, edge, level))
			// 断裂线截断：交点保留，折线终止
			if m.isConstrainedLocalEdge(t, edge) {
				return pts, false
			}
			next := m.Tris[t].N[edge]
			if next < 0 || !m.Tris[next].Alive {
				return pts, false
			}
			if next == start {
				return pts, true
			}
			visited[next] = true
			// 在next中找另一条交叉边作为出口
			enter := -1
			for k := 0; k < 3; k++ {
				if m.Tris[next].N[k] == t {
					enter = k
					break
				}
			}
			c := m.crossingOf(next, level)
			if c.n != 2 {
				return pts, false
			}
			if c.edges[0] == enter {
				edge = c.edges[1]
			} else {
				edge = c.edges[0]
			}
			t = next
		}
		return pts, false
	}

	for i := range m.Tris {
		t := int32(i)
		if visited[i] || !m.Tris[i].Alive {
			continue
		}
		c := m.crossingOf(t, level)
		if c.n != 2 {
			continue
		}
		visited[i] = true

		forward, closed := walk(t, c.edges[1])
		if closed {
			// 闭合环：首尾相接
			pts := append([][2]float64{}, forward...)
			pts = append(pts, forward[0])
			polylines = append(polylines, Polyline{Points: pts, Closed: true})
			continue
		}
		backward, _ := walk(t, c.edges[0])
		// 反向段逆序 + 正向段
		pts := make([][2]float64, 0, len(forward)+len(backward))
		for j := len(backward) - 1; j >= 0; j-- {
			pts = append(pts, backward[j])
		}
		pts = append(pts, forward...)
		if len(pts) >= 2 {
			polylines = append(polylines, Polyline{Points: pts, Closed: false})
		}
	}
	return polylines
}

// ---------- 平滑 ----------

// SmoothContours 对等值线折线做切角平滑
// factor为0~1的平滑强度；开折线的首尾端点固定不动，闭合标记保持不变
func SmoothContours(contours []ContourLine, factor float64) []ContourLine {
	if factor <= 0 {
		return contours
	}
	if factor > 1 {
		factor = 1
	}
	result := make([]ContourLine, len(contours))
	for i, c := range contours {
		smoothed := make([]Polyline, len(c.Polylines))
		for j, p := range c.Polylines {
			smoothed[j] = smoothPolyline(p, factor)
		}
		result[i] = ContourLine{Level: c.Level, Polylines: smoothed}
	}
	return result
}

func smoothPolyline(p Polyline, factor float64) Polyline {
	n := len(p.Points)
	if n < 3 {
		return p
	}

	if p.Closed {
		// 闭合折线：去掉重复尾点后按环平滑，再补回尾点
		ring := p.Points[:n-1]
		rn := len(ring)
		if rn < 3 {
			return p
		}
		out := make([][2]float64, rn, rn+1)
		for i := 0; i < rn; i++ {
			prev := ring[(i+rn-1)%rn]
			next := ring[(i+1)%rn]
			out[i] = smoothPoint(ring[i], prev, next, factor)
		}
		out = append(out, out[0])
		return Polyline{Points: out, Closed: true}
	}

	out := make([][2]float64, n)
	out[0] = p.Points[0]
	out[n-1] = p.Points[n-1]
	for i := 1; i < n-1; i++ {
		out[i] = smoothPoint(p.Points[i], p.Points[i-1], p.Points[i+1], factor)
	}
	return Polyline{Points: out, Closed: false}
}

// smoothPoint 将点向相邻两点的中点移动factor比例
func smoothPoint(pt, prev, next [2]float64, factor float64) [2]float64 {
	midX := (prev[0] + next[0]) / 2
	midY := (prev[1] + next[1]) / 2
	return [2]float64{
		pt[0] + factor*(midX-pt[0]),
		pt[1] + factor*(midY-pt[1]),
	}
}
