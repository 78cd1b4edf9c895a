package Tin

import (
	"math"
)

// SpatialIndex 均匀网格空间索引，用于散点的近邻查询
// 构建后只读，不支持增量插入和删除
type SpatialIndex struct {
	Points   []Point3D
	minX     float64
	minY     float64
	cellSize float64
	nx, ny   int
	cells    [][]int32
}

// 每个格子的目标平均点数
const targetCellOccupancy = 3.0

// NewSpatialIndex 构建空间索引
// 非法坐标（NaN/Inf）的点在入库时被静默过滤
func NewSpatialIndex(points []Point3D) *SpatialIndex {
	valid := make([]Point3D, 0, len(points))
	for _, p := range points {
		if isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z) {
			valid = append(valid, p)
		}
	}

	idx := &SpatialIndex{Points: valid}
	if len(valid) == 0 {
		idx.cellSize = 1.0
		idx.nx, idx.ny = 1, 1
		idx.cells = make([][]int32, 1)
		return idx
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range valid {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	// 按面积/点数启发式确定格子大小，使平均占用约2~4个点
	dx := maxX - minX
	dy := maxY - minY
	area := dx * dy
	var cell float64
	if area > 0 {
		cell = math.Sqrt(area * targetCellOccupancy / float64(len(valid)))
	} else {
		// 点共线或重合时退化为一维
		span := math.Max(dx, dy)
		if span > 0 {
			cell = span * targetCellOccupancy / float64(len(valid))
		} else {
			cell = 1.0
		}
	}
	if cell <= 0 || !isFinite(cell) {
		cell = 1.0
	}

	idx.minX = minX
	idx.minY = minY
	idx.cellSize = cell
	idx.nx = int(dx/cell) + 1
	idx.ny = int(dy/cell) + 1
	idx.cells = make([][]int32, idx.nx*idx.ny)

	for i, p := range valid {
		cx, cy := idx.cellOf(p.X, p.Y)
		ci := cy*idx.nx + cx
		idx.cells[ci] = append(idx.cells[ci], int32(i))
	}
	return idx
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// cellOf 计算点所在格子坐标，越界时截断到边缘
func (s *SpatialIndex) cellOf(x, y float64) (int, int) {
	cx := int(math.Floor((x - s.minX) / s.cellSize))
	cy := int(math.Floor((y - s.minY) / s.cellSize))
	if cx < 0 {
		cx = 0
	}
	if cx >= s.nx {
		cx = s.nx - 1
	}
	if cy < 0 {
		cy = 0
	}
	if cy >= s.ny {
		cy = s.ny - 1
	}
	return cx, cy
}

// FindKNearestRaw 查询距离(x,y)最近的k个点
// 结果写入outIdx和outDist（按距离升序，等距时按原始点序），返回实际数量
// 从查询点所在格子向外按方形环扩展，当第k近距离小于未探索环的最小可能距离时停止，
// 保证结果精确而非启发式截断
func (s *SpatialIndex) FindKNearestRaw(x, y float64, k int, outIdx []int32, outDist []float64) int {
	if k <= 0 || len(s.Points) == 0 {
		return 0
	}
	if k > len(outIdx) {
		k = len(outIdx)
	}
	if k > len(outDist) {
		k = len(outDist)
	}
	if k > len(s.Points) {
		k = len(s.Points)
	}
	if k <= 0 {
		return 0
	}

	cx := int(math.Floor((x - s.minX) / s.cellSize))
	cy := int(math.Floor((y - s.minY) / s.cellSize))

	count := 0
	// 覆盖整个网格所需的最大环数
	maxRing := s.nx + s.ny
	if cx < 0 {
		maxRing += -cx
	} else if cx >= s.nx {
		maxRing += cx - s.nx + 1
	}
	if cy < 0 {
		maxRing += -cy
	} else if cy >= s.ny {
		maxRing += cy - s.ny + 1
	}

	for r := 0; r <= maxRing; r++ {
		// 环r内格子到查询点的距离下界为(r-1)*cellSize
		// 取严格小于，等距但原始序更靠前的点不会被漏掉
		if count == k && r > 0 && outDist[count-1] < float64(r-1)*s.cellSize {
			break
		}
		for gy := cy - r; gy <= cy+r; gy++ {
			if gy < 0 || gy >= s.ny {
				continue
			}
			for gx := cx - r; gx <= cx+r; gx++ {
				if gx < 0 || gx >= s.nx {
					continue
				}
				// 只取环上的格子，内部已在更小的环处理过
				if r > 0 && gx != cx-r && gx != cx+r && gy != cy-r && gy != cy+r {
					continue
				}
				for _, pi := range s.cells[gy*s.nx+gx] {
					p := &s.Points[pi]
					ddx := p.X - x
					ddy := p.Y - y
					d := math.Sqrt(ddx*ddx + ddy*ddy)
					count = insertCandidate(outIdx, outDist, count, k, pi, d)
				}
			}
		}
	}
	return count
}

// insertCandidate 向有界候选数组线性插入，保持按(距离,索引)升序
func insertCandidate(outIdx []int32, outDist []float64, count, k int, pi int32, d float64) int {
	pos := count
	for pos > 0 && (outDist[pos-1] > d || (outDist[pos-1] == d && outIdx[pos-1] > pi)) {
		pos--
	}
	if pos >= k {
		return count
	}
	if count < k {
		count++
	}
	for j := count - 1; j > pos; j-- {
		outIdx[j] = outIdx[j-1]
		outDist[j] = outDist[j-1]
	}
	outIdx[pos] = pi
	outDist[pos] = d
	return count
}

// FindWithinRadius 查询半径r内的所有点索引
func (s *SpatialIndex) FindWithinRadius(x, y, r float64) []int32 {
	if r <= 0 || len(s.Points) == 0 {
		return nil
	}
	gx0, gy0 := s.cellOf(x-r, y-r)
	gx1, gy1 := s.cellOf(x+r, y+r)

	var result []int32
	rr := r * r
	for gy := gy0; gy <= gy1; gy++ {
		for gx := gx0; gx <= gx1; gx++ {
			for _, pi := range s.cells[gy*s.nx+gx] {
				p := &s.Points[pi]
				ddx := p.X - x
				ddy := p.Y - y
				if ddx*ddx+ddy*ddy <= rr {
					result = append(result, pi)
				}
			}
		}
	}
	return result
}

// FindNearestElevation 返回距离(x,y)最近点的高程，无点时返回0
func (s *SpatialIndex) FindNearestElevation(x, y float64) float64 {
	var idx [1]int32
	var dist [1]float64
	n := s.FindKNearestRaw(x, y, 1, idx[:], dist[:])
	if n == 0 {
		return 0.0
	}
	return s.Points[idx[0]].Z
}
