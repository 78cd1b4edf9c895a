package Tin

import (
	"math"
	"testing"
)

func pointNear(p [2]float64, x, y float64) bool {
	return math.Abs(p[0]-x) < 1e-9 && math.Abs(p[1]-y) < 1e-9
}

func TestGenerateContoursDiagonalCell(t *testing.T) {
	grid := [][]float64{{0, 1}, {1, 2}}
	gridX := []float64{0, 1}
	gridY := []float64{0, 1}

	result := GenerateContours(grid, gridX, gridY, []float64{0.5})
	if len(result) != 1 {
		t.Fatalf("级别数不符: %d", len(result))
	}
	polys := result[0].Polylines
	if len(polys) != 1 {
		t.Fatalf("应产生1条折线，实际%d", len(polys))
	}
	pts := polys[0].Points
	if len(pts) != 2 {
		t.Fatalf("折线应为单段，实际%d个点", len(pts))
	}
	// 0.5级等值线沿格子左下斜切：端点(0, 0.5)与(0.5, 0)
	okA := pointNear(pts[0], 0, 0.5) && pointNear(pts[1], 0.5, 0)
	okB := pointNear(pts[0], 0.5, 0) && pointNear(pts[1], 0, 0.5)
	if !okA && !okB {
		t.Fatalf("等值线端点不符: %v", pts)
	}
	if polys[0].Closed {
		t.Error("单段折线不应闭合")
	}
}

func TestGenerateContoursCornerOnLevel(t *testing.T) {
	// 角点恰好等于级别：不得产生零长度线段
	grid := [][]float64{{0.5, 1}, {1, 2}}
	result := GenerateContours(grid, []float64{0, 1}, []float64{0, 1}, []float64{0.5})
	for _, p := range result[0].Polylines {
		if len(p.Points) < 2 {
			t.Fatalf("出现退化折线: %v", p.Points)
		}
		for i := 1; i < len(p.Points); i++ {
			if pointNear(p.Points[i], p.Points[i-1][0], p.Points[i-1][1]) {
				t.Fatalf("出现零长度线段: %v", p.Points)
			}
		}
	}
}

func TestGenerateContoursClosedLoop(t *testing.T) {
	// 中心峰：1级等值线应拼接为一个闭合环
	grid := [][]float64{
		{0, 0, 0},
		{0, 2, 0},
		{0, 0, 0},
	}
	axis := []float64{0, 1, 2}
	result := GenerateContours(grid, axis, axis, []float64{1})
	polys := result[0].Polylines
	if len(polys) != 1 {
		t.Fatalf("应拼接为1条折线，实际%d", len(polys))
	}
	p := polys[0]
	if !p.Closed {
		t.Fatal("环绕峰值的等值线应闭合")
	}
	first := p.Points[0]
	last := p.Points[len(p.Points)-1]
	if !pointNear(last, first[0], first[1]) {
		t.Fatalf("闭合折线首尾应重合: %v vs %v", first, last)
	}
}

func TestGenerateContoursSkipsNaNCells(t *testing.T) {
	grid := [][]float64{{0, math.NaN()}, {1, 2}}
	result := GenerateContours(grid, []float64{0, 1}, []float64{0, 1}, []float64{0.5})
	if len(result[0].Polylines) != 0 {
		t.Errorf("含NaN角点的格子应整体跳过，实际%d条折线", len(result[0].Polylines))
	}
}

func TestGenerateContoursOutOfRangeLevels(t *testing.T) {
	grid := [][]float64{{0, 1}, {1, 2}}
	axis := []float64{0, 1}
	result := GenerateContours(grid, axis, axis, []float64{-5, 10})
	for _, c := range result {
		if len(c.Polylines) != 0 {
			t.Errorf("级别%v超出数据范围，不应产生折线", c.Level)
		}
	}
	// 空格网对每个级别返回空结果
	empty := GenerateContours(nil, nil, nil, []float64{1, 2})
	if len(empty) != 2 {
		t.Errorf("空格网应按级别数返回空结果，实际%d", len(empty))
	}
}

// 对角线确定的双三角形网格，高程0/1/2/1
func twoTriangleMesh(constrainDiagonal bool) *TinMesh {
	tin := &TIN{
		Vertices: []Vertex{
			{X: 0, Y: 0, Z: 0, TriangleRef: 0},
			{X: 1, Y: 0, Z: 1, TriangleRef: 0},
			{X: 1, Y: 1, Z: 2, TriangleRef: 0},
			{X: 0, Y: 1, Z: 1, TriangleRef: 1},
		},
		Triangles: []Triangle{
			{V: [3]int32{0, 1, 2}, N: [3]int32{-1, 1, -1}, Alive: true},
			{V: [3]int32{0, 2, 3}, N: [3]int32{-1, -1, 0}, Alive: true},
		},
		Constrained: make(map[EdgeKey]bool),
	}
	if constrainDiagonal {
		tin.Constrained[MakeEdgeKey(0, 2)] = true
	}
	return BuildMesh(tin)
}

func TestGenerateTINContoursCrossesTriangles(t *testing.T) {
	m := twoTriangleMesh(false)
	result := GenerateTINContours(m, []float64{0.5})
	polys := result[0].Polylines
	if len(polys) != 1 {
		t.Fatalf("无约束时0.5级等值线应为1条连续折线，实际%d", len(polys))
	}
	pts := polys[0].Points
	if len(pts) != 3 {
		t.Fatalf("等值线应穿越两个三角形共3个交点，实际%d", len(pts))
	}
	// 中间交点位于对角线上
	onDiag := false
	for _, p := range pts {
		if pointNear(p, 0.25, 0.25) {
			onDiag = true
		}
	}
	if !onDiag {
		t.Fatalf("等值线应在(0.25,0.25)处穿越对角线: %v", pts)
	}
}

func TestGenerateTINContoursStopAtBreakline(t *testing.T) {
	m := twoTriangleMesh(true)
	result := GenerateTINContours(m, []float64{0.5})
	polys := result[0].Polylines
	if len(polys) != 2 {
		t.Fatalf("断裂线两侧应各成一条折线，实际%d", len(polys))
	}
	// 每条折线都终止于断裂线上的交点，交点本身保留
	for _, p := range polys {
		if p.Closed {
			t.Error("截断折线不应闭合")
		}
		hit := false
		for _, pt := range p.Points {
			if pointNear(pt, 0.25, 0.25) {
				hit = true
			}
		}
		if !hit {
			t.Errorf("折线未包含断裂线交点: %v", p.Points)
		}
	}
}

func TestSmoothContoursEndpointsPinned(t *testing.T) {
	contours := []ContourLine{{
		Level: 1,
		Polylines: []Polyline{{
			Points: [][2]float64{{0, 0}, {1, 1}, {2, 0}, {3, 1}},
			Closed: false,
		}},
	}}
	smoothed := SmoothContours(contours, 0.5)
	p := smoothed[0].Polylines[0]
	if !pointNear(p.Points[0], 0, 0) || !pointNear(p.Points[3], 3, 1) {
		t.Fatalf("开折线端点应固定不动: %v", p.Points)
	}
	// 中间点向邻点中点靠拢
	if p.Points[1][1] >= 1 {
		t.Errorf("中间点未被平滑: %v", p.Points[1])
	}

	// factor为0时原样返回
	same := SmoothContours(contours, 0)
	if &same[0].Polylines[0].Points[0] != &contours[0].Polylines[0].Points[0] {
		t.Error("factor=0应原样返回")
	}
}

func TestSmoothContoursClosedRing(t *testing.T) {
	ring := [][2]float64{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}
	contours := []ContourLine{{
		Level:     1,
		Polylines: []Polyline{{Points: ring, Closed: true}},
	}}
	smoothed := SmoothContours(contours, 0.8)
	p := smoothed[0].Polylines[0]
	if !p.Closed {
		t.Fatal("闭合标记应保持")
	}
	if len(p.Points) != len(ring) {
		t.Fatalf("点数应保持: %d vs %d", len(p.Points), len(ring))
	}
	first := p.Points[0]
	last := p.Points[len(p.Points)-1]
	if !pointNear(last, first[0], first[1]) {
		t.Fatalf("闭合折线首尾应重合: %v vs %v", first, last)
	}
	// 超过1的平滑强度按1截断，不应产生NaN或爆炸
	extreme := SmoothContours(contours, 5)
	for _, pt := range extreme[0].Polylines[0].Points {
		if !isFinite(pt[0]) || !isFinite(pt[1]) {
			t.Fatalf("平滑结果出现非法坐标: %v", pt)
		}
	}
}

// ---------- 高程与体积 ----------

func TestGetElevationAt(t *testing.T) {
	m := twoTriangleMesh(false)
	z, err := m.GetElevationAt(0.5, 0.5)
	if err != nil {
		t.Fatalf("高程查询失败: %v", err)
	}
	if math.Abs(z-1.0) > 1e-9 {
		t.Errorf("对角线中点高程应为1，实际%v", z)
	}
	if _, err := m.GetElevationAt(5, 5); err == nil {
		t.Error("覆盖范围外应返回错误")
	}

	zs, err := m.GetElevationsAt([]Point2D{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		t.Fatalf("批量高程查询失败: %v", err)
	}
	if math.Abs(zs[0]) > 1e-9 || math.Abs(zs[1]-2) > 1e-9 {
		t.Errorf("顶点高程不符: %v", zs)
	}
}

func TestSampleGrid(t *testing.T) {
	m := twoTriangleMesh(false)
	grid, gridX, gridY, err := m.SampleGrid(3, 3)
	if err != nil {
		t.Fatalf("格网采样失败: %v", err)
	}
	if len(grid) != 3 || len(gridX) != 3 || len(gridY) != 3 {
		t.Fatalf("格网尺寸不符: %d×%d", len(grid), len(grid[0]))
	}
	if math.Abs(grid[0][0]) > 1e-9 || math.Abs(grid[2][2]-2) > 1e-9 {
		t.Errorf("角点高程不符: %v %v", grid[0][0], grid[2][2])
	}
	if math.Abs(grid[1][1]-1) > 1e-9 {
		t.Errorf("中心高程应为1，实际%v", grid[1][1])
	}

	if _, _, _, err := m.SampleGrid(1, 3); err == nil {
		t.Error("格网尺寸不足应返回错误")
	}
}

func TestComputeVolume(t *testing.T) {
	m := twoTriangleMesh(false)
	// 基准面0：两个面积0.5的三角形，平均高程均为1
	cut, fill := m.ComputeVolume(0)
	if math.Abs(cut-1.0) > 1e-9 {
		t.Errorf("挖方不符: %v", cut)
	}
	if fill != 0 {
		t.Errorf("基准面0不应有填方: %v", fill)
	}

	cut, fill = m.ComputeVolume(10)
	if cut != 0 || fill <= 0 {
		t.Errorf("高基准面应全为填方: cut=%v fill=%v", cut, fill)
	}
}
