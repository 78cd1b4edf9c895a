package Tin

import (
	"math"
	"math/rand"
	"testing"
)

func unitSquarePoints() []Point3D {
	return []Point3D{
		{X: 0, Y: 0, Z: 0, ID: 0},
		{X: 1, Y: 0, Z: 0, ID: 1},
		{X: 1, Y: 1, Z: 0, ID: 2},
		{X: 0, Y: 1, Z: 0, ID: 3},
	}
}

func TestTriangulateUnitSquare(t *testing.T) {
	tin, err := DelaunayTriangulation(unitSquarePoints(), nil)
	if err != nil {
		t.Fatalf("三角剖分失败: %v", err)
	}
	if len(tin.Vertices) != 4 {
		t.Fatalf("顶点数应为4，实际%d", len(tin.Vertices))
	}
	if len(tin.Triangles) != 2 {
		t.Fatalf("单位正方形应产出2个三角形，实际%d", len(tin.Triangles))
	}
	for i, tri := range tin.Triangles {
		if !tri.Alive {
			t.Errorf("三角形%d不应为墓碑", i)
		}
		v1, v2, v3 := tin.Vertices[tri.V[0]], tin.Vertices[tri.V[1]], tin.Vertices[tri.V[2]]
		if orient2d(v1.X, v1.Y, v2.X, v2.Y, v3.X, v3.Y) <= 0 {
			t.Errorf("三角形%d非逆时针或面积退化", i)
		}
	}
}

func TestTriangulateTooFewPoints(t *testing.T) {
	if _, err := DelaunayTriangulation(unitSquarePoints()[:2], nil); err == nil {
		t.Error("2个点应返回错误")
	}
	if _, err := DelaunayTriangulation(nil, nil); err == nil {
		t.Error("空点集应返回错误")
	}
}

func TestTriangulateCollinear(t *testing.T) {
	pts := []Point3D{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0},
	}
	if _, err := DelaunayTriangulation(pts, nil); err == nil {
		t.Error("共线点集应返回错误")
	}
}

func TestTriangulateMergesDuplicates(t *testing.T) {
	pts := append(unitSquarePoints(),
		Point3D{X: 0, Y: 0, Z: 5, ID: 4}, // 与第0个点重合
	)
	tin, err := DelaunayTriangulation(pts, nil)
	if err != nil {
		t.Fatalf("三角剖分失败: %v", err)
	}
	if len(tin.Triangles) != 2 {
		t.Fatalf("重复点合并后应仍为2个三角形，实际%d", len(tin.Triangles))
	}
}

func TestTriangulateFiltersNonFinite(t *testing.T) {
	pts := append(unitSquarePoints(),
		Point3D{X: math.NaN(), Y: 0.5, Z: 0, ID: 4},
	)
	tin, err := DelaunayTriangulation(pts, nil)
	if err != nil {
		t.Fatalf("三角剖分失败: %v", err)
	}
	if len(tin.Vertices) != 4 {
		t.Fatalf("非法点应被过滤，顶点数%d", len(tin.Vertices))
	}
}

// 网格邻接关系必须对称
func checkAdjacency(t *testing.T, m *TinMesh) {
	t.Helper()
	for i := range m.Tris {
		tri := &m.Tris[i]
		if !tri.Alive {
			continue
		}
		for k := 0; k < 3; k++ {
			n := tri.N[k]
			if n < 0 {
				continue
			}
			if !m.Tris[n].Alive {
				continue
			}
			back := false
			for j := 0; j < 3; j++ {
				if m.Tris[n].N[j] == int32(i) {
					back = true
				}
			}
			if !back {
				t.Fatalf("三角形%d与%d的邻接不对称", i, n)
			}
		}
	}
}

// 欧拉公式与Delaunay空圆判据
func checkDelaunay(t *testing.T, m *TinMesh, relTol float64) {
	t.Helper()

	// V - E + T = 1（平面三角网，单一外部面）
	stats := m.GetMeshStats()
	edges := m.GetEdges()
	if stats.VertexCount-len(edges)+stats.TriangleCount != 1 {
		t.Fatalf("欧拉公式不成立: V=%d E=%d T=%d", stats.VertexCount, len(edges), stats.TriangleCount)
	}

	// 尺度归一化的判据容差
	minX, minY, maxX, maxY, _ := m.Bounds()
	scale := math.Max(maxX-minX, maxY-minY)
	tol := relTol * scale * scale * scale * scale

	for i := range m.Tris {
		tri := &m.Tris[i]
		if !tri.Alive {
			continue
		}
		for k := 0; k < 3; k++ {
			n := tri.N[k]
			if n < 0 || !m.Tris[n].Alive {
				continue
			}
			a := tri.V[(k+1)%3]
			b := tri.V[(k+2)%3]
			if m.Constrained[MakeEdgeKey(a, b)] {
				continue
			}
			ko := 0
			for ; ko < 3; ko++ {
				if m.Tris[n].V[ko] != a && m.Tris[n].V[ko] != b {
					break
				}
			}
			q := &m.Verts[m.Tris[n].V[ko]]
			v1, v2, v3 := &m.Verts[tri.V[0]], &m.Verts[tri.V[1]], &m.Verts[tri.V[2]]
			if inCircle(v1.X, v1.Y, v2.X, v2.Y, v3.X, v3.Y, q.X, q.Y) > tol {
				t.Fatalf("三角形%d的边(%d,%d)违反空圆判据", i, a, b)
			}
		}
	}
}

func TestTriangulateRandomDelaunay(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for round := 0; round < 5; round++ {
		pts := randomPoints(80, r, 100)
		tin, err := DelaunayTriangulation(pts, nil)
		if err != nil {
			t.Fatalf("第%d轮三角剖分失败: %v", round, err)
		}
		m := BuildMesh(tin)
		checkAdjacency(t, m)
		checkDelaunay(t, m, 1e-9)
	}
}

func TestTriangulateWithConstraint(t *testing.T) {
	// 规则点阵中强制一条长对角约束边
	var pts []Point3D
	for j := 0; j <= 4; j++ {
		for i := 0; i <= 4; i++ {
			pts = append(pts, Point3D{X: float64(i), Y: float64(j), Z: 0, ID: len(pts)})
		}
	}
	// 点(1,0)与点(3,4)之间的连线不是点阵的自然边
	c0 := 1
	c1 := 23
	tin, err := DelaunayTriangulation(pts, [][2]int{{c0, c1}})
	if err != nil {
		t.Fatalf("带约束三角剖分失败: %v", err)
	}
	m := BuildMesh(tin)
	checkAdjacency(t, m)

	// 约束边必须以直接网格边存在
	found := false
	for key := range m.Constrained {
		a, b := m.Verts[key.A], m.Verts[key.B]
		onSegment := func(v Vertex) bool {
			return pointSegmentDistance(v.X, v.Y, pts[c0].X, pts[c0].Y, pts[c1].X, pts[c1].Y) < 1e-9
		}
		if onSegment(a) && onSegment(b) {
			found = true
		}
		if t1, _ := m.edgeTriangles(key.A, key.B); t1 < 0 {
			t.Fatalf("约束边(%d,%d)不存在于网格中", key.A, key.B)
		}
	}
	if !found {
		t.Fatal("约束线段未写入网格")
	}
}

func TestProgressCallbackStages(t *testing.T) {
	var stages []string
	_, err := DelaunayTriangulationWithProgress(unitSquarePoints(), nil,
		func(percent float64, stage string) bool {
			stages = append(stages, stage)
			return true
		})
	if err != nil {
		t.Fatalf("三角剖分失败: %v", err)
	}
	if len(stages) < 3 {
		t.Errorf("进度回调应覆盖各阶段，实际%v", stages)
	}
}

func TestProgressCallbackCancel(t *testing.T) {
	_, err := DelaunayTriangulationWithProgress(unitSquarePoints(), nil,
		func(percent float64, stage string) bool { return false })
	if err == nil {
		t.Error("回调返回false应中止三角剖分")
	}
}
