package Tin

import (
	"math"
	"math/rand"
	"sort"
	"testing"
)

func randomPoints(n int, r *rand.Rand, scale float64) []Point3D {
	pts := make([]Point3D, n)
	for i := range pts {
		pts[i] = Point3D{
			X:  r.Float64() * scale,
			Y:  r.Float64() * scale,
			Z:  r.Float64() * 100,
			ID: i,
		}
	}
	return pts
}

// 与暴力近邻搜索逐一对比
func TestFindKNearestMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	points := randomPoints(10000, r, 1000)
	idx := NewSpatialIndex(points)

	k := 8
	outIdx := make([]int32, k)
	outDist := make([]float64, k)

	for q := 0; q < 1000; q++ {
		qx := r.Float64()*1200 - 100
		qy := r.Float64()*1200 - 100

		n := idx.FindKNearestRaw(qx, qy, k, outIdx, outDist)
		if n != k {
			t.Fatalf("查询%d返回%d个结果，期望%d", q, n, k)
		}

		type cand struct {
			i int
			d float64
		}
		brute := make([]cand, len(points))
		for i, p := range points {
			brute[i] = cand{i: i, d: math.Hypot(p.X-qx, p.Y-qy)}
		}
		sort.Slice(brute, func(a, b int) bool {
			if brute[a].d != brute[b].d {
				return brute[a].d < brute[b].d
			}
			return brute[a].i < brute[b].i
		})

		for j := 0; j < k; j++ {
			if int(outIdx[j]) != brute[j].i {
				t.Fatalf("查询%d第%d近点不符: got=%d want=%d (dist %v vs %v)",
					q, j, outIdx[j], brute[j].i, outDist[j], brute[j].d)
			}
			if math.Abs(outDist[j]-brute[j].d) > 1e-9 {
				t.Fatalf("查询%d第%d近距离不符: got=%v want=%v", q, j, outDist[j], brute[j].d)
			}
		}
	}
}

func TestFindKNearestAscendingOrder(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	idx := NewSpatialIndex(randomPoints(500, r, 10))

	outIdx := make([]int32, 20)
	outDist := make([]float64, 20)
	n := idx.FindKNearestRaw(5, 5, 20, outIdx, outDist)
	if n != 20 {
		t.Fatalf("返回%d个结果，期望20", n)
	}
	for j := 1; j < n; j++ {
		if outDist[j] < outDist[j-1] {
			t.Fatalf("距离未按升序: %v", outDist[:n])
		}
	}
}

func TestFindKNearestDegenerate(t *testing.T) {
	empty := NewSpatialIndex(nil)
	outIdx := make([]int32, 4)
	outDist := make([]float64, 4)
	if n := empty.FindKNearestRaw(0, 0, 4, outIdx, outDist); n != 0 {
		t.Errorf("空索引应返回0个结果，实际%d", n)
	}

	idx := NewSpatialIndex([]Point3D{{X: 1, Y: 1}})
	if n := idx.FindKNearestRaw(0, 0, 0, outIdx, outDist); n != 0 {
		t.Errorf("k=0应返回0个结果，实际%d", n)
	}
	if n := idx.FindKNearestRaw(0, 0, -3, outIdx, outDist); n != 0 {
		t.Errorf("k<0应返回0个结果，实际%d", n)
	}
	// 点数不足k时返回全部
	if n := idx.FindKNearestRaw(0, 0, 4, outIdx, outDist); n != 1 {
		t.Errorf("单点索引k=4应返回1个结果，实际%d", n)
	}
}

func TestFindKNearestFiltersNonFinite(t *testing.T) {
	pts := []Point3D{
		{X: 0, Y: 0, Z: 1},
		{X: math.NaN(), Y: 0, Z: 2},
		{X: 1, Y: math.Inf(1), Z: 3},
		{X: 2, Y: 2, Z: 4},
	}
	idx := NewSpatialIndex(pts)
	if len(idx.Points) != 2 {
		t.Fatalf("非法坐标应被过滤，剩余%d个点", len(idx.Points))
	}
}

func TestFindWithinRadius(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	points := randomPoints(2000, r, 100)
	idx := NewSpatialIndex(points)

	qx, qy, radius := 50.0, 50.0, 7.5
	got := idx.FindWithinRadius(qx, qy, radius)

	want := make(map[int32]bool)
	for i, p := range points {
		if math.Hypot(p.X-qx, p.Y-qy) <= radius {
			want[int32(i)] = true
		}
	}
	if len(got) != len(want) {
		t.Fatalf("半径查询数量不符: got=%d want=%d", len(got), len(want))
	}
	for _, i := range got {
		if !want[i] {
			t.Fatalf("半径查询返回了范围外的点%d", i)
		}
	}

	if res := idx.FindWithinRadius(qx, qy, -1); res != nil {
		t.Errorf("负半径应返回空结果")
	}
}

func TestFindNearestElevation(t *testing.T) {
	pts := []Point3D{
		{X: 0, Y: 0, Z: 10},
		{X: 100, Y: 100, Z: 20},
	}
	idx := NewSpatialIndex(pts)
	if z := idx.FindNearestElevation(1, 1); z != 10 {
		t.Errorf("最近点高程应为10，实际%v", z)
	}
	if z := idx.FindNearestElevation(99, 99); z != 20 {
		t.Errorf("最近点高程应为20，实际%v", z)
	}
	if z := NewSpatialIndex(nil).FindNearestElevation(0, 0); z != 0 {
		t.Errorf("空索引高程应为0，实际%v", z)
	}
}
