package Tin

import (
	"math"
	"math/rand"
	"sync"
	"testing"
)

func TestGetElevationAtFromMatchesSerial(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	tin, err := DelaunayTriangulation(randomPoints(200, r, 100), nil)
	if err != nil {
		t.Fatalf("三角剖分失败: %v", err)
	}
	m := BuildMesh(tin)

	// 失效的起点游标会被重新定位
	if _, _, err := m.GetElevationAtFrom(50, 50, 9999); err != nil {
		t.Fatalf("越界游标查询失败: %v", err)
	}

	const n = 2000
	qx := make([]float64, n)
	qy := make([]float64, n)
	want := make([]float64, n)
	for i := 0; i < n; i++ {
		// 含覆盖范围外的点
		qx[i] = r.Float64()*120 - 10
		qy[i] = r.Float64()*120 - 10
		z, err := m.GetElevationAt(qx[i], qy[i])
		if err != nil {
			z = math.NaN()
		}
		want[i] = z
	}

	got := make([]float64, n)
	const workers = 16
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			hint := int32(-1)
			for i := w; i < n; i += workers {
				z, at, err := m.GetElevationAtFrom(qx[i], qy[i], hint)
				if err != nil {
					z = math.NaN()
				} else {
					hint = at
				}
				got[i] = z
			}
		}(w)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if math.IsNaN(want[i]) != math.IsNaN(got[i]) {
			t.Fatalf("第%d个点覆盖判定不一致", i)
		}
		if !math.IsNaN(want[i]) && math.Abs(want[i]-got[i]) > 1e-9 {
			t.Fatalf("第%d个点高程不符: %v != %v", i, got[i], want[i])
		}
	}
}
