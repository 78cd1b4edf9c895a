package views

import (
	"math"
	"testing"

	"github.com/GrainArc/SurveyTIN/Tin"
	"github.com/gin-gonic/gin/binding"
)

func buildElevationMesh(t *testing.T) *Tin.TinMesh {
	t.Helper()
	pts := []Tin.Point3D{
		{X: 0, Y: 0, Z: 0, ID: 0},
		{X: 10, Y: 0, Z: 10, ID: 1},
		{X: 10, Y: 10, Z: 20, ID: 2},
		{X: 0, Y: 10, Z: 10, ID: 3},
	}
	tin, err := Tin.DelaunayTriangulation(pts, nil)
	if err != nil {
		t.Fatalf("三角剖分失败: %v", err)
	}
	return Tin.BuildMesh(tin)
}

func TestMakeZListKeepsOrder(t *testing.T) {
	m := buildElevationMesh(t)

	var coords [][]float64
	for i := 0; i < 200; i++ {
		x := float64(i%20) * 0.5
		y := float64(i/20) * 1.0
		coords = append(coords, []float64{x, y})
	}
	// 覆盖范围外的点
	coords = append(coords, []float64{50, 50})

	got := MakeZList(coords, m)
	if len(got) != len(coords) {
		t.Fatalf("结果数应为%d，实际%d", len(coords), len(got))
	}
	for i := range coords {
		want, err := m.GetElevationAt(coords[i][0], coords[i][1])
		if err != nil {
			if !math.IsNaN(got[i][2]) {
				t.Errorf("第%d个点在覆盖范围外，应为NaN", i)
			}
			continue
		}
		if got[i][0] != coords[i][0] || got[i][1] != coords[i][1] {
			t.Fatalf("第%d个点坐标错位: %v", i, got[i])
		}
		if math.Abs(got[i][2]-want) > 1e-9 {
			t.Errorf("第%d个点高程不符: %v != %v", i, got[i][2], want)
		}
	}
}

func TestPointBindingAllowsZero(t *testing.T) {
	var p Point
	if err := binding.JSON.BindBody([]byte(`{"x":0,"y":0}`), &p); err != nil {
		t.Fatalf("零坐标应通过校验: %v", err)
	}
	if *p.X != 0 || *p.Y != 0 {
		t.Errorf("绑定结果不符: x=%v y=%v", *p.X, *p.Y)
	}

	var q Point
	if err := binding.JSON.BindBody([]byte(`{"x":1}`), &q); err == nil {
		t.Error("缺少y应报校验错误")
	}
}
