package Tin

import (
	"math"
	"math/rand"
	"testing"
)

func squareMesh(t *testing.T) *TinMesh {
	t.Helper()
	pts := []Point3D{
		{X: 0, Y: 0, Z: 0, ID: 0},
		{X: 1, Y: 0, Z: 1, ID: 1},
		{X: 1, Y: 1, Z: 2, ID: 2},
		{X: 0, Y: 1, Z: 3, ID: 3},
	}
	tin, err := DelaunayTriangulation(pts, nil)
	if err != nil {
		t.Fatalf("三角剖分失败: %v", err)
	}
	return BuildMesh(tin)
}

func aliveCount(m *TinMesh) int {
	n := 0
	for i := range m.Tris {
		if m.Tris[i].Alive {
			n++
		}
	}
	return n
}

func diagonalOf(t *testing.T, m *TinMesh) EdgeKey {
	t.Helper()
	key, ok := m.FindEdgeAt(0.5, 0.5, 1e-6)
	if !ok {
		t.Fatal("未找到对角线")
	}
	return key
}

func TestInsertPointAndUndo(t *testing.T) {
	m := squareMesh(t)

	idx, created := m.InsertPoint(0.5, 0.5, 5)
	if !created || idx < 0 {
		t.Fatalf("插入中心点失败: idx=%d created=%v", idx, created)
	}
	if got := aliveCount(m); got != 4 {
		t.Fatalf("插入对角线中点后应有4个活三角形，实际%d", got)
	}
	checkAdjacency(t, m)

	if !m.UndoEdit() {
		t.Fatal("撤销失败")
	}
	if got := aliveCount(m); got != 2 {
		t.Fatalf("撤销后应恢复2个活三角形，实际%d", got)
	}
	if len(m.Verts) != 4 {
		t.Fatalf("撤销后顶点数应为4，实际%d", len(m.Verts))
	}

	if !m.RedoEdit() {
		t.Fatal("重做失败")
	}
	if got := aliveCount(m); got != 4 {
		t.Fatalf("重做后应有4个活三角形，实际%d", got)
	}
	if m.Verts[idx].Z != 5 {
		t.Fatalf("重做后插入点高程应为5，实际%v", m.Verts[idx].Z)
	}
	checkAdjacency(t, m)
}

func TestInsertPointMergesToExisting(t *testing.T) {
	m := squareMesh(t)
	idx, created := m.InsertPoint(0, 0, 99)
	if created {
		t.Fatal("与既有顶点重合的插入不应新建顶点")
	}
	if idx < 0 || m.Verts[idx].X != 0 || m.Verts[idx].Y != 0 {
		t.Fatalf("应合并到顶点(0,0)，实际idx=%d", idx)
	}
	if m.CanUndo() {
		t.Error("合并操作不应产生编辑记录")
	}
}

func TestInsertPointRejectsNonFinite(t *testing.T) {
	m := squareMesh(t)
	if _, created := m.InsertPoint(math.NaN(), 0.5, 0); created {
		t.Error("NaN坐标应被拒绝")
	}
	if _, created := m.InsertPoint(0.5, 0.5, math.Inf(1)); created {
		t.Error("Inf高程应被拒绝")
	}
}

func TestDeletePointRestoresCount(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	tin, err := DelaunayTriangulation(randomPoints(30, r, 100), nil)
	if err != nil {
		t.Fatalf("三角剖分失败: %v", err)
	}
	m := BuildMesh(tin)
	before := aliveCount(m)
	vertsBefore := m.GetMeshStats().VertexCount

	idx, created := m.InsertPoint(50, 50, 12)
	if !created {
		t.Fatal("插入失败")
	}
	if !m.DeletePoint(idx) {
		t.Fatal("删除失败")
	}
	if got := aliveCount(m); got != before {
		t.Fatalf("插入再删除后活三角形数应恢复为%d，实际%d", before, got)
	}
	if got := m.GetMeshStats().VertexCount; got != vertsBefore {
		t.Fatalf("插入再删除后在用顶点数应恢复为%d，实际%d", vertsBefore, got)
	}
	checkAdjacency(t, m)
	checkDelaunay(t, m, 1e-9)
}

func TestDeletePointRefusals(t *testing.T) {
	m := squareMesh(t)
	diag := diagonalOf(t, m)

	// 对角线之外的角点只有一个关联三角形，外缘不足3个顶点
	var corner int32 = -1
	for v := int32(0); v < 4; v++ {
		if v != diag.A && v != diag.B {
			corner = v
			break
		}
	}
	if m.DeletePoint(corner) {
		t.Error("外缘顶点不足的删除应被拒绝")
	}
	if m.DeletePoint(-1) || m.DeletePoint(int32(len(m.Verts))) {
		t.Error("越界顶点删除应被拒绝")
	}

	// 约束边端点不可删除
	if !m.AddBreakline(diag.A, diag.B) {
		t.Fatal("添加断裂线失败")
	}
	if m.DeletePoint(diag.A) {
		t.Error("约束边端点删除应被拒绝")
	}
}

func TestDeletePointLockedStar(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	tin, err := DelaunayTriangulation(randomPoints(30, r, 100), nil)
	if err != nil {
		t.Fatalf("三角剖分失败: %v", err)
	}
	m := BuildMesh(tin)
	idx, created := m.InsertPoint(50, 50, 12)
	if !created {
		t.Fatal("插入失败")
	}

	// 星形邻域内有锁定三角形时拒绝删除
	inc := m.Verts[idx].TriangleRef
	if inc < 0 {
		t.Fatal("插入点没有关联三角形")
	}
	if !m.LockTriangle(inc, true) {
		t.Fatal("锁定失败")
	}
	if m.DeletePoint(idx) {
		t.Error("邻域含锁定三角形的删除应被拒绝")
	}
	if !m.LockTriangle(inc, false) {
		t.Fatal("解锁失败")
	}

	// 锁定与该顶点无关的三角形不影响删除
	var far int32 = -1
	for i := range m.Tris {
		tri := &m.Tris[i]
		if !tri.Alive {
			continue
		}
		if tri.V[0] != idx && tri.V[1] != idx && tri.V[2] != idx {
			far = int32(i)
			break
		}
	}
	if far < 0 {
		t.Fatal("未找到非邻域三角形")
	}
	if !m.LockTriangle(far, true) {
		t.Fatal("锁定失败")
	}
	if !m.DeletePoint(idx) {
		t.Error("非邻域锁定不应阻止删除")
	}
	checkAdjacency(t, m)
}

func TestDeleteTriangleTombstone(t *testing.T) {
	m := squareMesh(t)
	target := m.FindTriangleAt(0.25, 0.25)
	if target < 0 {
		t.Fatal("未定位到三角形")
	}
	triCount := len(m.Tris)

	if !m.DeleteTriangle(target) {
		t.Fatal("删除三角形失败")
	}
	if len(m.Tris) != triCount {
		t.Fatal("墓碑删除不应改变三角形数组长度")
	}
	if m.Tris[target].Alive {
		t.Fatal("删除后三角形应为墓碑")
	}
	stats := m.GetMeshStats()
	if stats.DeadTriangles != 1 || stats.TriangleCount != 1 {
		t.Fatalf("统计不符: dead=%d alive=%d", stats.DeadTriangles, stats.TriangleCount)
	}

	if !m.UndoEdit() {
		t.Fatal("撤销失败")
	}
	if !m.Tris[target].Alive {
		t.Fatal("撤销后三角形应复活")
	}
}

func TestSwapEdge(t *testing.T) {
	m := squareMesh(t)
	diag := diagonalOf(t, m)

	// 翻转预览应给出四边形的另一条对角线
	p, q, ok := m.GetSwapPreview(diag.A, diag.B)
	if !ok {
		t.Fatal("翻转预览失败")
	}
	want := map[int32]bool{0: true, 1: true, 2: true, 3: true}
	delete(want, diag.A)
	delete(want, diag.B)
	if !want[p] || !want[q] || p == q {
		t.Fatalf("预览对角线(%d,%d)不是剩余顶点对", p, q)
	}

	if !m.SwapEdge(diag.A, diag.B) {
		t.Fatal("翻转对角线失败")
	}
	checkAdjacency(t, m)

	// 原对角线不复存在，新对角线存在
	if t1, _ := m.edgeTriangles(diag.A, diag.B); t1 >= 0 {
		t.Error("原对角线翻转后仍存在")
	}
	newDiag := diagonalOf(t, m)
	if MakeEdgeKey(p, q) != newDiag {
		t.Errorf("新对角线应为(%d,%d)，实际(%d,%d)", p, q, newDiag.A, newDiag.B)
	}
	if got := aliveCount(m); got != 2 {
		t.Fatalf("翻转后活三角形数应不变，实际%d", got)
	}

	if !m.UndoEdit() {
		t.Fatal("撤销失败")
	}
	if t1, _ := m.edgeTriangles(diag.A, diag.B); t1 < 0 {
		t.Error("撤销后原对角线应恢复")
	}
}

func TestSwapEdgeRefusals(t *testing.T) {
	m := squareMesh(t)

	// 边界边没有第二个邻接三角形
	bottom, ok := m.FindEdgeAt(0.5, 0, 1e-6)
	if !ok {
		t.Fatal("未找到底边")
	}
	if m.SwapEdge(bottom.A, bottom.B) {
		t.Error("边界边翻转应被拒绝")
	}

	// 约束边不可翻转
	diag := diagonalOf(t, m)
	if !m.AddBreakline(diag.A, diag.B) {
		t.Fatal("添加断裂线失败")
	}
	if m.SwapEdge(diag.A, diag.B) {
		t.Error("约束边翻转应被拒绝")
	}

	if m.SwapEdge(diag.A, diag.A) {
		t.Error("退化顶点对应被拒绝")
	}
	if m.SwapEdge(0, 2000) {
		t.Error("越界顶点应被拒绝")
	}
}

func TestAddBreakline(t *testing.T) {
	m := squareMesh(t)
	diag := diagonalOf(t, m)

	if !m.AddBreakline(diag.A, diag.B) {
		t.Fatal("添加断裂线失败")
	}
	if !m.IsConstrainedEdge(diag.A, diag.B) || !m.IsConstrainedEdge(diag.B, diag.A) {
		t.Error("约束标记应对两个顶点顺序都成立")
	}
	// 重复添加拒绝
	if m.AddBreakline(diag.A, diag.B) {
		t.Error("重复添加断裂线应被拒绝")
	}

	if !m.UndoEdit() {
		t.Fatal("撤销失败")
	}
	if m.IsConstrainedEdge(diag.A, diag.B) {
		t.Error("撤销后约束标记应清除")
	}
}

func TestAddBreaklineForcesFlip(t *testing.T) {
	m := squareMesh(t)
	old := diagonalOf(t, m)
	p, q, ok := m.GetSwapPreview(old.A, old.B)
	if !ok {
		t.Fatal("翻转预览失败")
	}

	// 当前不存在的对角线通过翻边强制写入
	if !m.AddBreakline(p, q) {
		t.Fatal("强制断裂线失败")
	}
	if t1, _ := m.edgeTriangles(p, q); t1 < 0 {
		t.Fatal("断裂线未以网格边存在")
	}
	if !m.IsConstrainedEdge(p, q) {
		t.Fatal("断裂线未被标记为约束")
	}
	if m.SwapEdge(p, q) {
		t.Error("断裂线不可被翻转")
	}
	checkAdjacency(t, m)
}

func TestFlattenTriangle(t *testing.T) {
	m := squareMesh(t)
	target := m.FindTriangleAt(0.25, 0.25)
	tri := m.Tris[target]
	want := (m.Verts[tri.V[0]].Z + m.Verts[tri.V[1]].Z + m.Verts[tri.V[2]].Z) / 3.0

	if !m.FlattenTriangle(target) {
		t.Fatal("拉平失败")
	}
	for k := 0; k < 3; k++ {
		if got := m.Verts[tri.V[k]].Z; got != want {
			t.Errorf("顶点%d高程应为%v，实际%v", tri.V[k], want, got)
		}
	}
	if !m.UndoEdit() {
		t.Fatal("撤销失败")
	}
	if m.Verts[tri.V[0]].Z == want && m.Verts[tri.V[1]].Z == want {
		t.Error("撤销后高程应恢复")
	}
}

func TestModifyVertexZ(t *testing.T) {
	m := squareMesh(t)
	if !m.ModifyVertexZ(2, 42) {
		t.Fatal("修改高程失败")
	}
	if m.Verts[2].Z != 42 {
		t.Fatalf("高程应为42，实际%v", m.Verts[2].Z)
	}
	if m.ModifyVertexZ(2, math.NaN()) {
		t.Error("NaN高程应被拒绝")
	}
	if m.ModifyVertexZ(-1, 0) {
		t.Error("越界顶点应被拒绝")
	}
}

func TestLockTriangleBlocksEdits(t *testing.T) {
	m := squareMesh(t)
	target := m.FindTriangleAt(0.25, 0.25)
	if !m.LockTriangle(target, true) {
		t.Fatal("锁定失败")
	}
	if m.LockTriangle(target, true) {
		t.Error("重复锁定应被拒绝")
	}

	if _, created := m.InsertPoint(0.25, 0.25, 1); created {
		t.Error("向锁定三角形插点应被拒绝")
	}
	if m.FlattenTriangle(target) {
		t.Error("拉平锁定三角形应被拒绝")
	}
	if m.DeleteTriangle(target) {
		t.Error("删除锁定三角形应被拒绝")
	}
	v := m.Tris[target].V[0]
	if m.ModifyVertexZ(v, 7) {
		t.Error("修改锁定三角形顶点高程应被拒绝")
	}
	diag := diagonalOf(t, m)
	if m.SwapEdge(diag.A, diag.B) {
		t.Error("翻转锁定三角形的边应被拒绝")
	}

	if !m.LockTriangle(target, false) {
		t.Fatal("解锁失败")
	}
	if !m.FlattenTriangle(target) {
		t.Error("解锁后编辑应恢复可用")
	}
}

func TestUndoHistoryCapped(t *testing.T) {
	m := squareMesh(t)
	for i := 0; i < 60; i++ {
		if !m.ModifyVertexZ(0, float64(i+1)) {
			t.Fatalf("第%d次编辑失败", i)
		}
	}
	undone := 0
	for m.UndoEdit() {
		undone++
	}
	if undone != maxUndoDepth {
		t.Fatalf("撤销次数应为%d，实际%d", maxUndoDepth, undone)
	}
	// 最旧的10次编辑已被丢弃，高程停留在第10次的结果
	if m.Verts[0].Z != 10 {
		t.Fatalf("撤销到底后高程应为10，实际%v", m.Verts[0].Z)
	}
}

func TestRedoClearedByNewEdit(t *testing.T) {
	m := squareMesh(t)
	if !m.ModifyVertexZ(0, 10) {
		t.Fatal("编辑失败")
	}
	if !m.UndoEdit() {
		t.Fatal("撤销失败")
	}
	if !m.CanRedo() {
		t.Fatal("撤销后应可重做")
	}
	if !m.ModifyVertexZ(1, 5) {
		t.Fatal("编辑失败")
	}
	if m.CanRedo() {
		t.Error("新编辑后重做栈应清空")
	}
	if m.RedoEdit() {
		t.Error("重做应失败")
	}
}

func TestFindQueries(t *testing.T) {
	m := squareMesh(t)

	if v := m.FindVertexAt(0.01, 0.99, 0.05); v != 3 {
		t.Errorf("应命中顶点3，实际%d", v)
	}
	if v := m.FindVertexAt(0.5, 0.5, 0.01); v != -1 {
		t.Errorf("容差外不应命中顶点，实际%d", v)
	}
	if tt := m.FindTriangleAt(2, 2); tt != -1 {
		t.Errorf("网格外不应命中三角形，实际%d", tt)
	}
	if _, ok := m.FindEdgeAt(5, 5, 0.1); ok {
		t.Error("容差外不应命中边")
	}

	stats := m.GetMeshStats()
	if stats.VertexCount != 4 || stats.TriangleCount != 2 {
		t.Errorf("统计不符: %+v", stats)
	}
	if stats.MinZ != 0 || stats.MaxZ != 3 {
		t.Errorf("高程范围不符: [%v, %v]", stats.MinZ, stats.MaxZ)
	}

	px, py, pz := m.ExportMesh()
	if len(px) != 4 || len(py) != 4 || len(pz) != 4 {
		t.Errorf("导出点数不符: %d", len(px))
	}
}
