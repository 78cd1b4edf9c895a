package Tin

// Point3D 表示一个三维测量点
type Point3D struct {
	X, Y, Z float64
	ID      int
}

// Point2D 表示一个二维点
type Point2D struct {
	X, Y float64
	ID   int
}

// Vertex TIN网格顶点，TriangleRef记录一个关联三角形索引，作为局部游走的起点
type Vertex struct {
	X, Y, Z     float64
	TriangleRef int32
}

// Triangle TIN网格三角形
// V为三个顶点索引（逆时针），N[k]为顶点k对边上的邻接三角形索引，-1表示网格边界
// Alive=false表示墓碑三角形，索引保留以保证撤销/重做和外部引用的稳定性
type Triangle struct {
	V      [3]int32
	N      [3]int32
	Locked bool
	Alive  bool
}

// EdgeKey 规范化边键，恒有A < B
type EdgeKey struct {
	A, B int32
}

// MakeEdgeKey 生成规范化边键
func MakeEdgeKey(a, b int32) EdgeKey {
	if a > b {
		a, b = b, a
	}
	return EdgeKey{A: a, B: b}
}

// TIN 三角剖分结果，由DelaunayTriangulation产出，经BuildMesh转为可编辑网格
type TIN struct {
	Vertices    []Vertex
	Triangles   []Triangle
	Constrained map[EdgeKey]bool
}

// MeshStats 网格统计信息
type MeshStats struct {
	VertexCount     int     `json:"vertex_count"`
	TriangleCount   int     `json:"triangle_count"`
	DeadTriangles   int     `json:"dead_triangles"`
	ConstrainedEdge int     `json:"constrained_edges"`
	LockedTriangles int     `json:"locked_triangles"`
	MinZ            float64 `json:"min_z"`
	MaxZ            float64 `json:"max_z"`
	MeanZ           float64 `json:"mean_z"`
	SurfaceArea     float64 `json:"surface_area"`
}

// Polyline 等值线折线
type Polyline struct {
	Points [][2]float64 `json:"points"`
	Closed bool         `json:"closed"`
}

// ContourLine 单个高程级别的等值线集合
type ContourLine struct {
	Level     float64    `json:"level"`
	Polylines []Polyline `json:"polylines"`
}
