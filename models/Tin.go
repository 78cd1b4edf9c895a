package models

import "gorm.io/datatypes"

// TinRecord 三角网成果表
// MeshJson保存压实后的网格（顶点/三角形/约束边），重新载入后可继续编辑
type TinRecord struct {
	BSM             string `gorm:"type:varchar(255);primary_key"`
	Name            string `gorm:"type:varchar(255)"`
	EN              string `gorm:"type:varchar(255)"`
	SourceBSM       string `gorm:"type:varchar(255)"`
	VertexCount     int
	TriangleCount   int
	ConstrainedEdge int
	MinZ            float64
	MaxZ            float64
	SurfaceArea     float64
	Date            string         `gorm:"type:varchar(255)"`
	MeshJson        datatypes.JSON `gorm:"type:jsonb"`
}

// ContourRecord 等值线成果表，GeoJson为FeatureCollection
type ContourRecord struct {
	BSM      string `gorm:"type:varchar(255);primary_key"`
	TinBSM   string `gorm:"type:varchar(255)"`
	Name     string `gorm:"type:varchar(255)"`
	Source   string `gorm:"type:varchar(50)"` // grid / tin
	Smooth   float64
	Levels   datatypes.JSON `gorm:"type:jsonb"`
	GeoJson  []byte         `gorm:"type:bytea"`
	Date     string         `gorm:"type:varchar(255)"`
}
