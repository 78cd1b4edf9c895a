package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/GrainArc/SurveyTIN/Tin"
	"github.com/GrainArc/SurveyTIN/models"
	"gorm.io/gorm"
)

// MeshDocument 网格的持久化形态
// 约束边转为索引对数组，结构体键的map无法直接序列化为JSON
type MeshDocument struct {
	Vertices    []Tin.Vertex   `json:"vertices"`
	Triangles   []Tin.Triangle `json:"triangles"`
	Constrained [][2]int32     `json:"constrained"`
}

// EncodeMesh 将网格编码为JSON字节流
// 墓碑三角形一并保留，邻接与约束边中的下标在还原后仍然有效
func EncodeMesh(m *Tin.TinMesh) ([]byte, error) {
	doc := MeshDocument{
		Vertices:  m.Verts,
		Triangles: m.Tris,
	}
	for key := range m.Constrained {
		doc.Constrained = append(doc.Constrained, [2]int32{key.A, key.B})
	}
	return json.Marshal(doc)
}

// DecodeMesh 从JSON字节流还原可编辑网格
func DecodeMesh(data []byte) (*Tin.TinMesh, error) {
	var doc MeshDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("网格数据解析失败: %w", err)
	}
	tin := &Tin.TIN{
		Vertices:    doc.Vertices,
		Triangles:   doc.Triangles,
		Constrained: make(map[Tin.EdgeKey]bool),
	}
	for _, c := range doc.Constrained {
		tin.Constrained[Tin.MakeEdgeKey(c[0], c[1])] = true
	}
	return Tin.BuildMesh(tin), nil
}

// SaveTinRecord 将网格与统计信息写入成果表，已存在则更新
func SaveTinRecord(db *gorm.DB, bsm, name, en, sourceBSM string, m *Tin.TinMesh) (*models.TinRecord, error) {
	meshJson, err := EncodeMesh(m)
	if err != nil {
		return nil, err
	}
	stats := m.GetMeshStats()

	record := models.TinRecord{
		BSM:             bsm,
		Name:            name,
		EN:              en,
		SourceBSM:       sourceBSM,
		VertexCount:     stats.VertexCount,
		TriangleCount:   stats.TriangleCount,
		ConstrainedEdge: stats.ConstrainedEdge,
		MinZ:            stats.MinZ,
		MaxZ:            stats.MaxZ,
		SurfaceArea:     stats.SurfaceArea,
		Date:            time.Now().Format("2006-01-02 15:04:05"),
		MeshJson:        meshJson,
	}

	var existing models.TinRecord
	if db.Where("bsm = ?", bsm).First(&existing).Error == nil {
		if err := db.Model(&models.TinRecord{}).Where("bsm = ?", bsm).Updates(&record).Error; err != nil {
			return nil, err
		}
	} else {
		if err := db.Create(&record).Error; err != nil {
			return nil, err
		}
	}
	return &record, nil
}

// LoadMesh 按标识码载入网格
func LoadMesh(db *gorm.DB, bsm string) (*Tin.TinMesh, *models.TinRecord, error) {
	var record models.TinRecord
	if err := db.Where("bsm = ?", bsm).First(&record).Error; err != nil {
		return nil, nil, fmt.Errorf("TIN成果不存在: %s", bsm)
	}
	m, err := DecodeMesh(record.MeshJson)
	if err != nil {
		return nil, nil, err
	}
	return m, &record, nil
}
