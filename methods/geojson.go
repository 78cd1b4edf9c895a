package methods

import (
	"github.com/GrainArc/SurveyTIN/Tin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// TinToFeatureCollection 将TIN网格导出为面要素集
// 每个活三角形一个要素，属性带三角形索引、平均高程和锁定状态
func TinToFeatureCollection(m *Tin.TinMesh) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, ti := range m.AliveTriangleIndexes() {
		tri := m.Tris[ti]
		ring := make(orb.Ring, 0, 4)
		zsum := 0.0
		for k := 0; k < 3; k++ {
			v := m.Verts[tri.V[k]]
			ring = append(ring, orb.Point{v.X, v.Y})
			zsum += v.Z
		}
		ring = append(ring, ring[0])

		feature := geojson.NewFeature(orb.Polygon{ring})
		feature.Properties["tid"] = ti
		feature.Properties["z_mean"] = zsum / 3.0
		feature.Properties["locked"] = tri.Locked
		fc.Append(feature)
	}
	return fc
}

// BreaklinesToFeatureCollection 导出约束边（断裂线）为线要素集
func BreaklinesToFeatureCollection(m *Tin.TinMesh) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for key := range m.Constrained {
		coords, ok := m.EdgeCoordinates(key)
		if !ok {
			continue
		}
		line := orb.LineString{
			{coords[0][0], coords[0][1]},
			{coords[1][0], coords[1][1]},
		}
		feature := geojson.NewFeature(line)
		feature.Properties["v0"] = key.A
		feature.Properties["v1"] = key.B
		fc.Append(feature)
	}
	return fc
}

// ContoursToFeatureCollection 将等值线导出为线要素集，属性带高程级别
func ContoursToFeatureCollection(contours []Tin.ContourLine) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range contours {
		for _, p := range c.Polylines {
			line := make(orb.LineString, 0, len(p.Points))
			for _, pt := range p.Points {
				line = append(line, orb.Point{pt[0], pt[1]})
			}
			if len(line) < 2 {
				continue
			}
			feature := geojson.NewFeature(line)
			feature.Properties["level"] = c.Level
			feature.Properties["closed"] = p.Closed
			fc.Append(feature)
		}
	}
	return fc
}

// FeatureCollectionToContours 从线要素集还原等值线，按level属性归组
func FeatureCollectionToContours(fc *geojson.FeatureCollection) []Tin.ContourLine {
	byLevel := make(map[float64]int)
	var contours []Tin.ContourLine
	for _, feature := range fc.Features {
		line, ok := feature.Geometry.(orb.LineString)
		if !ok || len(line) < 2 {
			continue
		}
		level, _ := feature.Properties["level"].(float64)
		closed, _ := feature.Properties["closed"].(bool)

		p := Tin.Polyline{Closed: closed}
		for _, pt := range line {
			p.Points = append(p.Points, [2]float64{pt[0], pt[1]})
		}
		idx, exists := byLevel[level]
		if !exists {
			idx = len(contours)
			byLevel[level] = idx
			contours = append(contours, Tin.ContourLine{Level: level})
		}
		contours[idx].Polylines = append(contours[idx].Polylines, p)
	}
	return contours
}

// PointsToFeatureCollection 将测量点导出为点要素集
func PointsToFeatureCollection(points []Tin.Point3D) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		feature := geojson.NewFeature(orb.Point{p.X, p.Y})
		feature.Properties["pid"] = p.ID
		feature.Properties["z"] = p.Z
		fc.Append(feature)
	}
	return fc
}
