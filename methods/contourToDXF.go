package methods

import (
	"fmt"
	"log"

	"github.com/GrainArc/SurveyTIN/Tin"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/color"
	"github.com/yofu/dxf/entity"
)

// ConvertContoursToDXF 将等值线输出为DXF图形
// 每个高程级别单独一个图层，便于CAD中按级别控制显隐
func ConvertContoursToDXF(contours []Tin.ContourLine, outputFilename string) error {
	d := dxf.NewDrawing()
	d.Header().LtScale = 1.0

	for _, c := range contours {
		layerName := fmt.Sprintf("DGX_%g", c.Level)
		d.AddLayer(layerName, color.Green, dxf.DefaultLineType, true)
		d.ChangeLayer(layerName)

		for _, p := range c.Polylines {
			if len(p.Points) < 2 {
				continue
			}
			lwp := entity.NewLwPolyline(len(p.Points))
			for j, pt := range p.Points {
				lwp.Vertices[j] = []float64{pt[0], pt[1]}
			}
			d.AddEntity(lwp)
		}
	}

	err := d.SaveAs(outputFilename)
	if err != nil {
		log.Println(err)
	}
	return err
}

// ConvertTinToDXF 将TIN三角网输出为DXF图形，每个三角形一条闭合多段线
func ConvertTinToDXF(m *Tin.TinMesh, outputFilename string) error {
	d := dxf.NewDrawing()
	d.Header().LtScale = 1.0

	layerName := "TIN"
	d.AddLayer(layerName, color.Red, dxf.DefaultLineType, true)
	d.ChangeLayer(layerName)

	for _, tc := range m.TriangleCoordinates() {
		// 首顶点重复一次使多段线闭合
		lwp := entity.NewLwPolyline(4)
		for k := 0; k < 3; k++ {
			lwp.Vertices[k] = []float64{tc[k][0], tc[k][1]}
		}
		lwp.Vertices[3] = []float64{tc[0][0], tc[0][1]}
		d.AddEntity(lwp)
	}

	err := d.SaveAs(outputFilename)
	if err != nil {
		log.Println(err)
	}
	return err
}
