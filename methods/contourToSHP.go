package methods

import (
	"fmt"
	"os"
	"path/filepath"

	shp "gitee.com/LJ_COOL/go-shp"
	"github.com/GrainArc/SurveyTIN/Tin"
)

// ConvertContoursToSHP 将等值线输出为线状shapefile，GC字段记录高程级别
func ConvertContoursToSHP(contours []Tin.ContourLine, shpfileFilePath string) error {
	fileName := filepath.Base(shpfileFilePath)
	rootName := fileName[0 : len(fileName)-len(filepath.Ext(fileName))]
	dirPath := filepath.Dir(shpfileFilePath)

	shpFile, err := shp.Create(shpfileFilePath, shp.POLYLINE)
	if err != nil {
		return fmt.Errorf("创建shapefile失败: %w", err)
	}

	// 创建CPG与PRJ文件
	createCpgFile(filepath.Join(dirPath, rootName) + ".cpg")
	createPrjFile(filepath.Join(dirPath, rootName) + ".prj")

	fields := []shp.Field{
		shp.StringField(Utf8ToGbk("GC"), 32),
		shp.StringField(Utf8ToGbk("BH"), 32),
	}
	shpFile.SetFields(fields)
	defer shpFile.Close()

	n := 0
	for _, c := range contours {
		for _, p := range c.Polylines {
			if len(p.Points) < 2 {
				continue
			}
			var points []shp.Point
			for _, pt := range p.Points {
				points = append(points, shp.Point{X: pt[0], Y: pt[1]})
			}
			NEWPL := shp.NewPolyLine([][]shp.Point{points})
			shpFile.Write(NEWPL)
			if err := shpFile.WriteAttribute(n, 0, fmt.Sprintf("%g", c.Level)); err != nil {
				fmt.Println(err.Error())
			}
			if err := shpFile.WriteAttribute(n, 1, fmt.Sprintf("%d", n+1)); err != nil {
				fmt.Println(err.Error())
			}
			n += 1
		}
	}

	return nil
}

// ConvertTinToSHP 将TIN三角网输出为面状shapefile
func ConvertTinToSHP(m *Tin.TinMesh, shpfileFilePath string) error {
	fileName := filepath.Base(shpfileFilePath)
	rootName := fileName[0 : len(fileName)-len(filepath.Ext(fileName))]
	dirPath := filepath.Dir(shpfileFilePath)

	shpFile, err := shp.Create(shpfileFilePath, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("创建shapefile失败: %w", err)
	}

	createCpgFile(filepath.Join(dirPath, rootName) + ".cpg")
	createPrjFile(filepath.Join(dirPath, rootName) + ".prj")

	fields := []shp.Field{
		shp.StringField(Utf8ToGbk("TID"), 16),
		shp.StringField(Utf8ToGbk("PJGC"), 32),
	}
	shpFile.SetFields(fields)
	defer shpFile.Close()

	n := 0
	for _, tc := range m.TriangleCoordinates() {
		points := []shp.Point{
			{X: tc[0][0], Y: tc[0][1]},
			{X: tc[1][0], Y: tc[1][1]},
			{X: tc[2][0], Y: tc[2][1]},
			{X: tc[0][0], Y: tc[0][1]},
		}
		NEWPL := shp.NewPolyLine([][]shp.Point{points})
		shpFile.Write(NEWPL)
		zmean := (tc[0][2] + tc[1][2] + tc[2][2]) / 3.0
		if err := shpFile.WriteAttribute(n, 0, fmt.Sprintf("%d", n)); err != nil {
			fmt.Println(err.Error())
		}
		if err := shpFile.WriteAttribute(n, 1, fmt.Sprintf("%.3f", zmean)); err != nil {
			fmt.Println(err.Error())
		}
		n += 1
	}

	return nil
}

func createCpgFile(filename string) error {
	return os.WriteFile(filename, []byte("GBK"), 0644)
}

func createPrjFile(prjFilePath string) error {
	prjContent := `GEOGCS["GCS_China_Geodetic_Coordinate_System_2000",DATUM["D_China_2000",SPHEROID["CGCS2000",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
	return os.WriteFile(prjFilePath, []byte(prjContent), 0644)
}
