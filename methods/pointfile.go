package methods

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/GrainArc/SurveyTIN/Tin"
)

// ParsePointFile 解析外业测量点文件
// 兼容两种行格式（逗号/空白分隔）：
//
//	x,y,z
//	点号,编码,x,y,z （CASS展点格式，编码可为空）
func ParsePointFile(path string) ([]Tin.Point3D, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开点文件失败: %w", err)
	}
	defer file.Close()

	var points []Tin.Point3D
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if !utf8.ValidString(line) {
			// 旧版测图软件导出的点文件多为GBK编码
			if decoded, err := GbkToUtf8(line); err == nil {
				line = strings.TrimSpace(decoded)
			}
		}
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		fields := splitPointLine(line)
		var xs, ys, zs string
		switch len(fields) {
		case 3:
			xs, ys, zs = fields[0], fields[1], fields[2]
		case 4:
			// 点号,x,y,z
			xs, ys, zs = fields[1], fields[2], fields[3]
		case 5:
			// 点号,编码,x,y,z
			xs, ys, zs = fields[2], fields[3], fields[4]
		default:
			return nil, fmt.Errorf("第%d行格式错误: %q", lineNo, line)
		}

		x, err1 := strconv.ParseFloat(xs, 64)
		y, err2 := strconv.ParseFloat(ys, 64)
		z, err3 := strconv.ParseFloat(zs, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("第%d行坐标解析失败: %q", lineNo, line)
		}
		points = append(points, Tin.Point3D{X: x, Y: y, Z: z, ID: len(points)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("点文件为空")
	}
	return points, nil
}

func splitPointLine(line string) []string {
	var raw []string
	if strings.Contains(line, ",") {
		raw = strings.Split(line, ",")
	} else {
		raw = strings.Fields(line)
	}
	fields := make([]string, 0, len(raw))
	for _, f := range raw {
		fields = append(fields, strings.TrimSpace(f))
	}
	// 保留空编码列，但去掉行尾空列
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}
