package models

// SurveyBatch 一次外业测量上传的点集
type SurveyBatch struct {
	BSM        string `gorm:"type:varchar(255);primary_key"`
	Name       string `gorm:"type:varchar(255)"`
	EN         string `gorm:"type:varchar(255)"`
	MAC        string `gorm:"type:varchar(255)"`
	PointCount int
	MinZ       float64
	MaxZ       float64
	Date       string `gorm:"type:varchar(255)"`
}

type SurveyPoint struct {
	ID  int64  `gorm:"primary_key"`
	BSM string `gorm:"type:varchar(255)"`
	PID int
	X   float64
	Y   float64
	Z   float64
}

// SurveyBreakline 测量时采集的断裂线，以批次内点号对表示
type SurveyBreakline struct {
	ID       int64  `gorm:"primary_key"`
	BSM      string `gorm:"type:varchar(255)"`
	StartPID int
	EndPID   int
}
