package models

import "gorm.io/datatypes"

// TinEditLog 网格编辑流水，Params保存操作参数便于追溯
type TinEditLog struct {
	ID     int64  `gorm:"primary_key"`
	TinBSM string `gorm:"type:varchar(255)"`
	MAC    string `gorm:"type:varchar(255)"`
	Op     string `gorm:"type:varchar(50)"`
	Params datatypes.JSON `gorm:"type:jsonb"`
	Date   string `gorm:"type:varchar(255)"`
}
