package models

import (
	"time"

	"gorm.io/datatypes"
)

// ResumeUpload 上传审计表，每次成功处理的上传写入一行
// 候选人向量在Qdrant中按姓名覆盖，审计表保留全部历史
type ResumeUpload struct {
	UploadUUID       string         `gorm:"type:char(36);primaryKey"`
	CandidateName    string         `gorm:"type:varchar(255);index:idx_resume_uploads_candidate_name"`
	OriginalFilename string         `gorm:"type:varchar(255)"`
	FileMD5          string         `gorm:"type:char(32);index:idx_resume_uploads_file_md5"`
	DuplicateFile    bool           `gorm:"default:false"` // 该MD5此前是否出现过
	ArchiveObjectKey string         `gorm:"type:varchar(1024)"`
	ExtractedInfo    datatypes.JSON `gorm:"type:json"` // 四组结构化提取结果
	InferenceText    string         `gorm:"type:text"`
	PointID          string         `gorm:"type:char(36);index:idx_resume_uploads_point_id"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (ResumeUpload) TableName() string {
	return "resume_uploads"
}
