package constants

import "time"

const (
	// 写入向量库的元数据固定值
	MetadataSource = "inference"
	MetadataAuthor = "admin_test"

	// Qdrant默认集合名
	DefaultCollectionName = "resume_inferences"

	// 检索接口默认返回的文档数量
	DefaultTopK = 10

	// Redis中存储原始文件MD5的Set键
	RawFileMD5SetKey = "resumes:file_md5s"
	// MD5记录默认过期时间
	DefaultMD5RecordExpire = 30 * 24 * time.Hour

	// RabbitMQ简历处理完成事件的默认路由键
	DefaultProcessedRoutingKey = "resume.processed"
)
