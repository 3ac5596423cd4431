package types

// PersonalInfo 简历中的个人信息
type PersonalInfo struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Email   string   `json:"email"`
	Phone   string   `json:"phone,omitempty"`
	Awards  []string `json:"awards"`
}

// Education 单条教育经历
type Education struct {
	School         string `json:"school"`
	Degree         string `json:"degree"`
	GraduationYear string `json:"graduation_year"`
	GPA            string `json:"gpa,omitempty"`
}

// WorkExperience 单条工作经历
type WorkExperience struct {
	Company        string `json:"company"`
	Position       string `json:"position"`
	Duration       string `json:"duration"`
	SkillsInvolved string `json:"skills_involved"`
}

// Project 单条项目经历
type Project struct {
	Name             string `json:"name"`
	Duration         string `json:"duration"`
	Role             string `json:"role"`
	TechnologiesUsed string `json:"technologies_used"`
	Description      string `json:"description"`
	Achievements     string `json:"achievements"`
	TeamSize         string `json:"team_size"`
	Responsibilities string `json:"responsibilities"`
}

// ProjectsAndSkills 项目经历与技能
// 字段名沿用模型输出的键名
type ProjectsAndSkills struct {
	ProjectExperience []Project `json:"Project Experience"`
	Skills            []string  `json:"Skills"`
}

// StructuredExtraction 四组字段提取的聚合结果
// 四个键缺一不可，是推断生成和入库的输入
type StructuredExtraction struct {
	PersonalInformation PersonalInfo      `json:"personal_information"`
	Education           []Education       `json:"education"`
	WorkExperience      []WorkExperience  `json:"work_experience"`
	ProjectsAndSkills   ProjectsAndSkills `json:"projects_and_skills"`
}

// Inference 模型生成的招聘视角叙述性评价
type Inference struct {
	Inference string `json:"inference"`
}

// InferenceMetadata 入库推断记录携带的元数据
type InferenceMetadata struct {
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"` // ISO-8601
	Author    string `json:"author"`
}

// InferenceRecord 向量库中的一条候选人推断记录
// ID为候选人姓名，同名再次上传时整条覆盖
type InferenceRecord struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata InferenceMetadata `json:"metadata"`
}

// ScoredDocument 检索返回的单条匹配结果
type ScoredDocument struct {
	Score         float32                `json:"score"`
	CandidateName string                 `json:"candidate_name"`
	Inference     string                 `json:"inference"`
	Metadata      map[string]interface{} `json:"metadata"`
}
