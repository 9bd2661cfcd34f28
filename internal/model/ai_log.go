package model

// AICallLog Gemini 调用记录
type AICallLog struct {
	BaseModel

	// 商品标题
	Subject string `gorm:"size:255" json:"subject"`

	// 调用信息
	Purpose   string `gorm:"size:32;index" json:"purpose"`
	ModelName string `gorm:"size:64" json:"model_name"`

	// 用量统计
	InputTokens  int `gorm:"default:0" json:"input_tokens"`
	OutputTokens int `gorm:"default:0" json:"output_tokens"`

	DurationMs int64 `json:"duration_ms"`

	// 状态
	Status   string `gorm:"size:32;index;default:success" json:"status"`
	ErrorMsg string `gorm:"size:1024" json:"error_msg,omitempty"`
}

func (AICallLog) TableName() string {
	return "ai_call_logs"
}

// ==================== 调用用途常量 ====================

const (
	AIPurposeDescription = "description"
	AIPurposeThreads     = "threads"
)

// ==================== 状态常量 ====================

const (
	AICallStatusSuccess = "success"
	AICallStatusFailed  = "failed"
)
