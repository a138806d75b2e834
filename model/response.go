package model

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RemoveResponse 去背景成功响应
type RemoveResponse struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Image     string   `json:"image"` // PNG字节的十六进制编码
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Cached    bool     `json:"cached"`
	RequestID string   `json:"request_id,omitempty"`
	Steps     []string `json:"steps"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Status    string   `json:"status"`
	Kind      string   `json:"kind"`
	Reason    string   `json:"reason,omitempty"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id,omitempty"`
	Steps     []string `json:"steps"`
}
