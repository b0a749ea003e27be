// Package dto 提供 HTTP 层数据传输对象
package dto

// EnqueueDetectionRequest 创建检测任务请求
type EnqueueDetectionRequest struct {
	MediaURLs []string `json:"media_urls" binding:"required,min=1,max=20,dive,url"`
	Prompt    string   `json:"prompt" binding:"omitempty,max=512"`
}
