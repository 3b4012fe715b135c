package request

// SendMessageRequest represents a chat message request
type SendMessageRequest struct {
	Text string `json:"text" binding:"required,max=2000"`
}

// SendReactionRequest represents an emoji reaction request
type SendReactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=32"`
}

// MessageWindowRequest selects how many recent messages to return
type MessageWindowRequest struct {
	Limit int `form:"limit,default=0" binding:"min=0,max=100"`
}
