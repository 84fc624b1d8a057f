package dtos

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type PromptRequest struct {
	PromptName    string `json:"prompt_name" binding:"required"`
	PromptContent string `json:"prompt_content" binding:"required"`
}
