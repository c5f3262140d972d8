package models

// Attachment is a named URL passed through to the generation prompt.
type Attachment struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required"`
}

// DeployRequest is the body of POST /deploy-requests.
type DeployRequest struct {
	Email             string       `json:"email" validate:"required"`
	Secret            string       `json:"secret"`
	Task              string       `json:"task" validate:"required,max=255"`
	Round             int          `json:"round"`
	Nonce             string       `json:"nonce"`
	Brief             string       `json:"brief"`
	Checks            []string     `json:"checks"`
	EvaluationURL     string       `json:"evaluation_url" validate:"omitempty,url"`
	Attachments       []Attachment `json:"attachments" validate:"dive"`
	TargetRepo        string       `json:"target_repo"`
	TargetGitHubToken string       `json:"target_github_token"`
}

// Credentials is the body of the register and login endpoints.
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password"`
}
