package llm

import _ "embed"

var (
	//go:embed prompts/kyc_validation.txt
	validationPrompt string
	//go:embed prompts/answer.txt
	answerPrompt string
)

// ValidationPrompt returns the developer prompt for KYC validation.
func ValidationPrompt() string {
	return validationPrompt
}

// AnswerPrompt returns the developer prompt for operator questions.
func AnswerPrompt() string {
	return answerPrompt
}
