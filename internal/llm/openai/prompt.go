package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"kyc-backend/internal/llm"
)

const (
	systemPromptValidate = "You are a KYC compliance expert. Always respond with valid JSON only. No markdown. Never omit keys."
	systemPromptFixJSON  = "You are a JSON repair tool. Return only valid JSON that matches the schema exactly."
)

func buildValidationPrompt(input llm.ValidationInput) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: systemPromptValidate},
		{Role: "system", Content: developerPrompt(input)},
		{Role: "user", Content: buildUserPrompt(input)},
	}
}

func buildFixPrompt(input llm.ValidationInput, raw string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: systemPromptFixJSON},
		{Role: "system", Content: developerPrompt(input)},
		{Role: "user", Content: fmt.Sprintf("Fix this JSON to match the schema exactly. Output JSON only:\n%s", raw)},
	}
}

func buildAnswerPrompt(question string, data json.RawMessage) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: llm.AnswerPrompt()},
		{Role: "user", Content: fmt.Sprintf("Data:\n%s\n\nQuestion: %s", string(data), question)},
	}
}

func developerPrompt(input llm.ValidationInput) string {
	today := input.Today
	if strings.TrimSpace(today) == "" {
		today = "unknown"
	}
	return strings.NewReplacer("{{TODAY}}", today).Replace(llm.ValidationPrompt())
}

func buildUserPrompt(input llm.ValidationInput) string {
	docs := input.Documents
	if docs == nil {
		docs = []llm.DocumentText{}
	}
	payload, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		payload = []byte("[]")
	}
	return fmt.Sprintf("Customer ID: %s\n\nDocuments Text:\n%s", input.CustomerID, string(payload))
}
