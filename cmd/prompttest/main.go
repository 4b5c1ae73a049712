package main

// prompttest runs local documents through extraction, the KYC validation
// prompt and the compliance rules without touching the inbox or the store.
//
//   go run ./cmd/prompttest -customer 98765 passport.pdf bill.png

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kyc-backend/internal/compliance"
	"kyc-backend/internal/extract"
	"kyc-backend/internal/ingest"
	"kyc-backend/internal/llm"
	openai "kyc-backend/internal/llm/openai"
	"kyc-backend/internal/mail"
	"kyc-backend/internal/shared/config"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

func main() {
	cfg := config.Load()

	customerID := flag.String("customer", "0000", "Customer id placed in the synthetic subject")
	from := flag.String("from", "customer@example.com", "Sender address")
	outPath := flag.String("out", "", "Path to write the evaluated record as JSON (optional)")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider (openai or groq)")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	flag.Parse()

	if flag.NArg() == 0 {
		exitErr("at least one document path is required")
	}

	msg, err := buildMessage(*customerID, *from, flag.Args())
	if err != nil {
		exitErr(err.Error())
	}

	client, err := buildClient(*provider, *model, cfg)
	if err != nil {
		exitErr(err.Error())
	}

	ingestor := &ingest.Ingestor{
		Extractor: extract.New(openai.NewVisionOCR(client, cfg.OCRModel)),
		LLM:       llm.NewRetrying(client),
		Evaluator: compliance.New(),
	}
	record, err := ingestor.Ingest(context.Background(), msg)
	if err != nil {
		exitErr(fmt.Sprintf("ingest: %v", err))
	}

	pretty, err := prettyJSON(record)
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}

	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
	if len(pretty) == 0 || pretty[len(pretty)-1] != '\n' {
		_, _ = os.Stdout.Write([]byte("\n"))
	}
}

func buildMessage(customerID, from string, paths []string) (mail.Message, error) {
	msg := mail.Message{
		ID:      "prompttest",
		Subject: "KYC ID: " + strings.TrimSpace(customerID),
		From:    from,
		Date:    time.Now(),
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return mail.Message{}, fmt.Errorf("read %s: %w", path, err)
		}
		name := filepath.Base(path)
		if !extract.Supported(name) {
			return mail.Message{}, fmt.Errorf("unsupported document type: %s", filepath.Ext(path))
		}
		msg.Attachments = append(msg.Attachments, mail.Attachment{
			FileName: name,
			MimeType: extract.NormalizeMimeType("", name, data),
			Data:     data,
		})
	}
	return msg, nil
}

func buildClient(provider, model string, cfg config.Config) (*openai.Client, error) {
	baseURL := cfg.LLMBaseURL
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "openai":
	case "groq":
		if baseURL == "" {
			baseURL = groqBaseURL
		}
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	return openai.NewClient(cfg.LLMAPIKey, model, baseURL)
}

func prettyJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
