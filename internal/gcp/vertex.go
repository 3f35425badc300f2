package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/tenderflow/internal/inference"
)

// VertexBackend answers image and text prompts with a Gemini model.
type VertexBackend struct {
	imageModel *genai.GenerativeModel
	textModel  *genai.GenerativeModel
	baseClient *genai.Client
}

func NewVertexBackend(ctx context.Context, projectID, region, modelName string) (*VertexBackend, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexBackend: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	imageModel := baseClient.GenerativeModel(modelName)
	imageModel.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.3),
		MaxOutputTokens: genai.Ptr[int32](4096),
	}

	textModel := baseClient.GenerativeModel(modelName)
	textModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(inference.TenderConsultantSystemPrompt)},
	}
	textModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	return &VertexBackend{imageModel: imageModel, textModel: textModel, baseClient: baseClient}, nil
}

func (v *VertexBackend) InferImage(ctx context.Context, jpeg []byte, instruction string) (string, error) {
	resp, err := v.imageModel.GenerateContent(ctx, genai.ImageData("jpeg", jpeg), genai.Text(instruction))
	if err != nil {
		return "", fmt.Errorf("vertex image request failed: %w", err)
	}
	return responseText(resp)
}

func (v *VertexBackend) InferText(ctx context.Context, prompt string) (string, error) {
	resp, err := v.textModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("vertex text request failed: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	return inference.CleanOutput(text), nil
}

func (v *VertexBackend) Close() error {
	if v.baseClient != nil {
		return v.baseClient.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", inference.ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", inference.ErrEmptyResponse
	}
	return b.String(), nil
}
