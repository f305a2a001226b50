package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// OpenAIEmbedder calls the embeddings endpoint of OpenAI or of an Azure
// OpenAI deployment. For Azure the model name is the deployment name.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	name   string
}

func NewOpenAIEmbedder(apiKey, model string, opts ...option.RequestOption) *OpenAIEmbedder {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(2)}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAIEmbedder{client: &client, model: model, name: "openai"}
}

func NewAzureOpenAIEmbedder(endpoint, apiVersion, apiKey, deployment string, opts ...option.RequestOption) *OpenAIEmbedder {
	opts = append([]option.RequestOption{
		azure.WithEndpoint(endpoint, apiVersion),
		azure.WithAPIKey(apiKey),
		option.WithMaxRetries(2),
	}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAIEmbedder{client: &client, model: deployment, name: "azure-openai"}
}

func (e *OpenAIEmbedder) Name() string { return e.name }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string, dimensions int) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	}
	if dimensions > 0 && supportsCustomDimensions(e.model) {
		params.Dimensions = openai.Int(int64(dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}

	values := resp.Data[0].Embedding
	vec := make([]float32, len(values))
	for i, v := range values {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (e *OpenAIEmbedder) Close() error { return nil }

// supportsCustomDimensions reports whether the model accepts the dimensions
// parameter. Only the ada generation has a fixed output size.
func supportsCustomDimensions(model string) bool {
	return !strings.Contains(strings.ToLower(model), "ada")
}
