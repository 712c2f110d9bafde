package describe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/fpang/product-catalog/internal/assets"
	"github.com/fpang/product-catalog/internal/catalog"
	"github.com/fpang/product-catalog/internal/metrics"
	"github.com/fpang/product-catalog/internal/parser"
	"github.com/rs/zerolog/log"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultVertexModel is used when no model is configured.
const DefaultVertexModel = "gemini-2.5-flash"

// Vertex describes images through Vertex AI.
type Vertex struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	maxEdge int
	sink    metrics.Sink
}

// NewVertex connects to Vertex AI in project/region.
func NewVertex(ctx context.Context, project, region, model string, sink metrics.Sink) (*Vertex, error) {
	if project == "" {
		return nil, fmt.Errorf("vertex project is required")
	}
	if model == "" {
		model = DefaultVertexModel
	}
	if sink == nil {
		sink = metrics.Nop{}
	}
	client, err := genai.NewClient(ctx, project, region)
	if err != nil {
		return nil, fmt.Errorf("vertex client: %w", err)
	}
	m := client.GenerativeModel(model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(assets.CatalogSystemPrompt)}}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	}
	return &Vertex{client: client, model: m, sink: sink}, nil
}

// Close releases the underlying gRPC connection.
func (v *Vertex) Close() error { return v.client.Close() }

func (v *Vertex) Describe(ctx context.Context, data []byte, mimeType string) (catalog.ProductFields, error) {
	req := buildRequest(data, mimeType, v.maxEdge)
	format := strings.TrimPrefix(req.image.MIMEType, "image/")

	start := time.Now()
	resp, err := v.model.GenerateContent(ctx, genai.ImageData(format, req.image.Data), genai.Text(req.prompt))
	elapsed := time.Since(start)
	if err != nil {
		v.sink.ProviderCall("vertex", "error", elapsed)
		return catalog.ProductFields{}, classifyVertex(err)
	}

	text := responseText(resp)
	if text == "" {
		v.sink.ProviderCall("vertex", "empty", elapsed)
		return catalog.ProductFields{}, &ProviderError{Provider: "vertex", Message: "empty response"}
	}
	v.sink.ProviderCall("vertex", "ok", elapsed)

	log.Debug().
		Dur("duration", elapsed).
		Int("response_length", len(text)).
		Msg("Vertex description received")

	return parser.Parse(text), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

// classifyVertex maps gRPC status errors onto ProviderError, using the
// HTTP code equivalents so logs read the same for both providers.
func classifyVertex(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		log.Warn().Err(err).Msg("Vertex call failed")
		return &ProviderError{Provider: "vertex", Message: err.Error(), Err: err}
	}
	pe := &ProviderError{
		Provider: "vertex",
		Code:     httpCode(st.Code()),
		Message:  st.Message(),
		Err:      err,
	}
	for _, d := range st.Details() {
		if ri, ok := d.(*errdetails.RetryInfo); ok && ri.GetRetryDelay() != nil {
			pe.RetryAfterHint, pe.HasHint = ri.GetRetryDelay().AsDuration(), true
		}
	}
	switch st.Code() {
	case codes.ResourceExhausted, codes.Unavailable:
		log.Warn().Str("code", st.Code().String()).Dur("retry_after", pe.RetryAfterHint).Msg("Vertex call throttled")
	default:
		log.Error().Str("code", st.Code().String()).Str("message", st.Message()).Msg("Vertex API error")
	}
	return pe
}

func httpCode(c codes.Code) int {
	switch c {
	case codes.OK:
		return 200
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return 400
	case codes.Unauthenticated:
		return 401
	case codes.PermissionDenied:
		return 403
	case codes.NotFound:
		return 404
	case codes.ResourceExhausted:
		return 429
	case codes.Unavailable:
		return 503
	case codes.DeadlineExceeded:
		return 504
	default:
		return 500
	}
}
