package lambdaboot

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSM struct {
	calls []string
	value string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls = append(f.calls, aws.ToString(in.Name))
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(f.value)}}, nil
}

func TestLoadGeminiKey_FromSSM(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SSM_API_KEY_PARAM", "/custom/key")
	f := &fakeSSM{value: "secret"}

	if got := LoadGeminiKey(context.Background(), f); got != "/custom/key" {
		t.Errorf("param = %q", got)
	}
	if len(f.calls) != 1 || f.calls[0] != "/custom/key" {
		t.Errorf("calls = %v", f.calls)
	}
	if os.Getenv("GEMINI_API_KEY") != "secret" {
		t.Error("GEMINI_API_KEY not exported")
	}
}

func TestLoadGeminiKey_EnvWins(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "already")
	f := &fakeSSM{}
	if got := LoadGeminiKey(context.Background(), f); got != "" || len(f.calls) != 0 {
		t.Errorf("SSM consulted despite env key: %q %v", got, f.calls)
	}
}
