package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/antinvestor/decider/internal/contract"
	"github.com/antinvestor/decider/internal/pipeline"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDirectiveCommand(t *testing.T) {
	out, err := execute(t, "[GOAL=RISKS]\n[FOLLOWUP=PRIORITIZE]\nRoll out the cache.", "directive")
	require.NoError(t, err)

	var got directiveView
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, directiveView{
		Goal:        "RISKS",
		Followup:    "PRIORITIZE",
		Followups:   []string{"MITIGATIONS", "PRIORITIZE", "ACTION_ITEMS"},
		CleanedText: "Roll out the cache.",
	}, got)
}

func TestDirectiveCommand_YAML(t *testing.T) {
	out, err := execute(t, "[GOAL=DECISION]\nPick a queue.", "directive", "-o", "yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "goal: DECISION")
	assert.Contains(t, out, "cleanedText: Pick a queue.")
	assert.Less(t, strings.Index(out, "goal:"), strings.Index(out, "cleanedText:"))
}

func TestDirectiveCommand_EmptyArtifact(t *testing.T) {
	_, err := execute(t, "[GOAL=RISKS]\n", "directive")
	require.Error(t, err)
}

func TestContractCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.md")
	require.NoError(t, os.WriteFile(path, []byte("The service exposes /users and /orders."), 0o600))

	out, err := execute(t, "", "contract", path)
	require.NoError(t, err)

	var result contract.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result.Findings)
	assert.Equal(t, len(result.Findings), result.Metadata.Statistics.Total)
	assert.Equal(t, contract.AnalysisGoal, result.Metadata.AnalysisGoal)

	text, err := execute(t, "", "contract", "--text", path)
	require.NoError(t, err)
	assert.Contains(t, text, "API Contract Analysis")
	assert.Contains(t, text, "Contract Findings (")
}

func TestOutputFormat_Unsupported(t *testing.T) {
	_, err := execute(t, "text", "directive", "-o", "xml")
	require.ErrorContains(t, err, "unsupported output format")
}

func TestAnalyzeCommand_UnknownGoal(t *testing.T) {
	_, err := execute(t, "text", "analyze", "--goal", "SECURITY")
	require.ErrorContains(t, err, "unknown goal")
}

func fakeChatServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		content := `{"notes":"looks reasonable"}`
		if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "Historian Agent") {
			content = `{"decisionSummary":"Adopt the plan","decisionRationale":"All agents concur"}`
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-1",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fakeVoyageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.6,0.8],"index":0}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzeCommand_EndToEnd(t *testing.T) {
	chat := fakeChatServer(t)
	voyage := fakeVoyageServer(t)

	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("LLM_API_BASE_URL", chat.URL)
	t.Setenv("EMBEDDING_PROVIDER", "voyage")
	t.Setenv("VOYAGE_API_KEY", "voyage-key")
	t.Setenv("VOYAGE_API_URL", voyage.URL)

	out, err := execute(t, "Expose GET /users with 200 and 404 responses.", "analyze", "--goal", "api_contract")
	require.NoError(t, err)

	var resp pipeline.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.AgentMessages, 4)
	assert.Equal(t, "analysis", resp.AgentMessages[0].AgentRole)
	assert.Equal(t, "historian", resp.AgentMessages[3].AgentRole)
	require.Len(t, resp.Decisions, 1)
	assert.Equal(t, "Adopt the plan", resp.Decisions[0].Summary)
	assert.Equal(t, "All agents concur", resp.Decisions[0].Rationale)
	require.NotNil(t, resp.Findings)
	assert.Contains(t, resp.ToolReport, "API Contract Analysis")

	out, err = execute(t, "Expose GET /users.", "analyze", "-o", "yaml")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "toolReport")
	assert.Contains(t, doc, "agentMessages")
}

func TestAnalyzeCommand_MissingAPIKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	_, err := execute(t, "text", "analyze")
	require.ErrorContains(t, err, "reasoning provider")
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("LLM_API_KEY", "from-env")
	t.Setenv("LLM_MODEL", "")

	path := filepath.Join(t.TempDir(), "decidectl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: gemini-2.0-flash
  timeout_seconds: 45
embedding:
  provider: genai
  genai_api_key: g-key
pipeline:
  similarity_limit: 3
  retry_max_attempts: 2
`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLMAPIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLMModel)
	assert.Equal(t, 45, cfg.LLMTimeoutSeconds)
	assert.Equal(t, "genai", cfg.EmbeddingProvider)
	assert.Equal(t, "g-key", cfg.GenAIAPIKey)
	assert.Equal(t, 3, cfg.SimilarityLimit)
	assert.Equal(t, 2, cfg.RetryPolicy().MaxAttempts)

	defaults, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", defaults.LLMModel)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
