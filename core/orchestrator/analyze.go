package orchestrator

import (
	"context"
	"strings"

	"github.com/adalundhe/scriptorium/agents/assistant"
	"github.com/adalundhe/scriptorium/core/errors"
	"github.com/adalundhe/scriptorium/core/providers"
)

// AnalyzeScript runs a one-shot structured analysis of a PowerShell
// script. Analysis is stateless: no session is created or touched.
func (c *Coordinator) AnalyzeScript(ctx context.Context, scriptContent string) (*assistant.ScriptAnalysis, error) {
	if strings.TrimSpace(scriptContent) == "" {
		return nil, errors.New(errors.ClassInvalidRequest, "script content is empty", nil)
	}

	req := &providers.InvokeRequest{
		SystemPrompt: assistant.AnalysisSystemPrompt,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: assistant.AnalysisPrompt(scriptContent)},
		},
		// Analysis never continues a thread; each script stands alone.
		FreshThread: true,
	}

	var result *providers.AgentResult
	invokeErr := c.retry.Execute(ctx, func() error {
		var err error
		result, err = c.provider.Invoke(ctx, req)
		return err
	})
	if invokeErr != nil {
		return nil, invokeErr
	}

	analysis, err := assistant.ParseAnalysis(result.Text)
	if err != nil {
		return nil, errors.New(errors.ClassProviderUnavailable, "analysis reply was not parseable", err)
	}
	return analysis, nil
}
