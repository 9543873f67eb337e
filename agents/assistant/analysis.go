package assistant

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ScriptAnalysis is the structured result of analyzing a PowerShell
// script.
type ScriptAnalysis struct {
	Summary                string   `json:"summary"`
	Purpose                string   `json:"purpose"`
	ScriptType             string   `json:"script_type"`
	QualityScore           int      `json:"quality_score"`
	SecurityConcerns       []string `json:"security_concerns"`
	PotentialRisks         []string `json:"potential_risks"`
	RequiredModules        []string `json:"required_modules"`
	CmdletsUsed            []string `json:"cmdlets_used"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
}

// AnalysisSystemPrompt frames the analysis persona. The reply must be
// pure JSON so ParseAnalysis can decode it.
const AnalysisSystemPrompt = `You are a PowerShell script analysis expert. Provide detailed, accurate analysis in JSON format.`

// AnalysisPrompt builds the user message asking for a structured
// analysis of a script.
func AnalysisPrompt(scriptContent string) string {
	return fmt.Sprintf(`Analyze the following PowerShell script and provide a comprehensive analysis in JSON format.

PowerShell Script:
`+"```powershell\n%s\n```"+`

Provide the analysis with the following structure:
{
    "summary": "Brief summary of what the script does",
    "purpose": "Main purpose of the script",
    "script_type": "Type of script (e.g., System Administration, Data Processing, etc.)",
    "quality_score": 1-10,
    "security_concerns": ["List of security concerns"],
    "potential_risks": ["List of potential risks"],
    "required_modules": ["List of required PowerShell modules"],
    "cmdlets_used": ["List of cmdlets used"],
    "improvement_suggestions": ["List of improvement suggestions"]
}

Provide only the JSON response, no additional text.`, scriptContent)
}

// ParseAnalysis decodes a model reply into a ScriptAnalysis. Replies
// wrapped in markdown fences or surrounded by prose are tolerated: the
// outermost JSON object is extracted before decoding.
func ParseAnalysis(reply string) (*ScriptAnalysis, error) {
	raw := extractJSONObject(reply)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in analysis reply")
	}

	var analysis ScriptAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &analysis, nil
}

func extractJSONObject(reply string) string {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return ""
	}
	return reply[start : end+1]
}
