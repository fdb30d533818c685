package commentary

import (
	"fmt"
	"strings"
)

// SystemPrompt is sent with every request
const SystemPrompt = "You are a professional financial analyst. Analyze the provided company data and answer questions about their characteristics, composition, and overall trends. Be concise but thorough in your analysis. Focus on providing actionable insights and clear patterns in the data."

// Preset questions
const (
	QuestionSectorSummary = "Analyze the sector composition of these companies and identify any notable trends or patterns."
	QuestionRationale     = "Analyze the rationales provided for these companies. What are the common themes and unique aspects?"
)

// Presets maps preset names to questions
var Presets = map[string]string{
	"sector_summary": QuestionSectorSummary,
	"rationale":      QuestionRationale,
}

const (
	chunkHeader = "Here are the companies and their details:\n\n"
	separator   = "--------------------------------------------------" // 50
)

func chunkPrompt(index, total int, chunkText, question string) string {
	return fmt.Sprintf("Here is chunk %d of %d of company data:\n\n%s\n\nQuestion: %s", index, total, chunkText, question)
}

func summaryPrompt(responses []string) string {
	return fmt.Sprintf("Here are the analyses of different chunks of company data:\n\n%s\n\nPlease provide a concise summary of the key findings across all chunks.",
		strings.Join(responses, "\n\n"))
}
