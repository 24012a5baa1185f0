package research

import (
	"fmt"
	"os"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/prompt"
)

// Prompt template names. Files named "<name>.tmpl" in Config.PromptDir
// replace the defaults.
const (
	PromptQueryWriter   = "query_writer"
	PromptWebSearcher   = "web_searcher"
	PromptReflection    = "reflection"
	PromptAnswer        = "answer"
	PromptToolExhausted = "tool_exhausted"
)

const queryWriterPrompt = `Your goal is to generate sophisticated and diverse web search queries. These queries are intended for an advanced automated web research tool capable of analyzing complex results, following links, and synthesizing information.

Instructions:
- Always prefer a single search query, only add another query if the original question requests multiple aspects or elements and one query is not enough.
- Each query should focus on one specific aspect of the original question.
- Don't produce more than {{.NumberQueries}} queries.
- Queries should be diverse, if the topic is broad, generate more than 1 query.
- Don't generate multiple similar queries, 1 is enough.
- Query should ensure that the most current information is gathered. The current date is {{.CurrentDate}}.

Format:
- Format your response as a JSON object with ALL two of these exact keys:
   - "rationale": Brief explanation of why these queries are relevant
   - "query": A list of search queries

Example:

Topic: What revenue grew more last year apple stock or the number of people buying an iphone
` + "```json" + `
{
    "rationale": "To answer this comparative growth question accurately, we need specific data points on Apple's stock performance and iPhone sales metrics.",
    "query": ["Apple total revenue growth fiscal year 2024", "iPhone unit sales growth fiscal year 2024", "Apple stock price growth fiscal year 2024"]
}
` + "```" + `

Context: {{.Topic}}`

const webSearcherPrompt = `Conduct targeted searches to gather the most recent, credible information on "{{.Topic}}" and synthesize it into a verifiable text artifact.

Instructions:
- Query should ensure that the most current information is gathered. The current date is {{.CurrentDate}}.
- Use the available tools as often as needed; conduct multiple, diverse searches to gather comprehensive information.
- Consolidate key findings while meticulously tracking the source(s) for each specific piece of information.
- Tool results list their sources as markdown links with short reference URLs. Keep those links next to the facts they support; never invent new ones.
- The output should be a well-written summary or report based on your search findings.
- Only include the information found in the search results, don't make up any information.

Research Topic:
{{.Topic}}`

const reflectionPrompt = `You are an expert research assistant analyzing summaries about "{{.Topic}}".

Instructions:
- Identify knowledge gaps or areas that need deeper exploration and generate a follow-up query. (1 or multiple).
- If provided summaries are sufficient to answer the user's question, don't generate a follow-up query.
- If there is a knowledge gap, generate a follow-up query that would help expand your understanding.
- Focus on technical details, implementation specifics, or emerging trends that weren't fully covered.
- The current date is {{.CurrentDate}}.

Requirements:
- Ensure the follow-up query is self-contained and includes necessary context for web search.

Output Format:
- Format your response as a JSON object with these exact keys:
   - "is_sufficient": true or false
   - "knowledge_gap": Describe what information is missing or needs clarification
   - "follow_up_queries": Write a specific question to address this gap

Example:
` + "```json" + `
{
    "is_sufficient": false,
    "knowledge_gap": "The summary lacks information about performance metrics and benchmarks",
    "follow_up_queries": ["What are typical performance benchmarks and metrics used to evaluate [specific technology]?"]
}
` + "```" + `

Reflect carefully on the Summaries to identify knowledge gaps and produce a follow-up query. Then, produce your output following this JSON format:

Summaries:
{{.Summaries}}`

const answerPrompt = `Generate a high-quality answer to the user's question based on the provided summaries.

Instructions:
- The current date is {{.CurrentDate}}.
- You are the final step of a multi-step research process, don't mention that you are the final step.
- You have access to all the information gathered from the previous steps.
- You have access to the user's question.
- Generate a high-quality answer to the user's question based on the provided summaries and the user's question.
- Include the sources you used from the Summaries in the answer correctly, use markdown format (e.g. [apnews]({{.ExampleRef}})). THIS IS A MUST.

User Context:
- {{.Topic}}

Summaries:
{{.Summaries}}`

const toolExhaustedPrompt = `You have reached the limit of tool calls for this search. Do not request more tools. Write the summary now using only the information gathered so far, keeping the source links you were given.`

func newPromptManager(dir string) (*prompt.Manager, error) {
	m := prompt.NewManager()
	defaults := map[string]string{
		PromptQueryWriter:   queryWriterPrompt,
		PromptWebSearcher:   webSearcherPrompt,
		PromptReflection:    reflectionPrompt,
		PromptAnswer:        answerPrompt,
		PromptToolExhausted: toolExhaustedPrompt,
	}
	for name, content := range defaults {
		if err := m.RegisterString(name, content); err != nil {
			return nil, err
		}
	}
	if dir != "" {
		if err := m.LoadFS(os.DirFS(dir), "."); err != nil {
			return nil, fmt.Errorf("load prompts from %s: %w", dir, err)
		}
	}
	return m, nil
}
