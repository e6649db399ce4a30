package rag

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SystemPrompt renders the retrieval context into the instruction block
// embedded in the assistant's system prompt. With no context, the model is
// told to say so rather than improvise an answer.
func SystemPrompt(contextText string) string {
	if contextText == "" {
		return `You do not have access to any uploaded documents for this conversation yet.
Politely inform the user that they need to upload documents first before you can answer questions about them.`
	}

	return `You have access to the following relevant information from the user's uploaded documents:

` + contextText + `

IMPORTANT INSTRUCTIONS:
1. Answer the user's question based PRIMARILY on the information provided above
2. If the documents don't contain enough information to answer fully, say so
3. Always cite your sources using the format: [Source X]
4. If multiple sources support your answer, cite all of them: [Sources 1, 2]
5. Be specific and quote relevant passages when appropriate
6. If the user's question is not related to the documents, politely redirect them to ask about the uploaded materials
7. Never make up information that isn't in the provided context

Remember: Your goal is to help users understand their documents through accurate, cited responses.`
}

var citationPattern = regexp.MustCompile(`\[Sources?\s+([\d,\s]+)\]`)

// ParseCitations extracts the source numbers the model cited, matching
// [Source X] and [Sources X, Y] forms. Returns unique numbers, ascending.
func ParseCitations(response string) []int {
	seen := make(map[int]struct{})
	for _, match := range citationPattern.FindAllStringSubmatch(response, -1) {
		for _, field := range strings.Split(match[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				continue
			}
			seen[n] = struct{}{}
		}
	}

	citations := make([]int, 0, len(seen))
	for n := range seen {
		citations = append(citations, n)
	}
	sort.Ints(citations)
	return citations
}
