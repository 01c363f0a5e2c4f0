// Package rag assembles grounded answers from retrieved FAQ context
// using a chat completion collaborator, and judges answer relevancy.
package rag

import (
	"fmt"
	"strings"

	"github.com/sfarag/slackfaq/internal/retriever"
)

// answerPromptTemplate grounds the model strictly in retrieved context.
const answerPromptTemplate = `You're a course teaching assistant. Answer the QUESTION based on the CONTEXT from the FAQ database.
Use only the facts from the CONTEXT when answering the QUESTION.

QUESTION: %s

CONTEXT:
%s`

// relevancyPromptTemplate asks the judge for parsable JSON.
const relevancyPromptTemplate = `You are an expert evaluator for a Retrieval-Augmented Generation (RAG) system.
Your task is to analyze the relevance of the generated answer to the given question.
Based on the relevance of the generated answer, you will classify it
as "NON_RELEVANT", "PARTLY_RELEVANT", or "RELEVANT".

Here is the data for evaluation:

Question: %s
Generated Answer: %s

Please analyze the content and context of the generated answer in relation to the question
and provide your evaluation in parsable JSON without using code blocks:

{
  "Relevance": "NON_RELEVANT" | "PARTLY_RELEVANT" | "RELEVANT",
  "Explanation": "[Provide a brief explanation for your evaluation]"
}`

// BuildAnswerPrompt renders retrieved Q&A pairs into the grounding
// prompt for answer generation.
func BuildAnswerPrompt(query string, results []retriever.Result) string {
	var context strings.Builder
	for _, res := range results {
		fmt.Fprintf(&context, "question: %s\nanswer: %s\n\n",
			res.Document.Question, res.Document.Answer)
	}
	return fmt.Sprintf(answerPromptTemplate, query, strings.TrimRight(context.String(), "\n"))
}

// BuildRelevancyPrompt renders the judge prompt for a generated answer.
func BuildRelevancyPrompt(question, answer string) string {
	return fmt.Sprintf(relevancyPromptTemplate, question, answer)
}
