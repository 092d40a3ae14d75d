package models

var (
	ExpandPromptTemplate = `You rewrite search queries for a help-desk knowledge base.
Given the user question below, produce up to 2 alternate phrasings that preserve
the intent but vary the terminology: expand or contract abbreviations, offer a
bilingual variant when the question mixes languages, broaden to closely related
concepts. One phrasing per line, no numbering, no commentary.

Question: %s
`

	RerankPromptTemplate = `Score how relevant each passage is to the question.
Return ONLY a JSON array of numbers between 0 and 1, one per passage, in order.
Example: [0.9, 0.2, 0.75]

Question: %s

Passages:
%s`

	CaptionPromptTemplate = `Describe this image in 2-4 sentences so the description can stand in
for the image in a searchable knowledge base. %s`

	AnswerSystemPrompt = "You are a help-desk assistant. Answer using only the provided context. If the context does not cover the question, say so."
)
