package extract

// ExtractionPrompt instructs the model to produce a candidate graph from a
// chunk of text. The output must match the Candidates schema.
const ExtractionPrompt = `You are an information extraction system building a knowledge graph.

Given a piece of text, extract:
1. Entities: every distinct named or clearly identifiable thing (people, places, organizations, concepts, events, artifacts). For each, give its name exactly as written, a short lowercase type, and a one-sentence description grounded in the text.
2. Relations: directed relations between the extracted entities. Use the entity names from step 1 and a short snake_case relationship name.

Rules:
- Only extract what the text states. Never invent facts.
- Every relation source and target must be the name of an extracted entity.
- Prefer specific types (person, city, company) over generic ones (thing, object).
- Return nothing for text that contains no extractable facts.`

// SummaryPrompt instructs the model to condense chunk text.
const SummaryPrompt = `Summarize the following text in at most three sentences. Keep every named entity and concrete fact. Do not add information that is not in the text.`

// CodeSummaryPrompt instructs the model to condense a code unit.
const CodeSummaryPrompt = `Summarize what the following code does in at most three sentences. Name the main functions and types and their purpose. Do not restate the code line by line.`
