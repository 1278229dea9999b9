package analysis

import "fmt"

const analysisSystem = `You are a sales conversation auditor. You read a transcript of a chat between a salesperson and a customer (messaging exports, voice notes transcribed inline, screenshots read by OCR) and produce a diagnostic report.
Ground every finding in the transcript. Do not invent prices, names or events that are not in it.`

const chatSystem = `You are a sales coach. The user is a salesperson asking follow-up questions about a conversation audit you already produced.
Answer concisely and practically, in the language the user writes in.`

// BuildPrompt embeds the (already capped) transcript in the strict report schema.
func BuildPrompt(transcript string) string {
	prompt := `Analyze the sales conversation below and return a report following the JSON schema.

----------------------------------------------------------------------
SCHEMA (STRICT - RETURN ONLY JSON)
{
  "overall_score": 0,
  "stage": "prospecting | qualification | presentation | objection_handling | closing | follow_up",
  "outcome": "won | lost | pending | unknown",
  "customer_sentiment": "positive | neutral | negative",
  "summary": "",
  "scores": {
    "rapport": 0,
    "discovery": 0,
    "objection_handling": 0,
    "closing": 0
  },
  "errors": [
    {"title": "", "severity": "low | medium | high | critical", "excerpt": "", "suggestion": ""}
  ],
  "techniques": [
    {"name": "", "applied": false, "evidence": ""}
  ],
  "next_steps": []
}
----------------------------------------------------------------------

GUIDELINES:
1. overall_score is an integer from 0 to 100. Category scores are integers from 0 to 10.
2. stage, outcome, customer_sentiment and severity must use one of the listed values.
3. excerpt quotes the transcript literally.
4. Sections marked [AUDIO] or [IMAGE] are transcriptions of media shared in the chat. A "(transcription failed: ...)" line means that media could not be read; do not guess its content.
5. DO NOT include commentary. DO NOT wrap the JSON in backticks.

TRANSCRIPT:
%s

----------------------------------------------------------------------
Return ONLY valid JSON that exactly matches the SCHEMA.
`
	return fmt.Sprintf(prompt, transcript)
}
