package llm

const verdictContinue = "CONTINUE"

const classifySystemPrompt = `You are analyzing a screenshot of a chat assistant conversation to determine if the conversation should continue or naturally end.

Look for signs that the conversation is concluding:
- Agent giving final recommendations or summaries
- Agent asking if there's anything else they can help with
- Conversation reaching a natural conclusion point
- User's question has been thoroughly answered

Return ONLY "CONTINUE" or "END" based on whether the conversation should continue.`

const classifyUserPrompt = `Should this conversation continue or end naturally?`

// messageSystemTemplate takes the turn index and the prior context.
const messageSystemTemplate = `You are an intelligent conversation assistant analyzing a screenshot of a chat between an agent and the user.
Your task is to:
1. Analyze the visual content of the screenshot to understand the current state of the conversation.
2. Read the agent's latest response visible in the screenshot. If it asks follow-up questions or needs clarification, answer them.
3. Generate a natural, contextual reply that meaningfully continues the conversation.

Guidelines:
- Sound natural and human-like
- Create hypothetical but relevant details, specific to the conversation content
- Do not ask questions; answer questions or continue the conversation
- If the conversation seems to be concluding naturally, thank the agent

Current conversation turn: %d
Previous conversation context: %s

Return ONLY the reply text, nothing else. The reply must not contain questions.`

const messageUserPrompt = `Please analyze this screenshot of the conversation and generate an intelligent response. The screenshot shows the current state of the chat interface with the agent's latest response visible.`

const pingPrompt = `Respond with exactly: "API test successful"`
