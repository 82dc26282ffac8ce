package summarize

const batchPrompt = `Analyze these messages and create a brief, meaningful summary of the key discussions and topics.
Ignore any irrelevant messages, greetings, or small talk.
Focus on the most important information and insights shared.
If there is nothing of substance, reply with exactly "No meaningful content found".

Messages:
%s`

const finalPrompt = `Create a concise weekly summary from these batch summaries:
%s

Format the summary with bullet points for key topics/discussions.`

const continuationPrompt = `Here is an existing summary of earlier discussions:
%s

Here are summaries of new discussions since then:
%s

Create an updated weekly summary incorporating both the old and new discussions.
Format the summary with bullet points for key topics/discussions.`
