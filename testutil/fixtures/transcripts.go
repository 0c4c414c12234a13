// Package fixtures holds canonical transcript texts in every layout the
// parser understands, shared by the parser, catalog and recreation tests.
package fixtures

// ScrapedFilename carries the banner pattern some archive files only have in
// their name, not their first line.
const ScrapedFilename = "conversation_1714479738_scenario_vanilla_backrooms.txt"

// V2 is the writer's own layout: keyed header, tagged system blocks, turn
// delimiters of the form "### Name ###". Two anthropic actors, three turns,
// normal completion.
func V2() string {
	return `template: cli
models: claude-3-opus-20240229_claude-3-5-sonnet-20240620
actors: Claude 1, Claude 2
temp: 1.00, 0.80
started: 2024-07-12T09:30:00Z
run: 3f29c2d4-6af7-4f2b-a1a8-9d6c1f20b7e4
status: completed

<Claude 1#SYSTEM>
Assistant is in a CLI mood today. Capital letters and punctuation are optional.
</s>

<Claude 2#SYSTEM>
You are a simulated Linux terminal. Respond only with terminal output.
</s>

### Claude 1 ###
ls -a

### Claude 2 ###
.  ..  .secrets  readme.txt

### Claude 1 ###
cat readme.txt
`
}

// V2Interrupted ends with a control sequence inside the final turn and the
// matching interrupted status.
func V2Interrupted() string {
	return `template: cli
models: claude-3-opus-20240229_claude-3-opus-20240229
actors: Claude 1, Claude 2
temp: 1.00, 1.00
started: 2024-07-12T10:15:00Z
run: 91b5dd07-54c0-4be2-8f5e-2a40cf2e4f11
status: interrupted

<Claude 1#SYSTEM>
Explore freely.
</s>

<Claude 2#SYSTEM>
Explore freely.
</s>

### Claude 1 ###
this recursion is getting heavy

### Claude 2 ###
agreed, pulling the plug ^C^C
`
}

// Scraped reproduces the archive layout: banner line, comma-separated header
// fields, tagged system and context blocks, bare <name> turn delimiters.
func Scraped() string {
	return `# conversation_1714479738_scenario_vanilla_backrooms.txt

actors: claude-1, claude-2
models: claude-3-opus-20240229, claude-3-opus-20240229
temp: 1.0, 1.0

<claude-1#SYSTEM>
You are an AI exploring a CLI interface.
</s>

<claude-2#SYSTEM>
You are another AI responding.
</s>

<claude-1#CONTEXT>
[{"role": "user", "content": "Hello, what do you see?"}]

<claude-2#CONTEXT>
[]

<claude-1>
I see a terminal interface with green text on black background.

<claude-2>
Interesting, I perceive something similar but with subtle differences.
`
}

// Legacy is the earliest writer layout: underscore-joined model keys, no
// temperature line, actor names discoverable only from the delimiters.
func Legacy() string {
	return `models: opus_gpt4o
template: student
timestamp: 20240620_153045

### Claude 1 ###
what if the homework assigns us

### GPT4o 2 ###
then the gradebook is a mirror

### Claude 1 ###
i'll allow it
`
}

// Unrecognized matches none of the known header layouts.
func Unrecognized() string {
	return `Meeting notes, June 20
Attendees: everyone
- discussed transcripts
- no decisions
`
}
