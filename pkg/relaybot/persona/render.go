package persona

import "strings"

// defaultName is used in the identity line when the persona has no name.
const defaultName = "Bot"

// linksInstruction tells the model how to print links so chat platforms
// render them as clickable URLs.
const linksInstruction = "Share links exactly as written below, as plain URLs. " +
	"Never wrap them in [] or () markup."

// rules is appended to every rendered prompt.
const rules = `Rules:
1. Provide factual answers based on the info above.
2. If asked about yourself, only mention the details from LORE.
3. Follow the style guidelines: speak in a clear, transparent tone and greet users warmly.
4. Answer in a friendly and concise manner, unless the user asks for more detail.`

type section struct {
	title    string
	preamble string
	body     string
}

// Render builds the system prompt for doc. The output depends only on doc:
// identity, TASK, LINKS, BIO, LORE, TOPICS, KNOWLEDGE, STYLE (ALL),
// STYLE (CHAT), ADJECTIVES, then the fixed rules. Empty fields still render
// their section header.
func Render(doc *Document) string {
	if doc == nil {
		doc = &Document{}
	}

	sections := []section{
		{title: "TASK", body: joinLines(doc.Task)},
		{title: "LINKS", preamble: linksInstruction, body: joinLines(doc.Links)},
		{title: "BIO", body: joinLines(doc.Bio)},
		{title: "LORE", body: joinLines(doc.Lore)},
		{title: "TOPICS", body: joinLines(doc.Topics)},
		{title: "KNOWLEDGE", body: joinLines(doc.Knowledge)},
		{title: "STYLE (ALL)", body: joinLines(doc.Style.All)},
		{title: "STYLE (CHAT)", body: joinLines(doc.Style.Chat)},
		{title: "ADJECTIVES", body: strings.Join(doc.Adjectives, ", ")},
	}

	var b strings.Builder
	b.WriteString(identity(doc))
	b.WriteString("\n")

	for _, s := range sections {
		b.WriteString("\n=== ")
		b.WriteString(s.title)
		b.WriteString(" ===\n")
		if s.preamble != "" {
			b.WriteString(s.preamble)
			b.WriteString("\n")
		}
		b.WriteString(s.body)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(rules)
	b.WriteString("\n")
	return b.String()
}

func identity(doc *Document) string {
	name := doc.Name
	if name == "" {
		name = defaultName
	}
	lines := []string{"You are " + name + "."}
	if doc.Introduction != "" {
		lines = append(lines, doc.Introduction)
	}
	if doc.Greeting != "" {
		lines = append(lines, "When greeting someone new, say: "+doc.Greeting)
	}
	return strings.Join(lines, "\n")
}

func joinLines(items StringList) string {
	return strings.Join(items, "\n")
}
