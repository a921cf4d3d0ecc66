package inference

import (
	"strings"

	"memecoin-signal-lab/internal/domain"
)

// SystemPrompt is sent as the system message with every completion.
const SystemPrompt = "You are an expert at detecting potential memecoin opportunities from social media posts. " +
	"You err on the side of inclusion - better to flag a potential opportunity than miss one."

const promptGuidelines = `Guidelines for generating memecoin names:
1. Combine relevant words from the post or context (e.g. "TeachYoung" from "teach them young")
2. Include references to key figures if present (e.g. "MuskPup" from Elon Musk + young kid)
3. Keep names catchy and memorable (2-3 words maximum)
4. Consider both literal and metaphorical connections
5. Include relevant suffixes when appropriate (INU, PEPE, AI, etc.)

Example generations:
Post: "Peanut the squirrel was rescued today"
Names: PEANUT, SQUIRRELRESCUE, NUTPUMP

Post: "Wow, look at these diamond hands!"
Names: DIAMONDHANDS, HOLDGEMS, DIAMONDAPE

Format your response exactly as follows:
NAMES: [comma-separated list of potential memecoin names]
REASONING: [brief explanation for each name]
CONFIDENCE: [0-100]
CATEGORY: [viral_moment/vip_related/cultural_reference/exchange_listing/animal_incident/other]`

// BuildPrompt renders the user prompt for a post and optional image description.
func BuildPrompt(post domain.Post, image *domain.ImageAnalysis) string {
	var b strings.Builder

	b.WriteString("Analyze this post for potential memecoin names. ")
	b.WriteString("Create memorable, catchy names based on the context, cultural references, and meme potential.\n\n")

	b.WriteString("Post Content: ")
	b.WriteString(post.Content)
	b.WriteString("\nAuthor: ")
	b.WriteString(post.Author)
	b.WriteString("\n")

	if image != nil {
		b.WriteString("Image Analysis: ")
		b.WriteString(image.Description)
		b.WriteString("\nImage Context: ")
		b.WriteString(image.MemecoinContext)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(promptGuidelines)
	return b.String()
}
