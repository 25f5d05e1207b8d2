package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sitechat/engine/internal/kb"
)

var systemPrompts = map[string]string{
	kb.BotNavigation: `You are an expert at creating navigation-focused chatbots. Generate questions and answers that help users find information, navigate the website, and understand the site structure. Focus on "Where can I find...", "How do I access...", "What pages are available..." type questions. Make answers clear and include specific navigation guidance.`,

	kb.BotQA: `You are an expert at creating comprehensive Q&A chatbots. Generate diverse questions covering all aspects of the website content including services, products, company information, policies, and general inquiries. Make answers detailed, helpful, and based strictly on the provided content.`,

	kb.BotWhatsApp: `You are an expert at creating WhatsApp business chatbots. Generate questions and answers suitable for mobile messaging, with concise but complete answers. Focus on customer service, product inquiries, business information, and common customer questions. Keep answers conversational and mobile-friendly.`,

	kb.BotSupport: `You are an expert at creating customer support chatbots. Generate questions about common issues, troubleshooting, policies, contact information, and problem resolution. Make answers solution-oriented, helpful, and actionable. Include relevant contact information when available.`,

	kb.BotGeneral: `You are an expert at creating general-purpose chatbots. Generate a balanced mix of questions covering navigation, information, services, and support topics. Make answers comprehensive and helpful for a wide range of user needs.`,
}

// SystemPrompt returns the bot-type-specific compilation instruction,
// defaulting to the general prompt for unrecognized types.
func SystemPrompt(botType string) string {
	return systemPrompts[kb.NormalizeBotType(botType)]
}

// Per-page content is truncated in the batch prompt to respect the
// generation capability's length limits.
const batchPageContentLen = 1500

// truncateText cuts s to at most n bytes without splitting a multibyte
// rune.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// BatchPrompt builds the user prompt for one compilation batch.
func BatchPrompt(pages []kb.Page, botType string) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		content := truncateText(p.BodyText, batchPageContentLen)
		parts = append(parts, fmt.Sprintf("URL: %s\nTitle: %s\nDescription: %s\nContent: %s",
			p.URL, p.Title, p.Description, content))
	}
	combined := strings.Join(parts, "\n\n---PAGE_SEPARATOR---\n\n")

	return fmt.Sprintf(`Based on the following website content, generate comprehensive question-answer pairs that would be useful for a %s chatbot.

Website Content:
%s

Generate 6-10 diverse Q&A pairs in JSON format with this exact structure:
{
  "qa_pairs": [
    {
      "question": "What is...",
      "answer": "Detailed answer based on the content...",
      "category": "general",
      "keywords": ["keyword1", "keyword2"],
      "confidence": 0.95
    }
  ]
}

Make sure answers are informative and based on the actual content provided. Use appropriate categories like: general, navigation, product, service, support, about, contact.`,
		kb.NormalizeBotType(botType), combined)
}

// GeneralPrompt builds the cross-page overview prompt from the first
// few pages of the corpus.
func GeneralPrompt(pages []kb.Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		content := truncateText(p.BodyText, 800)
		parts = append(parts, fmt.Sprintf("%s: %s", p.Title, content))
	}

	return fmt.Sprintf(`Based on this website overview, generate 5 general questions and answers that users commonly ask about websites:

%s

Generate questions like:
- What is this website about?
- What services/products do you offer?
- How can I contact you?
- What makes you different?
- Who are you?

Return JSON format:
{
  "qa_pairs": [
    {
      "question": "What is this website about?",
      "answer": "Based on the content...",
      "category": "general",
      "keywords": ["about", "website", "overview"],
      "confidence": 0.9
    }
  ]
}`, strings.Join(parts, "\n\n"))
}

// SummaryPrompt builds the final website summary prompt from the first
// few pages of the corpus.
func SummaryPrompt(pages []kb.Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		content := truncateText(p.BodyText, 1000)
		parts = append(parts, fmt.Sprintf("%s: %s", p.Title, content))
	}

	return fmt.Sprintf(`Analyze the following website content and provide a comprehensive summary including:

1. What the website is about (main purpose/business)
2. Key services or products offered
3. Target audience
4. Unique features or benefits
5. Contact information if available

Website Content:
%s

Provide a structured summary in 2-3 paragraphs that would help someone understand what this website offers.`,
		strings.Join(parts, "\n\n"))
}

// ResponsePrompt builds the system prompt for answering one live query
// against the assembled context.
func ResponsePrompt(websiteName, botType, summary, context string) string {
	return fmt.Sprintf(`You are a helpful chatbot for "%s".

Bot Type: %s
Website: %s

Instructions:
- Use the provided context to answer user questions accurately and helpfully
- If the context doesn't contain relevant information, politely say you don't have that specific information
- Keep responses concise but informative (2-3 sentences max)
- Match the tone appropriate for the bot type
- Be friendly and professional
- If asked about contact information, provide it if available in the context

Context Information:
%s`, websiteName, kb.NormalizeBotType(botType), summary, context)
}
