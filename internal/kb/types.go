// Package kb holds the domain types shared across the crawl, compile,
// index and retrieval stages of the engine.
package kb

import "time"

// Heading is one entry of a page's heading outline, levels 1-6.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// NavLink is a navigation link extracted from a page, with the href
// resolved to an absolute URL.
type NavLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Page is the normalized record produced for one crawled URL. Pages are
// immutable once extracted.
type Page struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Keywords    string    `json:"keywords"`
	BodyText    string    `json:"bodyText"`
	Headings    []Heading `json:"headings"`
	NavLinks    []NavLink `json:"navLinks"`
	WordCount   int       `json:"wordCount"`
	ScrapedAt   time.Time `json:"scrapedAt"`
}

// QAFact is a single question/answer pair derived from page content,
// the atomic unit of retrieval.
type QAFact struct {
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Category    string    `json:"category"`
	Keywords    []string  `json:"keywords"`
	Confidence  float64   `json:"confidence"`
	SourcePages []string  `json:"sourcePages"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Fact categories. Unrecognized categories normalize to CategoryGeneral.
const (
	CategoryGeneral    = "general"
	CategoryNavigation = "navigation"
	CategoryProduct    = "product"
	CategoryService    = "service"
	CategorySupport    = "support"
	CategoryAbout      = "about"
	CategoryContact    = "contact"
)

var knownCategories = map[string]bool{
	CategoryGeneral:    true,
	CategoryNavigation: true,
	CategoryProduct:    true,
	CategoryService:    true,
	CategorySupport:    true,
	CategoryAbout:      true,
	CategoryContact:    true,
}

// NormalizeCategory maps arbitrary category strings onto the known set,
// falling back to "general".
func NormalizeCategory(c string) string {
	if knownCategories[c] {
		return c
	}
	return CategoryGeneral
}

// Bot types alter the tone and question focus of compiled facts.
const (
	BotGeneral    = "general"
	BotNavigation = "navigation"
	BotQA         = "qa"
	BotWhatsApp   = "whatsapp"
	BotSupport    = "support"
)

var knownBotTypes = map[string]bool{
	BotGeneral:    true,
	BotNavigation: true,
	BotQA:         true,
	BotWhatsApp:   true,
	BotSupport:    true,
}

// NormalizeBotType maps arbitrary bot type strings onto the known set,
// falling back to "general".
func NormalizeBotType(t string) string {
	if knownBotTypes[t] {
		return t
	}
	return BotGeneral
}

// Job statuses. Terminal states are StatusCompleted and StatusFailed.
const (
	StatusCreated      = "created"
	StatusScraping     = "scraping"
	StatusGeneratingQA = "generating_qa"
	StatusStoringData  = "storing_data"
	StatusFinalizing   = "finalizing"
	StatusCompleted    = "completed"
	StatusFailed       = "failed"
)

// GenerationJob tracks one "build a knowledge base for site X" request
// from creation through terminal success or failure.
type GenerationJob struct {
	ID               string     `json:"id"`
	WebsiteURL       string     `json:"websiteUrl"`
	WebsiteName      string     `json:"websiteName"`
	BotType          string     `json:"botType"`
	Status           string     `json:"status"`
	Progress         int        `json:"progress"`
	PagesScraped     int        `json:"pagesScraped"`
	QAPairsGenerated int        `json:"qaPairsGenerated"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
	Summary          string     `json:"summary,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// Terminal reports whether the job can no longer change state.
func (j *GenerationJob) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Interaction is an append-only audit record of one answered query.
type Interaction struct {
	JobID       string    `json:"jobId"`
	UserQuery   string    `json:"userQuery"`
	BotResponse string    `json:"botResponse"`
	Confidence  float64   `json:"confidence"`
	Sources     []string  `json:"sources"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CrawlError records one URL that could not be fetched or extracted.
// Crawling continues past individual failures.
type CrawlError struct {
	URL       string    `json:"url"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Answer is the result of resolving one user query against a completed
// knowledge base.
type Answer struct {
	Response   string   `json:"response"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}
