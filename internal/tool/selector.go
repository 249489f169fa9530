package tool

import (
	"regexp"
	"strings"

	"github.com/yun-ni-2024/ai-assistant-app/internal/model/chat"
)

// Tool names bound to executors in the factory table.
const (
	NameSearch = "search"
	NameFetch  = "fetch"
	NameFile   = "file"
)

// Selection names the tool to run for a turn, with extracted parameters.
type Selection struct {
	Tool   string
	Params map[string]string
}

// Selector decides whether a turn needs grounding and by which tool.
// Implementations must be deterministic for identical input; a model-driven
// selector can replace the rule set without touching the orchestrator.
type Selector interface {
	Select(message string, history []chat.Message) (Selection, bool)
}

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s<>"']+`)
	fileIDPattern = regexp.MustCompile(`file:([0-9a-fA-F][0-9a-fA-F-]{7,})`)
)

// recencyKeywords mark questions that need up-to-date information the model
// cannot answer from training data alone.
var recencyKeywords = []string{
	"latest", "today", "now", "current", "currently", "recent", "recently",
	"this week", "this year", "news", "breaking", "update", "right now",
	"最新", "今天", "现在", "目前", "近期", "这几天", "实时", "新闻", "最近",
}

// RuleSelector is the deterministic baseline selector. At most one tool per
// turn; when several signals match, fetch beats file beats search.
type RuleSelector struct{}

// NewRuleSelector 创建基于规则的工具选择器。
func NewRuleSelector() *RuleSelector {
	return &RuleSelector{}
}

// Select applies the rule set to the latest user message.
func (s *RuleSelector) Select(message string, history []chat.Message) (Selection, bool) {
	if url := urlPattern.FindString(message); url != "" {
		return Selection{
			Tool:   NameFetch,
			Params: map[string]string{"url": strings.TrimRight(url, ".,;:)")},
		}, true
	}

	if m := fileIDPattern.FindStringSubmatch(message); m != nil {
		return Selection{
			Tool:   NameFile,
			Params: map[string]string{"file_id": m[1]},
		}, true
	}

	normalized := strings.ToLower(message)
	for _, keyword := range recencyKeywords {
		if strings.Contains(normalized, keyword) {
			return Selection{
				Tool:   NameSearch,
				Params: map[string]string{"query": strings.TrimSpace(message)},
			}, true
		}
	}

	return Selection{}, false
}
