package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edgard/bymbot/internal/llm"
)

const defaultSearchSentences = 3

// SearchTool answers a query, or summarizes a URL, with a secondary model call.
type SearchTool struct {
	model     llm.Model
	website   *WebsiteTool
	sentences int
	log       *slog.Logger
}

func (t *SearchTool) Name() string { return "search" }

func (t *SearchTool) Description() string {
	return "Use this for searching information or summarizing URL content. " +
		"If a URL is given and summarizing it directly fails, the page content is extracted first and then summarized."
}

func (t *SearchTool) Parameters() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"query":  llm.String("Search keyword or URL"),
		"length": llm.Integer("The desired length of the summary in sentences. Defaults to 3."),
	}, "query")
}

func (t *SearchTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	query := argString(args, "query")
	if query == "" {
		return "", errors.New("the query parameter is required")
	}
	def := t.sentences
	if def <= 0 {
		def = defaultSearchSentences
	}
	length := int(argInt(args, "length", int64(def)))
	if length <= 0 {
		length = def
	}

	result, err := t.summarize(ctx, query, length)
	if !isURL(query) || (err == nil && result != "") {
		return result, err
	}

	t.log.InfoContext(ctx, "Direct summary failed, extracting page content", "url", query, "error", err)
	page, fetchErr := t.website.Fetch(ctx, query)
	if fetchErr != nil {
		return "", fmt.Errorf("failed to extract content from url and summarize: %w", errors.Join(err, fetchErr))
	}
	return t.summarize(ctx, page.String(), length)
}

func (t *SearchTool) summarize(ctx context.Context, query string, length int) (string, error) {
	resp, err := t.model.Generate(ctx, &llm.Request{
		System: fmt.Sprintf("You are a search assistant. Answer the query or summarize the content in %d sentences in Chinese. "+
			"Be factual and say so when you are not sure.", length),
		Text:            query,
		Temperature:     0.3,
		MaxOutputTokens: 800,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
