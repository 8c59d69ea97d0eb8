package menu

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// ParseDocument parses rendered page markup into a document tree.
func ParseDocument(markup string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("could not parse page markup: %w", err)
	}

	return doc, nil
}

// byClass builds an expression matching descendants carrying the given class token.
// contains(@class, ...) alone is not enough: "station" would also match "station-name".
func byClass(tag, class string) *xpath.Expr {
	return xpath.MustCompile(fmt.Sprintf(
		".//%s[contains(concat(' ', normalize-space(@class), ' '), ' %s ')]",
		tag, class,
	))
}

var reSpaces = regexp.MustCompile(`\s+`)

// visibleText returns the whitespace collapsed text of the node.
func visibleText(node *html.Node) string {
	if node == nil {
		return ""
	}

	text := htmlquery.InnerText(node)
	text = reSpaces.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// firstText returns the text of the first descendant matched by expr.
func firstText(node *html.Node, expr *xpath.Expr) (string, bool) {
	el := htmlquery.QuerySelector(node, expr)
	if el == nil {
		return "", false
	}

	return visibleText(el), true
}
