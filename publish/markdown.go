package publish

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Markdown renders the text of a report document as Markdown. Scripts,
// styles and chart surfaces produce no output.
func Markdown(document string) (string, error) {
	out, err := mdConverter.ConvertString(document)
	if err != nil {
		return "", fmt.Errorf("publish: markdown: %w", err)
	}
	return strings.TrimSpace(out), nil
}
