package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	claimcfg "github.com/smallbiznis/claimflow/internal/config"
)

// Converter turns stored documents into the exchange format insurers accept.
type Converter interface {
	CanConvert(mimeType, target string) bool
	Convert(ctx context.Context, name, mimeType string, content []byte, target string) ([]byte, error)
}

type textConverter struct{}

// NewConverter converts plain text documents to PDF.
func NewConverter() Converter {
	return textConverter{}
}

func (textConverter) CanConvert(mimeType, target string) bool {
	return target == claimcfg.MimeTypePDF && strings.HasPrefix(mimeType, "text/plain")
}

func (c textConverter) Convert(ctx context.Context, name, mimeType string, content []byte, target string) ([]byte, error) {
	if !c.CanConvert(mimeType, target) {
		return nil, fmt.Errorf("%w: %s to %s", ErrConversionNotFound, mimeType, target)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := maroto.New(pageConfig())
	if name != "" {
		m.AddRow(12, text.NewCol(12, name, titleText))
	}
	writeParagraphs(m, string(content))
	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", name, err)
	}
	return doc.GetBytes(), nil
}
