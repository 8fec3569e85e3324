package generator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
)

// ErrOutsideRoot is returned by RenderFile for a header outside the
// source root.
var ErrOutsideRoot = errors.New("header is outside the source root")

// Rendered is the SIP file of one header.
type Rendered struct {
	// SipFile is where a full run writes Text, relative to the output
	// directory.
	SipFile string
	// Text is empty when the header declares nothing.
	Text string
	Hits *rules.Hits
}

// RenderFile renders one header without writing anything. file is
// absolute or relative to the source root.
func (g *Generator) RenderFile(ctx context.Context, file string) (*Rendered, error) {
	if !filepath.IsAbs(file) {
		file = filepath.Join(g.root, file)
	}

	file = filepath.Clean(file)

	if !within(g.root, file) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, file)
	}

	ctx, span := g.tracer.Start(ctx, "sipgen.render")
	defer span.End()

	h := header{path: file, rel: g.relative(file)}

	span.SetAttributes(attribute.String("sipgen.header", h.rel))

	r, _, err := g.render(ctx, h)
	if err != nil {
		return nil, err
	}

	out := &Rendered{SipFile: sipFileFor(h.rel), Hits: r.hits}

	if r.Body != "" {
		out.Text = fileHeader(out.SipFile, h.rel, g.rs.Package, g.rs.Copying) + r.Body
	}

	return out, nil
}
