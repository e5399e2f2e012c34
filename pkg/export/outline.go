// Package export renders a built solution tree as a static outline
// snapshot, for sharing the workspace shape without a terminal. SVG is
// the default; PNG is rendered through gg with the same layout.
package export

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// OutlineOptions controls outline snapshot export behaviour.
type OutlineOptions struct {
	Path   string       // Output path; format inferred from extension when Format empty
	Format string       // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title  string       // Optional title rendered in the summary block
	Depth  int          // Materialize children down to this depth; 0 renders loaded nodes only
	Roots  []*tree.Node // Solution roots to render
}

// SaveOutline renders the tree as an indented outline. With a positive
// Depth it materializes children first, so a headless export shows the
// workspace without anyone having expanded it.
func SaveOutline(ctx context.Context, opts OutlineOptions) error {
	if len(opts.Roots) == 0 {
		return fmt.Errorf("no roots to export")
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg" // safe default
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parent dir: %w", err)
		}
	}

	layout := buildOutline(ctx, opts)

	switch format {
	case "svg":
		return renderSVG(opts.Path, layout)
	case "png":
		return renderPNG(opts.Path, layout)
	default:
		return fmt.Errorf("unhandled format %q", format)
	}
}

// --- layout computation ----------------------------------------------------

type outlineRow struct {
	Label string
	Kind  tree.Kind
	Depth int
	Last  bool // last child of its parent, for branch glyph choice
}

type outlineLayout struct {
	Rows    []outlineRow
	Width   int
	Height  int
	Header  float64
	Summary outlineSummary
}

type outlineSummary struct {
	Title     string
	Solutions int
	Projects  int
	Folders   int
	Files     int
}

const (
	rowHeight    = 20.0
	indentWidth  = 22.0
	padding      = 32.0
	headerHeight = 88.0
	maxLabel     = 60
)

func buildOutline(ctx context.Context, opts OutlineOptions) outlineLayout {
	var rows []outlineRow
	summary := outlineSummary{Title: strings.TrimSpace(opts.Title)}
	if summary.Title == "" {
		summary.Title = "Solution Outline"
	}

	var walk func(n *tree.Node, depth int, last bool)
	walk = func(n *tree.Node, depth int, last bool) {
		rows = append(rows, outlineRow{
			Label: truncate(n.Label(), maxLabel),
			Kind:  n.Kind(),
			Depth: depth,
			Last:  last,
		})
		switch n.Kind() {
		case tree.KindSolution:
			summary.Solutions++
		case tree.KindProject:
			summary.Projects++
		case tree.KindFolder:
			summary.Folders++
		default:
			summary.Files++
		}

		children := n.LoadedChildren()
		if children == nil && depth < opts.Depth {
			loaded, err := n.GetChildren(ctx)
			if err == nil {
				children = loaded
			}
		}
		for i, child := range children {
			walk(child, depth+1, i == len(children)-1)
		}
	}
	for i, root := range opts.Roots {
		walk(root, 0, i == len(opts.Roots)-1)
	}

	maxWidth := 0
	for _, row := range rows {
		// basicfont is ~7px per glyph; the SVG side uses the same
		// budget so both formats share one canvas size.
		w := int(padding*2 + float64(row.Depth)*indentWidth + 24 + float64(len(row.Label))*8)
		if w > maxWidth {
			maxWidth = w
		}
	}
	if maxWidth < 560 {
		maxWidth = 560
	}
	height := int(padding*2 + headerHeight + float64(len(rows))*rowHeight)
	if height < 240 {
		height = 240
	}

	return outlineLayout{
		Rows:    rows,
		Width:   maxWidth,
		Height:  height,
		Header:  headerHeight,
		Summary: summary,
	}
}

// --- rendering -------------------------------------------------------------

var (
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBranch   = color.RGBA{0xb0, 0xb8, 0xc4, 0xff}

	colorSolution = color.RGBA{0xd8, 0xcc, 0xf4, 0xff}
	colorProject  = color.RGBA{0xc5, 0xdd, 0xfb, 0xff}
	colorFolder   = color.RGBA{0xff, 0xe8, 0xb8, 0xff}
	colorFile     = color.RGBA{0xe3, 0xe6, 0xea, 0xff}
)

func kindColor(k tree.Kind) color.RGBA {
	switch k {
	case tree.KindSolution:
		return colorSolution
	case tree.KindProject:
		return colorProject
	case tree.KindFolder:
		return colorFolder
	default:
		return colorFile
	}
}

func rowY(layout outlineLayout, i int) float64 {
	return padding + layout.Header + float64(i)*rowHeight
}

func renderPNG(path string, layout outlineLayout) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(layout.Width)-32, layout.Header-16, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Summary.Title, 32, 40, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(summaryLine(layout.Summary), 32, 62, 0, 0.5)

	for i, row := range layout.Rows {
		x := padding + float64(row.Depth)*indentWidth
		y := rowY(layout, i)

		if row.Depth > 0 {
			dc.SetColor(colorBranch)
			dc.SetLineWidth(1)
			dc.DrawLine(x-indentWidth+7, y+rowHeight/2, x-2, y+rowHeight/2)
			dc.Stroke()
		}

		dc.SetColor(kindColor(row.Kind))
		dc.DrawRoundedRectangle(x, y+3, 14, 14, 3)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(1)
		dc.DrawRoundedRectangle(x, y+3, 14, 14, 3)
		dc.Stroke()

		dc.SetColor(colorText)
		dc.DrawStringAnchored(row.Label, x+22, y+rowHeight/2, 0, 0.5)
	}

	return dc.SavePNG(path)
}

func renderSVG(path string, layout outlineLayout) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return renderSVGToWriter(file, layout)
}

func renderSVGToWriter(w io.Writer, layout outlineLayout) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, layout.Width-32, int(layout.Header-16), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	canvas.Text(32, 44, layout.Summary.Title,
		fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(32, 66, summaryLine(layout.Summary),
		fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))

	for i, row := range layout.Rows {
		x := int(padding + float64(row.Depth)*indentWidth)
		y := int(rowY(layout, i))

		if row.Depth > 0 {
			canvas.Line(x-int(indentWidth)+7, y+int(rowHeight)/2, x-2, y+int(rowHeight)/2,
				fmt.Sprintf("stroke:%s;stroke-width:1", css(colorBranch)))
		}

		canvas.Roundrect(x, y+3, 14, 14, 3, 3,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(kindColor(row.Kind)), css(colorStroke)))
		canvas.Text(x+22, y+14, row.Label,
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorText)))
	}

	canvas.End()
	return nil
}

func summaryLine(s outlineSummary) string {
	return fmt.Sprintf("solutions: %d  projects: %d  folders: %d  files: %d",
		s.Solutions, s.Projects, s.Folders, s.Files)
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
