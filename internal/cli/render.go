package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"

	"budgetsense/internal/generator"
)

// RenderSummary writes a corpus summary as two aligned tables.
func RenderSummary(w io.Writer, s generator.Summary) error {
	if _, err := fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Corpus summary (%d rows)", s.Rows))); err != nil {
		return err
	}
	if s.Rows == 0 {
		_, err := fmt.Fprintln(w, MutedStyle.Render("No records."))
		return err
	}
	if _, err := fmt.Fprintf(w, "Allocated range: %s .. %s Cr\n\n",
		formatAmount(s.MinAllocated), formatAmount(s.MaxAllocated)); err != nil {
		return err
	}

	if err := renderGroups(w, "Ministry", s.ByMinistry); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return renderGroups(w, "Priority", s.ByPriority)
}

func renderGroups(w io.Writer, label string, groups []generator.Group) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
		HeaderStyle.Render(label),
		HeaderStyle.Render("Rows"),
		HeaderStyle.Render("Mean allocated"),
		HeaderStyle.Render("Mean growth")); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
		strings.Repeat("─", 20),
		strings.Repeat("─", 6),
		strings.Repeat("─", 14),
		strings.Repeat("─", 11)); err != nil {
		return fmt.Errorf("failed to write separator: %w", err)
	}

	for _, g := range groups {
		if _, err := fmt.Fprintf(tw, "%s\t%d\t%s\t%.2fx\n",
			g.Name, g.Count, formatAmount(g.MeanAllocated), g.MeanGrowth); err != nil {
			return fmt.Errorf("failed to write %s row: %w", g.Name, err)
		}
	}
	return tw.Flush()
}

// RenderReasons writes the deviation explanation for one prediction.
func RenderReasons(w io.Writer, predicted, expected float64, reasons []string) error {
	deviation := 0.0
	if expected != 0 {
		deviation = (predicted - expected) / expected * 100
	}
	style := SuccessStyle
	if deviation < 0 {
		style = WarningStyle
	}
	if _, err := fmt.Fprintf(w, "%s predicted %s vs expected %s (%s)\n",
		TitleStyle.Render("Deviation:"),
		formatAmount(predicted), formatAmount(expected),
		style.Render(fmt.Sprintf("%+.2f%%", deviation))); err != nil {
		return err
	}
	for _, r := range reasons {
		if _, err := fmt.Fprintf(w, "  • %s\n", r); err != nil {
			return err
		}
	}
	return nil
}

// NewProgressBar returns a bar counting generated rows.
func NewProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}

func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
