package indicator

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/speechcraft/internal/feedback"
	"github.com/rbright/speechcraft/internal/history"
	"github.com/rbright/speechcraft/internal/recording"
	"github.com/rbright/speechcraft/internal/scenario"
)

type styles struct {
	title        lipgloss.Style
	heading      lipgloss.Style
	muted        lipgloss.Style
	score        lipgloss.Style
	recording    lipgloss.Style
	recordingDot lipgloss.Style
	processing   lipgloss.Style
	ok           lipgloss.Style
	warn         lipgloss.Style
	err          lipgloss.Style
	mode         lipgloss.Style
	box          lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, color bool) styles {
	s := styles{
		title:        r.NewStyle().Bold(true),
		heading:      r.NewStyle().Bold(true).Underline(true),
		muted:        r.NewStyle().Faint(true),
		score:        r.NewStyle().Bold(true),
		recording:    r.NewStyle().Bold(true),
		recordingDot: r.NewStyle(),
		processing:   r.NewStyle(),
		ok:           r.NewStyle(),
		warn:         r.NewStyle(),
		err:          r.NewStyle().Bold(true),
		mode:         r.NewStyle(),
		box:          r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
	if !color {
		return s
	}
	s.title = s.title.Foreground(lipgloss.Color("#89b4fa"))
	s.score = s.score.Foreground(lipgloss.Color("#a6e3a1"))
	s.recordingDot = s.recordingDot.Foreground(lipgloss.Color("#f38ba8"))
	s.processing = s.processing.Foreground(lipgloss.Color("#cba6f7"))
	s.ok = s.ok.Foreground(lipgloss.Color("#a6e3a1"))
	s.warn = s.warn.Foreground(lipgloss.Color("#f9e2af"))
	s.err = s.err.Foreground(lipgloss.Color("#f38ba8"))
	s.mode = s.mode.Foreground(lipgloss.Color("#94e2d5"))
	s.box = s.box.BorderForeground(lipgloss.Color("#585b70"))
	return s
}

// Report renders scenario lists, feedback, and history as terminal text.
type Report struct {
	out    io.Writer
	styles styles
}

// NewReport writes rendered output to out.
func NewReport(out io.Writer, color bool) *Report {
	return &Report{out: out, styles: newStyles(lipgloss.NewRenderer(out), color)}
}

// Scenarios lists the catalog; the banner is shown when no token is stored.
func (r *Report) Scenarios(list []scenario.Scenario, hasToken bool) {
	if !hasToken {
		fmt.Fprintln(r.out, r.styles.warn.Render("! "+indicatorMessagesFromEnv().tokenBanner))
		fmt.Fprintln(r.out)
	}
	for _, s := range list {
		fmt.Fprintf(r.out, "%s  %s  %s\n", r.styles.muted.Render("["+s.ID+"]"), r.styles.title.Render(s.Title), r.styles.mode.Render(string(s.Mode)))
		fmt.Fprintf(r.out, "     %s\n", s.Description)
	}
}

// Prompt shows the scenario card before recording.
func (r *Report) Prompt(s scenario.Scenario) {
	body := strings.Join([]string{
		r.styles.title.Render(s.Title) + "  " + r.styles.mode.Render(string(s.Mode)),
		"",
		s.Description,
	}, "\n")
	fmt.Fprintln(r.out, r.styles.box.Render(body))
}

// Feedback renders a completed attempt.
func (r *Report) Feedback(s scenario.Scenario, transcript string, result feedback.Result, elapsedSeconds int) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", r.styles.title.Render(s.Title), r.styles.muted.Render(recording.FormatElapsed(elapsedSeconds)))
	fmt.Fprintf(&b, "\nScore: %s\n", r.styles.score.Render(FormatScore(result.Score)+"/100"))

	r.section(&b, "Your Speech", transcript)
	r.section(&b, "Clarity", result.Clarity)
	r.section(&b, "Logic", result.Logic)

	fmt.Fprintf(&b, "\n%s\n", r.styles.heading.Render("Suggestions"))
	if len(result.Suggestions) == 0 {
		fmt.Fprintln(&b, r.styles.muted.Render("  (none)"))
	}
	for _, s := range result.Suggestions {
		fmt.Fprintf(&b, "  • %s\n", s)
	}

	r.section(&b, "Improved Version", result.ImprovedVersion)
	fmt.Fprint(r.out, b.String())
}

// History renders recent attempts, newest first.
func (r *Report) History(attempts []history.Attempt) {
	if len(attempts) == 0 {
		fmt.Fprintln(r.out, r.styles.muted.Render("No practice attempts recorded yet."))
		return
	}
	for _, a := range attempts {
		fmt.Fprintf(r.out, "%s  %s  %s  %s\n",
			r.styles.muted.Render(a.CreatedAt.Local().Format("2006-01-02 15:04")),
			r.styles.score.Render(fmt.Sprintf("%3s", FormatScore(a.Feedback.Score))),
			recording.FormatElapsed(a.ElapsedSeconds),
			a.ScenarioTitle,
		)
	}
}

func (r *Report) section(b *strings.Builder, heading string, body string) {
	fmt.Fprintf(b, "\n%s\n", r.styles.heading.Render(heading))
	body = strings.TrimSpace(body)
	if body == "" {
		fmt.Fprintln(b, r.styles.muted.Render("  (empty)"))
		return
	}
	for _, line := range strings.Split(body, "\n") {
		fmt.Fprintf(b, "  %s\n", line)
	}
}

// FormatScore prints whole scores without a decimal point.
func FormatScore(score float64) string {
	if score == math.Trunc(score) {
		return fmt.Sprintf("%d", int(score))
	}
	return fmt.Sprintf("%.1f", score)
}
