// Package output renders sessions, stage artifacts and state labels for the
// terminal.
//
// Agent output is markdown; when enabled it is rendered with glamour,
// otherwise it is printed verbatim. Everything else is styled with lipgloss.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"reqflow/internal/agent"
	"reqflow/internal/config"
	"reqflow/internal/issues"
	"reqflow/internal/policy"
	"reqflow/internal/stage"
	"reqflow/internal/status"
)

// Printer writes formatted output to a writer.
type Printer struct {
	out      io.Writer
	renderer *glamour.TermRenderer
	truncate int
}

// NewPrinter creates a [Printer] writing plain markdown to stdout.
func NewPrinter() *Printer {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a [Printer] writing to w without markdown
// rendering.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return &Printer{out: w}
}

// NewPrinterWithConfig creates a [Printer] writing to w with the markdown
// and truncation settings from cfg. A renderer that cannot be built falls
// back to plain output.
func NewPrinterWithConfig(w io.Writer, cfg config.OutputConfig) *Printer {
	p := &Printer{out: w, truncate: cfg.TruncateLines}
	if cfg.Markdown.Enabled {
		p.renderer = newMarkdownRenderer(cfg.Markdown)
	}
	return p
}

func newMarkdownRenderer(cfg config.MarkdownConfig) *glamour.TermRenderer {
	style := cfg.Style
	if style == "" {
		style = "dark"
	}
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle(style)}
	if cfg.WordWrap > 0 {
		opts = append(opts, glamour.WithWordWrap(cfg.WordWrap))
	}
	if cfg.Emoji {
		opts = append(opts, glamour.WithEmoji())
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil
	}
	return r
}

func (p *Printer) println(s string) {
	fmt.Fprintln(p.out, s)
}

// Markdown renders text as markdown when a renderer is configured.
func (p *Printer) Markdown(text string) string {
	if p.renderer == nil {
		return text
	}
	rendered, err := p.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

// Text prints a plain line.
func (p *Printer) Text(s string) {
	p.println(s)
}

// Success prints a confirmation line.
func (p *Printer) Success(s string) {
	p.println(styleSuccess.Render("✓ " + s))
}

// Error prints err in the error style.
func (p *Printer) Error(err error) {
	p.println(styleError.Render("Error: " + err.Error()))
}

// StageStart announces a stage run.
func (p *Printer) StageStart(st stage.Stage, agentName string, attempt int) {
	line := fmt.Sprintf("▶ Running %s with %s", st, styleAgentName.Render(agentName))
	if attempt > 1 {
		line += styleDim.Render(fmt.Sprintf(" (attempt %d)", attempt))
	}
	p.println(line)
}

// StageOutput prints a labelled stage artifact, e.g. "User Stories Output".
func (p *Printer) StageOutput(label, text string) {
	p.println("")
	p.println(styleStageLabel.Render(label))
	p.println(styleStageLabel.Render(strings.Repeat("─", len(label))))
	p.println(p.Markdown(text))
}

// StateBanner prints the current state label.
func (p *Printer) StateBanner(s status.Status) {
	p.println("")
	p.println(styleBanner.Render("Current state: " + s.Label()))
}

// NextSteps prints the commands that apply at s.
func (p *Printer) NextSteps(s status.Status) {
	var hints []string
	switch s {
	case status.StatusAwaitingRequirementsApproval, status.StatusAwaitingStoryApproval:
		hints = []string{
			"reqflow approve             approve and run the next stage",
			"reqflow clarify -m \"...\"    answer questions and re-run this stage",
		}
	case status.StatusAwaitingClarification:
		hints = []string{
			"reqflow clarify -m \"...\"    answer the agent's questions",
			"reqflow approve             resume once clarified",
		}
	case status.StatusAwaitingRequirements, status.StatusAwaitingStoryGeneration, status.StatusAwaitingTestGeneration:
		hints = []string{"reqflow approve             retry the pending stage"}
	}
	for _, h := range hints {
		p.println(styleHint.Render("  " + h))
	}
}

// Issues prints a titled issue list. Nothing is printed for an empty list.
func (p *Printer) Issues(title string, list []issues.Issue) {
	if len(list) == 0 {
		return
	}
	p.println("")
	p.println(styleWarning.Render(fmt.Sprintf("%s (%d)", title, len(list))))
	for _, i := range list {
		p.println(fmt.Sprintf("  • %s %s", styleLabel.Render("["+i.Category.Label()+"]"), i.Detail))
	}
}

// Report prints a conformance report.
func (p *Printer) Report(r policy.Report) {
	if r.OK() {
		p.Success(fmt.Sprintf("%s output conforms", r.Stage))
		return
	}
	p.println(styleWarning.Render(fmt.Sprintf("%s output has %d conformance problem(s)", r.Stage, len(r.Violations))))
	for _, v := range r.Violations {
		p.println(fmt.Sprintf("  • %s %s", styleLabel.Render(string(v.Rule)+":"), v.Detail))
	}
}

// Pause prints what the reviewer needs at a pause: the latest artifact,
// its issues and the state label.
func (p *Printer) Pause(sess *status.Session) {
	if st, ok := sess.CurrentStage(); ok || sess.Status == status.StatusDone {
		if sess.Status == status.StatusDone {
			st = stage.TestCases
		}
		if art := sess.Artifact(st); art != nil && art.Output != "" {
			p.StageOutput(st.OutputLabel(), art.Output)
			if st == stage.Requirements {
				p.Issues("Pre-screen findings", sess.PreScreen)
			}
			p.Issues("Open issues", art.Issues)
		}
	}
	p.StateBanner(sess.Status)
	p.NextSteps(sess.Status)
}

func kvLine(key, value string) string {
	return fmt.Sprintf("  %s %s", styleLabel.Render(key+":"), styleValue.Render(value))
}

// Session prints a session summary with each stage's artifact truncated to
// the configured number of lines.
func (p *Printer) Session(sess *status.Session) {
	p.println(styleTableHeader.Render("Session " + sess.ID))
	p.println(kvLine("state", sess.Status.Label()))
	p.println(kvLine("created", sess.CreatedAt.Local().Format("2006-01-02 15:04")))
	p.println(kvLine("updated", sess.UpdatedAt.Local().Format("2006-01-02 15:04")))
	p.Issues("Pre-screen findings", sess.PreScreen)

	for _, st := range stage.Sequence() {
		art := sess.Artifact(st)
		p.println("")
		if art == nil {
			p.println(styleDim.Render(fmt.Sprintf("%s: not started", st.OutputLabel())))
			continue
		}
		state := "pending approval"
		switch {
		case art.Approved && art.ApprovedWithOpenIssues:
			state = "approved with open issues"
		case art.Approved:
			state = "approved"
		case art.Output == "":
			state = "not run"
		case st == stage.TestCases:
			state = "final"
		}
		p.println(fmt.Sprintf("%s %s", styleStageLabel.Render(st.OutputLabel()), styleDim.Render("("+state+")")))
		p.println(kvLine("agent", art.Agent))
		p.println(kvLine("attempts", fmt.Sprint(art.Attempts)))
		if len(art.Issues) > 0 {
			p.println(kvLine("issues", fmt.Sprint(len(art.Issues))))
		}
		if len(art.Violations) > 0 {
			p.println(kvLine("conformance problems", fmt.Sprint(len(art.Violations))))
		}
		if art.Output != "" {
			p.println(Truncate(art.Output, p.truncate))
		}
	}
	p.StateBanner(sess.Status)
}

// SessionList prints one line per session, marking the active one.
func (p *Printer) SessionList(sessions []*status.Session, active string) {
	if len(sessions) == 0 {
		p.println(styleDim.Render("No sessions."))
		return
	}
	for _, sess := range sessions {
		marker := "  "
		id := sess.ID
		if sess.ID == active {
			marker = "* "
			id = styleActive.Render(id)
		}
		p.println(fmt.Sprintf("%s%s  %-28s %s  %s",
			marker,
			id,
			sess.Status.Label(),
			sess.UpdatedAt.Local().Format("2006-01-02 15:04"),
			styleDim.Render(firstLine(sess.Document, 50)),
		))
	}
}

// Agents prints the agent configurations with the root's delegation order.
func (p *Printer) Agents(defs []agent.Definition, rootName string) {
	for _, d := range defs {
		name := styleAgentName.Render(d.Name)
		if d.Name == rootName {
			name += styleDim.Render(" (root)")
		}
		p.println(name)
		p.println(kvLine("model", d.Model))
		if d.Description != "" {
			p.println(kvLine("description", d.Description))
		}
		if len(d.SubAgents) > 0 {
			p.println(kvLine("sub-agents", strings.Join(d.SubAgents, " → ")))
		}
		p.println(kvLine("source", string(d.Source)))
	}
}

// Truncate keeps the first n lines of text and notes how many were dropped.
// n <= 0 keeps everything.
func Truncate(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if n <= 0 || len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:n], "\n") + "\n" + styleDim.Render(fmt.Sprintf("… %d more lines", len(lines)-n))
}

func firstLine(s string, max int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return line
}
