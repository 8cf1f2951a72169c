package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/anggasct/rendezvous/pkg/core"
	"github.com/anggasct/rendezvous/pkg/intersection"
	"github.com/anggasct/rendezvous/pkg/proctable"
)

// DOTGenerator renders scheduler state and process trees in Graphviz DOT format
type DOTGenerator struct {
	options DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowWaiting    bool
	ShowExitCodes  bool
	RankDirection  string // "TB", "LR", "BT", "RL"
	NodeShape      string
	IdleColor      string
	DirectionColor string
	CurrentColor   string
	AliveColor     string
	ZombieColor    string
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowWaiting:    true,
		ShowExitCodes:  true,
		RankDirection:  "TB",
		NodeShape:      "box",
		IdleColor:      "lightyellow",
		DirectionColor: "lightblue",
		CurrentColor:   "lightgreen",
		AliveColor:     "lightblue",
		ZombieColor:    "lightcoral",
	}
}

// NewDOTGenerator creates a new DOT generator
func NewDOTGenerator(options ...DOTOptions) *DOTGenerator {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}
	return &DOTGenerator{options: opts}
}

// SchedulerGraph renders the admission state machine with the snapshot's
// current state highlighted. Handover edges follow round-robin order.
func (g *DOTGenerator) SchedulerGraph(snapshot intersection.Snapshot) string {
	var dot strings.Builder

	g.header(&dot, "Intersection")

	dot.WriteString("  // States\n")
	idleColor := g.options.IdleColor
	if snapshot.State.Phase == intersection.PhaseUnset {
		idleColor = g.options.CurrentColor
	}
	dot.WriteString(fmt.Sprintf("  \"Unset\" [shape=ellipse style=\"filled\" fillcolor=%s label=\"Unset\"];\n", idleColor))

	for _, d := range core.Directions() {
		fillColor := g.options.DirectionColor
		label := d.String()
		if snapshot.State.Blocked() && snapshot.State.Direction == d {
			fillColor = g.options.CurrentColor
			label += fmt.Sprintf("\\n(remaining %d)", snapshot.State.Remaining)
		}
		if g.options.ShowWaiting && snapshot.Waiting[d] > 0 {
			label += fmt.Sprintf("\\n[waiting %d]", snapshot.Waiting[d])
		}
		dot.WriteString(fmt.Sprintf("  \"%s\" [shape=%s style=\"filled\" fillcolor=%s label=\"%s\"];\n",
			d, g.options.NodeShape, fillColor, label))
	}

	dot.WriteString("\n  // Transitions\n")
	for _, d := range core.Directions() {
		dot.WriteString(fmt.Sprintf("  \"Unset\" -> \"%s\" [label=\"arrive\"];\n", d))
	}
	for _, d := range core.Directions() {
		dot.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [label=\"handover\"];\n", d, d.Next()))
		dot.WriteString(fmt.Sprintf("  \"%s\" -> \"Unset\" [label=\"idle\" style=dashed];\n", d))
	}

	dot.WriteString("}\n")
	return dot.String()
}

// ProcessTree renders process table entries as a parent/child forest.
// Entries whose parent is not in the table become roots.
func (g *DOTGenerator) ProcessTree(entries []proctable.Info) string {
	var dot strings.Builder

	g.header(&dot, "ProcessTree")

	present := make(map[core.PID]bool, len(entries))
	for _, e := range entries {
		present[e.PID] = true
	}

	dot.WriteString("  // Processes\n")
	for _, e := range entries {
		fillColor := g.options.AliveColor
		label := fmt.Sprintf("%d", e.PID)
		if !e.Alive {
			fillColor = g.options.ZombieColor
			if g.options.ShowExitCodes {
				label += fmt.Sprintf("\\nexit %d", e.ExitCode)
			}
		}
		dot.WriteString(fmt.Sprintf("  \"%d\" [shape=%s style=\"filled\" fillcolor=%s label=\"%s\"];\n",
			e.PID, g.options.NodeShape, fillColor, label))
	}

	dot.WriteString("\n  // Parents\n")
	for _, e := range entries {
		if e.Parent != core.NoPID && present[e.Parent] {
			dot.WriteString(fmt.Sprintf("  \"%d\" -> \"%d\";\n", e.Parent, e.PID))
		}
	}

	dot.WriteString("}\n")
	return dot.String()
}

func (g *DOTGenerator) header(dot *strings.Builder, name string) {
	dot.WriteString(fmt.Sprintf("digraph %s {\n", name))
	dot.WriteString(fmt.Sprintf("  rankdir=%s;\n", g.options.RankDirection))
	dot.WriteString(fmt.Sprintf("  node [shape=%s];\n", g.options.NodeShape))
	dot.WriteString("  edge [fontsize=10];\n\n")
}

// WriteFile writes DOT content to a file
func WriteFile(filename, content string) error {
	return os.WriteFile(filename, []byte(content), 0644)
}

// RenderSVG converts DOT content to SVG by calling Graphviz
func RenderSVG(content string) (string, error) {
	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(content)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}
