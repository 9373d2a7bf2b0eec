// Command bstreeview is a terminal browser for a saved filesystem
// archive: arrow keys move, enter descends into a node, backspace
// climbs back out.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bluesky-tree/bskernel/pkg/archive"
	"github.com/bluesky-tree/bskernel/pkg/tree"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	pathStyle  = lipgloss.NewStyle().Faint(true).Padding(0, 1)
)

type entryItem struct {
	name    string
	variant string
}

func (e entryItem) Title() string       { return e.name }
func (e entryItem) Description() string { return e.variant }
func (e entryItem) FilterValue() string { return e.name }

// model holds the browser's navigation stack: each frame is the node
// currently displayed plus the path segment that led to it.
type model struct {
	list  list.Model
	stack []*tree.Node
	path  []string
	err   error
}

func newModel(root *tree.Node) model {
	l := list.New(entriesFor(root), list.NewDefaultDelegate(), 0, 0)
	l.Title = "/"
	l.Styles.Title = titleStyle
	return model{list: l, stack: []*tree.Node{root}}
}

func entriesFor(n *tree.Node) []list.Item {
	items := make([]list.Item, 0, n.Size())
	for i := 0; i < n.Size(); i++ {
		link, ok := n.Index(i)
		if !ok {
			continue
		}
		items = append(items, entryItem{name: link.Name(), variant: link.Variant().String()})
	}
	return items
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			m.descend()
		case "backspace", "esc":
			m.ascend()
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) descend() {
	sel, ok := m.list.SelectedItem().(entryItem)
	if !ok {
		return
	}
	cur := m.stack[len(m.stack)-1]
	link, found := cur.Find(sel.name)
	if !found {
		return
	}
	next, err := link.DataNode(tree.OptErrorIfBusy)
	if err != nil {
		m.err = err
		return
	}
	m.stack = append(m.stack, next)
	m.path = append(m.path, sel.name)
	m.list.SetItems(entriesFor(next))
	m.list.Title = "/" + joinPath(m.path)
}

func (m *model) ascend() {
	if len(m.stack) <= 1 {
		return
	}
	m.stack = m.stack[:len(m.stack)-1]
	m.path = m.path[:len(m.path)-1]
	m.list.SetItems(entriesFor(m.stack[len(m.stack)-1]))
	m.list.Title = "/" + joinPath(m.path)
}

func joinPath(segs []string) string {
	out := ""
	for i, s := range segs {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}

func (m model) View() string {
	if m.err != nil {
		return pathStyle.Render(fmt.Sprintf("error: %v\n", m.err))
	}
	return m.list.View()
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: bstreeview <archive-dir>")
		os.Exit(1)
	}

	registry := archive.NewFormatterRegistry()
	registry.Register("text", archive.BytesFormatter{})

	reader := archive.NewReader(os.Args[1], registry, archive.LoadOpts{Lazy: true})
	root, err := reader.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "bstreeview:", err)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(root), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "bstreeview:", err)
		os.Exit(1)
	}
}
