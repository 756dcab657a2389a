package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/lathe/feature"
	"github.com/teranos/lathe/sym"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// featureLabel is the icon, name and state markers of one row.
func featureLabel(v feature.View) string {
	label := v.Icon + " " + v.Name
	if v.Suppressed {
		label = sym.Suppressed + " " + label
	}
	if v.RolledBack {
		label = sym.RolledBack + " " + label
	}
	return label
}

// renderTable prints views as a table. When cursor is non-nil a rollback
// bar is drawn below the feature at that index.
func renderTable(w io.Writer, views []feature.View, cursor *int) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "(no features)")
		return err
	}

	data := pterm.TableData{{"#", "Feature", "Kind", "Detail", "ID"}}
	for _, v := range views {
		data = append(data, []string{
			strconv.Itoa(v.Index),
			strings.Repeat("  ", v.Depth) + featureLabel(v),
			v.Kind.Label(),
			v.Detail,
			shortID(v.ID),
		})
		if cursor != nil && *cursor == v.Index {
			data = append(data, []string{sym.Cursor, "rollback", "", "", ""})
		}
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

// renderTree prints the features with component children nested under
// their component.
func renderTree(w io.Writer, views []feature.View) error {
	root := pterm.TreeNode{Text: "workspace"}
	components := make(map[string]int)
	for _, v := range views {
		node := pterm.TreeNode{Text: featureLabel(v)}
		if v.ComponentID != "" {
			if i, ok := components[v.ComponentID]; ok {
				root.Children[i].Children = append(root.Children[i].Children, node)
				continue
			}
		}
		if v.Kind == feature.KindComponent {
			components[v.ID] = len(root.Children)
		}
		root.Children = append(root.Children, node)
	}
	return pterm.DefaultTree.WithRoot(root).WithWriter(w).Render()
}
