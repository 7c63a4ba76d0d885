package core

import (
	"strings"
)

func (m *CommandManager) helpText(path []string) string {
	m.mu.RLock()
	routes := m.routes
	alias := m.alias
	m.mu.RUnlock()
	return helpFor(routes, alias, path)
}

func helpFor(routes *routeSet, alias map[string]*Command, path []string) string {
	// No path: show top-level commands.
	if len(path) == 0 {
		lines := []string{"📚 Commands (use /help <cmd> ...):"}
		for _, word := range routes.words() {
			e, _ := routes.entry(word)
			suffix := ""
			if len(e.subs) > 0 {
				suffix = " …"
			}
			if e.cmd != nil && e.cmd.Description != "" {
				lines = append(lines, "- /"+word+suffix+" — "+e.cmd.Description)
			} else {
				lines = append(lines, "- /"+word+suffix)
			}
		}
		return strings.Join(lines, "\n")
	}

	entry, ok := routes.entry(path[0])
	if !ok {
		// An alias resolves to its canonical route's help.
		if len(path) == 1 {
			if ac, ok := alias[path[0]]; ok && ac != nil {
				return helpFor(routes, alias, routeWords(ac.Route))
			}
		}
		return "command not found. try /help"
	}

	if len(path) > 1 {
		sub, ok := entry.subs[path[1]]
		if !ok {
			return "command not found. try /help"
		}
		return commandHelp(sub, nil)
	}

	// Bare word with no root handler: list its subcommands.
	if entry.cmd == nil {
		lines := []string{"📚 /" + entry.word + " subcommands:"}
		for _, w := range entry.subWords() {
			sc := entry.subs[w]
			if sc.Description != "" {
				lines = append(lines, "- /"+entry.word+" "+w+" — "+sc.Description)
			} else {
				lines = append(lines, "- /"+entry.word+" "+w)
			}
		}
		lines = append(lines, "Tip: /help "+entry.word+" <subcommand>")
		return strings.Join(lines, "\n")
	}
	return commandHelp(entry.cmd, entry)
}

// commandHelp renders a single command's detail block; entry, when given,
// contributes the subcommand list.
func commandHelp(cmd *Command, entry *routeEntry) string {
	lines := []string{"📌 " + cmd.Route}
	if cmd.Description != "" {
		lines = append(lines, cmd.Description)
	}
	if cmd.Usage != "" {
		lines = append(lines, "Usage: "+cmd.Usage)
	}
	if len(cmd.Aliases) > 0 {
		lines = append(lines, "Aliases: /"+strings.Join(cmd.Aliases, ", /"))
	}
	if entry != nil && len(entry.subs) > 0 {
		lines = append(lines, "Subcommands:")
		for _, w := range entry.subWords() {
			sc := entry.subs[w]
			if sc.Description != "" {
				lines = append(lines, "- "+w+" — "+sc.Description)
			} else {
				lines = append(lines, "- "+w)
			}
		}
	}
	return strings.Join(lines, "\n")
}
