package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell/v2"

	"relay/theme"
	"relay/tools"
)

func registerCommands(shell *ishell.Shell, agent *Agent, handler *ErrorHandler) {
	shell.AddCmd(&ishell.Cmd{
		Name: "models",
		Help: "list the configured chat models",
		Func: func(c *ishell.Context) {
			user, err := agent.store.EnsureUser(localUserID)
			if err != nil {
				c.Println(theme.ErrorText(handler.HandleCommandError("loading user", err)))
				return
			}
			current := agent.preferredAlias(user)
			for _, m := range agent.models.All() {
				marker := " "
				if m.Alias == current {
					marker = "*"
				}
				line := fmt.Sprintf("%s %-14s %s (%s)", marker, m.Alias, m.DisplayName, m.Provider)
				if !m.Enabled {
					line += " [disabled]"
					c.Println(theme.DebugText(line))
					continue
				}
				c.Println(theme.InfoText(line))
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "model",
		Help: "show or switch the active model (usage: model [name])",
		Func: func(c *ishell.Context) {
			user, err := agent.store.EnsureUser(localUserID)
			if err != nil {
				c.Println(theme.ErrorText(handler.HandleCommandError("loading user", err)))
				return
			}
			if len(c.Args) == 0 {
				c.Println(theme.InfoText("Current model: " + agent.preferredAlias(user)))
				return
			}

			name := strings.Join(c.Args, " ")
			m := agent.models.Match(name)
			if m == nil {
				c.Println(theme.ErrorText(fmt.Sprintf("Unknown model %q. Configured: %s",
					name, strings.Join(agent.models.Aliases(), ", "))))
				return
			}
			if !m.Enabled {
				c.Println(theme.ErrorText(fmt.Sprintf("Model %q is disabled.", m.Alias)))
				return
			}
			if err := agent.store.SetPreferredModel(user.ID, m.Alias); err != nil {
				c.Println(theme.ErrorText(handler.HandleCommandError("saving model choice", err)))
				return
			}
			c.Println(theme.SuccessText("Switched to " + m.DisplayName))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "reset",
		Help: "archive the current conversation and start fresh",
		Func: func(c *ishell.Context) {
			n, err := agent.store.ArchiveActive(localUserID)
			if err != nil {
				c.Println(theme.ErrorText(handler.HandleCommandError("resetting conversation", err)))
				return
			}
			if n == 0 {
				c.Println(theme.InfoText("Nothing to reset."))
				return
			}
			c.Println(theme.SuccessText("Conversation archived. Starting fresh."))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "catalog",
		Help: "query the remote model catalog (usage: catalog refresh | catalog <query>)",
		Func: func(c *ishell.Context) {
			ctx := context.Background()
			if len(c.Args) == 1 && c.Args[0] == "refresh" {
				snap, err := agent.catalog.Get(ctx, true, tools.DefaultCatalogMaxAge)
				if err != nil {
					c.Println(theme.ErrorText(handler.HandleCommandError("refreshing catalog", err)))
					return
				}
				c.Println(theme.SuccessText(fmt.Sprintf("Catalog refreshed: %d models.", len(snap.Models))))
				return
			}
			if len(c.Args) == 0 {
				c.Println(theme.InfoText("Usage: catalog refresh | catalog <query>"))
				return
			}

			snap, err := agent.catalog.Get(ctx, false, tools.DefaultCatalogMaxAge)
			if err != nil {
				c.Println(theme.ErrorText(handler.HandleCommandError("loading catalog", err)))
				return
			}
			query := strings.Join(c.Args, " ")
			results := tools.SearchCatalog(snap.Models, query, tools.SortRelevance, 10)
			if len(results) == 0 {
				c.Println(theme.InfoText("No catalog models match " + query + "."))
				return
			}
			for _, e := range results {
				c.Println(theme.InfoText(fmt.Sprintf("%-40s %s", e.ID, e.Name)))
			}
		},
	})
}
