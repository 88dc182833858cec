package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/thruflo/serverboard/internal/api"
	"github.com/thruflo/serverboard/internal/nav"
	"github.com/thruflo/serverboard/internal/router"
	"github.com/thruflo/serverboard/internal/servers"
)

var (
	serversSortBy   string
	serversOrder    string
	serversLocation string
	serversLink     bool
	serversJSON     bool
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List servers",
	Long: `Fetches the server list with the stored token and prints it.

Sorting follows the dashboard: --sort-by name orders by country group and
then by the number after '#', --sort-by distance orders by distance. A
dashboard link such as "/dashboard?sortBy=name&order=desc" can be passed
with --location instead, and --link prints the link for the order used.`,
	Args: cobra.NoArgs,
	RunE: runServers,
}

func init() {
	serversCmd.Flags().StringVar(&serversSortBy, "sort-by", "", "sort field: name or distance")
	serversCmd.Flags().StringVar(&serversOrder, "order", "", "sort order: asc or desc (default asc)")
	serversCmd.Flags().StringVar(&serversLocation, "location", router.PathDashboard, "dashboard link to take the order from")
	serversCmd.Flags().BoolVar(&serversLink, "link", false, "print the dashboard link for this order")
	serversCmd.Flags().BoolVar(&serversJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(serversCmd)
}

func runServers(cmd *cobra.Command, args []string) error {
	location, err := serversLocationFromFlags()
	if err != nil {
		return err
	}

	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	rtr, err := rt.route(location)
	if err != nil {
		return err
	}
	defer rtr.Close()
	if rtr.View() != router.ViewDashboard {
		return ErrNotLoggedIn
	}

	snap := rt.fetcher().Load(cmd.Context())
	if snap.Status == api.StatusError {
		if api.IsUnauthorized(snap.Err) {
			return fmt.Errorf("%s: session expired; run \"serverboard login\"", api.ErrorMessage)
		}
		return fmt.Errorf("%s: %w", api.ErrorMessage, snap.Err)
	}

	list := servers.NewSortController(rtr.History(), rt.sorter).Apply(snap.Servers)

	out := cmd.OutOrStdout()
	if serversJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(list); err != nil {
			return fmt.Errorf("failed to encode servers: %w", err)
		}
	} else {
		printServers(out, list)
	}

	if serversLink {
		fmt.Fprintln(out, nav.Link(rtr.Location()))
	}
	return nil
}

// serversLocationFromFlags merges --sort-by and --order into --location.
func serversLocationFromFlags() (string, error) {
	if serversSortBy == "" {
		if serversOrder != "" {
			return "", errors.New("--order requires --sort-by")
		}
		return serversLocation, nil
	}

	field, err := servers.ParseField(serversSortBy)
	if err != nil {
		return "", err
	}
	order := servers.Asc
	if serversOrder != "" {
		if order, err = servers.ParseOrder(serversOrder); err != nil {
			return "", err
		}
	}

	u, err := nav.ParseLink(serversLocation)
	if err != nil {
		return "", fmt.Errorf("invalid location %q: %w", serversLocation, err)
	}
	q := u.Query()
	servers.SortDirective{Field: field, Order: order}.Encode(q)
	return (&url.URL{Path: u.Path, RawQuery: q.Encode()}).String(), nil
}

func printServers(w io.Writer, list []servers.Server) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No servers available.")
		return
	}

	nameWidth := len("NAME")
	for _, s := range list {
		if n := utf8.RuneCountInString(s.Name); n > nameWidth {
			nameWidth = n
		}
	}

	fmt.Fprintf(w, "%-*s  %s\n", nameWidth, "NAME", "DISTANCE")
	fmt.Fprintf(w, "%s  %s\n", strings.Repeat("-", nameWidth), "--------")
	for _, s := range list {
		fmt.Fprintf(w, "%-*s  %s\n", nameWidth, s.Name, s.DistanceString())
	}
}
